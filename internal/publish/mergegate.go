package publish

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/logfields"
)

// autoMergeEligible returns true when the run originated from an automated
// release whose announcement tag was set explicitly.
// Manual dispatches and releases with an implicit, inferred tag leave the
// pull request open for human review.
func autoMergeEligible(releaseCtx *ReleaseContext) bool {
	if releaseCtx == nil || releaseCtx.Plan == nil {
		return false
	}

	plan := releaseCtx.Plan

	return plan.AnnouncementTag != "" && !plan.AnnouncementTagIsImplicit
}

// mergeGate waits the configured grace period, to give required status
// checks time to register on the new pull request, then squash-merges it.
// The merge is attempted exactly once. When it fails the pull request
// remains open for manual intervention and the run fails.
func (p *Publisher) mergeGate(ctx context.Context, logger *zap.Logger, prNumber int, commitTitle string) error {
	logger.Info(
		"waiting before merging, giving status checks time to register",
		logfields.Event("merge_grace_period_started"),
		zap.Duration("grace_period", p.params.MergeGracePeriod),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.params.MergeGracePeriod):
	}

	// the readiness snapshot is logged for observability only, it does
	// not gate the merge attempt
	readiness, err := p.params.GithubClient.MergeReadiness(ctx, p.params.RepositoryOwner, p.params.RepositoryName, prNumber)
	if err != nil {
		logger.Warn(
			"fetching the merge readiness of the pull request failed",
			logfields.Event("merge_readiness_fetch_failed"),
			zap.Error(err),
		)
	} else {
		logger.Info(
			"fetched merge readiness of the pull request",
			logfields.Event("merge_readiness_fetched"),
			zap.String("github.review_decision", string(readiness.ReviewDecision)),
			zap.String("github.status_check_rollup", string(readiness.RollupState)),
			logfields.Commit(readiness.Commit),
		)
	}

	err = p.params.GithubClient.SquashMergePullRequest(ctx, p.params.RepositoryOwner, p.params.RepositoryName, prNumber, commitTitle)
	if err != nil {
		metrics.MergeInc(false)
		return fmt.Errorf("squash-merging pull request %d failed: %w", prNumber, err)
	}

	metrics.MergeInc(true)
	logger.Info(
		"pull request squash-merged",
		logfields.Event("pull_request_merged"),
	)

	return nil
}
