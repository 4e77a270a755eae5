// Package publish implements the documentation publication pipeline.
//
// A run is strictly sequential and single-pass: resolve the version, build
// the site in the selected variant, clone the docs repository, replace the
// site subtree, commit on a fresh branch, close superseded pull requests,
// push, open a new pull request and, for explicitly tagged releases, wait a
// grace period and squash-merge it.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/githubclt"
	"github.com/simplesurance/docpub/internal/logfields"
	"github.com/simplesurance/docpub/internal/sitebuilder"
)

const loggerName = "publisher"

type GithubClient interface {
	ListPullRequests(ctx context.Context, owner, repo, state, sort, sortDirection string) githubclt.PRIterator
	ClosePullRequest(ctx context.Context, owner, repo string, prNumber int) error
	CreatePullRequest(ctx context.Context, owner, repo, head, base, title, body string) (*github.PullRequest, error)
	AddLabel(ctx context.Context, owner, repo string, prNumber int, label string) error
	SquashMergePullRequest(ctx context.Context, owner, repo string, prNumber int, commitTitle string) error
	MergeReadiness(ctx context.Context, owner, repo string, prNumber int) (*githubclt.MergeReadiness, error)
}

type SiteBuilder interface {
	Build(ctx context.Context, variant sitebuilder.Variant) (string, error)
}

// DocsRepo is a cloned checkout of the docs repository.
type DocsRepo interface {
	ReplaceSubtree(targetPath, artifactDir string) error
	Commit(branch, message string) (string, error)
	Push(ctx context.Context, branch string) error
}

type RepoCloner interface {
	Clone(ctx context.Context, url string) (DocsRepo, error)
}

type Params struct {
	GithubClient GithubClient
	SiteBuilder  SiteBuilder
	RepoCloner   RepoCloner
	Retryer      *Retryer

	RepositoryOwner string
	RepositoryName  string
	CloneURL        string
	BaseBranch      string
	SiteSubdir      string

	// PRTitleTemplate and PRBodyTemplate are fmt format strings, their
	// only argument is the display name.
	PRTitleTemplate string
	PRBodyTemplate  string
	PRLabel         string

	MergeGracePeriod time.Duration

	// InsidersCredential decides the build variant, insiders iff it is
	// non-empty.
	InsidersCredential string
}

// Publisher runs publication pipelines.
// Runs of the same Publisher are serialized by the callers, the publisher
// itself provides no cross-run mutual exclusion, see the package
// documentation of the dedup race.
type Publisher struct {
	params Params
	logger *zap.Logger
}

func New(params Params) *Publisher {
	return &Publisher{
		params: params,
		logger: zap.L().Named(loggerName),
	}
}

func (p *Publisher) prTitle(displayName string) string {
	return fmt.Sprintf(p.params.PRTitleTemplate, displayName)
}

func (p *Publisher) prBody(displayName string) string {
	return fmt.Sprintf(p.params.PRBodyTemplate, displayName)
}

// Run executes one publication pipeline for the given release context.
// A non-nil error means the run failed, the caller is expected to exit
// non-zero. A failure of the best-effort dedup step does not fail the run.
func (p *Publisher) Run(ctx context.Context, releaseCtx *ReleaseContext) (err error) {
	defer func() {
		metrics.RunFinishedInc(err == nil)
	}()

	job := NewJob(releaseCtx, time.Now())
	logger := p.logger.With(
		logfields.Version(job.Version),
		logfields.Branch(job.BranchName),
	)

	// the variant is selected once, before the build, and not revisited
	variant := sitebuilder.SelectVariant(p.params.InsidersCredential)

	logger.Info(
		"publish run started",
		logfields.Event("publish_run_started"),
		logfields.BuildVariant(string(variant)),
	)

	buildStart := time.Now()
	siteDir, err := p.params.SiteBuilder.Build(ctx, variant)
	if err != nil {
		return fmt.Errorf("building the documentation site failed: %w", err)
	}
	metrics.SiteBuildDurationObserve(time.Since(buildStart).Seconds())

	repo, err := p.params.RepoCloner.Clone(ctx, p.params.CloneURL)
	if err != nil {
		return fmt.Errorf("cloning the docs repository failed: %w", err)
	}

	if err := repo.ReplaceSubtree(p.params.SiteSubdir, siteDir); err != nil {
		return err
	}

	title := p.prTitle(job.DisplayName)

	commit, err := repo.Commit(job.BranchName, title)
	if err != nil {
		return err
	}

	logger = logger.With(logfields.Commit(commit))

	p.closeSupersededPullRequests(ctx, logger, title)

	if err := repo.Push(ctx, job.BranchName); err != nil {
		return err
	}

	pr, err := p.params.GithubClient.CreatePullRequest(
		ctx,
		p.params.RepositoryOwner,
		p.params.RepositoryName,
		job.BranchName,
		p.params.BaseBranch,
		title,
		p.prBody(job.DisplayName),
	)
	if err != nil {
		return fmt.Errorf("creating the pull request failed: %w", err)
	}

	prNumber := pr.GetNumber()
	logger = logger.With(logfields.PullRequest(prNumber))
	logger.Info(
		"pull request created",
		logfields.Event("pull_request_created"),
		zap.String("github.pull_request_title", title),
	)

	if p.params.PRLabel != "" {
		err := p.params.GithubClient.AddLabel(ctx, p.params.RepositoryOwner, p.params.RepositoryName, prNumber, p.params.PRLabel)
		if err != nil {
			return fmt.Errorf("adding label %q to pull request %d failed: %w", p.params.PRLabel, prNumber, err)
		}
	}

	if !autoMergeEligible(releaseCtx) {
		logger.Info(
			"pull request is left open for review, run is not auto-merge eligible",
			logfields.Event("auto_merge_skipped"),
		)

		return nil
	}

	return p.mergeGate(ctx, logger, prNumber, title)
}

// closeSupersededPullRequests closes every open pull request whose title
// exactly matches title.
// Only the newest publish for a version should remain actionable, older
// in-flight proposals are superseded, not merged.
// The step is best-effort: a leftover stale pull request risks no data loss,
// failures are logged and the run continues. Transient github errors are
// retried within a bounded window.
func (p *Publisher) closeSupersededPullRequests(ctx context.Context, logger *zap.Logger, title string) {
	err := p.params.Retryer.Run(
		ctx,
		func(ctx context.Context) error {
			return p.closeMatchingPullRequests(ctx, logger, title)
		},
		[]zap.Field{zap.String("github.pull_request_title", title)},
	)
	if err != nil {
		logger.Warn(
			"closing superseded pull requests failed, a stale pull request might remain open",
			logfields.Event("pull_request_dedup_failed"),
			zap.Error(err),
		)
	}
}

func (p *Publisher) closeMatchingPullRequests(ctx context.Context, logger *zap.Logger, title string) error {
	it := p.params.GithubClient.ListPullRequests(
		ctx,
		p.params.RepositoryOwner,
		p.params.RepositoryName,
		"open", "created", "desc",
	)

	for {
		pr, err := it.Next()
		if err != nil {
			return err
		}

		if pr == nil {
			return nil
		}

		if pr.GetTitle() != title {
			continue
		}

		err = p.params.GithubClient.ClosePullRequest(ctx, p.params.RepositoryOwner, p.params.RepositoryName, pr.GetNumber())
		if err != nil {
			return err
		}

		metrics.SupersededPRClosedInc()
		logger.Info(
			"superseded pull request closed",
			logfields.Event("pull_request_superseded"),
			logfields.PullRequest(pr.GetNumber()),
		)
	}
}
