package publish

import (
	"context"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/githubclt"
)

// DryGithubClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to a wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) ListPullRequests(ctx context.Context, owner, repo, state, sort, sortDirection string) githubclt.PRIterator {
	return c.clt.ListPullRequests(ctx, owner, repo, state, sort, sortDirection)
}

func (c *DryGithubClient) ClosePullRequest(context.Context, string, string, int) error {
	c.logger.Info("simulated closing of a pull request, no pull request closed on github")
	return nil
}

func (c *DryGithubClient) CreatePullRequest(_ context.Context, _, _, head, base, title, _ string) (*github.PullRequest, error) {
	c.logger.Info("simulated creating of a pull request, no pull request created on github",
		zap.String("github.head", head),
		zap.String("github.base", base),
		zap.String("github.pull_request_title", title),
	)

	number := 0
	return &github.PullRequest{Number: &number, Title: &title}, nil
}

func (c *DryGithubClient) AddLabel(context.Context, string, string, int, string) error {
	c.logger.Info("simulated adding a label, no label added on github")
	return nil
}

func (c *DryGithubClient) SquashMergePullRequest(context.Context, string, string, int, string) error {
	c.logger.Info("simulated squash-merging, no pull request merged on github")
	return nil
}

func (c *DryGithubClient) MergeReadiness(context.Context, string, string, int) (*githubclt.MergeReadiness, error) {
	c.logger.Info("simulated fetching merge readiness, pr is approved, all checks successful")

	return &githubclt.MergeReadiness{
		ReviewDecision: githubv4.PullRequestReviewDecisionApproved,
		RollupState:    githubv4.StatusStateSuccess,
	}, nil
}
