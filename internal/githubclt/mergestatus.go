package githubclt

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// MergeReadiness is a snapshot of the review decision and the
// [status check rollup] of a pull request's head commit.
//
// [status check rollup]: https://docs.github.com/en/graphql/reference/objects#statuscheckrollup
type MergeReadiness struct {
	ReviewDecision githubv4.PullRequestReviewDecision
	RollupState    githubv4.StatusState
	Commit         string
}

// MergeReadiness fetches the current review decision and status-check rollup
// state for a PR via the GraphQL API.
func (clt *Client) MergeReadiness(ctx context.Context, owner, repo string, prNumber int) (*MergeReadiness, error) {
	var q struct {
		Repository struct {
			PullRequest struct {
				ReviewDecision githubv4.PullRequestReviewDecision

				Commits struct {
					Nodes []struct {
						Commit struct {
							Oid               string
							StatusCheckRollup struct {
								State githubv4.StatusState
							}
						}
					}
				} `graphql:"commits(last: 1)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(prNumber),
	}

	err := clt.graphQLClt.Query(ctx, &q, vars)
	if err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	nodes := q.Repository.PullRequest.Commits.Nodes
	if len(nodes) == 0 {
		return nil, fmt.Errorf("pull request %d has no commits", prNumber)
	}

	return &MergeReadiness{
		ReviewDecision: q.Repository.PullRequest.ReviewDecision,
		RollupState:    nodes[0].Commit.StatusCheckRollup.State,
		Commit:         nodes[0].Commit.Oid,
	}, nil
}
