package publish

import (
	"context"

	"go.uber.org/zap"
)

// DryRepoCloner wraps a RepoCloner, the returned checkouts simulate pushing.
// Cloning, replacing the subtree and committing only change the local
// workspace and run for real.
type DryRepoCloner struct {
	cloner RepoCloner
	logger *zap.Logger
}

func NewDryRepoCloner(cloner RepoCloner, logger *zap.Logger) *DryRepoCloner {
	return &DryRepoCloner{
		cloner: cloner,
		logger: logger.Named("dry_repo_cloner"),
	}
}

func (c *DryRepoCloner) Clone(ctx context.Context, url string) (DocsRepo, error) {
	repo, err := c.cloner.Clone(ctx, url)
	if err != nil {
		return nil, err
	}

	return &dryDocsRepo{repo: repo, logger: c.logger}, nil
}

type dryDocsRepo struct {
	repo   DocsRepo
	logger *zap.Logger
}

func (r *dryDocsRepo) ReplaceSubtree(targetPath, artifactDir string) error {
	return r.repo.ReplaceSubtree(targetPath, artifactDir)
}

func (r *dryDocsRepo) Commit(branch, message string) (string, error) {
	return r.repo.Commit(branch, message)
}

func (r *dryDocsRepo) Push(_ context.Context, branch string) error {
	r.logger.Info("simulated pushing, branch not pushed to the remote",
		zap.String("git.branch", branch))
	return nil
}
