package publish

import (
	"context"

	"github.com/simplesurance/docpub/internal/docsrepo"
)

type gitRepoCloner struct {
	clt *docsrepo.Client
}

// NewGitRepoCloner adapts a docsrepo.Client to the RepoCloner interface.
func NewGitRepoCloner(clt *docsrepo.Client) RepoCloner {
	return &gitRepoCloner{clt: clt}
}

func (c *gitRepoCloner) Clone(ctx context.Context, url string) (DocsRepo, error) {
	return c.clt.Clone(ctx, url)
}
