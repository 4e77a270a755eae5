// Package docsrepo manipulates the git repository that the documentation
// site is published to.
package docsrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/simplesurance/docpub/internal/logfields"
)

const loggerName = "docs_repository"

const (
	commitAuthorName  = "docpub"
	commitAuthorEmail = "docpub@localhost"
)

// Client clones the docs repository into a workspace directory.
type Client struct {
	workspaceDir string
	auth         transport.AuthMethod
	logger       *zap.Logger
}

// New returns a Client that clones into workspaceDir.
// If apiToken is empty, operations run unauthenticated, which only works for
// local or public repositories.
func New(workspaceDir, apiToken string) *Client {
	clt := Client{
		workspaceDir: workspaceDir,
		logger:       zap.L().Named(loggerName),
	}

	if apiToken != "" {
		// github accepts a token as basic-auth password with an
		// arbitrary username
		clt.auth = &githttp.BasicAuth{
			Username: "token",
			Password: apiToken,
		}
	}

	return &clt
}

// Clone creates a full clone of the repository at url.
func (c *Client) Clone(ctx context.Context, url string) (*Repo, error) {
	repoPath := filepath.Join(c.workspaceDir, "docs-repository")

	if err := os.RemoveAll(repoPath); err != nil {
		return nil, fmt.Errorf("removing previous clone directory failed: %w", err)
	}

	repository, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:  url,
		Auth: c.auth,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s failed: %w", url, err)
	}

	head, err := repository.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD of the clone failed: %w", err)
	}

	c.logger.Info(
		"docs repository cloned",
		logfields.Event("docs_repository_cloned"),
		zap.String("git.url", url),
		zap.String("git.clone_path", repoPath),
		logfields.Commit(head.Hash().String()),
	)

	return &Repo{
		path:   repoPath,
		repo:   repository,
		auth:   c.auth,
		logger: c.logger,
	}, nil
}

// Repo is a cloned docs repository checkout.
type Repo struct {
	path   string
	repo   *git.Repository
	auth   transport.AuthMethod
	logger *zap.Logger
}

// Path returns the path of the checkout.
func (r *Repo) Path() string {
	return r.path
}

// ReplaceSubtree deletes targetPath in the checkout, if it exists, recreates
// it and copies the whole artifact tree underneath.
// Afterwards targetPath exactly mirrors artifactDir, no diffing or partial
// updating is done.
func (r *Repo) ReplaceSubtree(targetPath, artifactDir string) error {
	dest := filepath.Join(r.path, targetPath)

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("removing %s failed: %w", targetPath, err)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	if err := copyTree(artifactDir, dest); err != nil {
		return fmt.Errorf("copying the site artifact to %s failed: %w", targetPath, err)
	}

	r.logger.Debug(
		"site subtree replaced",
		logfields.Event("docs_repository_subtree_replaced"),
		zap.String("git.subtree", targetPath),
		zap.String("site.artifact_dir", artifactDir),
	)

	return nil
}

// Commit creates branch at the tip of the clone's default branch, stages all
// changes of the working tree and commits them.
// An unchanged working tree produces a commit with an empty diff, a no-op
// publish for an unchanged site is not an error.
func (r *Repo) Commit(branch, message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", err
	}

	// the subtree was already replaced in the worktree, Keep carries the
	// uncommitted changes over onto the new branch
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
		Keep:   true,
	})
	if err != nil {
		return "", fmt.Errorf("creating branch %s failed: %w", branch, err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("staging changes failed: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthorName,
			Email: commitAuthorEmail,
			When:  time.Now(),
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("committing failed: %w", err)
	}

	r.logger.Info(
		"changes committed",
		logfields.Event("docs_repository_committed"),
		logfields.Branch(branch),
		logfields.Commit(hash.String()),
	)

	return hash.String(), nil
}

// Push pushes branch to the origin remote.
func (r *Repo) Push(ctx context.Context, branch string) error {
	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))

	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       r.auth,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("pushing branch %s failed: %w", branch, err)
	}

	r.logger.Info(
		"branch pushed",
		logfields.Event("docs_repository_branch_pushed"),
		logfields.Branch(branch),
	)

	return nil
}

func copyTree(srcDir, destDir string) error {
	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		dest := filepath.Join(destDir, rel)

		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}

		if !d.Type().IsRegular() {
			return fmt.Errorf("%s is neither a directory nor a regular file", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		return os.WriteFile(dest, data, info.Mode().Perm())
	})
}
