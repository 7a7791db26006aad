package sources

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository is a checked out working copy.
type Repository interface {
	WorkingDir() string
	Checkout(revision string) error
}

// Cloner clones a remote repository into dir.
type Cloner interface {
	Clone(ctx context.Context, repoURL, dir string) (Repository, error)
}

// GitCloner clones with go-git, without requiring a git binary.
type GitCloner struct{}

func (GitCloner) Clone(ctx context.Context, repoURL, dir string) (Repository, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: repoURL})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", repoURL, err)
	}
	return &gitRepository{repo: repo, dir: dir}, nil
}

// OpenRepository opens an existing working copy.
func OpenRepository(dir string) (Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &gitRepository{repo: repo, dir: dir}, nil
}

type gitRepository struct {
	repo *git.Repository
	dir  string
}

func (r *gitRepository) WorkingDir() string {
	return r.dir
}

// Checkout moves the working copy to revision, which may be a commit hash,
// a branch or a tag.
func (r *gitRepository) Checkout(revision string) error {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", revision, err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", revision, err)
	}
	return nil
}
