package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultBranch returns the branch HEAD pointed at after clone.
func (s *Storage) DefaultBranch() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	return s.headBranch()
}

// SetBaseBranch checks out branch and makes it the default parent for new
// commits. An empty name is a no-op.
func (s *Storage) SetBaseBranch(_ context.Context, branch string) error {
	if branch == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	hash, err := s.resolveBranch(branch)
	if err != nil {
		return err
	}
	local := plumbing.NewBranchReferenceName(branch)
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(local, hash)); err != nil {
		return fmt.Errorf("failed to update %s: %w", local, err)
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Branch: local, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}

	s.log.Debug("Base branch set to " + branch)
	s.baseBranch = branch
	return nil
}

// BranchExists reports whether branch exists on the remote.
func (s *Storage) BranchExists(_ context.Context, branch string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	_, err := s.resolveBranch(branch)
	if errors.Is(err, errBranchNotFound) {
		return false, nil
	}
	return err == nil, err
}

// BranchHead returns the commit SHA branch points at.
func (s *Storage) BranchHead(_ context.Context, branch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	hash, err := s.resolveBranch(branch)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// GetAllBranches lists remote branches whose name starts with prefix,
// sorted by name.
func (s *Storage) GetAllBranches(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	refs, err := s.repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	defer refs.Close()

	remotePrefix := "refs/remotes/" + remoteName + "/"
	var branches []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, remotePrefix) {
			return nil
		}
		branch := strings.TrimPrefix(name, remotePrefix)
		if branch == "HEAD" || !strings.HasPrefix(branch, prefix) {
			return nil
		}
		branches = append(branches, branch)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate references: %w", err)
	}
	sort.Strings(branches)
	return branches, nil
}

// IsBranchStale reports whether branch is no longer based on the tip of
// the base branch.
func (s *Storage) IsBranchStale(_ context.Context, branch string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	base, err := s.commit(s.baseBranch)
	if err != nil {
		return false, err
	}
	head, err := s.commit(branch)
	if err != nil {
		return false, err
	}
	if base.Hash == head.Hash {
		return false, nil
	}
	contained, err := base.IsAncestor(head)
	if err != nil {
		return false, fmt.Errorf("failed to walk history of %s: %w", branch, err)
	}
	return !contained, nil
}

// GetBranchLastCommitTime returns the committer time of the branch tip.
func (s *Storage) GetBranchLastCommitTime(_ context.Context, branch string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return time.Time{}, err
	}
	c, err := s.commit(branch)
	if err != nil {
		return time.Time{}, err
	}
	return c.Committer.When, nil
}

// DeleteBranch removes branch from the remote, then locally. Deleting a
// branch that does not exist is not an error.
func (s *Storage) DeleteBranch(ctx context.Context, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.resolveBranch(branch); errors.Is(err, errBranchNotFound) {
		s.log.Debug("Branch " + branch + " already gone")
		return nil
	}
	if branch == s.baseBranch {
		return fmt.Errorf("%w: %s", errBaseBranch, branch)
	}

	spec := config.RefSpec(":" + plumbing.NewBranchReferenceName(branch).String())
	if err := s.push(ctx, "delete branch", spec); err != nil {
		return err
	}
	s.removeBranchRefs(branch)
	s.log.Debug("Deleted branch " + branch)
	return nil
}

// MergeBranch fast-forwards the base branch to branch and pushes it.
// Diverged histories fail with [ErrNotFastForward].
func (s *Storage) MergeBranch(ctx context.Context, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	base, err := s.commit(s.baseBranch)
	if err != nil {
		return err
	}
	head, err := s.commit(branch)
	if err != nil {
		return err
	}
	if base.Hash == head.Hash {
		return nil
	}
	ff, err := base.IsAncestor(head)
	if err != nil {
		return fmt.Errorf("failed to walk history of %s: %w", branch, err)
	}
	if !ff {
		return fmt.Errorf("%w: %s into %s", errNotFastForward, branch, s.baseBranch)
	}

	spec := config.RefSpec(head.Hash.String() + ":" + plumbing.NewBranchReferenceName(s.baseBranch).String())
	if err := s.push(ctx, "push merge", spec); err != nil {
		return err
	}
	if err := s.setBranchRefs(s.baseBranch, head.Hash); err != nil {
		return err
	}
	if err := s.syncWorktree(); err != nil {
		return err
	}
	s.log.Debug(fmt.Sprintf("Merged %s into %s at %s", branch, s.baseBranch, head.Hash))
	return nil
}

// syncWorktree resets the checkout to the base branch tip.
func (s *Storage) syncWorktree() error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(s.baseBranch),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %w", s.baseBranch, err)
	}
	return nil
}

func (s *Storage) commit(branch string) (*object.Commit, error) {
	hash, err := s.resolveBranch(branch)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	return c, nil
}
