package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/pkg/git"
)

// branchPrCloser declines the open pull request of a branch, if any.
type branchPrCloser interface {
	declineBranchPr(ctx context.Context, branch string) error
}

// storageSession implements the branch operations shared by every provider
// on top of the session's git storage.
type storageSession struct {
	repo    Repository
	storage GitStorage
	log     *bullets.Logger
	closer  branchPrCloser

	mu            sync.RWMutex
	baseBranch    string
	defaultBranch string
}

func newStorageSession(repo Repository, storage GitStorage, defaultBranch string, log *bullets.Logger) *storageSession {
	return &storageSession{
		repo:          repo,
		storage:       storage,
		log:           log,
		baseBranch:    defaultBranch,
		defaultBranch: defaultBranch,
	}
}

// Repository returns the repository the session is bound to.
func (s *storageSession) Repository() Repository {
	return s.repo
}

// BaseBranch returns the branch new commits and pull requests target.
func (s *storageSession) BaseBranch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseBranch
}

// DefaultBranch returns the repository default branch found at init.
func (s *storageSession) DefaultBranch() string {
	return s.defaultBranch
}

// Close releases the git storage.
func (s *storageSession) Close() error {
	s.log.Debug("Closing session for " + s.repo.String())
	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}

// SetBaseBranch switches the base branch of the session and of its storage.
func (s *storageSession) SetBaseBranch(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	s.log.Debug("Setting base branch to " + name)
	if err := s.storage.SetBaseBranch(ctx, name); err != nil {
		return fmt.Errorf("failed to set base branch: %w", err)
	}
	s.mu.Lock()
	s.baseBranch = name
	s.mu.Unlock()
	return nil
}

// GetFileList lists the files on branch, the base branch when empty.
func (s *storageSession) GetFileList(ctx context.Context, branch string) ([]string, error) {
	s.log.Debug("Listing files on " + s.branchOrBase(branch))
	files, err := s.storage.GetFileList(ctx, s.branchOrBase(branch))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// BranchExists reports whether the branch exists.
func (s *storageSession) BranchExists(ctx context.Context, name string) (bool, error) {
	s.log.Debug("Checking branch " + name)
	ok, err := s.storage.BranchExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check branch: %w", err)
	}
	return ok, nil
}

// GetAllBranches lists branches starting with prefix.
func (s *storageSession) GetAllBranches(ctx context.Context, prefix string) ([]string, error) {
	s.log.Debug("Listing branches with prefix " + prefix)
	branches, err := s.storage.GetAllBranches(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}

// IsBranchStale reports whether the branch is behind the base branch.
func (s *storageSession) IsBranchStale(ctx context.Context, name string) (bool, error) {
	s.log.Debug("Checking staleness of " + name)
	stale, err := s.storage.IsBranchStale(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check staleness: %w", err)
	}
	return stale, nil
}

// GetFile reads path on branch, the base branch when empty.
func (s *storageSession) GetFile(ctx context.Context, path, branch string) (string, bool, error) {
	s.log.Debug(fmt.Sprintf("Reading %s on %s", path, s.branchOrBase(branch)))
	contents, found, err := s.storage.GetFile(ctx, path, s.branchOrBase(branch))
	if err != nil {
		return "", false, fmt.Errorf("failed to read file: %w", err)
	}
	return contents, found, nil
}

// CommitFilesToBranch commits the file set on top of the parent branch.
func (s *storageSession) CommitFilesToBranch(ctx context.Context, req CommitRequest) (string, error) {
	parent := s.branchOrBase(req.Parent)
	s.log.Debug(fmt.Sprintf("Committing %d file(s) to %s from %s", len(req.Files), req.Branch, parent))
	sha, err := s.storage.CommitFiles(ctx, git.CommitOptions{
		Branch:  req.Branch,
		Message: req.Message,
		Files:   req.Files,
		Parent:  parent,
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit to %s: %w", req.Branch, err)
	}
	return sha, nil
}

// DeleteBranch declines the branch pull request when closePR is set, then
// deletes the branch.
func (s *storageSession) DeleteBranch(ctx context.Context, name string, closePR bool) error {
	s.log.Debug(fmt.Sprintf("Deleting branch %s (close PR: %t)", name, closePR))
	if closePR && s.closer != nil {
		if err := s.closer.declineBranchPr(ctx, name); err != nil {
			return fmt.Errorf("failed to close pull request of %s: %w", name, err)
		}
	}
	if err := s.storage.DeleteBranch(ctx, name); err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	return nil
}

// MergeBranch fast-forwards the base branch to name.
func (s *storageSession) MergeBranch(ctx context.Context, name string) error {
	s.log.Debug("Merging branch " + name)
	if err := s.storage.MergeBranch(ctx, name); err != nil {
		return fmt.Errorf("failed to merge branch: %w", err)
	}
	return nil
}

// GetBranchLastCommitTime returns the committer time of the branch head.
func (s *storageSession) GetBranchLastCommitTime(ctx context.Context, name string) (time.Time, error) {
	t, err := s.storage.GetBranchLastCommitTime(ctx, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last commit time: %w", err)
	}
	return t, nil
}

// GetRepoStatus returns the working copy status.
func (s *storageSession) GetRepoStatus(ctx context.Context) (git.RepoStatus, error) {
	st, err := s.storage.GetRepoStatus(ctx)
	if err != nil {
		return git.RepoStatus{}, fmt.Errorf("failed to read repository status: %w", err)
	}
	return st, nil
}

// GetCommitMessages returns recent commit subjects of the base branch.
func (s *storageSession) GetCommitMessages(ctx context.Context) ([]string, error) {
	msgs, err := s.storage.GetCommitMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit messages: %w", err)
	}
	return msgs, nil
}

func (s *storageSession) branchHead(ctx context.Context, branch string) (string, error) {
	sha, err := s.storage.BranchHead(ctx, branch)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", branch, err)
	}
	return sha, nil
}

func (s *storageSession) branchOrBase(branch string) string {
	if branch == "" {
		return s.BaseBranch()
	}
	return branch
}

// prTarget returns the branch a new pull request targets.
func (s *storageSession) prTarget(useDefault bool) string {
	if useDefault {
		return s.defaultBranch
	}
	return s.BaseBranch()
}
