package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// RepoStatus summarizes uncommitted changes in the working copy.
type RepoStatus struct {
	Modified  []string
	Added     []string
	Deleted   []string
	Untracked []string
}

// Clean reports whether the working copy has no changes at all.
func (r RepoStatus) Clean() bool {
	return len(r.Modified)+len(r.Added)+len(r.Deleted)+len(r.Untracked) == 0
}

// GetFileList returns every file path on branch, or on the base branch when
// branch is empty.
func (s *Storage) GetFileList(_ context.Context, branch string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	tree, err := s.tree(branch)
	if err != nil {
		return nil, err
	}

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// GetFile returns the contents of path on branch (base branch when empty).
// found is false when the file does not exist there.
func (s *Storage) GetFile(_ context.Context, path, branch string) (contents string, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}
	tree, err := s.tree(branch)
	if err != nil {
		return "", false, err
	}

	f, err := tree.File(strings.TrimPrefix(path, "/"))
	if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	contents, err = f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return contents, true, nil
}

// GetRepoStatus reports uncommitted changes in the working copy.
func (s *Storage) GetRepoStatus(_ context.Context) (RepoStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return RepoStatus{}, err
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return RepoStatus{}, fmt.Errorf("failed to get worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return RepoStatus{}, fmt.Errorf("failed to get repository status: %w", err)
	}

	var rs RepoStatus
	for path, fs := range st {
		code := fs.Worktree
		if code == gogit.Unmodified {
			code = fs.Staging
		}
		switch code {
		case gogit.Untracked:
			rs.Untracked = append(rs.Untracked, path)
		case gogit.Added:
			rs.Added = append(rs.Added, path)
		case gogit.Deleted:
			rs.Deleted = append(rs.Deleted, path)
		case gogit.Modified, gogit.Renamed, gogit.Copied, gogit.UpdatedButUnmerged:
			rs.Modified = append(rs.Modified, path)
		}
	}
	sort.Strings(rs.Modified)
	sort.Strings(rs.Added)
	sort.Strings(rs.Deleted)
	sort.Strings(rs.Untracked)
	return rs, nil
}

// GetCommitMessages returns the subject lines of the most recent commits on
// the base branch, newest first.
func (s *Storage) GetCommitMessages(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	hash, err := s.resolveBranch(s.baseBranch)
	if err != nil {
		return nil, err
	}

	iter, err := s.repo.Log(&gogit.LogOptions{From: hash})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer iter.Close()

	messages := make([]string, 0, maxCommitHistory)
	err = iter.ForEach(func(c *object.Commit) error {
		if len(messages) == maxCommitHistory {
			return storer.ErrStop
		}
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		messages = append(messages, subject)
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return messages, nil
}

func (s *Storage) tree(branch string) (*object.Tree, error) {
	if branch == "" {
		branch = s.baseBranch
	}
	c, err := s.commit(branch)
	if err != nil {
		return nil, err
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", branch, err)
	}
	return t, nil
}
