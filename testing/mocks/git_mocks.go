package mocks

import (
	"context"
	"time"

	"github.com/sgaunet/scm-adapter/pkg/git"
	"github.com/sgaunet/scm-adapter/pkg/platform"
)

// GitStorage is a mock implementation of platform.GitStorage with call tracking.
type GitStorage struct {
	callLog

	// Configurable responses
	DefaultBranchResponse string
	DefaultBranchError    error
	SetBaseBranchError    error
	FileListResponse      []string
	FileListError         error

	// BranchHeads maps branch names to head SHAs. Branches missing from the
	// map do not exist.
	BranchHeads map[string]string

	BranchHeadError        error
	AllBranchesResponse    []string
	AllBranchesError       error
	StaleResponse          bool
	StaleError             error
	Files                  map[string]string
	GetFileError           error
	DeleteBranchError      error
	MergeBranchError       error
	LastCommitTimeResponse time.Time
	LastCommitTimeError    error
	RepoStatusResponse     git.RepoStatus
	RepoStatusError        error
	CommitMessagesResponse []string
	CommitMessagesError    error
	CommitFilesResponse    string
	CommitFilesError       error
	CloseError             error
}

var _ platform.GitStorage = (*GitStorage)(nil)

// NewGitStorage creates a mock storage whose default branch is main.
func NewGitStorage() *GitStorage {
	return &GitStorage{
		DefaultBranchResponse: "main",
		BranchHeads:           map[string]string{},
		Files:                 map[string]string{},
	}
}

// Opener returns a platform.StorageOpener handing out m and recording the
// options it was called with.
func (m *GitStorage) Opener() platform.StorageOpener {
	return func(_ context.Context, opts git.Options) (platform.GitStorage, error) {
		m.trackCall("Open", map[string]any{
			"url":      opts.URL,
			"localDir": opts.LocalDir,
		})
		return m, nil
	}
}

// SetBaseBranch implements platform.GitStorage.
func (m *GitStorage) SetBaseBranch(_ context.Context, name string) error {
	m.trackCall("SetBaseBranch", map[string]any{"name": name})
	return m.SetBaseBranchError
}

// DefaultBranch implements platform.GitStorage.
func (m *GitStorage) DefaultBranch() (string, error) {
	m.trackCall("DefaultBranch", map[string]any{})
	return m.DefaultBranchResponse, m.DefaultBranchError
}

// GetFileList implements platform.GitStorage.
func (m *GitStorage) GetFileList(_ context.Context, branch string) ([]string, error) {
	m.trackCall("GetFileList", map[string]any{"branch": branch})
	return m.FileListResponse, m.FileListError
}

// BranchExists implements platform.GitStorage.
func (m *GitStorage) BranchExists(_ context.Context, name string) (bool, error) {
	m.trackCall("BranchExists", map[string]any{"name": name})
	_, ok := m.BranchHeads[name]
	return ok, nil
}

// BranchHead implements platform.GitStorage.
func (m *GitStorage) BranchHead(_ context.Context, name string) (string, error) {
	m.trackCall("BranchHead", map[string]any{"name": name})
	if m.BranchHeadError != nil {
		return "", m.BranchHeadError
	}
	sha, ok := m.BranchHeads[name]
	if !ok {
		return "", git.ErrBranchNotFound
	}
	return sha, nil
}

// GetAllBranches implements platform.GitStorage.
func (m *GitStorage) GetAllBranches(_ context.Context, prefix string) ([]string, error) {
	m.trackCall("GetAllBranches", map[string]any{"prefix": prefix})
	return m.AllBranchesResponse, m.AllBranchesError
}

// IsBranchStale implements platform.GitStorage.
func (m *GitStorage) IsBranchStale(_ context.Context, name string) (bool, error) {
	m.trackCall("IsBranchStale", map[string]any{"name": name})
	return m.StaleResponse, m.StaleError
}

// GetFile implements platform.GitStorage. Files is keyed by "branch:path".
func (m *GitStorage) GetFile(_ context.Context, path, branch string) (string, bool, error) {
	m.trackCall("GetFile", map[string]any{"path": path, "branch": branch})
	if m.GetFileError != nil {
		return "", false, m.GetFileError
	}
	contents, ok := m.Files[branch+":"+path]
	return contents, ok, nil
}

// DeleteBranch implements platform.GitStorage.
func (m *GitStorage) DeleteBranch(_ context.Context, name string) error {
	m.trackCall("DeleteBranch", map[string]any{"name": name})
	if m.DeleteBranchError != nil {
		return m.DeleteBranchError
	}
	delete(m.BranchHeads, name)
	return nil
}

// MergeBranch implements platform.GitStorage.
func (m *GitStorage) MergeBranch(_ context.Context, name string) error {
	m.trackCall("MergeBranch", map[string]any{"name": name})
	return m.MergeBranchError
}

// GetBranchLastCommitTime implements platform.GitStorage.
func (m *GitStorage) GetBranchLastCommitTime(_ context.Context, name string) (time.Time, error) {
	m.trackCall("GetBranchLastCommitTime", map[string]any{"name": name})
	return m.LastCommitTimeResponse, m.LastCommitTimeError
}

// GetRepoStatus implements platform.GitStorage.
func (m *GitStorage) GetRepoStatus(context.Context) (git.RepoStatus, error) {
	m.trackCall("GetRepoStatus", map[string]any{})
	return m.RepoStatusResponse, m.RepoStatusError
}

// GetCommitMessages implements platform.GitStorage.
func (m *GitStorage) GetCommitMessages(context.Context) ([]string, error) {
	m.trackCall("GetCommitMessages", map[string]any{})
	return m.CommitMessagesResponse, m.CommitMessagesError
}

// CommitFiles implements platform.GitStorage.
func (m *GitStorage) CommitFiles(_ context.Context, opts git.CommitOptions) (string, error) {
	m.trackCall("CommitFiles", map[string]any{
		"branch":  opts.Branch,
		"message": opts.Message,
		"files":   opts.Files,
		"parent":  opts.Parent,
	})
	if m.CommitFilesError != nil {
		return "", m.CommitFilesError
	}
	if m.CommitFilesResponse != "" {
		m.BranchHeads[opts.Branch] = m.CommitFilesResponse
	}
	return m.CommitFilesResponse, nil
}

// Close implements platform.GitStorage.
func (m *GitStorage) Close() error {
	m.trackCall("Close", map[string]any{})
	return m.CloseError
}
