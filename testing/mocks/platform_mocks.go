package mocks

import (
	"context"
	"time"

	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/pkg/platform"
)

// Platform is a mock implementation of platform.Platform with call tracking.
type Platform struct {
	callLog

	// Configurable responses
	NameValue            string
	ListRepositoriesResp []platform.Repository
	ListRepositoriesErr  error
	InitRepoResponse     platform.Session
	InitRepoError        error
}

var _ platform.Platform = (*Platform)(nil)

// NewPlatform creates a new mock platform.
func NewPlatform() *Platform {
	return &Platform{NameValue: "mock"}
}

// Name implements platform.Platform.
func (m *Platform) Name() string {
	return m.NameValue
}

// ListRepositories implements platform.Platform.
func (m *Platform) ListRepositories(_ context.Context, hint hostrules.Hint) ([]platform.Repository, error) {
	m.trackCall("ListRepositories", map[string]any{"endpoint": hint.Endpoint})
	return m.ListRepositoriesResp, m.ListRepositoriesErr
}

// InitRepo implements platform.Platform.
//
//nolint:ireturn // Mirrors platform.Platform.
func (m *Platform) InitRepo(_ context.Context, opts platform.InitOptions) (platform.Session, error) {
	m.trackCall("InitRepo", map[string]any{
		"repository": opts.Repository.String(),
		"localDir":   opts.LocalDir,
	})
	return m.InitRepoResponse, m.InitRepoError
}

// Session is a partial platform.Session. Methods not overridden here panic
// through the nil embedded interface, so tests only stub what they use.
type Session struct {
	platform.Session
	callLog

	// Configurable responses
	RepositoryValue     platform.Repository
	BaseBranchValue     string
	BranchesResponse    []string
	LastCommitTimes     map[string]time.Time
	PrListResponse      []platform.PullRequest
	BranchPrResponse    *platform.PullRequest
	CreatePrResponse    *platform.PullRequest
	CreatePrError       error
	MergePrResponse     bool
	MergePrError        error
	CombinedStatus      platform.BranchState
	SetStatusError      error
	EnsureIssueResult   platform.EnsureResult
	EnsureIssueError    error
	EnsureCommentResult platform.EnsureResult
	EnsureCommentError  error
	ForceRebase         bool
	CloseError          error
}

// NewSession creates a session mock on base branch main.
func NewSession(repo platform.Repository) *Session {
	return &Session{
		RepositoryValue: repo,
		BaseBranchValue: "main",
		CombinedStatus:  platform.StateSuccess,
	}
}

// Repository implements platform.Session.
func (m *Session) Repository() platform.Repository {
	return m.RepositoryValue
}

// BaseBranch implements platform.Session.
func (m *Session) BaseBranch() string {
	return m.BaseBranchValue
}

// DefaultBranch implements platform.Session.
func (m *Session) DefaultBranch() string {
	return m.BaseBranchValue
}

// Close implements platform.Session.
func (m *Session) Close() error {
	m.trackCall("Close", map[string]any{})
	return m.CloseError
}

// GetAllBranches implements platform.Session.
func (m *Session) GetAllBranches(_ context.Context, prefix string) ([]string, error) {
	m.trackCall("GetAllBranches", map[string]any{"prefix": prefix})
	return m.BranchesResponse, nil
}

// GetBranchLastCommitTime implements platform.Session. Unknown branches
// return the zero time.
func (m *Session) GetBranchLastCommitTime(_ context.Context, name string) (time.Time, error) {
	m.trackCall("GetBranchLastCommitTime", map[string]any{"name": name})
	return m.LastCommitTimes[name], nil
}

// GetPrList implements platform.Session.
func (m *Session) GetPrList(context.Context) ([]platform.PullRequest, error) {
	m.trackCall("GetPrList", map[string]any{})
	return m.PrListResponse, nil
}

// GetBranchPr implements platform.Session.
func (m *Session) GetBranchPr(_ context.Context, branch string) (*platform.PullRequest, error) {
	m.trackCall("GetBranchPr", map[string]any{"branch": branch})
	return m.BranchPrResponse, nil
}

// CreatePr implements platform.Session.
func (m *Session) CreatePr(_ context.Context, opts platform.CreatePrOptions) (*platform.PullRequest, error) {
	m.trackCall("CreatePr", map[string]any{
		"branch": opts.Branch,
		"title":  opts.Title,
		"labels": opts.Labels,
	})
	return m.CreatePrResponse, m.CreatePrError
}

// UpdatePr implements platform.Session.
func (m *Session) UpdatePr(_ context.Context, number int, title, body string) error {
	m.trackCall("UpdatePr", map[string]any{
		"number": number,
		"title":  title,
		"body":   body,
	})
	return nil
}

// MergePr implements platform.Session.
func (m *Session) MergePr(_ context.Context, number int, branch string) (bool, error) {
	m.trackCall("MergePr", map[string]any{
		"number": number,
		"branch": branch,
	})
	return m.MergePrResponse, m.MergePrError
}

// GetCombinedBranchStatus implements platform.Session.
func (m *Session) GetCombinedBranchStatus(_ context.Context, branch string, required []string) (platform.BranchState, error) {
	m.trackCall("GetCombinedBranchStatus", map[string]any{
		"branch":   branch,
		"required": required,
	})
	return m.CombinedStatus, nil
}

// SetBranchStatus implements platform.Session.
func (m *Session) SetBranchStatus(_ context.Context, branch string, check platform.StatusCheck) error {
	m.trackCall("SetBranchStatus", map[string]any{
		"branch": branch,
		"check":  check,
	})
	return m.SetStatusError
}

// EnsureIssue implements platform.Session.
func (m *Session) EnsureIssue(_ context.Context, title, body string) (platform.EnsureResult, error) {
	m.trackCall("EnsureIssue", map[string]any{
		"title": title,
		"body":  body,
	})
	return m.EnsureIssueResult, m.EnsureIssueError
}

// EnsureIssueClosing implements platform.Session.
func (m *Session) EnsureIssueClosing(_ context.Context, title string) error {
	m.trackCall("EnsureIssueClosing", map[string]any{"title": title})
	return m.EnsureIssueError
}

// EnsureComment implements platform.Session.
func (m *Session) EnsureComment(_ context.Context, number int, topic, content string) (platform.EnsureResult, error) {
	m.trackCall("EnsureComment", map[string]any{
		"number":  number,
		"topic":   topic,
		"content": content,
	})
	return m.EnsureCommentResult, m.EnsureCommentError
}

// EnsureCommentRemoval implements platform.Session.
func (m *Session) EnsureCommentRemoval(_ context.Context, number int, topic string) error {
	m.trackCall("EnsureCommentRemoval", map[string]any{
		"number": number,
		"topic":  topic,
	})
	return m.EnsureCommentError
}

// GetRepoForceRebase implements platform.Session.
func (m *Session) GetRepoForceRebase(context.Context) (bool, error) {
	m.trackCall("GetRepoForceRebase", map[string]any{})
	return m.ForceRebase, nil
}

// GetPrBody implements platform.Session with a plain join.
func (m *Session) GetPrBody(input platform.PrBodyInput) string {
	return input.Summary
}
