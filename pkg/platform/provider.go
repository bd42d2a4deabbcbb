package platform

import (
	"context"
	"time"

	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/pkg/git"
)

// Platform is a hosting provider before any repository is selected.
type Platform interface {
	// Name returns the platform identifier ("bitbucket", "github", "gitlab").
	Name() string

	// ListRepositories returns every repository visible to the resolved token.
	// Any failure aborts the listing; no partial result is returned.
	ListRepositories(ctx context.Context, hint hostrules.Hint) ([]Repository, error)

	// InitRepo binds a new session to one repository. Each call returns an
	// independent handle; earlier sessions stay bound to their own storage.
	InitRepo(ctx context.Context, opts InitOptions) (Session, error)
}

// Session is the handle to one initialised repository. Every provider
// implements the whole interface; operations a provider cannot perform
// return an [UnsupportedError].
type Session interface {
	Repository() Repository
	BaseBranch() string
	DefaultBranch() string
	// Close releases the git storage. The session is unusable afterwards.
	Close() error

	BranchOperations
	StatusOperations
	PullRequestOperations
	IssueOperations
	CommentOperations
	OptionalOperations
}

// BranchOperations are backed by the session's git storage.
type BranchOperations interface {
	// SetBaseBranch switches the base branch. An empty name is a no-op.
	SetBaseBranch(ctx context.Context, name string) error
	GetFileList(ctx context.Context, branch string) ([]string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	GetAllBranches(ctx context.Context, prefix string) ([]string, error)
	IsBranchStale(ctx context.Context, name string) (bool, error)
	// GetFile returns found=false when the path or branch does not exist.
	GetFile(ctx context.Context, path, branch string) (contents string, found bool, err error)
	// CommitFilesToBranch commits every file in one commit or fails without
	// moving the branch. It returns the new commit SHA.
	CommitFilesToBranch(ctx context.Context, req CommitRequest) (string, error)
	// DeleteBranch deletes a branch, declining its open pull request first
	// when closePR is set.
	DeleteBranch(ctx context.Context, name string, closePR bool) error
	MergeBranch(ctx context.Context, name string) error
	GetBranchLastCommitTime(ctx context.Context, name string) (time.Time, error)
	GetRepoStatus(ctx context.Context) (git.RepoStatus, error)
	GetCommitMessages(ctx context.Context) ([]string, error)
}

// StatusOperations manage status checks on branch heads.
type StatusOperations interface {
	// GetCombinedBranchStatus reduces every check on the branch head, worst
	// state wins. A required context without a check counts as pending.
	GetCombinedBranchStatus(ctx context.Context, branch string, required []string) (BranchState, error)
	// GetBranchStatusCheck returns nil when no check has that context.
	GetBranchStatusCheck(ctx context.Context, branch, name string) (*StatusCheck, error)
	// SetBranchStatus upserts the check keyed by (branch, context).
	SetBranchStatus(ctx context.Context, branch string, check StatusCheck) error
}

// PullRequestOperations manage the pull request lifecycle.
type PullRequestOperations interface {
	GetPrList(ctx context.Context) ([]PullRequest, error)
	// FindPr returns nil when nothing matches.
	FindPr(ctx context.Context, opts FindPrOptions) (*PullRequest, error)
	// GetBranchPr returns the open pull request from branch, or nil.
	GetBranchPr(ctx context.Context, branch string) (*PullRequest, error)
	// CreatePr fails with [ErrPRAlreadyExists] when the provider reports a duplicate.
	CreatePr(ctx context.Context, opts CreatePrOptions) (*PullRequest, error)
	// GetPr returns nil when the pull request does not exist.
	GetPr(ctx context.Context, number int) (*PullRequest, error)
	GetPrFiles(ctx context.Context, number int) ([]string, error)
	// UpdatePr fails with [ErrPRNotOpen] on merged or declined pull requests.
	UpdatePr(ctx context.Context, number int, title, body string) error
	// MergePr returns true when the pull request is merged, including when it
	// already was.
	MergePr(ctx context.Context, number int, branch string) (bool, error)
	// GetPrBody renders a description within the provider's size limit.
	GetPrBody(input PrBodyInput) string
}

// IssueOperations are idempotent and keyed by issue title.
type IssueOperations interface {
	GetIssueList(ctx context.Context) ([]Issue, error)
	// FindIssue returns the open issue with that title, or nil.
	FindIssue(ctx context.Context, title string) (*Issue, error)
	EnsureIssue(ctx context.Context, title, body string) (EnsureResult, error)
	EnsureIssueClosing(ctx context.Context, title string) error
}

// CommentOperations are idempotent and keyed by topic.
type CommentOperations interface {
	EnsureComment(ctx context.Context, number int, topic, content string) (EnsureResult, error)
	EnsureCommentRemoval(ctx context.Context, number int, topic string) error
}

// OptionalOperations may return an [UnsupportedError].
type OptionalOperations interface {
	AddAssignees(ctx context.Context, number int, assignees []string) error
	AddReviewers(ctx context.Context, number int, reviewers []string) error
	DeleteLabel(ctx context.Context, number int, label string) error
	GetVulnerabilityAlerts(ctx context.Context) ([]VulnerabilityAlert, error)
	GetRepoForceRebase(ctx context.Context) (bool, error)
}

// GitStorage is the working copy a session delegates to.
type GitStorage interface {
	SetBaseBranch(ctx context.Context, name string) error
	DefaultBranch() (string, error)
	GetFileList(ctx context.Context, branch string) ([]string, error)
	BranchExists(ctx context.Context, name string) (bool, error)
	BranchHead(ctx context.Context, name string) (string, error)
	GetAllBranches(ctx context.Context, prefix string) ([]string, error)
	IsBranchStale(ctx context.Context, name string) (bool, error)
	GetFile(ctx context.Context, path, branch string) (string, bool, error)
	DeleteBranch(ctx context.Context, name string) error
	MergeBranch(ctx context.Context, name string) error
	GetBranchLastCommitTime(ctx context.Context, name string) (time.Time, error)
	GetRepoStatus(ctx context.Context) (git.RepoStatus, error)
	GetCommitMessages(ctx context.Context) ([]string, error)
	CommitFiles(ctx context.Context, opts git.CommitOptions) (string, error)
	Close() error
}

var _ GitStorage = (*git.Storage)(nil)

// StorageOpener opens the git storage of a session.
type StorageOpener func(ctx context.Context, opts git.Options) (GitStorage, error)

// OpenGitStorage is the default [StorageOpener].
//
//nolint:ireturn // Opener returns the storage behind its interface for injection.
func OpenGitStorage(ctx context.Context, opts git.Options) (GitStorage, error) {
	s, err := git.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CredentialResolver finds tokens for a platform and registers defaults.
type CredentialResolver interface {
	Find(platform string, hint hostrules.Hint) (hostrules.Credentials, bool)
	Update(creds hostrules.Credentials) error
}

var _ CredentialResolver = (*hostrules.Store)(nil)
