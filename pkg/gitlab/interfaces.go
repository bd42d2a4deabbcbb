package gitlab

import (
	"context"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// APIClient defines the project-scoped GitLab operations used by the
// platform adapter. It enables dependency injection and black box testing
// with mock implementations.
type APIClient interface {
	// Project returns the project metadata, including default branch and
	// merge method.
	Project(ctx context.Context) (*gitlab.Project, error)

	// ListMergeRequests lists merge requests in state ("opened" or "all"),
	// restricted to sourceBranch when it is not empty.
	ListMergeRequests(ctx context.Context, state, sourceBranch string) ([]*gitlab.BasicMergeRequest, error)
	GetMergeRequest(ctx context.Context, iid int64) (*gitlab.MergeRequest, error)
	CreateMergeRequest(ctx context.Context, source, target, title, description string, labels []string) (*gitlab.MergeRequest, error)
	UpdateMergeRequest(ctx context.Context, iid int64, opts *gitlab.UpdateMergeRequestOptions) error
	AcceptMergeRequest(ctx context.Context, iid int64) error
	ListMergeRequestFiles(ctx context.Context, iid int64) ([]string, error)

	// FindUserIDs resolves usernames. Unknown users are returned in missing.
	FindUserIDs(ctx context.Context, usernames []string) (ids []int64, missing []string, err error)

	// ListCommitStatuses returns the commit statuses of sha, newest first.
	ListCommitStatuses(ctx context.Context, sha string) ([]*gitlab.CommitStatus, error)
	SetCommitStatus(ctx context.Context, sha string, opts *gitlab.SetCommitStatusOptions) error

	// ListIssues lists open and closed issues.
	ListIssues(ctx context.Context) ([]*gitlab.Issue, error)
	CreateIssue(ctx context.Context, title, description string) error
	UpdateIssue(ctx context.Context, iid int64, opts *gitlab.UpdateIssueOptions) error

	// ListNotes lists the non-system notes of a merge request.
	ListNotes(ctx context.Context, iid int64) ([]*gitlab.Note, error)
	CreateNote(ctx context.Context, iid int64, body string) error
	UpdateNote(ctx context.Context, iid, noteID int64, body string) error
	DeleteNote(ctx context.Context, iid, noteID int64) error
}

// Ensure RepoClient implements APIClient interface at compile time.
var _ APIClient = (*RepoClient)(nil)
