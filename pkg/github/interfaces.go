package github

import (
	"context"

	"github.com/google/go-github/v69/github"
)

// APIClient defines the repository-scoped GitHub operations used by the
// platform adapter. It enables dependency injection and black box testing
// with mock implementations.
type APIClient interface {
	// Repository returns the repository metadata, including the default branch.
	Repository(ctx context.Context) (*github.Repository, error)

	// ListPullRequests lists pull requests in state ("open" or "all"),
	// restricted to head when it is not empty.
	ListPullRequests(ctx context.Context, state, head string) ([]*github.PullRequest, error)
	GetPullRequest(ctx context.Context, number int) (*github.PullRequest, error)
	CreatePullRequest(ctx context.Context, head, base, title, body string) (*github.PullRequest, error)
	EditPullRequest(ctx context.Context, number int, title, body string) error
	ClosePullRequest(ctx context.Context, number int) error
	// MergePullRequest returns whether GitHub reports the pull request merged.
	MergePullRequest(ctx context.Context, number int) (bool, error)
	ListPullRequestFiles(ctx context.Context, number int) ([]string, error)

	AddLabels(ctx context.Context, number int, labels []string) error
	RemoveLabel(ctx context.Context, number int, label string) error
	AddAssignees(ctx context.Context, number int, assignees []string) error
	RequestReviewers(ctx context.Context, number int, reviewers []string) error

	// ListStatuses returns the commit statuses of ref, newest first.
	ListStatuses(ctx context.Context, ref string) ([]*github.RepoStatus, error)
	CreateStatus(ctx context.Context, sha string, status *github.RepoStatus) error

	// ListIssues lists open and closed issues, excluding pull requests.
	ListIssues(ctx context.Context) ([]*github.Issue, error)
	CreateIssue(ctx context.Context, title, body string) error
	EditIssue(ctx context.Context, number int, req *github.IssueRequest) error

	ListComments(ctx context.Context, number int) ([]*github.IssueComment, error)
	CreateComment(ctx context.Context, number int, body string) error
	EditComment(ctx context.Context, id int64, body string) error
	DeleteComment(ctx context.Context, id int64) error

	// ListVulnerabilityAlerts returns the open Dependabot alerts.
	ListVulnerabilityAlerts(ctx context.Context) ([]*github.DependabotAlert, error)
	// BranchProtection returns nil when the branch is not protected.
	BranchProtection(ctx context.Context, branch string) (*github.Protection, error)
}

var _ APIClient = (*RepoClient)(nil)
