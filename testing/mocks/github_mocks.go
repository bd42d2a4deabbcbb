package mocks

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/go-github/v69/github"
	ghpkg "github.com/sgaunet/scm-adapter/pkg/github"
)

// GitHubError builds a go-github error response with the given status.
func GitHubError(status int, message string) error {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  message,
	}
}

// GitHubAPIClient is a mock implementation of github.APIClient with call
// tracking. Issue and comment writes are applied to Issues and Comments.
type GitHubAPIClient struct {
	callLog

	// Configurable responses
	RepositoryResponse *github.Repository
	RepositoryError    error

	// PullRequests backs ListPullRequests and GetPullRequest. Unknown
	// numbers yield a 404.
	PullRequests []*github.PullRequest

	ListPullRequestsError     error
	CreatePullRequestResponse *github.PullRequest
	CreatePullRequestError    error
	EditPullRequestError      error
	ClosePullRequestError     error
	MergePullRequestResponse  bool
	MergePullRequestError     error
	PullRequestFiles          []string
	AddLabelsError            error
	RemoveLabelError          error
	AddAssigneesError         error
	RequestReviewersError     error
	Statuses                  []*github.RepoStatus
	ListStatusesError         error
	CreateStatusError         error
	Issues                    []*github.Issue
	ListIssuesError           error
	CreateIssueError          error
	EditIssueError            error
	Comments                  []*github.IssueComment
	ListCommentsError         error
	CreateCommentError        error
	EditCommentError          error
	DeleteCommentError        error
	Alerts                    []*github.DependabotAlert
	AlertsError               error
	Protection                *github.Protection
	ProtectionError           error
}

var _ ghpkg.APIClient = (*GitHubAPIClient)(nil)

// NewGitHubAPIClient creates a new mock GitHub API client.
func NewGitHubAPIClient() *GitHubAPIClient {
	return &GitHubAPIClient{}
}

// Repository implements github.APIClient.
func (m *GitHubAPIClient) Repository(context.Context) (*github.Repository, error) {
	m.trackCall("Repository", map[string]any{})
	return m.RepositoryResponse, m.RepositoryError
}

// ListPullRequests implements github.APIClient.
func (m *GitHubAPIClient) ListPullRequests(_ context.Context, state, head string) ([]*github.PullRequest, error) {
	m.trackCall("ListPullRequests", map[string]any{
		"state": state,
		"head":  head,
	})
	return m.PullRequests, m.ListPullRequestsError
}

// GetPullRequest implements github.APIClient.
func (m *GitHubAPIClient) GetPullRequest(_ context.Context, number int) (*github.PullRequest, error) {
	m.trackCall("GetPullRequest", map[string]any{"number": number})
	for _, pr := range m.PullRequests {
		if pr.GetNumber() == number {
			return pr, nil
		}
	}
	return nil, GitHubError(http.StatusNotFound, "Not Found")
}

// CreatePullRequest implements github.APIClient.
func (m *GitHubAPIClient) CreatePullRequest(_ context.Context, head, base, title, body string) (*github.PullRequest, error) {
	m.trackCall("CreatePullRequest", map[string]any{
		"head":  head,
		"base":  base,
		"title": title,
		"body":  body,
	})
	return m.CreatePullRequestResponse, m.CreatePullRequestError
}

// EditPullRequest implements github.APIClient.
func (m *GitHubAPIClient) EditPullRequest(_ context.Context, number int, title, body string) error {
	m.trackCall("EditPullRequest", map[string]any{
		"number": number,
		"title":  title,
		"body":   body,
	})
	return m.EditPullRequestError
}

// ClosePullRequest implements github.APIClient.
func (m *GitHubAPIClient) ClosePullRequest(_ context.Context, number int) error {
	m.trackCall("ClosePullRequest", map[string]any{"number": number})
	return m.ClosePullRequestError
}

// MergePullRequest implements github.APIClient.
func (m *GitHubAPIClient) MergePullRequest(_ context.Context, number int) (bool, error) {
	m.trackCall("MergePullRequest", map[string]any{"number": number})
	return m.MergePullRequestResponse, m.MergePullRequestError
}

// ListPullRequestFiles implements github.APIClient.
func (m *GitHubAPIClient) ListPullRequestFiles(_ context.Context, number int) ([]string, error) {
	m.trackCall("ListPullRequestFiles", map[string]any{"number": number})
	return m.PullRequestFiles, nil
}

// AddLabels implements github.APIClient.
func (m *GitHubAPIClient) AddLabels(_ context.Context, number int, labels []string) error {
	m.trackCall("AddLabels", map[string]any{
		"number": number,
		"labels": labels,
	})
	return m.AddLabelsError
}

// RemoveLabel implements github.APIClient.
func (m *GitHubAPIClient) RemoveLabel(_ context.Context, number int, label string) error {
	m.trackCall("RemoveLabel", map[string]any{
		"number": number,
		"label":  label,
	})
	return m.RemoveLabelError
}

// AddAssignees implements github.APIClient.
func (m *GitHubAPIClient) AddAssignees(_ context.Context, number int, assignees []string) error {
	m.trackCall("AddAssignees", map[string]any{
		"number":    number,
		"assignees": assignees,
	})
	return m.AddAssigneesError
}

// RequestReviewers implements github.APIClient.
func (m *GitHubAPIClient) RequestReviewers(_ context.Context, number int, reviewers []string) error {
	m.trackCall("RequestReviewers", map[string]any{
		"number":    number,
		"reviewers": reviewers,
	})
	return m.RequestReviewersError
}

// ListStatuses implements github.APIClient.
func (m *GitHubAPIClient) ListStatuses(_ context.Context, ref string) ([]*github.RepoStatus, error) {
	m.trackCall("ListStatuses", map[string]any{"ref": ref})
	return m.Statuses, m.ListStatusesError
}

// CreateStatus implements github.APIClient.
func (m *GitHubAPIClient) CreateStatus(_ context.Context, sha string, status *github.RepoStatus) error {
	m.trackCall("CreateStatus", map[string]any{
		"sha":    sha,
		"status": status,
	})
	return m.CreateStatusError
}

// ListIssues implements github.APIClient.
func (m *GitHubAPIClient) ListIssues(context.Context) ([]*github.Issue, error) {
	m.trackCall("ListIssues", map[string]any{})
	return m.Issues, m.ListIssuesError
}

// CreateIssue implements github.APIClient.
func (m *GitHubAPIClient) CreateIssue(_ context.Context, title, body string) error {
	m.trackCall("CreateIssue", map[string]any{
		"title": title,
		"body":  body,
	})
	if m.CreateIssueError != nil {
		return m.CreateIssueError
	}
	number := 1
	for _, is := range m.Issues {
		number = max(number, is.GetNumber()+1)
	}
	m.Issues = append(m.Issues, &github.Issue{
		Number: github.Ptr(number),
		Title:  github.Ptr(title),
		Body:   github.Ptr(body),
		State:  github.Ptr("open"),
	})
	return nil
}

// EditIssue implements github.APIClient.
func (m *GitHubAPIClient) EditIssue(_ context.Context, number int, req *github.IssueRequest) error {
	m.trackCall("EditIssue", map[string]any{
		"number": number,
		"req":    req,
	})
	if m.EditIssueError != nil {
		return m.EditIssueError
	}
	for _, is := range m.Issues {
		if is.GetNumber() != number {
			continue
		}
		if req.Body != nil {
			is.Body = github.Ptr(req.GetBody())
		}
		if req.State != nil {
			is.State = github.Ptr(req.GetState())
		}
	}
	return nil
}

// ListComments implements github.APIClient.
func (m *GitHubAPIClient) ListComments(_ context.Context, number int) ([]*github.IssueComment, error) {
	m.trackCall("ListComments", map[string]any{"number": number})
	return m.Comments, m.ListCommentsError
}

// CreateComment implements github.APIClient.
func (m *GitHubAPIClient) CreateComment(_ context.Context, number int, body string) error {
	m.trackCall("CreateComment", map[string]any{
		"number": number,
		"body":   body,
	})
	if m.CreateCommentError != nil {
		return m.CreateCommentError
	}
	var id int64 = 1
	for _, c := range m.Comments {
		id = max(id, c.GetID()+1)
	}
	m.Comments = append(m.Comments, &github.IssueComment{ID: github.Ptr(id), Body: github.Ptr(body)})
	return nil
}

// EditComment implements github.APIClient.
func (m *GitHubAPIClient) EditComment(_ context.Context, id int64, body string) error {
	m.trackCall("EditComment", map[string]any{
		"id":   id,
		"body": body,
	})
	if m.EditCommentError != nil {
		return m.EditCommentError
	}
	for _, c := range m.Comments {
		if c.GetID() == id {
			c.Body = github.Ptr(body)
		}
	}
	return nil
}

// DeleteComment implements github.APIClient.
func (m *GitHubAPIClient) DeleteComment(_ context.Context, id int64) error {
	m.trackCall("DeleteComment", map[string]any{"id": id})
	if m.DeleteCommentError != nil {
		return m.DeleteCommentError
	}
	m.Comments = slices.DeleteFunc(m.Comments, func(c *github.IssueComment) bool {
		return c.GetID() == id
	})
	return nil
}

// ListVulnerabilityAlerts implements github.APIClient.
func (m *GitHubAPIClient) ListVulnerabilityAlerts(context.Context) ([]*github.DependabotAlert, error) {
	m.trackCall("ListVulnerabilityAlerts", map[string]any{})
	return m.Alerts, m.AlertsError
}

// BranchProtection implements github.APIClient.
func (m *GitHubAPIClient) BranchProtection(_ context.Context, branch string) (*github.Protection, error) {
	m.trackCall("BranchProtection", map[string]any{"branch": branch})
	return m.Protection, m.ProtectionError
}
