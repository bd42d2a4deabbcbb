package mocks

import (
	"context"
	"net/http"
	"slices"

	glpkg "github.com/sgaunet/scm-adapter/pkg/gitlab"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabError builds a client-go error response with the given status.
func GitLabError(status int, message string) error {
	req, _ := http.NewRequest(http.MethodGet, "https://gitlab.example.com/api/v4/projects", nil)
	return &gitlab.ErrorResponse{
		Response: &http.Response{StatusCode: status, Request: req},
		Message:  message,
	}
}

// GitLabAPIClient is a mock implementation of gitlab.APIClient with call
// tracking. Issue and note writes are applied to Issues and Notes.
type GitLabAPIClient struct {
	callLog

	// Configurable responses
	ProjectResponse *gitlab.Project
	ProjectError    error

	// MergeRequests backs ListMergeRequests and GetMergeRequest. Unknown
	// IIDs yield a 404.
	MergeRequests []*gitlab.MergeRequest

	ListMergeRequestsError     error
	CreateMergeRequestResponse *gitlab.MergeRequest
	CreateMergeRequestError    error
	UpdateMergeRequestError    error
	AcceptMergeRequestError    error
	MergeRequestFiles          []string
	Users                      map[string]int64
	Statuses                   []*gitlab.CommitStatus
	ListStatusesError          error
	SetStatusError             error
	Issues                     []*gitlab.Issue
	ListIssuesError            error
	CreateIssueError           error
	UpdateIssueError           error
	Notes                      []*gitlab.Note
	ListNotesError             error
	CreateNoteError            error
	UpdateNoteError            error
	DeleteNoteError            error
}

var _ glpkg.APIClient = (*GitLabAPIClient)(nil)

// NewGitLabAPIClient creates a new mock GitLab API client.
func NewGitLabAPIClient() *GitLabAPIClient {
	return &GitLabAPIClient{Users: map[string]int64{}}
}

// Project implements gitlab.APIClient.
func (m *GitLabAPIClient) Project(context.Context) (*gitlab.Project, error) {
	m.trackCall("Project", map[string]any{})
	return m.ProjectResponse, m.ProjectError
}

// ListMergeRequests implements gitlab.APIClient.
func (m *GitLabAPIClient) ListMergeRequests(_ context.Context, state, sourceBranch string) ([]*gitlab.BasicMergeRequest, error) {
	m.trackCall("ListMergeRequests", map[string]any{
		"state":        state,
		"sourceBranch": sourceBranch,
	})
	if m.ListMergeRequestsError != nil {
		return nil, m.ListMergeRequestsError
	}
	out := make([]*gitlab.BasicMergeRequest, len(m.MergeRequests))
	for i, mr := range m.MergeRequests {
		out[i] = &mr.BasicMergeRequest
	}
	return out, nil
}

// GetMergeRequest implements gitlab.APIClient.
func (m *GitLabAPIClient) GetMergeRequest(_ context.Context, iid int64) (*gitlab.MergeRequest, error) {
	m.trackCall("GetMergeRequest", map[string]any{"iid": iid})
	for _, mr := range m.MergeRequests {
		if mr.IID == iid {
			return mr, nil
		}
	}
	return nil, GitLabError(http.StatusNotFound, "404 Not found")
}

// CreateMergeRequest implements gitlab.APIClient.
func (m *GitLabAPIClient) CreateMergeRequest(
	_ context.Context, source, target, title, description string, labels []string,
) (*gitlab.MergeRequest, error) {
	m.trackCall("CreateMergeRequest", map[string]any{
		"source":      source,
		"target":      target,
		"title":       title,
		"description": description,
		"labels":      labels,
	})
	return m.CreateMergeRequestResponse, m.CreateMergeRequestError
}

// UpdateMergeRequest implements gitlab.APIClient.
func (m *GitLabAPIClient) UpdateMergeRequest(_ context.Context, iid int64, opts *gitlab.UpdateMergeRequestOptions) error {
	m.trackCall("UpdateMergeRequest", map[string]any{
		"iid":  iid,
		"opts": opts,
	})
	return m.UpdateMergeRequestError
}

// AcceptMergeRequest implements gitlab.APIClient.
func (m *GitLabAPIClient) AcceptMergeRequest(_ context.Context, iid int64) error {
	m.trackCall("AcceptMergeRequest", map[string]any{"iid": iid})
	return m.AcceptMergeRequestError
}

// ListMergeRequestFiles implements gitlab.APIClient.
func (m *GitLabAPIClient) ListMergeRequestFiles(_ context.Context, iid int64) ([]string, error) {
	m.trackCall("ListMergeRequestFiles", map[string]any{"iid": iid})
	return m.MergeRequestFiles, nil
}

// FindUserIDs implements gitlab.APIClient using the Users map.
func (m *GitLabAPIClient) FindUserIDs(_ context.Context, usernames []string) ([]int64, []string, error) {
	m.trackCall("FindUserIDs", map[string]any{"usernames": usernames})
	var (
		ids     []int64
		missing []string
	)
	for _, name := range usernames {
		id, ok := m.Users[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		ids = append(ids, id)
	}
	return ids, missing, nil
}

// ListCommitStatuses implements gitlab.APIClient.
func (m *GitLabAPIClient) ListCommitStatuses(_ context.Context, sha string) ([]*gitlab.CommitStatus, error) {
	m.trackCall("ListCommitStatuses", map[string]any{"sha": sha})
	return m.Statuses, m.ListStatusesError
}

// SetCommitStatus implements gitlab.APIClient.
func (m *GitLabAPIClient) SetCommitStatus(_ context.Context, sha string, opts *gitlab.SetCommitStatusOptions) error {
	m.trackCall("SetCommitStatus", map[string]any{
		"sha":  sha,
		"opts": opts,
	})
	return m.SetStatusError
}

// ListIssues implements gitlab.APIClient.
func (m *GitLabAPIClient) ListIssues(context.Context) ([]*gitlab.Issue, error) {
	m.trackCall("ListIssues", map[string]any{})
	return m.Issues, m.ListIssuesError
}

// CreateIssue implements gitlab.APIClient.
func (m *GitLabAPIClient) CreateIssue(_ context.Context, title, description string) error {
	m.trackCall("CreateIssue", map[string]any{
		"title":       title,
		"description": description,
	})
	if m.CreateIssueError != nil {
		return m.CreateIssueError
	}
	var iid int64 = 1
	for _, is := range m.Issues {
		iid = max(iid, is.IID+1)
	}
	m.Issues = append(m.Issues, &gitlab.Issue{IID: iid, Title: title, Description: description, State: "opened"})
	return nil
}

// UpdateIssue implements gitlab.APIClient.
func (m *GitLabAPIClient) UpdateIssue(_ context.Context, iid int64, opts *gitlab.UpdateIssueOptions) error {
	m.trackCall("UpdateIssue", map[string]any{
		"iid":  iid,
		"opts": opts,
	})
	if m.UpdateIssueError != nil {
		return m.UpdateIssueError
	}
	for _, is := range m.Issues {
		if is.IID != iid {
			continue
		}
		if opts.Description != nil {
			is.Description = *opts.Description
		}
		if opts.StateEvent != nil && *opts.StateEvent == "close" {
			is.State = "closed"
		}
	}
	return nil
}

// ListNotes implements gitlab.APIClient.
func (m *GitLabAPIClient) ListNotes(_ context.Context, iid int64) ([]*gitlab.Note, error) {
	m.trackCall("ListNotes", map[string]any{"iid": iid})
	return m.Notes, m.ListNotesError
}

// CreateNote implements gitlab.APIClient.
func (m *GitLabAPIClient) CreateNote(_ context.Context, iid int64, body string) error {
	m.trackCall("CreateNote", map[string]any{
		"iid":  iid,
		"body": body,
	})
	if m.CreateNoteError != nil {
		return m.CreateNoteError
	}
	var id int64 = 1
	for _, n := range m.Notes {
		id = max(id, n.ID+1)
	}
	m.Notes = append(m.Notes, &gitlab.Note{ID: id, Body: body})
	return nil
}

// UpdateNote implements gitlab.APIClient.
func (m *GitLabAPIClient) UpdateNote(_ context.Context, iid, noteID int64, body string) error {
	m.trackCall("UpdateNote", map[string]any{
		"iid":    iid,
		"noteID": noteID,
		"body":   body,
	})
	if m.UpdateNoteError != nil {
		return m.UpdateNoteError
	}
	for _, n := range m.Notes {
		if n.ID == noteID {
			n.Body = body
		}
	}
	return nil
}

// DeleteNote implements gitlab.APIClient.
func (m *GitLabAPIClient) DeleteNote(_ context.Context, iid, noteID int64) error {
	m.trackCall("DeleteNote", map[string]any{
		"iid":    iid,
		"noteID": noteID,
	})
	if m.DeleteNoteError != nil {
		return m.DeleteNoteError
	}
	m.Notes = slices.DeleteFunc(m.Notes, func(n *gitlab.Note) bool {
		return n.ID == noteID
	})
	return nil
}
