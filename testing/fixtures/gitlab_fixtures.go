package fixtures

import (
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// Test constants for GitLab fixtures.
const (
	defaultMRIID     = 7
	defaultProjectID = 42
)

// GitLab fixtures for common test scenarios

// ValidMergeRequest returns an opened GitLab merge request from
// feature-branch into main.
func ValidMergeRequest() *gitlab.MergeRequest {
	return &gitlab.MergeRequest{
		BasicMergeRequest: gitlab.BasicMergeRequest{
			IID:          defaultMRIID,
			Title:        "Test Merge Request",
			Description:  "Test description",
			State:        "opened",
			SourceBranch: "feature-branch",
			TargetBranch: "main",
			SHA:          defaultHeadSHA,
			Author: &gitlab.BasicUser{
				Username: "testuser",
			},
			WebURL: "https://gitlab.com/group/project/-/merge_requests/7",
		},
	}
}

// MergeRequestInState returns ValidMergeRequest with the given state.
func MergeRequestInState(state string) *gitlab.MergeRequest {
	mr := ValidMergeRequest()
	mr.State = state
	return mr
}

// GitLabProject returns a project using the given merge method.
func GitLabProject(mergeMethod string) *gitlab.Project {
	return &gitlab.Project{
		ID:                defaultProjectID,
		Path:              "project",
		PathWithNamespace: "group/project",
		DefaultBranch:     "main",
		HTTPURLToRepo:     "https://gitlab.com/group/project.git",
		SSHURLToRepo:      "git@gitlab.com:group/project.git",
		MergeMethod:       gitlab.MergeMethodValue(mergeMethod),
	}
}

// CommitStatus returns a commit status with the given name and status.
func CommitStatus(name, status string) *gitlab.CommitStatus {
	return &gitlab.CommitStatus{
		Name:        name,
		Status:      status,
		Description: name + " is " + status,
	}
}

// GitLabIssue returns an issue with the given IID, title and state.
func GitLabIssue(iid int64, title, state string) *gitlab.Issue {
	return &gitlab.Issue{
		IID:         iid,
		Title:       title,
		Description: "body of " + title,
		State:       state,
	}
}

// Note returns a user note with the given id and body.
func Note(id int64, body string) *gitlab.Note {
	return &gitlab.Note{
		ID:   id,
		Body: body,
	}
}
