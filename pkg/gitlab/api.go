package gitlab

import (
	"context"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// RepoClient is a Client bound to one project.
type RepoClient struct {
	*Client
	pid string
}

// ProjectPath returns the project path the client is bound to.
func (r *RepoClient) ProjectPath() string {
	return r.pid
}

// Project returns the project metadata.
func (r *RepoClient) Project(ctx context.Context) (*gitlab.Project, error) {
	r.log.Debug("Getting GitLab project " + r.pid)
	p, _, err := r.client.Projects.GetProject(r.pid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get project information: %w", err)
	}
	r.log.Debug(fmt.Sprintf("GitLab project %s has ID %d", r.pid, p.ID))
	return p, nil
}

// ListMergeRequests lists merge requests in state, restricted to
// sourceBranch when set.
func (r *RepoClient) ListMergeRequests(ctx context.Context, state, sourceBranch string) ([]*gitlab.BasicMergeRequest, error) {
	opts := &gitlab.ListProjectMergeRequestsOptions{
		State:       gitlab.Ptr(state),
		ListOptions: gitlab.ListOptions{PerPage: maxPerPage},
	}
	if sourceBranch != "" {
		opts.SourceBranch = gitlab.Ptr(sourceBranch)
	}
	var all []*gitlab.BasicMergeRequest
	for {
		mrs, resp, err := r.client.MergeRequests.ListProjectMergeRequests(r.pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge requests: %w", err)
		}
		all = append(all, mrs...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetMergeRequest fetches a merge request by IID.
func (r *RepoClient) GetMergeRequest(ctx context.Context, iid int64) (*gitlab.MergeRequest, error) {
	mr, _, err := r.client.MergeRequests.GetMergeRequest(r.pid, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get merge request details: %w", err)
	}
	return mr, nil
}

// CreateMergeRequest opens a merge request from source into target.
func (r *RepoClient) CreateMergeRequest(
	ctx context.Context, source, target, title, description string, labels []string,
) (*gitlab.MergeRequest, error) {
	r.log.Debug(fmt.Sprintf("Creating merge request from %s to %s", source, target))
	opts := &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(description),
		SourceBranch: gitlab.Ptr(source),
		TargetBranch: gitlab.Ptr(target),
	}
	if len(labels) > 0 {
		opts.Labels = (*gitlab.LabelOptions)(&labels)
	}
	mr, _, err := r.client.MergeRequests.CreateMergeRequest(r.pid, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create merge request: %w", err)
	}
	r.log.Debug(fmt.Sprintf("Merge request created - IID: %d, URL: %s", mr.IID, mr.WebURL))
	return mr, nil
}

// UpdateMergeRequest applies opts to a merge request.
func (r *RepoClient) UpdateMergeRequest(ctx context.Context, iid int64, opts *gitlab.UpdateMergeRequestOptions) error {
	if _, _, err := r.client.MergeRequests.UpdateMergeRequest(r.pid, iid, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to update merge request: %w", err)
	}
	return nil
}

// AcceptMergeRequest merges a merge request with the project merge method.
func (r *RepoClient) AcceptMergeRequest(ctx context.Context, iid int64) error {
	r.log.Debug(fmt.Sprintf("Merging merge request, IID: %d", iid))
	if _, _, err := r.client.MergeRequests.AcceptMergeRequest(r.pid, iid, nil, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to merge MR: %w", err)
	}
	return nil
}

// ListMergeRequestFiles returns the paths changed by a merge request.
func (r *RepoClient) ListMergeRequestFiles(ctx context.Context, iid int64) ([]string, error) {
	files := []string{}
	opts := &gitlab.ListMergeRequestDiffsOptions{ListOptions: gitlab.ListOptions{PerPage: maxPerPage}}
	for {
		diffs, resp, err := r.client.MergeRequests.ListMergeRequestDiffs(r.pid, iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge request diffs: %w", err)
		}
		for _, d := range diffs {
			files = append(files, d.NewPath)
		}
		if resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}

// FindUserIDs looks up each username.
func (r *RepoClient) FindUserIDs(ctx context.Context, usernames []string) ([]int64, []string, error) {
	var (
		ids     []int64
		missing []string
	)
	for _, name := range usernames {
		users, _, err := r.client.Users.ListUsers(&gitlab.ListUsersOptions{
			Username: gitlab.Ptr(name),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up user %s: %w", name, err)
		}
		if len(users) == 0 {
			missing = append(missing, name)
			continue
		}
		ids = append(ids, users[0].ID)
	}
	return ids, missing, nil
}

// ListCommitStatuses returns the statuses of sha.
func (r *RepoClient) ListCommitStatuses(ctx context.Context, sha string) ([]*gitlab.CommitStatus, error) {
	var all []*gitlab.CommitStatus
	opts := &gitlab.GetCommitStatusesOptions{ListOptions: gitlab.ListOptions{PerPage: maxPerPage}}
	for {
		statuses, resp, err := r.client.Commits.GetCommitStatuses(r.pid, sha, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list commit statuses: %w", err)
		}
		all = append(all, statuses...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// SetCommitStatus records a status on sha.
func (r *RepoClient) SetCommitStatus(ctx context.Context, sha string, opts *gitlab.SetCommitStatusOptions) error {
	if _, _, err := r.client.Commits.SetCommitStatus(r.pid, sha, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to set commit status: %w", err)
	}
	return nil
}

// ListIssues returns open and closed issues.
func (r *RepoClient) ListIssues(ctx context.Context) ([]*gitlab.Issue, error) {
	var all []*gitlab.Issue
	opts := &gitlab.ListProjectIssuesOptions{
		State:       gitlab.Ptr("all"),
		ListOptions: gitlab.ListOptions{PerPage: maxPerPage},
	}
	for {
		issues, resp, err := r.client.Issues.ListProjectIssues(r.pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}
		all = append(all, issues...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateIssue opens an issue.
func (r *RepoClient) CreateIssue(ctx context.Context, title, description string) error {
	_, _, err := r.client.Issues.CreateIssue(r.pid, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(description),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// UpdateIssue applies opts to an issue.
func (r *RepoClient) UpdateIssue(ctx context.Context, iid int64, opts *gitlab.UpdateIssueOptions) error {
	if _, _, err := r.client.Issues.UpdateIssue(r.pid, iid, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}
	return nil
}

// ListNotes returns the user notes of a merge request, skipping system notes.
func (r *RepoClient) ListNotes(ctx context.Context, iid int64) ([]*gitlab.Note, error) {
	var all []*gitlab.Note
	opts := &gitlab.ListMergeRequestNotesOptions{ListOptions: gitlab.ListOptions{PerPage: maxPerPage}}
	for {
		notes, resp, err := r.client.Notes.ListMergeRequestNotes(r.pid, iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list notes: %w", err)
		}
		for _, n := range notes {
			if !n.System {
				all = append(all, n)
			}
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateNote adds a note to a merge request.
func (r *RepoClient) CreateNote(ctx context.Context, iid int64, body string) error {
	_, _, err := r.client.Notes.CreateMergeRequestNote(r.pid, iid, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	return nil
}

// UpdateNote replaces the body of a note.
func (r *RepoClient) UpdateNote(ctx context.Context, iid, noteID int64, body string) error {
	_, _, err := r.client.Notes.UpdateMergeRequestNote(r.pid, iid, noteID, &gitlab.UpdateMergeRequestNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

// DeleteNote removes a note.
func (r *RepoClient) DeleteNote(ctx context.Context, iid, noteID int64) error {
	if _, err := r.client.Notes.DeleteMergeRequestNote(r.pid, iid, noteID, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}
