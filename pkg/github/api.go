package github

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v69/github"
)

// RepoClient is a Client bound to one repository.
type RepoClient struct {
	*Client
	owner string
	repo  string
}

// Repository returns the repository metadata.
func (r *RepoClient) Repository(ctx context.Context) (*github.Repository, error) {
	r.log.Debug(fmt.Sprintf("Getting GitHub repository %s/%s", r.owner, r.repo))
	repo, _, err := r.client.Repositories.Get(ctx, r.owner, r.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository information: %w", err)
	}
	return repo, nil
}

// ListPullRequests lists pull requests in state, restricted to head when set.
func (r *RepoClient) ListPullRequests(ctx context.Context, state, head string) ([]*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}
	if head != "" {
		opts.Head = r.owner + ":" + head
	}
	var all []*github.PullRequest
	for {
		prs, resp, err := r.client.PullRequests.List(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests: %w", err)
		}
		all = append(all, prs...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetPullRequest fetches a pull request by number.
func (r *RepoClient) GetPullRequest(ctx context.Context, number int) (*github.PullRequest, error) {
	pr, _, err := r.client.PullRequests.Get(ctx, r.owner, r.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	return pr, nil
}

// CreatePullRequest opens a pull request from head into base.
func (r *RepoClient) CreatePullRequest(ctx context.Context, head, base, title, body string) (*github.PullRequest, error) {
	r.log.Debug(fmt.Sprintf("Creating pull request from %s to %s", head, base))
	pr, _, err := r.client.PullRequests.Create(ctx, r.owner, r.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	return pr, nil
}

// EditPullRequest replaces title and body.
func (r *RepoClient) EditPullRequest(ctx context.Context, number int, title, body string) error {
	_, _, err := r.client.PullRequests.Edit(ctx, r.owner, r.repo, number, &github.PullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to update pull request: %w", err)
	}
	return nil
}

// ClosePullRequest closes a pull request without merging it.
func (r *RepoClient) ClosePullRequest(ctx context.Context, number int) error {
	_, _, err := r.client.PullRequests.Edit(ctx, r.owner, r.repo, number, &github.PullRequest{
		State: github.Ptr("closed"),
	})
	if err != nil {
		return fmt.Errorf("failed to close pull request: %w", err)
	}
	return nil
}

// MergePullRequest merges a pull request with the repository default method.
func (r *RepoClient) MergePullRequest(ctx context.Context, number int) (bool, error) {
	res, _, err := r.client.PullRequests.Merge(ctx, r.owner, r.repo, number, "", nil)
	if err != nil {
		return false, fmt.Errorf("failed to merge pull request: %w", err)
	}
	return res.GetMerged(), nil
}

// ListPullRequestFiles returns the paths changed by a pull request.
func (r *RepoClient) ListPullRequestFiles(ctx context.Context, number int) ([]string, error) {
	files := []string{}
	opts := &github.ListOptions{PerPage: maxPerPage}
	for {
		page, resp, err := r.client.PullRequests.ListFiles(ctx, r.owner, r.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull request files: %w", err)
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
		}
		if resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}

// AddLabels adds labels to an issue or pull request.
func (r *RepoClient) AddLabels(ctx context.Context, number int, labels []string) error {
	if _, _, err := r.client.Issues.AddLabelsToIssue(ctx, r.owner, r.repo, number, labels); err != nil {
		return fmt.Errorf("failed to add labels: %w", err)
	}
	return nil
}

// RemoveLabel removes a label. A label that is not set is not an error.
func (r *RepoClient) RemoveLabel(ctx context.Context, number int, label string) error {
	_, err := r.client.Issues.RemoveLabelForIssue(ctx, r.owner, r.repo, number, label)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to remove label: %w", err)
	}
	return nil
}

// AddAssignees assigns users to an issue or pull request.
func (r *RepoClient) AddAssignees(ctx context.Context, number int, assignees []string) error {
	if _, _, err := r.client.Issues.AddAssignees(ctx, r.owner, r.repo, number, assignees); err != nil {
		return fmt.Errorf("failed to add assignees: %w", err)
	}
	return nil
}

// RequestReviewers requests reviews from users.
func (r *RepoClient) RequestReviewers(ctx context.Context, number int, reviewers []string) error {
	_, _, err := r.client.PullRequests.RequestReviewers(ctx, r.owner, r.repo, number, github.ReviewersRequest{
		Reviewers: reviewers,
	})
	if err != nil {
		return fmt.Errorf("failed to add reviewers: %w", err)
	}
	return nil
}

// ListStatuses returns the statuses of ref, newest first.
func (r *RepoClient) ListStatuses(ctx context.Context, ref string) ([]*github.RepoStatus, error) {
	var all []*github.RepoStatus
	opts := &github.ListOptions{PerPage: maxPerPage}
	for {
		statuses, resp, err := r.client.Repositories.ListStatuses(ctx, r.owner, r.repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list statuses: %w", err)
		}
		all = append(all, statuses...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateStatus records a status on sha.
func (r *RepoClient) CreateStatus(ctx context.Context, sha string, status *github.RepoStatus) error {
	if _, _, err := r.client.Repositories.CreateStatus(ctx, r.owner, r.repo, sha, status); err != nil {
		return fmt.Errorf("failed to create status: %w", err)
	}
	return nil
}

// ListIssues returns open and closed issues, skipping pull requests.
func (r *RepoClient) ListIssues(ctx context.Context) ([]*github.Issue, error) {
	var all []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}
	for {
		issues, resp, err := r.client.Issues.ListByRepo(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}
		for _, i := range issues {
			if !i.IsPullRequest() {
				all = append(all, i)
			}
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateIssue opens an issue.
func (r *RepoClient) CreateIssue(ctx context.Context, title, body string) error {
	_, _, err := r.client.Issues.Create(ctx, r.owner, r.repo, &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// EditIssue applies req to an issue.
func (r *RepoClient) EditIssue(ctx context.Context, number int, req *github.IssueRequest) error {
	if _, _, err := r.client.Issues.Edit(ctx, r.owner, r.repo, number, req); err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}
	return nil
}

// ListComments returns the comments of an issue or pull request.
func (r *RepoClient) ListComments(ctx context.Context, number int) ([]*github.IssueComment, error) {
	var all []*github.IssueComment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: maxPerPage}}
	for {
		comments, resp, err := r.client.Issues.ListComments(ctx, r.owner, r.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments: %w", err)
		}
		all = append(all, comments...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateComment adds a comment to an issue or pull request.
func (r *RepoClient) CreateComment(ctx context.Context, number int, body string) error {
	_, _, err := r.client.Issues.CreateComment(ctx, r.owner, r.repo, number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// EditComment replaces the body of a comment.
func (r *RepoClient) EditComment(ctx context.Context, id int64, body string) error {
	_, _, err := r.client.Issues.EditComment(ctx, r.owner, r.repo, id, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

// DeleteComment removes a comment.
func (r *RepoClient) DeleteComment(ctx context.Context, id int64) error {
	if _, err := r.client.Issues.DeleteComment(ctx, r.owner, r.repo, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// ListVulnerabilityAlerts returns the open Dependabot alerts.
func (r *RepoClient) ListVulnerabilityAlerts(ctx context.Context) ([]*github.DependabotAlert, error) {
	var all []*github.DependabotAlert
	opts := &github.ListAlertsOptions{
		State:       github.Ptr("open"),
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}
	for {
		alerts, resp, err := r.client.Dependabot.ListRepoAlerts(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list vulnerability alerts: %w", err)
		}
		all = append(all, alerts...)
		switch {
		case resp.After != "":
			opts.After = resp.After
		case resp.NextPage != 0:
			opts.ListOptions.Page = resp.NextPage
		default:
			return all, nil
		}
	}
}

// BranchProtection returns the protection of branch, or nil when unprotected.
func (r *RepoClient) BranchProtection(ctx context.Context, branch string) (*github.Protection, error) {
	p, _, err := r.client.Repositories.GetBranchProtection(ctx, r.owner, r.repo, branch)
	if errors.Is(err, github.ErrBranchNotProtected) || IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch protection: %w", err)
	}
	return p, nil
}
