package bitbucket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	apiPrefix         = "/rest/api/1.0"
	buildStatusPrefix = "/rest/build-status/1.0"
	activityCommented = "COMMENTED"
	commentAdded      = "ADDED"
)

// ListProjects returns every project visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return AccumulateInto[Project](ctx, c, apiPrefix+"/projects", nil)
}

// ListRepositories returns every repository of project.
func (c *Client) ListRepositories(ctx context.Context, projectKey string) ([]Repository, error) {
	return AccumulateInto[Repository](ctx, c, apiPrefix+"/projects/"+url.PathEscape(projectKey)+"/repos", nil)
}

// SetBuildStatus records a build result for commit. The server keeps one
// status per (commit, key), so posting an existing key replaces it.
func (c *Client) SetBuildStatus(ctx context.Context, commit string, status BuildStatus) error {
	return c.Post(ctx, buildStatusPrefix+"/commits/"+url.PathEscape(commit), nil, status, nil)
}

// ListBuildStatuses returns every build status of commit.
func (c *Client) ListBuildStatuses(ctx context.Context, commit string) ([]BuildStatus, error) {
	return AccumulateInto[BuildStatus](ctx, c, buildStatusPrefix+"/commits/"+url.PathEscape(commit), nil)
}

// RepoClient is a Client bound to one repository.
type RepoClient struct {
	*Client
	project string
	slug    string
}

// Repo binds the client to project/slug.
func (c *Client) Repo(project, slug string) *RepoClient {
	return &RepoClient{Client: c, project: project, slug: slug}
}

func (r *RepoClient) path(parts ...string) string {
	p := apiPrefix + "/projects/" + url.PathEscape(r.project) + "/repos/" + url.PathEscape(r.slug)
	if len(parts) > 0 {
		p += "/" + strings.Join(parts, "/")
	}
	return p
}

func prPath(r *RepoClient, id int, parts ...string) string {
	return r.path(append([]string{"pull-requests", strconv.Itoa(id)}, parts...)...)
}

func versionQuery(version int) url.Values {
	return url.Values{"version": []string{strconv.Itoa(version)}}
}

func branchRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}

// GetRepository returns the repository description.
func (r *RepoClient) GetRepository(ctx context.Context) (*Repository, error) {
	var repo Repository
	if err := r.Client.Get(ctx, r.path(), nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// DefaultBranch returns the name of the repository default branch.
func (r *RepoClient) DefaultBranch(ctx context.Context) (string, error) {
	var b Branch
	if err := r.Client.Get(ctx, r.path("branches", "default"), nil, &b); err != nil {
		return "", err
	}
	return b.DisplayID, nil
}

// PullRequestSettings returns the pull request settings of the repository.
func (r *RepoClient) PullRequestSettings(ctx context.Context) (*PullRequestSettings, error) {
	var s PullRequestSettings
	if err := r.Client.Get(ctx, r.path("settings", "pull-requests"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListPullRequests lists outgoing pull requests. state is one of the State
// constants; branch, when set, restricts to pull requests from that branch.
func (r *RepoClient) ListPullRequests(ctx context.Context, state, branch string) ([]PullRequest, error) {
	q := url.Values{}
	if state == "" {
		state = StateAll
	}
	q.Set("state", state)
	if branch != "" {
		q.Set("at", branchRef(branch))
		q.Set("direction", "OUTGOING")
	}
	return AccumulateInto[PullRequest](ctx, r.Client, r.path("pull-requests"), q)
}

// GetPullRequest fetches a pull request by id.
func (r *RepoClient) GetPullRequest(ctx context.Context, id int) (*PullRequest, error) {
	var pr PullRequest
	if err := r.Client.Get(ctx, prPath(r, id), nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// CreatePullRequest opens a pull request from branch into target.
func (r *RepoClient) CreatePullRequest(ctx context.Context, branch, target, title, description string) (*PullRequest, error) {
	repo := &Repository{Slug: r.slug, Project: Project{Key: r.project}}
	in := PullRequest{
		Title:       title,
		Description: description,
		FromRef:     Ref{ID: branchRef(branch), Repository: repo},
		ToRef:       Ref{ID: branchRef(target), Repository: repo},
	}
	var pr PullRequest
	if err := r.Post(ctx, r.path("pull-requests"), nil, in, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// UpdatePullRequest sends title, description and reviewers for pr. The
// version must be the one last read; a stale version yields a 409.
func (r *RepoClient) UpdatePullRequest(ctx context.Context, pr *PullRequest) (*PullRequest, error) {
	in := struct {
		Version     int           `json:"version"`
		Title       string        `json:"title"`
		Description string        `json:"description"`
		Reviewers   []Participant `json:"reviewers"`
	}{pr.Version, pr.Title, pr.Description, pr.Reviewers}
	if in.Reviewers == nil {
		in.Reviewers = []Participant{}
	}
	var out PullRequest
	if err := r.Put(ctx, prPath(r, pr.ID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MergePullRequest merges pr at version.
func (r *RepoClient) MergePullRequest(ctx context.Context, id, version int) (*PullRequest, error) {
	var out PullRequest
	if err := r.Post(ctx, prPath(r, id, "merge"), versionQuery(version), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeclinePullRequest declines pr at version.
func (r *RepoClient) DeclinePullRequest(ctx context.Context, id, version int) (*PullRequest, error) {
	var out PullRequest
	if err := r.Post(ctx, prPath(r, id, "decline"), versionQuery(version), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChanges returns the files changed by a pull request.
func (r *RepoClient) ListChanges(ctx context.Context, id int) ([]Change, error) {
	return AccumulateInto[Change](ctx, r.Client, prPath(r, id, "changes"), url.Values{"withComments": []string{"false"}})
}

// ListComments returns the top-level comments of a pull request, read from
// its activity stream.
func (r *RepoClient) ListComments(ctx context.Context, id int) ([]Comment, error) {
	activities, err := AccumulateInto[Activity](ctx, r.Client, prPath(r, id, "activities"), nil)
	if err != nil {
		return nil, err
	}
	var comments []Comment
	for _, a := range activities {
		if a.Action == activityCommented && a.CommentAction == commentAdded && a.Comment != nil {
			comments = append(comments, *a.Comment)
		}
	}
	return comments, nil
}

// AddComment posts a new comment on a pull request.
func (r *RepoClient) AddComment(ctx context.Context, id int, text string) (*Comment, error) {
	var out Comment
	if err := r.Post(ctx, prPath(r, id, "comments"), nil, Comment{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComment replaces the text of a comment at version.
func (r *RepoClient) UpdateComment(ctx context.Context, id int, c Comment) (*Comment, error) {
	var out Comment
	if err := r.Put(ctx, prPath(r, id, "comments", strconv.Itoa(c.ID)), nil, c, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment at version.
func (r *RepoClient) DeleteComment(ctx context.Context, id, commentID, version int) error {
	return r.Client.Delete(ctx, prPath(r, id, "comments", strconv.Itoa(commentID)), versionQuery(version))
}

// FindUser looks a user up by name, slug or email.
func (c *Client) FindUser(ctx context.Context, filter string) (*User, error) {
	users, err := AccumulateInto[User](ctx, c, apiPrefix+"/users", url.Values{"filter": []string{filter}})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Name, filter) || strings.EqualFold(u.Slug, filter) || strings.EqualFold(u.EmailAddress, filter) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("bitbucket user %q: %w", filter, errUserNotFound)
}
