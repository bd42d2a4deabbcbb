package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/sgaunet/scm-adapter/pkg/config"
	"github.com/sgaunet/scm-adapter/pkg/git"
	glclient "github.com/sgaunet/scm-adapter/pkg/gitlab"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const (
	gitlabTokenUser        = "oauth2"
	gitlabFastForwardMerge = "ff"
	gitlabSemiLinearMerge  = "rebase_merge"
)

// GitLabAdapter implements [Platform] for gitlab.com and self-managed GitLab.
type GitLabAdapter struct {
	opts Options
	log  *bullets.Logger
}

// NewGitLabAdapter creates a GitLab adapter.
func NewGitLabAdapter(opts Options) *GitLabAdapter {
	opts = opts.withDefaults()
	return &GitLabAdapter{opts: opts, log: opts.Logger}
}

// Name returns "gitlab".
func (a *GitLabAdapter) Name() string {
	return config.PlatformGitLab
}

func (a *GitLabAdapter) client(creds hostrules.Credentials) (*glclient.Client, error) {
	c, err := glclient.New(glclient.Options{
		Endpoint: creds.Endpoint,
		Token:    creds.Token,
		Logger:   a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return c, nil
}

// ListRepositories lists the projects of every group the user belongs to
// plus the projects the user owns.
func (a *GitLabAdapter) ListRepositories(ctx context.Context, hint hostrules.Hint) ([]Repository, error) {
	creds, err := resolveCredentials(a.opts.Credentials, a.Name(), hint)
	if err != nil {
		return nil, err
	}
	if err := a.opts.Credentials.Update(creds); err != nil {
		return nil, fmt.Errorf("failed to register credentials: %w", err)
	}
	client, err := a.client(creds)
	if err != nil {
		return nil, err
	}

	groups, err := client.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	// A nil group stands for the user's own projects.
	sources := append([]*gitlab.Group{nil}, groups...)
	return CollectRepositories(ctx, sources, func(ctx context.Context, g *gitlab.Group) ([]Repository, error) {
		var (
			projects []*gitlab.Project
			err      error
		)
		if g == nil {
			projects, err = client.ListOwnedProjects(ctx)
		} else {
			projects, err = client.ListGroupProjects(ctx, g)
		}
		if err != nil {
			return nil, err
		}
		out := make([]Repository, 0, len(projects))
		for _, p := range projects {
			repo, err := ParseRepository(p.PathWithNamespace)
			if err != nil {
				a.log.Debug("Skipping project with unexpected path " + p.PathWithNamespace)
				continue
			}
			out = append(out, repo)
		}
		return out, nil
	})
}

// InitRepo opens a session on one project.
//
//nolint:ireturn // Sessions are returned behind the Session interface.
func (a *GitLabAdapter) InitRepo(ctx context.Context, opts InitOptions) (Session, error) {
	if opts.Repository.Namespace == "" || opts.Repository.Name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepository, opts.Repository.String())
	}
	creds, err := resolveCredentials(a.opts.Credentials, a.Name(), opts.Hint)
	if err != nil {
		return nil, err
	}
	client, err := a.client(creds)
	if err != nil {
		return nil, err
	}
	api := client.Repo(opts.Repository.String())

	a.log.Debug("Initialising GitLab project " + opts.Repository.String())
	project, err := api.Project(ctx)
	if err != nil {
		return nil, err
	}
	cloneURL := project.HTTPURLToRepo
	if a.opts.SSHKey != "" && project.SSHURLToRepo != "" {
		cloneURL = project.SSHURLToRepo
	}
	auth, err := a.opts.gitAuth(creds, gitlabTokenUser)
	if err != nil {
		return nil, err
	}
	storage, err := a.opts.OpenStorage(ctx, git.Options{
		URL:      cloneURL,
		LocalDir: opts.LocalDir,
		Auth:     auth,
		Author:   opts.GitAuthor,
		Logger:   a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage for %s: %w", opts.Repository, err)
	}
	base, err := settleBaseBranch(ctx, storage, project.DefaultBranch)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return newGitLabSession(opts.Repository, api, storage, base, a.log), nil
}

type gitLabSession struct {
	*storageSession
	api glclient.APIClient
}

var _ Session = (*gitLabSession)(nil)

func newGitLabSession(repo Repository, api glclient.APIClient, storage GitStorage, base string, log *bullets.Logger) *gitLabSession {
	s := &gitLabSession{
		storageSession: newStorageSession(repo, storage, base, log),
		api:            api,
	}
	s.closer = s
	return s
}

func gitlabPrState(state string) PRState {
	switch state {
	case "opened":
		return PRStateOpen
	case "merged":
		return PRStateMerged
	default:
		return PRStateDeclined
	}
}

func fromGitLabMr(mr *gitlab.BasicMergeRequest) *PullRequest {
	return &PullRequest{
		Number:       int(mr.IID),
		Title:        mr.Title,
		Body:         mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		State:        gitlabPrState(mr.State),
		URL:          mr.WebURL,
		SHA:          mr.SHA,
	}
}

// --- status checks ---

func fromGitLabStatus(status string) BranchState {
	switch status {
	case "success":
		return StateSuccess
	case "failed", "canceled":
		return StateFailure
	default:
		return StatePending
	}
}

func gitlabBuildState(s BranchState) gitlab.BuildStateValue {
	switch s {
	case StateSuccess:
		return gitlab.Success
	case StateFailure:
		return gitlab.Failed
	default:
		return gitlab.Pending
	}
}

func (s *gitLabSession) listChecks(ctx context.Context, sha string) ([]StatusCheck, error) {
	statuses, err := s.api.ListCommitStatuses(ctx, sha)
	if err != nil {
		return nil, err
	}
	checks := make([]StatusCheck, len(statuses))
	for i, st := range statuses {
		checks[i] = StatusCheck{
			Context:     st.Name,
			Description: st.Description,
			State:       fromGitLabStatus(st.Status),
			TargetURL:   st.TargetURL,
		}
	}
	return checks, nil
}

func (s *gitLabSession) createCheck(ctx context.Context, sha string, check StatusCheck) error {
	opts := &gitlab.SetCommitStatusOptions{
		State:       gitlabBuildState(check.State),
		Name:        gitlab.Ptr(check.Context),
		Description: gitlab.Ptr(check.Description),
	}
	if check.TargetURL != "" {
		opts.TargetURL = gitlab.Ptr(check.TargetURL)
	}
	return s.api.SetCommitStatus(ctx, sha, opts)
}

// GetCombinedBranchStatus reduces the commit statuses of the branch head.
func (s *gitLabSession) GetCombinedBranchStatus(ctx context.Context, branch string, required []string) (BranchState, error) {
	s.log.Debug("Getting combined status of " + branch)
	return combinedBranchStatus(ctx, s, branch, required)
}

// GetBranchStatusCheck returns the commit status named name, or nil.
func (s *gitLabSession) GetBranchStatusCheck(ctx context.Context, branch, name string) (*StatusCheck, error) {
	s.log.Debug(fmt.Sprintf("Getting status check %s of %s", name, branch))
	return branchStatusCheck(ctx, s, branch, name)
}

// SetBranchStatus sets a commit status unless it already matches.
func (s *gitLabSession) SetBranchStatus(ctx context.Context, branch string, check StatusCheck) error {
	s.log.Debug(fmt.Sprintf("Setting status check %s of %s to %s", check.Context, branch, check.State))
	_, err := setBranchStatus(ctx, s, branch, check)
	return err
}

// --- merge requests ---

// GetPrList lists every merge request of the project.
func (s *gitLabSession) GetPrList(ctx context.Context) ([]PullRequest, error) {
	s.log.Debug("Listing merge requests")
	mrs, err := s.api.ListMergeRequests(ctx, "all", "")
	if err != nil {
		return nil, err
	}
	out := make([]PullRequest, len(mrs))
	for i, mr := range mrs {
		out[i] = *fromGitLabMr(mr)
	}
	return out, nil
}

// FindPr returns the newest merge request from the branch matching opts.
func (s *gitLabSession) FindPr(ctx context.Context, opts FindPrOptions) (*PullRequest, error) {
	s.log.Debug(fmt.Sprintf("Finding merge request from %s (title %q, state %s)", opts.Branch, opts.Title, opts.State))
	state := "all"
	if opts.State == PRFilterOpen {
		state = "opened"
	}
	mrs, err := s.api.ListMergeRequests(ctx, state, opts.Branch)
	if err != nil {
		return nil, err
	}
	for _, mr := range mrs {
		pr := fromGitLabMr(mr)
		if pr.SourceBranch != opts.Branch || !opts.State.Matches(pr.State) {
			continue
		}
		if opts.Title != "" && pr.Title != opts.Title {
			continue
		}
		return pr, nil
	}
	return nil, nil
}

// GetBranchPr returns the open merge request from branch, or nil.
func (s *gitLabSession) GetBranchPr(ctx context.Context, branch string) (*PullRequest, error) {
	return s.FindPr(ctx, FindPrOptions{Branch: branch, State: PRFilterOpen})
}

// CreatePr opens a merge request with its labels.
func (s *gitLabSession) CreatePr(ctx context.Context, opts CreatePrOptions) (*PullRequest, error) {
	target := s.prTarget(opts.UseDefaultBranch)
	s.log.Debug(fmt.Sprintf("Creating merge request from %s to %s", opts.Branch, target))
	mr, err := s.api.CreateMergeRequest(ctx, opts.Branch, target, opts.Title, opts.Description, opts.Labels)
	if err != nil {
		if glclient.IsConflict(err) {
			return nil, fmt.Errorf("%w: %w", ErrPRAlreadyExists, err)
		}
		return nil, err
	}
	return fromGitLabMr(&mr.BasicMergeRequest), nil
}

// GetPr returns the merge request, or nil when it does not exist.
func (s *gitLabSession) GetPr(ctx context.Context, number int) (*PullRequest, error) {
	s.log.Debug(fmt.Sprintf("Getting merge request !%d", number))
	mr, err := s.api.GetMergeRequest(ctx, int64(number))
	if glclient.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromGitLabMr(&mr.BasicMergeRequest), nil
}

// GetPrFiles lists the paths changed by the merge request.
func (s *gitLabSession) GetPrFiles(ctx context.Context, number int) ([]string, error) {
	return s.api.ListMergeRequestFiles(ctx, int64(number))
}

// openMr fetches a merge request and rejects absent or closed ones.
func (s *gitLabSession) openMr(ctx context.Context, number int) (*gitlab.MergeRequest, error) {
	mr, err := s.api.GetMergeRequest(ctx, int64(number))
	if glclient.IsNotFound(err) {
		return nil, fmt.Errorf("%w: !%d", ErrPRNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	if state := gitlabPrState(mr.State); state != PRStateOpen {
		return mr, fmt.Errorf("%w: !%d is %s", ErrPRNotOpen, number, state)
	}
	return mr, nil
}

// UpdatePr replaces title and description of an open merge request.
func (s *gitLabSession) UpdatePr(ctx context.Context, number int, title, body string) error {
	s.log.Debug(fmt.Sprintf("Updating merge request !%d", number))
	if _, err := s.openMr(ctx, number); err != nil {
		return err
	}
	return s.api.UpdateMergeRequest(ctx, int64(number), &gitlab.UpdateMergeRequestOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(body),
	})
}

// MergePr accepts an open merge request. GitLab refusing the merge yields
// false without an error.
func (s *gitLabSession) MergePr(ctx context.Context, number int, branch string) (bool, error) {
	s.log.Debug(fmt.Sprintf("Merging merge request !%d (%s)", number, branch))
	mr, err := s.openMr(ctx, number)
	if err != nil {
		if mr != nil && gitlabPrState(mr.State) == PRStateMerged {
			return true, nil
		}
		return false, err
	}
	if err := s.api.AcceptMergeRequest(ctx, int64(number)); err != nil {
		if glclient.IsNotMergeable(err) {
			s.log.Warn(fmt.Sprintf("Merge request !%d could not be merged: %s", number, security.SanitizeError(err)))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetPrBody renders a GitLab description.
func (s *gitLabSession) GetPrBody(input PrBodyInput) string {
	return renderPrBody(input, gitlabMaxBodyLength, massageGitLabMarkdown)
}

func (s *gitLabSession) declineBranchPr(ctx context.Context, branch string) error {
	pr, err := s.GetBranchPr(ctx, branch)
	if err != nil || pr == nil {
		return err
	}
	s.log.Debug(fmt.Sprintf("Closing merge request !%d of %s", pr.Number, branch))
	return s.api.UpdateMergeRequest(ctx, int64(pr.Number), &gitlab.UpdateMergeRequestOptions{
		StateEvent: gitlab.Ptr("close"),
	})
}

// --- issues ---

func (s *gitLabSession) listIssues(ctx context.Context) ([]Issue, error) {
	issues, err := s.api.ListIssues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Issue, len(issues))
	for i, is := range issues {
		state := IssueOpen
		if is.State == "closed" {
			state = IssueClosed
		}
		out[i] = Issue{Number: int(is.IID), Title: is.Title, Body: is.Description, State: state}
	}
	return out, nil
}

func (s *gitLabSession) createIssue(ctx context.Context, title, body string) error {
	return s.api.CreateIssue(ctx, title, body)
}

func (s *gitLabSession) updateIssueBody(ctx context.Context, number int, body string) error {
	return s.api.UpdateIssue(ctx, int64(number), &gitlab.UpdateIssueOptions{Description: gitlab.Ptr(body)})
}

func (s *gitLabSession) closeIssue(ctx context.Context, number int) error {
	return s.api.UpdateIssue(ctx, int64(number), &gitlab.UpdateIssueOptions{StateEvent: gitlab.Ptr("close")})
}

// GetIssueList lists open and closed issues.
func (s *gitLabSession) GetIssueList(ctx context.Context) ([]Issue, error) {
	return s.listIssues(ctx)
}

// FindIssue returns the open issue titled title, or nil.
func (s *gitLabSession) FindIssue(ctx context.Context, title string) (*Issue, error) {
	return findOpenIssue(ctx, s, title)
}

// EnsureIssue creates the issue or updates the description of the open one.
func (s *gitLabSession) EnsureIssue(ctx context.Context, title, body string) (EnsureResult, error) {
	res, err := ensureIssue(ctx, s, title, body)
	if err != nil {
		return "", err
	}
	s.log.Debug(fmt.Sprintf("Issue %q %s", title, res))
	return res, nil
}

// EnsureIssueClosing closes the open issues titled title.
func (s *gitLabSession) EnsureIssueClosing(ctx context.Context, title string) error {
	return ensureIssueClosing(ctx, s, title)
}

// --- comments ---

func (s *gitLabSession) listComments(ctx context.Context, number int) ([]Comment, error) {
	notes, err := s.api.ListNotes(ctx, int64(number))
	if err != nil {
		return nil, err
	}
	out := make([]Comment, len(notes))
	for i, n := range notes {
		out[i] = Comment{ID: n.ID, Body: n.Body}
	}
	return out, nil
}

func (s *gitLabSession) addComment(ctx context.Context, number int, body string) error {
	return s.api.CreateNote(ctx, int64(number), body)
}

func (s *gitLabSession) editComment(ctx context.Context, number int, c Comment, body string) error {
	return s.api.UpdateNote(ctx, int64(number), c.ID, body)
}

func (s *gitLabSession) deleteComment(ctx context.Context, number int, c Comment) error {
	return s.api.DeleteNote(ctx, int64(number), c.ID)
}

// EnsureComment adds or replaces the note for topic.
func (s *gitLabSession) EnsureComment(ctx context.Context, number int, topic, content string) (EnsureResult, error) {
	res, err := ensureComment(ctx, s, number, topic, content)
	if err != nil {
		return "", err
	}
	s.log.Debug(fmt.Sprintf("Comment %q on !%d %s", topic, number, res))
	return res, nil
}

// EnsureCommentRemoval deletes the note for topic, if present.
func (s *gitLabSession) EnsureCommentRemoval(ctx context.Context, number int, topic string) error {
	_, err := ensureCommentRemoval(ctx, s, number, topic)
	return err
}

// --- optional capabilities ---

func (s *gitLabSession) userIDs(ctx context.Context, usernames []string) ([]int64, error) {
	ids, missing, err := s.api.FindUserIDs(ctx, usernames)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		s.log.Warn("Skipping unknown GitLab users: " + strings.Join(missing, ", "))
	}
	return ids, nil
}

func mergeUserIDs(existing []*gitlab.BasicUser, added []int64) []int64 {
	seen := make(map[int64]bool, len(existing)+len(added))
	out := make([]int64, 0, len(existing)+len(added))
	for _, u := range existing {
		if u != nil && !seen[u.ID] {
			seen[u.ID] = true
			out = append(out, u.ID)
		}
	}
	for _, id := range added {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// AddAssignees adds users to the assignees of the merge request.
func (s *gitLabSession) AddAssignees(ctx context.Context, number int, assignees []string) error {
	mr, err := s.api.GetMergeRequest(ctx, int64(number))
	if err != nil {
		return err
	}
	ids, err := s.userIDs(ctx, assignees)
	if err != nil || len(ids) == 0 {
		return err
	}
	merged := mergeUserIDs(mr.Assignees, ids)
	return s.api.UpdateMergeRequest(ctx, int64(number), &gitlab.UpdateMergeRequestOptions{AssigneeIDs: &merged})
}

// AddReviewers adds users to the reviewers of the merge request.
func (s *gitLabSession) AddReviewers(ctx context.Context, number int, reviewers []string) error {
	mr, err := s.api.GetMergeRequest(ctx, int64(number))
	if err != nil {
		return err
	}
	ids, err := s.userIDs(ctx, reviewers)
	if err != nil || len(ids) == 0 {
		return err
	}
	merged := mergeUserIDs(mr.Reviewers, ids)
	return s.api.UpdateMergeRequest(ctx, int64(number), &gitlab.UpdateMergeRequestOptions{ReviewerIDs: &merged})
}

// DeleteLabel removes a label from the merge request.
func (s *gitLabSession) DeleteLabel(ctx context.Context, number int, label string) error {
	return s.api.UpdateMergeRequest(ctx, int64(number), &gitlab.UpdateMergeRequestOptions{
		RemoveLabels: &gitlab.LabelOptions{label},
	})
}

// GetVulnerabilityAlerts is not available on GitLab.
func (s *gitLabSession) GetVulnerabilityAlerts(context.Context) ([]VulnerabilityAlert, error) {
	return nil, unsupported(config.PlatformGitLab, "GetVulnerabilityAlerts")
}

// GetRepoForceRebase reports whether the project merge method requires
// branches to be rebased, which is the case for fast-forward and
// semi-linear merges.
func (s *gitLabSession) GetRepoForceRebase(ctx context.Context) (bool, error) {
	p, err := s.api.Project(ctx)
	if err != nil {
		return false, err
	}
	method := string(p.MergeMethod)
	return method == gitlabFastForwardMerge || method == gitlabSemiLinearMerge, nil
}
