package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v69/github"
	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/sgaunet/scm-adapter/pkg/config"
	"github.com/sgaunet/scm-adapter/pkg/git"
	ghclient "github.com/sgaunet/scm-adapter/pkg/github"
)

const githubTokenUser = "x-access-token"

// GitHubAdapter implements [Platform] for GitHub and GitHub Enterprise.
type GitHubAdapter struct {
	opts Options
	log  *bullets.Logger
}

// NewGitHubAdapter creates a GitHub adapter.
func NewGitHubAdapter(opts Options) *GitHubAdapter {
	opts = opts.withDefaults()
	return &GitHubAdapter{opts: opts, log: opts.Logger}
}

// Name returns "github".
func (a *GitHubAdapter) Name() string {
	return config.PlatformGitHub
}

func (a *GitHubAdapter) client(ctx context.Context, creds hostrules.Credentials) (*ghclient.Client, error) {
	c, err := ghclient.New(ctx, ghclient.Options{
		Endpoint: creds.Endpoint,
		Token:    creds.Token,
		Logger:   a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return c, nil
}

// ListRepositories lists the user's own repositories and those of every
// organization the user belongs to.
func (a *GitHubAdapter) ListRepositories(ctx context.Context, hint hostrules.Hint) ([]Repository, error) {
	creds, err := resolveCredentials(a.opts.Credentials, a.Name(), hint)
	if err != nil {
		return nil, err
	}
	if err := a.opts.Credentials.Update(creds); err != nil {
		return nil, fmt.Errorf("failed to register credentials: %w", err)
	}
	client, err := a.client(ctx, creds)
	if err != nil {
		return nil, err
	}

	orgs, err := client.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	// The empty namespace stands for the user's own repositories.
	namespaces := append([]string{""}, orgs...)
	return CollectRepositories(ctx, namespaces, func(ctx context.Context, org string) ([]Repository, error) {
		var (
			repos []*github.Repository
			err   error
		)
		if org == "" {
			repos, err = client.ListUserRepositories(ctx)
		} else {
			repos, err = client.ListOrgRepositories(ctx, org)
		}
		if err != nil {
			return nil, err
		}
		out := make([]Repository, len(repos))
		for i, r := range repos {
			out[i] = NewRepository(r.GetOwner().GetLogin(), r.GetName())
		}
		return out, nil
	})
}

// InitRepo opens a session on one repository.
//
//nolint:ireturn // Sessions are returned behind the Session interface.
func (a *GitHubAdapter) InitRepo(ctx context.Context, opts InitOptions) (Session, error) {
	if opts.Repository.Namespace == "" || opts.Repository.Name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRepository, opts.Repository.String())
	}
	creds, err := resolveCredentials(a.opts.Credentials, a.Name(), opts.Hint)
	if err != nil {
		return nil, err
	}
	client, err := a.client(ctx, creds)
	if err != nil {
		return nil, err
	}
	api := client.Repo(opts.Repository.Namespace, opts.Repository.Name)

	a.log.Debug("Initialising GitHub repository " + opts.Repository.String())
	info, err := api.Repository(ctx)
	if err != nil {
		return nil, err
	}
	cloneURL := info.GetCloneURL()
	if a.opts.SSHKey != "" && info.GetSSHURL() != "" {
		cloneURL = info.GetSSHURL()
	}
	auth, err := a.opts.gitAuth(creds, githubTokenUser)
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
	base, err := settleBaseBranch(ctx, storage, info.GetDefaultBranch())
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return newGitHubSession(opts.Repository, api, storage, base, a.log), nil
}

type gitHubSession struct {
	*storageSession
	api ghclient.APIClient
}

var _ Session = (*gitHubSession)(nil)

func newGitHubSession(repo Repository, api ghclient.APIClient, storage GitStorage, base string, log *bullets.Logger) *gitHubSession {
	s := &gitHubSession{
		storageSession: newStorageSession(repo, storage, base, log),
		api:            api,
	}
	s.closer = s
	return s
}

func fromGitHubPr(p *github.PullRequest) *PullRequest {
	state := PRStateOpen
	if p.GetState() == "closed" {
		state = PRStateDeclined
		if p.GetMerged() || p.MergedAt != nil {
			state = PRStateMerged
		}
	}
	return &PullRequest{
		Number:       p.GetNumber(),
		Title:        p.GetTitle(),
		Body:         p.GetBody(),
		SourceBranch: p.GetHead().GetRef(),
		TargetBranch: p.GetBase().GetRef(),
		State:        state,
		URL:          p.GetHTMLURL(),
		SHA:          p.GetHead().GetSHA(),
	}
}

// --- status checks ---

func (s *gitHubSession) listChecks(ctx context.Context, sha string) ([]StatusCheck, error) {
	statuses, err := s.api.ListStatuses(ctx, sha)
	if err != nil {
		return nil, err
	}
	checks := make([]StatusCheck, len(statuses))
	for i, st := range statuses {
		checks[i] = StatusCheck{
			Context:     st.GetContext(),
			Description: st.GetDescription(),
			State:       fromGitHubState(st.GetState()),
			TargetURL:   st.GetTargetURL(),
		}
	}
	return checks, nil
}

func fromGitHubState(state string) BranchState {
	switch state {
	case "success":
		return StateSuccess
	case "failure", "error":
		return StateFailure
	default:
		return StatePending
	}
}

func (s *gitHubSession) createCheck(ctx context.Context, sha string, check StatusCheck) error {
	status := &github.RepoStatus{
		State:       github.Ptr(string(check.State)),
		Context:     github.Ptr(check.Context),
		Description: github.Ptr(check.Description),
	}
	if check.TargetURL != "" {
		status.TargetURL = github.Ptr(check.TargetURL)
	}
	return s.api.CreateStatus(ctx, sha, status)
}

// GetCombinedBranchStatus reduces the commit statuses of the branch head.
func (s *gitHubSession) GetCombinedBranchStatus(ctx context.Context, branch string, required []string) (BranchState, error) {
	s.log.Debug("Getting combined status of " + branch)
	return combinedBranchStatus(ctx, s, branch, required)
}

// GetBranchStatusCheck returns the newest status with context name, or nil.
func (s *gitHubSession) GetBranchStatusCheck(ctx context.Context, branch, name string) (*StatusCheck, error) {
	s.log.Debug(fmt.Sprintf("Getting status check %s of %s", name, branch))
	return branchStatusCheck(ctx, s, branch, name)
}

// SetBranchStatus creates a commit status unless the newest one with the
// same context already matches.
func (s *gitHubSession) SetBranchStatus(ctx context.Context, branch string, check StatusCheck) error {
	s.log.Debug(fmt.Sprintf("Setting status check %s of %s to %s", check.Context, branch, check.State))
	_, err := setBranchStatus(ctx, s, branch, check)
	return err
}

// --- pull requests ---

// GetPrList lists every pull request of the repository.
func (s *gitHubSession) GetPrList(ctx context.Context) ([]PullRequest, error) {
	s.log.Debug("Listing pull requests")
	prs, err := s.api.ListPullRequests(ctx, "all", "")
	if err != nil {
		return nil, err
	}
	out := make([]PullRequest, len(prs))
	for i, p := range prs {
		out[i] = *fromGitHubPr(p)
	}
	return out, nil
}

// FindPr returns the newest pull request from the branch matching opts.
func (s *gitHubSession) FindPr(ctx context.Context, opts FindPrOptions) (*PullRequest, error) {
	s.log.Debug(fmt.Sprintf("Finding pull request from %s (title %q, state %s)", opts.Branch, opts.Title, opts.State))
	state := "all"
	if opts.State == PRFilterOpen {
		state = "open"
	}
	prs, err := s.api.ListPullRequests(ctx, state, opts.Branch)
	if err != nil {
		return nil, err
	}
	for _, p := range prs {
		pr := fromGitHubPr(p)
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

// GetBranchPr returns the open pull request from branch, or nil.
func (s *gitHubSession) GetBranchPr(ctx context.Context, branch string) (*PullRequest, error) {
	return s.FindPr(ctx, FindPrOptions{Branch: branch, State: PRFilterOpen})
}

// CreatePr opens a pull request and applies its labels.
func (s *gitHubSession) CreatePr(ctx context.Context, opts CreatePrOptions) (*PullRequest, error) {
	target := s.prTarget(opts.UseDefaultBranch)
	s.log.Debug(fmt.Sprintf("Creating pull request from %s to %s", opts.Branch, target))
	p, err := s.api.CreatePullRequest(ctx, opts.Branch, target, opts.Title, opts.Description)
	if err != nil {
		if ghclient.IsUnprocessable(err) && strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("%w: %w", ErrPRAlreadyExists, err)
		}
		return nil, err
	}
	pr := fromGitHubPr(p)
	if len(opts.Labels) > 0 {
		if err := s.api.AddLabels(ctx, pr.Number, opts.Labels); err != nil {
			return pr, err
		}
	}
	return pr, nil
}

// GetPr returns the pull request, or nil when it does not exist.
func (s *gitHubSession) GetPr(ctx context.Context, number int) (*PullRequest, error) {
	s.log.Debug(fmt.Sprintf("Getting pull request #%d", number))
	p, err := s.api.GetPullRequest(ctx, number)
	if ghclient.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromGitHubPr(p), nil
}

// GetPrFiles lists the paths changed by the pull request.
func (s *gitHubSession) GetPrFiles(ctx context.Context, number int) ([]string, error) {
	return s.api.ListPullRequestFiles(ctx, number)
}

func (s *gitHubSession) existingPr(ctx context.Context, number int) (*PullRequest, error) {
	pr, err := s.GetPr(ctx, number)
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, fmt.Errorf("%w: #%d", ErrPRNotFound, number)
	}
	return pr, nil
}

// UpdatePr replaces title and body of an open pull request.
func (s *gitHubSession) UpdatePr(ctx context.Context, number int, title, body string) error {
	s.log.Debug(fmt.Sprintf("Updating pull request #%d", number))
	pr, err := s.existingPr(ctx, number)
	if err != nil {
		return err
	}
	if !pr.IsOpen() {
		return fmt.Errorf("%w: #%d is %s", ErrPRNotOpen, number, pr.State)
	}
	return s.api.EditPullRequest(ctx, number, title, body)
}

// MergePr merges an open pull request. GitHub refusing the merge yields
// false without an error.
func (s *gitHubSession) MergePr(ctx context.Context, number int, branch string) (bool, error) {
	s.log.Debug(fmt.Sprintf("Merging pull request #%d (%s)", number, branch))
	pr, err := s.existingPr(ctx, number)
	if err != nil {
		return false, err
	}
	switch pr.State {
	case PRStateMerged:
		return true, nil
	case PRStateDeclined:
		return false, fmt.Errorf("%w: #%d is declined", ErrPRNotOpen, number)
	}
	merged, err := s.api.MergePullRequest(ctx, number)
	if err != nil {
		if ghclient.IsNotMergeable(err) {
			s.log.Warn(fmt.Sprintf("Pull request #%d could not be merged: %s", number, security.SanitizeError(err)))
			return false, nil
		}
		return false, err
	}
	return merged, nil
}

// GetPrBody renders a GitHub description.
func (s *gitHubSession) GetPrBody(input PrBodyInput) string {
	return renderPrBody(input, githubMaxBodyLength, nil)
}

func (s *gitHubSession) declineBranchPr(ctx context.Context, branch string) error {
	pr, err := s.GetBranchPr(ctx, branch)
	if err != nil || pr == nil {
		return err
	}
	s.log.Debug(fmt.Sprintf("Closing pull request #%d of %s", pr.Number, branch))
	return s.api.ClosePullRequest(ctx, pr.Number)
}

// --- issues ---

func (s *gitHubSession) listIssues(ctx context.Context) ([]Issue, error) {
	issues, err := s.api.ListIssues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Issue, len(issues))
	for i, is := range issues {
		state := IssueOpen
		if is.GetState() == "closed" {
			state = IssueClosed
		}
		out[i] = Issue{Number: is.GetNumber(), Title: is.GetTitle(), Body: is.GetBody(), State: state}
	}
	return out, nil
}

func (s *gitHubSession) createIssue(ctx context.Context, title, body string) error {
	return s.api.CreateIssue(ctx, title, body)
}

func (s *gitHubSession) updateIssueBody(ctx context.Context, number int, body string) error {
	return s.api.EditIssue(ctx, number, &github.IssueRequest{Body: github.Ptr(body)})
}

func (s *gitHubSession) closeIssue(ctx context.Context, number int) error {
	return s.api.EditIssue(ctx, number, &github.IssueRequest{State: github.Ptr("closed")})
}

// GetIssueList lists open and closed issues.
func (s *gitHubSession) GetIssueList(ctx context.Context) ([]Issue, error) {
	return s.listIssues(ctx)
}

// FindIssue returns the open issue titled title, or nil.
func (s *gitHubSession) FindIssue(ctx context.Context, title string) (*Issue, error) {
	return findOpenIssue(ctx, s, title)
}

// EnsureIssue creates the issue or updates the body of the open one.
func (s *gitHubSession) EnsureIssue(ctx context.Context, title, body string) (EnsureResult, error) {
	res, err := ensureIssue(ctx, s, title, body)
	if err != nil {
		return "", err
	}
	s.log.Debug(fmt.Sprintf("Issue %q %s", title, res))
	return res, nil
}

// EnsureIssueClosing closes the open issues titled title.
func (s *gitHubSession) EnsureIssueClosing(ctx context.Context, title string) error {
	return ensureIssueClosing(ctx, s, title)
}

// --- comments ---

func (s *gitHubSession) listComments(ctx context.Context, number int) ([]Comment, error) {
	comments, err := s.api.ListComments(ctx, number)
	if err != nil {
		return nil, err
	}
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = Comment{ID: c.GetID(), Body: c.GetBody()}
	}
	return out, nil
}

func (s *gitHubSession) addComment(ctx context.Context, number int, body string) error {
	return s.api.CreateComment(ctx, number, body)
}

func (s *gitHubSession) editComment(ctx context.Context, _ int, c Comment, body string) error {
	return s.api.EditComment(ctx, c.ID, body)
}

func (s *gitHubSession) deleteComment(ctx context.Context, _ int, c Comment) error {
	return s.api.DeleteComment(ctx, c.ID)
}

// EnsureComment adds or replaces the comment for topic.
func (s *gitHubSession) EnsureComment(ctx context.Context, number int, topic, content string) (EnsureResult, error) {
	res, err := ensureComment(ctx, s, number, topic, content)
	if err != nil {
		return "", err
	}
	s.log.Debug(fmt.Sprintf("Comment %q on #%d %s", topic, number, res))
	return res, nil
}

// EnsureCommentRemoval deletes the comment for topic, if present.
func (s *gitHubSession) EnsureCommentRemoval(ctx context.Context, number int, topic string) error {
	_, err := ensureCommentRemoval(ctx, s, number, topic)
	return err
}

// --- optional capabilities ---

// AddAssignees assigns users to the pull request.
func (s *gitHubSession) AddAssignees(ctx context.Context, number int, assignees []string) error {
	return s.api.AddAssignees(ctx, number, assignees)
}

// AddReviewers requests reviews from users.
func (s *gitHubSession) AddReviewers(ctx context.Context, number int, reviewers []string) error {
	return s.api.RequestReviewers(ctx, number, reviewers)
}

// DeleteLabel removes a label from the pull request.
func (s *gitHubSession) DeleteLabel(ctx context.Context, number int, label string) error {
	return s.api.RemoveLabel(ctx, number, label)
}

// GetVulnerabilityAlerts returns the open Dependabot alerts.
func (s *gitHubSession) GetVulnerabilityAlerts(ctx context.Context) ([]VulnerabilityAlert, error) {
	alerts, err := s.api.ListVulnerabilityAlerts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]VulnerabilityAlert, 0, len(alerts))
	for _, a := range alerts {
		vuln := a.GetSecurityVulnerability()
		out = append(out, VulnerabilityAlert{
			Package:         a.GetDependency().GetPackage().GetName(),
			Ecosystem:       a.GetDependency().GetPackage().GetEcosystem(),
			Manifest:        a.GetDependency().GetManifestPath(),
			Severity:        a.GetSecurityAdvisory().GetSeverity(),
			Summary:         a.GetSecurityAdvisory().GetSummary(),
			VulnerableRange: vuln.GetVulnerableVersionRange(),
			FixedVersion:    vuln.GetFirstPatchedVersion().GetIdentifier(),
		})
	}
	return out, nil
}

// GetRepoForceRebase reports whether branch protection on the base branch
// requires branches to be up to date before merging.
func (s *gitHubSession) GetRepoForceRebase(ctx context.Context) (bool, error) {
	p, err := s.api.BranchProtection(ctx, s.BaseBranch())
	if err != nil || p == nil || p.RequiredStatusChecks == nil {
		return false, err
	}
	return p.RequiredStatusChecks.Strict, nil
}
