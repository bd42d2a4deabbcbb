package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/sgaunet/scm-adapter/pkg/bitbucket"
	"github.com/sgaunet/scm-adapter/pkg/config"
	"github.com/sgaunet/scm-adapter/pkg/git"
)

const bitbucketTokenUser = "x-token-auth"

// BitbucketAdapter implements [Platform] for Bitbucket Server.
type BitbucketAdapter struct {
	opts Options
	log  *bullets.Logger
}

// NewBitbucketAdapter creates a Bitbucket Server adapter.
func NewBitbucketAdapter(opts Options) *BitbucketAdapter {
	opts = opts.withDefaults()
	return &BitbucketAdapter{opts: opts, log: opts.Logger}
}

// Name returns "bitbucket".
func (a *BitbucketAdapter) Name() string {
	return config.PlatformBitbucket
}

func (a *BitbucketAdapter) client(creds hostrules.Credentials) (*bitbucket.Client, error) {
	c, err := bitbucket.New(bitbucket.Options{
		Endpoint: creds.Endpoint,
		Username: creds.Username,
		Token:    creds.Token,
		Logger:   a.log,
		RetryMax: a.opts.RetryMax,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Bitbucket client: %w", err)
	}
	return c, nil
}

// ListRepositories lists the repositories of every project visible to the token.
func (a *BitbucketAdapter) ListRepositories(ctx context.Context, hint hostrules.Hint) ([]Repository, error) {
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

	a.log.Debug("Listing Bitbucket projects")
	projects, err := client.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	repos, err := CollectRepositories(ctx, projects, func(ctx context.Context, p bitbucket.Project) ([]Repository, error) {
		list, err := client.ListRepositories(ctx, p.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", p.Key, err)
		}
		out := make([]Repository, len(list))
		for i, r := range list {
			out[i] = NewRepository(p.Key, r.Slug)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Debug(fmt.Sprintf("Found %d repositories in %d projects", len(repos), len(projects)))
	return repos, nil
}

// InitRepo opens a session on one repository.
//
//nolint:ireturn // Sessions are returned behind the Session interface.
func (a *BitbucketAdapter) InitRepo(ctx context.Context, opts InitOptions) (Session, error) {
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
	rc := client.Repo(opts.Repository.Namespace, opts.Repository.Name)

	a.log.Debug("Initialising Bitbucket repository " + opts.Repository.String())
	info, err := rc.GetRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", opts.Repository, err)
	}
	cloneURL := info.CloneURL()
	if a.opts.SSHKey != "" && info.SSHCloneURL() != "" {
		cloneURL = info.SSHCloneURL()
	}
	auth, err := a.opts.gitAuth(creds, bitbucketTokenUser)
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

	base, err := rc.DefaultBranch(ctx)
	if err != nil {
		a.log.Warn("Could not read default branch, using clone HEAD: " + security.SanitizeError(err).Error())
		base = ""
	}
	base, err = settleBaseBranch(ctx, storage, base)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	s := &bitbucketSession{
		storageSession: newStorageSession(opts.Repository, storage, base, a.log),
		repo:           rc,
	}
	s.closer = s
	return s, nil
}

// settleBaseBranch makes storage use base, or adopts the storage HEAD when
// base is empty.
func settleBaseBranch(ctx context.Context, storage GitStorage, base string) (string, error) {
	if base == "" {
		head, err := storage.DefaultBranch()
		if err != nil {
			return "", fmt.Errorf("failed to determine base branch: %w", err)
		}
		return head, nil
	}
	if err := storage.SetBaseBranch(ctx, base); err != nil {
		return "", fmt.Errorf("failed to set base branch %s: %w", base, err)
	}
	return base, nil
}

type bitbucketSession struct {
	*storageSession
	repo *bitbucket.RepoClient
}

var _ Session = (*bitbucketSession)(nil)

func bitbucketPrState(state string) PRState {
	switch state {
	case bitbucket.StateMerged:
		return PRStateMerged
	case bitbucket.StateDeclined:
		return PRStateDeclined
	default:
		return PRStateOpen
	}
}

func fromBitbucketPr(p *bitbucket.PullRequest) *PullRequest {
	return &PullRequest{
		Number:       p.ID,
		Title:        p.Title,
		Body:         p.Description,
		SourceBranch: refName(p.FromRef),
		TargetBranch: refName(p.ToRef),
		State:        bitbucketPrState(p.State),
		URL:          p.URL(),
		Version:      p.Version,
		SHA:          p.FromRef.LatestCommit,
	}
}

func refName(r bitbucket.Ref) string {
	if r.DisplayID != "" {
		return r.DisplayID
	}
	return strings.TrimPrefix(r.ID, "refs/heads/")
}

// --- status checks ---

func bitbucketBuildState(s BranchState) string {
	switch s {
	case StateSuccess:
		return bitbucket.BuildSuccessful
	case StateFailure:
		return bitbucket.BuildFailed
	default:
		return bitbucket.BuildInProgress
	}
}

func fromBitbucketBuildState(s string) BranchState {
	switch s {
	case bitbucket.BuildSuccessful:
		return StateSuccess
	case bitbucket.BuildFailed:
		return StateFailure
	default:
		return StatePending
	}
}

func (s *bitbucketSession) listChecks(ctx context.Context, sha string) ([]StatusCheck, error) {
	statuses, err := s.repo.ListBuildStatuses(ctx, sha)
	if err != nil {
		return nil, fmt.Errorf("failed to list build statuses: %w", err)
	}
	checks := make([]StatusCheck, len(statuses))
	for i, st := range statuses {
		checks[i] = StatusCheck{
			Context:     st.Key,
			Description: st.Description,
			State:       fromBitbucketBuildState(st.State),
			TargetURL:   st.URL,
		}
	}
	return checks, nil
}

func (s *bitbucketSession) createCheck(ctx context.Context, sha string, check StatusCheck) error {
	err := s.repo.SetBuildStatus(ctx, sha, bitbucket.BuildStatus{
		State:       bitbucketBuildState(check.State),
		Key:         check.Context,
		Name:        check.Context,
		URL:         check.TargetURL,
		Description: check.Description,
	})
	if err != nil {
		return fmt.Errorf("failed to set build status: %w", err)
	}
	return nil
}

// GetCombinedBranchStatus reduces the build statuses of the branch head.
func (s *bitbucketSession) GetCombinedBranchStatus(ctx context.Context, branch string, required []string) (BranchState, error) {
	s.log.Debug("Getting combined status of " + branch)
	return combinedBranchStatus(ctx, s, branch, required)
}

// GetBranchStatusCheck returns the build status keyed name, or nil.
func (s *bitbucketSession) GetBranchStatusCheck(ctx context.Context, branch, name string) (*StatusCheck, error) {
	s.log.Debug(fmt.Sprintf("Getting status check %s of %s", name, branch))
	return branchStatusCheck(ctx, s, branch, name)
}

// SetBranchStatus upserts a build status. The server requires a URL, so
// checks without one point at the server.
func (s *bitbucketSession) SetBranchStatus(ctx context.Context, branch string, check StatusCheck) error {
	if check.TargetURL == "" {
		check.TargetURL = s.repo.BaseURL()
	}
	s.log.Debug(fmt.Sprintf("Setting status check %s of %s to %s", check.Context, branch, check.State))
	written, err := setBranchStatus(ctx, s, branch, check)
	if err != nil {
		return err
	}
	if !written {
		s.log.Debug("Status check " + check.Context + " already up to date")
	}
	return nil
}

// --- pull requests ---

// GetPrList lists every pull request of the repository.
func (s *bitbucketSession) GetPrList(ctx context.Context) ([]PullRequest, error) {
	s.log.Debug("Listing pull requests")
	prs, err := s.repo.ListPullRequests(ctx, bitbucket.StateAll, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	out := make([]PullRequest, len(prs))
	for i := range prs {
		out[i] = *fromBitbucketPr(&prs[i])
	}
	return out, nil
}

// FindPr returns the newest pull request from the branch matching opts.
func (s *bitbucketSession) FindPr(ctx context.Context, opts FindPrOptions) (*PullRequest, error) {
	s.log.Debug(fmt.Sprintf("Finding pull request from %s (title %q, state %s)", opts.Branch, opts.Title, opts.State))
	state := bitbucket.StateAll
	if opts.State == PRFilterOpen {
		state = bitbucket.StateOpen
	}
	prs, err := s.repo.ListPullRequests(ctx, state, opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	for i := range prs {
		pr := fromBitbucketPr(&prs[i])
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
func (s *bitbucketSession) GetBranchPr(ctx context.Context, branch string) (*PullRequest, error) {
	return s.FindPr(ctx, FindPrOptions{Branch: branch, State: PRFilterOpen})
}

// CreatePr opens a pull request. Bitbucket Server has no labels; they are ignored.
func (s *bitbucketSession) CreatePr(ctx context.Context, opts CreatePrOptions) (*PullRequest, error) {
	target := s.prTarget(opts.UseDefaultBranch)
	s.log.Debug(fmt.Sprintf("Creating pull request from %s to %s", opts.Branch, target))
	if len(opts.Labels) > 0 {
		s.log.Debug("Labels are not supported by Bitbucket Server, ignoring " + strings.Join(opts.Labels, ", "))
	}
	pr, err := s.repo.CreatePullRequest(ctx, opts.Branch, target, opts.Title, opts.Description)
	if err != nil {
		if bitbucket.IsConflict(err) {
			return nil, fmt.Errorf("%w: %w", ErrPRAlreadyExists, err)
		}
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	return fromBitbucketPr(pr), nil
}

// GetPr returns the pull request, or nil when it does not exist.
func (s *bitbucketSession) GetPr(ctx context.Context, number int) (*PullRequest, error) {
	s.log.Debug(fmt.Sprintf("Getting pull request #%d", number))
	pr, err := s.repo.GetPullRequest(ctx, number)
	if bitbucket.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	return fromBitbucketPr(pr), nil
}

// GetPrFiles lists the paths changed by the pull request.
func (s *bitbucketSession) GetPrFiles(ctx context.Context, number int) ([]string, error) {
	changes, err := s.repo.ListChanges(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull request changes: %w", err)
	}
	files := make([]string, 0, len(changes))
	for _, c := range changes {
		files = append(files, c.Path.ToString)
	}
	return files, nil
}

// openPr fetches a pull request and rejects absent or closed ones.
func (s *bitbucketSession) openPr(ctx context.Context, number int) (*bitbucket.PullRequest, error) {
	pr, err := s.repo.GetPullRequest(ctx, number)
	if bitbucket.IsNotFound(err) {
		return nil, fmt.Errorf("%w: #%d", ErrPRNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	if pr.State != bitbucket.StateOpen {
		return nil, fmt.Errorf("%w: #%d is %s", ErrPRNotOpen, number, strings.ToLower(pr.State))
	}
	return pr, nil
}

// UpdatePr replaces title and description of an open pull request.
func (s *bitbucketSession) UpdatePr(ctx context.Context, number int, title, body string) error {
	s.log.Debug(fmt.Sprintf("Updating pull request #%d", number))
	pr, err := s.openPr(ctx, number)
	if err != nil {
		return err
	}
	pr.Title = title
	pr.Description = body
	if _, err := s.repo.UpdatePullRequest(ctx, pr); err != nil {
		return fmt.Errorf("failed to update pull request: %w", err)
	}
	return nil
}

// MergePr merges an open pull request. A merge the server refuses, such as
// a conflict or an unmet merge check, yields false without an error. A
// stale version is refetched and the merge retried once.
func (s *bitbucketSession) MergePr(ctx context.Context, number int, branch string) (bool, error) {
	s.log.Debug(fmt.Sprintf("Merging pull request #%d (%s)", number, branch))
	pr, err := s.repo.GetPullRequest(ctx, number)
	if bitbucket.IsNotFound(err) {
		return false, fmt.Errorf("%w: #%d", ErrPRNotFound, number)
	}
	if err != nil {
		return false, fmt.Errorf("failed to get pull request: %w", err)
	}
	switch pr.State {
	case bitbucket.StateMerged:
		return true, nil
	case bitbucket.StateDeclined:
		return false, fmt.Errorf("%w: #%d is declined", ErrPRNotOpen, number)
	}
	_, err = s.repo.MergePullRequest(ctx, number, pr.Version)
	if bitbucket.IsOutOfDate(err) {
		s.log.Debug(fmt.Sprintf("Pull request #%d version %d is stale, retrying", number, pr.Version))
		pr, err = s.repo.GetPullRequest(ctx, number)
		if err != nil {
			return false, fmt.Errorf("failed to refresh pull request: %w", err)
		}
		_, err = s.repo.MergePullRequest(ctx, number, pr.Version)
		if bitbucket.IsOutOfDate(err) {
			return false, fmt.Errorf("failed to merge pull request: %w", err)
		}
	}
	if err != nil {
		if bitbucket.IsConflict(err) {
			s.log.Warn(fmt.Sprintf("Pull request #%d could not be merged: %s", number, security.SanitizeError(err)))
			return false, nil
		}
		return false, fmt.Errorf("failed to merge pull request: %w", err)
	}
	return true, nil
}

// GetPrBody renders a description Bitbucket Server can display.
func (s *bitbucketSession) GetPrBody(input PrBodyInput) string {
	return renderPrBody(input, bitbucketMaxBodyLength, massageBitbucketMarkdown)
}

func (s *bitbucketSession) declineBranchPr(ctx context.Context, branch string) error {
	pr, err := s.GetBranchPr(ctx, branch)
	if err != nil || pr == nil {
		return err
	}
	s.log.Debug(fmt.Sprintf("Declining pull request #%d of %s", pr.Number, branch))
	if _, err := s.repo.DeclinePullRequest(ctx, pr.Number, pr.Version); err != nil {
		return fmt.Errorf("failed to decline pull request: %w", err)
	}
	return nil
}

// --- issues ---

// GetIssueList is unsupported: Bitbucket Server has no issue tracker.
func (s *bitbucketSession) GetIssueList(context.Context) ([]Issue, error) {
	return nil, unsupported(config.PlatformBitbucket, "GetIssueList")
}

// FindIssue is unsupported: Bitbucket Server has no issue tracker.
func (s *bitbucketSession) FindIssue(context.Context, string) (*Issue, error) {
	return nil, unsupported(config.PlatformBitbucket, "FindIssue")
}

// EnsureIssue is unsupported: Bitbucket Server has no issue tracker.
func (s *bitbucketSession) EnsureIssue(context.Context, string, string) (EnsureResult, error) {
	return "", unsupported(config.PlatformBitbucket, "EnsureIssue")
}

// EnsureIssueClosing is unsupported: Bitbucket Server has no issue tracker.
func (s *bitbucketSession) EnsureIssueClosing(context.Context, string) error {
	return unsupported(config.PlatformBitbucket, "EnsureIssueClosing")
}

// --- comments ---

func (s *bitbucketSession) listComments(ctx context.Context, number int) ([]Comment, error) {
	comments, err := s.repo.ListComments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = Comment{ID: int64(c.ID), Body: c.Text, Version: c.Version}
	}
	return out, nil
}

func (s *bitbucketSession) addComment(ctx context.Context, number int, body string) error {
	if _, err := s.repo.AddComment(ctx, number, body); err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

func (s *bitbucketSession) editComment(ctx context.Context, number int, c Comment, body string) error {
	_, err := s.repo.UpdateComment(ctx, number, bitbucket.Comment{ID: int(c.ID), Version: c.Version, Text: body})
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

func (s *bitbucketSession) deleteComment(ctx context.Context, number int, c Comment) error {
	if err := s.repo.DeleteComment(ctx, number, int(c.ID), c.Version); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// EnsureComment adds or replaces the comment for topic on a pull request.
func (s *bitbucketSession) EnsureComment(ctx context.Context, number int, topic, content string) (EnsureResult, error) {
	res, err := ensureComment(ctx, s, number, topic, content)
	if err != nil {
		return "", err
	}
	s.log.Debug(fmt.Sprintf("Comment %q on #%d %s", topic, number, res))
	return res, nil
}

// EnsureCommentRemoval deletes the comment for topic, if present.
func (s *bitbucketSession) EnsureCommentRemoval(ctx context.Context, number int, topic string) error {
	res, err := ensureCommentRemoval(ctx, s, number, topic)
	if err != nil {
		return err
	}
	s.log.Debug(fmt.Sprintf("Comment %q on #%d %s", topic, number, res))
	return nil
}

// --- optional capabilities ---

// AddAssignees is unsupported: Bitbucket Server pull requests have no assignees.
func (s *bitbucketSession) AddAssignees(context.Context, int, []string) error {
	return unsupported(config.PlatformBitbucket, "AddAssignees")
}

// AddReviewers adds users, looked up by name, slug or email, as reviewers.
func (s *bitbucketSession) AddReviewers(ctx context.Context, number int, reviewers []string) error {
	s.log.Debug(fmt.Sprintf("Adding reviewers %s to #%d", strings.Join(reviewers, ", "), number))
	pr, err := s.openPr(ctx, number)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(pr.Reviewers))
	for _, r := range pr.Reviewers {
		have[strings.ToLower(r.User.Name)] = true
	}
	for _, name := range reviewers {
		u, err := s.repo.FindUser(ctx, name)
		if err != nil {
			if errors.Is(err, bitbucket.ErrUserNotFound) {
				s.log.Warn("Skipping unknown reviewer " + name)
				continue
			}
			return fmt.Errorf("failed to look up reviewer: %w", err)
		}
		if have[strings.ToLower(u.Name)] {
			continue
		}
		have[strings.ToLower(u.Name)] = true
		pr.Reviewers = append(pr.Reviewers, bitbucket.Participant{User: bitbucket.User{Name: u.Name}})
	}
	if _, err := s.repo.UpdatePullRequest(ctx, pr); err != nil {
		return fmt.Errorf("failed to add reviewers: %w", err)
	}
	return nil
}

// DeleteLabel is unsupported: Bitbucket Server has no labels.
func (s *bitbucketSession) DeleteLabel(context.Context, int, string) error {
	return unsupported(config.PlatformBitbucket, "DeleteLabel")
}

// GetVulnerabilityAlerts is unsupported on Bitbucket Server.
func (s *bitbucketSession) GetVulnerabilityAlerts(context.Context) ([]VulnerabilityAlert, error) {
	return nil, unsupported(config.PlatformBitbucket, "GetVulnerabilityAlerts")
}

// GetRepoForceRebase reports whether the default merge strategy is
// fast-forward only, which requires branches to be rebased.
func (s *bitbucketSession) GetRepoForceRebase(ctx context.Context) (bool, error) {
	settings, err := s.repo.PullRequestSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read pull request settings: %w", err)
	}
	return strings.Contains(settings.MergeConfig.DefaultStrategy.ID, "ff-only"), nil
}
