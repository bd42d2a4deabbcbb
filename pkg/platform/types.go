// Package platform provides a provider-agnostic adapter over Bitbucket Server,
// GitHub and GitLab for dependency-update automation.
//
// A [Platform] discovers repositories and opens a [Session] per repository.
// The session is the only handle to a repository's state: branch and file
// operations go through its git storage, pull requests, issues, comments and
// status checks through the provider's REST API.
//
//	p, _ := platform.New(config.PlatformBitbucket, platform.Options{Credentials: store, Logger: logger})
//	repos, _ := p.ListRepositories(ctx, hostrules.Hint{})
//	s, _ := p.InitRepo(ctx, platform.InitOptions{Repository: repos[0], LocalDir: dir})
//	defer s.Close()
//	sha, _ := s.CommitFilesToBranch(ctx, platform.CommitRequest{Branch: "deps/x", ...})
//	pr, _ := s.CreatePr(ctx, platform.CreatePrOptions{Branch: "deps/x", Title: "Update x"})
package platform

import (
	"fmt"
	"strings"

	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/pkg/git"
)

// Repository identifies a repository as namespace/name. The namespace is
// lower-cased; GitLab namespaces may contain slashes.
type Repository struct {
	Namespace string
	Name      string
}

// NewRepository builds a Repository with a lower-cased namespace.
func NewRepository(namespace, name string) Repository {
	return Repository{Namespace: strings.ToLower(namespace), Name: name}
}

// ParseRepository parses "namespace/name". The last slash separates the name.
func ParseRepository(s string) (Repository, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, s)
	}
	return NewRepository(s[:i], s[i+1:]), nil
}

func (r Repository) String() string {
	return r.Namespace + "/" + r.Name
}

// PRState is the lifecycle state of a pull request.
type PRState string

// Pull request states. Merged and declined are terminal.
const (
	PRStateOpen     PRState = "open"
	PRStateMerged   PRState = "merged"
	PRStateDeclined PRState = "declined"
)

// PRStateFilter selects pull requests by state.
type PRStateFilter string

// Pull request filters. Closed matches every state except open.
const (
	PRFilterAll    PRStateFilter = "all"
	PRFilterOpen   PRStateFilter = "open"
	PRFilterClosed PRStateFilter = "closed"
)

// Matches reports whether state passes the filter. The empty filter is all.
func (f PRStateFilter) Matches(state PRState) bool {
	switch f {
	case PRFilterOpen:
		return state == PRStateOpen
	case PRFilterClosed:
		return state != PRStateOpen
	default:
		return true
	}
}

// PullRequest is a provider-agnostic pull/merge request.
type PullRequest struct {
	Number       int
	Title        string
	Body         string
	SourceBranch string
	TargetBranch string
	State        PRState
	URL          string
	// Version is the optimistic-locking version (Bitbucket only).
	Version int
	SHA     string
}

// IsOpen reports whether the pull request still accepts updates.
func (p *PullRequest) IsOpen() bool {
	return p.State == PRStateOpen
}

// IssueState is the state of an issue.
type IssueState string

// Issue states.
const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// Issue is a tracker issue. Title is its natural key.
type Issue struct {
	Number int
	Title  string
	Body   string
	State  IssueState
}

// Comment is a comment on a pull request or issue.
type Comment struct {
	ID      int64
	Body    string
	Version int
}

// BranchState is the state of a status check or of a whole branch.
type BranchState string

// Branch states, from best to worst.
const (
	StateSuccess BranchState = "success"
	StatePending BranchState = "pending"
	StateFailure BranchState = "failure"
)

// StatusCheck is one named check on a branch head, keyed by Context.
type StatusCheck struct {
	Context     string
	Description string
	State       BranchState
	TargetURL   string
}

// EnsureResult tells what an ensure operation did.
type EnsureResult string

// Ensure outcomes.
const (
	EnsureCreated   EnsureResult = "created"
	EnsureUpdated   EnsureResult = "updated"
	EnsureUnchanged EnsureResult = "unchanged"
	EnsureRemoved   EnsureResult = "removed"
)

// PrUpdate is one dependency change listed in a pull request body.
type PrUpdate struct {
	Package string
	Type    string
	From    string
	To      string
	URL     string
}

// PrBodyInput is the structured input of GetPrBody.
type PrBodyInput struct {
	Title   string
	Summary string
	Updates []PrUpdate
	Notes   []string
	Footer  string
}

// VulnerabilityAlert is a security alert raised on a dependency.
type VulnerabilityAlert struct {
	Package         string
	Ecosystem       string
	Severity        string
	Summary         string
	VulnerableRange string
	FixedVersion    string
	Manifest        string
}

// InitOptions configures [Platform.InitRepo].
type InitOptions struct {
	Repository Repository
	Hint       hostrules.Hint
	// LocalDir is the working copy location for git storage.
	LocalDir  string
	GitAuthor git.Author
}

// CommitRequest describes one commit of a file set onto a branch.
type CommitRequest struct {
	Branch  string
	Message string
	Files   []git.FileChange
	// Parent defaults to the session base branch.
	Parent string
}

// FindPrOptions filters FindPr. Title is optional; State defaults to all.
type FindPrOptions struct {
	Branch string
	Title  string
	State  PRStateFilter
}

// CreatePrOptions describes a new pull request. The target is the session
// base branch, or the repository default branch when UseDefaultBranch is set.
type CreatePrOptions struct {
	Branch           string
	Title            string
	Description      string
	Labels           []string
	UseDefaultBranch bool
}
