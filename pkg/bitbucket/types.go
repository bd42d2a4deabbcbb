package bitbucket

// Pull request states as reported by the server.
const (
	StateOpen     = "OPEN"
	StateMerged   = "MERGED"
	StateDeclined = "DECLINED"
	StateAll      = "ALL"
)

// Build status states.
const (
	BuildSuccessful = "SUCCESSFUL"
	BuildFailed     = "FAILED"
	BuildInProgress = "INPROGRESS"
)

// Project is a Bitbucket project.
type Project struct {
	ID   int    `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// Link is a hyperlink in a links map.
type Link struct {
	Href string `json:"href"`
	Name string `json:"name,omitempty"`
}

// Links groups the self and clone links of a resource.
type Links struct {
	Self  []Link `json:"self,omitempty"`
	Clone []Link `json:"clone,omitempty"`
}

// Repository is a repository inside a project.
type Repository struct {
	ID      int     `json:"id,omitempty"`
	Slug    string  `json:"slug"`
	Name    string  `json:"name,omitempty"`
	Project Project `json:"project"`
	Links   Links   `json:"links,omitempty"`
}

// CloneURL returns the http(s) clone link, or the first one available.
func (r Repository) CloneURL() string {
	for _, l := range r.Links.Clone {
		if l.Name == "http" || l.Name == "https" {
			return l.Href
		}
	}
	if len(r.Links.Clone) > 0 {
		return r.Links.Clone[0].Href
	}
	return ""
}

// SSHCloneURL returns the ssh clone link, or "" when the server has none.
func (r Repository) SSHCloneURL() string {
	for _, l := range r.Links.Clone {
		if l.Name == "ssh" {
			return l.Href
		}
	}
	return ""
}

// Ref is one side of a pull request.
type Ref struct {
	ID           string      `json:"id"`
	DisplayID    string      `json:"displayId,omitempty"`
	LatestCommit string      `json:"latestCommit,omitempty"`
	Repository   *Repository `json:"repository,omitempty"`
}

// User is a Bitbucket user.
type User struct {
	Name         string `json:"name"`
	Slug         string `json:"slug,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Participant is a reviewer or author of a pull request.
type Participant struct {
	User User `json:"user"`
}

// PullRequest is a Bitbucket pull request.
type PullRequest struct {
	ID          int           `json:"id,omitempty"`
	Version     int           `json:"version"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	State       string        `json:"state,omitempty"`
	Open        bool          `json:"open"`
	Closed      bool          `json:"closed"`
	FromRef     Ref           `json:"fromRef"`
	ToRef       Ref           `json:"toRef"`
	Reviewers   []Participant `json:"reviewers,omitempty"`
	Links       Links         `json:"links,omitempty"`
}

// URL returns the web link of the pull request.
func (p PullRequest) URL() string {
	if len(p.Links.Self) > 0 {
		return p.Links.Self[0].Href
	}
	return ""
}

// Change is one entry of a pull request diff.
type Change struct {
	Path struct {
		ToString string `json:"toString"`
	} `json:"path"`
	Type string `json:"type,omitempty"`
}

// Comment is a pull request comment.
type Comment struct {
	ID      int    `json:"id,omitempty"`
	Version int    `json:"version"`
	Text    string `json:"text"`
}

// Activity is an entry of the pull request activity stream.
type Activity struct {
	ID            int      `json:"id"`
	Action        string   `json:"action"`
	CommentAction string   `json:"commentAction,omitempty"`
	Comment       *Comment `json:"comment,omitempty"`
}

// BuildStatus is a commit build result.
type BuildStatus struct {
	State       string `json:"state"`
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	DateAdded   int64  `json:"dateAdded,omitempty"`
}

// Branch is a repository branch.
type Branch struct {
	ID           string `json:"id"`
	DisplayID    string `json:"displayId"`
	LatestCommit string `json:"latestCommit"`
	IsDefault    bool   `json:"isDefault"`
}

// MergeStrategy is a pull request merge strategy.
type MergeStrategy struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// PullRequestSettings holds the repository pull request settings.
type PullRequestSettings struct {
	MergeConfig struct {
		DefaultStrategy MergeStrategy   `json:"defaultStrategy"`
		Strategies      []MergeStrategy `json:"strategies"`
	} `json:"mergeConfig"`
}
