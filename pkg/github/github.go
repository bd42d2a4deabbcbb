// Package github provides GitHub API client operations.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v69/github"
	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/internal/security"
	"golang.org/x/oauth2"
)

const (
	maxPerPage    = 100
	publicHost    = "github.com"
	publicAPIHost = "api.github.com"
)

// Options configures [New].
type Options struct {
	// Endpoint is the API URL of a GitHub Enterprise server. Empty, github.com
	// and api.github.com select the public API.
	Endpoint string
	Token    security.SecureToken
	Logger   *bullets.Logger
}

// Client represents a GitHub API client wrapper.
type Client struct {
	client *github.Client
	log    *bullets.Logger
}

// New creates a GitHub client authenticated with the token.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Token.IsEmpty() {
		return nil, errTokenRequired
	}
	log := opts.Logger
	if log == nil {
		log = logger.NoLogger()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token.Value()})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if isEnterprise(opts.Endpoint) {
		var err error
		client, err = client.WithEnterpriseURLs(opts.Endpoint, opts.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidEndpoint, err)
		}
	}

	security.DebugCredentials(log, "github", opts.Token, map[string]string{
		"endpoint": client.BaseURL.String(),
	})
	return &Client{client: client, log: log}, nil
}

func isEnterprise(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host != publicHost && host != publicAPIHost
}

// Repo binds the client to owner/name.
func (c *Client) Repo(owner, name string) *RepoClient {
	return &RepoClient{Client: c, owner: owner, repo: name}
}

// ListOrganizations returns the logins of the organizations the user belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]string, error) {
	c.log.Debug("Listing GitHub organizations")
	var logins []string
	opts := &github.ListOptions{PerPage: maxPerPage}
	for {
		orgs, resp, err := c.client.Organizations.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list organizations: %w", err)
		}
		for _, o := range orgs {
			logins = append(logins, o.GetLogin())
		}
		if resp.NextPage == 0 {
			return logins, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListOrgRepositories returns the non-archived repositories of org.
func (c *Client) ListOrgRepositories(ctx context.Context, org string) ([]*github.Repository, error) {
	c.log.Debug("Listing repositories of " + org)
	var all []*github.Repository
	opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: maxPerPage}}
	for {
		repos, resp, err := c.client.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", org, err)
		}
		all = append(all, activeRepos(repos)...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListUserRepositories returns the non-archived repositories owned by the
// authenticated user.
func (c *Client) ListUserRepositories(ctx context.Context) ([]*github.Repository, error) {
	c.log.Debug("Listing repositories of the authenticated user")
	var all []*github.Repository
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner",
		ListOptions: github.ListOptions{PerPage: maxPerPage},
	}
	for {
		repos, resp, err := c.client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list user repositories: %w", err)
		}
		all = append(all, activeRepos(repos)...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func activeRepos(repos []*github.Repository) []*github.Repository {
	out := repos[:0]
	for _, r := range repos {
		if !r.GetArchived() {
			out = append(out, r)
		}
	}
	return out
}
