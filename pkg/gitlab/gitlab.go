// Package gitlab provides GitLab API client operations.
package gitlab

import (
	"context"
	"fmt"

	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/internal/security"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const maxPerPage = 100

// Options configures [New].
type Options struct {
	// Endpoint is the base URL of a self-managed instance. Empty selects
	// gitlab.com. The client appends /api/v4/.
	Endpoint string
	Token    security.SecureToken
	Logger   *bullets.Logger
}

// Client represents a GitLab API client wrapper.
type Client struct {
	client *gitlab.Client
	log    *bullets.Logger
}

// New creates a GitLab client authenticated with the token.
func New(opts Options) (*Client, error) {
	if opts.Token.IsEmpty() {
		return nil, errTokenRequired
	}
	log := opts.Logger
	if log == nil {
		log = logger.NoLogger()
	}

	var clientOpts []gitlab.ClientOptionFunc
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(opts.Endpoint))
	}
	client, err := gitlab.NewClient(opts.Token.Value(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidEndpoint, err)
	}

	security.DebugCredentials(log, "gitlab", opts.Token, map[string]string{
		"endpoint": client.BaseURL().String(),
	})
	return &Client{client: client, log: log}, nil
}

// Repo binds the client to a project path such as "group/sub/project".
func (c *Client) Repo(path string) *RepoClient {
	return &RepoClient{Client: c, pid: path}
}

// ListGroups returns the groups the user is a member of.
func (c *Client) ListGroups(ctx context.Context) ([]*gitlab.Group, error) {
	c.log.Debug("Listing GitLab groups")
	var all []*gitlab.Group
	opts := &gitlab.ListGroupsOptions{ListOptions: gitlab.ListOptions{PerPage: maxPerPage}}
	for {
		groups, resp, err := c.client.Groups.ListGroups(opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		all = append(all, groups...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListGroupProjects returns the non-archived projects of a group.
func (c *Client) ListGroupProjects(ctx context.Context, group *gitlab.Group) ([]*gitlab.Project, error) {
	c.log.Debug("Listing projects of " + group.FullPath)
	var all []*gitlab.Project
	opts := &gitlab.ListGroupProjectsOptions{
		Archived:    gitlab.Ptr(false),
		ListOptions: gitlab.ListOptions{PerPage: maxPerPage},
	}
	for {
		projects, resp, err := c.client.Groups.ListGroupProjects(group.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list projects of %s: %w", group.FullPath, err)
		}
		all = append(all, projects...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListOwnedProjects returns the non-archived projects owned by the user.
func (c *Client) ListOwnedProjects(ctx context.Context) ([]*gitlab.Project, error) {
	c.log.Debug("Listing projects owned by the authenticated user")
	var all []*gitlab.Project
	opts := &gitlab.ListProjectsOptions{
		Owned:       gitlab.Ptr(true),
		Archived:    gitlab.Ptr(false),
		ListOptions: gitlab.ListOptions{PerPage: maxPerPage},
	}
	for {
		projects, resp, err := c.client.Projects.ListProjects(opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list owned projects: %w", err)
		}
		all = append(all, projects...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}
