package platform

import (
	"github.com/sgaunet/bullets"
	ghclient "github.com/sgaunet/scm-adapter/pkg/github"
	glclient "github.com/sgaunet/scm-adapter/pkg/gitlab"
)

// Hooks for the black-box tests.
var (
	RenderPrBody             = renderPrBody
	TruncateBody             = truncateBody
	MassageBitbucketMarkdown = massageBitbucketMarkdown
	MassageGitLabMarkdown    = massageGitLabMarkdown
	TruncatedNotice          = truncatedNotice
)

//nolint:ireturn // Tests drive sessions through the interface.
func NewGitHubSession(repo Repository, api ghclient.APIClient, storage GitStorage, base string, log *bullets.Logger) Session {
	return newGitHubSession(repo, api, storage, base, log)
}

//nolint:ireturn // Tests drive sessions through the interface.
func NewGitLabSession(repo Repository, api glclient.APIClient, storage GitStorage, base string, log *bullets.Logger) Session {
	return newGitLabSession(repo, api, storage, base, log)
}
