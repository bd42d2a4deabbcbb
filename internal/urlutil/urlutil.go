// Package urlutil turns git remote URLs and web URLs into repository paths.
//
// It handles these formats:
//   - plain path: owner/repo, group/sub/project
//   - HTTPS: https://github.com/owner/repo.git
//   - Bitbucket Server clone: https://host/scm/proj/repo.git
//   - Bitbucket Server browse: https://host/projects/PROJ/repos/repo/browse
//   - SSH colon: git@github.com:owner/repo.git
//   - SSH protocol: ssh://git@host:7999/proj/repo.git
package urlutil

import (
	"net/url"
	"strings"
)

const (
	scmSegment      = "scm"
	projectsSegment = "projects"
	reposSegment    = "repos"
	// minBrowseParts is projects/KEY/repos/slug.
	minBrowseParts = 4
)

// RepositoryPath returns the namespace/name path of remote, without the
// host, credentials or .git suffix. It returns "" when remote has no path.
//
// Examples:
//
//	RepositoryPath("git@github.com:owner/repo.git") → "owner/repo"
//	RepositoryPath("https://gitlab.com/group/sub/project") → "group/sub/project"
//	RepositoryPath("https://bitbucket.example.com/scm/proj/repo.git") → "proj/repo"
func RepositoryPath(remote string) string {
	remote = strings.TrimSpace(remote)
	var path string
	switch {
	case strings.Contains(remote, "://"):
		u, err := url.Parse(remote)
		if err != nil {
			return ""
		}
		path = u.Path
	case isSCPLike(remote):
		// git@host:path
		path = remote[strings.Index(remote, ":")+1:]
	default:
		path = remote
	}
	return cleanPath(path)
}

func isSCPLike(remote string) bool {
	colon := strings.Index(remote, ":")
	if colon < 1 {
		return false
	}
	slash := strings.Index(remote, "/")
	return slash == -1 || colon < slash
}

func cleanPath(path string) string {
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")

	if len(parts) >= minBrowseParts && parts[0] == projectsSegment && parts[2] == reposSegment {
		return parts[1] + "/" + parts[3]
	}
	if len(parts) > 1 && parts[0] == scmSegment {
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts, "/")
}
