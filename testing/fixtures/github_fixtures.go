// Package fixtures provides common test data structures for testing.
package fixtures

import (
	"time"

	"github.com/google/go-github/v69/github"
)

// Test constants for GitHub fixtures.
const (
	defaultPRNumber = 123
	defaultHeadSHA  = "abc123def456"
)

// GitHub fixtures for common test scenarios

// ValidPullRequest returns an open GitHub pull request from feature-branch
// into main.
func ValidPullRequest() *github.PullRequest {
	return &github.PullRequest{
		Number: github.Ptr(defaultPRNumber),
		Title:  github.Ptr("Test Pull Request"),
		Body:   github.Ptr("Test body"),
		State:  github.Ptr("open"),
		Head: &github.PullRequestBranch{
			Ref: github.Ptr("feature-branch"),
			SHA: github.Ptr(defaultHeadSHA),
		},
		Base: &github.PullRequestBranch{
			Ref: github.Ptr("main"),
		},
		User: &github.User{
			Login: github.Ptr("testuser"),
		},
		HTMLURL: github.Ptr("https://github.com/owner/repo/pull/123"),
	}
}

// MergedPullRequest returns ValidPullRequest in the merged state.
func MergedPullRequest() *github.PullRequest {
	pr := ValidPullRequest()
	pr.State = github.Ptr("closed")
	pr.Merged = github.Ptr(true)
	pr.MergedAt = &github.Timestamp{Time: time.Now()}
	return pr
}

// ClosedPullRequest returns ValidPullRequest closed without merging.
func ClosedPullRequest() *github.PullRequest {
	pr := ValidPullRequest()
	pr.State = github.Ptr("closed")
	return pr
}

// RepoStatus returns a commit status with the given context and state.
func RepoStatus(context, state string) *github.RepoStatus {
	return &github.RepoStatus{
		Context:     github.Ptr(context),
		State:       github.Ptr(state),
		Description: github.Ptr(context + " is " + state),
		TargetURL:   github.Ptr("https://ci.example.com/" + context),
	}
}

// GitHubIssue returns an issue with the given number, title and state.
func GitHubIssue(number int, title, state string) *github.Issue {
	return &github.Issue{
		Number: github.Ptr(number),
		Title:  github.Ptr(title),
		Body:   github.Ptr("body of " + title),
		State:  github.Ptr(state),
	}
}

// IssueComment returns a comment with the given id and body.
func IssueComment(id int64, body string) *github.IssueComment {
	return &github.IssueComment{
		ID:   github.Ptr(id),
		Body: github.Ptr(body),
	}
}

// DependabotAlert returns an open high-severity alert for lodash.
func DependabotAlert() *github.DependabotAlert {
	return &github.DependabotAlert{
		State: github.Ptr("open"),
		Dependency: &github.Dependency{
			Package: &github.VulnerabilityPackage{
				Ecosystem: github.Ptr("npm"),
				Name:      github.Ptr("lodash"),
			},
			ManifestPath: github.Ptr("package.json"),
		},
		SecurityAdvisory: &github.DependabotSecurityAdvisory{
			Summary:  github.Ptr("Prototype pollution in lodash"),
			Severity: github.Ptr("high"),
		},
		SecurityVulnerability: &github.AdvisoryVulnerability{
			Severity:               github.Ptr("high"),
			VulnerableVersionRange: github.Ptr("< 4.17.21"),
			FirstPatchedVersion: &github.FirstPatchedVersion{
				Identifier: github.Ptr("4.17.21"),
			},
		},
	}
}
