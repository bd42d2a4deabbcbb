package platform

import (
	"context"
	"strings"
)

// issueBackend is the provider side of the issue tracker.
type issueBackend interface {
	listIssues(ctx context.Context) ([]Issue, error)
	createIssue(ctx context.Context, title, body string) error
	updateIssueBody(ctx context.Context, number int, body string) error
	closeIssue(ctx context.Context, number int) error
}

// commentBackend is the provider side of pull request comments.
type commentBackend interface {
	listComments(ctx context.Context, number int) ([]Comment, error)
	addComment(ctx context.Context, number int, body string) error
	editComment(ctx context.Context, number int, c Comment, body string) error
	deleteComment(ctx context.Context, number int, c Comment) error
}

// findOpenIssue returns the first open issue titled title.
func findOpenIssue(ctx context.Context, b issueBackend, title string) (*Issue, error) {
	issues, err := b.listIssues(ctx)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		if issues[i].Title == title && issues[i].State == IssueOpen {
			issue := issues[i]
			return &issue, nil
		}
	}
	return nil, nil
}

// ensureIssue creates the issue, or updates the body of the open issue with
// the same title. Closed issues are never reopened.
func ensureIssue(ctx context.Context, b issueBackend, title, body string) (EnsureResult, error) {
	issue, err := findOpenIssue(ctx, b, title)
	if err != nil {
		return "", err
	}
	if issue == nil {
		if err := b.createIssue(ctx, title, body); err != nil {
			return "", err
		}
		return EnsureCreated, nil
	}
	if strings.TrimSpace(issue.Body) == strings.TrimSpace(body) {
		return EnsureUnchanged, nil
	}
	if err := b.updateIssueBody(ctx, issue.Number, body); err != nil {
		return "", err
	}
	return EnsureUpdated, nil
}

// ensureIssueClosing closes every open issue titled title.
func ensureIssueClosing(ctx context.Context, b issueBackend, title string) error {
	issues, err := b.listIssues(ctx)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		if issue.Title != title || issue.State != IssueOpen {
			continue
		}
		if err := b.closeIssue(ctx, issue.Number); err != nil {
			return err
		}
	}
	return nil
}

// commentBody prefixes content with the topic marker.
func commentBody(topic, content string) string {
	if topic == "" {
		return content
	}
	return topicMarker(topic) + content
}

func topicMarker(topic string) string {
	return "### " + topic + "\n\n"
}

// matchesTopic reports whether c is the comment for topic. Without a topic a
// comment matches on its exact content.
func matchesTopic(c Comment, topic, content string) bool {
	if topic == "" {
		return strings.TrimSpace(c.Body) == strings.TrimSpace(content)
	}
	return strings.HasPrefix(c.Body, topicMarker(topic))
}

func ensureComment(ctx context.Context, b commentBackend, number int, topic, content string) (EnsureResult, error) {
	body := commentBody(topic, content)
	comments, err := b.listComments(ctx, number)
	if err != nil {
		return "", err
	}
	for _, c := range comments {
		if !matchesTopic(c, topic, content) {
			continue
		}
		if strings.TrimSpace(c.Body) == strings.TrimSpace(body) {
			return EnsureUnchanged, nil
		}
		if err := b.editComment(ctx, number, c, body); err != nil {
			return "", err
		}
		return EnsureUpdated, nil
	}
	if err := b.addComment(ctx, number, body); err != nil {
		return "", err
	}
	return EnsureCreated, nil
}

// ensureCommentRemoval deletes every comment carrying the topic marker.
func ensureCommentRemoval(ctx context.Context, b commentBackend, number int, topic string) (EnsureResult, error) {
	comments, err := b.listComments(ctx, number)
	if err != nil {
		return "", err
	}
	result := EnsureUnchanged
	for _, c := range comments {
		if topic == "" || !strings.HasPrefix(c.Body, topicMarker(topic)) {
			continue
		}
		if err := b.deleteComment(ctx, number, c); err != nil {
			return "", err
		}
		result = EnsureRemoved
	}
	return result, nil
}
