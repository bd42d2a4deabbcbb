// Package labels derives pull request labels from semantic commit titles
// and cleans up user-supplied label lists.
package labels

import "strings"

// dependencyScopes are commit scopes that mark a dependency update.
var dependencyScopes = map[string]bool{
	"deps":     true,
	"deps-dev": true,
	"dev-deps": true,
}

const dependenciesLabel = "dependencies"

// commitTypeToLabel maps semantic commit types to the label applied to the
// pull request.
var commitTypeToLabel = map[string]string{
	"feat":     "enhancement",
	"fix":      "bug",
	"docs":     "documentation",
	"refactor": "refactor",
	"test":     "test",
	"ci":       "ci",
	"perf":     "performance",
	"build":    "build",
	"chore":    "chore",
	"revert":   "revert",
}

// splitPrefix returns the "type(scope)" part of a title, or "".
func splitPrefix(title string) string {
	colonIdx := strings.Index(title, ":")
	if colonIdx < 1 {
		return ""
	}
	return title[:colonIdx]
}

// ExtractCommitType parses the semantic commit type from a title.
// Supports "type(scope): msg" and "type: msg" formats.
// Returns "" if the title doesn't follow that format.
func ExtractCommitType(title string) string {
	prefix := splitPrefix(title)
	if prefix == "" {
		return ""
	}

	// Strip optional scope: "feat(ui)" → "feat"
	if parenIdx := strings.Index(prefix, "("); parenIdx > 0 {
		prefix = prefix[:parenIdx]
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}

	// Validate: type must be lowercase alphanumeric
	for _, c := range prefix {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}

	return prefix
}

// ExtractScope returns the scope of a semantic commit title, or "".
func ExtractScope(title string) string {
	if ExtractCommitType(title) == "" {
		return ""
	}
	prefix := splitPrefix(title)
	open := strings.Index(prefix, "(")
	if open < 0 {
		return ""
	}
	end := strings.Index(prefix[open:], ")")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(prefix[open+1 : open+end])
}

// ForTitle returns the labels implied by a semantic commit title:
// one for the commit type and "dependencies" for dependency scopes.
// Returns nil for titles that are not semantic.
func ForTitle(title string) []string {
	commitType := ExtractCommitType(title)
	if commitType == "" {
		return nil
	}
	var out []string
	if label, ok := commitTypeToLabel[commitType]; ok {
		out = append(out, label)
	}
	if dependencyScopes[ExtractScope(title)] {
		out = append(out, dependenciesLabel)
	}
	return out
}

// Normalize trims labels, drops empty ones and removes case-insensitive
// duplicates, keeping the first spelling.
func Normalize(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
