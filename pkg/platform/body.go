package platform

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasttemplate"
)

// Maximum description lengths, in characters.
const (
	bitbucketMaxBodyLength = 30000
	githubMaxBodyLength    = 60000
	gitlabMaxBodyLength    = 1000000
)

const truncatedNotice = "\n\n_Description truncated._"

var prBodyTemplate = fasttemplate.New("{{title}}{{summary}}{{updates}}{{notes}}{{footer}}", "{{", "}}")

// renderPrBody renders input as markdown, passes it through massage and cuts
// it to maxLen characters.
func renderPrBody(input PrBodyInput, maxLen int, massage func(string) string) string {
	body := prBodyTemplate.ExecuteString(map[string]any{
		"title":   section(headingOf(input.Title)),
		"summary": section(strings.TrimSpace(input.Summary)),
		"updates": section(updatesTable(input.Updates)),
		"notes":   section(notesList(input.Notes)),
		"footer":  section(footerOf(input.Footer)),
	})
	body = strings.TrimSpace(body)
	if massage != nil {
		body = massage(body)
	}
	return truncateBody(body, maxLen)
}

func section(s string) string {
	if s == "" {
		return ""
	}
	return s + "\n\n"
}

func headingOf(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return "## " + title
}

func footerOf(footer string) string {
	footer = strings.TrimSpace(footer)
	if footer == "" {
		return ""
	}
	return "---\n\n" + footer
}

func updatesTable(updates []PrUpdate) string {
	if len(updates) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("| Package | Type | Change |\n|---|---|---|")
	for _, u := range updates {
		name := u.Package
		if u.URL != "" {
			name = fmt.Sprintf("[%s](%s)", u.Package, u.URL)
		}
		change := "`" + u.To + "`"
		if u.From != "" {
			change = fmt.Sprintf("`%s` -> `%s`", u.From, u.To)
		}
		fmt.Fprintf(&b, "\n| %s | %s | %s |", name, u.Type, change)
	}
	return b.String()
}

func notesList(notes []string) string {
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			lines = append(lines, "- "+n)
		}
	}
	return strings.Join(lines, "\n")
}

// truncateBody cuts body to at most maxLen characters, ending with a notice.
func truncateBody(body string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(body) <= maxLen {
		return body
	}
	runes := []rune(body)
	keep := maxLen - utf8.RuneCountInString(truncatedNotice)
	if keep <= 0 {
		return string(runes[:maxLen])
	}
	return strings.TrimRight(string(runes[:keep]), " \n") + truncatedNotice
}

var (
	htmlCommentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)
	collapsibleTagRe = regexp.MustCompile(`</?(details|summary)>`)
	lineBreakTagRe   = regexp.MustCompile(`<br\s*/?>`)
)

// massageBitbucketMarkdown drops the HTML Bitbucket Server does not render.
func massageBitbucketMarkdown(body string) string {
	body = htmlCommentRe.ReplaceAllString(body, "")
	body = collapsibleTagRe.ReplaceAllString(body, "")
	body = lineBreakTagRe.ReplaceAllString(body, "\n")
	return strings.TrimSpace(body)
}

var gitlabTerms = strings.NewReplacer(
	"Pull Request", "Merge Request",
	"pull request", "merge request",
	"Pull request", "Merge request",
)

// massageGitLabMarkdown uses GitLab's merge request wording.
func massageGitLabMarkdown(body string) string {
	return gitlabTerms.Replace(body)
}
