package security

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

const minSSHPathParts = 2

type redaction struct {
	re          *regexp.Regexp
	replacement string
}

var (
	redactions []redaction
	genericRe  *regexp.Regexp
	regexOnce  sync.Once

	errSanitized = errors.New("sanitized error")

	// urlCredentialsRe matches user:password@ in scheme URLs embedded in text,
	// e.g. clone URLs echoed back by git transports.
	urlCredentialsRe = regexp.MustCompile(`(https?://)[^/\s:@]+:[^/\s@]+@`)
)

func compileRegexPatterns() {
	regexOnce.Do(func() {
		redactions = []redaction{
			{regexp.MustCompile(`BBDC-[A-Za-z0-9+/_-]{20,}`), "[bitbucket-token-redacted]"},
			{regexp.MustCompile(`glpat-[a-zA-Z0-9_-]{6,}`), "[gitlab-token-redacted]"},
			{regexp.MustCompile(`gh[ops]_[a-zA-Z0-9]{20,}`), "[github-token-redacted]"},
			{regexp.MustCompile(`(?i)authorization:\s*(?:bearer|basic)\s+[a-zA-Z0-9+/=_-]{10,}`), "Authorization: [redacted]"},
		}
		genericRe = regexp.MustCompile(`\b[A-Za-z0-9+/=]{40,200}\b`)
	})
}

// SanitizeString redacts Bitbucket (BBDC-), GitLab (glpat-) and GitHub
// (ghp_/gho_/ghs_) tokens, authorization headers, credentials embedded in
// URLs and, as a last resort, long base64-like strings.
//
// Safe for concurrent use.
func SanitizeString(s string) string {
	compileRegexPatterns()

	s = urlCredentialsRe.ReplaceAllString(s, "${1}[credentials-redacted]@")

	redacted := false
	for _, r := range redactions {
		if r.re.MatchString(s) {
			redacted = true
			s = r.re.ReplaceAllString(s, r.replacement)
		}
	}
	if redacted {
		return s
	}
	return genericRe.ReplaceAllString(s, "[token-redacted]")
}

// SanitizeError returns an error whose message went through [SanitizeString].
// The original chain is not preserved. Returns nil for a nil error.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", errSanitized, SanitizeString(err.Error()))
}

// SanitizeURL drops any userinfo from a URL. Unparseable input is run
// through [SanitizeString] instead.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return SanitizeString(raw)
	}
	u.User = nil
	return u.String()
}

// MaskSSHKeyPath shortens an SSH key path to ~/.ssh/<name> so home directory
// names stay out of logs.
func MaskSSHKeyPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.Contains(path, "/.ssh/") {
		parts := strings.Split(path, "/.ssh/")
		if len(parts) >= minSSHPathParts {
			return "~/.ssh/" + filepath.Base(parts[len(parts)-1])
		}
	}
	return filepath.Base(path)
}

// SanitizeMap redacts values whose key looks sensitive (token, password,
// secret, api_key, auth, credential) and sanitizes the remaining strings.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	sensitiveKeys := []string{
		"token", "password", "secret", "api_key", "apikey",
		"auth", "credential",
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		lowerKey := strings.ToLower(k)
		sensitive := false
		for _, key := range sensitiveKeys {
			if strings.Contains(lowerKey, key) {
				sensitive = true
				break
			}
		}

		switch {
		case sensitive:
			result[k] = maskRedacted
		default:
			if str, ok := v.(string); ok {
				result[k] = SanitizeString(str)
			} else {
				result[k] = v
			}
		}
	}
	return result
}
