// Package hostrules resolves the token used to talk to a hosting service.
//
// Rules are matched by platform and endpoint host. An explicit token passed
// by the caller always wins, and a platform default registered through
// [Store.Update] is used when nothing more specific matches.
package hostrules

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/sgaunet/scm-adapter/internal/security"
)

var errEmptyPlatform = errors.New("host rule requires a platform")

// ErrEmptyPlatform is returned when a rule or update has no platform.
var ErrEmptyPlatform = errEmptyPlatform

// Hint carries what the caller already knows about the credentials to use.
type Hint struct {
	Token    string
	Endpoint string
}

// Rule associates a token with a platform and, optionally, an endpoint.
// A rule with an empty Endpoint applies to every host of its platform.
type Rule struct {
	Platform string
	Endpoint string
	Username string
	Token    security.SecureToken
}

// Credentials is the outcome of a successful lookup.
type Credentials struct {
	Platform string
	Endpoint string
	Username string
	Token    security.SecureToken
}

// Store is a concurrency-safe set of host rules.
type Store struct {
	mu       sync.RWMutex
	rules    []Rule
	defaults map[string]Credentials
}

// New creates a store seeded with rules. Rules without a platform are skipped.
func New(rules ...Rule) *Store {
	s := &Store{defaults: make(map[string]Credentials)}
	for _, r := range rules {
		_ = s.Add(r)
	}
	return s
}

// Add registers a rule.
func (s *Store) Add(rule Rule) error {
	if rule.Platform == "" {
		return ErrEmptyPlatform
	}
	rule.Platform = strings.ToLower(rule.Platform)
	rule.Endpoint = normalizeEndpoint(rule.Endpoint)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
	return nil
}

// Update records creds as the default for their platform.
func (s *Store) Update(creds Credentials) error {
	if creds.Platform == "" {
		return ErrEmptyPlatform
	}
	creds.Platform = strings.ToLower(creds.Platform)
	creds.Endpoint = normalizeEndpoint(creds.Endpoint)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[creds.Platform] = creds
	return nil
}

// Find returns the credentials to use for platform. The second result is
// false when no token could be resolved.
func (s *Store) Find(platform string, hint Hint) (Credentials, bool) {
	platform = strings.ToLower(platform)
	endpoint := normalizeEndpoint(hint.Endpoint)

	s.mu.RLock()
	defer s.mu.RUnlock()

	def, hasDefault := s.defaults[platform]
	if endpoint == "" && hasDefault {
		endpoint = def.Endpoint
	}

	if hint.Token != "" {
		return Credentials{
			Platform: platform,
			Endpoint: endpoint,
			Token:    security.NewSecureToken(hint.Token),
		}, true
	}

	if rule, ok := s.bestRule(platform, endpoint); ok {
		if rule.Endpoint != "" {
			endpoint = rule.Endpoint
		}
		return Credentials{
			Platform: platform,
			Endpoint: endpoint,
			Username: rule.Username,
			Token:    rule.Token,
		}, true
	}

	if hasDefault && !def.Token.IsEmpty() && sameHost(def.Endpoint, endpoint) {
		if def.Endpoint == "" {
			def.Endpoint = endpoint
		}
		return def, true
	}
	return Credentials{}, false
}

// bestRule picks the matching rule with the longest endpoint. Caller holds mu.
func (s *Store) bestRule(platform, endpoint string) (Rule, bool) {
	var (
		best  Rule
		score = -1
	)
	for _, r := range s.rules {
		if r.Platform != platform || r.Token.IsEmpty() {
			continue
		}
		if r.Endpoint != "" && !matchesEndpoint(r.Endpoint, endpoint) {
			continue
		}
		if len(r.Endpoint) > score {
			best, score = r, len(r.Endpoint)
		}
	}
	return best, score >= 0
}

func matchesEndpoint(ruleEndpoint, endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if !sameHost(ruleEndpoint, endpoint) {
		return false
	}
	rp, ep := endpointPath(ruleEndpoint), endpointPath(endpoint)
	return rp == "" || ep == rp || strings.HasPrefix(ep, rp+"/")
}

func sameHost(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(host(a), host(b))
}

func host(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

func endpointPath(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(u.Path, "/")
}

// normalizeEndpoint adds an https scheme to bare hosts and drops the
// trailing slash.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}
