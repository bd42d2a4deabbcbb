// Package bitbucket is a client for the Bitbucket Server (Data Center) REST
// API.
//
// Requests are retried on 429 and 5xx through go-retryablehttp, list
// endpoints are followed page by page with [Client.Accumulate], and any
// other non-2xx answer surfaces as an [*APIError].
package bitbucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sgaunet/bullets"
	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/internal/security"
	"golang.org/x/oauth2"
)

const (
	defaultPageLimit    = 100
	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
	defaultTimeout      = 60 * time.Second
	maxErrorBody        = 4096

	outOfDateException = "PullRequestOutOfDateException"
)

var (
	errEndpointRequired = errors.New("bitbucket endpoint is required")
	errTokenRequired    = errors.New("bitbucket token is required")
	errPageLoop         = errors.New("pagination did not advance")
	errUserNotFound     = errors.New("user not found")

	// Exported errors for callers and tests.
	ErrEndpointRequired = errEndpointRequired
	ErrTokenRequired    = errTokenRequired
	ErrUserNotFound     = errUserNotFound
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("bitbucket %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("bitbucket %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// IsNotFound reports whether err is a 404 APIError.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is a 409 APIError.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsOutOfDate reports whether err is a 409 caused by a stale pull request
// version rather than by the server refusing the change.
func IsOutOfDate(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		return false
	}
	var body struct {
		Errors []struct {
			ExceptionName string `json:"exceptionName"`
		} `json:"errors"`
	}
	if json.Unmarshal([]byte(apiErr.Body), &body) != nil {
		return false
	}
	for _, e := range body.Errors {
		if strings.HasSuffix(e.ExceptionName, outOfDateException) {
			return true
		}
	}
	return false
}

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Options configures [New].
type Options struct {
	// Endpoint is the server base URL, e.g. https://bitbucket.example.com.
	// A trailing /rest or /rest/api/1.0 is accepted and stripped.
	Endpoint string
	// Username switches to basic auth with Token as password. When empty the
	// token is sent as a bearer HTTP access token.
	Username string
	Token    security.SecureToken
	Logger   *bullets.Logger

	// RetryMax, RetryWaitMin and RetryWaitMax tune the retry policy. Zero
	// values keep the defaults; a negative RetryMax disables retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	PageLimit    int
}

// Client talks to one Bitbucket Server instance.
type Client struct {
	baseURL   *url.URL
	http      *retryablehttp.Client
	username  string
	token     security.SecureToken
	pageLimit int
	log       *bullets.Logger
}

// New creates a client.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errEndpointRequired
	}
	if opts.Token.IsEmpty() {
		return nil, errTokenRequired
	}
	base, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.NoLogger()
	}

	rc := retryablehttp.NewClient()
	rc.Logger = leveledLogger{log: log}
	rc.RetryMax = defaultRetryMax
	rc.RetryWaitMin = defaultRetryWaitMin
	rc.RetryWaitMax = defaultRetryWaitMax
	switch {
	case opts.RetryMax < 0:
		rc.RetryMax = 0
	case opts.RetryMax > 0:
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	// Hand the last response back so it becomes an APIError with its body.
	rc.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}
	rc.HTTPClient.Timeout = defaultTimeout
	if opts.Username == "" {
		rc.HTTPClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token.Value(), TokenType: "Bearer"}),
			Base:   rc.HTTPClient.Transport,
		}
	}

	limit := opts.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	security.DebugCredentials(log, "bitbucket", opts.Token, map[string]string{
		"endpoint": base.String(),
		"username": opts.Username,
	})

	return &Client{
		baseURL:   base,
		http:      rc,
		username:  opts.Username,
		token:     opts.Token,
		pageLimit: limit,
		log:       log,
	}, nil
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	endpoint = strings.TrimSuffix(endpoint, "/rest/api/1.0")
	endpoint = strings.TrimSuffix(endpoint, "/rest")
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid bitbucket endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid bitbucket endpoint %q: scheme and host are required", endpoint)
	}
	return u, nil
}

// BaseURL returns the server URL without the REST suffix.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get decodes the JSON answer of a GET into out. out may be nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body as JSON and decodes the answer into out.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

// Put sends body as JSON and decodes the answer into out.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, path, query, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

type page struct {
	Values        []json.RawMessage `json:"values"`
	IsLastPage    bool              `json:"isLastPage"`
	NextPageStart *int              `json:"nextPageStart"`
}

// Accumulate follows a paged collection until isLastPage and returns every
// value. Any failed page aborts the whole call.
func (c *Client) Accumulate(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(c.pageLimit))
	}

	var (
		values []json.RawMessage
		start  = -1
	)
	for {
		var p page
		if err := c.Get(ctx, path, q, &p); err != nil {
			return nil, err
		}
		values = append(values, p.Values...)
		if p.IsLastPage || p.NextPageStart == nil {
			return values, nil
		}
		if *p.NextPageStart <= start {
			return nil, fmt.Errorf("%w: %s start=%d", errPageLoop, path, *p.NextPageStart)
		}
		start = *p.NextPageStart
		q.Set("start", strconv.Itoa(start))
	}
}

// AccumulateInto is [Client.Accumulate] decoding every value as T.
func AccumulateInto[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	raw, err := c.Accumulate(ctx, path, query)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var raw any
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		raw = payload
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), raw)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	// Disables XSRF checks on endpoints that enforce them for browser clients.
	req.Header.Set("X-Atlassian-Token", "no-check")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.token.Value())
	}

	c.log.Debug(fmt.Sprintf("bitbucket %s %s", method, security.SanitizeURL(u.String())))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bitbucket %s %s: %w", method, path, security.SanitizeError(err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: security.SanitizeString(string(b))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// leveledLogger routes retryablehttp logs to bullets at debug level.
type leveledLogger struct {
	log *bullets.Logger
}

func (l leveledLogger) format(msg string, kv []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return security.SanitizeString(b.String())
}

func (l leveledLogger) Error(msg string, kv ...any) { l.log.Warn(l.format(msg, kv)) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.log.Debug(l.format(msg, kv)) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.log.Debug(l.format(msg, kv)) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.log.Debug(l.format(msg, kv)) }
