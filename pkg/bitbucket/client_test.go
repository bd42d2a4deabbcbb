package bitbucket_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/sgaunet/scm-adapter/pkg/bitbucket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *httptest.Server, mutate ...func(*bitbucket.Options)) *bitbucket.Client {
	t.Helper()
	opts := bitbucket.Options{
		Endpoint:     srv.URL,
		Token:        security.NewSecureToken("BBDC-testtoken"),
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
		PageLimit:    2,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := bitbucket.New(opts)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := bitbucket.New(bitbucket.Options{Token: security.NewSecureToken("x")})
	assert.ErrorIs(t, err, bitbucket.ErrEndpointRequired)

	_, err = bitbucket.New(bitbucket.Options{Endpoint: "https://bb.example.com"})
	assert.ErrorIs(t, err, bitbucket.ErrTokenRequired)

	_, err = bitbucket.New(bitbucket.Options{Endpoint: "bb.example.com", Token: security.NewSecureToken("x")})
	assert.ErrorContains(t, err, "scheme and host are required")
}

func TestNew_StripsRestSuffix(t *testing.T) {
	t.Parallel()

	for _, ep := range []string{
		"https://bb.example.com/context",
		"https://bb.example.com/context/",
		"https://bb.example.com/context/rest",
		"https://bb.example.com/context/rest/api/1.0",
	} {
		c, err := bitbucket.New(bitbucket.Options{Endpoint: ep, Token: security.NewSecureToken("x")})
		require.NoError(t, err)
		assert.Equal(t, "https://bb.example.com/context", c.BaseURL(), ep)
	}
}

func TestClient_BearerAuth(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, map[string]any{"key": "PRJ"})
	}))
	defer srv.Close()

	var p bitbucket.Project
	require.NoError(t, newClient(t, srv).Get(context.Background(), "/rest/api/1.0/projects/PRJ", nil, &p))
	assert.Equal(t, "Bearer BBDC-testtoken", gotAuth)
	assert.Equal(t, "PRJ", p.Key)
}

func TestClient_BasicAuth(t *testing.T) {
	t.Parallel()

	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *bitbucket.Options) { o.Username = "renovate" })
	require.NoError(t, c.Delete(context.Background(), "/rest/api/1.0/x", nil))
	assert.Equal(t, "renovate", user)
	assert.Equal(t, "BBDC-testtoken", pass)
}

func TestAccumulate_FollowsPages(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/rest/api/1.0/projects", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		all := []string{"A", "B", "C", "D", "E"}
		end := min(start+2, len(all))
		values := make([]map[string]string, 0, 2)
		for _, k := range all[start:end] {
			values = append(values, map[string]string{"key": k})
		}
		resp := map[string]any{"values": values, "isLastPage": end == len(all), "start": start}
		if end < len(all) {
			resp["nextPageStart"] = end
		}
		writeJSON(t, w, resp)
	}))
	defer srv.Close()

	projects, err := newClient(t, srv).ListProjects(context.Background())
	require.NoError(t, err)

	keys := make([]string, 0, len(projects))
	for _, p := range projects {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, keys)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAccumulate_StopsOnLoopingCursor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"values": []any{}, "isLastPage": false, "nextPageStart": 0})
	}))
	defer srv.Close()

	c := newClient(t, srv)
	_, err := c.Accumulate(context.Background(), "/rest/api/1.0/projects", nil)
	assert.ErrorContains(t, err, "pagination did not advance")
}

func TestAccumulate_FailedPageAborts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "2" {
			http.Error(w, `{"errors":[{"message":"boom"}]}`, http.StatusForbidden)
			return
		}
		writeJSON(t, w, map[string]any{"values": []any{map[string]string{"key": "A"}}, "isLastPage": false, "nextPageStart": 2})
	}))
	defer srv.Close()

	raw, err := newClient(t, srv).Accumulate(context.Background(), "/rest/api/1.0/projects", nil)
	assert.Nil(t, raw)

	var apiErr *bitbucket.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "GET", apiErr.Method)
	assert.Contains(t, apiErr.Body, "boom")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]string{"displayId": "main"})
	}))
	defer srv.Close()

	branch, err := newClient(t, srv).Repo("PRJ", "repo").DefaultBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpWithAPIError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(t, srv, func(o *bitbucket.Options) { o.RetryMax = 1 })
	err := c.Get(context.Background(), "/rest/api/1.0/projects", nil, nil)

	var apiErr *bitbucket.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Repo("PRJ", "repo").GetPullRequest(context.Background(), 7)
	assert.True(t, bitbucket.IsNotFound(err))
	assert.False(t, bitbucket.IsConflict(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIsOutOfDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "stale version",
			err: &bitbucket.APIError{StatusCode: http.StatusConflict, Body: `{"errors":[{"exceptionName":` +
				`"com.atlassian.bitbucket.pull.PullRequestOutOfDateException","message":"out of date"}]}`},
			want: true,
		},
		{
			name: "merge vetoed",
			err: &bitbucket.APIError{StatusCode: http.StatusConflict, Body: `{"errors":[{"exceptionName":` +
				`"com.atlassian.bitbucket.pull.PullRequestMergeVetoedException"}]}`},
		},
		{
			name: "conflict without body",
			err:  &bitbucket.APIError{StatusCode: http.StatusConflict},
		},
		{
			name: "other status",
			err: &bitbucket.APIError{StatusCode: http.StatusBadRequest, Body: `{"errors":[{"exceptionName":` +
				`"com.atlassian.bitbucket.pull.PullRequestOutOfDateException"}]}`},
		},
		{
			name: "not an api error",
			err:  io.EOF,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, bitbucket.IsOutOfDate(tt.err))
		})
	}
}

func TestAPIError_RedactsTokens(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token BBDC-abcdefghijklmnopqrstuvwxyz0123", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newClient(t, srv).Get(context.Background(), "/rest/api/1.0/projects", nil, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "abcdefghijklmnop")
	assert.Contains(t, err.Error(), "status 401")
}

func TestRepoClient_CreatePullRequest(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/1.0/projects/PRJ/repos/repo/pull-requests", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{"id": 12, "version": 0, "title": "t", "state": "OPEN", "open": true})
	}))
	defer srv.Close()

	pr, err := newClient(t, srv).Repo("PRJ", "repo").CreatePullRequest(context.Background(), "renovate/x", "main", "t", "d")
	require.NoError(t, err)
	assert.Equal(t, 12, pr.ID)

	from := got["fromRef"].(map[string]any)
	to := got["toRef"].(map[string]any)
	assert.Equal(t, "refs/heads/renovate/x", from["id"])
	assert.Equal(t, "refs/heads/main", to["id"])
	assert.Equal(t, "repo", from["repository"].(map[string]any)["slug"])
}

func TestRepoClient_ListPullRequestsByBranch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "OPEN", q.Get("state"))
		assert.Equal(t, "refs/heads/renovate/x", q.Get("at"))
		assert.Equal(t, "OUTGOING", q.Get("direction"))
		writeJSON(t, w, map[string]any{"values": []any{map[string]any{"id": 1}}, "isLastPage": true})
	}))
	defer srv.Close()

	prs, err := newClient(t, srv).Repo("PRJ", "repo").ListPullRequests(context.Background(), bitbucket.StateOpen, "renovate/x")
	require.NoError(t, err)
	require.Len(t, prs, 1)
}

func TestRepoClient_MergeSendsVersion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/1.0/projects/PRJ/repos/repo/pull-requests/5/merge", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("version"))
		assert.Equal(t, "no-check", r.Header.Get("X-Atlassian-Token"))
		writeJSON(t, w, map[string]any{"id": 5, "state": "MERGED", "version": 4})
	}))
	defer srv.Close()

	pr, err := newClient(t, srv).Repo("PRJ", "repo").MergePullRequest(context.Background(), 5, 3)
	require.NoError(t, err)
	assert.Equal(t, bitbucket.StateMerged, pr.State)
}

func TestRepoClient_ListCommentsFiltersActivities(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"isLastPage": true,
			"values": []any{
				map[string]any{"id": 1, "action": "OPENED"},
				map[string]any{"id": 2, "action": "COMMENTED", "commentAction": "ADDED", "comment": map[string]any{"id": 10, "version": 1, "text": "hello"}},
				map[string]any{"id": 3, "action": "COMMENTED", "commentAction": "REPLIED", "comment": map[string]any{"id": 11, "text": "reply"}},
			},
		})
	}))
	defer srv.Close()

	comments, err := newClient(t, srv).Repo("PRJ", "repo").ListComments(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, bitbucket.Comment{ID: 10, Version: 1, Text: "hello"}, comments[0])
}

func TestClient_BuildStatus(t *testing.T) {
	t.Parallel()

	var posted bitbucket.BuildStatus
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/build-status/1.0/commits/abc123", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &posted))
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(t, w, map[string]any{"isLastPage": true, "values": []any{posted}})
		}
	}))
	defer srv.Close()

	c := newClient(t, srv)
	ctx := context.Background()
	require.NoError(t, c.SetBuildStatus(ctx, "abc123", bitbucket.BuildStatus{State: bitbucket.BuildFailed, Key: "renovate/lint", URL: "https://ci"}))

	statuses, err := c.ListBuildStatuses(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "renovate/lint", statuses[0].Key)
	assert.Equal(t, bitbucket.BuildFailed, statuses[0].State)
}

func TestClient_FindUser(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("filter")
		users := []any{map[string]string{"name": "alice2", "slug": "alice2"}}
		if filter == "alice" {
			users = append(users, map[string]string{"name": "alice", "slug": "alice"})
		}
		writeJSON(t, w, map[string]any{"isLastPage": true, "values": users})
	}))
	defer srv.Close()

	c := newClient(t, srv)
	u, err := c.FindUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)

	_, err = c.FindUser(context.Background(), "bob")
	assert.ErrorIs(t, err, bitbucket.ErrUserNotFound)
}

func TestRepository_CloneURL(t *testing.T) {
	t.Parallel()

	repo := bitbucket.Repository{Links: bitbucket.Links{Clone: []bitbucket.Link{
		{Name: "ssh", Href: "ssh://git@bb.example.com:7999/prj/repo.git"},
		{Name: "http", Href: "https://bb.example.com/scm/prj/repo.git"},
	}}}
	assert.Equal(t, "https://bb.example.com/scm/prj/repo.git", repo.CloneURL())
	assert.Equal(t, "ssh://git@bb.example.com:7999/prj/repo.git", repo.SSHCloneURL())
	assert.Equal(t, "", bitbucket.Repository{}.CloneURL())
	assert.Equal(t, "", bitbucket.PullRequest{}.URL())
}
