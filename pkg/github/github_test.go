package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	gh "github.com/google/go-github/v69/github"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/sgaunet/scm-adapter/pkg/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEnterprise starts a fake GitHub Enterprise API and returns a client
// pointing at it.
func newEnterprise(t *testing.T, mux *http.ServeMux) (*github.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := github.New(context.Background(), github.Options{
		Endpoint: srv.URL,
		Token:    security.NewSecureToken("ghp_testtoken"),
	})
	require.NoError(t, err)
	return c, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := github.New(context.Background(), github.Options{Endpoint: "https://github.com"})
	require.ErrorIs(t, err, github.ErrTokenRequired)
}

func TestListOrganizations_FollowsLinkHeader(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("GET /api/v3/user/orgs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_testtoken", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") == "2" {
			writeJSON(t, w, http.StatusOK, []map[string]any{{"login": "team"}})
			return
		}
		w.Header().Set("Link", `<`+srvURL+`/api/v3/user/orgs?page=2>; rel="next"`)
		writeJSON(t, w, http.StatusOK, []map[string]any{{"login": "acme"}})
	})
	c, srv := newEnterprise(t, mux)
	srvURL = srv.URL

	orgs, err := c.ListOrganizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "team"}, orgs)
}

func TestListOrgRepositories_SkipsArchived(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/orgs/acme/repos", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{"name": "api", "full_name": "acme/api"},
			{"name": "legacy", "full_name": "acme/legacy", "archived": true},
		})
	})
	c, _ := newEnterprise(t, mux)

	repos, err := c.ListOrgRepositories(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "acme/api", repos[0].GetFullName())
}

func TestRepoClient_PullRequests(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme:renovate/x", r.URL.Query().Get("head"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		writeJSON(t, w, http.StatusOK, []map[string]any{{"number": 7, "state": "closed"}})
	})
	mux.HandleFunc("POST /api/v3/repos/acme/api/pulls", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Validation Failed",
			"errors":  []map[string]string{{"message": "A pull request already exists for acme:renovate/x."}},
		})
	})
	mux.HandleFunc("PUT /api/v3/repos/acme/api/pulls/7/merge", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusMethodNotAllowed, map[string]any{"message": "Pull Request is not mergeable"})
	})
	c, _ := newEnterprise(t, mux)
	repo := c.Repo("acme", "api")
	ctx := context.Background()

	prs, err := repo.ListPullRequests(ctx, "all", "renovate/x")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 7, prs[0].GetNumber())

	_, err = repo.CreatePullRequest(ctx, "renovate/x", "main", "Update x", "")
	require.Error(t, err)
	assert.True(t, github.IsUnprocessable(err))
	assert.Contains(t, err.Error(), "already exists")

	_, err = repo.MergePullRequest(ctx, 7)
	require.Error(t, err)
	assert.True(t, github.IsNotMergeable(err))
	assert.False(t, github.IsNotFound(err))
}

func TestRepoClient_ListIssuesSkipsPullRequests(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/api/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{"number": 1, "title": "Dependency Dashboard"},
			{"number": 2, "title": "Update x", "pull_request": map[string]string{"url": "https://example.com/pulls/2"}},
		})
	})
	c, _ := newEnterprise(t, mux)

	issues, err := c.Repo("acme", "api").ListIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Dependency Dashboard", issues[0].GetTitle())
}

func TestRepoClient_RemoveLabelIgnoresMissing(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v3/repos/acme/api/issues/3/labels/{name}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Label does not exist"})
	})
	c, _ := newEnterprise(t, mux)

	require.NoError(t, c.Repo("acme", "api").RemoveLabel(context.Background(), 3, "stale"))
}

func TestRepoClient_BranchProtection(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/api/branches/main/protection", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"required_status_checks": map[string]any{"strict": true, "contexts": []string{"ci"}},
		})
	})
	mux.HandleFunc("GET /api/v3/repos/acme/api/branches/dev/protection", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Branch not protected"})
	})
	c, _ := newEnterprise(t, mux)
	repo := c.Repo("acme", "api")

	p, err := repo.BranchProtection(context.Background(), "main")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.RequiredStatusChecks)
	assert.True(t, p.RequiredStatusChecks.Strict)

	p, err = repo.BranchProtection(context.Background(), "dev")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRepoClient_Statuses(t *testing.T) {
	t.Parallel()

	var posted map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/api/commits/abc/statuses", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{{"context": "ci", "state": "success"}})
	})
	mux.HandleFunc("POST /api/v3/repos/acme/api/statuses/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		writeJSON(t, w, http.StatusCreated, posted)
	})
	c, _ := newEnterprise(t, mux)
	repo := c.Repo("acme", "api")
	ctx := context.Background()

	statuses, err := repo.ListStatuses(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "ci", statuses[0].GetContext())

	require.NoError(t, repo.CreateStatus(ctx, "abc", &gh.RepoStatus{
		State:   gh.Ptr("pending"),
		Context: gh.Ptr("lint"),
	}))
	assert.Equal(t, "pending", posted["state"])
	assert.Equal(t, "lint", posted["context"])
}
