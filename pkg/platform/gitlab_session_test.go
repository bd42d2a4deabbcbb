package platform_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/sgaunet/scm-adapter/internal/logger"
	"github.com/sgaunet/scm-adapter/pkg/platform"
	"github.com/sgaunet/scm-adapter/testing/fixtures"
	"github.com/sgaunet/scm-adapter/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

func newGitLabSession(t *testing.T) (platform.Session, *mocks.GitLabAPIClient, *mocks.GitStorage) {
	t.Helper()
	api := mocks.NewGitLabAPIClient()
	storage := mocks.NewGitStorage()
	storage.BranchHeads["main"] = "0000"
	storage.BranchHeads["feature-branch"] = "abc123def456"
	s := platform.NewGitLabSession(platform.NewRepository("group", "project"), api, storage, "main", logger.NoLogger())
	return s, api, storage
}

func updateOpts(t *testing.T, call *mocks.MethodCall) *gitlab.UpdateMergeRequestOptions {
	t.Helper()
	require.NotNil(t, call)
	opts, ok := call.Args["opts"].(*gitlab.UpdateMergeRequestOptions)
	require.True(t, ok)
	return opts
}

func TestGitLabSession_PrStates(t *testing.T) {
	s, api, _ := newGitLabSession(t)
	merged := fixtures.MergeRequestInState("merged")
	merged.IID = 8
	closed := fixtures.MergeRequestInState("closed")
	closed.IID = 9
	locked := fixtures.MergeRequestInState("locked")
	locked.IID = 10
	api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest(), merged, closed, locked}

	prs, err := s.GetPrList(context.Background())
	require.NoError(t, err)
	require.Len(t, prs, 4)
	assert.Equal(t, platform.PRStateOpen, prs[0].State)
	assert.Equal(t, 7, prs[0].Number)
	assert.Equal(t, platform.PRStateMerged, prs[1].State)
	assert.Equal(t, platform.PRStateDeclined, prs[2].State)
	assert.Equal(t, platform.PRStateDeclined, prs[3].State)
}

func TestGitLabSession_FindPr(t *testing.T) {
	s, api, _ := newGitLabSession(t)
	api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest()}

	pr, err := s.GetBranchPr(context.Background(), "feature-branch")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, 7, pr.Number)
	call := api.GetLastCall("ListMergeRequests")
	assert.Equal(t, "opened", call.Args["state"])
	assert.Equal(t, "feature-branch", call.Args["sourceBranch"])

	pr, err = s.FindPr(context.Background(), platform.FindPrOptions{Branch: "feature-branch", Title: "Other"})
	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestGitLabSession_CreatePr(t *testing.T) {
	ctx := context.Background()

	t.Run("passes labels", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.CreateMergeRequestResponse = fixtures.ValidMergeRequest()

		pr, err := s.CreatePr(ctx, platform.CreatePrOptions{
			Branch: "feature-branch",
			Title:  "Test Merge Request",
			Labels: []string{"dependencies"},
		})
		require.NoError(t, err)
		assert.Equal(t, 7, pr.Number)
		call := api.GetLastCall("CreateMergeRequest")
		assert.Equal(t, "main", call.Args["target"])
		assert.Equal(t, []string{"dependencies"}, call.Args["labels"])
	})

	t.Run("targets default branch on request", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.CreateMergeRequestResponse = fixtures.ValidMergeRequest()
		require.NoError(t, s.SetBaseBranch(ctx, "develop"))

		_, err := s.CreatePr(ctx, platform.CreatePrOptions{Branch: "feature-branch", Title: "t", UseDefaultBranch: true})
		require.NoError(t, err)
		assert.Equal(t, "main", api.GetLastCall("CreateMergeRequest").Args["target"])

		_, err = s.CreatePr(ctx, platform.CreatePrOptions{Branch: "feature-branch", Title: "t"})
		require.NoError(t, err)
		assert.Equal(t, "develop", api.GetLastCall("CreateMergeRequest").Args["target"])
	})

	t.Run("duplicate", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.CreateMergeRequestError = mocks.GitLabError(http.StatusConflict, "Another open merge request already exists")

		_, err := s.CreatePr(ctx, platform.CreatePrOptions{Branch: "feature-branch", Title: "t"})
		require.ErrorIs(t, err, platform.ErrPRAlreadyExists)
	})
}

func TestGitLabSession_UpdatePr(t *testing.T) {
	ctx := context.Background()
	s, api, _ := newGitLabSession(t)
	merged := fixtures.MergeRequestInState("merged")
	merged.IID = 8
	api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest(), merged}

	require.NoError(t, s.UpdatePr(ctx, 7, "new title", "new body"))
	opts := updateOpts(t, api.GetLastCall("UpdateMergeRequest"))
	assert.Equal(t, "new title", *opts.Title)
	assert.Equal(t, "new body", *opts.Description)

	require.ErrorIs(t, s.UpdatePr(ctx, 8, "x", "y"), platform.ErrPRNotOpen)
	require.ErrorIs(t, s.UpdatePr(ctx, 99, "x", "y"), platform.ErrPRNotFound)

	pr, err := s.GetPr(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestGitLabSession_MergePr(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts open merge request", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest()}

		merged, err := s.MergePr(ctx, 7, "feature-branch")
		require.NoError(t, err)
		assert.True(t, merged)
		assert.Equal(t, int64(7), api.GetLastCall("AcceptMergeRequest").Args["iid"])
	})

	t.Run("already merged", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.MergeRequests = []*gitlab.MergeRequest{fixtures.MergeRequestInState("merged")}

		merged, err := s.MergePr(ctx, 7, "feature-branch")
		require.NoError(t, err)
		assert.True(t, merged)
		assert.Equal(t, 0, api.GetCallCount("AcceptMergeRequest"))
	})

	t.Run("closed", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.MergeRequests = []*gitlab.MergeRequest{fixtures.MergeRequestInState("closed")}

		_, err := s.MergePr(ctx, 7, "feature-branch")
		require.ErrorIs(t, err, platform.ErrPRNotOpen)
	})

	t.Run("not mergeable", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest()}
		api.AcceptMergeRequestError = mocks.GitLabError(http.StatusMethodNotAllowed, "Method Not Allowed")

		merged, err := s.MergePr(ctx, 7, "feature-branch")
		require.NoError(t, err)
		assert.False(t, merged)
	})

	t.Run("missing", func(t *testing.T) {
		s, _, _ := newGitLabSession(t)
		_, err := s.MergePr(ctx, 7, "feature-branch")
		require.ErrorIs(t, err, platform.ErrPRNotFound)
	})
}

func TestGitLabSession_DeleteBranchClosesMr(t *testing.T) {
	s, api, storage := newGitLabSession(t)
	api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest()}

	require.NoError(t, s.DeleteBranch(context.Background(), "feature-branch", true))
	opts := updateOpts(t, api.GetLastCall("UpdateMergeRequest"))
	assert.Equal(t, "close", *opts.StateEvent)
	assert.Equal(t, 1, storage.GetCallCount("DeleteBranch"))
}

func TestGitLabSession_DeleteBranchStopsOnCloseFailure(t *testing.T) {
	s, api, storage := newGitLabSession(t)
	api.MergeRequests = []*gitlab.MergeRequest{fixtures.ValidMergeRequest()}
	api.UpdateMergeRequestError = mocks.GitLabError(http.StatusForbidden, "403 Forbidden")

	require.Error(t, s.DeleteBranch(context.Background(), "feature-branch", true))
	assert.Equal(t, 0, storage.GetCallCount("DeleteBranch"))
}

func TestGitLabSession_BranchStatus(t *testing.T) {
	ctx := context.Background()
	s, api, _ := newGitLabSession(t)
	api.Statuses = []*gitlab.CommitStatus{
		fixtures.CommitStatus("build", "success"),
		fixtures.CommitStatus("test", "running"),
	}

	state, err := s.GetCombinedBranchStatus(ctx, "feature-branch", nil)
	require.NoError(t, err)
	assert.Equal(t, platform.StatePending, state)

	api.Statuses = append(api.Statuses, fixtures.CommitStatus("deploy", "canceled"))
	state, err = s.GetCombinedBranchStatus(ctx, "feature-branch", nil)
	require.NoError(t, err)
	assert.Equal(t, platform.StateFailure, state)

	require.NoError(t, s.SetBranchStatus(ctx, "feature-branch", platform.StatusCheck{
		Context:     "build",
		State:       platform.StateSuccess,
		Description: "build is success",
	}))
	assert.Equal(t, 0, api.GetCallCount("SetCommitStatus"))

	require.NoError(t, s.SetBranchStatus(ctx, "feature-branch", platform.StatusCheck{
		Context:   "renovate/stability",
		State:     platform.StatePending,
		TargetURL: "https://ci.example.com",
	}))
	call := api.GetLastCall("SetCommitStatus")
	require.NotNil(t, call)
	assert.Equal(t, "abc123def456", call.Args["sha"])
	opts, ok := call.Args["opts"].(*gitlab.SetCommitStatusOptions)
	require.True(t, ok)
	assert.Equal(t, gitlab.Pending, opts.State)
	assert.Equal(t, "renovate/stability", *opts.Name)
	assert.Equal(t, "https://ci.example.com", *opts.TargetURL)
}

func TestGitLabSession_Issues(t *testing.T) {
	ctx := context.Background()
	s, api, _ := newGitLabSession(t)
	api.Issues = []*gitlab.Issue{
		fixtures.GitLabIssue(1, "Dashboard", "closed"),
		fixtures.GitLabIssue(2, "Dashboard", "opened"),
	}

	issues, err := s.GetIssueList(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, platform.IssueClosed, issues[0].State)
	assert.Equal(t, platform.IssueOpen, issues[1].State)

	res, err := s.EnsureIssue(ctx, "Dashboard", "new body")
	require.NoError(t, err)
	assert.Equal(t, platform.EnsureUpdated, res)
	assert.Equal(t, int64(2), api.GetLastCall("UpdateIssue").Args["iid"])

	require.NoError(t, s.EnsureIssueClosing(ctx, "Dashboard"))
	call := api.GetLastCall("UpdateIssue")
	opts, ok := call.Args["opts"].(*gitlab.UpdateIssueOptions)
	require.True(t, ok)
	assert.Equal(t, "close", *opts.StateEvent)
	assert.Equal(t, 2, api.GetCallCount("UpdateIssue"))
}

func TestGitLabSession_Comments(t *testing.T) {
	ctx := context.Background()
	s, api, _ := newGitLabSession(t)
	api.Notes = []*gitlab.Note{fixtures.Note(30, "### Notice\n\nold")}

	res, err := s.EnsureComment(ctx, 7, "Notice", "new")
	require.NoError(t, err)
	assert.Equal(t, platform.EnsureUpdated, res)
	call := api.GetLastCall("UpdateNote")
	assert.Equal(t, int64(30), call.Args["noteID"])
	assert.Equal(t, "### Notice\n\nnew", call.Args["body"])

	res, err = s.EnsureComment(ctx, 7, "Other", "text")
	require.NoError(t, err)
	assert.Equal(t, platform.EnsureCreated, res)

	require.NoError(t, s.EnsureCommentRemoval(ctx, 7, "Notice"))
	assert.Equal(t, int64(30), api.GetLastCall("DeleteNote").Args["noteID"])
}

func TestGitLabSession_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()

	t.Run("issue", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.Issues = []*gitlab.Issue{fixtures.GitLabIssue(1, "Dashboard", "closed")}

		res, err := s.EnsureIssue(ctx, "Dashboard", "content")
		require.NoError(t, err)
		assert.Equal(t, platform.EnsureCreated, res)

		res, err = s.EnsureIssue(ctx, "Dashboard", "content")
		require.NoError(t, err)
		assert.Equal(t, platform.EnsureUnchanged, res)

		assert.Equal(t, 1, api.GetCallCount("CreateIssue"))
		assert.Equal(t, 0, api.GetCallCount("UpdateIssue"))
		open, err := s.FindIssue(ctx, "Dashboard")
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, 2, open.Number)
	})

	t.Run("comment", func(t *testing.T) {
		s, api, _ := newGitLabSession(t)
		api.Notes = []*gitlab.Note{fixtures.Note(30, "### Notice\n\nold")}

		res, err := s.EnsureComment(ctx, 7, "Notice", "new")
		require.NoError(t, err)
		assert.Equal(t, platform.EnsureUpdated, res)

		res, err = s.EnsureComment(ctx, 7, "Notice", "new")
		require.NoError(t, err)
		assert.Equal(t, platform.EnsureUnchanged, res)

		res, err = s.EnsureComment(ctx, 7, "Other", "text")
		require.NoError(t, err)
		assert.Equal(t, platform.EnsureCreated, res)

		res, err = s.EnsureComment(ctx, 7, "Other", "text")
		require.NoError(t, err)
		assert.Equal(t, platform.EnsureUnchanged, res)

		assert.Equal(t, 1, api.GetCallCount("UpdateNote"))
		assert.Equal(t, 1, api.GetCallCount("CreateNote"))
		assert.Len(t, api.Notes, 2)
	})
}

func TestGitLabSession_AddAssignees(t *testing.T) {
	ctx := context.Background()
	s, api, _ := newGitLabSession(t)
	mr := fixtures.ValidMergeRequest()
	mr.Assignees = []*gitlab.BasicUser{{ID: 1, Username: "alice"}}
	api.MergeRequests = []*gitlab.MergeRequest{mr}
	api.Users = map[string]int64{"alice": 1, "bob": 2}

	require.NoError(t, s.AddAssignees(ctx, 7, []string{"bob", "alice", "ghost"}))
	opts := updateOpts(t, api.GetLastCall("UpdateMergeRequest"))
	require.NotNil(t, opts.AssigneeIDs)
	assert.Equal(t, []int64{1, 2}, *opts.AssigneeIDs)

	require.NoError(t, s.AddReviewers(ctx, 7, []string{"bob"}))
	opts = updateOpts(t, api.GetLastCall("UpdateMergeRequest"))
	require.NotNil(t, opts.ReviewerIDs)
	assert.Equal(t, []int64{2}, *opts.ReviewerIDs)

	api.Reset()
	require.NoError(t, s.AddReviewers(ctx, 7, []string{"ghost"}))
	assert.Equal(t, 0, api.GetCallCount("UpdateMergeRequest"))
}

func TestGitLabSession_OptionalOperations(t *testing.T) {
	ctx := context.Background()
	s, api, _ := newGitLabSession(t)

	require.NoError(t, s.DeleteLabel(ctx, 7, "stale"))
	opts := updateOpts(t, api.GetLastCall("UpdateMergeRequest"))
	assert.Equal(t, gitlab.LabelOptions{"stale"}, *opts.RemoveLabels)

	_, err := s.GetVulnerabilityAlerts(ctx)
	require.ErrorIs(t, err, platform.ErrUnsupported)
	var unsupported *platform.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "GetVulnerabilityAlerts", unsupported.Operation)
}

func TestGitLabSession_GetRepoForceRebase(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{method: "merge", want: false},
		{method: "ff", want: true},
		{method: "rebase_merge", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s, api, _ := newGitLabSession(t)
			api.ProjectResponse = fixtures.GitLabProject(tt.method)

			got, err := s.GetRepoForceRebase(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
