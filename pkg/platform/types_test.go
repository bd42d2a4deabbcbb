package platform_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/pkg/config"
	"github.com/sgaunet/scm-adapter/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		input   string
		want    platform.Repository
		wantErr bool
	}{
		{input: "PROJ/repo", want: platform.Repository{Namespace: "proj", Name: "repo"}},
		{input: "group/sub/Project", want: platform.Repository{Namespace: "group/sub", Name: "Project"}},
		{input: " /owner/repo/ ", want: platform.Repository{Namespace: "owner", Name: "repo"}},
		{input: "repo", wantErr: true},
		{input: "", wantErr: true},
		{input: "/repo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := platform.ParseRepository(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, platform.ErrInvalidRepository)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRepository_LowercasesNamespace(t *testing.T) {
	r := platform.NewRepository("PROJ", "Repo")
	assert.Equal(t, "proj/Repo", r.String())
}

func TestPRStateFilter_Matches(t *testing.T) {
	states := []platform.PRState{platform.PRStateOpen, platform.PRStateMerged, platform.PRStateDeclined}
	tests := []struct {
		filter platform.PRStateFilter
		want   []bool
	}{
		{filter: platform.PRFilterAll, want: []bool{true, true, true}},
		{filter: "", want: []bool{true, true, true}},
		{filter: platform.PRFilterOpen, want: []bool{true, false, false}},
		{filter: platform.PRFilterClosed, want: []bool{false, true, true}},
	}
	for _, tt := range tests {
		for i, s := range states {
			assert.Equal(t, tt.want[i], tt.filter.Matches(s), "%q matches %q", tt.filter, s)
		}
	}
}

func TestUnsupportedError(t *testing.T) {
	var err error = &platform.UnsupportedError{Provider: "bitbucket", Operation: "EnsureIssue"}
	wrapped := fmt.Errorf("dashboard: %w", err)

	assert.ErrorIs(t, wrapped, platform.ErrUnsupported)
	assert.NotErrorIs(t, wrapped, platform.ErrPRNotFound)
	assert.Equal(t, "bitbucket: EnsureIssue not supported", err.Error())

	var unsupported *platform.UnsupportedError
	require.ErrorAs(t, wrapped, &unsupported)
	assert.Equal(t, "EnsureIssue", unsupported.Operation)
	assert.NotErrorIs(t, errors.New("remote failure"), platform.ErrUnsupported)
}

func TestNew(t *testing.T) {
	for _, name := range []string{config.PlatformBitbucket, config.PlatformGitHub, config.PlatformGitLab} {
		p, err := platform.New(name, platform.Options{})
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := platform.New("svn", platform.Options{})
	require.ErrorIs(t, err, platform.ErrUnknownPlatform)
}

func TestListRepositories_NoCredentials(t *testing.T) {
	for _, name := range []string{config.PlatformBitbucket, config.PlatformGitHub, config.PlatformGitLab} {
		t.Run(name, func(t *testing.T) {
			p, err := platform.New(name, platform.Options{Credentials: hostrules.New()})
			require.NoError(t, err)
			_, err = p.ListRepositories(t.Context(), hostrules.Hint{Endpoint: "https://scm.example.com"})
			require.ErrorIs(t, err, platform.ErrNoCredentials)
		})
	}
}

func TestInitRepo_InvalidRepository(t *testing.T) {
	for _, name := range []string{config.PlatformBitbucket, config.PlatformGitHub, config.PlatformGitLab} {
		t.Run(name, func(t *testing.T) {
			p, err := platform.New(name, platform.Options{})
			require.NoError(t, err)
			_, err = p.InitRepo(t.Context(), platform.InitOptions{Repository: platform.Repository{Name: "repo"}})
			require.ErrorIs(t, err, platform.ErrInvalidRepository)
		})
	}
}
