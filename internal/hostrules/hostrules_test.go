package hostrules_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sgaunet/scm-adapter/internal/hostrules"
	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tok(s string) security.SecureToken { return security.NewSecureToken(s) }

func TestFind_HintTokenWins(t *testing.T) {
	s := hostrules.New(hostrules.Rule{Platform: "bitbucket", Endpoint: "https://bb.example.com", Token: tok("from-rule")})

	creds, ok := s.Find("bitbucket", hostrules.Hint{Token: "from-hint", Endpoint: "https://bb.example.com/"})
	require.True(t, ok)
	assert.Equal(t, "from-hint", creds.Token.Value())
	assert.Equal(t, "https://bb.example.com", creds.Endpoint)
}

func TestFind_MostSpecificRule(t *testing.T) {
	s := hostrules.New(
		hostrules.Rule{Platform: "bitbucket", Token: tok("any-host")},
		hostrules.Rule{Platform: "bitbucket", Endpoint: "bb.example.com", Token: tok("host")},
		hostrules.Rule{Platform: "bitbucket", Endpoint: "https://bb.example.com/context", Token: tok("host-and-path")},
		hostrules.Rule{Platform: "gitlab", Endpoint: "https://bb.example.com/context", Token: tok("other-platform")},
	)

	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://bb.example.com/context", "host-and-path"},
		{"https://bb.example.com/context/sub", "host-and-path"},
		{"https://bb.example.com", "host"},
		{"https://other.example.com", "any-host"},
		{"", "any-host"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			creds, ok := s.Find("Bitbucket", hostrules.Hint{Endpoint: tt.endpoint})
			require.True(t, ok)
			assert.Equal(t, tt.want, creds.Token.Value())
		})
	}
}

func TestFind_FallsBackToDefault(t *testing.T) {
	s := hostrules.New()

	_, ok := s.Find("github", hostrules.Hint{})
	assert.False(t, ok)

	require.NoError(t, s.Update(hostrules.Credentials{
		Platform: "github",
		Endpoint: "https://api.github.com",
		Token:    tok("default-token"),
	}))

	creds, ok := s.Find("github", hostrules.Hint{})
	require.True(t, ok)
	assert.Equal(t, "default-token", creds.Token.Value())
	assert.Equal(t, "https://api.github.com", creds.Endpoint)

	_, ok = s.Find("github", hostrules.Hint{Endpoint: "https://ghe.example.com"})
	assert.False(t, ok, "default for another host must not leak")
}

func TestFind_NoCredentials(t *testing.T) {
	s := hostrules.New(hostrules.Rule{Platform: "gitlab", Endpoint: "gitlab.example.com", Token: tok("x")})

	_, ok := s.Find("gitlab", hostrules.Hint{Endpoint: "https://gitlab.com"})
	assert.False(t, ok)
}

func TestAddAndUpdate_RequirePlatform(t *testing.T) {
	s := hostrules.New()
	assert.ErrorIs(t, s.Add(hostrules.Rule{Token: tok("x")}), hostrules.ErrEmptyPlatform)
	assert.ErrorIs(t, s.Update(hostrules.Credentials{Token: tok("x")}), hostrules.ErrEmptyPlatform)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := hostrules.New()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Update(hostrules.Credentials{Platform: "bitbucket", Token: tok(fmt.Sprintf("token-%02d", i))})
		}()
		go func() {
			defer wg.Done()
			s.Find("bitbucket", hostrules.Hint{})
		}()
	}
	wg.Wait()

	_, ok := s.Find("bitbucket", hostrules.Hint{})
	assert.True(t, ok)
}
