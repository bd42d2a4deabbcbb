package security_test

import (
	"fmt"
	"testing"

	"github.com/sgaunet/scm-adapter/internal/security"
	"github.com/stretchr/testify/assert"
)

func TestSecureToken_String(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "[empty]"},
		{"short", "abc", "[redacted]"},
		{"exactly eight", "abcdefgh", "[token:****efgh]"},
		{"bitbucket", "BBDC-MzQ2NTk0OTE3Njk4OnabcdWXYZ", "[token:****WXYZ]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := security.NewSecureToken(tt.token)
			assert.Equal(t, tt.want, tok.String())
			assert.Equal(t, tt.want, tok.GoString())
		})
	}
}

func TestSecureToken_FormattingNeverLeaks(t *testing.T) {
	raw := "glpat-verysecretvalue1234"
	tok := security.NewSecureToken(raw)

	for _, verb := range []string{"%v", "%s", "%+v", "%#v"} {
		out := fmt.Sprintf(verb, tok)
		assert.NotContains(t, out, "verysecret", "verb %s leaked the token", verb)
	}

	wrapped := struct{ Token security.SecureToken }{tok}
	assert.NotContains(t, fmt.Sprintf("%+v", wrapped), "verysecret")
}

func TestSecureToken_Value(t *testing.T) {
	tok := security.NewSecureToken("raw-value")
	assert.Equal(t, "raw-value", tok.Value())
	assert.False(t, tok.IsEmpty())
	assert.True(t, security.NewSecureToken("").IsEmpty())
}
