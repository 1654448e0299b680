package token_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netpie/microgear-go/pkg/token"
)

func TestRevokeCodeDeterministic(t *testing.T) {
	a := token.RevokeCode("tok", "secret", "gearsecret")
	b := token.RevokeCode("tok", "secret", "gearsecret")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestRevokeCodeDependsOnAllInputs(t *testing.T) {
	base := token.RevokeCode("tok", "secret", "gearsecret")
	assert.NotEqual(t, base, token.RevokeCode("tok2", "secret", "gearsecret"))
	assert.NotEqual(t, base, token.RevokeCode("tok", "secret2", "gearsecret"))
	assert.NotEqual(t, base, token.RevokeCode("tok", "secret", "gearsecret2"))
}

// TestRevokeCodeIsPathSafe: the code travels inside a URL path segment, so
// every "/" of the base64 alphabet must be mapped away.
func TestRevokeCodeIsPathSafe(t *testing.T) {
	for _, tok := range []string{"a", "b", "c", "tok", "another-token", "0123456789"} {
		code := token.RevokeCode(tok, "s", "g")
		assert.False(t, strings.Contains(code, "/"), "code %q contains a slash", code)
	}
}
