package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifyPassword("hunter2!", hash))
	require.Error(t, VerifyPassword("hunter3!", hash))
}

func TestHashPasswordSaltsEveryCall(t *testing.T) {
	a, err := HashPassword("same-input")
	require.NoError(t, err)
	b, err := HashPassword("same-input")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.Error(t, VerifyPassword("x", "not-a-phc-string"))
	require.Error(t, VerifyPassword("x", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
}
