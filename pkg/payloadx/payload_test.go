package payloadx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"username": "alice",
		"roles":    []any{"admin", "support"},
		"enabled":  true,
	}

	envelope, err := Encrypt(in, "per-path-token")
	require.NoError(t, err)
	require.Contains(t, envelope, ".")
	require.NotContains(t, envelope, "=", "segments must be unpadded base64url")

	var out map[string]any
	require.NoError(t, Decrypt(envelope, "per-path-token", &out))
	require.Equal(t, in["username"], out["username"])
	require.Equal(t, in["enabled"], out["enabled"])
	require.Len(t, out["roles"], 2)
}

func TestEncryptDrawsFreshIVPerCall(t *testing.T) {
	t.Parallel()

	a, err := Encrypt(map[string]string{"k": "v"}, "tok")
	require.NoError(t, err)
	b, err := Encrypt(map[string]string{"k": "v"}, "tok")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NotEqual(t, strings.SplitN(a, ".", 2)[0], strings.SplitN(b, ".", 2)[0])
}

func TestDecryptRejectsWrongToken(t *testing.T) {
	t.Parallel()

	envelope, err := Encrypt(map[string]string{"k": "v"}, "tok-a")
	require.NoError(t, err)

	var out map[string]string
	require.ErrorIs(t, Decrypt(envelope, "tok-b", &out), ErrDecrypt)
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	t.Parallel()

	var out map[string]string
	require.ErrorIs(t, Decrypt("no-separator", "tok", &out), ErrMalformed)
	require.ErrorIs(t, Decrypt("!!.!!", "tok", &out), ErrMalformed)
	// IV segment of the wrong length
	require.ErrorIs(t, Decrypt("AAAA.AAAA", "tok", &out), ErrMalformed)
}

func TestDecryptAcceptsPaddedSegments(t *testing.T) {
	t.Parallel()

	envelope, err := Encrypt(map[string]string{"k": "v"}, "tok")
	require.NoError(t, err)

	// Re-pad both segments the way older clients did.
	parts := strings.SplitN(envelope, ".", 2)
	padded := pad(parts[0]) + "." + pad(parts[1])

	var out map[string]string
	require.NoError(t, Decrypt(padded, "tok", &out))
	require.Equal(t, "v", out["k"])
}

func pad(s string) string {
	if n := len(s) % 4; n != 0 {
		return s + strings.Repeat("=", 4-n)
	}
	return s
}
