package trustsdk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	t.Run("plain path passes through", func(t *testing.T) {
		require.Equal(t, "/v1/admin/users", CanonicalPath("/v1/admin/users"))
	})

	t.Run("strips query string", func(t *testing.T) {
		require.Equal(t, "/v1/admin/users", CanonicalPath("/v1/admin/users?page=2&sort=name"))
	})

	t.Run("strips fragment", func(t *testing.T) {
		require.Equal(t, "/v1/admin/users", CanonicalPath("/v1/admin/users#section"))
	})

	t.Run("drops scheme and host from full URL", func(t *testing.T) {
		require.Equal(t, "/v1/admin/users", CanonicalPath("https://dash.example.com/v1/admin/users?x=1"))
	})

	t.Run("ensures leading slash", func(t *testing.T) {
		require.Equal(t, "/v1/admin", CanonicalPath("v1/admin"))
	})

	t.Run("empty input maps to root", func(t *testing.T) {
		require.Equal(t, "/", CanonicalPath(""))
		require.Equal(t, "/", CanonicalPath("?x=1"))
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			"/v1/admin/users?page=2",
			"https://dash.example.com/v1/admin/users",
			"v1/admin",
			"",
		}
		for _, in := range inputs {
			once := CanonicalPath(in)
			require.Equal(t, once, CanonicalPath(once), "input %q", in)
		}
	})
}
