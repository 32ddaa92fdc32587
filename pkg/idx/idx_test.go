package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewProducesValidSortableIDs(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()

	_, err := Parse(a.String())
	require.NoError(t, err)
	_, err = Parse(b.String())
	require.NoError(t, err)

	// Same-millisecond IDs are still strictly ordered by the monotonic source.
	require.Less(t, a.String(), b.String())
}

func TestParseRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "not-a-ulid", "0123"} {
		_, err := Parse(in)
		require.ErrorIs(t, err, ErrInvalid)
	}
}

func TestNewAtEmbedsTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	id := NewAt(at)

	require.WithinDuration(t, at, id.Time(), time.Millisecond)
}

func TestIsZero(t *testing.T) {
	t.Parallel()

	require.True(t, Zero.IsZero())
	require.False(t, New().IsZero())
}
