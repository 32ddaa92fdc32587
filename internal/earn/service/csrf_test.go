package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nightcapdev/hostdeck/pkg/signx"
)

func TestCSRFTokenDerivation(t *testing.T) {
	svc := NewCSRFService("server-secret")

	a := svc.TokenFor("session-1", "/v1/admin/users")
	require.Equal(t, a, svc.TokenFor("session-1", "/v1/admin/users"))
	require.NotEqual(t, a, svc.TokenFor("session-1", "/v1/admin/policy"))
	require.NotEqual(t, a, svc.TokenFor("session-2", "/v1/admin/users"))
	require.NotEqual(t, a, NewCSRFService("other").TokenFor("session-1", "/v1/admin/users"))
}

func TestVerifySignedRequest(t *testing.T) {
	const (
		session = "session-1"
		path    = "/v1/admin/users"
	)

	base := time.Now()
	svc := NewCSRFService("server-secret")
	svc.now = func() time.Time { return base }

	signedAt := func(at time.Time) (token, ts, sig string) {
		token = svc.TokenFor(session, path)
		ts = signx.TimestampMillis(at)
		return token, ts, signx.SignRequest(token, ts)
	}

	t.Run("valid request", func(t *testing.T) {
		token, ts, sig := signedAt(base)
		require.NoError(t, svc.VerifySignedRequest(session, path, token, ts, sig))
	})

	t.Run("missing headers", func(t *testing.T) {
		requireRejection(t, svc.VerifySignedRequest(session, path, "", "", ""), 403, CodeInvalidRequest)
	})

	t.Run("token for another path", func(t *testing.T) {
		token := svc.TokenFor(session, "/v1/admin/policy")
		ts := signx.TimestampMillis(base)
		err := svc.VerifySignedRequest(session, path, token, ts, signx.SignRequest(token, ts))
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("timestamp outside the replay window", func(t *testing.T) {
		token, ts, sig := signedAt(base.Add(-2 * DefaultReplayWindow))
		err := svc.VerifySignedRequest(session, path, token, ts, sig)
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("future timestamp outside the window", func(t *testing.T) {
		token, ts, sig := signedAt(base.Add(2 * DefaultReplayWindow))
		err := svc.VerifySignedRequest(session, path, token, ts, sig)
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("signature over a different timestamp", func(t *testing.T) {
		token, _, sig := signedAt(base)
		ts := signx.TimestampMillis(base.Add(time.Second))
		err := svc.VerifySignedRequest(session, path, token, ts, sig)
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("non-numeric timestamp", func(t *testing.T) {
		token := svc.TokenFor(session, path)
		err := svc.VerifySignedRequest(session, path, token, "yesterday", signx.SignRequest(token, "yesterday"))
		requireRejection(t, err, 403, CodeInvalidRequest)
	})
}
