package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/nightcapdev/hostdeck/pkg/signx"
)

// DefaultReplayWindow bounds how stale a signed request timestamp may be.
const DefaultReplayWindow = 60 * time.Second

// CSRFService derives and verifies the per-path anti-forgery tokens of the
// privileged request protocol. Tokens are deterministic for a (session, path)
// pair, so no server-side token state is needed: the server re-derives and
// compares.
type CSRFService struct {
	Secret string

	// ReplayWindow defaults to DefaultReplayWindow.
	ReplayWindow time.Duration

	now func() time.Time
}

func NewCSRFService(secret string) *CSRFService {
	return &CSRFService{
		Secret:       secret,
		ReplayWindow: DefaultReplayWindow,
		now:          time.Now,
	}
}

// TokenFor derives the anti-forgery token bound to a session and a canonical
// path.
func (s *CSRFService) TokenFor(sessionToken, path string) string {
	sum := sha256.Sum256([]byte(s.Secret + ":" + sessionToken + ":" + path))
	return hex.EncodeToString(sum[:])
}

// VerifySignedRequest checks the three trust headers of a privileged
// mutation: the token must match the derivation for this session and path,
// the timestamp must be within the replay window, and the signature must be
// the digest of token and timestamp. All comparisons are constant time.
func (s *CSRFService) VerifySignedRequest(sessionToken, path, token, timestampMillis, signature string) error {
	if token == "" || timestampMillis == "" || signature == "" {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Missing request signature headers")
	}

	expected := s.TokenFor(sessionToken, path)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Invalid CSRF token")
	}

	ts, err := strconv.ParseInt(timestampMillis, 10, 64)
	if err != nil {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Invalid request timestamp")
	}

	window := s.ReplayWindow
	if window <= 0 {
		window = DefaultReplayWindow
	}
	nowFn := s.now
	if nowFn == nil {
		nowFn = time.Now
	}
	drift := nowFn().Sub(time.UnixMilli(ts))
	if drift < 0 {
		drift = -drift
	}
	if drift > window {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Request timestamp expired")
	}

	if !signx.VerifyRequest(token, timestampMillis, signature) {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Invalid request signature")
	}
	return nil
}
