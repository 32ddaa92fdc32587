// Package signx holds the signature schemes of the trust layer.
//
// Two schemes live here. The request signature is a plain SHA-256 digest over
// "token:timestamp" — NOT a keyed MAC. The token is hashed, not used as an
// HMAC key, so the scheme is only as strong as token secrecy in transit. The
// deployed verifier expects exactly this construction, so it is preserved
// as-is; switching to a real HMAC requires a coordinated server change.
//
// The prepare signature (reward-session binding) is a proper HMAC-SHA256 over
// "userID|nonce|timestamp|placement" with a dedicated client signing secret,
// deliberately a separate key from anything token-derived.
package signx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// RequestAuth is the per-request authentication material attached to
// privileged mutations as headers.
type RequestAuth struct {
	Timestamp string // epoch milliseconds, decimal
	Signature string // hex digest, see SignRequest
}

// Header names carried on privileged mutations.
const (
	HeaderToken     = "X-CSRF-Token"
	HeaderTimestamp = "X-Request-Timestamp"
	HeaderSignature = "X-Request-Signature"
)

// TimestampMillis renders t as the decimal epoch-millisecond string the
// protocol uses on the wire.
func TimestampMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// SignRequest derives the request signature for a token at the given
// timestamp: hex(SHA-256("token:timestamp")). Pure function; callers must
// compute a fresh timestamp for every request and never reuse one.
func SignRequest(token, timestampMillis string) string {
	sum := sha256.Sum256([]byte(token + ":" + timestampMillis))
	return hex.EncodeToString(sum[:])
}

// VerifyRequest checks a request signature in constant time.
func VerifyRequest(token, timestampMillis, signature string) bool {
	expected := SignRequest(token, timestampMillis)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PrepareSignature computes the application-level HMAC binding a reward
// prepare call to a user, nonce, timestamp and placement.
func PrepareSignature(secret, userID, nonce, timestampMillis, placement string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID + "|" + nonce + "|" + timestampMillis + "|" + placement))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPrepareSignature checks a prepare signature in constant time.
func VerifyPrepareSignature(secret, userID, nonce, timestampMillis, placement, signature string) bool {
	expected := PrepareSignature(secret, userID, nonce, timestampMillis, placement)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Ticket computes the HMAC ticket the server issues at prepare time and
// requires back at completion, binding nonce, user and device together.
func Ticket(secret, nonce, userID, deviceHash string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce + "|" + userID + "|" + deviceHash))
	return hex.EncodeToString(mac.Sum(nil))
}
