package trustsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Structured rejection codes the backend attaches to policy errors. The
// cooldown detection deliberately keys off Code rather than substring-matching
// the human-readable detail.
const (
	CodeCooldownActive = "cooldown_active"
	CodeDailyCap       = "daily_cap_reached"
	CodeDeviceCap      = "device_cap_reached"
)

var (
	// ErrMalformedTokenResponse reports a token endpoint response whose body
	// is missing a string "token" field.
	ErrMalformedTokenResponse = errors.New("trustsdk: malformed token response")

	// ErrWatchCancelled is the rejection a cancelled watch resolves with.
	ErrWatchCancelled = errors.New("trustsdk: watch cancelled")

	// ErrWatchActive reports a Start while a watch is already running.
	ErrWatchActive = errors.New("trustsdk: watch already active")

	// ErrMissingTicket reports a client-measured session without its ticket.
	ErrMissingTicket = errors.New("trustsdk: session missing ticket")

	// ErrUnsupportedProvider reports a prepare response selecting a provider
	// the coordinator has no strategy for.
	ErrUnsupportedProvider = errors.New("trustsdk: unsupported ad provider")

	// ErrCooldownActive reports a watch attempt rejected by the local
	// cooldown gate, without a round trip to the backend.
	ErrCooldownActive = errors.New("trustsdk: cooldown active")
)

// APIError is the typed error raised for any non-2xx response, carrying the
// HTTP status and the parsed error payload.
type APIError struct {
	StatusCode int
	Code       string // machine-readable rejection code, may be empty
	Detail     string // human-readable message
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("trustsdk: HTTP %d %s: %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("trustsdk: HTTP %d: %s", e.StatusCode, e.Detail)
}

// IsAuthError reports whether the error is an authorization failure that
// triggered token eviction and the revocation broadcast.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsCooldown reports a structured cooldown rejection.
func (e *APIError) IsCooldown() bool {
	return e.Code == CodeCooldownActive
}

// parseErrorResponse builds an APIError from a non-2xx response body. The
// backend contract is a JSON body with a "detail" field (and optionally a
// structured "code"); anything else falls back to the HTTP status text.
func parseErrorResponse(statusCode int, body []byte) *APIError {
	var payload struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return &APIError{StatusCode: statusCode, Code: payload.Code, Detail: payload.Detail}
	}
	return &APIError{StatusCode: statusCode, Detail: http.StatusText(statusCode)}
}

// asAPIError unwraps err to an *APIError when possible.
func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
