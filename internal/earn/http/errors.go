package http

import (
	"errors"
	"net/http"

	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

// writeServiceError maps service-layer failures onto the {"detail","code"}
// error envelope. Rejections carry their own status and code; everything else
// is a generic 500 so internals never leak into responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *service.Rejection
	if errors.As(err, &rej) {
		httpx.WriteDetail(w, rej.Status, rej.Code, rej.Detail)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteDetail(w, http.StatusUnauthorized, "invalid_credentials",
			"Invalid username or password.")
	case errors.Is(err, service.ErrInvalidRecoveryCode),
		errors.Is(err, service.ErrRecoveryNotEnrolled):
		// Both collapse to one response so probing cannot tell enrolled
		// accounts apart.
		httpx.WriteDetail(w, http.StatusForbidden, "invalid_recovery",
			"Recovery verification failed.")
	case errors.Is(err, service.ErrRecoveryAlreadyEnrolled):
		httpx.WriteDetail(w, http.StatusConflict, "already_enrolled",
			"Recovery is already enrolled.")
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteDetail(w, http.StatusNotFound, "not_found", "Resource not found.")
	case errors.Is(err, store.ErrAlreadyExists):
		httpx.WriteDetail(w, http.StatusConflict, "already_exists", "Resource already exists.")
	default:
		slogx.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "internal_error",
			"Internal server error.")
	}
}

// decodeJSON parses a request body, writing the 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := jsonDecode(r, out); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body.")
		return false
	}
	return true
}
