package http

import (
	"net/http"

	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/trustsdk"
)

// CSRFTokenHandler serves the per-path anti-forgery tokens privileged
// mutations are signed with.
type CSRFTokenHandler struct {
	CSRFService *service.CSRFService
}

// HandleGet handles GET /csrf-token?path=
//
//	@Summary		Fetch a per-path anti-forgery token
//	@Description	Derives the anti-forgery token binding the caller's session to the given canonical path. The token feeds the signature and encryption layers of privileged mutations.
//	@Tags			Trust
//	@Produce		json
//	@Param			path	query		string	true	"Canonical request path"
//	@Success		200		{object}	map[string]string	"token"
//	@Failure		400		{object}	map[string]string	"Missing path"
//	@Failure		401		{object}	map[string]string	"Not authenticated"
//	@Router			/csrf-token [get].
func (h *CSRFTokenHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request", "Missing path parameter.")
		return
	}

	// Canonicalize exactly like clients do, so both sides derive the token
	// for the same key.
	canonical := trustsdk.CanonicalPath(path)
	token := h.CSRFService.TokenFor(httpx.SessionTokenFromCtx(r.Context()), canonical)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
