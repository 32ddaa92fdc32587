package http

import (
	"net/http"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

// AuthHandler handles login and the break-glass admin restore flow.
type AuthHandler struct {
	SessionService  *service.SessionService
	RecoveryService *service.RecoveryService
	CookieName      string
	SecureCookies   bool
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Admin         bool   `json:"admin"`
	Token         string `json:"token"`
	SigningSecret string `json:"signingSecret"`
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in
//	@Description	Authenticates a dashboard user. The session token is set as an HttpOnly cookie and also returned for non-browser clients, together with the client-held reward signing secret.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	loginResponse
//	@Failure		401		{object}	map[string]string	"Invalid credentials"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.SessionService.Login(ctx, req.Username, req.Password)
	if err != nil {
		slogx.FromContext(ctx).Warn("login failed", "username", req.Username)
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  time.Now().Add(service.DefaultSessionTTL),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		UserID:        res.UserID,
		Username:      res.Username,
		Admin:         res.Admin,
		Token:         res.Token,
		SigningSecret: res.SigningSecret,
	})
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary	Log out
//	@Tags		Auth
//	@Success	204	"Cookie cleared"
//	@Router		/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type restoreAdminRequest struct {
	Username    string `json:"username"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// HandleRestoreAdmin handles POST /v1/auth/restore-admin
//
//	@Summary		Restore admin access
//	@Description	Break-glass recovery: a valid TOTP code resets the account's password and re-grants the admin flag. The recovery secret is spent on success.
//	@Tags			Auth
//	@Accept			json
//	@Success		204	"Access restored"
//	@Failure		403	{object}	map[string]string	"Recovery verification failed"
//	@Router			/v1/auth/restore-admin [post].
func (h *AuthHandler) HandleRestoreAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req restoreAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.RecoveryService.Restore(ctx, req.Username, req.Code, req.NewPassword); err != nil {
		slogx.FromContext(ctx).Warn("admin restore failed", "username", req.Username)
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("admin access restored", "username", req.Username)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecoveryEnroll handles POST /v1/recovery/enroll
//
//	@Summary		Enroll recovery TOTP
//	@Description	Generates and stores a recovery TOTP secret for the authenticated admin. Returns the secret and a provisioning URI, shown once.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	service.RecoveryEnrollment
//	@Failure		409	{object}	map[string]string	"Already enrolled"
//	@Router			/v1/recovery/enroll [post].
func (h *AuthHandler) HandleRecoveryEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrollment, err := h.RecoveryService.Enroll(ctx, httpx.UserIDFromCtx(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}
