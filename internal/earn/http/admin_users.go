package http

import (
	"net/http"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

// AdminHandler handles the admin user-management surface. Every mutation here
// sits behind the TrustGuard: signed headers for all of them, encrypted
// bodies for the ones under the sensitive prefix.
type AdminHandler struct {
	UsersService  *service.UsersService
	WalletService *service.WalletService
}

type adminUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAdminUser(u domain.User) adminUser {
	return adminUser{ID: u.ID, Username: u.Username, Admin: u.Admin, CreatedAt: u.CreatedAt}
}

// HandleList handles GET /v1/admin/users
//
//	@Summary	List users
//	@Tags		Admin
//	@Produce	json
//	@Success	200	{array}		adminUser
//	@Failure	403	{object}	map[string]string	"Missing admin permissions"
//	@Router		/v1/admin/users [get].
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.UsersService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]adminUser, 0, len(users))
	for _, u := range users {
		out = append(out, toAdminUser(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// HandleCreate handles POST /v1/admin/users
//
//	@Summary		Create a user
//	@Description	Creates a user with a zero-balance wallet. The request body travels inside the encrypted envelope.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	adminUser
//	@Failure		409	{object}	map[string]string	"Username taken"
//	@Router			/v1/admin/users [post].
func (h *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request",
			"Username and a password of at least 8 characters are required.")
		return
	}

	user, err := h.UsersService.Create(ctx, req.Username, req.Password, req.Admin)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("user created",
		"user_id", user.ID, "admin", user.Admin, "by", httpx.UserIDFromCtx(ctx))
	httpx.WriteJSON(w, http.StatusCreated, toAdminUser(user))
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// HandleResetPassword handles POST /v1/admin/users/{id}/password
//
//	@Summary		Reset a user's password
//	@Description	The new password travels inside the encrypted envelope.
//	@Tags			Admin
//	@Accept			json
//	@Success		204	"Password reset"
//	@Failure		404	{object}	map[string]string	"Unknown user"
//	@Router			/v1/admin/users/{id}/password [post].
func (h *AdminHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("id")

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 8 {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request",
			"Password must be at least 8 characters.")
		return
	}

	if err := h.UsersService.ResetPassword(ctx, userID, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("password reset",
		"user_id", userID, "by", httpx.UserIDFromCtx(ctx))
	w.WriteHeader(http.StatusNoContent)
}

type setAdminRequest struct {
	Admin bool `json:"admin"`
}

// HandleSetAdmin handles POST /v1/admin/users/{id}/admin
//
//	@Summary	Grant or revoke the admin flag
//	@Tags		Admin
//	@Accept		json
//	@Success	204	"Flag updated"
//	@Failure	404	{object}	map[string]string	"Unknown user"
//	@Router		/v1/admin/users/{id}/admin [post].
func (h *AdminHandler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("id")

	var req setAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.UsersService.SetAdmin(ctx, userID, req.Admin); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("admin flag updated",
		"user_id", userID, "admin", req.Admin, "by", httpx.UserIDFromCtx(ctx))
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/admin/users/{id}
//
//	@Summary	Delete a user
//	@Tags		Admin
//	@Success	204	"User deleted"
//	@Failure	404	{object}	map[string]string	"Unknown user"
//	@Router		/v1/admin/users/{id} [delete].
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("id")

	if userID == httpx.UserIDFromCtx(ctx) {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request",
			"Refusing to delete the calling account.")
		return
	}

	if err := h.UsersService.Delete(ctx, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("user deleted",
		"user_id", userID, "by", httpx.UserIDFromCtx(ctx))
	w.WriteHeader(http.StatusNoContent)
}

type adjustWalletRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// HandleAdjustWallet handles POST /v1/admin/wallets/{id}/adjust
//
//	@Summary		Adjust a wallet balance
//	@Description	Applies a signed balance delta (positive or negative) with a ledger entry.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]int64	"balance"
//	@Failure		404	{object}	map[string]string	"Unknown wallet"
//	@Router			/v1/admin/wallets/{id}/adjust [post].
func (h *AdminHandler) HandleAdjustWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("id")

	var req adjustWalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	balance, err := h.WalletService.Adjust(ctx, userID, req.Delta, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("wallet adjusted",
		"user_id", userID, "delta", req.Delta, "by", httpx.UserIDFromCtx(ctx))
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}
