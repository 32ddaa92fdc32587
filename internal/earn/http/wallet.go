package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
)

// WalletHandler serves balances and ledger history for the session user.
type WalletHandler struct {
	WalletService *service.WalletService
}

type walletResponse struct {
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HandleBalance handles GET /wallet
//
//	@Summary	Read the wallet balance
//	@Tags		Wallet
//	@Produce	json
//	@Success	200	{object}	walletResponse
//	@Failure	401	{object}	map[string]string	"Not authenticated"
//	@Router		/wallet [get].
func (h *WalletHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wallet, err := h.WalletService.Balance(ctx, httpx.UserIDFromCtx(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, walletResponse{
		Balance:   wallet.Balance,
		UpdatedAt: wallet.UpdatedAt,
	})
}

// HandleHistory handles GET /wallet/history
//
//	@Summary	List recent wallet movements
//	@Tags		Wallet
//	@Produce	json
//	@Param		limit	query		int	false	"Max entries (default 50)"
//	@Success	200		{array}		domain.LedgerEntry
//	@Router		/wallet/history [get].
func (h *WalletHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.WalletService.History(ctx, httpx.UserIDFromCtx(ctx), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, entries)
}
