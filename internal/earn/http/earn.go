package http

import (
	"net/http"
	"strconv"

	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

// EarnHandler handles the rewarded-ad flow endpoints.
type EarnHandler struct {
	AdsService    *service.AdsService
	PolicyService *service.PolicyService
}

type prepareRequest struct {
	Placement      string            `json:"placement"`
	Provider       string            `json:"provider,omitempty"`
	ChallengeToken string            `json:"challengeToken,omitempty"`
	ClientNonce    string            `json:"clientNonce"`
	Timestamp      string            `json:"timestamp"`
	Signature      string            `json:"signature"`
	Hints          map[string]string `json:"hints,omitempty"`
}

// HandlePrepare handles POST /v1/earn/ads/prepare
//
//	@Summary		Prepare a rewarded ad session
//	@Description	Runs the anti-fraud gates (prepare signature, challenge, daily and device caps, cooldown) and mints a one-time ad session for the effective provider.
//	@Tags			Earn
//	@Accept			json
//	@Produce		json
//	@Param			request	body		prepareRequest		true	"Signed prepare request"
//	@Success		200		{object}	service.AdSession
//	@Failure		400		{object}	map[string]string	"Unknown placement or provider"
//	@Failure		403		{object}	map[string]string	"Signature verification failed"
//	@Failure		429		{object}	map[string]string	"Cooldown or cap reached"
//	@Router			/v1/earn/ads/prepare [post].
func (h *EarnHandler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req prepareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.AdsService.Prepare(ctx, service.PrepareInput{
		UserID:         httpx.UserIDFromCtx(ctx),
		Placement:      req.Placement,
		Provider:       req.Provider,
		ClientNonce:    req.ClientNonce,
		Timestamp:      req.Timestamp,
		Signature:      req.Signature,
		ChallengeToken: req.ChallengeToken,
		RemoteIP:       httpx.IPKeyExtractor(r),
		Hints:          req.Hints,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, session)
}

type completeRequest struct {
	Nonce       string `json:"nonce"`
	Ticket      string `json:"ticket"`
	DurationSec int    `json:"durationSec"`
	DeviceHash  string `json:"deviceHash"`
	Provider    string `json:"provider"`
}

type completeResponse struct {
	OK      bool  `json:"ok"`
	Added   int64 `json:"added"`
	Balance int64 `json:"balance"`
}

// HandleComplete handles POST /v1/earn/ads/complete
//
//	@Summary		Redeem a client-measured ad session
//	@Description	Verifies the redemption ticket and measured watch time, then credits the wallet. Each session redeems at most once.
//	@Tags			Earn
//	@Accept			json
//	@Produce		json
//	@Param			request	body		completeRequest		true	"Redemption"
//	@Success		200		{object}	completeResponse
//	@Failure		400		{object}	map[string]string	"Unknown, expired or short session"
//	@Failure		403		{object}	map[string]string	"Ticket or ownership mismatch"
//	@Failure		409		{object}	map[string]string	"Already redeemed"
//	@Router			/v1/earn/ads/complete [post].
func (h *EarnHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.AdsService.Complete(ctx, service.CompleteInput{
		UserID:      httpx.UserIDFromCtx(ctx),
		Nonce:       req.Nonce,
		Ticket:      req.Ticket,
		DurationSec: req.DurationSec,
		DeviceHash:  req.DeviceHash,
		Provider:    req.Provider,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, completeResponse{
		OK:      true,
		Added:   res.Added,
		Balance: res.Balance,
	})
}

// HandleSSV handles GET|POST /v1/earn/ads/ssv
//
//	@Summary		Server-side verification callback
//	@Description	Provider-to-server callback for server-measured ads. Parameters arrive in the query string on both verbs. Replayed transaction ids are rejected.
//	@Tags			Earn
//	@Param			nonce	query	string	true	"Ad session nonce"
//	@Param			user_id	query	string	true	"User id"
//	@Param			tx_id	query	string	true	"Provider transaction id"
//	@Param			amount	query	int		false	"Provider-reported amount (ignored for crediting)"
//	@Success		200	"Credited"
//	@Failure		400	{object}	map[string]string	"Invalid callback"
//	@Failure		409	{object}	map[string]string	"Replayed callback"
//	@Router			/v1/earn/ads/ssv [get].
func (h *EarnHandler) HandleSSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	amount, _ := strconv.ParseInt(q.Get("amount"), 10, 64)
	res, err := h.AdsService.VerifyServerCallback(ctx, service.ServerCallbackInput{
		Nonce:      q.Get("nonce"),
		UserID:     q.Get("user_id"),
		ProviderTx: q.Get("tx_id"),
		Amount:     amount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("server-side verification credited",
		"user_id", q.Get("user_id"), "tx_id", q.Get("tx_id"), "added", res.Added)
	// Providers only care about the status code.
	w.WriteHeader(http.StatusOK)
}

// HandlePolicy handles GET /v1/earn/policy
//
//	@Summary		Read the reward policy
//	@Description	Returns the current reward policy including the adaptive effective daily cap.
//	@Tags			Earn
//	@Produce		json
//	@Success		200	{object}	domain.Policy
//	@Router			/v1/earn/policy [get].
func (h *EarnHandler) HandlePolicy(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.PolicyService.Snapshot())
}
