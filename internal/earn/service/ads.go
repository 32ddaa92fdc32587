package service

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/cryptox"
	"github.com/nightcapdev/hostdeck/pkg/idx"
	"github.com/nightcapdev/hostdeck/pkg/signx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

// Provider names the policy knows about.
const (
	ProviderMonetag = "monetag" // client-measured
	ProviderGMA     = "gma"     // server-measured (SSV callback)
)

const (
	// DefaultClaimTTL is how long a prepared session stays redeemable.
	DefaultClaimTTL = 10 * time.Minute

	// DefaultPrepareWindow bounds the age of a prepare signature timestamp.
	DefaultPrepareWindow = 5 * time.Minute
)

// ChallengeVerifier checks an anti-bot challenge token (e.g. Turnstile).
// Verification is best effort: an unreachable verifier must not take the
// earn flow down with it.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// AdsService implements the rewarded-ad trust flow: prepare mints a one-time
// claim after every anti-fraud gate passes, complete redeems client-measured
// claims, and VerifyServerCallback redeems server-measured ones.
type AdsService struct {
	Store    store.Store
	Policies *PolicyService
	Sessions *SessionService
	Metrics  *metrics.Metrics

	// TicketSecret keys the redemption tickets and device fingerprints.
	TicketSecret string

	Challenge ChallengeVerifier // optional

	ClaimTTL      time.Duration
	PrepareWindow time.Duration

	now func() time.Time
}

type PrepareInput struct {
	UserID         string
	Placement      string
	Provider       string
	ClientNonce    string
	Timestamp      string
	Signature      string
	ChallengeToken string
	RemoteIP       string
	Hints          map[string]string
}

// AdSession is the one-time grant returned from prepare.
type AdSession struct {
	Nonce    string `json:"nonce"`
	Provider string `json:"provider"`

	Ticket     string `json:"ticket,omitempty"`
	ZoneID     string `json:"zoneId,omitempty"`
	ScriptURL  string `json:"scriptUrl,omitempty"`
	DeviceHash string `json:"deviceHash,omitempty"`

	AdTagURL string `json:"adTagUrl,omitempty"`
}

type CompleteInput struct {
	UserID      string
	Nonce       string
	Ticket      string
	DurationSec int
	DeviceHash  string
	Provider    string
}

type CompleteResult struct {
	Added   int64
	Balance int64
}

// Prepare runs the anti-fraud gates and mints a one-time ad claim.
func (s *AdsService) Prepare(ctx context.Context, in PrepareInput) (AdSession, error) {
	session, err := s.prepare(ctx, in)
	s.countPrepare(err)
	return session, err
}

func (s *AdsService) prepare(ctx context.Context, in PrepareInput) (AdSession, error) {
	policy := s.Policies.Snapshot()
	now := s.clock()

	if !policy.HasPlacement(in.Placement) {
		return AdSession{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Unknown placement")
	}

	provider := in.Provider
	if provider == "" {
		provider = policy.DefaultProvider
	}
	if !policy.ProviderEnabled(provider) {
		return AdSession{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Provider not available")
	}

	if err := s.verifyPrepareSignature(in, now); err != nil {
		return AdSession{}, err
	}

	if err := s.verifyChallenge(ctx, in); err != nil {
		return AdSession{}, err
	}

	deviceHash := s.deviceHash(in.UserID, in.Hints)

	if err := s.enforceCaps(ctx, in.UserID, deviceHash, policy, now); err != nil {
		return AdSession{}, err
	}

	ttl := s.ClaimTTL
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	claim := domain.AdClaim{
		Nonce:      idx.New().String(),
		UserID:     in.UserID,
		Placement:  in.Placement,
		Provider:   provider,
		DeviceHash: deviceHash,
		ExpiresAt:  now.Add(ttl),
	}
	if err := s.Store.AdClaims().CreateClaim(ctx, claim); err != nil {
		return AdSession{}, fmt.Errorf("failed to store ad claim: %w", err)
	}

	session := AdSession{Nonce: claim.Nonce, Provider: provider}
	cfg := policy.Providers[provider]
	switch provider {
	case ProviderGMA:
		session.AdTagURL = fmt.Sprintf("%s?nonce=%s&user=%s", cfg.AdTagBase, claim.Nonce, in.UserID)
	default:
		session.Ticket = signx.Ticket(s.TicketSecret, claim.Nonce, in.UserID, deviceHash)
		session.ZoneID = cfg.ZoneID
		session.ScriptURL = cfg.ScriptURL
		session.DeviceHash = deviceHash
	}
	return session, nil
}

// Complete redeems a client-measured claim and credits the wallet.
func (s *AdsService) Complete(ctx context.Context, in CompleteInput) (CompleteResult, error) {
	res, err := s.complete(ctx, in)
	s.countVerify(err)
	return res, err
}

func (s *AdsService) complete(ctx context.Context, in CompleteInput) (CompleteResult, error) {
	policy := s.Policies.Snapshot()
	now := s.clock()

	claim, err := s.Store.AdClaims().GetClaim(ctx, in.Nonce)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Unknown ad session")
		}
		return CompleteResult{}, fmt.Errorf("failed to load ad claim: %w", err)
	}

	switch {
	case claim.UserID != in.UserID:
		return CompleteResult{}, reject(http.StatusForbidden, CodeInvalidRequest, "Ad session belongs to another user")
	case claim.Provider != ProviderMonetag || in.Provider != claim.Provider:
		return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Provider mismatch")
	case claim.Used():
		return CompleteResult{}, reject(http.StatusConflict, CodeInvalidRequest, "Ad session already redeemed")
	case claim.Expired(now):
		return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Ad session expired")
	case claim.DeviceHash != in.DeviceHash:
		return CompleteResult{}, reject(http.StatusForbidden, CodeInvalidRequest, "Device mismatch")
	}

	expected := signx.Ticket(s.TicketSecret, claim.Nonce, claim.UserID, claim.DeviceHash)
	if !hmac.Equal([]byte(expected), []byte(in.Ticket)) {
		return CompleteResult{}, reject(http.StatusForbidden, CodeInvalidRequest, "Invalid ticket")
	}

	if in.DurationSec < policy.RequiredDuration {
		return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Watch time too short")
	}

	return s.credit(ctx, claim, int64(policy.RewardPerView), "", now)
}

// ServerCallbackInput is the provider's server-side verification callback
// (SSV) for server-measured providers.
type ServerCallbackInput struct {
	Nonce      string
	UserID     string
	ProviderTx string
	Amount     int64
}

// VerifyServerCallback redeems a server-measured claim from the provider's
// callback. Replayed callbacks (same provider transaction id) are dropped.
func (s *AdsService) VerifyServerCallback(ctx context.Context, in ServerCallbackInput) (CompleteResult, error) {
	res, err := s.verifyServerCallback(ctx, in)
	s.countVerify(err)
	return res, err
}

func (s *AdsService) verifyServerCallback(ctx context.Context, in ServerCallbackInput) (CompleteResult, error) {
	policy := s.Policies.Snapshot()
	now := s.clock()

	if in.Nonce == "" || in.UserID == "" || in.ProviderTx == "" {
		return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Missing callback parameters")
	}

	seen, err := s.Store.AdRewards().RewardExistsByProviderTx(ctx, in.ProviderTx)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("failed to check provider transaction: %w", err)
	}
	if seen {
		return CompleteResult{}, reject(http.StatusConflict, CodeInvalidRequest, "Callback already processed")
	}

	claim, err := s.Store.AdClaims().GetClaim(ctx, in.Nonce)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Unknown ad session")
		}
		return CompleteResult{}, fmt.Errorf("failed to load ad claim: %w", err)
	}

	switch {
	case claim.UserID != in.UserID:
		return CompleteResult{}, reject(http.StatusForbidden, CodeInvalidRequest, "Ad session belongs to another user")
	case claim.Provider != ProviderGMA:
		return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Provider mismatch")
	case claim.Used():
		return CompleteResult{}, reject(http.StatusConflict, CodeInvalidRequest, "Ad session already redeemed")
	case claim.Expired(now):
		return CompleteResult{}, reject(http.StatusBadRequest, CodeInvalidRequest, "Ad session expired")
	}

	// The credited amount is always the policy's, never the callback's: a
	// forged amount parameter must not inflate the reward.
	return s.credit(ctx, claim, int64(policy.RewardPerView), in.ProviderTx, now)
}

// credit atomically consumes the claim, records the reward, bumps the day
// counter and moves the wallet.
func (s *AdsService) credit(ctx context.Context, claim domain.AdClaim, amount int64, providerTx string, now time.Time) (CompleteResult, error) {
	var balance int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.AdClaims().ConsumeClaim(ctx, claim.Nonce, now); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return reject(http.StatusConflict, CodeInvalidRequest, "Ad session already redeemed")
			}
			return fmt.Errorf("failed to consume claim: %w", err)
		}

		if err := tx.AdRewards().CreateReward(ctx, domain.AdReward{
			ID:         idx.New().String(),
			UserID:     claim.UserID,
			Nonce:      claim.Nonce,
			Provider:   claim.Provider,
			ProviderTx: providerTx,
			Amount:     amount,
			DeviceHash: claim.DeviceHash,
		}); err != nil {
			return fmt.Errorf("failed to record reward: %w", err)
		}

		if _, err := tx.UserLimits().IncrementViews(ctx, claim.UserID, domain.DayKey(now)); err != nil {
			return fmt.Errorf("failed to bump view counter: %w", err)
		}

		var err error
		balance, err = tx.Wallets().AddBalance(ctx, claim.UserID, amount)
		if err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		return tx.Ledger().CreateEntry(ctx, domain.LedgerEntry{
			ID:     idx.New().String(),
			UserID: claim.UserID,
			Amount: amount,
			Reason: domain.LedgerReasonAdReward,
			Ref:    claim.Nonce,
		})
	})
	if err != nil {
		return CompleteResult{}, err
	}

	if s.Metrics != nil {
		s.Metrics.RewardCoinsTotal.Add(float64(amount))
	}
	return CompleteResult{Added: amount, Balance: balance}, nil
}

func (s *AdsService) verifyPrepareSignature(in PrepareInput, now time.Time) error {
	if in.ClientNonce == "" || in.Timestamp == "" || in.Signature == "" {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Missing prepare signature")
	}

	ts, err := strconv.ParseInt(in.Timestamp, 10, 64)
	if err != nil {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Invalid prepare timestamp")
	}
	window := s.PrepareWindow
	if window <= 0 {
		window = DefaultPrepareWindow
	}
	drift := now.Sub(time.UnixMilli(ts))
	if drift < 0 {
		drift = -drift
	}
	if drift > window {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Prepare timestamp expired")
	}

	secret := s.Sessions.SigningSecretFor(in.UserID)
	if !signx.VerifyPrepareSignature(secret, in.UserID, in.ClientNonce, in.Timestamp, in.Placement, in.Signature) {
		return reject(http.StatusForbidden, CodeInvalidRequest, "Invalid prepare signature")
	}
	return nil
}

// verifyChallenge runs the anti-bot check when configured. A definitive "no"
// from the verifier rejects the prepare; a verifier outage is logged and
// waved through so the earn flow does not share the verifier's fate.
func (s *AdsService) verifyChallenge(ctx context.Context, in PrepareInput) error {
	if s.Challenge == nil || in.ChallengeToken == "" {
		return nil
	}
	err := s.Challenge.Verify(ctx, in.ChallengeToken, in.RemoteIP)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrChallengeFailed):
		return reject(http.StatusForbidden, CodeInvalidRequest, "Challenge verification failed")
	default:
		slogx.FromContext(ctx).Warn("challenge verification unavailable",
			"user_id", in.UserID, "error", err)
		return nil
	}
}

func (s *AdsService) enforceCaps(ctx context.Context, userID, deviceHash string, policy domain.Policy, now time.Time) error {
	day := domain.DayKey(now)
	dayStart := now.UTC().Truncate(24 * time.Hour)

	views, err := s.Store.UserLimits().GetViews(ctx, userID, day)
	if err != nil {
		return fmt.Errorf("failed to read view counter: %w", err)
	}
	if views >= policy.EffectivePerDay {
		return reject(http.StatusTooManyRequests, CodeDailyCap, "Daily reward limit reached")
	}

	if deviceHash != "" && policy.PerDevice > 0 {
		deviceViews, err := s.Store.AdRewards().CountDeviceRewardsSince(ctx, deviceHash, dayStart)
		if err != nil {
			return fmt.Errorf("failed to count device rewards: %w", err)
		}
		if deviceViews >= policy.PerDevice {
			return reject(http.StatusTooManyRequests, CodeDeviceCap, "Device reward limit reached")
		}
	}

	if policy.MinInterval > 0 {
		latest, err := s.Store.AdRewards().LatestUserReward(ctx, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// first reward ever
		case err != nil:
			return fmt.Errorf("failed to read latest reward: %w", err)
		default:
			wait := time.Duration(policy.MinInterval)*time.Second - now.Sub(latest.CreatedAt)
			if wait > 0 {
				return reject(http.StatusTooManyRequests, CodeCooldownActive,
					fmt.Sprintf("Please wait %d seconds before the next ad", int(wait.Seconds())+1))
			}
		}
	}
	return nil
}

// deviceHash keys device caps on a keyed fingerprint of the client's device
// hint, so raw identifiers never land in the database.
func (s *AdsService) deviceHash(userID string, hints map[string]string) string {
	device := hints["device"]
	if device == "" {
		device = hints["ua"]
	}
	if device == "" {
		return cryptox.FingerprintToken(s.TicketSecret + "|device|" + userID)
	}
	return cryptox.FingerprintToken(s.TicketSecret + "|device|" + device)
}

func (s *AdsService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *AdsService) countPrepare(err error) {
	if s.Metrics == nil {
		return
	}
	if err == nil {
		s.Metrics.PrepareTotal.WithLabelValues(metrics.ResultOK).Inc()
	} else {
		s.Metrics.PrepareTotal.WithLabelValues(metrics.ResultRejected).Inc()
	}
}

func (s *AdsService) countVerify(err error) {
	success := err == nil
	if s.Policies != nil {
		var rej *Rejection
		// Cooldowns and caps are throttles, not fraud signals; only real
		// verification failures feed the adaptive cap.
		if success {
			s.Policies.RecordOutcome(true)
		} else if errors.As(err, &rej) && rej.Status != http.StatusTooManyRequests {
			s.Policies.RecordOutcome(false)
		}
	}

	if s.Metrics == nil {
		return
	}
	switch {
	case success:
		s.Metrics.VerifyTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	default:
		var rej *Rejection
		if !errors.As(err, &rej) {
			s.Metrics.VerifyTotal.WithLabelValues(metrics.ResultError).Inc()
		} else if rej.Status == http.StatusConflict {
			s.Metrics.VerifyTotal.WithLabelValues(metrics.ResultDuplicate).Inc()
		} else {
			s.Metrics.VerifyTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		}
	}
}
