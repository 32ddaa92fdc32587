package trustsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nightcapdev/hostdeck/pkg/cryptox"
	"github.com/nightcapdev/hostdeck/pkg/signx"
)

// Status is the coordinator's observable state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPreparing Status = "preparing"
	StatusLoading   Status = "loading"
	StatusPlaying   Status = "playing"
	StatusVerifying Status = "verifying"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCooldown  Status = "cooldown"
)

// Wallet polling defaults for server-measured providers, where the credit
// lands asynchronously via the provider's server callback.
const (
	DefaultWalletPollAttempts = 6
	DefaultWalletPollInterval = 1200 * time.Millisecond
)

// ChallengeSource supplies an anti-bot challenge token for prepare calls.
// Best effort: a failure is logged and the prepare proceeds without one.
type ChallengeSource func(ctx context.Context) (string, error)

// HintsSource supplies environment hints forwarded verbatim to prepare.
type HintsSource func() map[string]string

// WatchResult is the terminal outcome of one successful reward flow.
type WatchResult struct {
	// Added is the number of coins observed to be credited. Zero with
	// Pending set means the credit was confirmed server-side but has not
	// yet appeared in the wallet.
	Added   int
	Balance int64

	// Pending is set for server-measured sessions whose credit did not
	// land within the polling window. The balance will update shortly.
	Pending bool
}

// Coordinator drives the full reward-ad flow: cooldown gating, prepare,
// provider dispatch, redemption and wallet refresh. One flow may run at a
// time per coordinator.
type Coordinator struct {
	Client     *SDKClient
	strategies map[string]ProviderStrategy

	// OnStatus, when set, observes every state transition. Called outside
	// the coordinator lock; implementations may call back into accessors.
	OnStatus func(Status)

	// Challenge and Hints enrich prepare requests when set.
	Challenge ChallengeSource
	Hints     HintsSource

	WalletPollAttempts int
	WalletPollInterval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	status        Status
	watching      bool
	cooldownUntil time.Time
	cooldownTimer *time.Timer
	selected      string // user's provider preference, empty means default
}

// NewCoordinator builds a coordinator over the given provider strategies,
// keyed by their Name().
func NewCoordinator(client *SDKClient, strategies ...ProviderStrategy) *Coordinator {
	m := make(map[string]ProviderStrategy, len(strategies))
	for _, s := range strategies {
		m[s.Name()] = s
	}
	return &Coordinator{
		Client:             client,
		strategies:         m,
		WalletPollAttempts: DefaultWalletPollAttempts,
		WalletPollInterval: DefaultWalletPollInterval,
		now:                time.Now,
		sleep:              sleepCtx,
		status:             StatusIdle,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Status reports the current state.
func (co *Coordinator) Status() Status {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.status
}

// CooldownUntil reports when the local cooldown gate opens. The zero time
// means no cooldown is armed.
func (co *Coordinator) CooldownUntil() time.Time {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.cooldownUntil
}

// SelectProvider records the user's provider preference for subsequent
// watches. The empty string restores the policy default.
func (co *Coordinator) SelectProvider(name string) {
	co.mu.Lock()
	co.selected = name
	co.mu.Unlock()
}

// SelectedProvider reports the current preference, empty when following the
// policy default.
func (co *Coordinator) SelectedProvider() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.selected
}

func (co *Coordinator) setStatus(s Status) {
	co.mu.Lock()
	changed := co.status != s
	co.status = s
	onStatus := co.OnStatus
	co.mu.Unlock()

	if changed && onStatus != nil {
		onStatus(s)
	}
}

// Watch runs one complete reward flow for a placement. It blocks for the
// whole ad view and returns the redemption outcome. Only one watch may run
// at a time; a watch during an armed cooldown fails fast with
// ErrCooldownActive and no network traffic.
func (co *Coordinator) Watch(ctx context.Context, placement string) (*WatchResult, error) {
	co.mu.Lock()
	if co.watching {
		co.mu.Unlock()
		return nil, ErrWatchActive
	}
	if co.now().Before(co.cooldownUntil) {
		co.mu.Unlock()
		co.setStatus(StatusCooldown)
		return nil, ErrCooldownActive
	}
	co.watching = true
	co.mu.Unlock()

	defer func() {
		co.mu.Lock()
		co.watching = false
		co.mu.Unlock()
	}()

	res, err := co.watch(ctx, placement)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (co *Coordinator) watch(ctx context.Context, placement string) (*WatchResult, error) {
	co.setStatus(StatusPreparing)

	policy, err := co.Client.Policy(ctx)
	if err != nil {
		return nil, co.fail(err)
	}

	session, err := co.prepare(ctx, placement, policy)
	if err != nil {
		return nil, co.rejectOrFail(err, policy)
	}

	// The server-confirmed provider picks the strategy; the client's
	// preference was only a request.
	strategy, ok := co.strategies[session.Provider]
	if !ok {
		return nil, co.fail(fmt.Errorf("%w: %q", ErrUnsupportedProvider, session.Provider))
	}

	// Baseline for the delayed-credit delta. Best effort: an unknown
	// baseline only degrades the reported Added amount.
	baseline, baselineKnown := int64(0), false
	if bal, err := co.Client.WalletBalance(ctx); err == nil {
		baseline, baselineKnown = bal, true
	}

	outcome, err := strategy.Run(ctx, session, policy, co.setStatus)
	if err != nil {
		if errors.Is(err, ErrWatchCancelled) {
			co.setStatus(StatusIdle)
			return nil, err
		}
		return nil, co.fail(err)
	}

	co.setStatus(StatusVerifying)

	var result *WatchResult
	if outcome.ServerMeasured {
		result = co.awaitCredit(ctx, baseline, baselineKnown)
	} else {
		comp, err := co.Client.CompleteAd(ctx, CompleteRequest{
			Nonce:       session.Nonce,
			Ticket:      session.Ticket,
			DurationSec: outcome.MeasuredSeconds,
			DeviceHash:  session.DeviceHash,
			Provider:    session.Provider,
		})
		if err != nil {
			return nil, co.rejectOrFail(err, policy)
		}
		result = &WatchResult{Added: comp.Added, Balance: comp.Balance}
	}

	co.armCooldown(policy.MinInterval)
	co.setStatus(StatusSuccess)
	return result, nil
}

// prepare assembles and sends the prepare request: fresh nonce, signed
// binding, optional challenge token and hints.
func (co *Coordinator) prepare(ctx context.Context, placement string, policy *Policy) (*AdSession, error) {
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	ts := signx.TimestampMillis(co.now())

	req := PrepareRequest{
		Placement:   placement,
		Provider:    co.effectiveProvider(policy),
		ClientNonce: nonce,
		Timestamp:   ts,
		Signature:   signx.PrepareSignature(co.Client.SigningSecret, co.Client.UserID, nonce, ts, placement),
	}

	if co.Challenge != nil {
		token, err := co.Challenge(ctx)
		if err != nil {
			slog.Warn("challenge token unavailable, preparing without one", "error", err)
		} else {
			req.ChallengeToken = token
		}
	}
	if co.Hints != nil {
		req.Hints = co.Hints()
	}

	return co.Client.PrepareAd(ctx, req)
}

// effectiveProvider resolves the provider to request. A persisted preference
// for a provider the policy has since disabled is dropped and the preference
// resets to the default.
func (co *Coordinator) effectiveProvider(policy *Policy) string {
	co.mu.Lock()
	selected := co.selected
	co.mu.Unlock()

	if selected == "" {
		return policy.DefaultProvider
	}
	if !policy.ProviderEnabled(selected) {
		co.mu.Lock()
		if co.selected == selected {
			co.selected = ""
		}
		co.mu.Unlock()
		return policy.DefaultProvider
	}
	return selected
}

// awaitCredit polls the wallet for the asynchronous credit of a
// server-measured session. If the credit does not land within the window the
// flow still succeeds with Pending set.
func (co *Coordinator) awaitCredit(ctx context.Context, baseline int64, baselineKnown bool) *WatchResult {
	attempts := co.WalletPollAttempts
	if attempts <= 0 {
		attempts = DefaultWalletPollAttempts
	}
	interval := co.WalletPollInterval
	if interval <= 0 {
		interval = DefaultWalletPollInterval
	}

	last, lastKnown := baseline, baselineKnown
	for i := 0; i < attempts; i++ {
		if err := co.sleep(ctx, interval); err != nil {
			break
		}
		bal, err := co.Client.WalletBalance(ctx)
		if err != nil {
			continue
		}
		last, lastKnown = bal, true
		if baselineKnown && bal > baseline {
			return &WatchResult{Added: int(bal - baseline), Balance: bal}
		}
	}

	res := &WatchResult{Pending: true}
	if lastKnown {
		res.Balance = last
	}
	return res
}

// rejectOrFail routes a backend rejection: a structured cooldown rejection
// arms the local gate, anything else is a plain failure.
func (co *Coordinator) rejectOrFail(err error, policy *Policy) error {
	if apiErr, ok := asAPIError(err); ok && apiErr.IsCooldown() {
		co.armCooldown(policy.MinInterval)
		co.setStatus(StatusCooldown)
		return err
	}
	return co.fail(err)
}

func (co *Coordinator) fail(err error) error {
	co.setStatus(StatusError)
	return err
}

// armCooldown closes the local gate for the policy's minimum interval and
// schedules the background transition back to idle.
func (co *Coordinator) armCooldown(seconds int) {
	if seconds <= 0 {
		return
	}
	co.mu.Lock()
	until := co.now().Add(time.Duration(seconds) * time.Second)
	co.cooldownUntil = until
	if co.cooldownTimer != nil {
		co.cooldownTimer.Stop()
	}
	co.cooldownTimer = time.AfterFunc(time.Until(until), func() { co.cooldownExpired(until) })
	co.mu.Unlock()
}

// cooldownExpired flips a resting coordinator back to idle once the armed
// gate it belongs to has passed.
func (co *Coordinator) cooldownExpired(until time.Time) {
	co.mu.Lock()
	stale := !co.cooldownUntil.Equal(until) || co.watching || co.now().Before(co.cooldownUntil)
	resting := co.status == StatusCooldown || co.status == StatusSuccess
	co.mu.Unlock()

	if !stale && resting {
		co.setStatus(StatusIdle)
	}
}
