package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/internal/earn/store/drivers/sqlite"
	"github.com/nightcapdev/hostdeck/pkg/signx"
)

const (
	testTicketSecret  = "ticket-secret"
	testSessionSecret = "session-secret"
	testPlacement     = "sidebar"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testPolicy() domain.Policy {
	return domain.Policy{
		RewardPerView:    5,
		RequiredDuration: 30,
		MinInterval:      30,
		PerDay:           20,
		PerDevice:        50,
		Placements:       []string{testPlacement, "modal"},
		DefaultProvider:  ProviderMonetag,
		Providers: map[string]domain.ProviderConfig{
			ProviderMonetag: {Enabled: true, ZoneID: "z-1", ScriptURL: "https://cdn.example/tag.js"},
			ProviderGMA:     {Enabled: true, AdTagBase: "https://ads.example/vast"},
		},
	}
}

type adsFixture struct {
	svc      *AdsService
	store    store.Store
	sessions *SessionService
	user     domain.User
	now      time.Time
}

func newAdsFixture(t *testing.T, policy domain.Policy) *adsFixture {
	t.Helper()

	st := newTestStore(t)
	sessions := &SessionService{Store: st, Secret: []byte(testSessionSecret)}

	user, err := sessions.Register(context.Background(), "alice", "correct horse", false)
	require.NoError(t, err)

	f := &adsFixture{
		store:    st,
		sessions: sessions,
		user:     user,
		now:      time.Now().UTC(),
	}
	f.svc = &AdsService{
		Store:        st,
		Policies:     &PolicyService{Base: policy},
		Sessions:     sessions,
		Metrics:      metrics.New(),
		TicketSecret: testTicketSecret,
		now:          func() time.Time { return f.now },
	}
	return f
}

// prepareInput builds a correctly signed prepare request for the fixture user.
func (f *adsFixture) prepareInput(provider string) PrepareInput {
	nonce := "client-nonce-1"
	ts := strconv.FormatInt(f.now.UnixMilli(), 10)
	secret := f.sessions.SigningSecretFor(f.user.ID)
	return PrepareInput{
		UserID:      f.user.ID,
		Placement:   testPlacement,
		Provider:    provider,
		ClientNonce: nonce,
		Timestamp:   ts,
		Signature:   signx.PrepareSignature(secret, f.user.ID, nonce, ts, testPlacement),
		Hints:       map[string]string{"device": "dev-1"},
	}
}

func requireRejection(t *testing.T, err error, status int, code string) {
	t.Helper()

	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, status, rej.Status)
	require.Equal(t, code, rej.Code)
}

func TestAdsPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("mints a client-measured session", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)
		require.NotEmpty(t, session.Nonce)
		require.Equal(t, ProviderMonetag, session.Provider)
		require.Equal(t, "z-1", session.ZoneID)
		require.Equal(t, "https://cdn.example/tag.js", session.ScriptURL)
		require.NotEmpty(t, session.DeviceHash)
		require.Equal(t,
			signx.Ticket(testTicketSecret, session.Nonce, f.user.ID, session.DeviceHash),
			session.Ticket)
		require.Empty(t, session.AdTagURL)

		claim, err := f.store.AdClaims().GetClaim(ctx, session.Nonce)
		require.NoError(t, err)
		require.Equal(t, f.user.ID, claim.UserID)
		require.False(t, claim.Used())
	})

	t.Run("mints a server-measured session", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderGMA))
		require.NoError(t, err)
		require.Contains(t, session.AdTagURL, "https://ads.example/vast?nonce="+session.Nonce)
		require.Contains(t, session.AdTagURL, "user="+f.user.ID)
		require.Empty(t, session.Ticket)
	})

	t.Run("empty provider falls back to the default", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(""))
		require.NoError(t, err)
		require.Equal(t, ProviderMonetag, session.Provider)
	})

	t.Run("rejects unknown placement", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		in := f.prepareInput(ProviderMonetag)
		in.Placement = "nowhere"
		_, err := f.svc.Prepare(ctx, in)
		requireRejection(t, err, 400, CodeInvalidRequest)
	})

	t.Run("rejects disabled provider", func(t *testing.T) {
		policy := testPolicy()
		cfg := policy.Providers[ProviderGMA]
		cfg.Enabled = false
		policy.Providers[ProviderGMA] = cfg
		f := newAdsFixture(t, policy)

		_, err := f.svc.Prepare(ctx, f.prepareInput(ProviderGMA))
		requireRejection(t, err, 400, CodeInvalidRequest)
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		in := f.prepareInput(ProviderMonetag)
		in.Signature = ""
		_, err := f.svc.Prepare(ctx, in)
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("rejects tampered signature", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		in := f.prepareInput(ProviderMonetag)
		in.Placement = "modal" // signed for "sidebar"
		_, err := f.svc.Prepare(ctx, in)
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("rejects stale timestamp", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		in := f.prepareInput(ProviderMonetag)
		f.now = f.now.Add(DefaultPrepareWindow + time.Minute)
		_, err := f.svc.Prepare(ctx, in)
		requireRejection(t, err, 403, CodeInvalidRequest)
	})
}

func TestAdsPrepareCaps(t *testing.T) {
	ctx := context.Background()

	t.Run("daily cap", func(t *testing.T) {
		policy := testPolicy()
		policy.PerDay = 2
		f := newAdsFixture(t, policy)

		day := domain.DayKey(f.now)
		for i := 0; i < 2; i++ {
			_, err := f.store.UserLimits().IncrementViews(ctx, f.user.ID, day)
			require.NoError(t, err)
		}

		_, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		requireRejection(t, err, 429, CodeDailyCap)
	})

	t.Run("cooldown after a credit", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())
		f.now = time.Now().UTC() // reward rows are stamped with the wall clock

		creditOnce(t, f)

		_, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		requireRejection(t, err, 429, CodeCooldownActive)
	})

	t.Run("device cap", func(t *testing.T) {
		policy := testPolicy()
		policy.MinInterval = 0
		policy.PerDevice = 1
		f := newAdsFixture(t, policy)
		f.now = time.Now().UTC()

		creditOnce(t, f)

		// Same device hint, so the derived device hash collides.
		_, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		requireRejection(t, err, 429, CodeDeviceCap)
	})
}

// creditOnce runs a full prepare and complete cycle for the fixture user.
func creditOnce(t *testing.T, f *adsFixture) CompleteResult {
	t.Helper()

	session, err := f.svc.Prepare(context.Background(), f.prepareInput(ProviderMonetag))
	require.NoError(t, err)

	res, err := f.svc.Complete(context.Background(), CompleteInput{
		UserID:      f.user.ID,
		Nonce:       session.Nonce,
		Ticket:      session.Ticket,
		DurationSec: testPolicy().RequiredDuration,
		DeviceHash:  session.DeviceHash,
		Provider:    ProviderMonetag,
	})
	require.NoError(t, err)
	return res
}

func TestAdsComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("credits the wallet and writes the ledger", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		res, err := f.svc.Complete(ctx, CompleteInput{
			UserID:      f.user.ID,
			Nonce:       session.Nonce,
			Ticket:      session.Ticket,
			DurationSec: 30,
			DeviceHash:  session.DeviceHash,
			Provider:    ProviderMonetag,
		})
		require.NoError(t, err)
		require.Equal(t, int64(5), res.Added)
		require.Equal(t, int64(5), res.Balance)

		wallet, err := f.store.Wallets().GetWallet(ctx, f.user.ID)
		require.NoError(t, err)
		require.Equal(t, int64(5), wallet.Balance)

		entries, err := f.store.Ledger().ListEntriesByUser(ctx, f.user.ID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, domain.LedgerReasonAdReward, entries[0].Reason)
		require.Equal(t, session.Nonce, entries[0].Ref)

		views, err := f.store.UserLimits().GetViews(ctx, f.user.ID, domain.DayKey(f.now))
		require.NoError(t, err)
		require.Equal(t, 1, views)
	})

	t.Run("second redemption is a duplicate", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		in := CompleteInput{
			UserID:      f.user.ID,
			Nonce:       session.Nonce,
			Ticket:      session.Ticket,
			DurationSec: 30,
			DeviceHash:  session.DeviceHash,
			Provider:    ProviderMonetag,
		}
		_, err = f.svc.Complete(ctx, in)
		require.NoError(t, err)

		_, err = f.svc.Complete(ctx, in)
		requireRejection(t, err, 409, CodeInvalidRequest)
	})

	t.Run("short watch is rejected, claim stays live", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		in := CompleteInput{
			UserID:      f.user.ID,
			Nonce:       session.Nonce,
			Ticket:      session.Ticket,
			DurationSec: 12,
			DeviceHash:  session.DeviceHash,
			Provider:    ProviderMonetag,
		}
		_, err = f.svc.Complete(ctx, in)
		requireRejection(t, err, 400, CodeInvalidRequest)

		// A long enough retry on the same claim still succeeds.
		in.DurationSec = 30
		_, err = f.svc.Complete(ctx, in)
		require.NoError(t, err)
	})

	t.Run("forged ticket", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		_, err = f.svc.Complete(ctx, CompleteInput{
			UserID:      f.user.ID,
			Nonce:       session.Nonce,
			Ticket:      "deadbeef",
			DurationSec: 30,
			DeviceHash:  session.DeviceHash,
			Provider:    ProviderMonetag,
		})
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("unknown nonce", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		_, err := f.svc.Complete(ctx, CompleteInput{
			UserID:   f.user.ID,
			Nonce:    "no-such-session",
			Provider: ProviderMonetag,
		})
		requireRejection(t, err, 400, CodeInvalidRequest)
	})

	t.Run("claim owned by another user", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		mallory, err := f.sessions.Register(ctx, "mallory", "password123", false)
		require.NoError(t, err)

		_, err = f.svc.Complete(ctx, CompleteInput{
			UserID:      mallory.ID,
			Nonce:       session.Nonce,
			Ticket:      session.Ticket,
			DurationSec: 30,
			DeviceHash:  session.DeviceHash,
			Provider:    ProviderMonetag,
		})
		requireRejection(t, err, 403, CodeInvalidRequest)
	})

	t.Run("expired claim", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		f.now = f.now.Add(DefaultClaimTTL + time.Minute)
		_, err = f.svc.Complete(ctx, CompleteInput{
			UserID:      f.user.ID,
			Nonce:       session.Nonce,
			Ticket:      session.Ticket,
			DurationSec: 30,
			DeviceHash:  session.DeviceHash,
			Provider:    ProviderMonetag,
		})
		requireRejection(t, err, 400, CodeInvalidRequest)
	})
}

func TestAdsServerCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("credits the policy amount, not the callback's", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderGMA))
		require.NoError(t, err)

		res, err := f.svc.VerifyServerCallback(ctx, ServerCallbackInput{
			Nonce:      session.Nonce,
			UserID:     f.user.ID,
			ProviderTx: "tx-1",
			Amount:     9999,
		})
		require.NoError(t, err)
		require.Equal(t, int64(5), res.Added)
		require.Equal(t, int64(5), res.Balance)
	})

	t.Run("replayed provider transaction", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderGMA))
		require.NoError(t, err)

		in := ServerCallbackInput{Nonce: session.Nonce, UserID: f.user.ID, ProviderTx: "tx-1"}
		_, err = f.svc.VerifyServerCallback(ctx, in)
		require.NoError(t, err)

		_, err = f.svc.VerifyServerCallback(ctx, in)
		requireRejection(t, err, 409, CodeInvalidRequest)
	})

	t.Run("client-measured claim cannot be redeemed via callback", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		session, err := f.svc.Prepare(ctx, f.prepareInput(ProviderMonetag))
		require.NoError(t, err)

		_, err = f.svc.VerifyServerCallback(ctx, ServerCallbackInput{
			Nonce:      session.Nonce,
			UserID:     f.user.ID,
			ProviderTx: "tx-2",
		})
		requireRejection(t, err, 400, CodeInvalidRequest)
	})

	t.Run("missing parameters", func(t *testing.T) {
		f := newAdsFixture(t, testPolicy())

		_, err := f.svc.VerifyServerCallback(ctx, ServerCallbackInput{Nonce: "n"})
		requireRejection(t, err, 400, CodeInvalidRequest)
	})
}
