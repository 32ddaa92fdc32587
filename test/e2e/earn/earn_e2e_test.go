package earn_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	earnhttp "github.com/nightcapdev/hostdeck/internal/earn/http"
	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/internal/earn/store/drivers/sqlite"
	"github.com/nightcapdev/hostdeck/pkg/trustsdk"
)

// fixture is a fully wired earn backend served over loopback HTTP, plus
// direct store access for seeding.
type fixture struct {
	srv      *httptest.Server
	store    store.Store
	sessions *service.SessionService
}

func startServer(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := earnhttp.NewRouter(trustsdk.DefaultSessionCookie, "e2e", false, st, logger)

	sessions := &service.SessionService{Store: st, Secret: []byte("e2e-session-secret")}
	m := metrics.New()
	policies := &service.PolicyService{
		Base: domain.Policy{
			RewardPerView:    5,
			RequiredDuration: 1, // short enough for a real watch timer
			MinInterval:      60,
			PerDay:           20,
			PerDevice:        50,
			Placements:       []string{"sidebar"},
			DefaultProvider:  "monetag",
			Providers: map[string]domain.ProviderConfig{
				"monetag": {Enabled: true, ZoneID: "z-1", ScriptURL: "https://cdn.example/tag.js"},
			},
		},
		Metrics: m,
	}

	router.Metrics = m
	router.SessionService = sessions
	router.CSRFService = service.NewCSRFService("e2e-csrf-secret")
	router.PolicyService = policies
	router.AdsService = &service.AdsService{
		Store:        st,
		Policies:     policies,
		Sessions:     sessions,
		Metrics:      m,
		TicketSecret: "e2e-ticket-secret",
	}
	router.WalletService = &service.WalletService{Store: st}
	router.UsersService = &service.UsersService{Store: st, Sessions: sessions}
	router.RecoveryService = &service.RecoveryService{Store: st, Issuer: "hostdeck"}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, store: st, sessions: sessions}
}

// client registers a user and returns an authenticated SDK client for it.
func (f *fixture) client(t *testing.T, username string, admin bool) *trustsdk.SDKClient {
	t.Helper()

	_, err := f.sessions.Register(t.Context(), username, "correct horse battery", admin)
	require.NoError(t, err)

	res, err := f.sessions.Login(t.Context(), username, "correct horse battery")
	require.NoError(t, err)

	c := trustsdk.NewSDKClient(f.srv.URL)
	c.SessionToken = res.Token
	c.UserID = res.UserID
	c.SigningSecret = res.SigningSecret
	return c
}

// noopRenderer satisfies trustsdk.AdRenderer without a DOM.
type noopRenderer struct{}

func (noopRenderer) Render(ctx context.Context, session *trustsdk.AdSession) error { return nil }

// noopLoader satisfies trustsdk.ScriptLoader.
type noopLoader struct{}

func (noopLoader) LoadScript(ctx context.Context, url string) error { return nil }

func TestRewardWatchEndToEnd(t *testing.T) {
	f := startServer(t)
	client := f.client(t, "alice", false)

	watcher := trustsdk.NewWatchTimeWatcher(func() bool { return true })
	watcher.Interval = 50 * time.Millisecond

	co := trustsdk.NewCoordinator(client,
		trustsdk.NewClientMeasuredProvider(trustsdk.ProviderMonetag, noopLoader{}, noopRenderer{}, watcher),
	)
	co.Hints = func() map[string]string {
		return map[string]string{"device": "e2e-device"}
	}

	var statuses []trustsdk.Status
	co.OnStatus = func(s trustsdk.Status) { statuses = append(statuses, s) }

	res, err := co.Watch(t.Context(), "sidebar")
	require.NoError(t, err)
	require.Equal(t, 5, res.Added)
	require.Equal(t, int64(5), res.Balance)
	require.False(t, res.Pending)

	balance, err := client.WalletBalance(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)

	require.Equal(t, []trustsdk.Status{
		trustsdk.StatusPreparing,
		trustsdk.StatusLoading,
		trustsdk.StatusPlaying,
		trustsdk.StatusVerifying,
		trustsdk.StatusSuccess,
	}, statuses)

	t.Run("local cooldown gate blocks the next watch", func(t *testing.T) {
		_, err := co.Watch(t.Context(), "sidebar")
		require.ErrorIs(t, err, trustsdk.ErrCooldownActive)
	})
}

func TestPrivilegedAdminEndToEnd(t *testing.T) {
	f := startServer(t)
	admin := f.client(t, "root", true)

	t.Run("sensitive create travels encrypted", func(t *testing.T) {
		resp, err := admin.Request(t.Context(), http.MethodPost, "/v1/admin/users",
			map[string]any{"username": "carol", "password": "correct horse", "admin": false})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		}
		require.NoError(t, resp.Decode(&created))
		require.Equal(t, "carol", created.Username)

		// Plaintext credentials verify against the stored hash, so the
		// envelope decrypted to the original body.
		_, err = f.sessions.Login(t.Context(), "carol", "correct horse")
		require.NoError(t, err)
	})

	t.Run("privileged list is a plain read", func(t *testing.T) {
		resp, err := admin.Request(t.Context(), http.MethodGet, "/v1/admin/users", nil)
		require.NoError(t, err)

		var users []struct {
			Username string `json:"username"`
		}
		require.NoError(t, resp.Decode(&users))
		require.Len(t, users, 2)
	})

	t.Run("revoked session latches the revocation bus", func(t *testing.T) {
		stale := trustsdk.NewSDKClient(f.srv.URL)
		stale.SessionToken = "not-a-valid-session"
		stale.UserID = "nobody"

		revoked := make(chan struct{}, 1)
		stale.Revocations.Subscribe(func() { revoked <- struct{}{} })

		_, err := stale.Request(context.Background(), http.MethodPost, "/v1/admin/users",
			map[string]any{"username": "mallory", "password": "whatever123"})
		require.Error(t, err)
		require.True(t, stale.Revocations.IsRevoked())

		select {
		case <-revoked:
		case <-time.After(time.Second):
			t.Fatal("revocation listener was not notified")
		}
	})
}
