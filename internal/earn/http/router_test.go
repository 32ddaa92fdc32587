package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nightcapdev/hostdeck/internal/earn/domain"
	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/internal/earn/store/drivers/sqlite"
	"github.com/nightcapdev/hostdeck/pkg/payloadx"
	"github.com/nightcapdev/hostdeck/pkg/signx"
	"github.com/nightcapdev/hostdeck/pkg/trustsdk"
)

type routerFixture struct {
	t      *testing.T
	router *Router
	store  store.Store
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(trustsdk.DefaultSessionCookie, "test", false, st, logger)

	sessions := &service.SessionService{Store: st, Secret: []byte("session-secret")}
	r.Metrics = metrics.New()
	r.SessionService = sessions
	r.CSRFService = service.NewCSRFService("csrf-secret")
	r.PolicyService = &service.PolicyService{
		Base: domain.Policy{
			RewardPerView:    5,
			RequiredDuration: 30,
			MinInterval:      0,
			PerDay:           20,
			PerDevice:        50,
			Placements:       []string{"sidebar"},
			DefaultProvider:  "monetag",
			Providers: map[string]domain.ProviderConfig{
				"monetag": {Enabled: true, ZoneID: "z-1", ScriptURL: "https://cdn.example/tag.js"},
			},
		},
		Metrics: r.Metrics,
	}
	r.AdsService = &service.AdsService{
		Store:        st,
		Policies:     r.PolicyService,
		Sessions:     sessions,
		Metrics:      r.Metrics,
		TicketSecret: "ticket-secret",
	}
	r.WalletService = &service.WalletService{Store: st}
	r.UsersService = &service.UsersService{Store: st, Sessions: sessions}
	r.RecoveryService = &service.RecoveryService{Store: st, Issuer: "hostdeck"}
	r.ApplyRoutes()

	return &routerFixture{t: t, router: r, store: st}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	f.t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) jsonRequest(method, path string, body any) *http.Request {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

type session struct {
	UserID        string
	Token         string
	SigningSecret string
}

// register creates a user directly, then logs in through the API.
func (f *routerFixture) register(username, password string, admin bool) session {
	f.t.Helper()

	_, err := f.router.SessionService.Register(f.t.Context(), username, password, admin)
	require.NoError(f.t, err)

	rec := f.do(f.jsonRequest(http.MethodPost, "/v1/auth/login",
		map[string]string{"username": username, "password": password}))
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())

	var res loginResponse
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &res))
	return session{UserID: res.UserID, Token: res.Token, SigningSecret: res.SigningSecret}
}

func (f *routerFixture) authed(req *http.Request, s session) *http.Request {
	req.AddCookie(&http.Cookie{Name: trustsdk.DefaultSessionCookie, Value: s.Token})
	return req
}

// csrfToken fetches the anti-forgery token for a canonical path.
func (f *routerFixture) csrfToken(s session, path string) string {
	f.t.Helper()

	req := f.authed(httptest.NewRequest(http.MethodGet, "/csrf-token?path="+path, nil), s)
	rec := f.do(req)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Token
}

// sign attaches the three trust headers for a privileged mutation.
func (f *routerFixture) sign(req *http.Request, token string) *http.Request {
	ts := signx.TimestampMillis(time.Now())
	req.Header.Set(signx.HeaderToken, token)
	req.Header.Set(signx.HeaderTimestamp, ts)
	req.Header.Set(signx.HeaderSignature, signx.SignRequest(token, ts))
	return req
}

// seal encrypts body into the sensitive-request envelope.
func (f *routerFixture) seal(method, path string, body any, token string) *http.Request {
	f.t.Helper()

	envelope, err := payloadx.Encrypt(body, token)
	require.NoError(f.t, err)

	req := f.jsonRequest(method, path, map[string]string{"data": envelope})
	req.Header.Set(payloadx.Header, payloadx.Scheme)
	return req
}

func TestLogin(t *testing.T) {
	f := newTestRouter(t)

	t.Run("sets the session cookie", func(t *testing.T) {
		s := f.register("alice", "correct horse", false)
		require.NotEmpty(t, s.Token)
		require.NotEmpty(t, s.SigningSecret)
	})

	t.Run("bad credentials", func(t *testing.T) {
		rec := f.do(f.jsonRequest(http.MethodPost, "/v1/auth/login",
			map[string]string{"username": "alice", "password": "wrong"}))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wallet requires a session", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/wallet", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPrivilegedMutationProtocol(t *testing.T) {
	f := newTestRouter(t)
	admin := f.register("root", "hunter2hunter2", true)

	const path = "/v1/admin/wallets/" // adjust target appended per request
	target := func(userID string) string { return path + userID + "/adjust" }
	body := map[string]any{"delta": 10, "reason": "admin_credit"}

	t.Run("unsigned mutation is rejected", func(t *testing.T) {
		req := f.authed(f.jsonRequest(http.MethodPost, target(admin.UserID), body), admin)
		rec := f.do(req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("signed mutation passes", func(t *testing.T) {
		token := f.csrfToken(admin, target(admin.UserID))
		req := f.sign(f.authed(f.jsonRequest(http.MethodPost, target(admin.UserID), body), admin), token)
		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out map[string]int64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Equal(t, int64(10), out["balance"])
	})

	t.Run("token for another path is rejected", func(t *testing.T) {
		token := f.csrfToken(admin, "/v1/admin/users")
		req := f.sign(f.authed(f.jsonRequest(http.MethodPost, target(admin.UserID), body), admin), token)
		rec := f.do(req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stale timestamp is rejected", func(t *testing.T) {
		token := f.csrfToken(admin, target(admin.UserID))
		req := f.authed(f.jsonRequest(http.MethodPost, target(admin.UserID), body), admin)
		ts := signx.TimestampMillis(time.Now().Add(-5 * time.Minute))
		req.Header.Set(signx.HeaderToken, token)
		req.Header.Set(signx.HeaderTimestamp, ts)
		req.Header.Set(signx.HeaderSignature, signx.SignRequest(token, ts))
		rec := f.do(req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("non-admin session is rejected before the trust checks", func(t *testing.T) {
		user := f.register("bob", "correct horse", false)
		req := f.authed(f.jsonRequest(http.MethodPost, target(user.UserID), body), user)
		rec := f.do(req)
		require.Equal(t, http.StatusForbidden, rec.Code)

		var out map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Equal(t, "missing_admin", out["code"])
	})
}

func TestSensitiveMutationEnvelope(t *testing.T) {
	f := newTestRouter(t)
	admin := f.register("root", "hunter2hunter2", true)

	const path = "/v1/admin/users"

	t.Run("encrypted create succeeds", func(t *testing.T) {
		token := f.csrfToken(admin, path)
		req := f.seal(http.MethodPost, path,
			map[string]any{"username": "carol", "password": "correct horse", "admin": false}, token)
		rec := f.do(f.sign(f.authed(req, admin), token))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created adminUser
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		require.Equal(t, "carol", created.Username)

		_, err := f.store.Users().GetUserByUsername(t.Context(), "carol")
		require.NoError(t, err)
	})

	t.Run("signed but unencrypted body is rejected", func(t *testing.T) {
		token := f.csrfToken(admin, path)
		req := f.jsonRequest(http.MethodPost, path,
			map[string]any{"username": "dave", "password": "correct horse"})
		rec := f.do(f.sign(f.authed(req, admin), token))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("envelope sealed under the wrong token is rejected", func(t *testing.T) {
		good := f.csrfToken(admin, path)
		wrong := f.csrfToken(admin, "/v1/admin/users/someone/password")
		req := f.seal(http.MethodPost, path,
			map[string]any{"username": "erin", "password": "correct horse"}, wrong)
		rec := f.do(f.sign(f.authed(req, admin), good))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("read does not require trust headers", func(t *testing.T) {
		rec := f.do(f.authed(httptest.NewRequest(http.MethodGet, path, nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestEarnFlowOverHTTP(t *testing.T) {
	f := newTestRouter(t)
	user := f.register("alice", "correct horse", false)

	nonce := "client-nonce"
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	prepBody := map[string]any{
		"placement":   "sidebar",
		"clientNonce": nonce,
		"timestamp":   ts,
		"signature":   signx.PrepareSignature(user.SigningSecret, user.UserID, nonce, ts, "sidebar"),
		"hints":       map[string]string{"device": "dev-1"},
	}

	rec := f.do(f.authed(f.jsonRequest(http.MethodPost, "/v1/earn/ads/prepare", prepBody), user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var adSession service.AdSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adSession))
	require.NotEmpty(t, adSession.Ticket)

	rec = f.do(f.authed(f.jsonRequest(http.MethodPost, "/v1/earn/ads/complete", map[string]any{
		"nonce":       adSession.Nonce,
		"ticket":      adSession.Ticket,
		"durationSec": 30,
		"deviceHash":  adSession.DeviceHash,
		"provider":    adSession.Provider,
	}), user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res completeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.OK)
	require.Equal(t, int64(5), res.Added)
	require.Equal(t, int64(5), res.Balance)

	rec = f.do(f.authed(httptest.NewRequest(http.MethodGet, "/wallet", nil), user))
	require.Equal(t, http.StatusOK, rec.Code)

	var wallet walletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wallet))
	require.Equal(t, int64(5), wallet.Balance)

	t.Run("policy is served", func(t *testing.T) {
		rec := f.do(f.authed(httptest.NewRequest(http.MethodGet, "/v1/earn/policy", nil), user))
		require.Equal(t, http.StatusOK, rec.Code)

		var policy domain.Policy
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &policy))
		require.Equal(t, 20, policy.EffectivePerDay)
	})
}

func TestSystemEndpoints(t *testing.T) {
	f := newTestRouter(t)

	t.Run("livez", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics exposition", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		// Unlabelled families are always exported, even before any observation.
		require.Contains(t, rec.Body.String(), "hostdeck_earn_failure_ratio")
	})
}
