package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
	"github.com/nightcapdev/hostdeck/pkg/trustsdk"

	_ "github.com/nightcapdev/hostdeck/api/earn" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	cookieName    string
	secureCookies bool
	buildVersion  string
	startTime     time.Time
	logger        *slog.Logger

	store           store.Store
	Metrics         *metrics.Metrics
	SessionService  *service.SessionService
	CSRFService     *service.CSRFService
	PolicyService   *service.PolicyService
	AdsService      *service.AdsService
	WalletService   *service.WalletService
	UsersService    *service.UsersService
	RecoveryService *service.RecoveryService
}

func NewRouter(
	cookieName, buildVersion string,
	secureCookies bool,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		cookieName:    cookieName,
		secureCookies: secureCookies,
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		store:         st,
		logger:        logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTrust()
	r.registerEarn()
	r.registerWallet()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			HostDeck Earn Service API
//	@version		0.1.0
//	@description	Trust layer for the HostDeck dashboard: signed privileged mutations with per-path anti-forgery tokens and encrypted sensitive bodies, plus the rewarded-ad earn flow with server-side anti-fraud verification.
//
//	@contact.name				HostDeck Team
//	@contact.url				https://github.com/nightcapdev/hostdeck
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn builds the shared session-cookie authentication middleware.
func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.SessionService, r.cookieName)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		SessionService:  r.SessionService,
		RecoveryService: r.RecoveryService,
		CookieName:      r.cookieName,
		SecureCookies:   r.secureCookies,
	}

	// POST /login - strict rate limit by IP (authentication attempts)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /restore-admin - strict rate limit by IP (break-glass endpoint,
	// TOTP codes must not be brute-forceable)
	r.Mux.Handle("POST /v1/auth/restore-admin",
		httpx.Chain(http.HandlerFunc(h.HandleRestoreAdmin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /recovery/enroll - admin-only, moderate rate limit by user
	r.Mux.Handle("POST /v1/recovery/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleRecoveryEnroll),
			r.authn(),
			httpx.RequireAdmin(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTrust() {
	h := &CSRFTokenHandler{CSRFService: r.CSRFService}

	// GET /csrf-token - clients fetch one token per privileged path, so the
	// limit is lenient but per-user
	r.Mux.Handle("GET /csrf-token",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerEarn() {
	h := &EarnHandler{
		AdsService:    r.AdsService,
		PolicyService: r.PolicyService,
	}

	// POST /prepare and /complete - strict rate limit by user (reward abuse)
	r.Mux.Handle("POST "+trustsdk.PreparePath,
		httpx.Chain(http.HandlerFunc(h.HandlePrepare),
			r.authn(),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST "+trustsdk.CompletePath,
		httpx.Chain(http.HandlerFunc(h.HandleComplete),
			r.authn(),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	// SSV callback - unauthenticated (provider-to-server), moderate by IP.
	// Some providers call back with GET, some with POST.
	ssv := httpx.Chain(http.HandlerFunc(h.HandleSSV),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)
	r.Mux.Handle("GET /v1/earn/ads/ssv", ssv)
	r.Mux.Handle("POST /v1/earn/ads/ssv", ssv)

	r.Mux.Handle("GET "+trustsdk.PolicyPath,
		httpx.Chain(http.HandlerFunc(h.HandlePolicy),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerWallet() {
	h := &WalletHandler{WalletService: r.WalletService}

	r.Mux.Handle("GET /wallet",
		httpx.Chain(http.HandlerFunc(h.HandleBalance),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /wallet/history",
		httpx.Chain(http.HandlerFunc(h.HandleHistory),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		UsersService:  r.UsersService,
		WalletService: r.WalletService,
	}

	guard := &TrustGuard{
		CSRF:             r.CSRFService,
		PrivilegedPrefix: trustsdk.DefaultPrivilegedPrefix,
		SensitivePrefix:  trustsdk.DefaultSensitivePrefix,
	}

	// Every admin route authenticates, requires the admin flag, passes the
	// trust guard (signed headers on mutations, encrypted bodies under the
	// sensitive prefix) and is rate limited per user.
	secured := func(handler http.HandlerFunc) http.Handler {
		return httpx.Chain(handler,
			r.authn(),
			httpx.RequireAdmin(),
			guard.Guard(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/admin/users", secured(h.HandleList))
	r.Mux.Handle("POST /v1/admin/users", secured(h.HandleCreate))
	r.Mux.Handle("POST /v1/admin/users/{id}/password", secured(h.HandleResetPassword))
	r.Mux.Handle("POST /v1/admin/users/{id}/admin", secured(h.HandleSetAdmin))
	r.Mux.Handle("DELETE /v1/admin/users/{id}", secured(h.HandleDelete))
	r.Mux.Handle("POST /v1/admin/wallets/{id}/adjust", secured(h.HandleAdjustWallet))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// Prometheus scrape endpoint
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
}
