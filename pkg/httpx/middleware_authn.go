package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

// SessionClaims is what a verified dashboard session resolves to.
type SessionClaims struct {
	UserID string
	Admin  bool
}

// SessionVerifier validates a raw session token (a signed JWT minted at
// login) and returns its claims.
type SessionVerifier interface {
	VerifySession(token string) (SessionClaims, error)
}

// AuthnMiddleware authenticates requests via the session cookie, falling back
// to an Authorization bearer header for non-browser clients. The raw token is
// kept in context because the anti-forgery layer derives path tokens from it.
func AuthnMiddleware(v SessionVerifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := sessionTokenFromRequest(r, cookieName)
			if raw == "" {
				WriteDetail(w, http.StatusUnauthorized, "not_authenticated", "Authentication required.")
				return
			}

			claims, err := v.VerifySession(raw)
			if err != nil {
				log.Warn("session verification failed", "err", err)
				WriteDetail(w, http.StatusUnauthorized, "invalid_session", "Session is invalid or expired.")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, CtxKeyAdmin, claims.Admin)
			ctx = context.WithValue(ctx, CtxKeySessionToken, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionTokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	}
	return ""
}
