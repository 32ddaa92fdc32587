package httpx

import "net/http"

// RequireAdmin rejects requests whose session does not carry the admin flag.
// Must run after AuthnMiddleware.
func RequireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !adminFromCtx(r.Context()) {
				WriteDetail(w, http.StatusForbidden, "missing_admin", "Missing admin permissions.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
