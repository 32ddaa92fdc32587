package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID       ctxKey = "user_id"
	CtxKeyAdmin        ctxKey = "admin"
	CtxKeySessionToken ctxKey = "session_token"
)

// UserIDFromCtx returns the authenticated user ID, or "" when the request is
// unauthenticated.
func UserIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// SessionTokenFromCtx returns the raw session token the request authenticated
// with. The trust layer derives per-path anti-forgery tokens from it.
func SessionTokenFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySessionToken).(string); ok {
		return v
	}
	return ""
}

func adminFromCtx(ctx context.Context) bool {
	v, ok := ctx.Value(CtxKeyAdmin).(bool)
	return ok && v
}
