package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareBlocksAfterBurst(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	h := Chain(okHandler(), RateLimitMiddleware(cfg, IPKeyExtractor))

	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
			require.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
}

func TestRateLimitMiddlewareIsolatesKeys(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := Chain(okHandler(), RateLimitMiddleware(cfg, IPKeyExtractor))

	first := httptest.NewRequest(http.MethodGet, "/x", nil)
	first.RemoteAddr = "10.0.0.1:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different client IP has its own bucket.
	second := httptest.NewRequest(http.MethodGet, "/x", nil)
	second.RemoteAddr = "10.0.0.2:4000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyExtractorPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", IPKeyExtractor(req))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", IPKeyExtractor(req))

	req.Header.Del("X-Real-IP")
	require.Equal(t, "127.0.0.1", IPKeyExtractor(req))
}
