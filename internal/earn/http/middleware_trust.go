package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/pkg/httpx"
	"github.com/nightcapdev/hostdeck/pkg/payloadx"
	"github.com/nightcapdev/hostdeck/pkg/signx"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// jsonDecode reads a JSON request body with a size cap.
func jsonDecode(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(out)
}

// TrustGuard enforces the privileged request protocol: mutations under the
// privileged prefix must carry a valid per-path anti-forgery token, a fresh
// timestamp and the matching request signature. Mutations under the sensitive
// sub-prefix additionally arrive with their JSON body sealed in an encrypted
// envelope, which the guard unwraps before the handler runs.
//
// Must be chained after AuthnMiddleware: token derivation needs the raw
// session token from context.
type TrustGuard struct {
	CSRF *service.CSRFService

	PrivilegedPrefix string
	SensitivePrefix  string
}

// Guard is the middleware form of the TrustGuard.
func (g *TrustGuard) Guard() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isMutation(r.Method) && strings.HasPrefix(r.URL.Path, g.PrivilegedPrefix) {
				if !g.verify(w, r) {
					return
				}
				if strings.HasPrefix(r.URL.Path, g.SensitivePrefix) {
					if !g.unwrap(w, r) {
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *TrustGuard) verify(w http.ResponseWriter, r *http.Request) bool {
	sessionToken := httpx.SessionTokenFromCtx(r.Context())

	err := g.CSRF.VerifySignedRequest(
		sessionToken,
		r.URL.Path,
		r.Header.Get(signx.HeaderToken),
		r.Header.Get(signx.HeaderTimestamp),
		r.Header.Get(signx.HeaderSignature),
	)
	if err != nil {
		slogx.FromContext(r.Context()).Warn("privileged request rejected",
			"path", r.URL.Path, "err", err)
		writeServiceError(w, r, err)
		return false
	}
	return true
}

// unwrap decrypts the {"data": envelope} body in place. The decryption key is
// derived from the same per-path token the request was verified with, so a
// request that passed verification always holds the material to decrypt.
func (g *TrustGuard) unwrap(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get(payloadx.Header) != payloadx.Scheme {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request",
			"Sensitive mutations require an encrypted body.")
		return false
	}

	var wrapper struct {
		Data string `json:"data"`
	}
	if err := jsonDecode(r, &wrapper); err != nil || wrapper.Data == "" {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request",
			"Malformed encrypted body.")
		return false
	}

	token := g.CSRF.TokenFor(httpx.SessionTokenFromCtx(r.Context()), r.URL.Path)

	var plain json.RawMessage
	if err := payloadx.Decrypt(wrapper.Data, token, &plain); err != nil {
		slogx.FromContext(r.Context()).Warn("payload decryption failed",
			"path", r.URL.Path, "err", err)
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid_request",
			"Unable to decrypt request body.")
		return false
	}

	r.Body = io.NopCloser(bytes.NewReader(plain))
	r.ContentLength = int64(len(plain))
	return true
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
