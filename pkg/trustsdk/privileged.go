package trustsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nightcapdev/hostdeck/pkg/payloadx"
	"github.com/nightcapdev/hostdeck/pkg/signx"
)

// Response is the decoded result of a successful request.
type Response struct {
	StatusCode int
	Body       json.RawMessage // nil when the response had no body
}

// Decode unmarshals the response body into out. Calling Decode on an empty
// body is an error so callers distinguish "no body" explicitly.
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("trustsdk: response has no body")
	}
	return json.Unmarshal(r.Body, out)
}

// Request performs a call against the backend, applying the trust-layer
// augmentation when required:
//
//  1. Read-only verbs (GET/HEAD/OPTIONS) skip augmentation entirely.
//  2. Mutations under the privileged prefix fetch the path's anti-forgery
//     token, derive a fresh timestamp+signature, and attach all three as
//     headers. Mutations under the sensitive sub-prefix whose body is a JSON
//     object are additionally wrapped in an encrypted envelope.
//  3. A 401/403 on a privileged path evicts the cached token and latches the
//     revocation bus before the typed error is raised. Any other non-2xx
//     raises the same typed error without touching shared state.
func (c *SDKClient) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	if isReadOnlyVerb(method) {
		return c.perform(ctx, method, path, nil, nil)
	}

	canonical := CanonicalPath(path)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("trustsdk: marshal request body: %w", err)
		}
	}

	if !strings.HasPrefix(canonical, c.PrivilegedPrefix) {
		return c.perform(ctx, method, path, payload, nil)
	}

	// Token fetch strictly precedes signing, which strictly precedes
	// encryption: each stage depends on the token value.
	token, err := c.Tokens.Get(ctx, canonical)
	if err != nil {
		return nil, err
	}

	timestamp := signx.TimestampMillis(c.now())
	headers := map[string]string{
		signx.HeaderToken:     token,
		signx.HeaderTimestamp: timestamp,
		signx.HeaderSignature: signx.SignRequest(token, timestamp),
	}

	if strings.HasPrefix(canonical, c.SensitivePrefix) && isJSONObject(payload) {
		var plain map[string]any
		if err := json.Unmarshal(payload, &plain); err != nil {
			return nil, fmt.Errorf("trustsdk: sensitive body is not a JSON object: %w", err)
		}
		envelope, err := payloadx.Encrypt(plain, token)
		if err != nil {
			return nil, err
		}
		payload, err = json.Marshal(map[string]string{"data": envelope})
		if err != nil {
			return nil, err
		}
		headers[payloadx.Header] = payloadx.Scheme
	}

	resp, err := c.perform(ctx, method, path, payload, headers)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.IsAuthError() {
			c.Tokens.Evict(canonical)
			c.Revocations.NotifyRevoked()
		}
		return nil, err
	}
	return resp, nil
}

// perform executes the HTTP exchange and decodes the response envelope.
func (c *SDKClient) perform(
	ctx context.Context,
	method, path string,
	payload []byte,
	headers map[string]string,
) (*Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	out := &Response{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(bodyBytes)) > 0 {
		// A non-empty body that is not JSON is itself an error, distinct
		// from "no body".
		if !json.Valid(bodyBytes) {
			return nil, fmt.Errorf("trustsdk: response body is not valid JSON")
		}
		out.Body = json.RawMessage(bodyBytes)
	}
	return out, nil
}

func isReadOnlyVerb(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// isJSONObject reports whether payload parses as a JSON object (not an
// array, scalar or empty body). Only objects are eligible for the envelope.
func isJSONObject(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
