package trustsdk

import (
	"context"
	"net/http"
)

// Earn endpoints.
const (
	PreparePath  = "/v1/earn/ads/prepare"
	CompletePath = "/v1/earn/ads/complete"
	WalletPath   = "/wallet"
)

// PrepareRequest is the body of POST /v1/earn/ads/prepare.
type PrepareRequest struct {
	Placement      string            `json:"placement"`
	Provider       string            `json:"provider,omitempty"`
	ChallengeToken string            `json:"challengeToken,omitempty"`
	ClientNonce    string            `json:"clientNonce"`
	Timestamp      string            `json:"timestamp"`
	Signature      string            `json:"signature"`
	Hints          map[string]string `json:"hints,omitempty"`
}

// AdSession is the server's one-time grant returned from prepare. Which
// fields are populated depends on the effective provider.
type AdSession struct {
	Nonce    string `json:"nonce"`
	Provider string `json:"provider"`

	// Client-measured provider fields.
	Ticket     string `json:"ticket,omitempty"`
	ZoneID     string `json:"zoneId,omitempty"`
	ScriptURL  string `json:"scriptUrl,omitempty"`
	DeviceHash string `json:"deviceHash,omitempty"`

	// Server-measured provider fields.
	AdTagURL string `json:"adTagUrl,omitempty"`
}

// CompleteRequest is the body of POST /v1/earn/ads/complete
// (client-measured provider only).
type CompleteRequest struct {
	Nonce       string `json:"nonce"`
	Ticket      string `json:"ticket"`
	DurationSec int    `json:"durationSec"`
	DeviceHash  string `json:"deviceHash"`
	Provider    string `json:"provider"`
}

// CompleteResponse reports the outcome of a redemption.
type CompleteResponse struct {
	OK      bool  `json:"ok"`
	Added   int   `json:"added"`
	Balance int64 `json:"balance"`
}

// PrepareAd requests a one-time ad session.
func (c *SDKClient) PrepareAd(ctx context.Context, req PrepareRequest) (*AdSession, error) {
	resp, err := c.Request(ctx, http.MethodPost, PreparePath, req)
	if err != nil {
		return nil, err
	}
	var session AdSession
	if err := resp.Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CompleteAd redeems a client-measured ad session.
func (c *SDKClient) CompleteAd(ctx context.Context, req CompleteRequest) (*CompleteResponse, error) {
	resp, err := c.Request(ctx, http.MethodPost, CompletePath, req)
	if err != nil {
		return nil, err
	}
	var out CompleteResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WalletBalance reads the current wallet balance.
func (c *SDKClient) WalletBalance(ctx context.Context) (int64, error) {
	resp, err := c.Request(ctx, http.MethodGet, WalletPath, nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := resp.Decode(&out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}
