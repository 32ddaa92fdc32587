package trustsdk

import (
	"context"
	"net/http"
	"time"
)

// PolicyPath is where the reward policy is served.
const PolicyPath = "/v1/earn/policy"

// policyCacheTTL keeps policy reads cheap without letting the client drift
// far from server-side changes.
const policyCacheTTL = 30 * time.Second

// ProviderConfig describes one ad provider entry in the reward policy.
type ProviderConfig struct {
	Enabled    bool    `json:"enabled"`
	ZoneID     string  `json:"zoneId,omitempty"`
	ScriptURL  string  `json:"scriptUrl,omitempty"`
	AdTagBase  string  `json:"adTagBase,omitempty"`
	PriceFloor float64 `json:"priceFloor,omitempty"`
}

// Policy is the server-defined reward policy. Read-only on the client.
type Policy struct {
	RewardPerView    int                       `json:"rewardPerView"`
	RequiredDuration int                       `json:"requiredDuration"`
	MinInterval      int                       `json:"minInterval"`
	PerDay           int                       `json:"perDay"`
	PerDevice        int                       `json:"perDevice"`
	EffectivePerDay  int                       `json:"effectivePerDay"`
	PriceFloor       float64                   `json:"priceFloor"`
	Placements       []string                  `json:"placements"`
	DefaultProvider  string                    `json:"defaultProvider"`
	Providers        map[string]ProviderConfig `json:"providers"`
}

// ProviderEnabled reports whether name is present and enabled.
func (p *Policy) ProviderEnabled(name string) bool {
	cfg, ok := p.Providers[name]
	return ok && cfg.Enabled
}

// Policy fetches the reward policy, serving a briefly cached copy when fresh.
func (c *SDKClient) Policy(ctx context.Context) (*Policy, error) {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()

	if c.policy != nil && c.now().Sub(c.policyFetchedAt) < policyCacheTTL {
		return c.policy, nil
	}

	resp, err := c.Request(ctx, http.MethodGet, PolicyPath, nil)
	if err != nil {
		return nil, err
	}
	var policy Policy
	if err := resp.Decode(&policy); err != nil {
		return nil, err
	}

	c.policy = &policy
	c.policyFetchedAt = c.now()
	return &policy, nil
}

// InvalidatePolicy drops the cached policy so the next read refetches.
func (c *SDKClient) InvalidatePolicy() {
	c.policyMu.Lock()
	c.policy = nil
	c.policyMu.Unlock()
}
