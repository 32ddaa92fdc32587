package domain

// ProviderConfig is one ad provider entry in the reward policy.
type ProviderConfig struct {
	Enabled    bool    `json:"enabled"`
	ZoneID     string  `json:"zoneId,omitempty"`
	ScriptURL  string  `json:"scriptUrl,omitempty"`
	AdTagBase  string  `json:"adTagBase,omitempty"`
	PriceFloor float64 `json:"priceFloor,omitempty"`
}

// Policy is the reward policy served to clients. EffectivePerDay is the
// adaptive cap, never above PerDay.
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

// HasPlacement reports whether name is a configured placement.
func (p Policy) HasPlacement(name string) bool {
	for _, pl := range p.Placements {
		if pl == name {
			return true
		}
	}
	return false
}

// ProviderEnabled reports whether name is present and enabled.
func (p Policy) ProviderEnabled(name string) bool {
	cfg, ok := p.Providers[name]
	return ok && cfg.Enabled
}
