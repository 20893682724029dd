package config

import "github.com/shuvo-iitkgp/data-query-copilot/internal/policy"

// QueryPolicy materializes the policy ruleset from the configured thresholds.
// The hard guarantees are not configurable; only the limits and the optional
// tightening flags come from config.
func (c Config) QueryPolicy() policy.Policy {
	p := policy.Default()
	if c.Policy.DefaultLimit > 0 {
		p.DefaultLimit = c.Policy.DefaultLimit
	}
	if c.Policy.MaxLimit > 0 {
		p.MaxLimit = c.Policy.MaxLimit
	}
	p.DisallowWith = c.Policy.DisallowWith
	p.DisallowSelectStar = c.Policy.DisallowSelectStar
	return p
}
