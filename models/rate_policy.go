package models

import "github.com/shopspring/decimal"

// RatePolicy is the per-liter rate applied by a billing run, tagged with a
// version so payments can always be traced back to the rate that produced
// them. Ad-hoc rates passed by an admin get the override version.
type RatePolicy struct {
	Version      string          `json:"version"`
	RatePerLiter decimal.Decimal `json:"rate_per_liter"`
}

const (
	baseRateVersion     = "base-2024"
	overrideRateVersion = "admin-override"
)

// DefaultRatePolicy is the cooperative's flat base rate: 35 per liter.
func DefaultRatePolicy() RatePolicy {
	return RatePolicy{
		Version:      baseRateVersion,
		RatePerLiter: decimal.NewFromInt(35),
	}
}

// OverrideRatePolicy wraps an admin-supplied rate. Callers must validate
// positivity before use.
func OverrideRatePolicy(rate decimal.Decimal) RatePolicy {
	return RatePolicy{Version: overrideRateVersion, RatePerLiter: rate}
}

func (p RatePolicy) Valid() bool {
	return p.RatePerLiter.IsPositive()
}
