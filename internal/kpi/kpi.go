// Package kpi derives aggregate quality rates from unit counts. All
// functions are pure; rounding happens only at the persistence/display
// boundary via Round2.
package kpi

import "math"

// Rates holds the three batch-level KPIs, each in [0, 100].
type Rates struct {
	FTQ            float64
	ProductionRate float64
	RejectionRate  float64
}

// Compute returns the rates for one count triple. FTQ and the production
// rate are defined identically on purpose: the two KPIs are described
// differently to end users but share one formula, and callers rely on the
// equivalence. A zero total yields all-zero rates, never NaN or Inf.
func Compute(conforming, nonConforming, incomplete int) Rates {
	total := conforming + nonConforming + incomplete
	if total == 0 {
		return Rates{}
	}

	ftq := float64(conforming) / float64(total) * 100
	return Rates{
		FTQ:            ftq,
		ProductionRate: ftq,
		RejectionRate:  float64(nonConforming) / float64(total) * 100,
	}
}

// Round2 rounds a rate to two decimals. Apply only where a value is
// persisted or displayed; keep full precision everywhere else.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rounded returns a copy with every rate rounded for persistence.
func (r Rates) Rounded() Rates {
	return Rates{
		FTQ:            Round2(r.FTQ),
		ProductionRate: Round2(r.ProductionRate),
		RejectionRate:  Round2(r.RejectionRate),
	}
}
