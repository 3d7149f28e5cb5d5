// Package sizing converts a desired dollar risk into an exchange-legal
// order quantity. Everything here is pure arithmetic: margin data,
// prices and lot filters come in as arguments, nothing is fetched.
//
// Rounding is always floor. Overshooting the exchange's lot or margin
// limits is a harder failure than under-sizing.
package sizing

import (
	"fmt"
	"math"

	"riskpilot/internal/gateway/bybit"

	"github.com/shopspring/decimal"
)

// Verdict classifies a sizing decision.
type Verdict string

const (
	VerdictOK      Verdict = "OK"
	VerdictClipped Verdict = "CLIPPED"
	VerdictReject  Verdict = "REJECT"
)

// Decision is the outcome of a preflight pass. Qty is zero exactly when
// Verdict is REJECT; otherwise Qty is a multiple of the quantity step
// and never exceeds DesiredQty.
type Decision struct {
	Qty        float64
	Verdict    Verdict
	DesiredQty float64
	MaxQty     float64

	// Intermediate figures, kept for operator-facing messages.
	AvailableSafe  float64
	MaxNotionalUSD float64
}

// Buffers reserve headroom against the fee/slippage rounding that makes
// exchanges reject orders consuming 100% of computed margin. USD is an
// absolute floor reserve, Pct a relative haircut on notional.
type Buffers struct {
	USD float64
	Pct float64
}

// FloorQty rounds raw strictly down to a multiple of step. A step of
// zero or less is exchange metadata gone wrong; the input is returned
// unchanged rather than crashing the decision path.
func FloorQty(raw, step float64) float64 {
	if step <= 0 {
		return raw
	}
	steps := decimal.NewFromFloat(raw).Div(decimal.NewFromFloat(step)).Floor()
	out, _ := steps.Mul(decimal.NewFromFloat(step)).Float64()
	return out
}

// ValidateQty applies the lot filter alone: floor to step, reject below
// the minimum, cap at the maximum. It is the fallback primitive used
// when the margin-aware ClipQty cannot run because a balance or
// instrument fetch failed.
func ValidateQty(qty float64, rules bybit.InstrumentRules) (float64, bool, string) {
	qty = FloorQty(qty, rules.QtyStep)
	if qty < rules.MinOrderQty {
		return qty, false, fmt.Sprintf("qty %v < minOrderQty %v", qty, rules.MinOrderQty)
	}
	if rules.MaxOrderQty > 0 && qty > rules.MaxOrderQty {
		return FloorQty(rules.MaxOrderQty, rules.QtyStep), true, fmt.Sprintf("capped at maxOrderQty %v", rules.MaxOrderQty)
	}
	return qty, true, ""
}

// ClipQty computes the margin-safe quantity for a desired notional.
//
// The desired quantity is floored to the lot filter, then clipped at
// the margin ceiling derived from available balance, leverage and the
// configured buffers. A result below the exchange minimum is a REJECT
// with quantity forced to zero: silently substituting the minimum lot
// could accept a risk multiple far above what was asked for.
func ClipQty(desiredUSD, entryPrice, availableUSD float64, lev int, rules bybit.InstrumentRules, buf Buffers) Decision {
	rawDesired := 0.0
	if entryPrice > 0 {
		rawDesired = desiredUSD / entryPrice
	}
	desiredQty, _, _ := ValidateQty(rawDesired, rules)

	availableSafe := math.Max(0, availableUSD-buf.USD)
	maxNotional := availableSafe * float64(lev) * (1 - buf.Pct)
	rawMax := 0.0
	if entryPrice > 0 {
		rawMax = maxNotional / entryPrice
	}
	maxQty := FloorQty(rawMax, rules.QtyStep)

	d := Decision{
		DesiredQty:     desiredQty,
		MaxQty:         maxQty,
		AvailableSafe:  availableSafe,
		MaxNotionalUSD: maxNotional,
	}

	qty := math.Min(desiredQty, maxQty)
	if qty < rules.MinOrderQty || qty <= 0 {
		d.Qty = 0
		d.Verdict = VerdictReject
		return d
	}
	d.Qty = qty
	if qty >= desiredQty {
		d.Verdict = VerdictOK
	} else {
		d.Verdict = VerdictClipped
	}
	return d
}

// DesiredNotionalUSD converts a dollar risk into the position notional
// that loses exactly riskUSD when price moves from entry to stop.
func DesiredNotionalUSD(riskUSD, entry, stop float64) float64 {
	dist := StopDistancePct(entry, stop)
	if dist <= 0 {
		return 0
	}
	return riskUSD / (dist / 100)
}

// StopDistancePct is the entry-to-stop distance as a percentage of the
// entry price.
func StopDistancePct(entry, stop float64) float64 {
	if entry <= 0 {
		return 0
	}
	return math.Abs(entry-stop) / entry * 100
}

// LeverageFor picks leverage from the stop distance: tight stops may
// use more leverage because the liquidation price sits far beyond the
// stop either way.
func LeverageFor(stopDistPct float64) int {
	switch {
	case stopDistPct <= 8:
		return 5
	case stopDistPct <= 12:
		return 3
	default:
		return 1
	}
}
