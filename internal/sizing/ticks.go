package sizing

import "github.com/shopspring/decimal"

// RoundToTick rounds price to the nearest multiple of the instrument's
// tick size. Unlike quantity rounding this is nearest, not floor: a
// stop or target price has no lot-overshoot hazard, it just has to sit
// on the price grid.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	steps := decimal.NewFromFloat(price).Div(decimal.NewFromFloat(tick)).Round(0)
	out, _ := steps.Mul(decimal.NewFromFloat(tick)).Float64()
	return out
}

// RoundToStep rounds qty to the nearest multiple of step. Used for
// partial-close splits where the pieces should sum back to the full
// position size; entry sizing keeps using FloorQty.
func RoundToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := decimal.NewFromFloat(qty).Div(decimal.NewFromFloat(step)).Round(0)
	out, _ := steps.Mul(decimal.NewFromFloat(step)).Float64()
	return out
}
