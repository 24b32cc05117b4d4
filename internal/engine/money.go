package engine

import "github.com/shopspring/decimal"

// NativePlaces is the fixed-point precision of native-unit amounts.
// DisplayPlaces is the precision of display-currency amounts.
const (
	NativePlaces  = 4
	DisplayPlaces = 2
)

// ToNative converts a display-unit amount into the native settlement unit
// at the given rate (display units per native unit), rounding half away
// from zero to NativePlaces. This is applied exactly once per amount, at
// campaign creation, and the result is stored; it is never recomputed.
func ToNative(display, rate decimal.Decimal) decimal.Decimal {
	return display.Div(rate).Round(NativePlaces)
}

// ToDisplay converts a native amount back into display units at the locked
// rate, for audit bookkeeping only. Accounting is done in native units.
func ToDisplay(native, rate decimal.Decimal) decimal.Decimal {
	return native.Mul(rate).Round(DisplayPlaces)
}
