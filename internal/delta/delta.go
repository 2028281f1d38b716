// Package delta computes period-over-period changes.
package delta

import (
	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

// Direction labels the sign of a change.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// sentinel is reported when the previous value is zero and the current is not.
var sentinel = decimal.NewFromInt(100)

// PercentChange returns (current-previous)/previous*100 for a positive
// previous value. A previous value of zero or less never divides: the result
// is 0 when current is also 0 and 100 otherwise.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsPositive() {
		return core.Percent(current.Sub(previous), previous)
	}
	if current.IsZero() {
		return decimal.Zero
	}
	return sentinel
}

// DirectionOf labels pct: positive is up, negative is down, zero is flat.
func DirectionOf(pct decimal.Decimal) Direction {
	switch pct.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	default:
		return Flat
	}
}

// Change is a compared pair of values.
type Change struct {
	Current   decimal.Decimal `json:"current"`
	Previous  decimal.Decimal `json:"previous"`
	Percent   decimal.Decimal `json:"percent"`
	Direction Direction       `json:"direction"`
}

// Compare computes the percentage change rounded to two places and its direction.
func Compare(current, previous decimal.Decimal) Change {
	pct := core.RoundHalfUp(PercentChange(current, previous), 2)
	return Change{
		Current:   current,
		Previous:  previous,
		Percent:   pct,
		Direction: DirectionOf(pct),
	}
}
