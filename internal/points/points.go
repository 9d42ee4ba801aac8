// Package points implements the dynamic point value of a chore: a 10%-per-day
// bonus accrues while the chore sits unclaimed, capped at double the base
// value after ten days. The bonus is locked in when the chore is claimed, so
// completion recomputes the award from (created_at, claimed_at).
package points

import (
	"math"
	"time"
)

const (
	bonusPerDay   = 0.1
	maxMultiplier = 2.0
)

// Multiplier returns the bonus multiplier accrued between createdAt and
// evalAt. It grows linearly at 10% per 24 hours and caps at 2.0.
func Multiplier(createdAt, evalAt time.Time) float64 {
	hours := evalAt.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	m := 1 + bonusPerDay*(hours/24)
	if m > maxMultiplier {
		m = maxMultiplier
	}
	return m
}

// Awarded returns the point value credited for a chore with the given base
// points, evaluated at evalAt. Rounding is half-up, applied once at full
// precision.
func Awarded(base int, createdAt, evalAt time.Time) int {
	return int(math.Floor(float64(base)*Multiplier(createdAt, evalAt) + 0.5))
}
