// Package rating defines the contract of the external rating collaborator.
// The real update formula lives outside this service; sessions consume it
// as a pure function. FixedK is the placeholder used until a real rater is
// wired in.
package rating

import "math"

// Outcome of a finished game from player A's perspective.
type Outcome float64

const (
	Loss Outcome = 0
	Draw Outcome = 0.5
	Win  Outcome = 1
)

// RateFunc computes both players' new ratings from their old ones and the
// outcome. Implementations must be pure.
type RateFunc func(ratingA, ratingB float64, outcome Outcome) (newA, newB float64)

// Unrated is the placeholder used for casual games: ratings pass through
// untouched.
func Unrated(ratingA, ratingB float64, _ Outcome) (float64, float64) {
	return ratingA, ratingB
}

// FixedK returns a plain Elo update with a fixed K factor. Zero-sum: what
// one player gains the other loses.
func FixedK(k float64) RateFunc {
	return func(ratingA, ratingB float64, outcome Outcome) (float64, float64) {
		expected := 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
		delta := k * (float64(outcome) - expected)
		return ratingA + delta, ratingB - delta
	}
}
