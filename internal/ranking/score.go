package ranking

import (
	"math"
	"time"
)

// Default decay constants.
const (
	DefaultHourOffset = 2.0
	DefaultGravity    = 1.8
)

// DecayParams holds the constants of the time decay denominator.
type DecayParams struct {
	HourOffset float64 `json:"hour_offset"` // Added to the age in hours (default: 2)
	Gravity    float64 `json:"gravity"`     // Exponent applied to the offset age (default: 1.8)
}

// DefaultDecay returns the default decay constants.
func DefaultDecay() DecayParams {
	return DecayParams{
		HourOffset: DefaultHourOffset,
		Gravity:    DefaultGravity,
	}
}

// HoursSince returns the fractional number of hours between createdAt and now.
// A createdAt after now yields 0; the result is never negative.
func HoursSince(createdAt, now time.Time) float64 {
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 0
	}
	return elapsed.Hours()
}

// Score computes the recommendation score of a post at the instant now.
//
// Parameters:
//   - likes: number of like edges pointing at the post
//   - views: the post's view counter
//   - createdAt: the post's creation time
//   - now: evaluation instant
//   - p: decay constants (zero values fall back to defaults)
//
// Returns likes * views / (hours + HourOffset) ^ Gravity.
// Negative counts are clamped to 0.
func Score(likes, views int64, createdAt, now time.Time, p DecayParams) float64 {
	p = p.normalized()

	if likes < 0 {
		likes = 0
	}
	if views < 0 {
		views = 0
	}

	denominator := math.Pow(HoursSince(createdAt, now)+p.HourOffset, p.Gravity)
	return float64(likes) * float64(views) / denominator
}

// normalized replaces unusable constants with the defaults.
// A non-positive offset could make the denominator zero for a new post.
func (p DecayParams) normalized() DecayParams {
	if p.HourOffset <= 0 {
		p.HourOffset = DefaultHourOffset
	}
	if p.Gravity <= 0 {
		p.Gravity = DefaultGravity
	}
	return p
}
