// Package alerts implements the margin-of-safety alert policy, the
// in-memory alert state and the persisted alert feed.
package alerts

import "time"

// MarginOfSafety returns the percentage by which the intrinsic value exceeds
// the current price. Returns 0 when no intrinsic value is set; an intrinsic
// value of zero means alerts are disabled for the stock, and guarding here
// avoids the division by zero.
func MarginOfSafety(intrinsicValue, currentPrice float64) float64 {
	if intrinsicValue <= 0 {
		return 0
	}
	return (intrinsicValue - currentPrice) / intrinsicValue * 100
}

// ShouldAlert decides whether a margin-of-safety alert fires now.
// It fires only when an intrinsic value is set, the price is below it, and
// the last alert for the ticker is at least window old (or absent).
// lastAlert is the zero time when no alert has been recorded.
//
// This is a pure decision function: recording the firing time is the
// caller's responsibility, and it happens once the decision is made, not
// conditioned on delivery success (at-most-once delivery attempt).
func ShouldAlert(intrinsicValue, currentPrice float64, lastAlert, now time.Time, window time.Duration) bool {
	if intrinsicValue <= 0 {
		return false
	}
	if currentPrice >= intrinsicValue {
		return false
	}
	if !lastAlert.IsZero() && now.Sub(lastAlert) < window {
		return false
	}
	return true
}
