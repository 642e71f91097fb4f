package billing

import (
	"time"

	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

// ElapsedMinutes returns the billable minutes between start and end, always
// rounding up: a 61 second session bills 2 minutes. This is deliberate product
// policy, not a rounding artifact.
func ElapsedMinutes(start, end time.Time) int {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	minutes := int(elapsed / time.Minute)
	if elapsed%time.Minute > 0 {
		minutes++
	}
	return minutes
}

// Charge computes the raw charge for a number of billable minutes at the
// session's snapshotted per-minute rate.
func Charge(minutes int, ratePerMinute float64) float64 {
	if minutes <= 0 || ratePerMinute <= 0 {
		return 0
	}
	return utils.RoundFloat(float64(minutes)*ratePerMinute, 2)
}

// Settle clamps the requested charge to the available balance. A shortfall is
// a valid outcome (partial-charge degradation), never an error.
func Settle(requested, balance float64) float64 {
	if requested <= 0 {
		return 0
	}
	if balance <= 0 {
		return 0
	}
	if requested > balance {
		return utils.RoundFloat(balance, 2)
	}
	return utils.RoundFloat(requested, 2)
}
