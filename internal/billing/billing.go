// Package billing computes rental duration and cost from wall-clock
// timestamps and a lot's hourly price.
package billing

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidTimestamp release time precedes booking time, which means a
// corrupted record or clock skew.
var ErrInvalidTimestamp = errors.New("release time before booking time")

// ComputeCost returns the elapsed duration in hours (unrounded) and the cost
// rounded to two decimal places. bookedAt == now yields zero duration and
// zero cost.
func ComputeCost(bookedAt, now time.Time, hourlyPrice float64) (durationHours, cost float64, err error) {
	if now.Before(bookedAt) {
		return 0, 0, ErrInvalidTimestamp
	}

	durationHours = now.Sub(bookedAt).Seconds() / 3600
	cost = Round2(durationHours * hourlyPrice)
	return durationHours, cost, nil
}

// Round2 rounds to two decimal places, the presentation precision for cost.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
