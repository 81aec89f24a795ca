package worker

import "time"

// RetryPolicy schedules re-delivery of failed report tasks. Delays grow by
// BackoffFactor per attempt and are clamped to MaxDelay; after MaxRetries the
// task is parked as failed.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy matches the report export cadence: quick first retry,
// capped at a minute so a stuck spreadsheet shows up within a few poll cycles.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
}

// normalized fills zero fields from the defaults, so a partially specified
// policy still behaves.
func (r RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if r.MaxRetries <= 0 {
		r.MaxRetries = def.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = def.InitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = def.MaxDelay
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = def.BackoffFactor
	}
	return r
}

// NextDelay returns the delay before the given attempt (1-based).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	p := r.normalized()

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.BackoffFactor
		if time.Duration(delay) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return time.Duration(delay)
}

// NextAttemptAt returns when a task that just failed its attempt-th try runs
// again.
func (r RetryPolicy) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(r.NextDelay(attempt))
}

// Exhausted reports whether a task with the given retry count is out of
// attempts.
func (r RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= r.normalized().MaxRetries
}
