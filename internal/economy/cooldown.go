package economy

import "time"

// Cooldown gates an action on the time elapsed since its last occurrence.
type Cooldown struct {
	Interval time.Duration
}

// Allowed reports whether the action may run. A zero last timestamp means
// the action has never run and is always allowed. Callers that pass the
// gate must record the new timestamp as part of the same logical update.
func (c Cooldown) Allowed(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= c.Interval
}

// Remaining returns how long until the gate opens; zero when open.
func (c Cooldown) Remaining(last, now time.Time) time.Duration {
	if c.Allowed(last, now) {
		return 0
	}
	return c.Interval - now.Sub(last)
}
