package economy

import (
	"testing"
	"time"
)

func TestCooldownAllowed(t *testing.T) {
	gate := Cooldown{Interval: 13 * time.Minute}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{name: "never acted", last: time.Time{}, want: true},
		{name: "just acted", last: now, want: false},
		{name: "one minute ago", last: now.Add(-time.Minute), want: false},
		{name: "exactly at interval", last: now.Add(-13 * time.Minute), want: true},
		{name: "well past interval", last: now.Add(-time.Hour), want: true},
	}
	for _, tc := range tests {
		if got := gate.Allowed(tc.last, now); got != tc.want {
			t.Fatalf("%s: Allowed = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCooldownRemaining(t *testing.T) {
	gate := Cooldown{Interval: 10 * time.Minute}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if got := gate.Remaining(time.Time{}, now); got != 0 {
		t.Fatalf("remaining for never-acted = %v, want 0", got)
	}
	if got := gate.Remaining(now.Add(-4*time.Minute), now); got != 6*time.Minute {
		t.Fatalf("remaining = %v, want 6m", got)
	}
}
