package engine

import (
	"testing"
	"time"

	"github.com/example/dispatch-engine/internal/model"
)

func TestPacingDelay_FixedSpeeds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		speed model.Speed
		want  time.Duration
	}{
		{model.SpeedFast, time.Second},
		{model.SpeedNormal, 30 * time.Second},
		{model.SpeedSlow, time.Minute},
		{model.Speed("bogus"), 30 * time.Second},
	}
	for _, tc := range cases {
		if got := PacingDelay(tc.speed); got != tc.want {
			t.Fatalf("PacingDelay(%q) = %v, want %v", tc.speed, got, tc.want)
		}
	}
}

func TestPacingDelay_RandomizedStaysInRange(t *testing.T) {
	t.Parallel()

	lo := 55 * time.Second
	hi := 85 * time.Second

	seen := map[time.Duration]struct{}{}
	for i := 0; i < 500; i++ {
		got := PacingDelay(model.SpeedRandomized)
		if got < lo || got > hi {
			t.Fatalf("randomized delay %v outside [%v, %v]", got, lo, hi)
		}
		seen[got] = struct{}{}
	}
	// Re-rolled per message: a fixed value would collapse to one entry.
	if len(seen) < 2 {
		t.Fatalf("expected varying randomized delays, got %d distinct value(s)", len(seen))
	}
}
