package engine

import (
	"math/rand"
	"time"

	"github.com/example/dispatch-engine/internal/model"
)

// Randomized pacing bounds, in milliseconds.
const (
	randomizedMinMs = 55000
	randomizedMaxMs = 85000
)

// PacingDelay maps a configured speed to the pause between two contacts of
// the same dispatch. The randomized speed re-rolls independently before
// every message; it is not fixed per dispatch. Unknown speeds pace as
// normal.
func PacingDelay(speed model.Speed) time.Duration {
	switch speed {
	case model.SpeedFast:
		return time.Second
	case model.SpeedSlow:
		return time.Minute
	case model.SpeedRandomized:
		ms := randomizedMinMs + rand.Intn(randomizedMaxMs-randomizedMinMs+1)
		return time.Duration(ms) * time.Millisecond
	default:
		return 30 * time.Second
	}
}
