package engine

import (
	"context"
	"fmt"

	"github.com/example/dispatch-engine/internal/model"
)

// Recover reconciles dispatches left running by a prior crash. It runs
// once before the first tick. Nothing is resent: resumption rides entirely
// on the persisted cursor, which is why stat increments are server-side
// atomic updates.
func (e *Engine) Recover(ctx context.Context) error {
	dispatches, err := e.store.ListByStatus(ctx, model.StatusRunning)
	if err != nil {
		return fmt.Errorf("list running dispatches: %w", err)
	}

	var kept, demoted int
	for i := range dispatches {
		d := &dispatches[i]
		if d.Exhausted() || d.Schedule == nil {
			kept++
			continue
		}
		zone := e.eval.ResolveZone(d.Schedule, d.UserTimezone)

		// Not started yet: the tick picks it up naturally when the start
		// instant arrives.
		if !e.eval.HasStartPassed(d.Schedule, zone) {
			kept++
			continue
		}
		if !e.eval.IsWithinWindow(d.Schedule, zone) || !e.eval.IsAllowedWeekday(d.Schedule, zone) {
			e.setStatus(ctx, d, model.StatusPaused, nil)
			demoted++
			continue
		}
		kept++
	}

	e.log.Info().Int("running", kept).Int("demoted", demoted).Msg("recovery pass finished")
	return nil
}
