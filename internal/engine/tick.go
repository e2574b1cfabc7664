package engine

import (
	"context"
	"time"

	"github.com/example/dispatch-engine/internal/model"
	"github.com/example/dispatch-engine/internal/store"
)

// Tick runs one scheduling pass: phase A reconciles statuses against
// schedules, phase B fires a unit of work for every runnable dispatch not
// already in flight. Exported so tests can drive ticks deterministically
// instead of waiting on the wall clock.
func (e *Engine) Tick(ctx context.Context) {
	e.promoteAndDemote(ctx)
	e.advanceRunning(ctx)
	e.metrics.InFlight.Set(float64(e.guard.Len()))
}

// promoteAndDemote walks every scheduled dispatch that could change status:
// running dispatches whose window closed demote to paused; paused and
// pending dispatches whose window is open promote to running.
func (e *Engine) promoteAndDemote(ctx context.Context) {
	dispatches, err := e.store.ListByStatus(ctx, model.StatusPending, model.StatusPaused, model.StatusRunning)
	if err != nil {
		e.log.Error().Err(err).Msg("list dispatches for promotion")
		return
	}

	for i := range dispatches {
		d := &dispatches[i]
		if d.Schedule == nil {
			continue
		}
		zone := e.eval.ResolveZone(d.Schedule, d.UserTimezone)

		if !e.eval.HasStartPassed(d.Schedule, zone) {
			continue
		}
		if !e.eval.IsAllowedWeekday(d.Schedule, zone) {
			continue
		}
		if !e.eval.IsWithinWindow(d.Schedule, zone) {
			if d.Status == model.StatusRunning {
				e.setStatus(ctx, d, model.StatusPaused, nil)
			}
			continue
		}

		switch d.Status {
		case model.StatusPaused:
			e.setStatus(ctx, d, model.StatusRunning, nil)
		case model.StatusPending:
			now := time.Now().UTC()
			e.setStatus(ctx, d, model.StatusRunning, &now)
		}
	}
}

// advanceRunning fires one unit of work per running dispatch, guarded so a
// dispatch never has two concurrent advancements. Invocations are
// fire-and-forget for this tick; the next tick skips dispatches still in
// flight.
func (e *Engine) advanceRunning(ctx context.Context) {
	dispatches, err := e.store.ListByStatus(ctx, model.StatusRunning)
	if err != nil {
		e.log.Error().Err(err).Msg("list running dispatches")
		return
	}

	for i := range dispatches {
		d := &dispatches[i]

		if d.Exhausted() {
			if err := e.runner.complete(ctx, d); err != nil {
				e.log.Error().Err(err).Str("dispatch", d.ID).Msg("complete exhausted dispatch")
			}
			continue
		}
		if d.Schedule != nil && !e.eval.Eligible(d) {
			continue
		}
		if !e.guard.TryAcquire(d.ID) {
			continue
		}
		go e.advance(ctx, d.ID, d.OwnerID)
	}
}

// advance is one isolated unit of work. The guard entry is released on
// every exit path, including panics, so a crashing invocation never wedges
// its dispatch out of future ticks.
func (e *Engine) advance(ctx context.Context, id, ownerID string) {
	defer e.guard.Release(id)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Any("panic", r).Str("dispatch", id).Msg("runner panic recovered")
		}
	}()

	if err := e.runner.Advance(ctx, id, ownerID); err != nil {
		e.log.Error().Err(err).Str("dispatch", id).Msg("advance failed")
	}
}

func (e *Engine) setStatus(ctx context.Context, d *model.Dispatch, status model.Status, startedAt *time.Time) {
	_, err := e.store.UpdateDispatch(ctx, d.ID, d.OwnerID, store.Patch{
		Status:    &status,
		StartedAt: startedAt,
	})
	if err != nil {
		e.log.Error().Err(err).Str("dispatch", d.ID).Str("to", string(status)).Msg("status transition failed")
		return
	}
	e.log.Info().Str("dispatch", d.ID).
		Str("from", string(d.Status)).
		Str("to", string(status)).
		Msg("dispatch status changed")
}
