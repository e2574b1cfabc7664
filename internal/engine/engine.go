// Package engine contains the dispatch scheduling and delivery core: the
// periodic tick that promotes and advances dispatches, the runner that
// processes one contact per unit of work, and the startup recovery pass.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/dispatch-engine/internal/guard"
	"github.com/example/dispatch-engine/internal/schedule"
	"github.com/example/dispatch-engine/internal/store"
)

type Engine struct {
	store    store.Store
	runner   *Runner
	guard    *guard.Guard
	eval     *schedule.Evaluator
	metrics  *Metrics
	log      zerolog.Logger
	interval time.Duration

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(st store.Store, runner *Runner, g *guard.Guard, eval *schedule.Evaluator, m *Metrics, log zerolog.Logger, interval time.Duration) (*Engine, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if st == nil || runner == nil || g == nil || eval == nil || m == nil {
		return nil, errors.New("engine dependencies must not be nil")
	}
	return &Engine{
		store:    st,
		runner:   runner,
		guard:    g,
		eval:     eval,
		metrics:  m,
		log:      log.With().Str("component", "engine").Logger(),
		interval: interval,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the tick loop. The first tick fires immediately, then on
// the fixed interval until Stop. Returns false when already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running.Store(true)

	go func() {
		defer close(e.done)

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.log.Info().Str("interval", e.interval.String()).Msg("engine started")

		e.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				e.log.Info().Msg("engine stopping")
				return
			case <-ticker.C:
				e.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for the current tick to finish. In-flight
// runner goroutines observe the cancelled context at their next checkpoint.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return false
	}

	e.cancel()
	<-e.done
	e.running.Store(false)

	e.log.Info().Msg("engine stopped")
	return true
}

func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

func (e *Engine) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Any("panic", r).Msg("tick panic recovered")
		}
	}()

	start := time.Now()
	e.Tick(ctx)
	e.metrics.TickDuration.Observe(time.Since(start).Seconds())
}
