package guard

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGuard_TryAcquireRelease(t *testing.T) {
	t.Parallel()

	g := New()

	if !g.TryAcquire("d1") {
		t.Fatalf("expected first TryAcquire to succeed")
	}
	if g.TryAcquire("d1") {
		t.Fatalf("expected second TryAcquire to fail while held")
	}
	if !g.TryAcquire("d2") {
		t.Fatalf("distinct ids must not contend")
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 in flight, got %d", g.Len())
	}

	g.Release("d1")
	if !g.TryAcquire("d1") {
		t.Fatalf("expected TryAcquire to succeed after Release")
	}

	// Releasing an id that is not held is a no-op.
	g.Release("never-acquired")
}

func TestGuard_ConcurrentAcquireSingleWinner(t *testing.T) {
	t.Parallel()

	const callers = 64

	g := New()
	var wins atomic.Int64
	var start, done sync.WaitGroup

	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			if g.TryAcquire("d1") {
				wins.Add(1)
			}
		}()
	}
	start.Done()
	done.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly 1 winner out of %d callers, got %d", callers, wins.Load())
	}
}
