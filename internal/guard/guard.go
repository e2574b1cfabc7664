// Package guard tracks which dispatches currently have a unit of work in
// flight, enforcing at-most-one active advancement per dispatch within this
// process.
package guard

import "sync"

type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func New() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// TryAcquire atomically inserts id into the in-flight set. It returns true
// only if the id was newly inserted; callers must not start work on a
// false return.
func (g *Guard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inflight[id]; ok {
		return false
	}
	g.inflight[id] = struct{}{}
	return true
}

// Release removes id unconditionally. Releasing an id that is not held is
// a no-op, so release paths can run on every exit without bookkeeping.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, id)
}

// Len reports the number of dispatches currently in flight.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
