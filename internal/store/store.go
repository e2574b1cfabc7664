package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/dispatch-engine/internal/model"
)

// ErrNotFound is returned when a dispatch or template does not exist for
// the given id/owner pair.
var ErrNotFound = errors.New("store: not found")

// Patch is a partial dispatch update. Nil fields are left untouched.
type Patch struct {
	Status      *model.Status
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// StatsDelta is applied as a server-side relative increment: sent/failed/
// invalid are added to the stored values, never overwritten. Total is the
// one exception and is set absolutely when non-nil.
type StatsDelta struct {
	Sent    int
	Failed  int
	Invalid int
	Total   *int
}

// Store is the engine's only view of persisted state. The engine assumes a
// single writer process; nothing here coordinates across instances.
type Store interface {
	GetDispatch(ctx context.Context, id, ownerID string) (*model.Dispatch, error)
	ListByStatus(ctx context.Context, statuses ...model.Status) ([]model.Dispatch, error)
	UpdateDispatch(ctx context.Context, id, ownerID string, patch Patch) (*model.Dispatch, error)
	IncrementStats(ctx context.Context, id, ownerID string, delta StatsDelta) (*model.Dispatch, error)
	GetTemplate(ctx context.Context, id, ownerID string) (*model.Template, error)
}
