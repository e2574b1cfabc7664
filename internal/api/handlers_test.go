package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/example/dispatch-engine/internal/model"
	"github.com/example/dispatch-engine/internal/store"
)

type fakeEngine struct {
	running bool
}

func (f *fakeEngine) Start() bool {
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeEngine) Stop() bool {
	if !f.running {
		return false
	}
	f.running = false
	return true
}

func (f *fakeEngine) IsRunning() bool { return f.running }

type fakeStore struct {
	dispatch *model.Dispatch
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) GetDispatch(ctx context.Context, id, ownerID string) (*model.Dispatch, error) {
	if f.dispatch == nil || f.dispatch.ID != id || f.dispatch.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *f.dispatch
	return &cp, nil
}

func (f *fakeStore) ListByStatus(ctx context.Context, statuses ...model.Status) ([]model.Dispatch, error) {
	return nil, nil
}

func (f *fakeStore) UpdateDispatch(ctx context.Context, id, ownerID string, patch store.Patch) (*model.Dispatch, error) {
	if f.dispatch == nil || f.dispatch.ID != id {
		return nil, store.ErrNotFound
	}
	if patch.Status != nil {
		f.dispatch.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		t := *patch.StartedAt
		f.dispatch.StartedAt = &t
	}
	cp := *f.dispatch
	return &cp, nil
}

func (f *fakeStore) IncrementStats(ctx context.Context, id, ownerID string, delta store.StatsDelta) (*model.Dispatch, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetTemplate(ctx context.Context, id, ownerID string) (*model.Template, error) {
	return nil, store.ErrNotFound
}

func newTestServer(t *testing.T, fs *fakeStore) (http.Handler, *fakeEngine) {
	t.Helper()

	eng := &fakeEngine{}
	h := NewHandler(eng, fs, nil)
	return Router(h, prometheus.NewRegistry(), zerolog.Nop()), eng
}

func doRequest(t *testing.T, handler http.Handler, method, path, owner string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	t.Parallel()

	handler, _ := newTestServer(t, &fakeStore{})
	rr := doRequest(t, handler, http.MethodGet, "/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestEngineLifecycle(t *testing.T) {
	t.Parallel()

	handler, eng := newTestServer(t, &fakeStore{})

	rr := doRequest(t, handler, http.MethodPost, "/v1/engine/start", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !eng.IsRunning() {
		t.Fatalf("expected engine running after start")
	}

	rr = doRequest(t, handler, http.MethodGet, "/v1/engine/status", "")
	var status map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["running"] != true {
		t.Fatalf("expected running=true, got %+v", status)
	}

	doRequest(t, handler, http.MethodPost, "/v1/engine/stop", "")
	if eng.IsRunning() {
		t.Fatalf("expected engine stopped")
	}
}

func TestDispatchCommands(t *testing.T) {
	t.Parallel()

	t.Run("start promotes pending and stamps startedAt", func(t *testing.T) {
		t.Parallel()

		fs := &fakeStore{dispatch: &model.Dispatch{ID: "d1", OwnerID: "o1", Status: model.StatusPending}}
		handler, _ := newTestServer(t, fs)

		rr := doRequest(t, handler, http.MethodPost, "/v1/dispatches/d1/start", "o1")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
		}
		if fs.dispatch.Status != model.StatusRunning {
			t.Fatalf("expected running, got %s", fs.dispatch.Status)
		}
		if fs.dispatch.StartedAt == nil || time.Since(*fs.dispatch.StartedAt) > time.Minute {
			t.Fatalf("expected fresh startedAt, got %v", fs.dispatch.StartedAt)
		}
	})

	t.Run("pause requires running", func(t *testing.T) {
		t.Parallel()

		fs := &fakeStore{dispatch: &model.Dispatch{ID: "d1", OwnerID: "o1", Status: model.StatusPending}}
		handler, _ := newTestServer(t, fs)

		rr := doRequest(t, handler, http.MethodPost, "/v1/dispatches/d1/pause", "o1")
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected 409 for pause on pending, got %d", rr.Code)
		}
	})

	t.Run("resume promotes paused", func(t *testing.T) {
		t.Parallel()

		fs := &fakeStore{dispatch: &model.Dispatch{ID: "d1", OwnerID: "o1", Status: model.StatusPaused}}
		handler, _ := newTestServer(t, fs)

		rr := doRequest(t, handler, http.MethodPost, "/v1/dispatches/d1/resume", "o1")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if fs.dispatch.Status != model.StatusRunning {
			t.Fatalf("expected running, got %s", fs.dispatch.Status)
		}
	})

	t.Run("missing owner header", func(t *testing.T) {
		t.Parallel()

		handler, _ := newTestServer(t, &fakeStore{})
		rr := doRequest(t, handler, http.MethodPost, "/v1/dispatches/d1/pause", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without owner header, got %d", rr.Code)
		}
	})

	t.Run("unknown dispatch", func(t *testing.T) {
		t.Parallel()

		handler, _ := newTestServer(t, &fakeStore{})
		rr := doRequest(t, handler, http.MethodGet, "/v1/dispatches/nope", "o1")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestGetReceipt_CacheDisabled(t *testing.T) {
	t.Parallel()

	handler, _ := newTestServer(t, &fakeStore{})
	rr := doRequest(t, handler, http.MethodGet, "/v1/dispatches/d1/receipts/0", "o1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when cache disabled, got %d", rr.Code)
	}
}
