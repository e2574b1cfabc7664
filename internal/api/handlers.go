// Package api exposes the operational HTTP surface: health, engine
// lifecycle, explicit dispatch commands, receipt lookup and metrics.
// Authentication happens upstream; the owner id arrives via header.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/dispatch-engine/internal/cache"
	"github.com/example/dispatch-engine/internal/model"
	"github.com/example/dispatch-engine/internal/store"
)

const ownerHeader = "X-Owner-ID"

// EngineControl is the slice of the engine the API needs.
type EngineControl interface {
	Start() bool
	Stop() bool
	IsRunning() bool
}

type Handler struct {
	engine   EngineControl
	store    store.Store
	receipts cache.ReceiptCache
}

func NewHandler(e EngineControl, s store.Store, receipts cache.ReceiptCache) *Handler {
	return &Handler{engine: e, store: s, receipts: receipts}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.engine.IsRunning()})
}

func (h *Handler) EngineStart(w http.ResponseWriter, r *http.Request) {
	h.engine.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.engine.IsRunning()})
}

func (h *Handler) EngineStop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.engine.IsRunning()})
}

func (h *Handler) GetDispatch(w http.ResponseWriter, r *http.Request) {
	d, ok := h.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dispatchView(d))
}

// StartDispatch is the explicit start command: pending -> running.
func (h *Handler) StartDispatch(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	h.transition(w, r, model.StatusPending, model.StatusRunning, &now)
}

// PauseDispatch is the explicit pause command: running -> paused. It takes
// effect at the next checkpoint of any in-flight unit of work.
func (h *Handler) PauseDispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusRunning, model.StatusPaused, nil)
}

// ResumeDispatch is the explicit resume command: paused -> running.
func (h *Handler) ResumeDispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusPaused, model.StatusRunning, nil)
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	if h.receipts == nil {
		http.Error(w, "receipt cache disabled", http.StatusNotFound)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		http.Error(w, "invalid contact index", http.StatusBadRequest)
		return
	}

	receipt, err := h.receipts.GetReceipt(r.Context(), chi.URLParam(r, "id"), index)
	if errors.Is(err, cache.ErrNoReceipt) {
		http.Error(w, "no receipt", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, from, to model.Status, startedAt *time.Time) {
	d, ok := h.fetch(w, r)
	if !ok {
		return
	}
	if d.Status != from {
		http.Error(w, "dispatch is "+string(d.Status)+", expected "+string(from), http.StatusConflict)
		return
	}

	updated, err := h.store.UpdateDispatch(r.Context(), d.ID, d.OwnerID, store.Patch{
		Status:    &to,
		StartedAt: startedAt,
	})
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "dispatch not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dispatchView(updated))
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) (*model.Dispatch, bool) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		http.Error(w, "missing "+ownerHeader+" header", http.StatusBadRequest)
		return nil, false
	}

	d, err := h.store.GetDispatch(r.Context(), chi.URLParam(r, "id"), ownerID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "dispatch not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return d, true
}

func dispatchView(d *model.Dispatch) map[string]any {
	return map[string]any{
		"id":          d.ID,
		"name":        d.Name,
		"status":      d.Status,
		"stats":       d.Stats,
		"contacts":    len(d.Contacts),
		"createdAt":   d.CreatedAt,
		"startedAt":   d.StartedAt,
		"completedAt": d.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
