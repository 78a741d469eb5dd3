package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capturelabs/capturesink/internal/capture"
	"github.com/capturelabs/capturesink/internal/hooks"
)

const hooksTimeout = 3 * time.Second

// HooksHandler manages webhook registrations and manual test triggers.
type HooksHandler struct {
	store      hooks.Store
	dispatcher *hooks.Dispatcher
	idGen      capture.IDGenerator
	clock      capture.Clock
	timeout    time.Duration
	logger     *zap.Logger
}

// NewHooksHandler wires the registration store and dispatcher.
func NewHooksHandler(
	store hooks.Store,
	dispatcher *hooks.Dispatcher,
	idGen capture.IDGenerator,
	clock capture.Clock,
	logger *zap.Logger,
) *HooksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HooksHandler{
		store:      store,
		dispatcher: dispatcher,
		idGen:      idGen,
		clock:      clock,
		timeout:    hooksTimeout,
		logger:     logger,
	}
}

// Create handles POST /v1/hooks. It accepts {"event", "url", "secret"} and
// returns 201 {"hook": {...}} on success, 400 for invalid registrations,
// 503 when the store is unavailable, or 500 if the store call fails.
func (h *HooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "hook store unavailable")
		return
	}
	var req createHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	reg := hooks.Registration{
		Event:  req.Event,
		URL:    req.URL,
		Secret: req.Secret,
	}
	if err := reg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.idGen.NewID()
	if err != nil {
		h.logger.Error("generate hook id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate hook id")
		return
	}
	reg.ID = id
	reg.CreatedAt = h.clock.Now().UTC()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Create(ctx, reg); err != nil {
		h.logger.Error("create hook failed", zap.String("hook_id", reg.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create hook")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"hook": reg})
}

// List handles GET /v1/hooks. It returns every registration as
// {"hooks": [...]}, 503 when the store is unavailable, or 500 if the store
// call fails.
func (h *HooksHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "hook store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	regs, err := h.store.List(ctx)
	if err != nil {
		h.logger.Error("list hooks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list hooks")
		return
	}
	if regs == nil {
		regs = []hooks.Registration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hooks": regs})
}

// GetOne handles GET /v1/hooks/{id}. It returns {"hook": {...}} on success
// or 404 when no registration has the id.
func (h *HooksHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "hook store unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reg, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, hooks.ErrNotFound) {
			writeError(w, http.StatusNotFound, "hook not found")
			return
		}
		h.logger.Error("get hook failed", zap.String("hook_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load hook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hook": reg})
}

// Delete handles DELETE /v1/hooks/{id}. It returns {"status": "deleted"} on
// success or 404 when no registration has the id.
func (h *HooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "hook store unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Delete(ctx, id); err != nil {
		if errors.Is(err, hooks.ErrNotFound) {
			writeError(w, http.StatusNotFound, "hook not found")
			return
		}
		h.logger.Error("delete hook failed", zap.String("hook_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete hook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// Trigger handles POST /v1/hooks/trigger. It accepts {"event", "data"} and
// synchronously delivers a test envelope to every matching registration,
// returning the per-hook outcomes as {"results": [...]}. Unknown events are
// rejected with 400; delivery failures surface inside the results rather
// than as an error status.
func (h *HooksHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "hook dispatcher unavailable")
		return
	}
	var req triggerHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !hooks.KnownEvent(req.Event) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown event %q", req.Event))
		return
	}
	results, err := h.dispatcher.Trigger(r.Context(), req.Event, req.Data)
	if err != nil {
		h.logger.Error("trigger hooks failed", zap.String("event", req.Event), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to trigger hooks")
		return
	}
	if results == nil {
		results = []hooks.DeliveryResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type createHookRequest struct {
	Event  string `json:"event"`
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

type triggerHookRequest struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
