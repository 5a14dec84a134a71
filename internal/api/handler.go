// Package api exposes the dialogue controller over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/koscakluka/voiceforms/core/catalog"
	"github.com/koscakluka/voiceforms/core/dialogue"
)

// Controller is the part of the dialogue controller driven over HTTP.
type Controller interface {
	Start(ctx context.Context, intentName string) error
	Listen(ctx context.Context) error
	Retry(ctx context.Context) error
	Abandon(ctx context.Context) error
	StopRecording() bool
	Snapshot() dialogue.Snapshot
}

var _ Controller = (*dialogue.Controller)(nil)

// Handler serves the control routes. Conversations block until they settle,
// so they run in the background on the handler's base context and the
// routes answer 202 once one is under way.
type Handler struct {
	controller Controller
	catalog    *catalog.Catalog
	hub        *Hub
	listen     bool

	baseCtx context.Context
	wg      sync.WaitGroup
}

type HandlerOption func(*Handler)

// WithListen enables POST /listen. It needs a controller with a classifier.
func WithListen(enabled bool) HandlerOption {
	return func(h *Handler) { h.listen = enabled }
}

// NewHandler creates a handler. ctx bounds every background conversation.
func NewHandler(ctx context.Context, controller Controller, cat *catalog.Catalog, hub *Hub, opts ...HandlerOption) *Handler {
	h := &Handler{
		controller: controller,
		catalog:    cat,
		hub:        hub,
		baseCtx:    ctx,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter returns the full router with the shared middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the control routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/listen", h.Listen)
	r.Post("/intents/{name}", h.StartIntent)
	r.Post("/answer/retry", h.Retry)
	r.Post("/recording/stop", h.StopRecording)
	r.Delete("/session", h.Abandon)
	r.Get("/status", h.Status)
	r.Get("/catalog", h.Catalog)
	r.Get("/catalog/schema", h.CatalogSchema)
	if h.hub != nil {
		r.Get("/events", h.hub.ServeHTTP)
	}
}

// Wait blocks until every background conversation has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) StartIntent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !h.catalog.Has(name) {
		Error(w, http.StatusNotFound, "unknown intent: "+name)
		return
	}
	if state := h.controller.Snapshot().State; state != dialogue.StateIdle {
		Error(w, http.StatusConflict, "dialogue is "+state.String())
		return
	}

	h.background("start intent", func(ctx context.Context) error {
		return h.controller.Start(ctx, name)
	})
	JSON(w, http.StatusAccepted, map[string]string{"intent": name})
}

func (h *Handler) Listen(w http.ResponseWriter, r *http.Request) {
	if !h.listen {
		Error(w, http.StatusNotImplemented, "intent classification is not configured")
		return
	}
	if state := h.controller.Snapshot().State; state != dialogue.StateIdle {
		Error(w, http.StatusConflict, "dialogue is "+state.String())
		return
	}

	h.background("listen", h.controller.Listen)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	if !h.controller.Snapshot().AwaitingRetry {
		Error(w, http.StatusConflict, "no answer is waiting for a retry")
		return
	}

	h.background("retry", h.controller.Retry)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Abandon(r.Context()); err != nil {
		if errors.Is(err, dialogue.ErrBusy) {
			Error(w, http.StatusConflict, err.Error())
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"stopped": h.controller.StopRecording()})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.catalog.Document())
}

func (h *Handler) CatalogSchema(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, catalog.Schema())
}

func (h *Handler) background(operation string, run func(context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := run(h.baseCtx); err != nil {
			slog.Warn("Dialogue operation failed", "operation", operation, "error", err)
		}
	}()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
