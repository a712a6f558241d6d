package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store pinger
}

func NewHealthHandler(store pinger) *HealthHandler { return &HealthHandler{store: store} }

func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}

// Ready reports 503 while the subscriber store is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
}
