package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

const readyTimeout = 3 * time.Second

// Healthz is the liveness probe. It never touches the store.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "OK")
}

// Ready reports 503 while the object store cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.prober.Probe(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, "UNAVAILABLE")
			return
		}
	}
	render.PlainText(w, r, "OK")
}
