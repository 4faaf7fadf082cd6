package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/musichub/server/pkg/responders"
)

// health reports liveness and whether the record store answers a ping.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status, storeStatus, code := "ok", "ok", http.StatusOK
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			log := h.logger.With().Err(err).Logger()
			log.Warn().Msg("health.store_unreachable")
			status, storeStatus, code = "degraded", "unreachable", http.StatusServiceUnavailable
		}
	}

	responders.JSON(w, code, map[string]any{
		"status":      status,
		"store":       storeStatus,
		"uptime":      time.Since(serverStartTime).Round(time.Second).String(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"routePrefix": h.cfg.Server.RoutePrefix,
	})
}
