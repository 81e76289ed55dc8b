package uploadhttp

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/pkg/httperrors"
)

// healthStats — payload ответа /health.
type healthStats struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// health опрашивает зависимости; любая неготовая даёт 503.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stats := healthStats{OK: true, Checks: make(map[string]string, len(s.Checks))}
	for name, c := range s.Checks {
		if err := c.Ready(ctx); err != nil {
			s.Logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			stats.OK = false
			stats.Checks[name] = err.Error()
			continue
		}
		stats.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !stats.OK {
		status = http.StatusServiceUnavailable
	}
	httperrors.WriteJSON(w, status, stats)
}
