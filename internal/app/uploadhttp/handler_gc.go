package uploadhttp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/pkg/httperrors"
)

const manualGCTTL = 24 * time.Hour

// Sweeper удаляет брошенные сессии старше ttl.
type Sweeper interface {
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
}

// gcOnce вручную запускает сбор брошенных сессий. Если TTL в конфиге не задан, берётся сутки.
func (s *Server) gcOnce(w http.ResponseWriter, r *http.Request) {
	ttl := s.Cfg.GC.TTL
	if ttl <= 0 {
		ttl = manualGCTTL
	}

	if _, err := s.Uploads.Sweep(r.Context(), ttl); err != nil {
		httperrors.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartGC стартует периодическую очистку. Возвращаемая функция останавливает её.
func StartGC(sw Sweeper, ttl, every time.Duration, logger *zap.Logger) func() {
	if every <= 0 || ttl <= 0 {
		return func() {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(every)
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := sw.Sweep(ctx, ttl); err != nil && ctx.Err() == nil {
					logger.Warn("gc sweep failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		once.Do(cancel)
	}
}
