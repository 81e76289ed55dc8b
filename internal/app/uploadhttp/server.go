package uploadhttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/usecase/uploadsvc"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// Checker — зависимость, готовность которой отдаёт /health.
type Checker interface {
	Ready(ctx context.Context) error
}

// Server serves the chunked upload HTTP API.
type Server struct {
	Uploads uploadsvc.Service
	Checks  map[string]Checker
	Cfg     *config.Config
	Logger  *zap.Logger
}

// New создаёт HTTP-обработчик API загрузки.
func New(srv *Server) http.Handler {
	if srv.Logger == nil {
		srv.Logger = zap.NewNop()
	}
	if srv.Cfg == nil {
		srv.Cfg = config.Default()
	}

	return srv.routes()
}

// routes регистрирует обработчики загрузки, здоровья и GC.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Logger))
	r.Use(middleware.Recoverer)

	r.Post(uploadproto.InitPath, s.initSession)
	r.Put("/api/upload/{sessionID}/chunks/{idx}", s.putChunk)
	r.Post(uploadproto.FinalizePath, s.finalize)
	r.Get(uploadproto.FinalizePath, s.finalizedPreview)
	r.Get(uploadproto.SessionsPath, s.listSessions)

	r.Get("/health", s.health)
	r.Post("/admin/gc", s.gcOnce)

	return r
}
