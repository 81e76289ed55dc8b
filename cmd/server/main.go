package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/app/uploadhttp"
	"github.com/sir_venger/chunkload/internal/chunkstore"
	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/logging"
	meta "github.com/sir_venger/chunkload/internal/repo"
	"github.com/sir_venger/chunkload/internal/usecase/assembly"
	"github.com/sir_venger/chunkload/internal/usecase/uploadsvc"
)

// main инициализирует HTTP-сервис загрузки и обеспечивает корректное завершение по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New("chunkload-server", cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chunks, err := chunkstore.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("open chunk store", zap.Error(err))
	}

	repo, err := meta.Open(ctx, cfg.MetaDSN)
	if err != nil {
		logger.Fatal("open meta store", zap.Error(err))
	}
	defer repo.Close()

	svc := uploadsvc.New(uploadsvc.Deps{
		Repo:      repo,
		Chunks:    chunks,
		Assembler: assembly.New(chunks, cfg.Preview, logger),
		Limits:    cfg.Upload,
		Logger:    logger.Named("uploads"),
	})

	handler := uploadhttp.New(&uploadhttp.Server{
		Uploads: svc,
		Checks:  map[string]uploadhttp.Checker{"chunks": chunks, "meta": repo},
		Cfg:     cfg,
		Logger:  logger.Named("http"),
	})

	// Фоновый GC брошенных сессий; при нулевом TTL выключен.
	stopGC := uploadhttp.StartGC(svc, cfg.GC.TTL, cfg.GC.Interval, logger.Named("gc"))
	defer stopGC()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Сценарий graceful shutdown при получении SIGTERM/SIGINT.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("storage", cfg.Storage.Backend),
		zap.Duration("gc_ttl", cfg.GC.TTL))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("final shutdown error", zap.Error(err))
	}
}
