package main

import (
	"context"
	"log"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/logging"
	meta "github.com/sir_venger/chunkload/internal/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New("chunkload-migrate", cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := strings.TrimSpace(cfg.MetaDSN)
	if dsn == "" {
		logger.Fatal("meta_dsn is not configured")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		logger.Info("non-postgres meta store selected, skipping migrations", zap.String("dsn", dsn))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := meta.ApplyMigrations(ctx, dsn); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	logger.Info("migrations applied")
}
