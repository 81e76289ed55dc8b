package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/sir_venger/chunkload/internal/models"
)

// Repo хранит метаданные сессий загрузки.
type Repo interface {
	Get(ctx context.Context, id string) (models.Session, error)
	Save(ctx context.Context, s models.Session) error
	// List возвращает все сессии, самые свежие первыми.
	List(ctx context.Context) ([]models.Session, error)
	Delete(ctx context.Context, id string) error
	Ready(ctx context.Context) error
	Close()
}

// Open выбирает реализацию по DSN: memory://, file://<dir> или postgres://.
func Open(ctx context.Context, dsn string) (Repo, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, fmt.Errorf("meta dsn is empty")
	case strings.HasPrefix(dsn, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "file://"):
		return NewFileStore(strings.TrimPrefix(dsn, "file://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported meta dsn %q", dsn)
	}
}
