package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sir_venger/chunkload/internal/models"
)

const sessionsTable = "upload_sessions"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sessionColumns = []string{
	"id",
	"file_name",
	"size",
	"total_chunks",
	"has_artifact",
	"created_at",
	"updated_at",
}

// PGStore сохраняет метаданные сессий в Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Repo = (*PGStore)(nil)

// OpenPostgres создаёт пул подключений к Postgres. Таблицу создают миграции (cmd/migrate).
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("meta dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &PGStore{pool: pool}, nil
}

// Get возвращает сессию по идентификатору.
func (s *PGStore) Get(ctx context.Context, id string) (models.Session, error) {
	if strings.TrimSpace(id) == "" {
		return models.Session{}, models.ErrInvalidSession
	}

	sqlStr, args, err := psql.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return models.Session{}, fmt.Errorf("build select: %w", err)
	}

	sess, err := scanSession(s.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("scan session row: %w", err)
	}

	return sess, nil
}

// Save записывает (или обновляет) сессию.
func (s *PGStore) Save(ctx context.Context, sess models.Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return models.ErrInvalidSession
	}

	sqlStr, args, err := psql.
		Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(sess.ID, sess.FileName, sess.Size, sess.TotalChunks, sess.HasArtifact, sess.CreatedAt, sess.UpdatedAt).
		Suffix(`
					ON CONFLICT (id) DO UPDATE
					SET file_name    = EXCLUDED.file_name,
						size         = EXCLUDED.size,
						total_chunks = EXCLUDED.total_chunks,
						has_artifact = EXCLUDED.has_artifact,
						updated_at   = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert sql: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}

	return nil
}

func (s *PGStore) List(ctx context.Context) ([]models.Session, error) {
	sqlStr, args, err := psql.
		Select(sessionColumns...).
		From(sessionsTable).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, sess)
	}

	return out, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := psql.
		Delete(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec delete: %w", err)
	}
	return nil
}

func (s *PGStore) Ready(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close освобождает подключения пула.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanSession(row pgx.Row) (models.Session, error) {
	var (
		sess      models.Session
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&sess.ID, &sess.FileName, &sess.Size, &sess.TotalChunks, &sess.HasArtifact, &createdAt, &updatedAt)
	if err != nil {
		return models.Session{}, err
	}
	sess.CreatedAt = createdAt.UTC()
	sess.UpdatedAt = updatedAt.UTC()
	return sess, nil
}
