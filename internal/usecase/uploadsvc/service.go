// Package uploadsvc — серверная часть протокола загрузки частями: открытие сессий,
// приём частей с проверкой объёма и контрольной суммы, сборка и листинг.
package uploadsvc

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/chunkstore"
	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/internal/usecase/assembly"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

type (
	// SessionRepo хранилище метаданных сессий
	SessionRepo interface {
		Get(ctx context.Context, id string) (models.Session, error)
		Save(ctx context.Context, s models.Session) error
		List(ctx context.Context) ([]models.Session, error)
		Delete(ctx context.Context, id string) error
	}

	// Assembler собирает артефакт из частей и строит превью.
	Assembler interface {
		Finalize(ctx context.Context, sessionID string, expectedTotal int) (assembly.Result, error)
		PreviewArtifact(ctx context.Context, sessionID string) (uploadproto.Preview, error)
	}

	// Service объединяет операции сервера загрузки.
	Service interface {
		Open(ctx context.Context, filename string, size int64) (models.Session, error)
		PutChunk(ctx context.Context, w ChunkWrite) error
		Finalize(ctx context.Context, sessionID string, totalChunks int) (assembly.Result, error)
		Preview(ctx context.Context, sessionID string) (uploadproto.Preview, error)
		Sessions(ctx context.Context) ([]models.SessionInfo, error)
		Sweep(ctx context.Context, ttl time.Duration) (int, error)
	}
)

// ChunkWrite описывает одну входящую часть.
type ChunkWrite struct {
	SessionID   string
	Index       int
	TotalChunks int
	Body        io.Reader
	// Sha256 задаёт ожидаемую контрольную сумму в hex; пустая строка отключает проверку.
	Sha256 string
}

type Deps struct {
	Repo      SessionRepo
	Chunks    chunkstore.Store
	Assembler Assembler
	Limits    config.UploadConfig
	Logger    *zap.Logger
	Now       func() time.Time
}

type Uploads struct {
	Deps

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock живёт в карте, пока его кто-то держит или ждёт.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New конструирует сервис загрузки с заданными зависимостями.
func New(deps Deps) *Uploads {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	def := config.Default().Upload
	if deps.Limits.MaxFileSize <= 0 {
		deps.Limits.MaxFileSize = def.MaxFileSize
	}
	if deps.Limits.MaxChunkBytes <= 0 {
		deps.Limits.MaxChunkBytes = def.MaxChunkBytes
	}

	return &Uploads{Deps: deps, locks: map[string]*sessionLock{}}
}

var _ Service = (*Uploads)(nil)

// lockSession захватывает мьютекс сессии и возвращает функцию освобождения.
// Всё, что читает и сохраняет метаданные сессии, работает под ним, иначе
// сохранение устаревшей копии затрёт чужие изменения.
func (s *Uploads) lockSession(id string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Uploads) now() time.Time {
	return s.Now().UTC()
}
