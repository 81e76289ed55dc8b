package chunkstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/sir_venger/chunkload/internal/models"
)

// MemoryStore хранит части только в оперативной памяти; удобно для тестов.
type MemoryStore struct {
	mu        sync.RWMutex
	chunks    map[string]map[string][]byte
	artifacts map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:    map[string]map[string][]byte{},
		artifacts: map[string][]byte{},
	}
}

// ListChunks отдаёт ключи в лексикографическом порядке, как файловая система или S3.
func (s *MemoryStore) ListChunks(_ context.Context, sessionID string) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.chunks[sessionID]))
	for name, b := range s.chunks[sessionID] {
		keys = append(keys, Key{Name: name, Size: int64(len(b))})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })

	return keys, nil
}

func (s *MemoryStore) ReadChunk(_ context.Context, sessionID string, index int) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.chunks[sessionID][models.ChunkName(index)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemoryStore) WriteChunk(_ context.Context, sessionID string, index int, r io.Reader) (int64, error) {
	if err := checkSessionID(sessionID); err != nil {
		return 0, err
	}
	if index < 0 {
		return 0, models.ErrInvalidChunk
	}

	// читаем вне блокировки, подменяем срез целиком
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks[sessionID] == nil {
		s.chunks[sessionID] = map[string][]byte{}
	}
	s.chunks[sessionID][models.ChunkName(index)] = b

	return int64(len(b)), nil
}

func (s *MemoryStore) WriteArtifact(_ context.Context, sessionID string, r io.Reader) (int64, error) {
	if err := checkSessionID(sessionID); err != nil {
		return 0, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[sessionID] = b

	return int64(len(b)), nil
}

func (s *MemoryStore) OpenArtifact(_ context.Context, sessionID string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.artifacts[sessionID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, sessionID)
	delete(s.artifacts, sessionID)
	return nil
}

func (s *MemoryStore) Ready(context.Context) error { return nil }
