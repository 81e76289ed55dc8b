package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sir_venger/chunkload/internal/models"
)

// DiskStore хранит части на локальном диске: <root>/<session>/chunk-N.bin.
type DiskStore struct {
	root string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore создаёт хранилище поверх каталога root, создавая его при необходимости.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root}, nil
}

// Root возвращает корневой каталог хранилища.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) sessionDir(sessionID string) (string, error) {
	if err := checkSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, sessionID), nil
}

// ListChunks читает каталог сессии; os.ReadDir отдаёт имена в лексикографическом порядке.
func (s *DiskStore) ListChunks(_ context.Context, sessionID string) ([]Key, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]Key, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isChunkName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// часть могла быть заменена между ReadDir и Info
			continue
		}
		keys = append(keys, Key{Name: e.Name(), Size: info.Size()})
	}

	return keys, nil
}

func (s *DiskStore) ReadChunk(_ context.Context, sessionID string, index int) (io.ReadCloser, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	return openExisting(filepath.Join(dir, models.ChunkName(index)))
}

func (s *DiskStore) WriteChunk(_ context.Context, sessionID string, index int, r io.Reader) (int64, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: negative index %d", models.ErrInvalidChunk, index)
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return 0, err
	}
	return writeAtomic(dir, models.ChunkName(index), r)
}

func (s *DiskStore) WriteArtifact(_ context.Context, sessionID string, r io.Reader) (int64, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return 0, err
	}
	return writeAtomic(dir, models.ArtifactName, r)
}

func (s *DiskStore) OpenArtifact(_ context.Context, sessionID string) (io.ReadCloser, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	return openExisting(filepath.Join(dir, models.ArtifactName))
}

func (s *DiskStore) DeleteSession(_ context.Context, sessionID string) error {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (s *DiskStore) Ready(_ context.Context) error {
	fi, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

func openExisting(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// writeAtomic пишет данные во временный файл того же каталога и переименовывает его,
// так что читатель видит либо старую, либо новую версию целиком.
func writeAtomic(dir, name string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}

	if err = os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		cleanup()
		return 0, err
	}

	return n, nil
}
