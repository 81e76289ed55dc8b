package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sir_venger/chunkload/internal/models"
)

const sessionFileName = "session.json"

// FileStore хранит метаданные каждой сессии в <root>/<session>/session.json,
// рядом с частями дискового хранилища.
type FileStore struct {
	mu   sync.Mutex
	root string
}

var _ Repo = (*FileStore)(nil)

// NewFileStore создаёт файловое хранилище метаданных.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("meta root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", models.ErrInvalidSession
	}
	return filepath.Join(s.root, id, sessionFileName), nil
}

func (s *FileStore) Get(_ context.Context, id string) (models.Session, error) {
	p, err := s.path(id)
	if err != nil {
		return models.Session{}, err
	}
	return readSession(p)
}

// Save обновляет session.json через временный файл, чтобы читатель не увидел его наполовину.
func (s *FileStore) Save(_ context.Context, sess models.Session) error {
	p, err := s.path(sess.ID)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *FileStore) List(_ context.Context) ([]models.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]models.Session, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sess, err := readSession(filepath.Join(s.root, e.Name(), sessionFileName))
		if err != nil {
			// каталог без метаданных не является сессией
			continue
		}
		out = append(out, sess)
	}

	sortNewestFirst(out)
	return out, nil
}

// Delete удаляет только файл метаданных; части удаляет хранилище частей.
func (s *FileStore) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) Ready(context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

func (s *FileStore) Close() {}

// readSession читает метаданные сессии с диска.
func readSession(path string) (models.Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Session{}, models.ErrSessionNotFound
		}
		return models.Session{}, err
	}

	var sess models.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}
