// Package chunkstore хранит части загружаемых файлов и собранные артефакты.
// Часть адресуется парой (сессия, индекс); повторная запись по тому же ключу заменяет
// предыдущую. Пакет не упорядочивает и не проверяет связь частей между собой,
// это задача валидатора сборки.
package chunkstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Key — ключ хранимой части в том виде, в каком его вернул бэкенд, и её размер.
type Key struct {
	Name string
	Size int64
}

// Store описывает хранилище частей и артефактов.
type Store interface {
	// ListChunks возвращает ключи частей сессии в порядке листинга бэкенда.
	ListChunks(ctx context.Context, sessionID string) ([]Key, error)
	// ReadChunk открывает содержимое части; models.ErrNotFound, если её нет.
	ReadChunk(ctx context.Context, sessionID string, index int) (io.ReadCloser, error)
	// WriteChunk атомарно записывает (или перезаписывает) часть.
	WriteChunk(ctx context.Context, sessionID string, index int, r io.Reader) (int64, error)
	// WriteArtifact атомарно записывает собранный файл сессии.
	WriteArtifact(ctx context.Context, sessionID string, r io.Reader) (int64, error)
	// OpenArtifact открывает собранный файл; models.ErrNotFound, если сборки не было.
	OpenArtifact(ctx context.Context, sessionID string) (io.ReadCloser, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Ready(ctx context.Context) error
}

func isChunkName(name string) bool {
	return strings.HasPrefix(name, "chunk-") && strings.HasSuffix(name, ".bin")
}

// checkSessionID не даёт идентификатору сессии выйти за пределы своего каталога/префикса.
func checkSessionID(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// countingReader считает прочитанные байты.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
