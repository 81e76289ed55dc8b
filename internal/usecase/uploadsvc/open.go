package uploadsvc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/models"
)

// Open регистрирует новую сессию и выдаёт ей непредсказуемый идентификатор.
func (s *Uploads) Open(ctx context.Context, filename string, size int64) (models.Session, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return models.Session{}, fmt.Errorf("%w: filename is required", models.ErrInvalidRequest)
	}
	if size <= 0 {
		return models.Session{}, fmt.Errorf("%w: size must be positive", models.ErrInvalidRequest)
	}
	if size > s.Limits.MaxFileSize.Int64() {
		return models.Session{}, fmt.Errorf("%w: %d > %d bytes", models.ErrFileTooLarge, size, s.Limits.MaxFileSize.Int64())
	}
	if !extensionAllowed(filename, s.Limits.AllowedExtensions) {
		return models.Session{}, fmt.Errorf("%w: unsupported file type %q", models.ErrInvalidRequest, filepath.Ext(filename))
	}

	now := s.now()
	sess := models.Session{
		ID:        uuid.NewString(),
		FileName:  filepath.Base(filename),
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Save(ctx, sess); err != nil {
		return models.Session{}, err
	}

	s.Logger.Info("session opened",
		zap.String("session_id", sess.ID),
		zap.String("file", sess.FileName),
		zap.Int64("size", size))

	return sess, nil
}

// extensionAllowed: пустой список разрешает любые расширения.
func extensionAllowed(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

// checkSessionID принимает только канонический uuid, выданный Open.
func checkSessionID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return fmt.Errorf("%w: %q", models.ErrInvalidSession, id)
	}
	return nil
}
