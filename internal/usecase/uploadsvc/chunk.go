package uploadsvc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/models"
)

// PutChunk сохраняет часть, заменяя ранее принятую с тем же индексом.
//
// Суммарный объём частей сессии (без учёта заменяемой) не может превысить
// заявленный при открытии размер. Часть буферизуется целиком, поэтому при
// несовпадении контрольной суммы в хранилище ничего не попадает.
func (s *Uploads) PutChunk(ctx context.Context, w ChunkWrite) error {
	if err := checkSessionID(w.SessionID); err != nil {
		return err
	}
	if w.Index < 0 || w.TotalChunks < 1 || w.Index >= w.TotalChunks {
		return fmt.Errorf("%w: index %d of %d", models.ErrInvalidChunk, w.Index, w.TotalChunks)
	}

	unlock := s.lockSession(w.SessionID)
	defer unlock()

	sess, err := s.Repo.Get(ctx, w.SessionID)
	if err != nil {
		return err
	}
	if int64(w.TotalChunks) > sess.Size {
		return fmt.Errorf("%w: %d chunks for %d bytes", models.ErrInvalidChunk, w.TotalChunks, sess.Size)
	}

	keys, err := s.Chunks.ListChunks(ctx, w.SessionID)
	if err != nil {
		return err
	}
	var stored int64
	for _, k := range keys {
		if idx, ok := models.ParseChunkIndex(k.Name); ok && idx != w.Index {
			stored += k.Size
		}
	}
	remaining := sess.Size - stored
	if remaining <= 0 {
		return fmt.Errorf("%w: %d bytes already stored", models.ErrSessionTooLarge, stored)
	}

	limit := min(remaining, s.Limits.MaxChunkBytes.Int64())
	data, err := io.ReadAll(io.LimitReader(w.Body, limit+1))
	if err != nil {
		return err
	}
	switch {
	case len(data) == 0:
		return fmt.Errorf("%w: empty body", models.ErrInvalidChunk)
	case int64(len(data)) > s.Limits.MaxChunkBytes.Int64():
		return fmt.Errorf("%w: more than %d bytes", models.ErrChunkTooLarge, s.Limits.MaxChunkBytes.Int64())
	case int64(len(data)) > remaining:
		return fmt.Errorf("%w: %d stored + chunk > %d declared", models.ErrSessionTooLarge, stored, sess.Size)
	}

	if w.Sha256 != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, w.Sha256) {
			return fmt.Errorf("%w: chunk %d: got %s", models.ErrChecksumMismatch, w.Index, got)
		}
	}

	n, err := s.Chunks.WriteChunk(ctx, w.SessionID, w.Index, bytes.NewReader(data))
	if err != nil {
		return err
	}

	sess.TotalChunks = w.TotalChunks
	sess.UpdatedAt = s.now()
	if err := s.Repo.Save(ctx, sess); err != nil {
		return err
	}

	s.Logger.Debug("chunk stored",
		zap.String("session_id", w.SessionID),
		zap.Int("index", w.Index),
		zap.Int("total", w.TotalChunks),
		zap.Int64("bytes", n))

	return nil
}
