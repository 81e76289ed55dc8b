package uploadsvc

import (
	"context"

	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/internal/usecase/assembly"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// Finalize собирает артефакт. totalChunks <= 0 включает best-effort проверку пропусков.
func (s *Uploads) Finalize(ctx context.Context, sessionID string, totalChunks int) (assembly.Result, error) {
	if err := checkSessionID(sessionID); err != nil {
		return assembly.Result{}, err
	}
	unlock := s.lockSession(sessionID)
	defer unlock()

	sess, err := s.Repo.Get(ctx, sessionID)
	if err != nil {
		return assembly.Result{}, err
	}

	res, err := s.Assembler.Finalize(ctx, sessionID, totalChunks)
	if err != nil {
		s.Logger.Warn("finalize rejected", zap.String("session_id", sessionID), zap.Error(err))
		return assembly.Result{}, err
	}

	sess.HasArtifact = true
	sess.UpdatedAt = s.now()
	if totalChunks > 0 {
		sess.TotalChunks = totalChunks
	}
	if err := s.Repo.Save(ctx, sess); err != nil {
		return assembly.Result{}, err
	}

	return res, nil
}

// Preview перечитывает начало уже собранного артефакта.
func (s *Uploads) Preview(ctx context.Context, sessionID string) (uploadproto.Preview, error) {
	if err := checkSessionID(sessionID); err != nil {
		return uploadproto.Preview{}, err
	}
	return s.Assembler.PreviewArtifact(ctx, sessionID)
}

// Sessions возвращает сессии от самых свежих. Сессии без частей и без артефакта пропускаются.
func (s *Uploads) Sessions(ctx context.Context) ([]models.SessionInfo, error) {
	all, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.SessionInfo, 0, len(all))
	for _, sess := range all {
		keys, err := s.Chunks.ListChunks(ctx, sess.ID)
		if err != nil {
			s.Logger.Warn("list chunks failed", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		if len(keys) == 0 && !sess.HasArtifact {
			continue
		}
		out = append(out, models.SessionInfo{
			SessionID:   sess.ID,
			UpdatedAt:   sess.UpdatedAt,
			HasArtifact: sess.HasArtifact,
			ChunkCount:  len(keys),
		})
	}

	return out, nil
}
