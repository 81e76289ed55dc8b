package uploadsvc

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweep удаляет несобранные сессии, которые не обновлялись дольше ttl.
// Возвращает число удалённых сессий.
func (s *Uploads) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	all, err := s.Repo.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0
	for _, sess := range all {
		if sess.HasArtifact || now.Sub(sess.UpdatedAt) < ttl {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if s.sweepOne(ctx, sess.ID, now, ttl) {
			removed++
		}
	}

	if removed > 0 {
		s.Logger.Info("gc: stale sessions removed", zap.Int("count", removed))
	}
	return removed, nil
}

// sweepOne перепроверяет сессию под её мьютексом: пока шёл листинг, её могли
// дозагрузить или собрать.
func (s *Uploads) sweepOne(ctx context.Context, id string, now time.Time, ttl time.Duration) bool {
	unlock := s.lockSession(id)
	defer unlock()

	sess, err := s.Repo.Get(ctx, id)
	if err != nil || sess.HasArtifact || now.Sub(sess.UpdatedAt) < ttl {
		return false
	}

	if err := s.Chunks.DeleteSession(ctx, id); err != nil {
		s.Logger.Warn("gc: delete chunks failed", zap.String("session_id", id), zap.Error(err))
		return false
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		s.Logger.Warn("gc: delete session failed", zap.String("session_id", id), zap.Error(err))
		return false
	}
	return true
}
