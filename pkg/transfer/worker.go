package transfer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// worker отправляет одну часть с повторами.
type worker struct {
	api        API
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

// backoff растёт квадратично: base, 4*base, 9*base...
func (w *worker) backoff(attempt int) time.Duration {
	n := time.Duration(attempt + 1)
	return w.baseDelay * n * n
}

// upload делает до maxRetries+1 попыток. Отмена контекста не повторяется и
// возвращается как ErrCanceled; иначе возвращается ошибка последней попытки.
func (w *worker) upload(ctx context.Context, sessionID string, index, total int, data []byte) error {
	attempts := w.maxRetries + 1

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ErrCanceled
		}

		err := w.api.UploadChunk(ctx, sessionID, index, total, data)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return ErrCanceled
		}
		last = err

		if attempt == attempts-1 {
			break
		}
		delay := w.backoff(attempt)
		w.logger.Debug("chunk upload failed, retrying",
			zap.Int("index", index),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := w.sleep(ctx, delay); err != nil {
			return ErrCanceled
		}
	}

	w.logger.Warn("chunk upload gave up", zap.Int("index", index), zap.Int("attempts", attempts), zap.Error(last))
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
