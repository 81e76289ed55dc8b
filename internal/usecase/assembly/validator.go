// Package assembly проверяет полноту набора частей сессии и собирает из них итоговый файл.
//
// Хранилище отдаёт ключи в лексическом порядке ("chunk-10.bin" раньше "chunk-2.bin"),
// поэтому валидатор всегда сортирует по числовому индексу перед склейкой.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/chunkload/internal/chunkstore"
	"github.com/sir_venger/chunkload/internal/config"
	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/internal/preview"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// Result — итог успешной сборки.
type Result struct {
	Chunks  int
	Bytes   int64
	Preview uploadproto.Preview
}

// Validator собирает артефакт сессии из частей в хранилище.
type Validator struct {
	store    chunkstore.Store
	logger   *zap.Logger
	maxLines int
	maxRows  int
	maxBytes int64
}

// New создаёт валидатор. Нулевые лимиты превью заменяются значениями по умолчанию.
func New(store chunkstore.Store, cfg config.PreviewConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := config.Default().Preview
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = def.MaxLines
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = def.MaxRows
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}

	return &Validator{
		store:    store,
		logger:   logger.Named("assembly"),
		maxLines: cfg.MaxLines,
		maxRows:  cfg.MaxRows,
		maxBytes: cfg.MaxBytes.Int64(),
	}
}

// Finalize проверяет набор частей и пишет собранный файл.
//
// expectedTotal > 0 требует ровно индексы 0..expectedTotal-1; части с большими индексами
// в склейку не попадают. При expectedTotal == 0 проверяются только пропуски до
// максимального наблюдаемого индекса: отсутствующие хвостовые части так не обнаружить.
// Повторный вызов пересобирает артефакт из тех же частей.
func (v *Validator) Finalize(ctx context.Context, sessionID string, expectedTotal int) (Result, error) {
	keys, err := v.store.ListChunks(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	indices := sortedIndices(keys)
	if len(indices) == 0 {
		return Result{}, models.ErrNoChunks
	}

	var order []int
	if expectedTotal > 0 {
		present := make(map[int]struct{}, len(indices))
		for _, i := range indices {
			present[i] = struct{}{}
		}
		var missing []int
		received := 0
		for i := 0; i < expectedTotal; i++ {
			if _, ok := present[i]; !ok {
				missing = appendCapped(missing, i)
				continue
			}
			received++
		}
		if len(missing) > 0 {
			return Result{}, &models.MissingChunksError{Missing: missing, Received: received, Expected: expectedTotal}
		}
		order = make([]int, expectedTotal)
		for i := range order {
			order[i] = i
		}
	} else {
		v.logger.Warn("finalize without expected total, only gaps are checked",
			zap.String("session_id", sessionID))

		var missing []int
		next := 0
		for _, idx := range indices {
			for ; next < idx; next++ {
				missing = appendCapped(missing, next)
			}
			next = idx + 1
		}
		if len(missing) > 0 {
			return Result{}, &models.MissingChunksError{Missing: missing, Received: len(indices)}
		}
		order = indices
	}

	capture := preview.NewLineCapture(v.maxLines, int(v.maxBytes))
	n, err := v.assemble(ctx, sessionID, order, capture)
	if err != nil {
		v.logger.Error("assembly failed", zap.String("session_id", sessionID), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", models.ErrAssembly, err)
	}

	v.logger.Info("session assembled",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(order)),
		zap.Int64("bytes", n))

	return Result{
		Chunks:  len(order),
		Bytes:   n,
		Preview: preview.Parse(capture.String(), v.maxRows),
	}, nil
}

// assemble читает части по одной в заданном порядке и передаёт поток в WriteArtifact.
// Целиком файл в памяти не держится; первые строки копируются в capture.
func (v *Validator) assemble(ctx context.Context, sessionID string, order []int, capture io.Writer) (int64, error) {
	pr, pw := io.Pipe()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for _, idx := range order {
			if err := v.copyChunk(egCtx, pw, sessionID, idx); err != nil {
				_ = pw.CloseWithError(err)
				return err
			}
		}
		return pw.Close()
	})

	n, err := v.store.WriteArtifact(ctx, sessionID, io.TeeReader(pr, capture))
	// разблокирует писателя, если WriteArtifact вышел раньше конца потока
	_ = pr.CloseWithError(errArtifactClosed)

	waitErr := eg.Wait()
	if err != nil {
		return 0, err
	}
	if waitErr != nil && !errors.Is(waitErr, errArtifactClosed) {
		return 0, waitErr
	}

	return n, nil
}

var errArtifactClosed = errors.New("artifact writer closed")

func (v *Validator) copyChunk(ctx context.Context, w io.Writer, sessionID string, idx int) error {
	rc, err := v.store.ReadChunk(ctx, sessionID, idx)
	if err != nil {
		return fmt.Errorf("read chunk %d: %w", idx, err)
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy chunk %d: %w", idx, err)
	}
	return nil
}

// PreviewArtifact строит превью уже собранного файла, читая не больше maxBytes с начала.
func (v *Validator) PreviewArtifact(ctx context.Context, sessionID string) (uploadproto.Preview, error) {
	rc, err := v.store.OpenArtifact(ctx, sessionID)
	if err != nil {
		return uploadproto.Preview{}, err
	}
	defer rc.Close()

	capture := preview.NewLineCapture(v.maxLines, int(v.maxBytes))
	if _, err := io.Copy(capture, io.LimitReader(rc, v.maxBytes)); err != nil {
		return uploadproto.Preview{}, err
	}

	return preview.Parse(capture.String(), v.maxRows), nil
}

// sortedIndices разбирает ключи частей в отсортированные по возрастанию уникальные индексы.
func sortedIndices(keys []chunkstore.Key) []int {
	seen := make(map[int]struct{}, len(keys))
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		idx, ok := models.ParseChunkIndex(k.Name)
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func appendCapped(missing []int, idx int) []int {
	if len(missing) >= models.MaxReportedMissing {
		return missing
	}
	return append(missing, idx)
}
