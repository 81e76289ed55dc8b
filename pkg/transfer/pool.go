package transfer

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runPool раздаёт индексы из очереди concurrency воркерам через общий курсор.
// Каждый индекс берётся ровно один раз. После первой окончательной ошибки новые
// индексы не выдаются, но начатые передачи доводятся до конца. Группа без общего
// контекста: ошибка одной части не обрывает соседние.
func runPool(ctx context.Context, queue []int, concurrency int, fn func(ctx context.Context, index int) error) error {
	var (
		mu       sync.Mutex
		next     int
		stopped  bool
		canceled bool
		failed   []int
		firstErr error
	)

	claim := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if stopped || ctx.Err() != nil || next >= len(queue) {
			return 0, false
		}
		idx := queue[next]
		next++
		return idx, true
	}

	var g errgroup.Group
	for w := 0; w < min(concurrency, len(queue)); w++ {
		g.Go(func() error {
			for {
				idx, ok := claim()
				if !ok {
					return nil
				}
				err := fn(ctx, idx)
				if err == nil {
					continue
				}

				mu.Lock()
				if errors.Is(err, ErrCanceled) {
					canceled = true
				} else {
					failed = append(failed, idx)
					stopped = true
					if firstErr == nil {
						firstErr = err
					}
				}
				mu.Unlock()
			}
		})
	}
	_ = g.Wait()

	if canceled || ctx.Err() != nil {
		return ErrCanceled
	}
	if len(failed) > 0 {
		sort.Ints(failed)
		return &TransferFailedError{Indices: failed, Err: firstErr}
	}
	return nil
}
