package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// API — серверная сторона протокола, как её видит Controller.
type API interface {
	OpenSession(ctx context.Context, filename string, size int64) (string, error)
	UploadChunk(ctx context.Context, sessionID string, index, total int, data []byte) error
	Finalize(ctx context.Context, sessionID string, totalChunks int) (uploadproto.Preview, error)
}

// Option настраивает Controller.
type Option func(*Controller)

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver подписывает fn на изменения состояния. fn вызывается последовательно,
// из горутин загрузки; внутри него нельзя вызывать Start, Resume и Reset.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithSleep подменяет ожидание между повторами.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// Controller ведёт одну логическую загрузку файла. Start и Resume блокируются до
// конца прогона; Cancel и Reset можно вызывать из любой горутины.
type Controller struct {
	api      API
	cfg      Config
	logger   *zap.Logger
	observer func(State)
	sleep    func(ctx context.Context, d time.Duration) error

	// runMu сериализует прогоны: новый ждёт, пока воркеры прежнего не завершатся.
	runMu    sync.Mutex
	notifyMu sync.Mutex

	mu     sync.Mutex
	state  State
	file   File
	plan   *Plan
	runID  uint64
	cancel context.CancelFunc
}

// New создаёт контроллер поверх api.
func New(api API, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		cfg:    cfg.normalized(),
		logger: zap.NewNop(),
		sleep:  sleepCtx,
		state:  State{Phase: PhaseIdle, CurrentChunk: -1},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State возвращает копию текущего состояния.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Start загружает file с нуля, отменяя предыдущую загрузку, если она идёт.
func (c *Controller) Start(ctx context.Context, file File) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.runMu.Lock()
	defer c.runMu.Unlock()

	runCtx, id := c.beginRun(ctx, func() {
		c.file = file
		c.plan = nil
		c.state = State{Phase: PhaseValidating, CurrentChunk: -1}
		if file != nil {
			c.state.FileName = file.Name()
			c.state.TotalBytes = file.Size()
		}
	})
	defer c.endRun(id)

	if err := c.cfg.validate(file); err != nil {
		c.fail(id, err, HintChooseFile)
		return err
	}

	c.update(id, func(s *State) { s.Phase = PhaseInitializing })
	sid, err := c.api.OpenSession(runCtx, file.Name(), file.Size())
	if err != nil {
		if runCtx.Err() != nil {
			c.markCanceled(id)
			return ErrCanceled
		}
		err = &SessionError{Err: err}
		c.fail(id, err, HintRestart)
		return err
	}

	plan := NewPlan(file.Size(), c.cfg.ChunkSize)
	c.mu.Lock()
	if c.runID == id {
		c.plan = &plan
		c.state.SessionID = sid
		c.state.Chunks = make([]ChunkStatus, plan.Len())
		for i := range c.state.Chunks {
			c.state.Chunks[i] = StatusPending
		}
	}
	c.mu.Unlock()

	c.logger.Info("session opened",
		zap.String("session_id", sid),
		zap.String("file", file.Name()),
		zap.Int64("size", file.Size()),
		zap.Int("chunks", plan.Len()))

	return c.drive(runCtx, id)
}

// Resume продолжает загрузку с той же сессией: отправляет части в статусах
// pending и failed, затем собирает файл. Если все части уже загружены,
// сразу повторяет сборку.
func (c *Controller) Resume(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	ready := c.file != nil && c.plan != nil && c.state.SessionID != ""
	done := c.state.Phase == PhaseDone
	c.mu.Unlock()
	if !ready {
		return ErrNothingToResume
	}
	if done {
		return nil
	}

	runCtx, id := c.beginRun(ctx, nil)
	defer c.endRun(id)

	return c.drive(runCtx, id)
}

// Cancel останавливает текущий прогон. Загруженные части, план и сессия сохраняются.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Reset отменяет текущий прогон и забывает файл, сессию и статусы.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.runID++
	c.file = nil
	c.plan = nil
	c.state = State{Phase: PhaseIdle, CurrentChunk: -1}
	c.mu.Unlock()

	c.notify()
}

// beginRun заводит новый прогон со своим контекстом отмены.
func (c *Controller) beginRun(ctx context.Context, init func()) (context.Context, uint64) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.runID++
	id := c.runID
	c.cancel = cancel
	if init != nil {
		init()
	}
	c.mu.Unlock()

	c.notify()
	return runCtx, id
}

func (c *Controller) endRun(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runID == id && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// drive отправляет незагруженные части и собирает файл.
func (c *Controller) drive(ctx context.Context, id uint64) error {
	c.mu.Lock()
	if c.runID != id {
		c.mu.Unlock()
		return ErrCanceled
	}
	file, plan, sid := c.file, *c.plan, c.state.SessionID
	var queue []int
	for i, st := range c.state.Chunks {
		if st != StatusUploaded {
			c.state.Chunks[i] = StatusPending
			queue = append(queue, i)
		}
	}
	c.state.Phase = PhaseUploading
	c.state.Err = nil
	c.state.Hint = ""
	c.mu.Unlock()
	c.notify()

	w := &worker{
		api:        c.api,
		maxRetries: c.cfg.MaxRetries,
		baseDelay:  c.cfg.RetryBaseDelay,
		sleep:      c.sleep,
		logger:     c.logger,
	}
	total := plan.Len()

	err := runPool(ctx, queue, c.cfg.Concurrency, func(ctx context.Context, idx int) error {
		c.setChunk(id, idx, StatusUploading)

		start, end := plan.Range(idx)
		data := make([]byte, end-start)
		if n, err := file.ReadAt(data, start); n < len(data) {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			c.setChunk(id, idx, StatusFailed)
			return fmt.Errorf("read chunk %d: %w", idx, err)
		}

		err := w.upload(ctx, sid, idx, total, data)
		switch {
		case err == nil:
			c.setChunk(id, idx, StatusUploaded)
		case errors.Is(err, ErrCanceled):
			c.setChunk(id, idx, StatusPending)
		default:
			c.setChunk(id, idx, StatusFailed)
		}
		return err
	})
	if errors.Is(err, ErrCanceled) {
		c.markCanceled(id)
		return ErrCanceled
	}
	if err != nil {
		c.fail(id, err, HintResume)
		return err
	}

	st := c.State()
	if st.Count(StatusUploaded) != total {
		err := fmt.Errorf("%w: %d of %d chunks uploaded", ErrIncompleteUpload, st.Count(StatusUploaded), total)
		c.fail(id, err, HintResume)
		return err
	}

	c.update(id, func(s *State) { s.Phase = PhaseFinalizing })
	preview, err := c.api.Finalize(ctx, sid, total)
	if err != nil {
		if ctx.Err() != nil {
			c.markCanceled(id)
			return ErrCanceled
		}
		return c.finalizeFailed(id, err)
	}

	c.update(id, func(s *State) {
		s.Phase = PhaseDone
		s.Preview = &preview
	})
	c.logger.Info("upload finalized", zap.String("session_id", sid), zap.Int("chunks", total))
	return nil
}

// finalizeFailed разбирает отказ сервера. Части, о которых сервер сообщил как о
// пропущенных, помечаются failed, чтобы Resume отправил их снова.
func (c *Controller) finalizeFailed(id uint64, err error) error {
	var mr missingReporter
	if errors.As(err, &mr) && len(mr.MissingChunks()) > 0 {
		missing := mr.MissingChunks()
		c.mu.Lock()
		if c.runID == id {
			for _, idx := range missing {
				if idx >= 0 && idx < len(c.state.Chunks) {
					c.state.Chunks[idx] = StatusFailed
				}
			}
			c.recountLocked()
		}
		c.mu.Unlock()

		ferr := &FinalizeError{Missing: missing, Err: err}
		c.fail(id, ferr, HintResumeMissing)
		return ferr
	}

	ferr := &FinalizeError{Err: err}
	c.fail(id, ferr, HintRetryFinalize)
	return ferr
}

func (c *Controller) setChunk(id uint64, idx int, st ChunkStatus) {
	c.update(id, func(s *State) {
		if idx < 0 || idx >= len(s.Chunks) {
			return
		}
		s.Chunks[idx] = st
		if st == StatusUploading {
			s.CurrentChunk = idx
		}
	})
}

// update применяет fn к состоянию, если прогон id ещё актуален.
func (c *Controller) update(id uint64, fn func(s *State)) {
	c.mu.Lock()
	if c.runID != id {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	c.recountLocked()
	c.mu.Unlock()

	c.notify()
}

// recountLocked пересчитывает загруженные байты по статусам частей.
func (c *Controller) recountLocked() {
	if c.plan == nil {
		c.state.UploadedBytes = 0
		return
	}
	var n int64
	for i, st := range c.state.Chunks {
		if st == StatusUploaded {
			n += c.plan.Length(i)
		}
	}
	c.state.UploadedBytes = n
}

func (c *Controller) fail(id uint64, err error, hint string) {
	c.logger.Warn("upload failed", zap.Error(err))
	c.update(id, func(s *State) {
		s.Phase = PhaseError
		s.Err = err
		s.Hint = hint
	})
}

func (c *Controller) markCanceled(id uint64) {
	c.logger.Info("upload canceled")
	c.update(id, func(s *State) {
		s.Phase = PhaseCanceled
		s.Err = ErrCanceled
		s.Hint = HintResumeCanceled
	})
}

// notify отдаёт наблюдателю свежий снимок. Вызовы сериализуются, поэтому
// наблюдатель видит состояния в порядке их изменения.
func (c *Controller) notify() {
	if c.observer == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.observer(c.State())
}
