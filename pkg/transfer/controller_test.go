package transfer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// fakeAPI хранит части в памяти и собирает их при Finalize.
type fakeAPI struct {
	mu           sync.Mutex
	opened       int
	openErr      error
	attempts     map[int]int
	stored       map[int][]byte
	fail         map[int]bool
	hook         func(ctx context.Context, idx int) error
	finalizeErrs []error
	finalized    int
	artifact     []byte
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{attempts: map[int]int{}, stored: map[int][]byte{}, fail: map[int]bool{}}
}

func (f *fakeAPI) OpenSession(_ context.Context, _ string, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.openErr != nil {
		return "", f.openErr
	}
	return "sid-1", nil
}

func (f *fakeAPI) UploadChunk(ctx context.Context, _ string, idx, _ int, data []byte) error {
	f.mu.Lock()
	f.attempts[idx]++
	hook := f.hook
	fail := f.fail[idx]
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, idx); err != nil {
			return err
		}
	}
	if fail {
		return errors.New("server returned 503")
	}

	f.mu.Lock()
	f.stored[idx] = append([]byte(nil), data...)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) Finalize(_ context.Context, _ string, total int) (uploadproto.Preview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized++
	if len(f.finalizeErrs) > 0 {
		err := f.finalizeErrs[0]
		f.finalizeErrs = f.finalizeErrs[1:]
		if err != nil {
			return uploadproto.Preview{}, err
		}
	}

	var buf bytes.Buffer
	for i := 0; i < total; i++ {
		b, ok := f.stored[i]
		if !ok {
			return uploadproto.Preview{}, &uploadproto.StatusError{
				StatusCode:    http.StatusConflict,
				ErrorResponse: uploadproto.ErrorResponse{Error: "missing chunks", Missing: []int{i}},
			}
		}
		buf.Write(b)
	}
	f.artifact = buf.Bytes()

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	return uploadproto.Preview{Columns: strings.Split(header, ",")}, nil
}

func (f *fakeAPI) attemptsFor(idx int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[idx]
}

const csvBody = "id,name\n1,alice\n2,bob\n3,carol\n"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkSize = 8
	cfg.Concurrency = 1
	return cfg
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestController_HappyPathPhases(t *testing.T) {
	api := newFakeAPI()
	var (
		mu     sync.Mutex
		phases []Phase
	)
	observer := func(s State) {
		mu.Lock()
		defer mu.Unlock()
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
	}

	cfg := testConfig()
	cfg.Concurrency = 3
	c := New(api, cfg, WithObserver(observer), WithSleep(noSleep))
	require.NoError(t, c.Start(context.Background(), BytesFile("people.csv", []byte(csvBody))))

	require.Equal(t, []Phase{PhaseValidating, PhaseInitializing, PhaseUploading, PhaseFinalizing, PhaseDone}, phases)

	st := c.State()
	require.Equal(t, "sid-1", st.SessionID)
	require.Equal(t, int64(len(csvBody)), st.UploadedBytes)
	require.Equal(t, 1.0, st.Progress())
	require.Equal(t, len(st.Chunks), st.Count(StatusUploaded))
	require.NotNil(t, st.Preview)
	require.Equal(t, []string{"id", "name"}, st.Preview.Columns)
	require.Equal(t, csvBody, string(api.artifact))
}

func TestController_ResumeUploadsOnlyFailedChunk(t *testing.T) {
	api := newFakeAPI()
	api.fail[2] = true

	c := New(api, testConfig(), WithSleep(noSleep))
	file := BytesFile("people.csv", []byte(csvBody))

	err := c.Start(context.Background(), file)
	var tf *TransferFailedError
	require.True(t, errors.As(err, &tf))
	require.Equal(t, []int{2}, tf.Indices)
	require.Equal(t, 3, api.attemptsFor(2))

	st := c.State()
	require.Equal(t, PhaseError, st.Phase)
	require.Equal(t, HintResume, st.Hint)
	require.Equal(t, StatusFailed, st.Chunks[2])
	require.Equal(t, int64(16), st.UploadedBytes)
	// после отказа новые части не выдаются
	require.Equal(t, StatusPending, st.Chunks[3])
	require.Zero(t, api.attemptsFor(3))

	api.mu.Lock()
	api.fail[2] = false
	api.mu.Unlock()

	require.NoError(t, c.Resume(context.Background()))
	require.Equal(t, 1, api.attemptsFor(0))
	require.Equal(t, 1, api.attemptsFor(1))
	require.Equal(t, 4, api.attemptsFor(2))
	require.Equal(t, 1, api.opened)

	st = c.State()
	require.Equal(t, PhaseDone, st.Phase)
	require.Equal(t, st.TotalBytes, st.UploadedBytes)
	require.Equal(t, csvBody, string(api.artifact))
}

func TestController_CancelKeepsUploadedChunks(t *testing.T) {
	api := newFakeAPI()
	started := make(chan struct{}, 1)
	api.hook = func(ctx context.Context, idx int) error {
		if idx != 2 {
			return nil
		}
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	c := New(api, testConfig(), WithSleep(noSleep))
	go func() {
		<-started
		c.Cancel()
	}()

	err := c.Start(context.Background(), BytesFile("people.csv", []byte(csvBody)))
	require.ErrorIs(t, err, ErrCanceled)

	st := c.State()
	require.Equal(t, PhaseCanceled, st.Phase)
	require.Equal(t, "sid-1", st.SessionID)
	require.Equal(t, []ChunkStatus{StatusUploaded, StatusUploaded, StatusPending, StatusPending}, st.Chunks)
	require.Equal(t, int64(16), st.UploadedBytes)
	require.Equal(t, 1, api.attemptsFor(2))

	api.mu.Lock()
	api.hook = nil
	api.mu.Unlock()

	require.NoError(t, c.Resume(context.Background()))
	require.Equal(t, 1, api.attemptsFor(0))
	require.Equal(t, 1, api.attemptsFor(1))
	require.Equal(t, 2, api.attemptsFor(2))
	require.Equal(t, 1, api.attemptsFor(3))
	require.Equal(t, PhaseDone, c.State().Phase)
}

func TestController_ValidationErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 64

	for name, file := range map[string]File{
		"empty":     BytesFile("a.csv", nil),
		"too large": BytesFile("a.csv", bytes.Repeat([]byte("a,b\n"), 20)),
		"extension": BytesFile("a.xlsx", []byte(csvBody)),
		"binary":    BytesFile("a.csv", []byte{0x00, 0x01, 0x02, 0xff, 0xfe}),
	} {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI()
			c := New(api, cfg)

			err := c.Start(context.Background(), file)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			require.Zero(t, api.opened)
			require.Equal(t, PhaseError, c.State().Phase)
			require.ErrorIs(t, c.Resume(context.Background()), ErrNothingToResume)
		})
	}
}

func TestController_SessionError(t *testing.T) {
	api := newFakeAPI()
	api.openErr = errors.New("dial tcp: connection refused")

	c := New(api, testConfig())
	err := c.Start(context.Background(), BytesFile("people.csv", []byte(csvBody)))

	var se *SessionError
	require.True(t, errors.As(err, &se))
	st := c.State()
	require.Equal(t, PhaseError, st.Phase)
	require.Equal(t, HintRestart, st.Hint)
}

func TestController_FinalizeMissingFlipsChunksToFailed(t *testing.T) {
	api := newFakeAPI()
	api.finalizeErrs = []error{&uploadproto.StatusError{
		StatusCode:    http.StatusConflict,
		ErrorResponse: uploadproto.ErrorResponse{Error: "missing chunks", Missing: []int{1}},
	}}

	c := New(api, testConfig(), WithSleep(noSleep))
	err := c.Start(context.Background(), BytesFile("people.csv", []byte(csvBody)))
	require.ErrorIs(t, err, ErrIncompleteUpload)

	var fe *FinalizeError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, []int{1}, fe.Missing)

	st := c.State()
	require.Equal(t, StatusFailed, st.Chunks[1])
	require.Equal(t, HintResumeMissing, st.Hint)
	require.Equal(t, st.TotalBytes-8, st.UploadedBytes)

	require.NoError(t, c.Resume(context.Background()))
	require.Equal(t, 2, api.attemptsFor(1))
	require.Equal(t, 1, api.attemptsFor(0))
	require.Equal(t, 2, api.finalized)
}

func TestController_FinalizeFailureRetriesFinalizeOnly(t *testing.T) {
	api := newFakeAPI()
	api.finalizeErrs = []error{&uploadproto.StatusError{
		StatusCode:    http.StatusInternalServerError,
		ErrorResponse: uploadproto.ErrorResponse{Error: "uploaded but not assembled"},
	}}

	c := New(api, testConfig(), WithSleep(noSleep))
	err := c.Start(context.Background(), BytesFile("people.csv", []byte(csvBody)))

	var fe *FinalizeError
	require.True(t, errors.As(err, &fe))
	require.Empty(t, fe.Missing)
	require.False(t, errors.Is(err, ErrIncompleteUpload))

	st := c.State()
	require.Equal(t, HintRetryFinalize, st.Hint)
	require.Equal(t, len(st.Chunks), st.Count(StatusUploaded))

	require.NoError(t, c.Resume(context.Background()))
	for i := range st.Chunks {
		require.Equal(t, 1, api.attemptsFor(i))
	}
	require.Equal(t, 2, api.finalized)
	require.Equal(t, PhaseDone, c.State().Phase)
}

func TestController_ResetClearsEverything(t *testing.T) {
	api := newFakeAPI()
	api.fail[0] = true

	c := New(api, testConfig(), WithSleep(noSleep))
	require.Error(t, c.Start(context.Background(), BytesFile("people.csv", []byte(csvBody))))

	c.Reset()
	st := c.State()
	require.Equal(t, PhaseIdle, st.Phase)
	require.Empty(t, st.SessionID)
	require.Empty(t, st.Chunks)
	require.Nil(t, st.Err)
	require.ErrorIs(t, c.Resume(context.Background()), ErrNothingToResume)
}

func TestController_ParentContextCancel(t *testing.T) {
	api := newFakeAPI()
	ctx, cancel := context.WithCancel(context.Background())
	api.hook = func(hctx context.Context, idx int) error {
		if idx == 1 {
			cancel()
			<-hctx.Done()
			return hctx.Err()
		}
		return nil
	}

	c := New(api, testConfig(), WithSleep(noSleep))
	err := c.Start(ctx, BytesFile("people.csv", []byte(csvBody)))
	require.ErrorIs(t, err, ErrCanceled)
	require.Equal(t, PhaseCanceled, c.State().Phase)
	require.Equal(t, StatusUploaded, c.State().Chunks[0])
}
