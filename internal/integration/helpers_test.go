package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sir_venger/chunkload/internal/app/uploadhttp"
	"github.com/sir_venger/chunkload/internal/chunkstore"
	"github.com/sir_venger/chunkload/internal/config"
	meta "github.com/sir_venger/chunkload/internal/repo"
	"github.com/sir_venger/chunkload/internal/usecase/assembly"
	"github.com/sir_venger/chunkload/internal/usecase/uploadsvc"
)

type stack struct {
	dataDir string
	chunks  *chunkstore.DiskStore
	repo    *meta.FileStore
	svc     *uploadsvc.Uploads
	server  *httptest.Server
	clock   *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newStack поднимает сервер на диске во временном каталоге: части и session.json
// лежат в одном каталоге сессии.
func newStack(t *testing.T, wrap func(h http.Handler) http.Handler) *stack {
	t.Helper()

	cfg := config.Default()
	st := &stack{dataDir: t.TempDir(), clock: &clock{now: time.Now().UTC()}}

	var err error
	if st.chunks, err = chunkstore.NewDiskStore(st.dataDir); err != nil {
		t.Fatal(err)
	}
	if st.repo, err = meta.NewFileStore(st.dataDir); err != nil {
		t.Fatal(err)
	}

	st.svc = uploadsvc.New(uploadsvc.Deps{
		Repo:      st.repo,
		Chunks:    st.chunks,
		Assembler: assembly.New(st.chunks, cfg.Preview, nil),
		Limits:    cfg.Upload,
		Now:       st.clock.Now,
	})

	var h http.Handler = uploadhttp.New(&uploadhttp.Server{
		Uploads: st.svc,
		Checks:  map[string]uploadhttp.Checker{"chunks": st.chunks, "meta": st.repo},
		Cfg:     cfg,
	})
	if wrap != nil {
		h = wrap(h)
	}
	st.server = httptest.NewServer(h)
	t.Cleanup(st.server.Close)

	return st
}

// makeCSV строит CSV ровно из size байт; последняя строка может оборваться.
func makeCSV(size int) []byte {
	var b strings.Builder
	b.WriteString("id,name,score\n")
	for i := 0; b.Len() < size; i++ {
		fmt.Fprintf(&b, "%d,name-%d,%d\n", i, i, i%100)
	}
	return []byte(b.String()[:size])
}
