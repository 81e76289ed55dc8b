package uploadhttp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sir_venger/chunkload/internal/chunkstore"
	"github.com/sir_venger/chunkload/internal/config"
	meta "github.com/sir_venger/chunkload/internal/repo"
	"github.com/sir_venger/chunkload/internal/usecase/assembly"
	"github.com/sir_venger/chunkload/internal/usecase/uploadsvc"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	chunks := chunkstore.NewMemoryStore()
	repo := meta.NewMemoryStore()
	svc := uploadsvc.New(uploadsvc.Deps{
		Repo:      repo,
		Chunks:    chunks,
		Assembler: assembly.New(chunks, cfg.Preview, nil),
		Limits:    cfg.Upload,
	})

	ts := httptest.NewServer(New(&Server{
		Uploads: svc,
		Checks:  map[string]Checker{"chunks": chunks, "meta": repo},
		Cfg:     cfg,
	}))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, in, out any) int {
	t.Helper()
	var body bytes.Buffer
	if in != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(in))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func openSession(t *testing.T, ts *httptest.Server, size int64) string {
	t.Helper()
	var out uploadproto.InitResponse
	code := doJSON(t, http.MethodPost, ts.URL+uploadproto.InitPath,
		uploadproto.InitRequest{Filename: "data.csv", Size: size}, &out)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func putChunk(t *testing.T, ts *httptest.Server, sid string, idx, total int, payload []byte, sha string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf(uploadproto.ChunkPathFormat, ts.URL, sid, idx), bytes.NewReader(payload))
	require.NoError(t, err)
	if total > 0 {
		req.Header.Set(uploadproto.HeaderTotalChunks, strconv.Itoa(total))
	}
	if sha != "" {
		req.Header.Set(uploadproto.HeaderChecksum, sha)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func shaHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestAPI_UploadFinalizeAndList(t *testing.T) {
	ts := newTestServer(t, nil)

	parts := [][]byte{[]byte("id,name\n1,al"), []byte("ice\n2,bob\n")}
	sid := openSession(t, ts, int64(len(parts[0])+len(parts[1])))

	// части приходят в обратном порядке
	for i := len(parts) - 1; i >= 0; i-- {
		resp := putChunk(t, ts, sid, i, len(parts), parts[i], shaHex(parts[i]))
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	total := 2
	var fin uploadproto.FinalizeResponse
	code := doJSON(t, http.MethodPost, ts.URL+uploadproto.FinalizePath,
		uploadproto.FinalizeRequest{SessionID: sid, TotalChunks: &total}, &fin)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, sid, fin.SessionID)
	require.Equal(t, []string{"id", "name"}, fin.Preview.Columns)
	require.Len(t, fin.Preview.Rows, 2)
	require.Equal(t, "alice", fin.Preview.Rows[0]["name"])

	var again uploadproto.FinalizeResponse
	code = doJSON(t, http.MethodGet, ts.URL+uploadproto.FinalizePath+"?sessionId="+sid, nil, &again)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, fin.Preview.Columns, again.Preview.Columns)

	var list uploadproto.SessionsResponse
	code = doJSON(t, http.MethodGet, ts.URL+uploadproto.SessionsPath, nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list.Sessions, 1)
	require.Equal(t, sid, list.Sessions[0].SessionID)
	require.True(t, list.Sessions[0].HasArtifact)
	require.Equal(t, 2, list.Sessions[0].ChunkCount)
}

func TestAPI_FinalizeReportsMissing(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := openSession(t, ts, 100)
	for _, i := range []int{0, 1, 3} {
		require.Equal(t, http.StatusNoContent, putChunk(t, ts, sid, i, 4, []byte("x"), "").StatusCode)
	}

	total := 4
	var out uploadproto.ErrorResponse
	code := doJSON(t, http.MethodPost, ts.URL+uploadproto.FinalizePath,
		uploadproto.FinalizeRequest{SessionID: sid, TotalChunks: &total}, &out)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, []int{2}, out.Missing)

	var best uploadproto.ErrorResponse
	code = doJSON(t, http.MethodPost, ts.URL+uploadproto.FinalizePath,
		uploadproto.FinalizeRequest{SessionID: sid}, &best)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, []int{2}, best.Missing)
}

func TestAPI_ChunkErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.MaxChunkBytes = 4
	ts := newTestServer(t, cfg)
	sid := openSession(t, ts, 10)

	require.Equal(t, http.StatusBadRequest, putChunk(t, ts, sid, 0, 0, []byte("ab"), "").StatusCode)
	require.Equal(t, http.StatusBadRequest, putChunk(t, ts, "not-a-uuid", 0, 1, []byte("ab"), "").StatusCode)
	require.Equal(t, http.StatusNotFound,
		putChunk(t, ts, "7f1c2d7e-5b7e-4c63-9a3a-0c1f7a8c2b10", 0, 1, []byte("ab"), "").StatusCode)
	require.Equal(t, http.StatusRequestEntityTooLarge, putChunk(t, ts, sid, 0, 3, []byte("abcdef"), "").StatusCode)
	require.Equal(t, http.StatusUnprocessableEntity, putChunk(t, ts, sid, 0, 3, []byte("ab"), shaHex([]byte("xy"))).StatusCode)
}

func TestAPI_FinalizeValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	var out uploadproto.ErrorResponse
	require.Equal(t, http.StatusBadRequest,
		doJSON(t, http.MethodPost, ts.URL+uploadproto.FinalizePath, uploadproto.FinalizeRequest{}, &out))

	sid := openSession(t, ts, 10)
	require.Equal(t, http.StatusConflict,
		doJSON(t, http.MethodPost, ts.URL+uploadproto.FinalizePath, uploadproto.FinalizeRequest{SessionID: sid}, &out))

	require.Equal(t, http.StatusNotFound,
		doJSON(t, http.MethodGet, ts.URL+uploadproto.FinalizePath+"?sessionId="+sid, nil, &out))
}

func TestAPI_InitValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	var out uploadproto.ErrorResponse
	code := doJSON(t, http.MethodPost, ts.URL+uploadproto.InitPath,
		uploadproto.InitRequest{Filename: "big.csv", Size: 200 << 20}, &out)
	require.Equal(t, http.StatusRequestEntityTooLarge, code)
	require.NotEmpty(t, out.Error)

	code = doJSON(t, http.MethodPost, ts.URL+uploadproto.InitPath,
		uploadproto.InitRequest{Filename: "x.csv", Size: 0}, &out)
	require.Equal(t, http.StatusBadRequest, code)
}

type failingChecker struct{}

func (failingChecker) Ready(context.Context) error { return errors.New("disk unavailable") }

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	var stats healthStats
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/health", nil, &stats))
	require.True(t, stats.OK)

	bad := httptest.NewServer(New(&Server{Checks: map[string]Checker{"chunks": failingChecker{}}}))
	defer bad.Close()
	require.Equal(t, http.StatusServiceUnavailable, doJSON(t, http.MethodGet, bad.URL+"/health", nil, &stats))
	require.False(t, stats.OK)
	require.Equal(t, "disk unavailable", stats.Checks["chunks"])
}

type countingSweeper struct{ calls chan time.Duration }

func (c countingSweeper) Sweep(_ context.Context, ttl time.Duration) (int, error) {
	select {
	case c.calls <- ttl:
	default:
	}
	return 0, nil
}

func TestStartGC_SweepsPeriodically(t *testing.T) {
	sw := countingSweeper{calls: make(chan time.Duration, 1)}
	stop := StartGC(sw, time.Hour, 5*time.Millisecond, nil)
	defer stop()

	select {
	case ttl := <-sw.calls:
		require.Equal(t, time.Hour, ttl)
	case <-time.After(2 * time.Second):
		t.Fatal("gc did not run")
	}
	stop()
	stop()
}

func TestGCOnce(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/admin/gc", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
