package uploadhttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// chunkRequest содержит разобранные параметры PUT части.
type chunkRequest struct {
	sessionID string
	idx       int
	total     int
	sha256    string
}

// newChunkRequest парсит идентификаторы из URL и служебные заголовки.
func newChunkRequest(r *http.Request) (*chunkRequest, error) {
	sessionID := chi.URLParam(r, "sessionID")
	idxStr := chi.URLParam(r, "idx")
	if sessionID == "" || idxStr == "" {
		return nil, fmt.Errorf("%w: invalid path", models.ErrInvalidChunk)
	}

	// Индекс части приходит в десятичном виде, отрицательные значения запрещены.
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: invalid chunk index %q", models.ErrInvalidChunk, idxStr)
	}

	totalStr := r.Header.Get(uploadproto.HeaderTotalChunks)
	total, err := strconv.Atoi(totalStr)
	if err != nil || total <= 0 {
		return nil, fmt.Errorf("%w: invalid %s header", models.ErrInvalidChunk, uploadproto.HeaderTotalChunks)
	}

	return &chunkRequest{
		sessionID: sessionID,
		idx:       idx,
		total:     total,
		sha256:    strings.TrimSpace(r.Header.Get(uploadproto.HeaderChecksum)),
	}, nil
}
