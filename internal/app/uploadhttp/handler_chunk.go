package uploadhttp

import (
	"net/http"

	"github.com/sir_venger/chunkload/internal/usecase/uploadsvc"
	"github.com/sir_venger/chunkload/pkg/httperrors"
)

// putChunk принимает одну часть. Тело ограничено max_chunk_bytes, превышение даёт 413.
func (s *Server) putChunk(w http.ResponseWriter, r *http.Request) {
	req, err := newChunkRequest(r)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	limit := s.Cfg.Upload.MaxChunkBytes.Int64()
	if limit > 0 && r.ContentLength > limit {
		httperrors.WriteJSON(w, http.StatusRequestEntityTooLarge, errorBody("chunk exceeds size limit"))
		return
	}

	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}

	err = s.Uploads.PutChunk(r.Context(), uploadsvc.ChunkWrite{
		SessionID:   req.sessionID,
		Index:       req.idx,
		TotalChunks: req.total,
		Body:        body,
		Sha256:      req.sha256,
	})
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
