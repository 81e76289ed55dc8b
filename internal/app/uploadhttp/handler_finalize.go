package uploadhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/pkg/httperrors"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// finalize собирает загруженные части в итоговый файл и отдаёт превью.
func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	var req uploadproto.FinalizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		httperrors.Write(w, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		httperrors.Write(w, fmt.Errorf("%w: missing sessionId", models.ErrInvalidRequest))
		return
	}

	total := 0
	if req.TotalChunks != nil {
		if *req.TotalChunks <= 0 {
			httperrors.Write(w, fmt.Errorf("%w: totalChunks must be positive", models.ErrInvalidRequest))
			return
		}
		total = *req.TotalChunks
	}

	res, err := s.Uploads.Finalize(r.Context(), req.SessionID, total)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, uploadproto.FinalizeResponse{
		SessionID: req.SessionID,
		Preview:   res.Preview,
	})
}

// finalizedPreview отдаёт превью ранее собранного файла.
func (s *Server) finalizedPreview(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		httperrors.Write(w, fmt.Errorf("%w: missing sessionId", models.ErrInvalidRequest))
		return
	}

	p, err := s.Uploads.Preview(r.Context(), sessionID)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, uploadproto.FinalizeResponse{
		SessionID: sessionID,
		Preview:   p,
	})
}
