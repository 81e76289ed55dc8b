package uploadhttp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/pkg/httperrors"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

const maxJSONBody = 64 << 10

// initSession открывает новую сессию загрузки.
func (s *Server) initSession(w http.ResponseWriter, r *http.Request) {
	var req uploadproto.InitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		httperrors.Write(w, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err))
		return
	}

	sess, err := s.Uploads.Open(r.Context(), req.Filename, req.Size)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusCreated, uploadproto.InitResponse{SessionID: sess.ID})
}
