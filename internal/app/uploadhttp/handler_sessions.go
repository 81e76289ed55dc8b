package uploadhttp

import (
	"net/http"

	"github.com/sir_venger/chunkload/pkg/httperrors"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.Uploads.Sessions(r.Context())
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	resp := uploadproto.SessionsResponse{Sessions: make([]uploadproto.SessionInfo, 0, len(list))}
	for _, si := range list {
		resp.Sessions = append(resp.Sessions, uploadproto.SessionInfo{
			SessionID:   si.SessionID,
			UpdatedAt:   si.UpdatedAt,
			HasArtifact: si.HasArtifact,
			ChunkCount:  si.ChunkCount,
		})
	}

	httperrors.WriteJSON(w, http.StatusOK, resp)
}

func errorBody(msg string) uploadproto.ErrorResponse {
	return uploadproto.ErrorResponse{Error: msg}
}
