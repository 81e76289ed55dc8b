// Package httperrors переводит доменные ошибки в HTTP-статусы и JSON-тело ErrorResponse.
package httperrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sir_venger/chunkload/internal/models"
	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

// Status возвращает HTTP-статус для ошибки.
func Status(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, models.ErrInvalidSession),
		errors.Is(err, models.ErrInvalidChunk):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrMissingChunks), errors.Is(err, models.ErrNoChunks):
		return http.StatusConflict
	case errors.Is(err, models.ErrFileTooLarge),
		errors.Is(err, models.ErrChunkTooLarge),
		errors.Is(err, models.ErrSessionTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrChecksumMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Write пишет ошибку клиенту. Для пропущенных частей в тело попадают их индексы.
func Write(w http.ResponseWriter, err error) {
	resp := uploadproto.ErrorResponse{Error: err.Error()}

	var missing *models.MissingChunksError
	if errors.As(err, &missing) {
		resp.Missing = missing.Missing
	}

	WriteJSON(w, Status(err), resp)
}

// WriteJSON кодирует v в тело ответа с указанным статусом.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
