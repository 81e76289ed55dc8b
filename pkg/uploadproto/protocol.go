// Package uploadproto описывает протокол HTTP-взаимодействия клиента загрузки с сервером:
// пути, служебные заголовки и JSON-тела запросов/ответов.
package uploadproto

import (
	"fmt"
	"time"
)

// Параметры REST-протокола загрузки частями.
const (
	InitPath        = "/api/upload/init"
	ChunkPathFormat = "%s/api/upload/%s/chunks/%d"
	FinalizePath    = "/api/upload/finalize"
	SessionsPath    = "/api/upload/sessions"

	HeaderTotalChunks = "X-Total-Chunks"
	HeaderChecksum    = "X-Checksum-Sha256"
	HeaderRequestID   = "X-Request-Id"
)

// InitRequest: тело запроса на открытие сессии.
type InitRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// InitResponse возвращает идентификатор, выданный сервером.
type InitResponse struct {
	SessionID string `json:"sessionId"`
}

// FinalizeRequest — запрос на сборку. TotalChunks необязателен, но без него сервер
// проверяет только пропуски до максимального наблюдаемого индекса.
type FinalizeRequest struct {
	SessionID   string `json:"sessionId"`
	TotalChunks *int   `json:"totalChunks,omitempty"`
}

// FinalizeResponse возвращается после успешной сборки.
type FinalizeResponse struct {
	SessionID string  `json:"sessionId"`
	Preview   Preview `json:"preview"`
}

// ErrorResponse — тело любого неуспешного ответа API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Missing []int  `json:"missing,omitempty"`
}

// SessionInfo описывает одну сессию в листинге.
type SessionInfo struct {
	SessionID   string    `json:"sessionId"`
	UpdatedAt   time.Time `json:"updatedAt"`
	HasArtifact bool      `json:"hasArtifact"`
	ChunkCount  int       `json:"chunkCount"`
}

// SessionsResponse содержит листинг, отсортированный от самых свежих.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// StatusError — неуспешный HTTP-ответ сервера с разобранным телом.
type StatusError struct {
	StatusCode int
	ErrorResponse
}

func (e *StatusError) Error() string {
	if e.ErrorResponse.Error == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.ErrorResponse.Error)
}

// MissingChunks возвращает индексы частей, которых не хватило серверу для сборки.
func (e *StatusError) MissingChunks() []int {
	return e.Missing
}
