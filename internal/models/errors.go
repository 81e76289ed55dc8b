package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrFileTooLarge     = errors.New("file exceeds size limit")
	ErrChunkTooLarge    = errors.New("chunk exceeds size limit")
	ErrSessionNotFound  = errors.New("upload session not found")
	ErrInvalidSession   = errors.New("invalid upload session")
	ErrInvalidChunk     = errors.New("invalid chunk")
	ErrSessionTooLarge  = errors.New("session exceeds declared size")
	ErrChecksumMismatch = errors.New("sha256 mismatch")
	ErrNoChunks         = errors.New("no chunks found")
	ErrMissingChunks    = errors.New("missing chunks")
	ErrAssembly         = errors.New("uploaded but not assembled")
)

// MaxReportedMissing ограничивает число индексов, возвращаемых клиенту в ошибке о пропусках.
const MaxReportedMissing = 25

// MissingChunksError сообщает, каких частей не хватает для сборки.
// Missing содержит не более MaxReportedMissing первых индексов; при best-effort проверке
// (без ожидаемого количества) Expected равен нулю.
type MissingChunksError struct {
	Missing  []int
	Received int
	Expected int
}

func (e *MissingChunksError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("missing chunks (%d received, %d expected)", e.Received, e.Expected)
	}
	return "missing chunks (gap detected), cannot assemble reliably"
}

// Is позволяет сравнивать ошибку с ErrMissingChunks через errors.Is.
func (e *MissingChunksError) Is(target error) bool {
	return target == ErrMissingChunks
}
