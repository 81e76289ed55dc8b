package transfer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCanceled: загрузка остановлена через Cancel или отменой контекста.
	ErrCanceled = errors.New("upload canceled")
	// ErrIncompleteUpload: не все части загружены (на клиенте или по мнению сервера).
	ErrIncompleteUpload = errors.New("upload incomplete")
	// ErrNothingToResume: нет файла или сессии, которые можно продолжить.
	ErrNothingToResume = errors.New("nothing to resume")
)

// ValidationError — файл не прошёл проверку до начала загрузки. Повторять бессмысленно.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid file: " + e.Reason
}

// SessionError — не удалось открыть сессию; помогает повторный Start.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("open session: %v", e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// TransferFailedError — части, исчерпавшие повторы. Восстанавливается через Resume.
type TransferFailedError struct {
	Indices []int
	Err     error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("chunks %s failed: %v", joinInts(e.Indices), e.Err)
}

func (e *TransferFailedError) Unwrap() error { return e.Err }

// FinalizeError — сервер не собрал файл. Если Missing не пуст, сервер не досчитался
// этих частей, и Resume отправит их заново. Иначе всё загружено и повторять нужно
// только сборку.
type FinalizeError struct {
	Missing []int
	Err     error
}

func (e *FinalizeError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("finalize: server is missing chunks %s: %v", joinInts(e.Missing), e.Err)
	}
	return fmt.Sprintf("finalize: uploaded but not assembled: %v", e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// Is сопоставляет отчёт о пропусках с ErrIncompleteUpload.
func (e *FinalizeError) Is(target error) bool {
	return target == ErrIncompleteUpload && len(e.Missing) > 0
}

// missingReporter реализуют ошибки транспорта, несущие список пропущенных частей.
type missingReporter interface {
	MissingChunks() []int
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
