package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Session описывает одну попытку загрузки файла, открытую клиентом.
type Session struct {
	ID          string    `json:"session_id"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	TotalChunks int       `json:"total_chunks"`
	HasArtifact bool      `json:"has_artifact"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SessionInfo — краткая сводка по сессии для листинга.
type SessionInfo struct {
	SessionID   string
	UpdatedAt   time.Time
	HasArtifact bool
	ChunkCount  int
}

const (
	chunkNameFormat = "chunk-%d.bin"
	// ArtifactName задаёт имя собранного файла внутри каталога/префикса сессии.
	ArtifactName = "assembled.csv"
)

var chunkNameRe = regexp.MustCompile(`^chunk-(\d+)\.bin$`)

// ChunkName возвращает ключ хранения части с указанным индексом.
func ChunkName(index int) string {
	return fmt.Sprintf(chunkNameFormat, index)
}

// ParseChunkIndex извлекает числовой индекс из ключа части.
// Ключи, не похожие на часть, возвращают false.
func ParseChunkIndex(name string) (int, bool) {
	m := chunkNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ChunkCount считает количество частей размера chunkSize, покрывающих size байт.
func ChunkCount(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}
