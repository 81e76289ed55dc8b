package transfer

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// MaxConcurrency ограничивает число воркеров сверху.
const MaxConcurrency = 16

// Config — параметры загрузки.
type Config struct {
	ChunkSize         int64
	MaxFileSize       int64
	Concurrency       int
	MaxRetries        int
	RetryBaseDelay    time.Duration
	AllowedExtensions []string
	// AllowedMediaTypes сравниваются по префиксу с типом, определённым по первым байтам файла.
	AllowedMediaTypes []string
}

// DefaultConfig возвращает параметры по умолчанию: части по 1 MiB, файл до 100 MiB,
// 3 воркера, 2 повтора с базовой задержкой 250ms, только .csv с текстовым содержимым.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         1 << 20,
		MaxFileSize:       100 << 20,
		Concurrency:       3,
		MaxRetries:        2,
		RetryBaseDelay:    250 * time.Millisecond,
		AllowedExtensions: []string{".csv"},
		AllowedMediaTypes: []string{"text/"},
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = def.MaxFileSize
	}
	c.Concurrency = max(1, min(c.Concurrency, MaxConcurrency))
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	return c
}

const sniffLen = 512

// validate проверяет файл до открытия сессии.
func (c Config) validate(f File) error {
	if f == nil || f.Size() <= 0 {
		return &ValidationError{Reason: "file is empty"}
	}
	if f.Size() > c.MaxFileSize {
		return &ValidationError{Reason: fmt.Sprintf("file is %d bytes, limit is %d", f.Size(), c.MaxFileSize)}
	}

	if len(c.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if !containsFold(c.AllowedExtensions, ext) {
			return &ValidationError{Reason: fmt.Sprintf("unsupported extension %q", ext)}
		}
	}

	if len(c.AllowedMediaTypes) > 0 {
		head := make([]byte, min(int64(sniffLen), f.Size()))
		n, err := f.ReadAt(head, 0)
		if n < len(head) && err != nil {
			return &ValidationError{Reason: fmt.Sprintf("read file: %v", err)}
		}
		mt := http.DetectContentType(head[:n])
		ok := false
		for _, prefix := range c.AllowedMediaTypes {
			if strings.HasPrefix(mt, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			return &ValidationError{Reason: fmt.Sprintf("unsupported content type %q", mt)}
		}
	}

	return nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
