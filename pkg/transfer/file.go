package transfer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// File — источник загрузки. Части читаются через ReadAt, поэтому воркеры
// не делят между собой позицию чтения.
type File interface {
	Name() string
	Size() int64
	io.ReaderAt
}

// LocalFile: открытый файл на диске.
type LocalFile struct {
	f    *os.File
	name string
	size int64
}

// OpenFile открывает файл для загрузки. Закрыть его должен вызывающий.
func OpenFile(path string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &LocalFile{f: f, name: filepath.Base(path), size: st.Size()}, nil
}

func (l *LocalFile) Name() string { return l.name }
func (l *LocalFile) Size() int64 { return l.size }

func (l *LocalFile) ReadAt(p []byte, off int64) (int, error) {
	return l.f.ReadAt(p, off)
}

func (l *LocalFile) Close() error { return l.f.Close() }

type bytesFile struct {
	*bytes.Reader
	name string
}

// BytesFile оборачивает срез байт в File.
func BytesFile(name string, b []byte) File {
	return &bytesFile{Reader: bytes.NewReader(b), name: name}
}

func (b *bytesFile) Name() string { return b.name }
