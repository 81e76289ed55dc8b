package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	// в каталоге пакета нет config.yaml
	t.Setenv("CONFIG_PATH", "")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, MiB, c.Upload.ChunkSize)
	require.Equal(t, 100*MiB, c.Upload.MaxFileSize)
	require.Equal(t, 3, c.Upload.MaxConcurrency)
	require.Equal(t, 2, c.Upload.MaxRetries)
	require.Equal(t, 200, c.Preview.MaxLines)
	require.Equal(t, 100, c.Preview.MaxRows)
	require.Equal(t, MiB, c.Preview.MaxBytes)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
listen_addr: ":9000"
meta_dsn: "memory://"
storage:
  backend: memory
upload:
  chunk_size: 512KiB
  max_file_size: 10MB
  retry_base_delay: 10ms
gc:
  ttl: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LISTEN_ADDR", ":9100")
	t.Setenv("MAX_CHUNK_BYTES", "2MiB")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9100", c.ListenAddr)
	require.Equal(t, "memory://", c.MetaDSN)
	require.Equal(t, "memory", c.Storage.Backend)
	require.Equal(t, 512*KiB, c.Upload.ChunkSize)
	require.Equal(t, ByteSize(10_000_000), c.Upload.MaxFileSize)
	require.Equal(t, 2*MiB, c.Upload.MaxChunkBytes)
	require.Equal(t, 10*time.Millisecond, c.Upload.RetryBaseDelay)
	require.Equal(t, 48*time.Hour, c.GC.TTL)
	// не указанное в файле остаётся по умолчанию
	require.Equal(t, 3, c.Upload.MaxConcurrency)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]ByteSize{
		"1024":   1024,
		"1KiB":   1024,
		"1MiB":   MiB,
		"1.5MiB": MiB + MiB/2,
		"100MB":  100_000_000,
		"2 gib":  2 * GiB,
	}
	for in, want := range cases {
		got, err := ParseByteSize(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "10XB", "-5"} {
		_, err := ParseByteSize(bad)
		require.Error(t, err, bad)
	}
}
