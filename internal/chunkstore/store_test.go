package chunkstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sir_venger/chunkload/internal/models"
)

const sid = "3f0c9a52-8d44-4a8e-9d0e-7c1d2b8a4f10"

func backends(t *testing.T) map[string]Store {
	disk, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	return map[string]Store{
		"disk":   disk,
		"memory": NewMemoryStore(),
		"s3":     newS3Store(newFakeS3(), nil, "bucket", "test/", nil),
	}
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestStore_OverwriteKeepsSecondPayload(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.WriteChunk(ctx, sid, 0, strings.NewReader("first payload"))
			require.NoError(t, err)
			n, err := st.WriteChunk(ctx, sid, 0, strings.NewReader("second"))
			require.NoError(t, err)
			require.EqualValues(t, 6, n)

			rc, err := st.ReadChunk(ctx, sid, 0)
			require.NoError(t, err)
			require.Equal(t, "second", string(readAll(t, rc)))

			keys, err := st.ListChunks(ctx, sid)
			require.NoError(t, err)
			require.Equal(t, []Key{{Name: "chunk-0.bin", Size: 6}}, keys)
		})
	}
}

func TestStore_ListingIsNotNumericOrder(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, idx := range []int{2, 10} {
				_, err := st.WriteChunk(ctx, sid, idx, strings.NewReader("x"))
				require.NoError(t, err)
			}

			keys, err := st.ListChunks(ctx, sid)
			require.NoError(t, err)
			require.Len(t, keys, 2)
			// "chunk-10.bin" < "chunk-2.bin": бэкенды отдают лексикографический порядок
			require.Equal(t, "chunk-10.bin", keys[0].Name)
			require.Equal(t, "chunk-2.bin", keys[1].Name)
		})
	}
}

func TestStore_MissingChunkAndArtifact(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.ReadChunk(ctx, sid, 7)
			require.ErrorIs(t, err, models.ErrNotFound)

			_, err = st.OpenArtifact(ctx, sid)
			require.ErrorIs(t, err, models.ErrNotFound)

			keys, err := st.ListChunks(ctx, sid)
			require.NoError(t, err)
			require.Empty(t, keys)
		})
	}
}

func TestStore_ArtifactAndDelete(t *testing.T) {
	for name, st := range backends(t) {
		if name == "s3" {
			// артефакт в S3 пишет uploader, см. TestS3Store_ArtifactUsesUploader
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.WriteChunk(ctx, sid, 0, strings.NewReader("a,b\n"))
			require.NoError(t, err)
			n, err := st.WriteArtifact(ctx, sid, strings.NewReader("a,b\n1,2\n"))
			require.NoError(t, err)
			require.EqualValues(t, 8, n)

			rc, err := st.OpenArtifact(ctx, sid)
			require.NoError(t, err)
			require.Equal(t, "a,b\n1,2\n", string(readAll(t, rc)))

			// артефакт не считается частью
			keys, err := st.ListChunks(ctx, sid)
			require.NoError(t, err)
			require.Len(t, keys, 1)

			require.NoError(t, st.DeleteSession(ctx, sid))
			keys, err = st.ListChunks(ctx, sid)
			require.NoError(t, err)
			require.Empty(t, keys)
		})
	}
}

func TestStore_RejectsPathLikeSessionID(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.WriteChunk(context.Background(), "../escape", 0, strings.NewReader("x"))
			require.Error(t, err)
		})
	}
}

func TestDiskStore_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	st, err := NewDiskStore(root)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("0123456789"), 10_000)
	_, err = st.WriteChunk(context.Background(), sid, 3, bytes.NewReader(payload))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, sid))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "chunk-3.bin", entries[0].Name())

	require.NoError(t, st.Ready(context.Background()))
}
