package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.pdf":         "first",
		"nested/b.PDF":  "second",
		"notes.txt":     "ignored later",
		"nested/empty/": "",
	})
	dest := t.TempDir()

	entries, err := Extract(context.Background(), bytes.NewReader(data), int64(len(data)), dest, Limits{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	content, err := os.ReadFile(filepath.Join(dest, "nested", "b.PDF"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	_, err = os.Stat(filepath.Join(dest, "notes.txt"))
	assert.NoError(t, err)

	for _, e := range entries {
		assert.Equal(t, int64(len(mustRead(t, e.Path))), e.Size)
	}
}

func TestExtract_Invalid(t *testing.T) {
	data := []byte("this is not a zip file")

	_, err := Extract(context.Background(), bytes.NewReader(data), int64(len(data)), t.TempDir(), Limits{})
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestExtract_UnsafePaths(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "parent traversal", file: "../evil.pdf"},
		{name: "nested traversal", file: "docs/../../evil.pdf"},
		{name: "absolute", file: "/tmp/evil.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dest := filepath.Join(parent, "scratch")
			require.NoError(t, os.Mkdir(dest, 0o750))

			data := buildZip(t, map[string]string{
				"good.pdf": "ok",
				tt.file:    "bad",
			})

			_, err := Extract(context.Background(), bytes.NewReader(data), int64(len(data)), dest, Limits{})
			assert.ErrorIs(t, err, ErrUnsafePath)

			_, statErr := os.Stat(filepath.Join(parent, "evil.pdf"))
			assert.True(t, os.IsNotExist(statErr), "escaping entry must not be written")

			_, statErr = os.Stat(filepath.Join(dest, "good.pdf"))
			assert.True(t, os.IsNotExist(statErr), "nothing is written for an unsafe archive")
		})
	}
}

func TestExtract_Limits(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.pdf": "0123456789",
		"b.pdf": "0123456789",
	})

	_, err := Extract(context.Background(), bytes.NewReader(data), int64(len(data)), t.TempDir(), Limits{MaxEntrySize: 5})
	assert.ErrorIs(t, err, ErrEntryTooLarge)

	_, err = Extract(context.Background(), bytes.NewReader(data), int64(len(data)), t.TempDir(), Limits{MaxTotalSize: 15})
	assert.ErrorIs(t, err, ErrArchiveTooLarge)

	entries, err := Extract(context.Background(), bytes.NewReader(data), int64(len(data)), t.TempDir(),
		Limits{MaxEntrySize: 10, MaxTotalSize: 20})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestExtract_Cancelled(t *testing.T) {
	data := buildZip(t, map[string]string{"a.pdf": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, bytes.NewReader(data), int64(len(data)), t.TempDir(), Limits{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "upload.zip")
	require.NoError(t, os.WriteFile(zipPath, buildZip(t, map[string]string{"a.pdf": "x"}), 0o644))

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(dest, 0o750))

	entries, err := ExtractFile(context.Background(), zipPath, dest, Limits{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.pdf", entries[0].Name)

	_, err = ExtractFile(context.Background(), filepath.Join(dir, "missing.zip"), dest, Limits{})
	assert.Error(t, err)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
