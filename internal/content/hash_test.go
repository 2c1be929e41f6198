package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func blake3Hex(t *testing.T, data []byte) string {
	t.Helper()

	h := blake3.New()
	_, err := h.Write(data)
	require.NoError(t, err)

	return Hex(h)
}

func TestHashFileMatchesBlake3(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	meta, err := HashFile(path)
	require.NoError(t, err)

	assert.Equal(t, blake3Hex(t, []byte("hello")), meta.Hash)
	assert.EqualValues(t, 5, meta.Size)
}

func TestHashFileMissingReturnsError(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestHashFileEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	meta, err := HashFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 0, meta.Size)
	assert.Equal(t, blake3Hex(t, nil), meta.Hash)
}

func TestTeeHasherMatchesDirectHash(t *testing.T) {
	var buf countingWriter

	th := NewTeeHasher(&buf)

	n, err := th.Write([]byte("streamed content"))
	require.NoError(t, err)
	assert.Equal(t, len("streamed content"), n)

	sum := th.Sum()
	assert.Equal(t, blake3Hex(t, []byte("streamed content")), sum.Hash)
	assert.EqualValues(t, len("streamed content"), sum.Size)
	assert.Equal(t, "streamed content", buf.String())
}

type countingWriter struct {
	data []byte
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *countingWriter) String() string {
	return string(w.data)
}
