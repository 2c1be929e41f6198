package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func hashOf(t *testing.T, data []byte) string {
	t.Helper()

	h := blake3.New()
	_, err := h.Write(data)
	require.NoError(t, err)

	return hashHex(h)
}

func TestLocalPutOpenRoundTrip(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := []byte("the quick brown fox jumps over the lazy dog")
	hash := hashOf(t, data)

	written, err := local.Put(context.Background(), hash, int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), written)

	r, err := local.Open(context.Background(), hash)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestLocalPutDedupesIdenticalContent(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := []byte("duplicate content")
	hash := hashOf(t, data)

	_, err = local.Put(context.Background(), hash, int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)

	_, err = local.Put(context.Background(), hash, int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)

	r, err := local.Open(context.Background(), hash)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestLocalPutRejectsHashMismatch(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := []byte("mismatched")
	wrongHash := hashOf(t, []byte("something else"))

	_, err = local.Put(context.Background(), wrongHash, int64(len(data)), bytes.NewReader(data))
	require.ErrorIs(t, err, ErrHashMismatch)

	_, err = local.Open(context.Background(), wrongHash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalPutRejectsSizeMismatch(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := []byte("twelve bytes")
	hash := hashOf(t, data)

	_, err = local.Put(context.Background(), hash, int64(len(data))+100, bytes.NewReader(data))
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestLocalPutRejectsOversizedStream(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := bytes.Repeat([]byte("x"), 1024)
	hash := hashOf(t, data)

	_, err = local.Put(context.Background(), hash, 10, bytes.NewReader(data))
	require.ErrorIs(t, err, ErrStreamOverflow)
}

func TestLocalOpenMissingReturnsNotFound(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = local.Open(context.Background(), "deadbeef")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalDeleteThenOpenNotFound(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	data := []byte("to be deleted")
	hash := hashOf(t, data)

	_, err = local.Put(context.Background(), hash, int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)

	require.NoError(t, local.Delete(context.Background(), hash))

	_, err = local.Open(context.Background(), hash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalDeleteMissingIsNotAnError(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, local.Delete(context.Background(), "0000000000000000"))
}
