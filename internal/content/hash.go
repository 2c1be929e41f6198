// Package content implements the streaming content digest used end-to-end
// for integrity verification (spec §4.B): a 256-bit BLAKE3 hash rendered as
// lowercase hex, plus a byte count, computed in a single streaming pass.
package content

import (
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Meta is the (hash, size) pair spec §3 calls "local file meta".
type Meta struct {
	Hash string
	Size int64
}

// New returns a fresh streaming BLAKE3 hasher (256-bit digest).
func New() hash.Hash {
	return blake3.New()
}

// HashFile streams a file's bytes through BLAKE3, returning its hex digest
// and byte count. Never holds the whole file in memory. Returns an error if
// the file cannot be opened or read; callers classify it as IoError (spec §7).
func HashFile(absolutePath string) (Meta, error) {
	f, err := os.Open(absolutePath)
	if err != nil {
		return Meta{}, fmt.Errorf("content: opening %s: %w", absolutePath, err)
	}
	defer f.Close()

	h := New()

	n, err := io.Copy(h, f)
	if err != nil {
		return Meta{}, fmt.Errorf("content: reading %s: %w", absolutePath, err)
	}

	return Meta{Hash: Hex(h), Size: n}, nil
}

// Hex renders a hasher's current sum as lowercase hex without finalizing
// the caller's ability to keep writing (Sum(nil) does not reset state).
func Hex(h hash.Hash) string {
	return fmt.Sprintf("%x", h.Sum(nil))
}

// TeeHasher wraps a writer so that every byte written to it is also hashed,
// used by the upload path to hash bytes as they are streamed to the
// transport (spec §4.B "streaming variant").
type TeeHasher struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewTeeHasher returns a TeeHasher that forwards writes to w while hashing.
func NewTeeHasher(w io.Writer) *TeeHasher {
	return &TeeHasher{w: w, h: New()}
}

func (t *TeeHasher) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.h.Write(p[:n]) //nolint:errcheck // hash.Hash.Write never fails
		t.n += int64(n)
	}

	return n, err
}

// Sum returns the (hash, size) computed so far.
func (t *TeeHasher) Sum() Meta {
	return Meta{Hash: Hex(t.h), Size: t.n}
}
