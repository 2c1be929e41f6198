// Package blobstore implements the server's content-addressed blob storage
// (SPEC_FULL.md §4.E), behind a shared Backend interface with two concrete
// implementations: a local-disk store grounded on the pack's go-storage
// content-addressable store, and an optional S3-compatible backend over
// minio-go for deployments that want object storage instead of a local
// filesystem.
package blobstore

import (
	"context"
	"io"
)

// Backend is the storage-agnostic interface the file index writes through.
// Both implementations key blobs by their BLAKE3 hex hash (spec §4.B).
type Backend interface {
	// Put streams r, verifying its content hashes to expectedHash and its
	// length equals expectedSize before committing (spec: "on close
	// recompute the 256-bit hash and compare to info.hash and compare
	// actual bytes to info.size, failing the whole upload if either
	// disagrees"). Returns the actual byte count written even on failure,
	// so callers can classify Aborted (exceeded size) vs DataLoss
	// (mismatched hash/size) per spec §4.G.
	Put(ctx context.Context, expectedHash string, expectedSize int64, r io.Reader) (int64, error)

	// Open returns a reader for the blob keyed by hash.
	Open(ctx context.Context, hash string) (io.ReadCloser, error)

	// Delete removes the blob keyed by hash. Deleting a hash with no
	// remaining index references is the caller's responsibility; Backend
	// itself does no reference counting.
	Delete(ctx context.Context, hash string) error
}
