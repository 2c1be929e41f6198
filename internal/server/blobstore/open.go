package blobstore

import (
	"context"
	"fmt"

	serverconfig "github.com/coldforge/syncpod/internal/server/config"
)

// Open constructs the Backend selected by cfg: an S3-compatible bucket when
// API_BLOB_S3_ENDPOINT is set, otherwise a local CAS rooted at API_BLOB_ROOT.
func Open(ctx context.Context, cfg serverconfig.BlobConfig) (Backend, error) {
	if cfg.UseS3() {
		backend, err := NewS3(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			return nil, fmt.Errorf("blobstore: opening s3 backend: %w", err)
		}

		return backend, nil
	}

	backend, err := NewLocal(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("blobstore: opening local backend: %w", err)
	}

	return backend, nil
}
