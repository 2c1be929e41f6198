package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zeebo/blake3"
)

// S3 is a Backend that stores blobs as objects in an S3-compatible bucket,
// keyed by their hex hash, for deployments that prefer object storage over
// local disk (SPEC_FULL.md §4.E domain-stack expansion). Since minio-go
// requires an io.Reader with a known length for PutObject, content is first
// staged into memory while hashing with BLAKE3 and only uploaded once
// verified — mirroring Local's verify-before-commit ordering.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects to an S3-compatible endpoint and ensures bucket exists.
func NewS3(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: connecting to %s: %w", endpoint, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("blobstore: checking bucket %s: %w", bucket, err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blobstore: creating bucket %s: %w", bucket, err)
		}
	}

	return &S3{client: client, bucket: bucket}, nil
}

// Put verifies the stream against expectedHash/expectedSize before
// uploading, same contract as Local.Put.
func (s *S3) Put(ctx context.Context, expectedHash string, expectedSize int64, r io.Reader) (int64, error) {
	h := blake3.New()
	var buf bytes.Buffer

	limited := &countingReader{r: io.TeeReader(r, h), limit: expectedSize}

	written, err := io.Copy(&buf, limited)
	if err != nil {
		return written, fmt.Errorf("blobstore: buffering upload: %w", err)
	}

	if written != expectedSize {
		return written, fmt.Errorf("%w: wrote %d want %d", ErrSizeMismatch, written, expectedSize)
	}

	actualHash := hashHex(h)
	if actualHash != expectedHash {
		return written, fmt.Errorf("%w: computed %s want %s", ErrHashMismatch, actualHash, expectedHash)
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectKey(expectedHash), &buf, written, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return written, fmt.Errorf("blobstore: uploading object %s: %w", expectedHash, err)
	}

	return written, nil
}

// Open returns a reader for the object keyed by hash.
func (s *S3) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(hash), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blobstore: opening object %s: %w", hash, err)
	}

	if _, err := obj.Stat(); err != nil {
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) && errResp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}

		return nil, fmt.Errorf("blobstore: stating object %s: %w", hash, err)
	}

	return obj, nil
}

// Delete removes the object keyed by hash.
func (s *S3) Delete(ctx context.Context, hash string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey(hash), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blobstore: deleting object %s: %w", hash, err)
	}

	return nil
}

func objectKey(hash string) string {
	if len(hash) < 4 {
		return "blobs/" + hash
	}

	return "blobs/" + hash[0:2] + "/" + hash[2:4] + "/" + hash
}
