// Package config resolves the sync server's configuration from environment
// variables (spec §6: "Server configuration from environment:
// API_DATABASE_URL, API_ENDPOINT (host:port), API_USER_STORAGE_QUOTA
// (bytes)"), following the teacher's internal/config/env.go
// override-resolution idiom, generalized from CLI/env/file layering down to
// plain required/optional env vars since the server has no config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Environment variable names.
const (
	EnvDatabaseURL    = "API_DATABASE_URL"
	EnvEndpoint       = "API_ENDPOINT"
	EnvStorageQuota   = "API_USER_STORAGE_QUOTA"
	EnvJWTSecret      = "API_JWT_SECRET"
	EnvBlobRoot       = "API_BLOB_ROOT"
	EnvBlobS3Endpoint = "API_BLOB_S3_ENDPOINT"
	EnvBlobS3Bucket   = "API_BLOB_S3_BUCKET"
	EnvBlobS3Access   = "API_BLOB_S3_ACCESS_KEY"
	EnvBlobS3Secret   = "API_BLOB_S3_SECRET_KEY"
	EnvBlobS3UseSSL   = "API_BLOB_S3_USE_SSL"
)

// ErrMissingRequired is wrapped with the specific variable name when a
// required environment variable is unset.
var ErrMissingRequired = errors.New("config: required environment variable is not set")

// Config is the server's fully resolved configuration.
type Config struct {
	DatabaseURL  string // mongodb connection string
	Endpoint     string // host:port to listen on
	StorageQuota int64  // bytes; 0 means unlimited (spec: "none" quota)
	JWTSecret    []byte // HS256 signing key (spec §9: externalized, not hard-coded)

	Blob BlobConfig
}

// BlobConfig selects and configures the blob storage backend (SPEC_FULL.md
// §4.E): local content-addressed disk storage, or an S3-compatible bucket
// when API_BLOB_S3_ENDPOINT is set.
type BlobConfig struct {
	Root string // local CAS root; used when S3Endpoint is empty

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
}

// UseS3 reports whether the S3-compatible backend is configured.
func (b BlobConfig) UseS3() bool {
	return b.S3Endpoint != ""
}

// Load resolves Config from the process environment.
func Load() (Config, error) {
	databaseURL, err := required(EnvDatabaseURL)
	if err != nil {
		return Config{}, err
	}

	endpoint, err := required(EnvEndpoint)
	if err != nil {
		return Config{}, err
	}

	secret, err := required(EnvJWTSecret)
	if err != nil {
		return Config{}, err
	}

	quota, err := optionalInt64(EnvStorageQuota, 0)
	if err != nil {
		return Config{}, err
	}

	blob, err := loadBlobConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		DatabaseURL:  databaseURL,
		Endpoint:     endpoint,
		StorageQuota: quota,
		JWTSecret:    []byte(secret),
		Blob:         blob,
	}, nil
}

func loadBlobConfig() (BlobConfig, error) {
	s3Endpoint := os.Getenv(EnvBlobS3Endpoint)
	if s3Endpoint == "" {
		root := os.Getenv(EnvBlobRoot)
		if root == "" {
			return BlobConfig{}, fmt.Errorf("%w: %s (or set %s for the S3 backend)", ErrMissingRequired, EnvBlobRoot, EnvBlobS3Endpoint)
		}

		return BlobConfig{Root: root}, nil
	}

	bucket, err := required(EnvBlobS3Bucket)
	if err != nil {
		return BlobConfig{}, err
	}

	accessKey, err := required(EnvBlobS3Access)
	if err != nil {
		return BlobConfig{}, err
	}

	secretKey, err := required(EnvBlobS3Secret)
	if err != nil {
		return BlobConfig{}, err
	}

	useSSL, err := optionalBool(EnvBlobS3UseSSL, true)
	if err != nil {
		return BlobConfig{}, err
	}

	return BlobConfig{
		S3Endpoint:  s3Endpoint,
		S3Bucket:    bucket,
		S3AccessKey: accessKey,
		S3SecretKey: secretKey,
		S3UseSSL:    useSSL,
	}, nil
}

func required(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequired, name)
	}

	return v, nil
}

func optionalInt64(name string, fallback int64) (int64, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parsing %s=%q as integer: %w", name, v, err)
	}

	return n, nil
}

func optionalBool(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: parsing %s=%q as bool: %w", name, v, err)
	}

	return b, nil
}
