package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
)

// Sentinel validation errors.
var (
	ErrInvalidURL     = errors.New("config: url is not a valid absolute URL")
	ErrSyncDirNotAbs  = errors.New("config: sync_dir must be an absolute path")
	ErrCredentialsGap = errors.New("config: credentials.email and credentials.password must both be set or both be empty")
)

// Validate checks any fields present in cfg for well-formedness. Absent
// fields are always valid — every field in config.json is optional.
func Validate(cfg *Config) error {
	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
		}
	}

	if cfg.SyncDir != "" && !filepath.IsAbs(cfg.SyncDir) {
		return fmt.Errorf("%w: %q", ErrSyncDirNotAbs, cfg.SyncDir)
	}

	if cfg.Credentials != nil {
		hasEmail := cfg.Credentials.Email != ""
		hasPassword := cfg.Credentials.Password != ""

		if hasEmail != hasPassword {
			return ErrCredentialsGap
		}
	}

	return nil
}
