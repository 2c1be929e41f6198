package reconcile

import (
	"errors"
	"os"

	"github.com/coldforge/syncpod/internal/content"
)

// statLocal returns the local content meta for absolute, or nil if no
// regular file exists there (spec §3 "local file meta").
func statLocal(absolute string) (*content.Meta, error) {
	info, err := os.Lstat(absolute)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if !info.Mode().IsRegular() {
		return nil, nil
	}

	meta, err := content.HashFile(absolute)
	if err != nil {
		return nil, err
	}

	return &meta, nil
}

// deleteLocalIfPresent removes absolute if it exists; a missing file is not
// an error (keep_remote may run after the local file was already removed).
func deleteLocalIfPresent(absolute string) error {
	if err := os.Remove(absolute); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
