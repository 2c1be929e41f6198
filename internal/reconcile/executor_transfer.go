package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coldforge/syncpod/internal/content"
	"github.com/coldforge/syncpod/internal/journal"
	"github.com/coldforge/syncpod/internal/pathmap"
	"github.com/coldforge/syncpod/internal/rpcwire"
)

// uploadLocal implements the "Upload algorithm" of spec §4.G: hash the local
// file (already known to the caller via the gathered Facts, but recomputed
// here so the bytes on disk and the bytes sent are provably the same file),
// stream it to the server, and return the committed remote record.
func (e *Executor) uploadLocal(ctx context.Context, m pathmap.Mapping) (rpcwire.RemoteFile, error) {
	meta, err := content.HashFile(m.Absolute)
	if err != nil {
		return rpcwire.RemoteFile{}, rpcwire.NewError(rpcwire.KindIoError, "hashing %s: %v", m.Relative, err)
	}

	f, err := os.Open(m.Absolute)
	if err != nil {
		return rpcwire.RemoteFile{}, rpcwire.NewError(rpcwire.KindIoError, "opening %s: %v", m.Relative, err)
	}
	defer f.Close()

	return e.remote.Upload(ctx, m.Relative, f, meta)
}

// downloadRemote implements the "Download algorithm" of spec §4.G: stream to
// a sibling `.~download~<final-segment>` temp file, verify its hash against
// rf.Hash, and atomically rename into place only on a verified match.
// Grounded on the teacher's download-to-partial-then-verify-then-rename
// shape (executor_transfer.go), simplified to the spec's fail-hard-on-
// mismatch contract rather than the teacher's accept-after-retries fallback.
func (e *Executor) downloadRemote(ctx context.Context, m pathmap.Mapping, rf rpcwire.RemoteFile) error {
	if err := os.MkdirAll(dirOf(m.Absolute), 0o755); err != nil {
		return rpcwire.NewError(rpcwire.KindIoError, "creating parent directory for %s: %v", m.Relative, err)
	}

	tempAbsolute := siblingPath(m.Absolute, pathmap.DownloadTempName(baseOf(m.Absolute)))

	if err := e.writeDownloadTemp(ctx, tempAbsolute, rf); err != nil {
		return err
	}

	verified, err := content.HashFile(tempAbsolute)
	if err != nil {
		os.Remove(tempAbsolute)

		return rpcwire.NewError(rpcwire.KindIoError, "hashing downloaded temp file for %s: %v", m.Relative, err)
	}

	if verified.Hash != rf.Hash {
		os.Remove(tempAbsolute)

		return rpcwire.NewError(rpcwire.KindIntegrityError,
			"downloaded %s hash %s does not match remote hash %s", m.Relative, verified.Hash, rf.Hash)
	}

	if err := os.Rename(tempAbsolute, m.Absolute); err != nil {
		os.Remove(tempAbsolute)

		return rpcwire.NewError(rpcwire.KindIoError, "renaming downloaded temp file into place for %s: %v", m.Relative, err)
	}

	return nil
}

func (e *Executor) writeDownloadTemp(ctx context.Context, tempAbsolute string, rf rpcwire.RemoteFile) error {
	f, err := os.Create(tempAbsolute)
	if err != nil {
		return rpcwire.NewError(rpcwire.KindIoError, "creating download temp file %s: %v", tempAbsolute, err)
	}

	_, downloadErr := e.remote.Download(ctx, rf.ID, rf.Hash, f)
	closeErr := f.Close()

	if downloadErr != nil {
		os.Remove(tempAbsolute)

		return fmt.Errorf("reconcile: downloading %s: %w", rf.Path, downloadErr)
	}

	if closeErr != nil {
		os.Remove(tempAbsolute)

		return rpcwire.NewError(rpcwire.KindIoError, "closing download temp file %s: %v", tempAbsolute, closeErr)
	}

	return nil
}

func toJournalEntry(rf rpcwire.RemoteFile) journal.Entry {
	return journal.Entry{ID: rf.ID, Path: rf.Path, Hash: rf.Hash}
}

func dirOf(absolute string) string  { return filepath.Dir(absolute) }
func baseOf(absolute string) string { return filepath.Base(absolute) }

func siblingPath(absolute, name string) string {
	return filepath.Join(filepath.Dir(absolute), name)
}
