// Package pathmap implements the bidirectional mapping between sync-root
// relative paths and absolute filesystem paths, and the validation that
// keeps both forms inside the sync root and free of reserved names.
package pathmap

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// JournalFileName is the reserved filename for the local journal database.
// It is never a valid relative path segment.
const JournalFileName = ".sync.db"

// DownloadTempPrefix marks an in-progress download. Reserved; a file whose
// final segment starts with this prefix is never synced.
const DownloadTempPrefix = ".~download~"

// Sentinel validation errors. Wrap with fmt.Errorf("%w: ...") for context.
var (
	ErrNotAbsolute    = errors.New("pathmap: relative path must start with /")
	ErrEmptySegment   = errors.New("pathmap: path has no final segment")
	ErrReservedName   = errors.New("pathmap: path uses a reserved name")
	ErrEscapesRoot    = errors.New("pathmap: path escapes the sync root")
)

// Mapping is the {sync_root, absolute, relative} triple described in spec §4.A.
type Mapping struct {
	SyncRoot string
	Absolute string
	Relative string
}

// Mapper binds a single sync root and produces Mappings from either an
// absolute path beneath it or a canonical relative path.
type Mapper struct {
	syncRoot string
}

// New returns a Mapper rooted at syncRoot. syncRoot must be an absolute path;
// it is cleaned but not required to exist.
func New(syncRoot string) (*Mapper, error) {
	if !filepath.IsAbs(syncRoot) {
		return nil, fmt.Errorf("pathmap: sync root %q must be absolute", syncRoot)
	}

	return &Mapper{syncRoot: filepath.Clean(syncRoot)}, nil
}

// SyncRoot returns the mapper's sync root.
func (m *Mapper) SyncRoot() string {
	return m.syncRoot
}

// FromAbsolute derives the relative path for an absolute path that must lie
// under the sync root, validating reserved names along the way.
func (m *Mapper) FromAbsolute(absolute string) (Mapping, error) {
	clean := filepath.Clean(absolute)

	rel, err := filepath.Rel(m.syncRoot, clean)
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %s", ErrEscapesRoot, absolute)
	}

	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return Mapping{}, fmt.Errorf("%w: %s", ErrEscapesRoot, absolute)
	}

	relative := "/" + filepath.ToSlash(rel)

	if err := Validate(relative); err != nil {
		return Mapping{}, err
	}

	return Mapping{SyncRoot: m.syncRoot, Absolute: clean, Relative: relative}, nil
}

// FromRelative derives the absolute path for a canonical relative path
// (leading "/", forward slashes), validating it first.
func (m *Mapper) FromRelative(relative string) (Mapping, error) {
	if err := Validate(relative); err != nil {
		return Mapping{}, err
	}

	osRel := filepath.FromSlash(strings.TrimPrefix(relative, "/"))
	absolute := filepath.Join(m.syncRoot, osRel)

	// Re-derive via Rel to catch any pathological join-escape (defense in depth).
	rel, err := filepath.Rel(m.syncRoot, absolute)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Mapping{}, fmt.Errorf("%w: %s", ErrEscapesRoot, relative)
	}

	return Mapping{SyncRoot: m.syncRoot, Absolute: absolute, Relative: relative}, nil
}

// Validate checks a canonical relative path against spec §3/§4.A without
// requiring a Mapper: it must start with "/", normalize to forward slashes,
// have a non-empty final segment, and not be a reserved name.
func Validate(relative string) error {
	if !strings.HasPrefix(relative, "/") {
		return fmt.Errorf("%w: %q", ErrNotAbsolute, relative)
	}

	clean := path.Clean(relative)
	if clean == "/" {
		return fmt.Errorf("%w: %q", ErrEmptySegment, relative)
	}

	segment := path.Base(clean)
	if segment == "" || segment == "." || segment == "/" {
		return fmt.Errorf("%w: %q", ErrEmptySegment, relative)
	}

	if IsReserved(segment) {
		return fmt.Errorf("%w: %q", ErrReservedName, relative)
	}

	return nil
}

// IsReserved reports whether a final path segment is a reserved name that
// must never be treated as a syncable file.
func IsReserved(segment string) bool {
	if segment == JournalFileName {
		return true
	}

	return strings.HasPrefix(segment, DownloadTempPrefix)
}

// DownloadTempName returns the reserved sibling temp name used while a
// download of finalName is in flight (spec §4.G Download algorithm).
func DownloadTempName(finalName string) string {
	return DownloadTempPrefix + finalName
}
