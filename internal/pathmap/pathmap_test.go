package pathmap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsOrdinaryPath(t *testing.T) {
	require.NoError(t, Validate("/docs/notes.txt"))
}

func TestValidateRejectsNonAbsolute(t *testing.T) {
	err := Validate("docs/notes.txt")
	assert.True(t, errors.Is(err, ErrNotAbsolute))
}

func TestValidateRejectsEmptyFinalSegment(t *testing.T) {
	err := Validate("/docs/")
	assert.True(t, errors.Is(err, ErrEmptySegment))
}

func TestValidateRejectsRoot(t *testing.T) {
	err := Validate("/")
	assert.True(t, errors.Is(err, ErrEmptySegment))
}

func TestValidateRejectsJournalFile(t *testing.T) {
	err := Validate("/" + JournalFileName)
	assert.True(t, errors.Is(err, ErrReservedName))
}

func TestValidateRejectsDownloadTempName(t *testing.T) {
	err := Validate("/docs/.~download~notes.txt")
	assert.True(t, errors.Is(err, ErrReservedName))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(JournalFileName))
	assert.True(t, IsReserved(".~download~foo"))
	assert.False(t, IsReserved("notes.txt"))
}

func TestDownloadTempName(t *testing.T) {
	assert.Equal(t, ".~download~notes.txt", DownloadTempName("notes.txt"))
}

func TestMapperFromAbsoluteRoundTrip(t *testing.T) {
	root := t.TempDir()

	m, err := New(root)
	require.NoError(t, err)

	abs := filepath.Join(root, "docs", "notes.txt")

	mapping, err := m.FromAbsolute(abs)
	require.NoError(t, err)
	assert.Equal(t, "/docs/notes.txt", mapping.Relative)
	assert.Equal(t, abs, mapping.Absolute)
	assert.Equal(t, root, mapping.SyncRoot)

	back, err := m.FromRelative(mapping.Relative)
	require.NoError(t, err)
	assert.Equal(t, abs, back.Absolute)
}

func TestMapperFromAbsoluteRejectsEscape(t *testing.T) {
	root := t.TempDir()

	m, err := New(root)
	require.NoError(t, err)

	_, err = m.FromAbsolute(filepath.Join(root, "..", "outside.txt"))
	assert.True(t, errors.Is(err, ErrEscapesRoot))
}

func TestMapperFromRelativeRejectsEscape(t *testing.T) {
	root := t.TempDir()

	m, err := New(root)
	require.NoError(t, err)

	_, err = m.FromRelative("/../outside.txt")
	assert.Error(t, err)
}

func TestMapperFromRelativeRejectsReserved(t *testing.T) {
	root := t.TempDir()

	m, err := New(root)
	require.NoError(t, err)

	_, err = m.FromRelative("/" + JournalFileName)
	assert.True(t, errors.Is(err, ErrReservedName))
}

func TestNewRequiresAbsoluteRoot(t *testing.T) {
	_, err := New("relative/path")
	assert.Error(t, err)
}
