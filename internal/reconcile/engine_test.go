package reconcile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/syncpod/internal/content"
	"github.com/coldforge/syncpod/internal/journal"
	"github.com/coldforge/syncpod/internal/pathmap"
	"github.com/coldforge/syncpod/internal/rpcwire"
)

// fakeRemote is an in-memory stand-in for syncclient.Client, good enough to
// drive the end-to-end scenarios of spec §8 without a real server: it stores
// blob bytes keyed by id and enforces the same quota contract §4.F does.
type fakeRemote struct {
	mu    sync.Mutex
	files map[string]rpcwire.RemoteFile // by id
	blobs map[string][]byte             // by id

	quota *int64
	used  int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{files: map[string]rpcwire.RemoteFile{}, blobs: map[string][]byte{}}
}

func (f *fakeRemote) Upload(_ context.Context, relativePath string, r io.Reader, meta content.Meta) (rpcwire.RemoteFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return rpcwire.RemoteFile{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var replaced int64

	for id, existing := range f.files {
		if existing.Path == relativePath {
			replaced = existing.Size
			delete(f.files, id)
			delete(f.blobs, id)
		}
	}

	if f.quota != nil && f.used-replaced+meta.Size > *f.quota {
		return rpcwire.RemoteFile{}, rpcwire.NewError(rpcwire.KindResourceExhausted, "quota exceeded")
	}

	id := uuid.NewString()
	rf := rpcwire.RemoteFile{ID: id, Path: relativePath, Hash: meta.Hash, Size: meta.Size}

	f.files[id] = rf
	f.blobs[id] = data
	f.used = f.used - replaced + meta.Size

	return rf, nil
}

func (f *fakeRemote) Download(_ context.Context, id, expectedHash string, w io.Writer) (int64, error) {
	f.mu.Lock()
	data, ok := f.blobs[id]
	f.mu.Unlock()

	if !ok {
		return 0, rpcwire.NewError(rpcwire.KindNotFound, "no blob for id %s", id)
	}

	hasher := content.NewTeeHasher(w)

	n, err := hasher.Write(data)
	if err != nil {
		return int64(n), err
	}

	got := hasher.Sum()
	if got.Hash != expectedHash {
		return got.Size, rpcwire.NewError(rpcwire.KindIntegrityError, "hash mismatch")
	}

	return got.Size, nil
}

func (f *fakeRemote) GetByPath(_ context.Context, relativePath string) (rpcwire.RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rf := range f.files {
		if rf.Path == relativePath {
			return rf, nil
		}
	}

	return rpcwire.RemoteFile{}, rpcwire.NewError(rpcwire.KindNotFound, "no file at %s", relativePath)
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rf, ok := f.files[id]
	if !ok {
		return rpcwire.NewError(rpcwire.KindNotFound, "no file with id %s", id)
	}

	f.used -= rf.Size
	delete(f.files, id)
	delete(f.blobs, id)

	return nil
}

func (f *fakeRemote) ListAll(_ context.Context, fn func(rpcwire.RemoteFile) error) error {
	f.mu.Lock()

	out := make([]rpcwire.RemoteFile, 0, len(f.files))
	for _, rf := range f.files {
		out = append(out, rf)
	}

	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	for _, rf := range out {
		if err := fn(rf); err != nil {
			return err
		}
	}

	return nil
}

func (f *fakeRemote) GetSelf(context.Context) (rpcwire.SelfResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return rpcwire.SelfResponse{ID: "user-1", UsedBytes: f.used, QuotaBytes: f.quota}, nil
}

func (f *fakeRemote) putDirect(relativePath, data string) rpcwire.RemoteFile {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := content.New()
	h.Write([]byte(data)) //nolint:errcheck

	id := uuid.NewString()
	rf := rpcwire.RemoteFile{ID: id, Path: relativePath, Hash: content.Hex(h), Size: int64(len(data))}
	f.files[id] = rf
	f.blobs[id] = []byte(data)
	f.used += rf.Size

	return rf
}

func (f *fakeRemote) deleteDirect(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rf, ok := f.files[id]; ok {
		f.used -= rf.Size
	}

	delete(f.files, id)
	delete(f.blobs, id)
}

// testHarness bundles a temp sync dir, a sqlite-backed journal, and a
// fakeRemote into one Engine, the same three collaborators spec §4.G's
// refresh() gathers facts from.
type testHarness struct {
	t       *testing.T
	dir     string
	mapper  *pathmap.Mapper
	journal *journal.Store
	remote  *fakeRemote
	engine  *Engine
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	dir := t.TempDir()

	mapper, err := pathmap.New(dir)
	require.NoError(t, err)

	js, err := journal.Open(context.Background(), filepath.Join(dir, pathmap.JournalFileName), nil)
	require.NoError(t, err)
	t.Cleanup(func() { js.Close() })

	remote := newFakeRemote()
	engine := NewEngine(mapper, js, remote, nil)

	return &testHarness{t: t, dir: dir, mapper: mapper, journal: js, remote: remote, engine: engine}
}

func (h *testHarness) writeLocal(relative, data string) {
	h.t.Helper()

	abs := filepath.Join(h.dir, filepath.FromSlash(relative))
	require.NoError(h.t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(h.t, os.WriteFile(abs, []byte(data), 0o644))
}

func (h *testHarness) readLocal(relative string) string {
	h.t.Helper()

	data, err := os.ReadFile(filepath.Join(h.dir, filepath.FromSlash(relative)))
	require.NoError(h.t, err)

	return string(data)
}

func (h *testHarness) localExists(relative string) bool {
	_, err := os.Stat(filepath.Join(h.dir, filepath.FromSlash(relative)))

	return err == nil
}

func (h *testHarness) statusOf(relative string) (StatusEntry, bool) {
	for _, e := range h.engine.Status() {
		if e.Path == relative {
			return e, true
		}
	}

	return StatusEntry{}, false
}

// S1: upload new.
func TestScenarioUploadNew(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/note.txt", "hello")

	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/note.txt")
	require.True(t, ok)
	require.Equal(t, StatusAdded, entry.Status)

	rf, err := h.remote.GetByPath(context.Background(), "/note.txt")
	require.NoError(t, err)
	require.EqualValues(t, 5, rf.Size)

	je, err := h.journal.FindByPath(context.Background(), "/note.txt")
	require.NoError(t, err)
	require.Equal(t, rf.Hash, je.Hash)
}

// S2: pure download.
func TestScenarioDownloadNew(t *testing.T) {
	h := newHarness(t)
	h.remote.putDirect("/report.pdf", "pdf-bytes-pdf-bytes")

	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/report.pdf")
	require.True(t, ok)
	require.Equal(t, StatusAdded, entry.Status)
	require.Equal(t, "pdf-bytes-pdf-bytes", h.readLocal("/report.pdf"))

	_, err := h.journal.FindByPath(context.Background(), "/report.pdf")
	require.NoError(t, err)
}

// S3: local delete propagates to remote + journal.
func TestScenarioLocalDelete(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/a", "content-a")
	require.NoError(t, h.engine.Refresh(context.Background()))

	require.NoError(t, os.Remove(filepath.Join(h.dir, "a")))
	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/a")
	require.True(t, ok)
	require.Equal(t, StatusDeleted, entry.Status)

	_, err := h.remote.GetByPath(context.Background(), "/a")
	require.Error(t, err)

	_, err = h.journal.FindByPath(context.Background(), "/a")
	require.ErrorIs(t, err, journal.ErrNotFound)
}

// S4: remote-only delete (out-of-band) propagates to local + journal.
func TestScenarioRemoteOnlyDelete(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/b", "content-b")
	require.NoError(t, h.engine.Refresh(context.Background()))

	rf, err := h.remote.GetByPath(context.Background(), "/b")
	require.NoError(t, err)
	h.remote.deleteDirect(rf.ID)

	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/b")
	require.True(t, ok)
	require.Equal(t, StatusDeleted, entry.Status)
	require.False(t, h.localExists("/b"))

	_, err = h.journal.FindByPath(context.Background(), "/b")
	require.ErrorIs(t, err, journal.ErrNotFound)
}

// S5: true conflict, both resolution branches.
func TestScenarioConflictKeepLocal(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/c", "c-original")
	require.NoError(t, h.engine.Refresh(context.Background()))

	h.writeLocal("/c", "c-local-edit")

	rf, err := h.remote.GetByPath(context.Background(), "/c")
	require.NoError(t, err)
	h.remote.deleteDirect(rf.ID)
	h.remote.putDirect("/c", "c-remote-edit")

	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/c")
	require.True(t, ok)
	require.Equal(t, StatusWaitingUser, entry.Status)

	require.NoError(t, h.engine.Resolve(context.Background(), "/c", ResolutionKeepLocal))

	entry, ok = h.statusOf("/c")
	require.True(t, ok)
	require.Equal(t, StatusSuccess, entry.Status)

	got, err := h.remote.GetByPath(context.Background(), "/c")
	require.NoError(t, err)

	wantHash := content.New()
	wantHash.Write([]byte("c-local-edit")) //nolint:errcheck
	require.Equal(t, content.Hex(wantHash), got.Hash)
	require.Equal(t, "c-local-edit", h.readLocal("/c"))
}

func TestScenarioConflictKeepRemote(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/c", "c-original")
	require.NoError(t, h.engine.Refresh(context.Background()))

	h.writeLocal("/c", "c-local-edit")

	rf, err := h.remote.GetByPath(context.Background(), "/c")
	require.NoError(t, err)
	h.remote.deleteDirect(rf.ID)
	h.remote.putDirect("/c", "c-remote-edit")

	require.NoError(t, h.engine.Refresh(context.Background()))
	require.NoError(t, h.engine.Resolve(context.Background(), "/c", ResolutionKeepRemote))

	entry, ok := h.statusOf("/c")
	require.True(t, ok)
	require.Equal(t, StatusSuccess, entry.Status)
	require.Equal(t, "c-remote-edit", h.readLocal("/c"))

	je, err := h.journal.FindByPath(context.Background(), "/c")
	require.NoError(t, err)

	wantHash := content.New()
	wantHash.Write([]byte("c-remote-edit")) //nolint:errcheck
	require.Equal(t, content.Hex(wantHash), je.Hash)
}

// S6: quota exceeded leaves index/blob store/journal untouched.
func TestScenarioQuotaExceeded(t *testing.T) {
	h := newHarness(t)
	quota := int64(1024)
	h.remote.quota = &quota
	h.remote.used = 1000

	h.writeLocal("/big", string(bytes.Repeat([]byte("x"), 100)))

	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/big")
	require.True(t, ok)
	require.Equal(t, StatusFailed, entry.Status)
	require.True(t, errors.Is(entry.Err, rpcwire.ErrResourceExhausted))

	_, err := h.remote.GetByPath(context.Background(), "/big")
	require.Error(t, err)
	require.EqualValues(t, 1000, h.remote.used)

	_, err = h.journal.FindByPath(context.Background(), "/big")
	require.ErrorIs(t, err, journal.ErrNotFound)
}

// Journal monotonicity: a second refresh with no changes performs zero
// observable mutations and reaches Success everywhere.
func TestScenarioRepeatedRefreshIsStable(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/note.txt", "hello")

	require.NoError(t, h.engine.Refresh(context.Background()))

	before, err := h.journal.FindByPath(context.Background(), "/note.txt")
	require.NoError(t, err)

	require.NoError(t, h.engine.Refresh(context.Background()))

	entry, ok := h.statusOf("/note.txt")
	require.True(t, ok)
	require.Equal(t, StatusSuccess, entry.Status)

	after, err := h.journal.FindByPath(context.Background(), "/note.txt")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

// Reserved names are never walked into reconciliation.
func TestRefreshIgnoresReservedNames(t *testing.T) {
	h := newHarness(t)
	h.writeLocal("/.~download~partial", "half-written")

	require.NoError(t, h.engine.Refresh(context.Background()))

	_, ok := h.statusOf("/.~download~partial")
	require.False(t, ok)
}
