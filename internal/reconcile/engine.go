package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/coldforge/syncpod/internal/journal"
	"github.com/coldforge/syncpod/internal/pathmap"
	"github.com/coldforge/syncpod/internal/rpcwire"
)

// Engine is the single cooperatively-scheduled sync task (spec §5
// "Scheduling model"): within one Refresh pass it processes paths
// sequentially, making the triple-presence read/decide/write cycle atomic
// with respect to the journal and the UI status table. A singleflight group
// guards against a second pass starting while one is in flight; the status
// map lets prompts for distinct paths coexist as independent WaitingUser
// entries.
type Engine struct {
	mapper   *pathmap.Mapper
	journal  *journal.Store
	remote   RemoteClient
	executor *Executor
	logger   *slog.Logger

	refreshGroup singleflight.Group

	mu      sync.Mutex
	status  map[string]StatusEntry
	waiting map[string]WaitingUserEntry

	storageUsed  int64
	storageQuota *int64 // nil == unlimited (spec: "infinity symbol")
}

// NewEngine builds an Engine over a sync root, journal, and remote client.
func NewEngine(mapper *pathmap.Mapper, js *journal.Store, remote RemoteClient, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		mapper:   mapper,
		journal:  js,
		remote:   remote,
		executor: NewExecutor(js, remote, mapper, logger),
		logger:   logger,
		status:   make(map[string]StatusEntry),
		waiting:  make(map[string]WaitingUserEntry),
	}
}

// Status returns a snapshot of the current file-status table.
func (e *Engine) Status() []StatusEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]StatusEntry, 0, len(e.status))
	for _, s := range e.status {
		out = append(out, s)
	}

	return out
}

// StorageUsage returns the last-observed (used, quota) pair from Refresh's
// get_self() call. quota is nil when the account has no quota (spec: "the
// denominator renders as the infinity symbol").
func (e *Engine) StorageUsage() (used int64, quota *int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.storageUsed, e.storageQuota
}

// Refresh implements spec §4.G's refresh(): clear the status table, walk the
// sync directory reconciling every local file, stream the remote listing
// reconciling every remote-only path, then publish storage usage. Only one
// Refresh runs at a time; a concurrent call joins the in-flight one rather
// than starting a second pass (spec §5: "no second reconciliation is started
// for the same path" generalized here to the whole pass, via singleflight,
// the same guard the teacher's drive_runner.go uses per-drive).
func (e *Engine) Refresh(ctx context.Context) error {
	_, err, _ := e.refreshGroup.Do("refresh", func() (any, error) {
		return nil, e.refreshOnce(ctx)
	})

	return err
}

func (e *Engine) refreshOnce(ctx context.Context) error {
	e.mu.Lock()
	e.status = make(map[string]StatusEntry)
	e.mu.Unlock()

	seen := make(map[string]struct{})

	if err := e.walkLocal(ctx, seen); err != nil {
		return err
	}

	if err := e.walkRemote(ctx, seen); err != nil {
		return err
	}

	return e.publishUsage(ctx)
}

func (e *Engine) walkLocal(ctx context.Context, seen map[string]struct{}) error {
	root := e.mapper.SyncRoot()

	return filepath.WalkDir(root, func(absolute string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("reconcile: walking %s: %w", absolute, err)
		}

		if d.IsDir() {
			return nil
		}

		if pathmap.IsReserved(d.Name()) {
			return nil
		}

		m, mapErr := e.mapper.FromAbsolute(absolute)
		if mapErr != nil {
			e.logger.Warn("skipping unmappable path", slog.String("path", absolute), slog.String("error", mapErr.Error()))

			return nil
		}

		seen[m.Relative] = struct{}{}

		return e.reconcilePath(ctx, m.Relative)
	})
}

func (e *Engine) walkRemote(ctx context.Context, seen map[string]struct{}) error {
	return e.remote.ListAll(ctx, func(rf rpcwire.RemoteFile) error {
		if _, ok := seen[rf.Path]; ok {
			return nil
		}

		seen[rf.Path] = struct{}{}

		return e.reconcilePath(ctx, rf.Path)
	})
}

func (e *Engine) publishUsage(ctx context.Context) error {
	self, err := e.remote.GetSelf(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: fetching account usage: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.storageUsed = self.UsedBytes
	e.storageQuota = self.QuotaBytes

	return nil
}

// reconcilePath runs one path's reconcile(path) to completion (spec §4.G):
// gather(L,J,R) → decide → mutate, with no other pass observing the journal
// or status table for this path meanwhile (guaranteed by Refresh running
// one path at a time within a pass).
func (e *Engine) reconcilePath(ctx context.Context, relative string) error {
	m, err := e.mapper.FromRelative(relative)
	if err != nil {
		e.setStatus(relative, StatusFailed, err)

		return nil //nolint:nilerr // a single bad path must not abort the whole pass
	}

	g, err := e.gather(ctx, m)
	if err != nil {
		e.setStatus(relative, StatusFailed, err)

		return nil //nolint:nilerr
	}

	action := Decide(g.facts)

	if action == ActionPrompt {
		e.recordWaiting(relative, g)

		return nil
	}

	status, err := e.executor.Apply(ctx, action, g)
	e.setStatus(relative, status, err)

	return nil //nolint:nilerr // per-path failures surface via status, not as a pass-aborting error
}

func (e *Engine) gather(ctx context.Context, m pathmap.Mapping) (gathered, error) {
	g := gathered{mapping: m}

	localMeta, err := statLocal(m.Absolute)
	if err != nil {
		return gathered{}, rpcwire.NewError(rpcwire.KindIoError, "statting %s: %v", m.Relative, err)
	}

	if localMeta != nil {
		g.facts.Local = present(localMeta.Hash)
	}

	entry, err := e.journal.FindByPath(ctx, m.Relative)

	switch {
	case err == nil:
		g.facts.Journal = present(entry.Hash)
		g.journalID = entry.ID
	case errors.Is(err, journal.ErrNotFound):
		// absent, zero value already correct
	default:
		return gathered{}, fmt.Errorf("reconcile: reading journal entry for %s: %w", m.Relative, err)
	}

	rf, err := e.remote.GetByPath(ctx, m.Relative)

	switch {
	case err == nil:
		g.facts.Remote = present(rf.Hash)
		g.remoteFile = rf
	case errors.Is(err, rpcwire.ErrNotFound):
		// absent, zero value already correct
	default:
		return gathered{}, fmt.Errorf("reconcile: looking up remote file for %s: %w", m.Relative, err)
	}

	return g, nil
}

func (e *Engine) setStatus(relative string, status Status, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status[relative] = StatusEntry{Path: relative, Status: status, Err: err}
}

func (e *Engine) recordWaiting(relative string, g gathered) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.waiting[relative] = WaitingUserEntry{
		Path:       relative,
		Local:      g.facts.Local,
		Journal:    g.facts.Journal,
		Remote:     g.facts.Remote,
		JournalID:  g.journalID,
		RemoteFile: g.remoteFile,
	}
	e.status[relative] = StatusEntry{Path: relative, Status: StatusWaitingUser}
}
