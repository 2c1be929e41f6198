package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/coldforge/syncpod/internal/journal"
	"github.com/coldforge/syncpod/internal/pathmap"
	"github.com/coldforge/syncpod/internal/rpcwire"
)

// Executor applies a decided Action for one path. It performs that action's
// mutations; Decide itself performs no I/O (spec REDESIGN FLAGS:
// "Actions are then executed by a separate applier").
type Executor struct {
	journal *journal.Store
	remote  RemoteClient
	mapper  *pathmap.Mapper
	logger  *slog.Logger
}

// NewExecutor builds an Executor over the given journal, remote client, and
// path mapper.
func NewExecutor(js *journal.Store, remote RemoteClient, mapper *pathmap.Mapper, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{journal: js, remote: remote, mapper: mapper, logger: logger}
}

// gathered is everything a path's reconcile() call has in hand once facts
// are gathered: the gathered facts plus enough identity to act on each side.
type gathered struct {
	mapping    pathmap.Mapping
	facts      Facts
	journalID  string // journal entry id, if Journal.Present
	remoteFile rpcwire.RemoteFile // only populated when Remote.Present
}

// Apply executes action for g, performing mutations in the spec-mandated
// order: journal-remove (if any) → transfer → journal-add. Returns the
// resulting terminal Status, or StatusWaitingUser if action is ActionPrompt.
func (e *Executor) Apply(ctx context.Context, action Action, g gathered) (Status, error) {
	switch action {
	case ActionNone:
		return StatusSuccess, nil

	case ActionDownloadAdd:
		return e.downloadAdd(ctx, g, StatusAdded)

	case ActionJournalDeleteOnly:
		if err := e.deleteJournal(ctx, g.journalID); err != nil {
			return StatusFailed, err
		}

		return StatusSuccess, nil

	case ActionRemoteDeleteAndJournalDelete:
		if err := e.remote.Delete(ctx, g.remoteFile.ID); err != nil {
			return StatusFailed, fmt.Errorf("reconcile: deleting remote file %s: %w", g.mapping.Relative, err)
		}

		if err := e.deleteJournal(ctx, g.journalID); err != nil {
			return StatusFailed, err
		}

		return StatusDeleted, nil

	case ActionJournalDeleteThenDownloadAdd:
		if err := e.deleteJournal(ctx, g.journalID); err != nil {
			return StatusFailed, err
		}

		// Row 5: unlike the fresh download of row 2, a prior journal entry
		// existed (it just disagreed with the remote hash), so this is a
		// resync rather than a new addition — status Success, not Added.
		return e.downloadAdd(ctx, g, StatusSuccess)

	case ActionUploadAdd:
		return e.uploadAdd(ctx, g, StatusAdded)

	case ActionJournalAddFromRemote:
		if err := e.journal.Add(ctx, toJournalEntry(g.remoteFile)); err != nil {
			return StatusFailed, fmt.Errorf("reconcile: recording journal entry for %s: %w", g.mapping.Relative, err)
		}

		return StatusSuccess, nil

	case ActionPrompt:
		return StatusWaitingUser, nil

	case ActionDeleteLocalAndJournalDelete:
		if err := os.Remove(g.mapping.Absolute); err != nil && !errors.Is(err, os.ErrNotExist) {
			return StatusFailed, rpcwire.NewError(rpcwire.KindIoError, "deleting local file %s: %v", g.mapping.Relative, err)
		}

		if err := e.deleteJournal(ctx, g.journalID); err != nil {
			return StatusFailed, err
		}

		return StatusDeleted, nil

	case ActionJournalDeleteThenUploadAdd:
		if err := e.deleteJournal(ctx, g.journalID); err != nil {
			return StatusFailed, err
		}

		// Rows 10 and 13: a resync of a path with a prior journal entry —
		// status Success, not Added (see ActionJournalDeleteThenDownloadAdd).
		return e.uploadAdd(ctx, g, StatusSuccess)

	case ActionDownloadUpdateHash:
		if err := e.downloadRemote(ctx, g.mapping, g.remoteFile); err != nil {
			return StatusFailed, err
		}

		if err := e.journal.UpdateHash(ctx, g.journalID, g.remoteFile.Hash); err != nil {
			return StatusFailed, fmt.Errorf("reconcile: updating journal hash for %s: %w", g.mapping.Relative, err)
		}

		return StatusSuccess, nil

	default:
		return StatusFailed, fmt.Errorf("reconcile: unhandled action %d for %s", action, g.mapping.Relative)
	}
}

func (e *Executor) downloadAdd(ctx context.Context, g gathered, onSuccess Status) (Status, error) {
	if err := e.downloadRemote(ctx, g.mapping, g.remoteFile); err != nil {
		return StatusFailed, err
	}

	if err := e.journal.Add(ctx, toJournalEntry(g.remoteFile)); err != nil {
		return StatusFailed, fmt.Errorf("reconcile: recording journal entry for %s: %w", g.mapping.Relative, err)
	}

	return onSuccess, nil
}

func (e *Executor) uploadAdd(ctx context.Context, g gathered, onSuccess Status) (Status, error) {
	rf, err := e.uploadLocal(ctx, g.mapping)
	if err != nil {
		return StatusFailed, fmt.Errorf("reconcile: uploading %s: %w", g.mapping.Relative, err)
	}

	if err := e.journal.Add(ctx, toJournalEntry(rf)); err != nil {
		return StatusFailed, fmt.Errorf("reconcile: recording journal entry for %s: %w", g.mapping.Relative, err)
	}

	return onSuccess, nil
}

func (e *Executor) deleteJournal(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if err := e.journal.Delete(ctx, id); err != nil && !errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("reconcile: removing journal entry %s: %w", id, err)
	}

	return nil
}
