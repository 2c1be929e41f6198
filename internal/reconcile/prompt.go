package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldforge/syncpod/internal/journal"
	"github.com/coldforge/syncpod/internal/pathmap"
)

// ErrNoSuchPrompt is returned by Resolve when path has no outstanding
// WaitingUser entry.
var ErrNoSuchPrompt = errors.New("reconcile: no prompt waiting for path")

// Waiting returns a snapshot of every currently outstanding prompt. Prompts
// for distinct paths coexist independently (spec §5 "prompts for different
// paths may coexist").
func (e *Engine) Waiting() []WaitingUserEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]WaitingUserEntry, 0, len(e.waiting))
	for _, w := range e.waiting {
		out = append(out, w)
	}

	return out
}

// Resolve applies one of the three resolver commands to the outstanding
// prompt at path (spec §4.G "Prompt resolution"). On return the prompt is no
// longer outstanding; the path's status has transitioned to a terminal
// value as spec §4.G's state machine requires ("WaitingUser... transitions
// to WaitingQueue upon any resolver command and from there to a terminal
// status").
func (e *Engine) Resolve(ctx context.Context, path string, resolution Resolution) error {
	entry, ok := e.takeWaiting(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchPrompt, path)
	}

	e.setStatus(path, StatusWaitingQueue, nil)

	m, err := e.mapper.FromRelative(path)
	if err != nil {
		e.setStatus(path, StatusFailed, err)

		return nil
	}

	status, err := e.applyResolution(ctx, m, entry, resolution)
	e.setStatus(path, status, err)

	return nil
}

func (e *Engine) applyResolution(ctx context.Context, m pathmap.Mapping, entry WaitingUserEntry, resolution Resolution) (Status, error) {
	switch resolution {
	case ResolutionSkip:
		// spec: "leaves all three sources untouched; final status Success."
		return StatusSuccess, nil

	case ResolutionKeepLocal:
		if err := e.deleteJournalIfPresent(ctx, entry); err != nil {
			return StatusFailed, err
		}

		rf, err := e.executor.uploadLocal(ctx, m)
		if err != nil {
			return StatusFailed, fmt.Errorf("reconcile: keep_local upload of %s: %w", entry.Path, err)
		}

		if err := e.journal.Add(ctx, toJournalEntry(rf)); err != nil {
			return StatusFailed, fmt.Errorf("reconcile: recording journal entry for %s: %w", entry.Path, err)
		}

		return StatusSuccess, nil

	case ResolutionKeepRemote:
		if err := e.deleteJournalIfPresent(ctx, entry); err != nil {
			return StatusFailed, err
		}

		if err := deleteLocalIfPresent(m.Absolute); err != nil {
			return StatusFailed, err
		}

		if err := e.executor.downloadRemote(ctx, m, entry.RemoteFile); err != nil {
			return StatusFailed, fmt.Errorf("reconcile: keep_remote download of %s: %w", entry.Path, err)
		}

		if err := e.journal.Add(ctx, toJournalEntry(entry.RemoteFile)); err != nil {
			return StatusFailed, fmt.Errorf("reconcile: recording journal entry for %s: %w", entry.Path, err)
		}

		return StatusSuccess, nil

	default:
		return StatusFailed, fmt.Errorf("reconcile: unknown resolution %v", resolution)
	}
}

func (e *Engine) deleteJournalIfPresent(ctx context.Context, entry WaitingUserEntry) error {
	if !entry.Journal.Present {
		return nil
	}

	if err := e.journal.Delete(ctx, entry.JournalID); err != nil && !errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("reconcile: removing journal entry %s: %w", entry.JournalID, err)
	}

	return nil
}

func (e *Engine) takeWaiting(path string) (WaitingUserEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.waiting[path]
	if ok {
		delete(e.waiting, path)
	}

	return entry, ok
}
