package reconcile

import "github.com/coldforge/syncpod/internal/rpcwire"

// WaitingUserEntry is a prompt awaiting resolution (spec §4.G "Prompt
// resolution"): the three facts at the moment a conflict was detected, kept
// around so skip/keep_local/keep_remote can act without re-gathering them.
type WaitingUserEntry struct {
	Path       string
	Local      Presence
	Journal    Presence
	Remote     Presence
	JournalID  string
	RemoteFile rpcwire.RemoteFile
}

// StatusEntry is one row of the UI-visible file-status table (spec §4.G
// "state machine of a file-status entry"). The reconciler task is its sole
// writer; the view layer only reads it.
type StatusEntry struct {
	Path   string
	Status Status
	Err    error
}

// Resolution is a command that resolves a WaitingUserEntry (spec §4.G).
type Resolution int

const (
	ResolutionSkip Resolution = iota
	ResolutionKeepLocal
	ResolutionKeepRemote
)

func (r Resolution) String() string {
	switch r {
	case ResolutionSkip:
		return "skip"
	case ResolutionKeepLocal:
		return "keep_local"
	case ResolutionKeepRemote:
		return "keep_remote"
	default:
		return "unknown"
	}
}
