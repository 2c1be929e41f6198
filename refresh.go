package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coldforge/syncpod/internal/reconcile"
)

// defaultWatchInterval is the polling period for --watch. Not real-time
// filesystem watching (non-goal) — a fixed-period refresh loop instead.
const defaultWatchInterval = 30 * time.Second

func newRefreshCmd() *cobra.Command {
	var watch bool

	var now bool

	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one reconciliation pass against the sync directory",
		Long: `Walk the sync directory and the remote file listing once, reconciling
every path against the local journal. Conflicting paths are left in
WaitingUser status — see 'syncpod status' and 'syncpod resolve'.

With --watch, refresh repeats on a fixed interval instead of running once,
until interrupted.

With --now, instead of running a pass itself, nudge an already-running
'refresh --watch' loop to run one immediately rather than waiting for its
next --interval tick.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			switch {
			case now:
				return sendSIGHUP(defaultPIDPath())
			case watch:
				return runWatch(cmd.Context(), cc, interval)
			default:
				return runRefresh(cmd.Context(), cc)
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "repeat refresh on a fixed interval until interrupted")
	cmd.Flags().BoolVar(&now, "now", false, "nudge a running 'refresh --watch' loop to run a pass immediately")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval for --watch")
	cmd.MarkFlagsMutuallyExclusive("watch", "now")

	return cmd
}

func runRefresh(ctx context.Context, cc *CLIContext) error {
	engine, cleanup, err := buildEngine(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	entries := engine.Status()
	used, quota := engine.StorageUsage()

	if cc.Flags.JSON {
		return printRefreshJSON(entries, used, quota)
	}

	printRefreshText(cc, entries, used, quota)

	if countFailed(entries) > 0 {
		return fmt.Errorf("refresh completed with %d failures", countFailed(entries))
	}

	return nil
}

// runWatch runs refresh repeatedly until the context is cancelled by
// SIGINT/SIGTERM. Only one watcher may run per data directory at a time,
// enforced by a flock'd PID file (the same single-instance guard the
// teacher uses for its daemon mode). SIGHUP (sent via 'refresh --now' and
// sendSIGHUP) short-circuits the wait for the next --interval tick and
// triggers an immediate pass instead.
func runWatch(ctx context.Context, cc *CLIContext, interval time.Duration) error {
	pidPath := defaultPIDPath()

	release, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer release()

	ctx = shutdownContext(ctx, cc.Logger)

	nudgeCh := make(chan os.Signal, 1)
	signal.Notify(nudgeCh, syscall.SIGHUP)
	defer signal.Stop(nudgeCh)

	cc.Statusf("Watching every %s (ctrl-c to stop, SIGHUP or 'refresh --now' to run immediately)\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runRefresh(ctx, cc); err != nil {
			cc.Logger.Warn("refresh failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-nudgeCh:
			cc.Logger.Info("received SIGHUP, running refresh immediately")
			ticker.Reset(interval)
		case <-ticker.C:
		}
	}
}

func countFailed(entries []reconcile.StatusEntry) int {
	n := 0

	for _, e := range entries {
		if e.Status == reconcile.StatusFailed {
			n++
		}
	}

	return n
}

func countStatus(entries []reconcile.StatusEntry, s reconcile.Status) int {
	n := 0

	for _, e := range entries {
		if e.Status == s {
			n++
		}
	}

	return n
}

func printRefreshText(cc *CLIContext, entries []reconcile.StatusEntry, used int64, quota *int64) {
	if len(entries) == 0 {
		cc.Statusf("Already in sync.\n")
	} else {
		added := countStatus(entries, reconcile.StatusAdded)
		deleted := countStatus(entries, reconcile.StatusDeleted)
		waiting := countStatus(entries, reconcile.StatusWaitingUser)
		failed := countFailed(entries)

		cc.Statusf("Refresh complete (%d paths)\n", len(entries))

		if added > 0 {
			cc.Statusf("  Added:    %d\n", added)
		}

		if deleted > 0 {
			cc.Statusf("  Deleted:  %d\n", deleted)
		}

		if waiting > 0 {
			cc.Statusf("  Waiting:  %d (run 'syncpod resolve')\n", waiting)
		}

		if failed > 0 {
			cc.Statusf("  Failed:   %d\n", failed)
		}
	}

	cc.Statusf("Storage: %s / %s\n", formatSize(used), formatQuota(quota))
}

// refreshJSONEntry is the JSON output schema for one status row.
type refreshJSONEntry struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type refreshJSONOutput struct {
	Entries    []refreshJSONEntry `json:"entries"`
	UsedBytes  int64               `json:"used_bytes"`
	QuotaBytes *int64              `json:"quota_bytes,omitempty"`
}

func printRefreshJSON(entries []reconcile.StatusEntry, used int64, quota *int64) error {
	out := refreshJSONOutput{
		Entries:    make([]refreshJSONEntry, 0, len(entries)),
		UsedBytes:  used,
		QuotaBytes: quota,
	}

	for _, e := range entries {
		je := refreshJSONEntry{Path: e.Path, Status: e.Status.String()}
		if e.Err != nil {
			je.Error = e.Err.Error()
		}

		out.Entries = append(out.Entries, je)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// formatQuota renders quota as "unlimited" (spec: the infinity symbol) when
// the account has none.
func formatQuota(quota *int64) string {
	if quota == nil {
		return "unlimited"
	}

	return formatSize(*quota)
}
