package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coldforge/syncpod/internal/reconcile"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Refresh and show the file-status table",
		Long: `Run one reconciliation pass (like 'syncpod refresh') and print the
resulting file-status table plus storage usage. The process holds no
state between invocations, so a fresh pass is always needed to populate
the table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			return runStatus(cmd.Context(), cc)
		},
	}
}

func runStatus(ctx context.Context, cc *CLIContext) error {
	engine, cleanup, err := buildEngine(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.Refresh(ctx); err != nil {
		return fmt.Errorf("status: %w", err)
	}

	entries := engine.Status()
	used, quota := engine.StorageUsage()

	if cc.Flags.JSON {
		return printStatusJSON(entries, used, quota)
	}

	printStatusText(entries, used, quota)

	return nil
}

type statusJSONEntry struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type statusJSONOutput struct {
	Files      []statusJSONEntry `json:"files"`
	UsedBytes  int64              `json:"used_bytes"`
	QuotaBytes *int64             `json:"quota_bytes,omitempty"`
}

func printStatusJSON(entries []reconcile.StatusEntry, used int64, quota *int64) error {
	out := statusJSONOutput{
		Files:      make([]statusJSONEntry, 0, len(entries)),
		UsedBytes:  used,
		QuotaBytes: quota,
	}

	for _, e := range entries {
		je := statusJSONEntry{Path: e.Path, Status: e.Status.String()}
		if e.Err != nil {
			je.Error = e.Err.Error()
		}

		out.Files = append(out.Files, je)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// statusText renders one status entry's status column, uncolored — used
// both to compute column width and, padded, as the input to colorizeStatus
// so escape codes (zero display width) never skew alignment.
func statusText(e reconcile.StatusEntry) string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", e.Status, e.Err)
	}

	return e.Status.String()
}

func printStatusText(entries []reconcile.StatusEntry, used int64, quota *int64) {
	if len(entries) == 0 {
		fmt.Println("No files tracked.")
	} else {
		pathWidth, statusWidth := len("PATH"), len("STATUS")

		for _, e := range entries {
			if len(e.Path) > pathWidth {
				pathWidth = len(e.Path)
			}

			if n := len(statusText(e)); n > statusWidth {
				statusWidth = n
			}
		}

		fmt.Printf("%-*s  %-*s\n", pathWidth, "PATH", statusWidth, "STATUS")

		for _, e := range entries {
			padded := fmt.Sprintf("%-*s", statusWidth, statusText(e))
			if colorEnabled() {
				padded = colorizeStatus(e.Status) + padded[len(e.Status.String()):]
			}

			fmt.Printf("%-*s  %s\n", pathWidth, e.Path, padded)
		}
	}

	fmt.Printf("\nStorage: %s / %s\n", formatSize(used), formatQuota(quota))
}
