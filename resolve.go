package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coldforge/syncpod/internal/reconcile"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Resolve conflicts left by the last refresh",
		Long: `Resolve WaitingUser conflicts recorded during the last 'syncpod refresh'
run in this process.

Strategies:
  --skip         Leave local, journal, and remote untouched
  --keep-local   Upload the local file, overwriting remote
  --keep-remote  Download the remote file, overwriting local

Use --all to resolve every outstanding conflict with the chosen strategy.
Without --all, a path argument is required.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			return runResolve(cmd.Context(), cc, cmd, args)
		},
	}

	cmd.Flags().Bool("skip", false, "leave local, journal, and remote untouched")
	cmd.Flags().Bool("keep-local", false, "upload local file to overwrite remote")
	cmd.Flags().Bool("keep-remote", false, "download remote file to overwrite local")
	cmd.Flags().Bool("all", false, "resolve every outstanding conflict")
	cmd.Flags().Bool("dry-run", false, "preview resolution without executing")

	cmd.MarkFlagsMutuallyExclusive("skip", "keep-local", "keep-remote")

	return cmd
}

func runResolve(ctx context.Context, cc *CLIContext, cmd *cobra.Command, args []string) error {
	resolution, err := resolveStrategy(cmd)
	if err != nil {
		return err
	}

	all := cmd.Flags().Changed("all")

	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	if !all && len(args) == 0 {
		return fmt.Errorf("specify a path, or use --all to resolve every conflict")
	}

	if all && len(args) > 0 {
		return fmt.Errorf("--all and a path argument are mutually exclusive")
	}

	engine, cleanup, err := buildEngine(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.Refresh(ctx); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	waiting := engine.Waiting()

	if all {
		return resolveAll(ctx, cc, engine, waiting, resolution, dryRun)
	}

	return resolveOne(ctx, cc, engine, waiting, args[0], resolution, dryRun)
}

func resolveStrategy(cmd *cobra.Command) (reconcile.Resolution, error) {
	skip := cmd.Flags().Changed("skip")
	keepLocal := cmd.Flags().Changed("keep-local")
	keepRemote := cmd.Flags().Changed("keep-remote")

	switch {
	case skip:
		return reconcile.ResolutionSkip, nil
	case keepLocal:
		return reconcile.ResolutionKeepLocal, nil
	case keepRemote:
		return reconcile.ResolutionKeepRemote, nil
	default:
		return 0, fmt.Errorf("specify a resolution strategy: --skip, --keep-local, or --keep-remote")
	}
}

func resolveAll(
	ctx context.Context, cc *CLIContext, engine *reconcile.Engine,
	waiting []reconcile.WaitingUserEntry, resolution reconcile.Resolution, dryRun bool,
) error {
	if len(waiting) == 0 {
		fmt.Println("No outstanding conflicts.")

		return nil
	}

	for _, w := range waiting {
		if dryRun {
			cc.Statusf("Would resolve %s as %s\n", w.Path, resolution)

			continue
		}

		if err := engine.Resolve(ctx, w.Path, resolution); err != nil {
			return fmt.Errorf("resolving %s: %w", w.Path, err)
		}

		cc.Statusf("Resolved %s as %s\n", w.Path, resolution)
	}

	return nil
}

func resolveOne(
	ctx context.Context, cc *CLIContext, engine *reconcile.Engine,
	waiting []reconcile.WaitingUserEntry, path string, resolution reconcile.Resolution, dryRun bool,
) error {
	target, err := findConflict(waiting, path)
	if err != nil {
		return err
	}

	if target == nil {
		return fmt.Errorf("no outstanding conflict at %s", path)
	}

	if dryRun {
		cc.Statusf("Would resolve %s as %s\n", target.Path, resolution)

		return nil
	}

	if err := engine.Resolve(ctx, target.Path, resolution); err != nil {
		return fmt.Errorf("resolving %s: %w", target.Path, err)
	}

	cc.Statusf("Resolved %s as %s\n", target.Path, resolution)

	return nil
}

// errAmbiguousPrefix is returned when a path prefix matches more than one
// outstanding conflict and the caller needs to provide a longer prefix.
var errAmbiguousPrefix = errors.New("ambiguous path prefix — provide more characters")

// findConflict searches an outstanding-conflict list by exact path, falling
// back to a prefix match with ambiguity detection.
func findConflict(waiting []reconcile.WaitingUserEntry, path string) (*reconcile.WaitingUserEntry, error) {
	for i := range waiting {
		if waiting[i].Path == path {
			return &waiting[i], nil
		}
	}

	var match *reconcile.WaitingUserEntry

	for i := range waiting {
		if strings.HasPrefix(waiting[i].Path, path) {
			if match != nil {
				return nil, errAmbiguousPrefix
			}

			match = &waiting[i]
		}
	}

	return match, nil
}
