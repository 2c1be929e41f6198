package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/coldforge/syncpod/internal/config"
	"github.com/coldforge/syncpod/internal/journal"
	"github.com/coldforge/syncpod/internal/pathmap"
	"github.com/coldforge/syncpod/internal/reconcile"
	"github.com/coldforge/syncpod/internal/syncclient"
)

// buildEngine wires a pathmap.Mapper, journal.Store, and syncclient.Client
// into a reconcile.Engine, the shared construction path for refresh, status,
// and resolve. Returns a cleanup func that closes the journal.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*reconcile.Engine, func(), error) {
	if cfg.SyncDir == "" {
		return nil, nil, fmt.Errorf("sync_dir not configured — set it in %s", resolveConfigPath())
	}

	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("url not configured — set it in %s", resolveConfigPath())
	}

	mapper, err := pathmap.New(cfg.SyncDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving sync directory: %w", err)
	}

	journalPath := filepath.Join(mapper.SyncRoot(), pathmap.JournalFileName)

	js, err := journal.Open(ctx, journalPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening sync journal: %w", err)
	}

	tokenSource, err := syncclient.TokenSourceFromPath(config.DefaultSessionPath(), logger)
	if err != nil {
		js.Close()

		return nil, nil, fmt.Errorf("%w — run 'syncpod login'", err)
	}

	client := syncclient.New(cfg.URL, transferHTTPClient(), tokenSource, logger)

	engine := reconcile.NewEngine(mapper, js, client, logger)

	cleanup := func() {
		js.Close()
	}

	return engine, cleanup, nil
}
