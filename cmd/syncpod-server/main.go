// Command syncpod-server is the server process bootstrap (SPEC_FULL.md §0):
// it resolves configuration from the environment, connects to MongoDB and
// the configured blob backend, and serves the HTTP RPC API until signaled to
// stop. Grounded on the teacher's main.go + root.go split — a thin main that
// delegates to a run() returning an error — generalized from a CLI's cobra
// dispatch to a single long-running server loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coldforge/syncpod/internal/server/api"
	"github.com/coldforge/syncpod/internal/server/authtoken"
	"github.com/coldforge/syncpod/internal/server/blobstore"
	serverconfig "github.com/coldforge/syncpod/internal/server/config"
	"github.com/coldforge/syncpod/internal/server/fileindex"
	"github.com/coldforge/syncpod/internal/server/metrics"
	"github.com/coldforge/syncpod/internal/server/users"
)

// shutdownTimeout bounds how long in-flight requests get to drain once a
// shutdown signal arrives, mirroring the agent CLI's shutdownContext but
// applied to http.Server.Shutdown instead of a reconciliation pass.
const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger); err != nil {
		logger.Error("syncpod-server exiting", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := serverconfig.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	index, err := fileindex.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening file index: %w", err)
	}
	defer closeIndex(ctx, index, logger)

	blobs, err := blobstore.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	accounts := users.New(index.Database(), quotaPtr(cfg.StorageQuota))
	if err := accounts.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensuring account indexes: %w", err)
	}

	tokens := authtoken.New(cfg.JWTSecret)
	reg := metrics.New()

	handler := api.New(index, blobs, accounts, tokens, reg, logger)

	httpServer := &http.Server{
		Addr:    cfg.Endpoint,
		Handler: handler,
	}

	return serve(ctx, httpServer, logger)
}

// serve runs httpServer until ctx is canceled, then drains in-flight
// requests for up to shutdownTimeout before returning.
func serve(ctx context.Context, httpServer *http.Server, logger *slog.Logger) error {
	serveErr := make(chan error, 1)

	go func() {
		logger.Info("listening", slog.String("addr", httpServer.Addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err

			return
		}

		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining connections",
		slog.Duration("timeout", shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return <-serveErr
}

func closeIndex(ctx context.Context, index *fileindex.Index, logger *slog.Logger) {
	if err := index.Close(ctx); err != nil {
		logger.Error("closing file index", slog.String("error", err.Error()))
	}
}

// quotaPtr converts the server-wide default quota (0 == unlimited, per
// serverconfig.Config.StorageQuota) into the *int64 form spec §3's
// storage_quota field uses.
func quotaPtr(quota int64) *int64 {
	if quota == 0 {
		return nil
	}

	return &quota
}
