package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldforge/syncpod/internal/config"
)

func TestBuildEngine_EmptySyncDir(t *testing.T) {
	cfg := &config.Config{URL: "http://example.com"}

	_, _, err := buildEngine(context.Background(), cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_dir not configured")
}

func TestBuildEngine_EmptyURL(t *testing.T) {
	cfg := &config.Config{SyncDir: t.TempDir()}

	_, _, err := buildEngine(context.Background(), cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url not configured")
}

func TestBuildEngine_NoSession(t *testing.T) {
	cfg := &config.Config{URL: "http://example.com", SyncDir: t.TempDir()}

	_, _, err := buildEngine(context.Background(), cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 'syncpod login'")
}
