package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

const appName = "syncpod"

// ConfigFileName is config.json's fixed name, spelled out by spec §6.
const ConfigFileName = "config.json"

// DefaultConfigDir returns the platform-specific directory for config.json.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/syncpod). On
// macOS, uses ~/Library/Application Support/syncpod.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for the agent's
// own state (the session token file; the journal itself lives under the
// sync root per spec §6). On Linux, respects XDG_DATA_HOME.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath returns the default location of config.json, used when
// no --config flag overrides it.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ConfigFileName
	}

	return filepath.Join(dir, ConfigFileName)
}

// DefaultSessionPath returns the default location of the saved session
// token file (internal/syncclient.TokenSourceFromPath's argument).
func DefaultSessionPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return "session.json"
	}

	return filepath.Join(dir, "session.json")
}
