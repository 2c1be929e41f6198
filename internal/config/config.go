// Package config loads the sync agent's config.json (spec §6: "A JSON
// document config.json in the working directory with optional fields
// {url, credentials:{email,password}, sync_dir}"), following the teacher's
// internal/config package shape (Load, DefaultConfig, paths.go for
// XDG-aware default locations) but over encoding/json rather than the
// teacher's BurntSushi/toml, because this system's own config file format
// is explicitly JSON.
package config

// Credentials holds the optional saved login for non-interactive use.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Config is the full set of fields config.json may carry. Every field is
// optional; Validate only rejects values that are present but malformed,
// mirroring the teacher's "zero-config first run" philosophy.
type Config struct {
	URL         string       `json:"url,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
	SyncDir     string       `json:"sync_dir,omitempty"`
}

// DefaultConfig returns a Config with no fields set, the same role the
// teacher's DefaultConfig plays for the zero-config path.
func DefaultConfig() *Config {
	return &Config{}
}
