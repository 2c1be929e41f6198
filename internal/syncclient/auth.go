package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coldforge/syncpod/internal/rpcwire"
)

// ErrNotLoggedIn is returned by TokenSourceFromPath when no saved token
// exists at the given path.
var ErrNotLoggedIn = errors.New("syncclient: not logged in")

// savedToken is the on-disk shape of a saved session: the bearer token plus
// enough bookkeeping to tell the caller it needs a fresh login once expired.
// The server does not support refresh tokens (spec: tokens are one-week
// bearer tokens, re-issued wholesale by Login), so there is no silent
// refresh path to wire here, unlike the teacher's oauth2 token source.
type savedToken struct {
	Token   string    `json:"token"`
	Expiry  time.Time `json:"expiry"`
	Subject string    `json:"subject"`
}

// fileTokenSource serves a token loaded once from disk. It does not refresh;
// callers observe ErrNotLoggedIn (surfaced as rpcwire.KindUnauthenticated by
// the server) once the token expires and must Login again.
type fileTokenSource struct {
	mu    sync.RWMutex
	token savedToken
}

func (s *fileTokenSource) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token.Token == "" {
		return "", ErrNotLoggedIn
	}

	if !s.token.Expiry.IsZero() && time.Now().After(s.token.Expiry) {
		return "", fmt.Errorf("syncclient: session expired at %s: %w", s.token.Expiry, ErrNotLoggedIn)
	}

	return s.token.Token, nil
}

func (s *fileTokenSource) set(t savedToken) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = t
}

// Register creates a new account and returns a TokenSource for it,
// persisting the session to tokenPath.
func Register(ctx context.Context, baseURL, tokenPath, email, username, password string, logger *slog.Logger) (TokenSource, error) {
	c := New(baseURL, nil, nil, logger)

	var resp rpcwire.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register",
		rpcwire.RegisterRequest{Email: email, Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}

	return saveSession(tokenPath, resp.AccessToken, logger)
}

// Login authenticates an existing account and returns a TokenSource,
// persisting the session to tokenPath.
func Login(ctx context.Context, baseURL, tokenPath, email, password string, logger *slog.Logger) (TokenSource, error) {
	c := New(baseURL, nil, nil, logger)

	var resp rpcwire.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login",
		rpcwire.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}

	return saveSession(tokenPath, resp.AccessToken, logger)
}

// TokenSourceFromPath loads a previously saved session from tokenPath.
// Returns ErrNotLoggedIn if no session file exists.
func TokenSourceFromPath(tokenPath string, logger *slog.Logger) (TokenSource, error) {
	raw, err := os.ReadFile(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}

	if err != nil {
		return nil, fmt.Errorf("syncclient: reading session file %s: %w", tokenPath, err)
	}

	var tok savedToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("syncclient: decoding session file %s: %w", tokenPath, err)
	}

	logger.Info("loaded saved session", slog.String("path", tokenPath), slog.Time("expiry", tok.Expiry))

	src := &fileTokenSource{}
	src.set(tok)

	return src, nil
}

// Logout removes the saved session file. Returns nil if already logged out.
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no session file to remove", slog.String("path", tokenPath))

		return nil
	}

	if err != nil {
		return fmt.Errorf("syncclient: removing session file %s: %w", tokenPath, err)
	}

	logger.Info("logout: removed session file", slog.String("path", tokenPath))

	return nil
}

func saveSession(tokenPath, token string, logger *slog.Logger) (TokenSource, error) {
	claims, err := decodeJWTClaimsUnverified(token)
	if err != nil {
		logger.Warn("could not decode session expiry, saving without it", slog.String("error", err.Error()))
	}

	tok := savedToken{Token: token, Expiry: claims.expiry, Subject: claims.subject}

	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("syncclient: encoding session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(tokenPath), 0o700); err != nil {
		return nil, fmt.Errorf("syncclient: creating session directory: %w", err)
	}

	if err := os.WriteFile(tokenPath, raw, 0o600); err != nil {
		return nil, fmt.Errorf("syncclient: writing session file %s: %w", tokenPath, err)
	}

	logger.Info("session saved", slog.String("path", tokenPath), slog.Time("expiry", tok.Expiry))

	src := &fileTokenSource{}
	src.set(tok)

	return src, nil
}
