package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coldforge/syncpod/internal/rpcwire"
	"github.com/coldforge/syncpod/internal/server/users"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req rpcwire.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidArgumentErr("decoding register request: %v", err))

		return
	}

	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, invalidArgumentErr("email, username, and password are all required"))

		return
	}

	account, err := s.accts.Register(r.Context(), req.Email, req.Username, req.Password)
	if errors.Is(err, users.ErrEmailTaken) {
		// KindAborted is reserved for spec §7's "announced size exceeded
		// mid-stream" upload case; an already-registered email is a
		// precondition on the request the server cannot satisfy, the
		// closest existing row in the table.
		writeError(w, rpcwire.NewError(rpcwire.KindPreconditionFailed, "email already registered"))

		return
	}
	if err != nil {
		writeError(w, err)

		return
	}

	s.issueToken(w, account.ID)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req rpcwire.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidArgumentErr("decoding login request: %v", err))

		return
	}

	account, err := s.accts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		writeError(w, unauthenticatedErr("invalid email or password"))

		return
	}
	if err != nil {
		writeError(w, err)

		return
	}

	s.issueToken(w, account.ID)
}

func (s *Server) issueToken(w http.ResponseWriter, userID string) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcwire.AuthResponse{AccessToken: token, UserID: userID})
}

func (s *Server) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	account, err := s.accts.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)

		return
	}

	used, quota, err := s.index.Usage(r.Context(), userID)
	if err != nil {
		writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcwire.SelfResponse{
		ID:         account.ID,
		Username:   account.Username,
		UsedBytes:  used,
		QuotaBytes: quota,
	})
}
