package rpcwire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RemoteFile is the wire representation of a file as the server's index
// knows it (spec §3 "remote file": "{id, path, hash, size, created_at,
// modified_at, blob_handle}" — blob_handle is a server-internal detail that
// never crosses the wire).
type RemoteFile struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// RegisterRequest is the body of POST /v1/auth/register (spec §6:
// "Auth.Register(email, username, password) → {access_token, user_id}").
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /v1/auth/login (spec §6:
// "Auth.Login(email, password) → {access_token, user_id}").
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the body both auth routes return on success.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// SelfResponse is the body of GET /v1/users/self (spec §6:
// "User.GetSelf() → {id, username, storage_quota?, storage_used}").
type SelfResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	UsedBytes    int64  `json:"used_bytes"`
	QuotaBytes   *int64 `json:"quota_bytes,omitempty"`
}

// ErrorResponse is the JSON body returned alongside any non-2xx status.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RemoteFileEncoder writes a sequence of RemoteFile values as
// newline-delimited JSON, the format File.GetAll replies with (grounded on
// the teacher's delta-paging idiom, generalized to a single streamed
// sequence rather than a paged one). Callers drive it row-by-row from
// whatever cursor their file index returns.
type RemoteFileEncoder struct {
	enc *json.Encoder
}

// NewRemoteFileEncoder wraps w for newline-delimited RemoteFile encoding.
func NewRemoteFileEncoder(w io.Writer) *RemoteFileEncoder {
	return &RemoteFileEncoder{enc: json.NewEncoder(w)}
}

// Encode writes one RemoteFile followed by a newline.
func (e *RemoteFileEncoder) Encode(f RemoteFile) error {
	if err := e.enc.Encode(f); err != nil {
		return fmt.Errorf("rpcwire: encoding remote file: %w", err)
	}

	return nil
}

// ReadRemoteFileStream decodes a newline-delimited JSON stream of
// RemoteFile values, invoking fn for each.
func ReadRemoteFileStream(r io.Reader, fn func(RemoteFile) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var f RemoteFile
		if err := json.Unmarshal(line, &f); err != nil {
			return fmt.Errorf("rpcwire: decoding remote file line: %w", err)
		}

		if err := fn(f); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("rpcwire: scanning remote file stream: %w", err)
	}

	return nil
}
