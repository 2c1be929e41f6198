package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/coldforge/syncpod/internal/rpcwire"
	"github.com/coldforge/syncpod/internal/server/blobstore"
	"github.com/coldforge/syncpod/internal/server/fileindex"
)

// handleUpload implements POST /v1/files: decode the framed upload body,
// stream its chunks straight into the blob store while it verifies hash and
// size, then commit the index row and quota update in one transaction
// (spec §4.E). On any failure the partially written blob is already
// discarded by blobstore.Put; nothing further needs cleanup here.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	fr := rpcwire.NewFrameReader(r.Body)

	info, err := fr.ReadUploadInfo()
	if err != nil {
		writeError(w, err)

		return
	}

	if info.Path == "" {
		writeError(w, invalidArgumentErr("upload info missing path"))

		return
	}

	written, err := s.blobs.Put(r.Context(), info.Hash, info.Size, fr.Chunks())
	if errors.Is(err, blobstore.ErrStreamOverflow) {
		writeError(w, rpcwire.NewError(rpcwire.KindAborted, "uploaded content exceeded announced size: %v (wrote %d bytes)", err, written))

		return
	}
	if errors.Is(err, blobstore.ErrHashMismatch) || errors.Is(err, blobstore.ErrSizeMismatch) {
		writeError(w, rpcwire.NewError(rpcwire.KindDataLoss, "uploaded content did not verify: %v (wrote %d bytes)", err, written))

		return
	}
	if err != nil {
		writeError(w, err)

		return
	}

	id := uuid.NewString()

	result, err := s.index.Put(r.Context(), userID, info.Path, id, info.Hash, info.Size)
	if errors.Is(err, fileindex.ErrQuotaExceeded) {
		// The blob is already committed by hash; it may be shared by
		// another (owner, path) or a future upload, so it is not
		// deleted here — committed blobs are deleted only when an index
		// row pointing at them is replaced or deleted.
		writeError(w, err)

		return
	}
	if err != nil {
		writeError(w, err)

		return
	}

	if result.ReplacedHash != "" && result.ReplacedHash != info.Hash {
		if delErr := s.blobs.Delete(r.Context(), result.ReplacedHash); delErr != nil {
			s.logger.Error("failed to delete superseded blob", "hash", result.ReplacedHash, "error", delErr)
		}
	}

	writeJSON(w, result.File)
}

// handleDownload implements GET /v1/files/id/{id}: a plain chunked byte
// stream of the blob's content, unframed (spec §6).
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id := r.PathValue("id")

	rf, err := s.index.GetByID(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)

		return
	}

	blob, err := s.blobs.Open(r.Context(), rf.Hash)
	if errors.Is(err, blobstore.ErrNotFound) {
		writeError(w, rpcwire.NewError(rpcwire.KindNotFound, "blob for file %s is missing", id))

		return
	}
	if err != nil {
		writeError(w, err)

		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", "application/octet-stream")

	if _, err := io.Copy(w, blob); err != nil {
		s.logger.Error("download stream interrupted", "id", id, "error", err)
	}
}

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id := r.PathValue("id")

	rf, err := s.index.GetByID(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)

		return
	}

	writeJSON(w, rf)
}

func (s *Server) handleGetByPath(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	path := r.URL.Query().Get("path")

	if path == "" {
		writeError(w, invalidArgumentErr("path query parameter is required"))

		return
	}

	rf, err := s.index.GetByPath(r.Context(), userID, path)
	if err != nil {
		writeError(w, err)

		return
	}

	writeJSON(w, rf)
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/x-ndjson")

	enc := rpcwire.NewRemoteFileEncoder(w)

	err := s.index.ListAll(r.Context(), userID, func(rf rpcwire.RemoteFile) error {
		return enc.Encode(rf)
	})
	if err != nil {
		s.logger.Error("list stream interrupted", "error", err)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	id := r.PathValue("id")

	hash, err := s.index.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)

		return
	}

	if err := s.blobs.Delete(r.Context(), hash); err != nil {
		s.logger.Error("failed to delete blob after index removal", "hash", hash, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
