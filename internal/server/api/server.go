// Package api implements the server's HTTP route table (SPEC_FULL.md §6):
// auth, self, and file CRUD/streaming routes, wired to fileindex, blobstore,
// users, and authtoken. Grounded on the teacher's net/http-first client
// idiom turned inside out for the server side, and on the go-storage
// example's streaming-body handler shape.
package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coldforge/syncpod/internal/server/authtoken"
	"github.com/coldforge/syncpod/internal/server/blobstore"
	"github.com/coldforge/syncpod/internal/server/fileindex"
	"github.com/coldforge/syncpod/internal/server/metrics"
	"github.com/coldforge/syncpod/internal/server/users"
)

// Server wires the domain packages into an http.Handler.
type Server struct {
	index   *fileindex.Index
	blobs   blobstore.Backend
	accts   *users.Store
	tokens  *authtoken.Issuer
	logger  *slog.Logger
	metrics *metrics.Registry

	mux *http.ServeMux
}

// New builds the route table. metricsReg may be nil, in which case metrics
// are collected into a throwaway registry and /metrics is still served —
// callers that care about the numbers pass their own via the same
// constructor the teacher uses for optional decorators.
func New(
	index *fileindex.Index, blobs blobstore.Backend, accts *users.Store, tokens *authtoken.Issuer,
	metricsReg *metrics.Registry, logger *slog.Logger,
) *Server {
	if metricsReg == nil {
		metricsReg = metrics.New()
	}

	s := &Server{index: index, blobs: blobs, accts: accts, tokens: tokens, metrics: metricsReg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/register", s.timed(metrics.OpRegister, s.handleRegister))
	mux.HandleFunc("POST /v1/auth/login", s.timed(metrics.OpLogin, s.handleLogin))
	mux.HandleFunc("GET /v1/users/self", s.authenticated(s.handleGetSelf))
	mux.HandleFunc("POST /v1/files", s.authenticated(s.timed(metrics.OpUpload, s.handleUpload)))
	mux.HandleFunc("GET /v1/files/id/{id}", s.authenticated(s.timed(metrics.OpDownload, s.handleDownload)))
	mux.HandleFunc("GET /v1/files/id/{id}/meta", s.authenticated(s.handleGetByID))
	mux.HandleFunc("GET /v1/files/by-path", s.authenticated(s.handleGetByPath))
	mux.HandleFunc("GET /v1/files", s.authenticated(s.timed(metrics.OpList, s.handleListAll)))
	mux.HandleFunc("DELETE /v1/files/id/{id}", s.authenticated(s.timed(metrics.OpDelete, s.handleDelete)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registerer(), promhttp.HandlerOpts{}))

	s.mux = mux

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
