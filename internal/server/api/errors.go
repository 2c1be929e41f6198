package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coldforge/syncpod/internal/rpcwire"
	"github.com/coldforge/syncpod/internal/server/fileindex"
)

func unauthenticatedErr(msg string) error {
	return rpcwire.NewError(rpcwire.KindUnauthenticated, "%s", msg)
}

func invalidArgumentErr(format string, args ...any) error {
	return rpcwire.NewError(rpcwire.KindInvalidArgument, format, args...)
}

// classify maps a domain-package error into a *rpcwire.Error with the Kind
// spec §7 assigns it, so writeError can pick the right HTTP status.
func classify(err error) *rpcwire.Error {
	var rpcErr *rpcwire.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	switch {
	case errors.Is(err, fileindex.ErrQuotaExceeded):
		return rpcwire.NewError(rpcwire.KindResourceExhausted, "%s", err.Error())
	default:
		return rpcwire.NewError(rpcwire.KindUnknown, "%s", err.Error())
	}
}

// writeError writes err as a JSON rpcwire.ErrorResponse with the status
// spec §7 maps its Kind to.
func writeError(w http.ResponseWriter, err error) {
	rpcErr := classify(err)

	status := rpcwire.HTTPStatus(rpcErr.Kind)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(rpcwire.ErrorResponse{
		Kind:    rpcErr.Kind.String(),
		Message: rpcErr.Message,
	})
}
