package reconcile

import (
	"context"
	"io"

	"github.com/coldforge/syncpod/internal/content"
	"github.com/coldforge/syncpod/internal/rpcwire"
)

// RemoteClient is the subset of *syncclient.Client the executor depends on.
// Defined here, at the consumer, per "accept interfaces, return structs" —
// the concrete client lives in internal/syncclient.
type RemoteClient interface {
	Upload(ctx context.Context, relativePath string, r io.Reader, meta content.Meta) (rpcwire.RemoteFile, error)
	Download(ctx context.Context, id, expectedHash string, w io.Writer) (int64, error)
	GetByPath(ctx context.Context, relativePath string) (rpcwire.RemoteFile, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context, fn func(rpcwire.RemoteFile) error) error
	GetSelf(ctx context.Context) (rpcwire.SelfResponse, error)
}
