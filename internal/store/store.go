// Package store implements the chunk store adapter (C2): a stateless byte
// fetcher over named paths, with a local-filesystem and an S3-compatible
// backend. It does no parsing of the bytes it moves.
package store

import (
	"context"

	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// Store fetches, writes, and lists raw bytes at named paths. Implementations
// must tolerate concurrent calls; the caller is responsible for bounding
// concurrency.
type Store interface {
	// Get returns the bytes at path, or a wmserr with KindNotFound /
	// KindTransportError.
	Get(ctx context.Context, path string) ([]byte, error)
	// Put writes bytes at path, overwriting any existing object.
	Put(ctx context.Context, path string, data []byte) error
	// Delete removes path. Deleting a path that doesn't exist is not an
	// error (idempotent).
	Delete(ctx context.Context, path string) error
	// List returns every path with the given prefix. The read path never
	// calls it.
	List(ctx context.Context, prefix string) ([]string, error)
}

// notFound builds the store package's NotFound error for a given path.
func notFound(path string) error {
	return wmserr.New(wmserr.KindNotFound, "no object at path "+path)
}

func transportErr(path string, err error) error {
	return wmserr.Wrap(wmserr.KindTransportError, "store operation failed for "+path, err)
}
