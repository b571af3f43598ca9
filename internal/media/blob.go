// Package media stores uploaded attachment blobs and cleans up the ones no
// record references anymore. Records hold media as URLs; the blob store is
// the only component that knows how a URL maps to bytes on disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrUnmanaged is returned by Remove for URLs that do not belong to this
// store, such as external links imported from another app.
var ErrUnmanaged = errors.New("url not managed by this store")

// BlobStore persists attachment payloads and addresses them by URL.
type BlobStore interface {
	// Save writes the payload under a fresh name, keeping the extension of
	// the client-supplied filename, and returns the URL to store on the
	// record.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)

	// Remove deletes the blob behind a URL. Removing an already-absent blob
	// is not an error; a URL this store does not own yields ErrUnmanaged.
	Remove(ctx context.Context, url string) error

	// Owns reports whether a URL addresses a blob in this store.
	Owns(url string) bool
}

// CleanupError aggregates the per-blob failures of an orphan sweep. The
// record mutation that triggered the sweep has already committed by the
// time this error surfaces.
type CleanupError struct {
	Failed []string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed for %d blob(s): %v", len(e.Failed), e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
