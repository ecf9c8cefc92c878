// Package noop implements a blob store that discards every payload.
package noop

import "context"

// BlobStore drops all writes. Used when raw payload backups are disabled.
type BlobStore struct{}

// PutObject discards the data and returns an opaque URI.
func (BlobStore) PutObject(_ context.Context, path string, _ string, _ []byte) (string, error) {
	return "noop://" + path, nil
}
