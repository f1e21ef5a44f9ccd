// Package blobstore defines the blob storage capability the pipeline consumes.
//
// Paths are slash-separated and relative to the store root. All operations
// must tolerate concurrent independent calls from multiple workers.
package blobstore

import "context"

// Store is the set of blob operations the pipeline needs.
type Store interface {
	// List returns the paths of all blobs whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Read returns the content of the blob at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, overwriting any existing blob.
	Write(ctx context.Context, path string, data []byte) error

	// Copy duplicates the blob at src to dst, overwriting any existing blob.
	Copy(ctx context.Context, src, dst string) error

	// Delete removes the blob at path.
	Delete(ctx context.Context, path string) error
}
