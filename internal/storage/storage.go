// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup;
// the MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"
)

// Delimiter separates the path-like segments of a key.
const Delimiter = "/"

// MetadataPrefix is the header namespace user metadata lives under.
const MetadataPrefix = "X-Amz-Meta-"

// ErrNotFound is returned when the requested key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
	// Metadata holds user metadata keyed by canonical header name,
	// e.g. "X-Amz-Meta-Original-Name".
	Metadata map[string]string
}

// PutOptions carries the headers attached to an object at write time.
type PutOptions struct {
	ContentType string
	// Metadata keys may be given with or without MetadataPrefix.
	Metadata map[string]string
}

// ListOptions narrows a listing.
type ListOptions struct {
	Prefix    string
	Recursive bool
	// StartAfter resumes a listing after the given key.
	StartAfter string
}

// Storage is the interface for writing, inspecting and signing objects.
type Storage interface {
	// Put streams data to the store under key. size is -1 when unknown.
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	// Stat returns an object's metadata, or ErrNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// List lazily enumerates objects in key order. Stopping the iteration
	// releases the underlying listing.
	List(ctx context.Context, opts ListOptions) iter.Seq2[ObjectInfo, error]
	// PresignGet returns a time-bounded download URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PresignPut returns a time-bounded upload URL for key.
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL constructs the policy-reliant browser URL for a given key.
	PublicURL(key string) string
}

// Bucket is implemented by backends that own a bucket lifecycle.
type Bucket interface {
	// EnsureBucket creates the bucket with a public-read policy if it is missing.
	EnsureBucket(ctx context.Context) error
	// Ping checks that the bucket is reachable.
	Ping(ctx context.Context) error
}

// IsDirectoryMarker reports whether key names a directory placeholder.
func IsDirectoryMarker(key string) bool {
	return strings.HasSuffix(key, Delimiter)
}

// MetadataHeader returns the canonical header name for a user metadata key.
func MetadataHeader(key string) string {
	canonical := http.CanonicalHeaderKey(key)
	if strings.HasPrefix(canonical, MetadataPrefix) {
		return canonical
	}
	return http.CanonicalHeaderKey(MetadataPrefix + key)
}

// userMetadata filters h down to user metadata with canonical keys.
func userMetadata(h http.Header) map[string]string {
	out := make(map[string]string)
	for k, v := range h {
		canonical := http.CanonicalHeaderKey(k)
		if strings.HasPrefix(canonical, MetadataPrefix) && len(v) > 0 {
			out[canonical] = v[0]
		}
	}
	return out
}
