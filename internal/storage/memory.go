package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	info ObjectInfo
	data []byte
}

// MemoryStorage keeps objects in process memory. It backs local development
// (STORAGE_BACKEND=memory) and tests; signed URLs it returns are not resolvable.
type MemoryStorage struct {
	mu         sync.RWMutex
	objects    map[string]memoryObject
	publicBase string
}

// NewMemoryStorage returns an empty MemoryStorage whose URLs start with publicBase.
func NewMemoryStorage(publicBase string) *MemoryStorage {
	return &MemoryStorage{
		objects:    make(map[string]memoryObject),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// EnsureBucket is a no-op; the bucket always exists.
func (m *MemoryStorage) EnsureBucket(context.Context) error { return nil }

// Ping always succeeds.
func (m *MemoryStorage) Ping(context.Context) error { return nil }

// Put reads reader to completion; a read error leaves the store untouched.
func (m *MemoryStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) (ObjectInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %q: %w", key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return ObjectInfo{}, fmt.Errorf("put object %q: read %d bytes, expected %d", key, len(data), size)
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %q: %w", key, err)
	}

	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[MetadataHeader(k)] = v
	}
	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     meta,
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{info: info, data: data}
	m.mu.Unlock()
	return cloneInfo(info), nil
}

// Stat returns the object's metadata, or ErrNotFound.
func (m *MemoryStorage) Stat(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return ObjectInfo{}, fmt.Errorf("stat object %q: %w", key, ErrNotFound)
	}
	return cloneInfo(obj.info), nil
}

// Delete removes key. Deleting a missing key succeeds, as on S3.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// List yields a snapshot of the matching keys in lexical order. Without
// Recursive, deeper keys collapse into one directory marker per segment.
func (m *MemoryStorage) List(ctx context.Context, opts ListOptions) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		m.mu.RLock()
		entries := make([]ObjectInfo, 0, len(m.objects))
		seen := make(map[string]bool)
		for key, obj := range m.objects {
			if !strings.HasPrefix(key, opts.Prefix) {
				continue
			}
			if !opts.Recursive {
				rest := key[len(opts.Prefix):]
				if i := strings.Index(rest, Delimiter); i >= 0 {
					dir := opts.Prefix + rest[:i+1]
					if !seen[dir] {
						seen[dir] = true
						entries = append(entries, ObjectInfo{Key: dir})
					}
					continue
				}
			}
			entries = append(entries, cloneInfo(obj.info))
		}
		m.mu.RUnlock()

		slices.SortFunc(entries, func(a, b ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
		for _, e := range entries {
			if opts.StartAfter != "" && e.Key <= opts.StartAfter {
				continue
			}
			if err := ctx.Err(); err != nil {
				yield(ObjectInfo{}, fmt.Errorf("list objects: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// PresignGet returns a pseudo-signed download URL.
func (m *MemoryStorage) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return m.signedURL("GET", key, ttl), nil
}

// PresignPut returns a pseudo-signed upload URL.
func (m *MemoryStorage) PresignPut(_ context.Context, key string, ttl time.Duration) (string, error) {
	return m.signedURL("PUT", key, ttl), nil
}

// PublicURL returns publicBase joined with key.
func (m *MemoryStorage) PublicURL(key string) string {
	return m.publicBase + "/" + key
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStorage) signedURL(method, key string, ttl time.Duration) string {
	q := url.Values{}
	q.Set("X-Amz-Method", method)
	q.Set("X-Amz-Date", time.Now().UTC().Format("20060102T150405Z"))
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	return m.publicBase + "/" + key + "?" + q.Encode()
}

func cloneInfo(info ObjectInfo) ObjectInfo {
	if info.Metadata != nil {
		meta := make(map[string]string, len(info.Metadata))
		for k, v := range info.Metadata {
			meta[k] = v
		}
		info.Metadata = meta
	}
	return info
}
