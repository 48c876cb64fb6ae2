// Package media implements upload, retrieval and deletion of media objects
// stored in an S3-compatible bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radif/mediaservice/internal/apperror"
	"github.com/radif/mediaservice/internal/metrics"
	"github.com/radif/mediaservice/internal/storage"
)

// Listing page bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Options are the media rules fixed at startup.
type Options struct {
	AllowedTypes  []string
	MaxUploadSize int64
	PresignTTL    time.Duration
	// DirectURLs adds the policy-reliant public URL to upload results.
	DirectURLs bool
}

// Service orchestrates media ingestion and retrieval. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	store   storage.Storage
	opts    Options
	allowed map[string]bool
	keys    *KeyBuilder
	log     zerolog.Logger
}

// NewService creates a media Service.
func NewService(store storage.Storage, opts Options, log zerolog.Logger) *Service {
	allowed := make(map[string]bool, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &Service{
		store:   store,
		opts:    opts,
		allowed: allowed,
		keys:    NewKeyBuilder(),
		log:     log.With().Str("component", "media-service").Logger(),
	}
}

// MaxUploadSize returns the configured per-file ceiling.
func (s *Service) MaxUploadSize() int64 { return s.opts.MaxUploadSize }

// UploadInput is one relayed upload. Body is nil when the request carried no file.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
	Metadata    string // optional JSON object
	Uploader    string
}

// UploadResult describes a stored upload.
type UploadResult struct {
	Key          string `json:"key" example:"images/1718000000000-6f1c0e8e-3b8a-4c55-9a51-1f1de2a4f0a1-photo.png"`
	OriginalName string `json:"originalName" example:"photo.png"`
	ContentType  string `json:"contentType" example:"image/png"`
	Size         int64  `json:"size" example:"2097152"`
	RetrievalURL string `json:"retrievalUrl"`
	DirectURL    string `json:"directUrl,omitempty"`
	ExpiresIn    int    `json:"expiresInSeconds" example:"3600"`
	RequestID    string `json:"requestId" example:"0b7e4d1c-2f7a-4a8e-9b52-0c5b6f1f2f3a"`
}

// Upload validates the file, streams it to the store and returns a retrieval
// capability. The body is never buffered whole; exceeding the ceiling mid-stream
// aborts the write.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Body == nil || in.FileName == "" {
		return nil, apperror.Validation(apperror.ReasonNoFile, "no file uploaded")
	}
	contentType := normalizeContentType(in.ContentType)
	if err := s.checkType(contentType); err != nil {
		return nil, err
	}
	if in.Size > s.opts.MaxUploadSize {
		return nil, s.tooLarge()
	}

	category := CategoryFor(contentType)
	key := s.keys.UploadKey(in.FileName, contentType)
	meta := s.keys.Metadata(in.FileName, in.Uploader, ParseCustomMetadata(in.Metadata, s.log))

	body := &limitedReader{r: in.Body, remaining: s.opts.MaxUploadSize}
	info, err := s.store.Put(ctx, key, body, in.Size, storage.PutOptions{
		ContentType: contentType,
		Metadata:    meta,
	})
	if body.exceeded {
		metrics.RecordUpload(category, "rejected", 0)
		return nil, s.tooLarge()
	}
	if err != nil {
		metrics.RecordUpload(category, "error", 0)
		return nil, apperror.Storage("put object", err)
	}

	retrievalURL, err := s.store.PresignGet(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return nil, apperror.Storage("presign get", err)
	}

	res := &UploadResult{
		Key:          key,
		OriginalName: in.FileName,
		ContentType:  contentType,
		Size:         info.Size,
		RetrievalURL: retrievalURL,
		ExpiresIn:    s.ttlSeconds(),
		RequestID:    uuid.NewString(),
	}
	if s.opts.DirectURLs {
		res.DirectURL = s.store.PublicURL(key)
	}

	metrics.RecordUpload(category, "success", info.Size)
	s.log.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int64("size", info.Size).
		Str("uploader", in.Uploader).
		Msg("media uploaded")
	return res, nil
}

// PresignUploadInput names the object a caller intends to write directly.
type PresignUploadInput struct {
	FileName    string
	ContentType string
}

// PresignUploadResult is a write capability for a not-yet-existing key.
type PresignUploadResult struct {
	WriteURL    string `json:"writeUrl"`
	Key         string `json:"key" example:"videos/1718000000000-6f1c0e8e-3b8a-4c55-9a51-1f1de2a4f0a1.mp4"`
	ContentType string `json:"contentType" example:"video/mp4"`
	Category    string `json:"category" example:"videos"`
	ExpiresIn   int    `json:"expiresInSeconds" example:"3600"`
}

// PresignUpload issues a direct-write capability. Metadata on the resulting
// object is whatever the caller's PUT sets; the service cannot add to it.
func (s *Service) PresignUpload(ctx context.Context, in PresignUploadInput) (*PresignUploadResult, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return nil, apperror.Validation(apperror.ReasonInvalidRequest, "fileName is required")
	}
	contentType := normalizeContentType(in.ContentType)
	if err := s.checkType(contentType); err != nil {
		return nil, err
	}

	key := s.keys.DirectKey(in.FileName, contentType)
	writeURL, err := s.store.PresignPut(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return nil, apperror.Storage("presign put", err)
	}

	return &PresignUploadResult{
		WriteURL:    writeURL,
		Key:         key,
		ContentType: contentType,
		Category:    CategoryFor(contentType),
		ExpiresIn:   s.ttlSeconds(),
	}, nil
}

// RetrievalURL is a read capability for an existing key.
type RetrievalURL struct {
	Key          string `json:"key"`
	RetrievalURL string `json:"retrievalUrl"`
	ExpiresIn    int    `json:"expiresInSeconds" example:"3600"`
}

// PresignGet issues a read capability after confirming key exists.
func (s *Service) PresignGet(ctx context.Context, key string) (*RetrievalURL, error) {
	if _, err := s.stat(ctx, key); err != nil {
		return nil, err
	}
	u, err := s.store.PresignGet(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return nil, apperror.Storage("presign get", err)
	}
	return &RetrievalURL{Key: key, RetrievalURL: u, ExpiresIn: s.ttlSeconds()}, nil
}

// Metadata is the resolved description of a stored object.
type Metadata struct {
	Key            string            `json:"key"`
	Size           int64             `json:"size"`
	LastModified   time.Time         `json:"lastModified"`
	ContentType    string            `json:"contentType"`
	ETag           string            `json:"etag"`
	CustomMetadata map[string]string `json:"customMetadata"`
}

// Stat resolves key's metadata. Metadata names lose their storage prefix and
// come back lower-cased, as the store normalizes them.
func (s *Service) Stat(ctx context.Context, key string) (*Metadata, error) {
	info, err := s.stat(ctx, key)
	if err != nil {
		return nil, err
	}

	custom := make(map[string]string, len(info.Metadata))
	for k, v := range info.Metadata {
		name := strings.ToLower(strings.TrimPrefix(storage.MetadataHeader(k), storage.MetadataPrefix))
		custom[name] = decodeHeaderValue(v)
	}

	return &Metadata{
		Key:            key,
		Size:           info.Size,
		LastModified:   info.LastModified,
		ContentType:    info.ContentType,
		ETag:           strings.Trim(info.ETag, `"`),
		CustomMetadata: custom,
	}, nil
}

// ListInput selects one page of a listing.
type ListInput struct {
	Prefix    string
	Recursive bool
	Cursor    string
	Limit     int
}

// ListItem is one listed object.
type ListItem struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ListPage is a bounded slice of a listing. NextCursor is empty on the last page.
type ListPage struct {
	Count      int        `json:"count"`
	Items      []ListItem `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// List returns one page of keys under in.Prefix, skipping directory markers.
// Pass the returned NextCursor back as Cursor to continue.
func (s *Service) List(ctx context.Context, in ListInput) (*ListPage, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		return nil, apperror.Validationf(apperror.ReasonInvalidRequest, "limit must not exceed %d", MaxListLimit)
	}

	page := &ListPage{Items: make([]ListItem, 0, min(limit, 64))}
	objects := s.store.List(ctx, storage.ListOptions{
		Prefix:     in.Prefix,
		Recursive:  in.Recursive,
		StartAfter: in.Cursor,
	})
	for obj, err := range objects {
		if err != nil {
			return nil, apperror.Storage("list objects", err)
		}
		if storage.IsDirectoryMarker(obj.Key) {
			continue
		}
		if len(page.Items) == limit {
			page.NextCursor = page.Items[limit-1].Name
			break
		}
		page.Items = append(page.Items, ListItem{Name: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	page.Count = len(page.Items)
	return page, nil
}

// Delete removes key after confirming it exists. A concurrent delete between
// the check and the removal is not detected.
func (s *Service) Delete(ctx context.Context, key string) error {
	if _, err := s.stat(ctx, key); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return apperror.Storage("remove object", err)
	}
	s.log.Info().Str("key", key).Msg("media deleted")
	return nil
}

func (s *Service) stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.store.Stat(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ObjectInfo{}, apperror.NotFound(key)
	}
	if err != nil {
		return storage.ObjectInfo{}, apperror.Storage("stat object", err)
	}
	return info, nil
}

func (s *Service) checkType(contentType string) error {
	if s.allowed[contentType] {
		return nil
	}
	return apperror.Validationf(apperror.ReasonTypeNotAllowed,
		"file type %q is not allowed; accepted types: %s", contentType, strings.Join(s.opts.AllowedTypes, ", "))
}

func (s *Service) tooLarge() error {
	return apperror.Validationf(apperror.ReasonTooLarge,
		"file exceeds the maximum upload size of %d bytes", s.opts.MaxUploadSize)
}

func (s *Service) ttlSeconds() int {
	return int(s.opts.PresignTTL.Seconds())
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apperror.Validation(apperror.ReasonInvalidKey, "key is required")
	}
	if storage.IsDirectoryMarker(key) {
		return apperror.Validation(apperror.ReasonInvalidKey, fmt.Sprintf("key %q names a directory", key))
	}
	return nil
}

// normalizeContentType lower-cases a MIME type and drops its parameters.
func normalizeContentType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// errTooLarge is returned by limitedReader once the ceiling is crossed.
var errTooLarge = errors.New("upload exceeds size limit")

// limitedReader fails the stream as soon as more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errTooLarge
	}
	// Read one byte past the limit to tell "exactly at" from "over".
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, errTooLarge
	}
	l.remaining -= int64(n)
	return n, err
}
