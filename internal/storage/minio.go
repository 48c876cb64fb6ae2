package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/radif/mediaservice/internal/metrics"
)

// MinioOptions configures a MinioStorage.
type MinioOptions struct {
	Endpoint   string // host:port
	AccessKey  string
	SecretKey  string
	Region     string
	Bucket     string
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/media"
	UseSSL     bool
}

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
// The client pools its connections and is safe for concurrent use.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
	log        zerolog.Logger
}

// NewMinioStorage creates a MinIO client. It performs no network calls;
// call EnsureBucket before serving traffic.
func NewMinioStorage(opts MinioOptions, log zerolog.Logger) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucket:     opts.Bucket,
		region:     opts.Region,
		publicBase: strings.TrimRight(opts.PublicBase, "/"),
		log:        log.With().Str("component", "minio-storage").Str("bucket", opts.Bucket).Logger(),
	}, nil
}

// EnsureBucket creates the bucket and applies a public-read policy when it does not
// exist yet. Losing a creation race to another instance is not an error.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		s.log.Debug().Msg("bucket already present")
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		if !isBucketAlreadyExists(err) {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
		s.log.Info().Msg("bucket created concurrently by another instance")
	} else {
		s.log.Info().Msg("created bucket")
	}

	if err := s.client.SetBucketPolicy(ctx, s.bucket, PublicReadPolicy(s.bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	s.log.Info().Msg("applied public-read policy")
	return nil
}

// Ping checks that the bucket is reachable.
func (s *MinioStorage) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

// unknownSizePartSize is the part buffer minio-go allocates per upload when the
// object size is not known up front. Left unset it sizes parts for a 5 TiB object.
const unknownSizePartSize = 8 << 20

// Put streams reader to MinIO under key. With size -1 the body is sent in
// unknownSizePartSize parts, one buffered at a time.
func (s *MinioStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) (ObjectInfo, error) {
	start := time.Now()
	putOpts := putObjectOptions(size, opts)

	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, putOpts)
	metrics.RecordStorageOperation("put", err, time.Since(start).Seconds())
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put object %q: %w", key, err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  opts.ContentType,
		ETag:         info.ETag,
		Metadata:     putOpts.UserMetadata,
	}, nil
}

func putObjectOptions(size int64, opts PutOptions) minio.PutObjectOptions {
	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[MetadataHeader(k)] = v
	}
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: meta,
	}
	if size < 0 {
		putOpts.PartSize = unknownSizePartSize
	}
	return putOpts
}

// Stat returns the object's metadata without downloading it.
func (s *MinioStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	start := time.Now()
	obj, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	metrics.RecordStorageOperation("stat", err, time.Since(start).Seconds())
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("stat object %q: %w", key, ErrNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("stat object %q: %w", key, err)
	}

	info := toObjectInfo(obj)
	info.Metadata = userMetadata(obj.Metadata)
	return info, nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	metrics.RecordStorageOperation("delete", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// List pages through the bucket lazily. Breaking out of the loop cancels the
// background listing.
func (s *MinioStorage) List(ctx context.Context, opts ListOptions) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		start := time.Now()
		var listErr error
		defer func() {
			metrics.RecordStorageOperation("list", listErr, time.Since(start).Seconds())
		}()

		objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:     opts.Prefix,
			Recursive:  opts.Recursive,
			StartAfter: opts.StartAfter,
		})
		for obj := range objects {
			if obj.Err != nil {
				listErr = obj.Err
				yield(ObjectInfo{}, fmt.Errorf("list objects: %w", obj.Err))
				return
			}
			if !yield(toObjectInfo(obj), nil) {
				return
			}
		}
	}
}

// PresignGet returns a signed download URL valid for ttl.
func (s *MinioStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	metrics.RecordStorageOperation("presign_get", err, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("presign get %q: %w", key, err)
	}
	return u.String(), nil
}

// PresignPut returns a signed upload URL valid for ttl.
func (s *MinioStorage) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	metrics.RecordStorageOperation("presign_put", err, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("presign put %q: %w", key, err)
	}
	return u.String(), nil
}

// PublicURL returns the browser-accessible URL for the given key.
// It resolves only while the bucket's public-read policy is in force.
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

func toObjectInfo(obj minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          obj.Key,
		Size:         obj.Size,
		LastModified: obj.LastModified,
		ContentType:  obj.ContentType,
		ETag:         obj.ETag,
	}
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func isBucketAlreadyExists(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		resp = minio.ToErrorResponse(err)
	}
	return resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists"
}

// PublicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func PublicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": map[string][]string{"AWS": {"*"}},
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
