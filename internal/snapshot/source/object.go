package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewObjectClient creates a MinIO client for any S3-compatible endpoint. No
// request is made until the first fetch.
func NewObjectClient(cfg config.ObjectStoreConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return client, nil
}

// Object reads the snapshot from a bucket. Repeated failures open a circuit
// breaker so a dead endpoint is not hammered by reload triggers.
type Object struct {
	client  *minio.Client
	bucket  string
	key     string
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewObject(client *minio.Client, bucket, key string) *Object {
	return &Object{
		client:  client,
		bucket:  bucket,
		key:     key,
		breaker: resilience.NewCircuitBreaker("object-store", resilience.CircuitBreakerConfig{IsFailure: IsRemoteFailure}),
		logger:  slog.Default().With("component", "snapshot-source", "bucket", bucket, "key", key),
	}
}

// IsRemoteFailure reports whether err says the object store itself is
// unhealthy. A missing object or a malformed payload does not.
func IsRemoteFailure(err error) bool {
	return !errors.Is(err, apperrors.ErrSnapshotUnavailable) && !errors.Is(err, apperrors.ErrMalformedIndex)
}

// WithBreaker replaces the default circuit breaker.
func (o *Object) WithBreaker(cb *resilience.CircuitBreaker) *Object {
	o.breaker = cb
	return o
}

func (o *Object) Location() string {
	return fmt.Sprintf("s3://%s/%s", o.bucket, o.key)
}

func (o *Object) Fetch(ctx context.Context) (*Payload, error) {
	var payload *Payload
	err := o.breaker.Execute(func() error {
		p, err := o.fetch(ctx)
		payload = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (o *Object) fetch(ctx context.Context) (*Payload, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, o.mapError(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, o.mapError(err)
	}
	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", o.Location(), err)
	}
	data, err := Decompress(raw)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("snapshot object fetched", "size", info.Size, "etag", info.ETag)
	return &Payload{
		Data:     data,
		Location: o.Location(),
		ModTime:  info.LastModified,
	}, nil
}

func (o *Object) mapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.Code == "NotFound" {
		return fmt.Errorf("%w: %s: %s", apperrors.ErrSnapshotUnavailable, o.Location(), resp.Code)
	}
	return fmt.Errorf("fetching %s: %w", o.Location(), err)
}

// Upload replaces the snapshot object with raw, stored as-is. Compressed
// payloads keep their encoding; Fetch expands them.
func (o *Object) Upload(ctx context.Context, raw []byte) (minio.UploadInfo, error) {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		opts.ContentType = "application/gzip"
	case bytes.HasPrefix(raw, zstdMagic):
		opts.ContentType = "application/zstd"
	}
	info, err := o.client.PutObject(ctx, o.bucket, o.key, bytes.NewReader(raw), int64(len(raw)), opts)
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("uploading %s: %w", o.Location(), err)
	}
	o.logger.Info("snapshot object uploaded", "size", info.Size, "etag", info.ETag)
	return info, nil
}
