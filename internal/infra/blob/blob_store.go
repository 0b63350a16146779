// Package blob stores proof assets and profile pictures in an object storage bucket.
package blob

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets for local development
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets for tests
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets
	"gocloud.dev/gcerrors"
)

const defaultBucketURL = "mem://"

// Params holds dependencies for the blob store, injected by Fx.
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

type bucketStore struct {
	bucket        *blob.Bucket
	publicBaseURL string
	signedExpiry  time.Duration
	logger        *slog.Logger
}

// New opens the configured bucket and closes it on shutdown.
func New(params Params) (service.BlobStore, error) {
	cfg := params.Config.Blob

	bucketURL := cfg.BucketURL
	if bucketURL == "" {
		params.Logger.Warn("blob.bucketUrl not configured, using an in-memory bucket")
		bucketURL = defaultBucketURL
	}

	bucket, err := blob.OpenBucket(params.Ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", bucketURL)
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return errors.WithStack(bucket.Close())
		},
	})

	params.Logger.Info("Blob store initialized", slog.String("bucket", bucketURL))

	return NewBucketStore(bucket, cfg, params.Logger), nil
}

// NewBucketStore wraps an open bucket.
func NewBucketStore(bucket *blob.Bucket, cfg *config.BlobConfig, logger *slog.Logger) service.BlobStore {
	return &bucketStore{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		signedExpiry:  cfg.SignedURLExpiry,
		logger:        logger,
	}
}

// Upload writes data under key and returns its public or signed URL.
func (s *bucketStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, "write object %s", key)
	}

	return s.objectURL(ctx, key)
}

// Delete removes the object; missing objects are ignored.
func (s *bucketStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return errors.Wrapf(err, "delete object %s", key)
	}

	return nil
}

func (s *bucketStore) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escapeKey(key), nil
	}

	signed, err := s.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{Expiry: s.signedExpiry})
	if err != nil {
		return "", errors.Wrapf(err, "sign url for %s", key)
	}

	return signed, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return strings.Join(parts, "/")
}
