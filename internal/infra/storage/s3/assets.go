// Package s3 keeps uploaded listing images in an S3 compatible bucket (MinIO locally).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mujthriftz/internal/app/policies"
)

var (
	ErrEndpointRequired = errors.New("s3: endpoint is required")
	ErrBucketRequired   = errors.New("s3: bucket is required")
	ErrKeyRequired      = errors.New("s3: object key is required")
)

type Config struct {
	Endpoint  string
	UseSSL    bool
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is the base browsers fetch images from; defaults to Endpoint.
	PublicURL string
}

// AssetStore uploads images and hands back their public URL. The bucket is created
// with anonymous read on first use.
type AssetStore struct {
	bucket    string
	publicURL string
	client    *minio.Client
	logger    *slog.Logger

	initOnce sync.Once
	initErr  error
}

func NewAssetStore(cfg Config, logger *slog.Logger) (*AssetStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, ErrBucketRequired
	}
	client, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	public := strings.TrimSpace(cfg.PublicURL)
	if public == "" {
		public = endpoint
		if !strings.Contains(public, "://") {
			scheme := "http://"
			if cfg.UseSSL {
				scheme = "https://"
			}
			public = scheme + public
		}
	}
	return &AssetStore{
		bucket:    bucket,
		publicURL: strings.TrimRight(public, "/"),
		client:    client,
		logger:    logger,
	}, nil
}

func (s *AssetStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = cleanKey(key)
	if key == "" {
		return "", ErrKeyRequired
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	if s.logger != nil {
		s.logger.Debug("asset stored", "bucket", s.bucket, "key", key, "size", info.Size)
	}
	return s.ObjectURL(key), nil
}

// Remove deletes an object; a missing object is not an error.
func (s *AssetStore) Remove(ctx context.Context, key string) error {
	key = cleanKey(key)
	if key == "" {
		return ErrKeyRequired
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3: remove %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is reachable, for readiness probes.
func (s *AssetStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("s3: ping: %w", err)
	}
	return nil
}

func (s *AssetStore) ObjectURL(key string) string {
	return s.publicURL + "/" + s.bucket + "/" + cleanKey(key)
}

func (s *AssetStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			s.initErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		if err := s.client.SetBucketPolicy(ctx, s.bucket, readOnlyPolicy(s.bucket)); err != nil {
			s.initErr = fmt.Errorf("s3: set bucket policy: %w", err)
		}
	})
	return s.initErr
}

func readOnlyPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func cleanKey(key string) string {
	return strings.Trim(strings.TrimSpace(key), "/")
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.AssetStorage = (*AssetStore)(nil)
