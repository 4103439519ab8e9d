package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig addresses an S3 compatible bucket.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	MaxBytes      int64
}

// MinioStore uploads images to a MinIO/S3 bucket.
type MinioStore struct {
	cfg    MinioConfig
	client *mclient.Client
}

// NewMinioStore connects to the endpoint and fails fast when the bucket is missing.
// The endpoint may carry a scheme, which then decides TLS.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	const op = "storage/minio/New"

	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	if cfg.PublicBaseURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		cfg.PublicBaseURL = scheme + "://" + endpoint + "/" + cfg.Bucket
	}
	return &MinioStore{cfg: cfg, client: client}, nil
}

func (s *MinioStore) Upload(ctx context.Context, file FileUpload) (string, error) {
	const op = "storage/minio/Upload"
	if file.Empty() {
		return "", nil
	}
	contentType, ext, err := checkUpload(file, s.cfg.MaxBytes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := objectKey("images", ext, time.Now())
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, file.Reader, file.Size, mclient.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
}

var _ ImageStore = (*MinioStore)(nil)
