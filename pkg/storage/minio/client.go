package minio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/config"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const pingTimeout = 5 * time.Second

// Client issues presigned writes against one S3-compatible bucket.
type Client struct {
	api        *miniogo.Client
	bucket     string
	region     string
	publicBase string
	publicRead bool
	logg       *logger.Logger

	mu          sync.Mutex
	bucketReady bool
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the client. It does not contact the server; the bucket is ensured on
// first use.
func New(cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("storage endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage bucket is required")
	}

	api, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &Client{
		api:        api,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicBase: publicBase,
		publicRead: cfg.PublicRead,
		logg:       logg,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket creates the bucket if missing. Concurrent creators racing on the same
// bucket are tolerated: "already exists" counts as success.
func (c *Client) EnsureBucket(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucketReady {
		return nil
	}

	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	}
	if !exists {
		err := c.api.MakeBucket(ctx, c.bucket, miniogo.MakeBucketOptions{Region: c.region})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("create bucket %q: %w", c.bucket, err)
		}
		if err == nil && c.logg != nil {
			c.logg.Info(c.logg.WithField(ctx, "bucket", c.bucket), "storage.bucket_created")
		}
	}

	if c.publicRead {
		if err := c.api.SetBucketPolicy(ctx, c.bucket, publicReadPolicy(c.bucket)); err != nil {
			return fmt.Errorf("set bucket policy: %w", err)
		}
	}

	c.bucketReady = true
	return nil
}

func isAlreadyExists(err error) bool {
	switch miniogo.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}

// PresignPut returns a URL that accepts one PUT of key with the given content type
// until expiry elapses.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (*url.URL, error) {
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	u, err := c.api.PresignHeader(ctx, http.MethodPut, c.bucket, key, expiry, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("presign put %q: %w", key, err)
	}
	return u, nil
}

// PublicURL returns the retrieval address for key.
func (c *Client) PublicURL(key string) string {
	return c.publicBase + "/" + strings.TrimLeft(key, "/")
}

// Ping checks the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.api.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("storage ping: %w", err)
	}
	return nil
}

// publicReadPolicy allows anonymous GET on every object in bucket.
func publicReadPolicy(bucket string) string {
	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":    "Allow",
				"Principal": map[string]any{"AWS": []string{"*"}},
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
