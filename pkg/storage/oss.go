package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
)

// OSS stores files in an Aliyun OSS bucket.
type OSS struct {
	bucket   *oss.Bucket
	prefix   string
	endpoint string
	name     string
	baseURL  string
	logger   *zap.Logger
}

// NewOSS opens the configured bucket.
func NewOSS(cfg *config.StorageConfig, logger *zap.Logger) (*OSS, error) {
	if cfg.OSSEndpoint == "" || cfg.OSSAccessKeyID == "" || cfg.OSSAccessKeySecret == "" || cfg.OSSBucket == "" {
		return nil, fmt.Errorf("storage: oss endpoint, keys and bucket are required")
	}
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("storage: oss.New: %w", err)
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("storage: bucket %s: %w", cfg.OSSBucket, err)
	}

	logger.Info("oss storage ready", zap.String("bucket", cfg.OSSBucket), zap.String("prefix", cfg.OSSPrefix))

	return &OSS{
		bucket:   bucket,
		prefix:   strings.Trim(cfg.OSSPrefix, "/"),
		endpoint: cfg.OSSEndpoint,
		name:     cfg.OSSBucket,
		baseURL:  cfg.PublicBaseURL,
		logger:   logger,
	}, nil
}

func (s *OSS) Put(ctx context.Context, dir, filename string, r io.Reader, contentType string) (*Object, error) {
	key := BuildKey(dir, filename)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	cr := &countingReader{r: r}
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
	}
	if err := s.bucket.PutObject(key, cr, opts...); err != nil {
		return nil, fmt.Errorf("storage: put %s: %w", key, err)
	}

	return &Object{Key: key, URL: s.URL(key), ContentType: contentType, Size: cr.n}, nil
}

// Delete removes the object; OSS treats a missing key as success.
func (s *OSS) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 404 {
			return nil
		}
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *OSS) URL(key string) string {
	if s.baseURL != "" {
		return joinURL(s.baseURL, key)
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.name, end, key)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
