package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// ObjectSource reads the seed file from an S3-compatible bucket.
type ObjectSource struct {
	client *minio.Client
	bucket string
	key    string
	logger *slog.Logger
}

// ObjectConfig locates the seed object.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Key       string
}

// NewObjectSource constructs the bucket-backed source.
func NewObjectSource(cfg ObjectConfig, logger *slog.Logger) (*ObjectSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanEndpoint := sanitizeEndpoint(cfg.Endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(cfg.Endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       useSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	key := cfg.Key
	if key == "" {
		key = "faqs.json"
	}
	return &ObjectSource{
		client: client,
		bucket: cfg.Bucket,
		key:    key,
		logger: logger.With("component", "seed.object", "bucket", cfg.Bucket, "key", key),
	}, nil
}

// Load implements Source. A missing object yields no entries.
func (s *ObjectSource) Load(ctx context.Context) ([]faq.EntryInput, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get seed object: %w", err)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NoSuchBucket" {
			s.logger.Warn("seed object not found")
			return nil, nil
		}
		return nil, fmt.Errorf("stat seed object: %w", err)
	}
	entries, err := decode(obj)
	if err != nil {
		return nil, err
	}
	s.logger.Info("seed object loaded", "entries", len(entries))
	return entries, nil
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		raw = parts[0]
	}
	return raw
}

var _ Source = (*ObjectSource)(nil)
