// Package source fetches raw course schedule content from its configured
// location: a local file path, or an object in a MinIO/S3 bucket when course
// files are hosted centrally.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

type Config struct {
	Path  string
	MinIO *MinIOConfig
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Object    string
}

// Load returns the course content plus the source name used for format
// detection (file path or object key).
func Load(ctx context.Context, cfg Config, log logx.Logger) (string, []byte, error) {
	if cfg.MinIO != nil {
		return loadMinIO(ctx, cfg.MinIO, log)
	}
	if cfg.Path == "" {
		return "", nil, errors.New("course source: no path configured")
	}
	content, err := os.ReadFile(cfg.Path)
	if err != nil {
		return "", nil, fmt.Errorf("read course file: %w", err)
	}
	return cfg.Path, content, nil
}

func loadMinIO(ctx context.Context, cfg *MinIOConfig, log logx.Logger) (string, []byte, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return "", nil, fmt.Errorf("create minio client: %w", err)
	}

	obj, err := client.GetObject(ctx, cfg.Bucket, cfg.Object, minio.GetObjectOptions{})
	if err != nil {
		return "", nil, fmt.Errorf("fetch course object: %w", err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return "", nil, fmt.Errorf("read course object %s/%s: %w", cfg.Bucket, cfg.Object, err)
	}
	log.Info("course content fetched from object storage",
		logx.String("bucket", cfg.Bucket), logx.String("object", cfg.Object),
		logx.Int("bytes", len(content)))
	return cfg.Object, content, nil
}
