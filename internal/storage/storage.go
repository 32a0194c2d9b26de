package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/restock/backend-go/internal/config"
)

// ObjectInfo represents metadata for a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStorage captures the minimal S3-compatible operations the report archive needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir)
	case "minio", "s3":
		return NewMinioClient(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// ReportPrefix is the key prefix of the reports archived on date.
func ReportPrefix(date time.Time) string {
	return fmt.Sprintf("inventory_reports/%s/", date.UTC().Format("2006-01-02"))
}

// ReportKey is the object key of a report archived at ts.
func ReportKey(ts time.Time) string {
	return fmt.Sprintf("%sreport_%s.json", ReportPrefix(ts), ts.UTC().Format("20060102_150405"))
}
