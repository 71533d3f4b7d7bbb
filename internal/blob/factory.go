package blob

import (
	"context"
	"fmt"

	"pictor/internal/config"
	"pictor/internal/infra/blob/fs"
	"pictor/internal/infra/blob/memory"
	"pictor/internal/infra/blob/s3"
)

// Open selects a Store from cfg. Driver "none" returns a nil Store and thumbnail
// bytes stay inline in the record.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case string(DriverMemory):
		return memory.New(), nil
	case string(DriverFilesystem):
		return fs.New(cfg.FSRoot)
	case string(DriverS3):
		return s3.New(ctx, s3.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
