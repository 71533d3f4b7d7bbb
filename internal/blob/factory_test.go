package blob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictor/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.BlobConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, store.Driver())

	store, err = Open(ctx, config.BlobConfig{Driver: "fs", FSRoot: filepath.Join(t.TempDir(), "thumbs")})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, store.Driver())

	store, err = Open(ctx, config.BlobConfig{Driver: "s3", S3Bucket: "b", S3Region: "eu-west-1", S3Endpoint: "http://127.0.0.1:9000", S3PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, DriverS3, store.Driver())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.BlobConfig{Driver: "ftp"})
	require.Error(t, err)

	_, err = Open(context.Background(), config.BlobConfig{Driver: "s3"})
	require.Error(t, err, "bucket is required")
}
