package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://abc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.ap-northeast-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "videos/12/source.mp4", VideoKey(12, ".MP4"))
	assert.Equal(t, "videos/12/thumbnail.webp", ThumbnailKey(12))
}

func TestPresignGetURL(t *testing.T) {
	s, err := NewS3Storage(&S3Config{
		Type:      StorageTypeS3Compatible,
		Endpoint:  "http://localhost:9000/",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "minutes",
	})
	require.NoError(t, err)

	url, err := s.PresignGetURL(context.Background(), "videos/1/source.mp4", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/minutes/videos/1/source.mp4?"), url)
	assert.Contains(t, url, "X-Amz-Expires=3600")

	assert.Equal(t, "http://localhost:9000/minutes/videos/1/source.mp4", s.GetURL("videos/1/source.mp4"))
}
