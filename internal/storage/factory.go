package storage

import (
	"strconv"
	"strings"
)

// NewStorage builds the ObjectStorage for cfg, detecting the provider from
// the endpoint when Type is empty.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if cfg.Type == "" {
		cfg.Type = detectStorageType(cfg.Endpoint)
	}
	return NewS3Storage(cfg)
}

func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)
	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// VideoKey is the object key of the source video of a minutes document.
func VideoKey(minutesID uint, ext string) string {
	return "videos/" + strconv.FormatUint(uint64(minutesID), 10) + "/source" + strings.ToLower(ext)
}

// ThumbnailKey is the object key of the list thumbnail of a minutes document.
func ThumbnailKey(minutesID uint) string {
	return "videos/" + strconv.FormatUint(uint64(minutesID), 10) + "/thumbnail.webp"
}
