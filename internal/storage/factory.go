package storage

import (
	"strings"

	"github.com/timmy/sourcedesk/internal/config"
)

// NewStorage creates an ObjectStorage instance from the storage configuration.
// Parameters:
//   - cfg: storage section of the application config.
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *config.StorageConfig) (ObjectStorage, error) {
	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	store, err := NewS3Storage(&S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// detectStorageType attempts to detect the storage type from the endpoint
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

// UploadKey builds the object key for an uploaded source file.
func UploadKey(sourceID, filename string) string {
	name := strings.ReplaceAll(strings.TrimSpace(filename), " ", "_")
	if idx := strings.LastIndexAny(name, `/\`); idx != -1 {
		name = name[idx+1:]
	}
	if name == "" {
		name = "upload"
	}
	return "sources/" + sourceID + "/" + name
}
