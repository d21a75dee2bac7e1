package storage

import "fmt"

// New creates an ObjectStorage instance for the configured driver.
// "s3" covers every S3-compatible service (AWS, MinIO, R2); "memory" keeps
// snapshots in process memory and is meant for tests and local trials.
func New(driver string, cfg *S3Config) (ObjectStorage, error) {
	switch driver {
	case "", "s3":
		return NewS3Storage(cfg)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
