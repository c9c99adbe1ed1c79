package blobstore

import "github.com/plagcode-io/plagcode/internal/config"

const (
	defaultEndpoint  = "localhost:9000"
	defaultAccessKey = "minio"
	defaultSecretKey = "minio123"
	defaultBucket    = "plagcode-uploads"
)

// Config holds MinIO connection configuration with local-dev defaults.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// LoadConfig loads MinIO configuration from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Endpoint:  config.GetEnvStr("MINIO_ENDPOINT", defaultEndpoint),
		AccessKey: config.GetEnvStr("MINIO_ACCESS_KEY", defaultAccessKey),
		SecretKey: config.GetEnvStr("MINIO_SECRET_KEY", defaultSecretKey),
		Bucket:    config.GetEnvStr("MINIO_BUCKET", defaultBucket),
		Secure:    config.GetEnvBool("MINIO_SECURE", false),
	}
}
