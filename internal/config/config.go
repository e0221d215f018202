package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // KQ_DATABASE_URL (required)
	IndexDir    string // KQ_INDEX_DIR (optional, empty = in-memory full-text indexes)
	GRPCAddr    string // KQ_GRPC_ADDR (default ":9090")
	HTTPAddr    string // KQ_HTTP_ADDR (default ":8080")
	NATSURL     string // KQ_NATS_URL (optional, empty = no events)
	AuthToken   string // KQ_AUTH_TOKEN (optional, empty = auth disabled)

	// Search settings
	MaxRows   int           // KQ_MAX_ROWS (default 500; caps requests without their own cap)
	SlowQuery time.Duration // KQ_SLOW_QUERY (default 2s)
	Collation string        // KQ_COLLATION (default "en")

	// Export settings
	ExportFile       string        // KQ_EXPORT_FILE (YAML job file; enables export when set)
	ExportInterval   time.Duration // KQ_EXPORT_INTERVAL (default 0 = disabled)
	ExportS3Bucket   string        // KQ_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // KQ_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // KQ_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Prefix   string        // KQ_EXPORT_S3_PREFIX (default "exports/")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("KQ_DATABASE_URL"),
		IndexDir:         os.Getenv("KQ_INDEX_DIR"),
		GRPCAddr:         envOrDefault("KQ_GRPC_ADDR", ":9090"),
		HTTPAddr:         envOrDefault("KQ_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("KQ_NATS_URL"),
		AuthToken:        os.Getenv("KQ_AUTH_TOKEN"),
		Collation:        envOrDefault("KQ_COLLATION", "en"),
		ExportFile:       os.Getenv("KQ_EXPORT_FILE"),
		ExportS3Bucket:   os.Getenv("KQ_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("KQ_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("KQ_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Prefix:   envOrDefault("KQ_EXPORT_S3_PREFIX", "exports/"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("KQ_DATABASE_URL is required")
	}

	maxRows, err := strconv.Atoi(envOrDefault("KQ_MAX_ROWS", "500"))
	if err != nil || maxRows < 0 {
		return nil, fmt.Errorf("KQ_MAX_ROWS: must be a non-negative integer")
	}
	c.MaxRows = maxRows

	if c.SlowQuery, err = duration("KQ_SLOW_QUERY", "2s"); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = duration("KQ_EXPORT_INTERVAL", "0"); err != nil {
		return nil, err
	}
	if c.ExportInterval > 0 && c.ExportFile == "" {
		return nil, fmt.Errorf("KQ_EXPORT_INTERVAL requires KQ_EXPORT_FILE")
	}

	return c, nil
}

func duration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
