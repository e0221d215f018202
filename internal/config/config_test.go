package config

import (
	"testing"
	"time"
)

// allEnvVars lists every variable Load reads; each test starts from a clean slate.
var allEnvVars = []string{
	"KQ_DATABASE_URL", "KQ_INDEX_DIR", "KQ_GRPC_ADDR", "KQ_HTTP_ADDR", "KQ_NATS_URL",
	"KQ_AUTH_TOKEN", "KQ_MAX_ROWS", "KQ_SLOW_QUERY", "KQ_COLLATION",
	"KQ_EXPORT_FILE", "KQ_EXPORT_INTERVAL", "KQ_EXPORT_S3_BUCKET", "KQ_EXPORT_S3_ENDPOINT",
	"KQ_EXPORT_S3_REGION", "KQ_EXPORT_S3_PREFIX",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantGRPCAddr string
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"KQ_DATABASE_URL": "postgres://localhost/kq"},
			wantGRPCAddr: ":9090",
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"KQ_DATABASE_URL": "postgres://db:5432/kq",
				"KQ_GRPC_ADDR":    ":5050",
				"KQ_HTTP_ADDR":    ":3000",
				"KQ_NATS_URL":     "nats://localhost:4222",
			},
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
		{
			name:    "BadMaxRows",
			env:     map[string]string{"KQ_DATABASE_URL": "postgres://x", "KQ_MAX_ROWS": "lots"},
			wantErr: true,
		},
		{
			name:    "NegativeSlowQuery",
			env:     map[string]string{"KQ_DATABASE_URL": "postgres://x", "KQ_SLOW_QUERY": "-1s"},
			wantErr: true,
		},
		{
			name:    "IntervalWithoutJobs",
			env:     map[string]string{"KQ_DATABASE_URL": "postgres://x", "KQ_EXPORT_INTERVAL": "1m"},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["KQ_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["KQ_DATABASE_URL"])
			}
			if cfg.GRPCAddr != tc.wantGRPCAddr {
				t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, tc.wantGRPCAddr)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadSearchDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KQ_DATABASE_URL", "postgres://localhost/kq")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxRows != 500 {
		t.Errorf("MaxRows = %d, want 500", cfg.MaxRows)
	}
	if cfg.SlowQuery != 2*time.Second {
		t.Errorf("SlowQuery = %v, want 2s", cfg.SlowQuery)
	}
	if cfg.Collation != "en" {
		t.Errorf("Collation = %q, want en", cfg.Collation)
	}
	if cfg.IndexDir != "" {
		t.Errorf("IndexDir = %q, want in-memory", cfg.IndexDir)
	}
}

func TestLoadExportDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KQ_DATABASE_URL", "postgres://localhost/kq")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportInterval != 0 {
		t.Errorf("ExportInterval = %v, want 0 (disabled)", cfg.ExportInterval)
	}
	if cfg.ExportS3Region != "us-east-1" {
		t.Errorf("ExportS3Region = %q, want %q", cfg.ExportS3Region, "us-east-1")
	}
	if cfg.ExportS3Prefix != "exports/" {
		t.Errorf("ExportS3Prefix = %q, want %q", cfg.ExportS3Prefix, "exports/")
	}
}

func TestLoadExportCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KQ_DATABASE_URL", "postgres://localhost/kq")
	t.Setenv("KQ_EXPORT_FILE", "/etc/kq/jobs.yaml")
	t.Setenv("KQ_EXPORT_INTERVAL", "10m")
	t.Setenv("KQ_EXPORT_S3_BUCKET", "my-bucket")
	t.Setenv("KQ_EXPORT_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("KQ_EXPORT_S3_REGION", "eu-west-1")
	t.Setenv("KQ_EXPORT_S3_PREFIX", "nightly/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportFile != "/etc/kq/jobs.yaml" {
		t.Errorf("ExportFile = %q", cfg.ExportFile)
	}
	if cfg.ExportInterval != 10*time.Minute {
		t.Errorf("ExportInterval = %v, want 10m", cfg.ExportInterval)
	}
	if cfg.ExportS3Bucket != "my-bucket" {
		t.Errorf("ExportS3Bucket = %q", cfg.ExportS3Bucket)
	}
	if cfg.ExportS3Endpoint != "http://minio:9000" {
		t.Errorf("ExportS3Endpoint = %q", cfg.ExportS3Endpoint)
	}
	if cfg.ExportS3Region != "eu-west-1" {
		t.Errorf("ExportS3Region = %q", cfg.ExportS3Region)
	}
	if cfg.ExportS3Prefix != "nightly/" {
		t.Errorf("ExportS3Prefix = %q", cfg.ExportS3Prefix)
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("KQ_DATABASE_URL", "postgres://localhost/kq")
	t.Setenv("KQ_EXPORT_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid KQ_EXPORT_INTERVAL")
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
