// Package config loads server settings from the environment, a .env file,
// and an optional TOML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Store backends accepted in JARVIS_STORE.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Store        string `toml:"store"`         // JARVIS_STORE (default "postgres")
	DatabaseURL  string `toml:"database_url"`  // JARVIS_DATABASE_URL (required for postgres)
	SQLitePath   string `toml:"sqlite_path"`   // JARVIS_SQLITE_PATH (default "jarvis.db")
	SupabaseDSN  string `toml:"supabase_dsn"`  // JARVIS_SUPABASE_DSN (optional, graph audit only)
	GRPCAddr     string `toml:"grpc_addr"`     // JARVIS_GRPC_ADDR (default ":9090")
	HTTPAddr     string `toml:"http_addr"`     // JARVIS_HTTP_ADDR (default ":8080")
	NATSURL      string `toml:"nats_url"`      // JARVIS_NATS_URL (optional, empty = no events)
	AuthToken    string `toml:"auth_token"`    // JARVIS_AUTH_TOKEN (optional, empty = auth disabled)
	StrictReopen bool   `toml:"strict_reopen"` // JARVIS_STRICT_REOPEN (default false)

	// Sync settings
	SyncInterval   time.Duration `toml:"-"`                // JARVIS_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        `toml:"sync_s3_bucket"`   // JARVIS_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        `toml:"sync_s3_endpoint"` // JARVIS_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        `toml:"sync_s3_region"`   // JARVIS_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        `toml:"sync_s3_key"`      // JARVIS_SYNC_S3_KEY (default "jarvis/backup.jsonl")
	SyncGitRepo    string        `toml:"sync_git_repo"`    // JARVIS_SYNC_GIT_REPO (enables git when set)
	SyncGitFile    string        `toml:"sync_git_file"`    // JARVIS_SYNC_GIT_FILE (default "jarvis.jsonl")
	SyncGitBranch  string        `toml:"sync_git_branch"`  // JARVIS_SYNC_GIT_BRANCH (default "main")

	// SyncIntervalRaw is the TOML spelling of SyncInterval, e.g. "5m".
	SyncIntervalRaw string `toml:"sync_interval"`
}

func defaults() *Config {
	return &Config{
		Store:           StorePostgres,
		SQLitePath:      "jarvis.db",
		GRPCAddr:        ":9090",
		HTTPAddr:        ":8080",
		SyncS3Region:    "us-east-1",
		SyncS3Key:       "jarvis/backup.jsonl",
		SyncGitFile:     "jarvis.jsonl",
		SyncGitBranch:   "main",
		SyncIntervalRaw: "3m",
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first without overriding the real environment; then the TOML file
// named by JARVIS_CONFIG, if any; then JARVIS_* variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := defaults()
	if path := os.Getenv("JARVIS_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("JARVIS_CONFIG %s: %w", path, err)
		}
	}

	c.Store = envOrDefault("JARVIS_STORE", c.Store)
	c.DatabaseURL = envOrDefault("JARVIS_DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = envOrDefault("JARVIS_SQLITE_PATH", c.SQLitePath)
	c.SupabaseDSN = envOrDefault("JARVIS_SUPABASE_DSN", c.SupabaseDSN)
	c.GRPCAddr = envOrDefault("JARVIS_GRPC_ADDR", c.GRPCAddr)
	c.HTTPAddr = envOrDefault("JARVIS_HTTP_ADDR", c.HTTPAddr)
	c.NATSURL = envOrDefault("JARVIS_NATS_URL", c.NATSURL)
	c.AuthToken = envOrDefault("JARVIS_AUTH_TOKEN", c.AuthToken)
	c.SyncS3Bucket = envOrDefault("JARVIS_SYNC_S3_BUCKET", c.SyncS3Bucket)
	c.SyncS3Endpoint = envOrDefault("JARVIS_SYNC_S3_ENDPOINT", c.SyncS3Endpoint)
	c.SyncS3Region = envOrDefault("JARVIS_SYNC_S3_REGION", c.SyncS3Region)
	c.SyncS3Key = envOrDefault("JARVIS_SYNC_S3_KEY", c.SyncS3Key)
	c.SyncGitRepo = envOrDefault("JARVIS_SYNC_GIT_REPO", c.SyncGitRepo)
	c.SyncGitFile = envOrDefault("JARVIS_SYNC_GIT_FILE", c.SyncGitFile)
	c.SyncGitBranch = envOrDefault("JARVIS_SYNC_GIT_BRANCH", c.SyncGitBranch)

	if v := os.Getenv("JARVIS_STRICT_REOPEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("JARVIS_STRICT_REOPEN: %w", err)
		}
		c.StrictReopen = b
	}

	if intervalStr := envOrDefault("JARVIS_SYNC_INTERVAL", c.SyncIntervalRaw); intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("JARVIS_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("JARVIS_DATABASE_URL is required for the postgres store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return nil, fmt.Errorf("JARVIS_SQLITE_PATH is required for the sqlite store")
		}
	default:
		return nil, fmt.Errorf("JARVIS_STORE: unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreSQLite)
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
