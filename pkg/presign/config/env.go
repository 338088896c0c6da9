package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WithEnv applies environment variable overrides.
//
// Server:
//
//	PORT, ENVIRONMENT, LOG_LEVEL
//
// Object store:
//
//	MINIO_HOST, MINIO_PORT, MINIO_USE_SSL, MINIO_REGION, MINIO_PATH_STYLE
//	MINIO_PUBLIC_URL (or PUBLIC_S3_URL) - base URL clients reach the store on
//	MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET - required
//	STORE_TIMEOUT_SEC - per-call timeout, 0 disables
//
// Auth:
//
//	JWT_SECRET - required
//	REQUIRE_AUTH_UPLOAD, REQUIRE_AUTH_DOWNLOAD, REQUIRE_AUTH_LIST
//
// Grants:
//
//	PRESIGN_EXPIRES_SEC, DEFAULT_PREFIX, DEFAULT_FILENAME
//
// HTTP:
//
//	ALLOWED_ORIGINS - comma separated
//	RATE_LIMIT_PER_MINUTE - 0 disables
//
// cleanenv fills zero-valued fields from env-default tags, so WithEnv goes
// before programmatic options that may set a field to its zero value.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML (or JSON/TOML/EDN) file, then applies environment
// overrides on top of it.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
// It must come before WithEnv.
func WithDotEnv(paths ...string) Option {
	return func(c *ServerConfig) error {
		if len(paths) == 0 {
			paths = []string{".env"}
		}
		for _, p := range paths {
			if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", p, err)
			}
		}
		return nil
	}
}

// Usage returns the environment variable help text.
func Usage() (string, error) {
	var cfg ServerConfig
	return cleanenv.GetDescription(&cfg, nil)
}
