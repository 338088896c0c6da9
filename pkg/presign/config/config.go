package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// devOrigins are allowed when no whitelist is configured outside production.
var devOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "3000",
		Environment: "development",
		LogLevel:    "info",
		Store: StoreConfig{
			Host:      "minio",
			Port:      9000,
			Region:    "us-east-1",
			PathStyle: true,
		},
		Auth: AuthConfig{
			RequireUpload: true,
		},
		Presign: PresignConfig{
			ExpiresSec:      int(presign.DefaultExpiry / time.Second),
			DefaultPrefix:   "raw",
			DefaultFilename: "file.bin",
		},
	}
}

// ServerConfig represents the configuration of the presign gateway. Struct
// tags drive cleanenv for both environment variables and YAML files.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"3000"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	Store   StoreConfig   `yaml:"store"`
	Auth    AuthConfig    `yaml:"auth"`
	Presign PresignConfig `yaml:"presign"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// StoreConfig locates the object store
type StoreConfig struct {
	Host       string `yaml:"host" env:"MINIO_HOST" env-default:"minio"`
	Port       int    `yaml:"port" env:"MINIO_PORT" env-default:"9000"`
	UseSSL     bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	PublicURL  string `yaml:"public_url" env:"MINIO_PUBLIC_URL,PUBLIC_S3_URL"`
	Region     string `yaml:"region" env:"MINIO_REGION" env-default:"us-east-1"`
	PathStyle  bool   `yaml:"path_style" env:"MINIO_PATH_STYLE"` // default true, seeded by defaults()
	AccessKey  string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey  string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket     string `yaml:"bucket" env:"MINIO_BUCKET"`
	TimeoutSec int    `yaml:"timeout_sec" env:"STORE_TIMEOUT_SEC" env-default:"0"`
}

// AuthConfig holds the token secret and per-route auth requirements
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret" env:"JWT_SECRET"`
	RequireUpload   bool   `yaml:"require_upload" env:"REQUIRE_AUTH_UPLOAD"` // default true, seeded by defaults()
	RequireDownload bool   `yaml:"require_download" env:"REQUIRE_AUTH_DOWNLOAD" env-default:"false"`
	RequireList     bool   `yaml:"require_list" env:"REQUIRE_AUTH_LIST" env-default:"false"`
}

// PresignConfig controls issued grants
type PresignConfig struct {
	ExpiresSec      int    `yaml:"expires_sec" env:"PRESIGN_EXPIRES_SEC" env-default:"900"`
	DefaultPrefix   string `yaml:"default_prefix" env:"DEFAULT_PREFIX" env-default:"raw"`
	DefaultFilename string `yaml:"default_filename" env:"DEFAULT_FILENAME" env-default:"file.bin"`
}

// HTTPConfig controls the HTTP surface
type HTTPConfig struct {
	AllowedOrigins     []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"0"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be 'development', 'production' or 'testing', got: %s", c.Environment)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.Store.Host == "" {
		return errors.New("MINIO_HOST is required")
	}
	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		return fmt.Errorf("MINIO_PORT must be a valid port, got: %d", c.Store.Port)
	}
	if c.Store.AccessKey == "" || c.Store.SecretKey == "" {
		return errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}
	if c.Store.Bucket == "" {
		return errors.New("MINIO_BUCKET is required")
	}
	if c.Store.TimeoutSec < 0 {
		return fmt.Errorf("STORE_TIMEOUT_SEC must not be negative, got: %d", c.Store.TimeoutSec)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	maxSec := int(presign.MaxExpiry / time.Second)
	if c.Presign.ExpiresSec <= 0 || c.Presign.ExpiresSec > maxSec {
		return fmt.Errorf("PRESIGN_EXPIRES_SEC must be between 1 and %d, got: %d", maxSec, c.Presign.ExpiresSec)
	}

	if c.HTTP.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got: %d", c.HTTP.RateLimitPerMinute)
	}

	return nil
}

// IsProduction reports whether the gateway runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Expiry returns the grant lifetime
func (c *ServerConfig) Expiry() time.Duration {
	return time.Duration(c.Presign.ExpiresSec) * time.Second
}

// CallTimeout returns the per-call store timeout; zero means none
func (c *ServerConfig) CallTimeout() time.Duration {
	return time.Duration(c.Store.TimeoutSec) * time.Second
}

// SlogLevel parses LogLevel
func (c *ServerConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Origins returns the CORS whitelist. Outside production an empty list falls
// back to the local dev servers; in production it stays empty and every
// cross-origin request is refused.
func (c *ServerConfig) Origins() []string {
	origins := make([]string, 0, len(c.HTTP.AllowedOrigins))
	for _, o := range c.HTTP.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 && !c.IsProduction() {
		return append(origins, devOrigins...)
	}
	return origins
}
