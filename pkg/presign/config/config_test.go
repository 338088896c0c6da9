package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY", "access")
	t.Setenv("MINIO_SECRET_KEY", "secret")
	t.Setenv("MINIO_BUCKET", "uploads")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(WithEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("expected port 3000, got %q", cfg.Port)
	}
	if cfg.Store.Host != "minio" || cfg.Store.Port != 9000 || cfg.Store.UseSSL {
		t.Errorf("unexpected store endpoint: %+v", cfg.Store)
	}
	if !cfg.Store.PathStyle {
		t.Error("expected path-style addressing by default")
	}
	if cfg.Expiry() != 15*time.Minute {
		t.Errorf("expected 15m expiry, got %s", cfg.Expiry())
	}
	if cfg.CallTimeout() != 0 {
		t.Errorf("expected no call timeout, got %s", cfg.CallTimeout())
	}
	if !cfg.Auth.RequireUpload || cfg.Auth.RequireDownload || cfg.Auth.RequireList {
		t.Errorf("unexpected auth requirements: %+v", cfg.Auth)
	}
	if cfg.Presign.DefaultPrefix != "raw" || cfg.Presign.DefaultFilename != "file.bin" {
		t.Errorf("unexpected presign defaults: %+v", cfg.Presign)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("MINIO_HOST", "storage.internal")
	t.Setenv("MINIO_PORT", "443")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("PRESIGN_EXPIRES_SEC", "60")
	t.Setenv("STORE_TIMEOUT_SEC", "5")
	t.Setenv("REQUIRE_AUTH_UPLOAD", "false")
	t.Setenv("REQUIRE_AUTH_LIST", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com/")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := Load(WithEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
	if got := cfg.S3Config().Internal.URL(); got != "https://storage.internal" {
		t.Errorf("unexpected internal endpoint %q", got)
	}
	if cfg.Expiry() != time.Minute {
		t.Errorf("expected 1m expiry, got %s", cfg.Expiry())
	}
	if cfg.CallTimeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.CallTimeout())
	}
	if cfg.Auth.RequireUpload || !cfg.Auth.RequireList {
		t.Errorf("unexpected auth requirements: %+v", cfg.Auth)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if got := cfg.Origins(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected origins %v, got %v", want, got)
	}
	if cfg.HTTP.RateLimitPerMinute != 30 {
		t.Errorf("expected rate limit 30, got %d", cfg.HTTP.RateLimitPerMinute)
	}
}

func TestLoadPublicURLAlias(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PUBLIC_S3_URL", "https://files.example.com")

	cfg, err := Load(WithEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.PublicURL != "https://files.example.com" {
		t.Errorf("expected alias to populate public url, got %q", cfg.Store.PublicURL)
	}
}

func TestLoadRequiredSettings(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"access key", "MINIO_ACCESS_KEY"},
		{"secret key", "MINIO_SECRET_KEY"},
		{"bucket", "MINIO_BUCKET"},
		{"jwt secret", "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")
			if _, err := Load(WithEnv()); err == nil {
				t.Errorf("expected error when %s is empty", tt.unset)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() []Option {
		return []Option{
			WithCredentials("a", "s"),
			WithBucket("b"),
			WithJWTSecret("j"),
		}
	}

	tests := []struct {
		name      string
		extra     Option
		wantError bool
	}{
		{"valid", nil, false},
		{"bad environment", WithEnvironment("staging"), true},
		{"expiry zero", WithExpirySeconds(0), true},
		{"expiry above seven days", WithExpirySeconds(604801), true},
		{"expiry seven days", WithExpirySeconds(604800), false},
		{"negative rate limit", WithRateLimit(-1), true},
		{"bad store port", WithStore("minio", 70000, false), true},
		{"bad log level", func(c *ServerConfig) error { c.LogLevel = "loud"; return nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append(base(), tt.extra)...)
			if tt.wantError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	dev := &ServerConfig{Environment: "development"}
	if got := dev.Origins(); !reflect.DeepEqual(got, devOrigins) {
		t.Errorf("expected dev fallback %v, got %v", devOrigins, got)
	}

	prod := &ServerConfig{Environment: "production"}
	if got := prod.Origins(); len(got) != 0 {
		t.Errorf("expected no origins in production, got %v", got)
	}

	prod.HTTP.AllowedOrigins = []string{"https://app.example.com", " "}
	if got := prod.Origins(); !reflect.DeepEqual(got, []string{"https://app.example.com"}) {
		t.Errorf("unexpected origins %v", got)
	}
}

func TestWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presign.yaml")
	content := `
port: "9090"
store:
  host: s3.internal
  port: 9000
  access_key: file-access
  secret_key: file-secret
  bucket: from-file
auth:
  jwt_secret: file-jwt
presign:
  expires_sec: 120
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.Store.Bucket != "from-file" || cfg.Store.Host != "s3.internal" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Expiry() != 2*time.Minute {
		t.Errorf("expected 2m expiry, got %s", cfg.Expiry())
	}
	if !cfg.Store.PathStyle || !cfg.Auth.RequireUpload {
		t.Errorf("omitted booleans should keep their defaults: path_style=%t require_upload=%t",
			cfg.Store.PathStyle, cfg.Auth.RequireUpload)
	}
}

func TestWithFile_FalseBooleans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presign.yaml")
	content := `
store:
  path_style: false
  access_key: file-access
  secret_key: file-secret
  bucket: from-file
auth:
  jwt_secret: file-jwt
  require_upload: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(WithFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.PathStyle {
		t.Error("path_style: false was overridden")
	}
	if cfg.Auth.RequireUpload {
		t.Error("require_upload: false was overridden")
	}
}

func TestWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "MINIO_ACCESS_KEY=dot-access\nMINIO_SECRET_KEY=dot-secret\nMINIO_BUCKET=dot-bucket\nJWT_SECRET=dot-jwt\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("MINIO_BUCKET", "from-process")
	for _, k := range []string{"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "JWT_SECRET"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(WithDotEnv(path, filepath.Join(dir, "missing.env")), WithEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.AccessKey != "dot-access" {
		t.Errorf("expected access key from .env, got %q", cfg.Store.AccessKey)
	}
	if cfg.Store.Bucket != "from-process" {
		t.Errorf("expected process env to win, got %q", cfg.Store.Bucket)
	}
}

func TestBuild(t *testing.T) {
	cfg, err := Load(
		WithCredentials("a", "s"),
		WithBucket("uploads"),
		WithJWTSecret("j"),
		WithStore("localhost", 9000, false),
		WithPublicURL("https://files.example.com"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	selector, err := cfg.BuildSelector(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !selector.UsesPublicEndpoint() {
		t.Error("expected public endpoint to be used for signing")
	}

	issuer, err := cfg.BuildIssuer(selector, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issuer.Bucket() != "uploads" || issuer.Expiry() != 15*time.Minute {
		t.Errorf("unexpected issuer settings: bucket=%s expiry=%s", issuer.Bucket(), issuer.Expiry())
	}

	if _, err := cfg.BuildVerifier(); err != nil {
		t.Errorf("unexpected verifier error: %v", err)
	}
}

func TestUsage(t *testing.T) {
	text, err := Usage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text == "" {
		t.Error("expected usage text")
	}
}
