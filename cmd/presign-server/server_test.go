package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-presign/pkg/presign/auth"
	"github.com/tendant/simple-presign/pkg/presign/config"
)

const testSecret = "server-test-secret"

// newFakeStore answers every bucket call with 200
func newFakeStore(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Amz-Bucket-Region", "us-east-1")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, store *httptest.Server, opts ...config.Option) *config.ServerConfig {
	t.Helper()
	u, err := url.Parse(store.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	base := []config.Option{
		config.WithEnvironment("testing"),
		config.WithStore(host, port, false),
		config.WithCredentials("minioadmin", "minioadmin"),
		config.WithBucket("uploads"),
		config.WithJWTSecret(testSecret),
		config.WithPublicURL("https://files.example.com"),
	}
	cfg, err := config.Load(append(base, opts...)...)
	require.NoError(t, err)
	return cfg
}

func newTestGateway(t *testing.T, cfg *config.ServerConfig) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := newGateway(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	srv := httptest.NewServer(gw.handler)
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T) string {
	t.Helper()
	issuer, err := auth.NewIssuer(testSecret)
	require.NoError(t, err)
	tok, err := issuer.Issue(auth.Identity{Subject: "user-1", Username: "alice"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestGatewayUploadFlow(t *testing.T) {
	store := newFakeStore(t)
	srv := newTestGateway(t, testConfig(t, store))

	body := bytes.NewBufferString(`{"filename":"photo.PNG","contentType":"image/png"}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/presign/upload", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, http.MethodPut, out["method"])
	assert.Equal(t, "uploads", out["bucket"])
	assert.True(t, strings.HasPrefix(out["key"].(string), "raw/"))
	assert.True(t, strings.HasSuffix(out["key"].(string), "-photo.png"))
	assert.True(t, strings.HasPrefix(out["url"].(string), "https://files.example.com/uploads/"))
	assert.EqualValues(t, 900, out["expiresIn"])
}

func TestGatewayRequiresToken(t *testing.T) {
	store := newFakeStore(t)
	srv := newTestGateway(t, testConfig(t, store))

	resp, err := http.Post(srv.URL+"/presign/upload", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayHealthAndMetrics(t *testing.T) {
	store := newFakeStore(t)
	srv := newTestGateway(t, testConfig(t, store))

	for _, path := range []string{"/healthz", "/healthz/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/download-url?key=raw/a.txt")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metricsBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), `presign_grants_total{method="GET"} 1`)
	assert.Contains(t, string(metricsBody), "presign_http_requests_total")
}

func TestGatewayRateLimit(t *testing.T) {
	store := newFakeStore(t)
	srv := newTestGateway(t, testConfig(t, store, config.WithRateLimit(1)))

	resp, err := http.Get(srv.URL + "/download-url?key=a")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/download-url?key=a")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	store := newFakeStore(t)
	cfg := testConfig(t, store, config.WithPort("0"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.ServerConfig{Environment: "production", LogLevel: "warn"}
	logger := newLogger(cfg, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}
