package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-presign/pkg/presign"
)

func TestRateLimiter(t *testing.T) {
	_, err := NewRateLimiter(0, 0)
	assert.Error(t, err)

	l, err := NewRateLimiter(3, time.Minute)
	require.NoError(t, err)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "request %d", i)
	}
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "callers have separate budgets")
	assert.Equal(t, 20, l.RetryAfterSeconds())
}

func TestRateLimiterReusesCallerLimiter(t *testing.T) {
	l, err := NewRateLimiter(5, time.Minute)
	require.NoError(t, err)
	defer l.Stop()

	require.True(t, l.Allow("a"))
	first := l.limiters.Get("a")
	require.NotNil(t, first)

	for i := 0; i < 3; i++ {
		l.Allow("a")
	}
	assert.Same(t, first.Value(), l.limiters.Get("a").Value())
	assert.Equal(t, 1, l.limiters.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, err := NewRateLimiter(2, time.Minute)
	require.NoError(t, err)
	defer limiter.Stop()

	svc := &fakeService{}
	srv := newTestServer(t, svc, WithRateLimiter(limiter))
	token := mintToken(t, "u1", time.Hour)

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodPost, srv.URL+"/presign/upload", token, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := do(t, http.MethodPost, srv.URL+"/presign/upload", token, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, presign.CodeRateLimited, body["error"])
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
	assert.Len(t, svc.uploads, 2)

	// Another subject still has budget.
	resp, _ = do(t, http.MethodPost, srv.URL+"/presign/upload", mintToken(t, "u2", time.Hour), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Listing is not rate limited.
	resp, _ = do(t, http.MethodGet, srv.URL+"/list-files", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallerKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "ip:10.1.2.3", callerKey(r))

	r.RemoteAddr = "10.1.2.3"
	assert.Equal(t, "ip:10.1.2.3", callerKey(r))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name      string
		origins   []string
		origin    string
		wantAllow string
	}{
		{"whitelisted", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com"},
		{"not whitelisted", []string{"https://app.example.com"}, "https://evil.example.com", ""},
		{"empty whitelist refuses all", nil, "https://app.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeService{}, newTestVerifier(t), WithAllowedOrigins(tt.origins...))
			router := h.Routes()

			req := httptest.NewRequest(http.MethodOptions, "/presign/upload", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHealthzPlainText(t *testing.T) {
	h := NewHandler(&fakeService{}, newTestVerifier(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
