package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/auth"
)

// Context keys for middleware
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the verified caller on ctx
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller verified by Authenticate, if any
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

// ResponseWriter wrapper that captures status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK, // Default status
	}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// LoggingMiddleware logs every request and records per-route metrics
func (h *Handler) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.requestMetrics.ObserveRequest(r.Method, route, strconv.Itoa(rw.statusCode), duration)

		level := slogLevelFor(rw.statusCode)
		h.logger.Log(r.Context(), level, "HTTP request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"bytes", rw.bytesWritten,
			"remote", r.RemoteAddr)
	})
}

func slogLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// RecoveryMiddleware recovers from panics and returns a 500 error body
func (h *Handler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.ErrorContext(r.Context(), "PANIC",
				"request_id", middleware.GetReqID(r.Context()),
				"panic", rec)
			h.writeError(w, r, fmt.Errorf("internal error: %v", rec))
		}()

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware only admits whitelisted origins. go-chi/cors treats an empty
// AllowedOrigins list as "*", so the whitelist goes through AllowOriginFunc.
func (h *Handler) CORSMiddleware() func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(h.origins))
	for _, o := range h.origins {
		allowed[o] = struct{}{}
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Authenticate verifies the bearer token. On required routes a missing token
// is rejected; on optional routes it is let through anonymously, but a token
// that is present must still be valid.
func (h *Handler) Authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				h.rejectAuth(w, r, err)
				return
			}

			if h.verifier == nil {
				h.rejectAuth(w, r, auth.ErrInvalidToken)
				return
			}
			id, err := h.verifier.Verify(token)
			if err != nil {
				h.rejectAuth(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func (h *Handler) rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	h.observer.RequestFailed(presign.CodeOf(err))
	h.logger.InfoContext(r.Context(), "Rejected request", "path", r.URL.Path, "error", err)
	h.writeError(w, r, err)
}

// RateLimitMiddleware applies the issuance budget when a limiter is configured
func (h *Handler) RateLimitMiddleware(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow(callerKey(r)) {
			h.observer.RequestFailed(presign.CodeRateLimited)
			w.Header().Set("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
			h.writeError(w, r, &presign.Error{
				Op:   "issue url",
				Kind: presign.ErrRateLimited,
				Err:  fmt.Errorf("maximum %d requests per minute", h.limiter.PerMinute()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerKey identifies the caller: the token subject when authenticated,
// otherwise the client IP.
func callerKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok && id.Subject != "" {
		return "sub:" + id.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimiter hands out one token-bucket limiter per caller. Idle limiters
// expire from the cache so memory stays bounded by active callers.
type RateLimiter struct {
	perMinute int
	limiters  *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter allowing perMinute requests per caller,
// with bursts up to perMinute. Call Stop when done.
func NewRateLimiter(perMinute int, idleTTL time.Duration) (*RateLimiter, error) {
	if perMinute <= 0 {
		return nil, errors.New("rate limit must be positive")
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	cache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](idleTTL),
	)
	go cache.Start()
	return &RateLimiter{perMinute: perMinute, limiters: cache}, nil
}

// Allow reports whether the caller may issue one more request now
func (l *RateLimiter) Allow(key string) bool {
	if item := l.limiters.Get(key); item != nil {
		return item.Value().Allow()
	}
	item, _ := l.limiters.GetOrSet(key,
		rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute))
	return item.Value().Allow()
}

// PerMinute returns the per-caller budget
func (l *RateLimiter) PerMinute() int { return l.perMinute }

// RetryAfterSeconds is the time until the next token refills, rounded up
func (l *RateLimiter) RetryAfterSeconds() int {
	return int((time.Minute/time.Duration(l.perMinute) + time.Second - 1) / time.Second)
}

// Stop halts the cache's expiry loop
func (l *RateLimiter) Stop() {
	l.limiters.Stop()
}
