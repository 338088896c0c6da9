package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/auth"
	"github.com/tendant/simple-presign/pkg/presign/metrics"
)

// Prober reports whether the object store is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// Handler serves the presign HTTP surface.
type Handler struct {
	service        presign.Service
	verifier       *auth.Verifier
	prober         Prober
	observer       presign.Observer
	requestMetrics metrics.RequestMetrics
	metricsHandler http.Handler
	logger         *slog.Logger
	origins        []string
	limiter        *RateLimiter

	requireUpload   bool
	requireDownload bool
	requireList     bool
}

// Option configures a Handler
type Option func(*Handler)

// WithProber enables the readiness check
func WithProber(p Prober) Option {
	return func(h *Handler) {
		h.prober = p
	}
}

// WithObserver receives failures detected at the HTTP boundary (auth, rate limit)
func WithObserver(o presign.Observer) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

// WithRequestMetrics records per-route request counts and latency
func WithRequestMetrics(m metrics.RequestMetrics) Option {
	return func(h *Handler) {
		h.requestMetrics = m
	}
}

// WithMetricsHandler mounts h at GET /metrics
func WithMetricsHandler(mh http.Handler) Option {
	return func(h *Handler) {
		h.metricsHandler = mh
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithAllowedOrigins sets the CORS whitelist. An empty list refuses every
// cross-origin request.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.origins = origins
	}
}

// WithAuthRequirements sets which routes require a bearer token
func WithAuthRequirements(upload, download, list bool) Option {
	return func(h *Handler) {
		h.requireUpload = upload
		h.requireDownload = download
		h.requireList = list
	}
}

// WithRateLimiter limits URL issuance per caller
func WithRateLimiter(l *RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// NewHandler creates a Handler. Uploads require a token by default; downloads
// and listings do not.
func NewHandler(service presign.Service, verifier *auth.Verifier, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		verifier:       verifier,
		observer:       presign.NoopObserver{},
		requestMetrics: metrics.Noop{},
		logger:         slog.Default(),
		requireUpload:  true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router with every endpoint mounted
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.LoggingMiddleware)
	r.Use(h.RecoveryMiddleware)
	r.Use(h.CORSMiddleware())

	r.Get("/healthz", h.Healthz)
	r.Get("/healthz/ready", h.Ready)
	if h.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", h.metricsHandler)
	}

	r.Get("/presign/ping", h.Ping)
	r.With(h.Authenticate(true)).Get("/auth/verify", h.VerifyToken)

	upload := r.With(h.Authenticate(h.requireUpload), h.RateLimitMiddleware)
	upload.Post("/presign/upload", h.IssueUploadURL)
	upload.Post("/upload-url", h.IssueUploadURL)

	r.With(h.Authenticate(h.requireDownload), h.RateLimitMiddleware).Get("/download-url", h.IssueDownloadURL)
	r.With(h.Authenticate(h.requireList)).Get("/list-files", h.ListFiles)

	return r
}
