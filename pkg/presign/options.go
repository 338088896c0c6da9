package presign

import (
	"log/slog"
	"time"

	"github.com/tendant/simple-presign/pkg/presign/objectkey"
)

const (
	// DefaultExpiry is the lifetime of every grant unless overridden
	DefaultExpiry = 15 * time.Minute

	// MaxExpiry is the longest lifetime SigV4 accepts
	MaxExpiry = 7 * 24 * time.Hour

	// DefaultListLimit is the page size used when a request has none
	DefaultListLimit = 100

	// MaxListLimit is the largest page ListObjectsV2 returns
	MaxListLimit = 1000
)

// Option configures an Issuer
type Option func(*Issuer)

// WithSigner sets the presigner bound to the public endpoint
func WithSigner(p Presigner) Option {
	return func(i *Issuer) {
		i.signer = p
	}
}

// WithLister sets the client used for listing, normally bound to the internal endpoint
func WithLister(l ObjectLister) Option {
	return func(i *Issuer) {
		i.lister = l
	}
}

// WithProvisioner sets the bucket provisioner run before each upload grant
func WithProvisioner(p BucketProvisioner) Option {
	return func(i *Issuer) {
		i.provisioner = p
	}
}

// WithDeriver sets the object key deriver
func WithDeriver(d *objectkey.Deriver) Option {
	return func(i *Issuer) {
		i.deriver = d
	}
}

// WithBucket sets the target bucket
func WithBucket(bucket string) Option {
	return func(i *Issuer) {
		i.bucket = bucket
	}
}

// WithExpiry sets the lifetime of issued grants
func WithExpiry(d time.Duration) Option {
	return func(i *Issuer) {
		i.expiry = d
	}
}

// WithCallTimeout bounds every store call. Zero leaves the caller's context as is.
func WithCallTimeout(d time.Duration) Option {
	return func(i *Issuer) {
		i.callTimeout = d
	}
}

// WithObserver sets the event observer
func WithObserver(o Observer) Option {
	return func(i *Issuer) {
		i.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(i *Issuer) {
		i.logger = l
	}
}

// WithClock sets the clock used for ExpiresAt
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// DownloadOption configures a single download grant
type DownloadOption func(*downloadOptions)

type downloadOptions struct {
	filename string
}

// WithDownloadFilename makes the store answer with an attachment disposition
// naming the file.
func WithDownloadFilename(name string) DownloadOption {
	return func(o *downloadOptions) {
		o.filename = name
	}
}
