package objectkey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// DefaultPrefix is used when the caller supplies no usable prefix
	DefaultPrefix = "raw"

	// DefaultFilename is used when the caller supplies no filename
	DefaultFilename = "file.bin"

	// NonceBytes is the size of the random component of every key (48 bits)
	NonceBytes = 6

	timestampLayout = "2006-01-02T15-04-05.000Z"
)

// Key is a derived object key together with the parts it was built from.
type Key struct {
	Key         string
	Prefix      string
	Extension   string
	ContentType string
}

// Deriver builds unique object keys of the form
//
//	<prefix>/<timestamp>-<nonce>[-<stem>].<ext>
//
// e.g. raw/2025-11-10T04-07-00-123Z-9f86d081884c-photo.png
//
// A Deriver is immutable after construction and safe for concurrent use.
type Deriver struct {
	now             func() time.Time
	random          io.Reader
	defaultPrefix   string
	defaultFilename string
}

// Option configures a Deriver
type Option func(*Deriver)

// WithClock sets the wall-clock source used for the timestamp component
func WithClock(now func() time.Time) Option {
	return func(d *Deriver) {
		d.now = now
	}
}

// WithRandom sets the entropy source used for the nonce component
func WithRandom(r io.Reader) Option {
	return func(d *Deriver) {
		d.random = r
	}
}

// WithDefaultPrefix sets the prefix applied when a request has none
func WithDefaultPrefix(prefix string) Option {
	return func(d *Deriver) {
		d.defaultPrefix = prefix
	}
}

// WithDefaultFilename sets the filename applied when a request has none
func WithDefaultFilename(name string) Option {
	return func(d *Deriver) {
		d.defaultFilename = name
	}
}

// New creates a Deriver. Without options it uses time.Now and crypto/rand.
func New(opts ...Option) *Deriver {
	d := &Deriver{
		now:             time.Now,
		random:          rand.Reader,
		defaultPrefix:   DefaultPrefix,
		defaultFilename: DefaultFilename,
	}
	for _, opt := range opts {
		opt(d)
	}
	if NormalizePrefix(d.defaultPrefix) == "" {
		d.defaultPrefix = DefaultPrefix
	}
	if strings.TrimSpace(d.defaultFilename) == "" {
		d.defaultFilename = DefaultFilename
	}
	return d
}

// Derive computes the object key for an upload. contentType may be empty, in
// which case it is inferred from the filename extension.
func (d *Deriver) Derive(prefix, filename, contentType string) (Key, error) {
	p := NormalizePrefix(prefix)
	if p == "" {
		p = NormalizePrefix(d.defaultPrefix)
	}

	if strings.TrimSpace(filename) == "" {
		filename = d.defaultFilename
	}
	stem, ext := splitExtension(SanitizeFilename(filename))

	contentType = strings.TrimSpace(contentType)
	if ext == "" {
		ext = ExtensionForType(contentType)
	}
	if contentType == "" {
		contentType = TypeForExtension(ext)
	}

	nonce, err := d.nonce()
	if err != nil {
		return Key{}, err
	}

	var b strings.Builder
	b.WriteString(p)
	b.WriteByte('/')
	b.WriteString(d.timestamp())
	b.WriteByte('-')
	b.WriteString(nonce)
	if stem != "" {
		b.WriteByte('-')
		b.WriteString(stem)
	}
	b.WriteByte('.')
	b.WriteString(ext)

	return Key{
		Key:         b.String(),
		Prefix:      p,
		Extension:   ext,
		ContentType: contentType,
	}, nil
}

func (d *Deriver) timestamp() string {
	// Go only formats fractional seconds after a dot; swap it for a dash.
	return strings.Replace(d.now().UTC().Format(timestampLayout), ".", "-", 1)
}

func (d *Deriver) nonce() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := io.ReadFull(d.random, buf); err != nil {
		return "", fmt.Errorf("failed to read key nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
