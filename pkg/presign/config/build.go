package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/auth"
	"github.com/tendant/simple-presign/pkg/presign/objectkey"
	"github.com/tendant/simple-presign/pkg/presign/storage/s3"
)

// S3Config converts the store settings for the endpoint selector
func (c *ServerConfig) S3Config() s3.Config {
	return s3.Config{
		Region:          c.Store.Region,
		Bucket:          c.Store.Bucket,
		AccessKeyID:     c.Store.AccessKey,
		SecretAccessKey: c.Store.SecretKey,
		Internal:        s3.NewEndpoint(c.Store.Host, c.Store.Port, c.Store.UseSSL),
		PublicURL:       c.Store.PublicURL,
		UsePathStyle:    c.Store.PathStyle,
	}
}

// BuildSelector creates the endpoint selector
func (c *ServerConfig) BuildSelector(ctx context.Context, logger *slog.Logger) (*s3.Selector, error) {
	selector, err := s3.NewSelector(ctx, c.S3Config(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build endpoint selector: %w", err)
	}
	return selector, nil
}

// BuildIssuer creates an Issuer wired to the selector's clients
func (c *ServerConfig) BuildIssuer(selector *s3.Selector, observer presign.Observer, logger *slog.Logger) (*presign.Issuer, error) {
	deriver := objectkey.New(
		objectkey.WithDefaultPrefix(c.Presign.DefaultPrefix),
		objectkey.WithDefaultFilename(c.Presign.DefaultFilename),
	)

	options := []presign.Option{
		presign.WithSigner(selector.Signer()),
		presign.WithLister(selector.InternalClient()),
		presign.WithProvisioner(s3.NewProvisioner(selector.InternalClient(), selector.Region(), logger)),
		presign.WithDeriver(deriver),
		presign.WithBucket(c.Store.Bucket),
		presign.WithExpiry(c.Expiry()),
		presign.WithCallTimeout(c.CallTimeout()),
	}
	if observer != nil {
		options = append(options, presign.WithObserver(observer))
	}
	if logger != nil {
		options = append(options, presign.WithLogger(logger))
	}

	issuer, err := presign.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to build issuer: %w", err)
	}
	return issuer, nil
}

// BuildVerifier creates the token verifier
func (c *ServerConfig) BuildVerifier() (*auth.Verifier, error) {
	return auth.NewVerifier(c.Auth.JWTSecret)
}
