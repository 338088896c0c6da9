package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithStore points the gateway at an object store
func WithStore(host string, port int, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if host == "" {
			return fmt.Errorf("store host cannot be empty")
		}
		c.Store.Host = host
		c.Store.Port = port
		c.Store.UseSSL = useSSL
		return nil
	}
}

// WithPublicURL sets the base URL clients reach the store on
func WithPublicURL(u string) Option {
	return func(c *ServerConfig) error {
		c.Store.PublicURL = u
		return nil
	}
}

// WithCredentials sets the store access key pair
func WithCredentials(accessKey, secretKey string) Option {
	return func(c *ServerConfig) error {
		c.Store.AccessKey = accessKey
		c.Store.SecretKey = secretKey
		return nil
	}
}

// WithBucket sets the target bucket
func WithBucket(bucket string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		c.Store.Bucket = bucket
		return nil
	}
}

// WithJWTSecret sets the token secret
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.Auth.JWTSecret = secret
		return nil
	}
}

// WithAuthRequirements sets which routes require a bearer token
func WithAuthRequirements(upload, download, list bool) Option {
	return func(c *ServerConfig) error {
		c.Auth.RequireUpload = upload
		c.Auth.RequireDownload = download
		c.Auth.RequireList = list
		return nil
	}
}

// WithExpirySeconds sets the grant lifetime
func WithExpirySeconds(sec int) Option {
	return func(c *ServerConfig) error {
		c.Presign.ExpiresSec = sec
		return nil
	}
}

// WithAllowedOrigins sets the CORS whitelist
func WithAllowedOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.HTTP.AllowedOrigins = origins
		return nil
	}
}

// WithRateLimit sets the per-caller issuance budget per minute; 0 disables
func WithRateLimit(perMinute int) Option {
	return func(c *ServerConfig) error {
		c.HTTP.RateLimitPerMinute = perMinute
		return nil
	}
}
