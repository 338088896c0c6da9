package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultRegion = "us-east-1"

// Config options for the endpoint selector
type Config struct {
	Region          string   // Region used for signing (default: us-east-1)
	Bucket          string   // Bucket probed for readiness
	AccessKeyID     string   // Access key shared by both endpoints
	SecretAccessKey string   // Secret key shared by both endpoints
	Internal        Endpoint // Endpoint the gateway reaches the store on
	PublicURL       string   // Optional base URL clients reach the store on
	UsePathStyle    bool     // Use path-style addressing (MinIO needs this)
}

// Selector holds one store client per audience. Administrative calls use the
// internal client; URLs handed to clients are signed against the public
// endpoint so the signed Host matches what clients connect to.
type Selector struct {
	internal    Endpoint
	public      Endpoint
	usesPublic  bool
	region      string
	bucket      string
	credentials aws.CredentialsProvider
	client      *s3.Client
	signer      *s3.PresignClient
}

// NewSelector builds the internal and public clients. Missing credentials or
// bucket are errors. A public URL that fails to parse is logged and the
// internal endpoint is used for signing instead.
func NewSelector(ctx context.Context, config Config, logger *slog.Logger) (*Selector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.AccessKeyID == "" || config.SecretAccessKey == "" {
		return nil, errors.New("access key and secret key are required")
	}
	if err := config.Internal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid internal endpoint: %w", err)
	}
	if config.Region == "" {
		config.Region = defaultRegion
	}

	creds := credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.Region),
		awsconfig.WithCredentialsProvider(creds),
		// MinIO rejects presigned PUTs that carry the default CRC32 checksum parameters.
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		awsconfig.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s := &Selector{
		internal:    config.Internal,
		public:      config.Internal,
		region:      config.Region,
		bucket:      config.Bucket,
		credentials: creds,
	}
	s.client = newClient(awsCfg, config.Internal, config.UsePathStyle)

	signingClient := s.client
	if config.PublicURL != "" {
		public, err := ParseEndpoint(config.PublicURL)
		if err != nil {
			logger.Warn("ignoring public store url, signing against internal endpoint",
				"public_url", config.PublicURL, "err", err)
		} else {
			s.public = public
			s.usesPublic = true
			signingClient = newClient(awsCfg, public, config.UsePathStyle)
		}
	}
	s.signer = s3.NewPresignClient(signingClient)

	logger.Info("object store endpoints",
		"internal", s.internal.URL(),
		"public", s.public.URL(),
		"uses_public", s.usesPublic,
		"region", s.region)
	return s, nil
}

func newClient(awsCfg aws.Config, endpoint Endpoint, pathStyle bool) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint.URL())
		o.UsePathStyle = pathStyle
	})
}

// InternalClient returns the client bound to the internal endpoint.
func (s *Selector) InternalClient() *s3.Client { return s.client }

// Signer returns the presign client bound to the public endpoint, or to the
// internal endpoint when no public one is configured.
func (s *Selector) Signer() *s3.PresignClient { return s.signer }

// InternalEndpoint returns the endpoint admin calls go to.
func (s *Selector) InternalEndpoint() Endpoint { return s.internal }

// PublicEndpoint returns the endpoint signed URLs point at.
func (s *Selector) PublicEndpoint() Endpoint { return s.public }

// UsesPublicEndpoint reports whether a separate public endpoint is in use.
func (s *Selector) UsesPublicEndpoint() bool { return s.usesPublic }

// Region returns the signing region.
func (s *Selector) Region() string { return s.region }

// Probe checks that the store answers on the internal endpoint. A bucket that
// does not exist yet still counts as reachable since uploads create it.
func (s *Selector) Probe(ctx context.Context) error {
	_, err := manager.GetBucketRegion(ctx, s.client, s.bucket, func(o *s3.Options) {
		// GetBucketRegion defaults to anonymous credentials, which MinIO refuses.
		o.Credentials = s.credentials
	})
	var notFound manager.BucketNotFound
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("object store unreachable: %w", err)
	}
	return nil
}
