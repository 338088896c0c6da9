package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// BucketAPI is the subset of *s3.Client the provisioner needs.
type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Provisioner creates the bucket on first use. It keeps no state between
// calls; concurrent creators are reconciled by the store's "already exists"
// answers.
type Provisioner struct {
	api    BucketAPI
	region string
	logger *slog.Logger
}

// NewProvisioner creates a Provisioner; region drives the CreateBucket location constraint.
func NewProvisioner(api BucketAPI, region string, logger *slog.Logger) *Provisioner {
	if region == "" {
		region = defaultRegion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{api: api, region: region, logger: logger}
}

// EnsureBucket makes sure bucket exists. Any HeadBucket failure, network
// errors included, is treated as "absent" and creation is attempted.
func (p *Provisioner) EnsureBucket(ctx context.Context, bucket string) (bool, error) {
	_, err := p.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return false, nil
	}
	p.logger.DebugContext(ctx, "bucket check failed, creating", "bucket", bucket, "err", err)

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// Add location constraint for regions other than us-east-1
	if p.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}

	if _, err := p.api.CreateBucket(ctx, input); err != nil {
		if alreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create bucket: %w", err)
	}
	return true, nil
}

func alreadyExists(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return true
		}
	}
	return false
}
