package presign

import (
	"context"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tendant/simple-presign/pkg/presign/auth"
)

// Service is the issuance surface consumed by the HTTP layer.
type Service interface {
	// IssueUploadURL derives a fresh key, makes sure the bucket exists and
	// signs a PUT bound to the resolved content type.
	IssueUploadURL(ctx context.Context, req UploadRequest, id *auth.Identity) (*Grant, error)

	// IssueDownloadURL signs a GET for an existing key.
	IssueDownloadURL(ctx context.Context, key string, id *auth.Identity, opts ...DownloadOption) (*Grant, error)

	// ListObjects returns one page of objects under a prefix.
	ListObjects(ctx context.Context, req ListRequest) (*ListPage, error)
}

// Presigner signs object requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectLister lists objects. *s3.Client satisfies it.
type ObjectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// BucketProvisioner makes sure a bucket exists before an upload is signed.
// created reports whether this call created it.
type BucketProvisioner interface {
	EnsureBucket(ctx context.Context, bucket string) (created bool, err error)
}

// Observer receives issuance events, typically to feed metrics.
type Observer interface {
	GrantIssued(method string)
	RequestFailed(code string)
	BucketEnsured(outcome string)
	StoreCall(op string, elapsed time.Duration, err error)
}

// Bucket provisioning outcomes reported to Observer.BucketEnsured.
const (
	BucketCreated  = "created"
	BucketExisting = "existing"
	BucketFailed   = "error"
)

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) GrantIssued(string) {}
func (NoopObserver) RequestFailed(string) {}
func (NoopObserver) BucketEnsured(string) {}
func (NoopObserver) StoreCall(string, time.Duration, error) {}
