package presign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/tendant/simple-presign/pkg/presign/auth"
	"github.com/tendant/simple-presign/pkg/presign/objectkey"
)

// Issuer issues upload and download grants and lists objects. It holds no
// mutable state and is safe for concurrent use.
type Issuer struct {
	signer      Presigner
	lister      ObjectLister
	provisioner BucketProvisioner
	deriver     *objectkey.Deriver
	bucket      string
	expiry      time.Duration
	callTimeout time.Duration
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
}

var _ Service = (*Issuer)(nil)

// New creates an Issuer. A signer and a bucket are required.
func New(opts ...Option) (*Issuer, error) {
	i := &Issuer{
		expiry:   DefaultExpiry,
		observer: NoopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	if i.signer == nil {
		return nil, errors.New("presigner is required")
	}
	if i.bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if i.expiry <= 0 || i.expiry > MaxExpiry {
		return nil, fmt.Errorf("expiry must be between 1s and %s, got %s", MaxExpiry, i.expiry)
	}
	if i.callTimeout < 0 {
		return nil, fmt.Errorf("call timeout must not be negative, got %s", i.callTimeout)
	}
	if i.deriver == nil {
		i.deriver = objectkey.New()
	}
	return i, nil
}

// Bucket returns the bucket grants are issued for.
func (i *Issuer) Bucket() string { return i.bucket }

// Expiry returns the lifetime of issued grants.
func (i *Issuer) Expiry() time.Duration { return i.expiry }

// IssueUploadURL implements Service.
func (i *Issuer) IssueUploadURL(ctx context.Context, req UploadRequest, id *auth.Identity) (*Grant, error) {
	const op = "issue upload url"

	if ct := strings.TrimSpace(req.ContentType); ct != "" {
		if _, _, err := mime.ParseMediaType(ct); err != nil {
			return nil, i.fail(op, ErrInvalidRequest, fmt.Errorf("content type %q: %w", ct, err))
		}
	}

	key, err := i.deriver.Derive(req.Prefix, req.Filename, req.ContentType)
	if err != nil {
		return nil, i.fail(op, ErrPresignFailed, err)
	}

	if i.provisioner != nil {
		if err := i.ensureBucket(ctx); err != nil {
			return nil, i.fail(op, ErrPresignFailed, err)
		}
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key.Key),
		ContentType: aws.String(key.ContentType),
	}

	cctx, cancel := i.callContext(ctx)
	defer cancel()
	start := time.Now()
	signed, err := i.signer.PresignPutObject(cctx, input,
		s3.WithPresignExpires(i.expiry),
		bindContentType(key.ContentType))
	i.observer.StoreCall("presign_put", time.Since(start), err)
	if err != nil {
		return nil, i.fail(op, ErrPresignFailed, err)
	}

	grant := i.grant(http.MethodPut, key.Key, signed.URL, signed.SignedHeader)
	grant.ContentType = key.ContentType

	i.observer.GrantIssued(grant.Method)
	i.logger.InfoContext(ctx, "issued upload url",
		"key", grant.Key,
		"content_type", grant.ContentType,
		"subject", subjectOf(id))
	return grant, nil
}

// bindContentType makes Content-Type part of the PUT signature. PresignPutObject
// strips the header in its build step, so it is restored right after that.
func bindContentType(contentType string) func(*s3.PresignOptions) {
	restore := middleware.BuildMiddlewareFunc("RestoreContentTypeHeader",
		func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (middleware.BuildOutput, middleware.Metadata, error) {
			if req, ok := in.Request.(*smithyhttp.Request); ok {
				req.Header.Set("Content-Type", contentType)
			}
			return next.HandleBuild(ctx, in)
		})

	return s3.WithPresignClientFromClientOptions(func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Build.Add(restore, middleware.After)
		})
	})
}

// IssueDownloadURL implements Service. The object is not checked for
// existence; a missing key surfaces as a 404 from the store on use.
func (i *Issuer) IssueDownloadURL(ctx context.Context, key string, id *auth.Identity, opts ...DownloadOption) (*Grant, error) {
	const op = "issue download url"

	if strings.TrimSpace(key) == "" {
		return nil, i.fail(op, ErrMissingKey, nil)
	}

	var o downloadOptions
	for _, opt := range opts {
		opt(&o)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(key),
	}
	if o.filename != "" {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": o.filename})
		if disposition == "" {
			disposition = fmt.Sprintf("attachment; filename=%q", objectkey.SanitizeFilename(o.filename))
		}
		input.ResponseContentDisposition = aws.String(disposition)
	}

	cctx, cancel := i.callContext(ctx)
	defer cancel()
	start := time.Now()
	signed, err := i.signer.PresignGetObject(cctx, input, s3.WithPresignExpires(i.expiry))
	i.observer.StoreCall("presign_get", time.Since(start), err)
	if err != nil {
		return nil, i.fail(op, ErrDownloadURL, err)
	}

	grant := i.grant(http.MethodGet, key, signed.URL, signed.SignedHeader)
	i.observer.GrantIssued(grant.Method)
	i.logger.InfoContext(ctx, "issued download url", "key", key, "subject", subjectOf(id))
	return grant, nil
}

// ListObjects implements Service. A zero limit means DefaultListLimit; larger
// values are clamped to MaxListLimit.
func (i *Issuer) ListObjects(ctx context.Context, req ListRequest) (*ListPage, error) {
	const op = "list objects"

	if req.Limit < 0 {
		return nil, i.fail(op, ErrInvalidLimit, fmt.Errorf("limit %d is negative", req.Limit))
	}
	if i.lister == nil {
		return nil, i.fail(op, ErrList, errors.New("no object lister configured"))
	}

	limit := req.Limit
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(i.bucket),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if req.Prefix != "" {
		input.Prefix = aws.String(req.Prefix)
	}
	if req.Cursor != "" {
		input.ContinuationToken = aws.String(req.Cursor)
	}

	cctx, cancel := i.callContext(ctx)
	defer cancel()
	start := time.Now()
	out, err := i.lister.ListObjectsV2(cctx, input)
	i.observer.StoreCall("list_objects", time.Since(start), err)
	if err != nil {
		return nil, i.fail(op, ErrList, err)
	}

	page := &ListPage{
		Items:       make([]ObjectInfo, 0, len(out.Contents)),
		IsTruncated: aws.ToBool(out.IsTruncated),
	}
	for _, obj := range out.Contents {
		page.Items = append(page.Items, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	if page.IsTruncated {
		page.NextCursor = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (i *Issuer) ensureBucket(ctx context.Context) error {
	cctx, cancel := i.callContext(ctx)
	defer cancel()

	start := time.Now()
	created, err := i.provisioner.EnsureBucket(cctx, i.bucket)
	i.observer.StoreCall("ensure_bucket", time.Since(start), err)
	switch {
	case err != nil:
		i.observer.BucketEnsured(BucketFailed)
		return fmt.Errorf("failed to ensure bucket %s: %w", i.bucket, err)
	case created:
		i.observer.BucketEnsured(BucketCreated)
		i.logger.InfoContext(ctx, "created bucket", "bucket", i.bucket)
	default:
		i.observer.BucketEnsured(BucketExisting)
	}
	return nil
}

func (i *Issuer) grant(method, key, url string, signed http.Header) *Grant {
	headers := make(http.Header, len(signed))
	for name, values := range signed {
		// Host is set by every HTTP client from the URL itself.
		if strings.EqualFold(name, "Host") {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = values
	}
	return &Grant{
		Method:    method,
		Bucket:    i.bucket,
		Key:       key,
		URL:       url,
		ExpiresIn: i.expiry,
		ExpiresAt: i.now().Add(i.expiry).UTC(),
		Headers:   headers,
	}
}

func (i *Issuer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.callTimeout > 0 {
		return context.WithTimeout(ctx, i.callTimeout)
	}
	return context.WithCancel(ctx)
}

// fail wraps err into an *Error of the given kind. Deadline and cancellation
// causes are reported as ErrTimeout regardless of kind.
func (i *Issuer) fail(op string, kind, err error) error {
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		kind = ErrTimeout
	}
	e := &Error{Op: op, Kind: kind, Err: err}
	i.observer.RequestFailed(e.Code())
	if kind != ErrMissingKey && kind != ErrInvalidRequest && kind != ErrInvalidLimit {
		i.logger.Error("presign operation failed", "op", op, "code", e.Code(), "err", err)
	}
	return e
}

func subjectOf(id *auth.Identity) string {
	if id == nil {
		return ""
	}
	return id.Subject
}
