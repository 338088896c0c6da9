package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Client talks to the presign gateway and moves bytes directly to and from
// the object store using the URLs it hands out.
type Client struct {
	api           *resty.Client
	transfer      *resty.Client
	retryAttempts int
	retryDelay    time.Duration
	progressFunc  ProgressFunc
}

// ProgressFunc is called during transfers with the number of bytes moved so far
type ProgressFunc func(bytes int64)

// Option is a functional option for configuring a Client
type Option func(*Client)

// WithToken sends a bearer token with every gateway request
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.api.SetAuthToken(token)
		}
	}
}

// WithTimeout bounds gateway requests. Transfers use their own, longer timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.api.SetTimeout(d)
	}
}

// WithTransferTimeout bounds a single upload or download
func WithTransferTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.transfer.SetTimeout(d)
	}
}

// WithRetry configures retry behavior for transfers
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithProgress sets a progress callback for transfers
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) {
		c.progressFunc = fn
	}
}

// New creates a client for the gateway at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		api: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/json"),
		transfer: resty.New().
			SetTimeout(30 * time.Minute).
			SetPreRequestHook(applyContentLength),
		retryAttempts: 3,
		retryDelay:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a failure reported by the gateway
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("presign gateway: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("presign gateway: %d %s: %s", e.Status, e.Code, e.Detail)
}

// RequestUpload asks the gateway for an upload URL
func (c *Client) RequestUpload(ctx context.Context, req presign.UploadRequest) (*presign.UploadURLResponse, error) {
	var out presign.UploadURLResponse
	res, err := c.api.R().SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&presign.ErrorResponse{}).
		Post("/presign/upload")
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestDownload asks the gateway for a download URL. filename is optional.
func (c *Client) RequestDownload(ctx context.Context, key, filename string) (*presign.DownloadURLResponse, error) {
	var out presign.DownloadURLResponse
	r := c.api.R().SetContext(ctx).
		SetQueryParam("key", key).
		SetResult(&out).
		SetError(&presign.ErrorResponse{})
	if filename != "" {
		r.SetQueryParam("filename", filename)
	}
	res, err := r.Get("/download-url")
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns one page of objects. A zero limit uses the gateway default.
func (c *Client) List(ctx context.Context, prefix string, limit int, cursor string) (*presign.ListResponse, error) {
	var out presign.ListResponse
	r := c.api.R().SetContext(ctx).
		SetResult(&out).
		SetError(&presign.ErrorResponse{})
	if prefix != "" {
		r.SetQueryParam("prefix", prefix)
	}
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		r.SetQueryParam("cursor", cursor)
	}
	res, err := r.Get("/list-files")
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyToken returns the identity the gateway extracts from the client's token
func (c *Client) VerifyToken(ctx context.Context) (map[string]interface{}, error) {
	var out struct {
		OK       bool                   `json:"ok"`
		Identity map[string]interface{} `json:"identity"`
	}
	res, err := c.api.R().SetContext(ctx).
		SetResult(&out).
		SetError(&presign.ErrorResponse{}).
		Get("/auth/verify")
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	return out.Identity, nil
}

func checkResponse(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("presign gateway request failed: %w", err)
	}
	if res.IsSuccess() {
		return nil
	}
	apiErr := &APIError{Status: res.StatusCode()}
	if body, ok := res.Error().(*presign.ErrorResponse); ok && body.Error != "" {
		apiErr.Code = body.Error
		apiErr.Detail = body.Detail
	} else {
		apiErr.Code = http.StatusText(res.StatusCode())
	}
	return apiErr
}

type contentLengthKey struct{}

// applyContentLength sets the length recorded on the request context. The
// store rejects chunked uploads, and net/http cannot size an arbitrary reader.
func applyContentLength(_ *resty.Client, req *http.Request) error {
	if n, ok := req.Context().Value(contentLengthKey{}).(int64); ok && n >= 0 {
		req.ContentLength = n
		if n == 0 {
			req.Body = http.NoBody
		}
	}
	return nil
}

// Upload sends size bytes from data to the presigned URL of grant, with the
// headers the grant was signed with. Retries only happen when data can be
// rewound.
func (c *Client) Upload(ctx context.Context, grant *presign.UploadURLResponse, data io.Reader, size int64) error {
	if grant == nil || grant.URL == "" {
		return errors.New("upload grant has no url")
	}
	if size < 0 {
		return errors.New("upload size is required")
	}

	seeker, canRewind := data.(io.Seeker)
	attempts := c.retryAttempts
	if attempts < 1 || !canRewind {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("failed to rewind upload body: %w", err)
			}
		}

		var body io.Reader = data
		if c.progressFunc != nil {
			body = &progressReader{reader: data, callback: c.progressFunc}
		}

		req := c.transfer.R().
			SetContext(context.WithValue(ctx, contentLengthKey{}, size)).
			SetBody(body)
		for k, v := range grant.Headers {
			req.SetHeader(k, v)
		}
		if grant.ContentType != "" {
			req.SetHeader("Content-Type", grant.ContentType)
		}

		res, err := req.Put(grant.URL)
		if err != nil {
			lastErr = fmt.Errorf("upload failed: %w", err)
			continue
		}
		if res.IsSuccess() {
			return nil
		}

		lastErr = fmt.Errorf("upload failed with status: %s", res.Status())

		// Don't retry on client errors (4xx)
		if res.StatusCode() >= 400 && res.StatusCode() < 500 {
			return lastErr
		}
	}

	return fmt.Errorf("upload failed after %d attempts: %w", attempts, lastErr)
}

// Download streams the object behind a presigned URL into w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	res, err := c.transfer.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		return 0, fmt.Errorf("download failed with status: %s", res.Status())
	}

	var src io.Reader = body
	if c.progressFunc != nil {
		src = &progressReader{reader: body, callback: c.progressFunc}
	}
	n, err := io.Copy(w, src)
	if err != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	return n, nil
}

// progressReader wraps an io.Reader to track transfer progress
type progressReader struct {
	reader    io.Reader
	bytesRead int64
	callback  ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.bytesRead += int64(n)
	if pr.callback != nil && n > 0 {
		pr.callback(pr.bytesRead)
	}
	return n, err
}
