package presign

import (
	"net/http"
	"time"
)

// Grant is a signed URL handed to a caller. Grants are never stored; the
// object store enforces the embedded expiry on its own.
type Grant struct {
	Method      string
	Bucket      string
	Key         string
	ContentType string
	URL         string
	ExpiresIn   time.Duration
	ExpiresAt   time.Time

	// Headers must accompany the signed request, e.g. the bound Content-Type.
	Headers http.Header
}

// UploadRequest carries the caller-supplied metadata of an upload.
type UploadRequest struct {
	Prefix      string `json:"prefix,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// ListRequest selects one page of objects.
type ListRequest struct {
	Prefix string
	Limit  int
	Cursor string
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ListPage is one page of a listing. NextCursor is passed back verbatim to
// continue; it is empty when IsTruncated is false.
type ListPage struct {
	Items       []ObjectInfo
	IsTruncated bool
	NextCursor  string
}

// Wire formats shared by the HTTP handlers and the Go client.

// UploadURLResponse is the body returned by POST /presign/upload.
type UploadURLResponse struct {
	OK          bool              `json:"ok"`
	URL         string            `json:"url"`
	Key         string            `json:"key"`
	Bucket      string            `json:"bucket"`
	Method      string            `json:"method"`
	ContentType string            `json:"contentType"`
	ExpiresIn   int64             `json:"expiresIn"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// DownloadURLResponse is the body returned by GET /download-url.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Method    string    `json:"method"`
	ExpiresIn int64     `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ListItem is one entry of ListResponse.
type ListItem struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"lastModified"`
}

// ListResponse is the body returned by GET /list-files.
type ListResponse struct {
	Items       []ListItem `json:"items"`
	IsTruncated bool       `json:"isTruncated"`
	NextCursor  *string    `json:"nextCursor"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// NewUploadURLResponse converts a PUT grant to its wire form.
func NewUploadURLResponse(g *Grant) UploadURLResponse {
	headers := make(map[string]string, len(g.Headers))
	for k := range g.Headers {
		headers[k] = g.Headers.Get(k)
	}
	return UploadURLResponse{
		OK:          true,
		URL:         g.URL,
		Key:         g.Key,
		Bucket:      g.Bucket,
		Method:      g.Method,
		ContentType: g.ContentType,
		ExpiresIn:   int64(g.ExpiresIn / time.Second),
		ExpiresAt:   g.ExpiresAt,
		Headers:     headers,
	}
}

// NewDownloadURLResponse converts a GET grant to its wire form.
func NewDownloadURLResponse(g *Grant) DownloadURLResponse {
	return DownloadURLResponse{
		URL:       g.URL,
		Bucket:    g.Bucket,
		Key:       g.Key,
		Method:    g.Method,
		ExpiresIn: int64(g.ExpiresIn / time.Second),
		ExpiresAt: g.ExpiresAt,
	}
}

// NewListResponse converts a page to its wire form.
func NewListResponse(p *ListPage) ListResponse {
	items := make([]ListItem, 0, len(p.Items))
	for _, o := range p.Items {
		items = append(items, ListItem{
			Key:          o.Key,
			Size:         o.Size,
			ETag:         o.ETag,
			LastModified: o.LastModified,
		})
	}
	resp := ListResponse{Items: items, IsTruncated: p.IsTruncated}
	if p.NextCursor != "" {
		cursor := p.NextCursor
		resp.NextCursor = &cursor
	}
	return resp
}
