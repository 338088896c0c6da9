package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/tendant/simple-presign/pkg/presign"
)

const maxBodyBytes = 64 << 10

// IssueUploadURL handles POST /presign/upload and POST /upload-url.
// An empty body uses the default prefix and filename.
func (h *Handler) IssueUploadURL(w http.ResponseWriter, r *http.Request) {
	var req presign.UploadRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(r.Context(), "Failed to decode request", "error", err)
		h.writeError(w, r, &presign.Error{
			Op:   "decode upload request",
			Kind: presign.ErrInvalidRequest,
			Err:  err,
		})
		return
	}

	id, _ := IdentityFromContext(r.Context())
	grant, err := h.service.IssueUploadURL(r.Context(), req, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, presign.NewUploadURLResponse(grant))
}

// IssueDownloadURL handles GET /download-url?key=&filename=
func (h *Handler) IssueDownloadURL(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var opts []presign.DownloadOption
	if name := query.Get("filename"); name != "" {
		opts = append(opts, presign.WithDownloadFilename(name))
	}

	id, _ := IdentityFromContext(r.Context())
	grant, err := h.service.IssueDownloadURL(r.Context(), query.Get("key"), id, opts...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, presign.NewDownloadURLResponse(grant))
}

// ListFiles handles GET /list-files?prefix=&limit=&cursor=
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := presign.ListRequest{
		Prefix: query.Get("prefix"),
		Cursor: query.Get("cursor"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, r, &presign.Error{
				Op:   "parse list request",
				Kind: presign.ErrInvalidLimit,
				Err:  fmt.Errorf("limit must be a non-negative integer, got %q", raw),
			})
			return
		}
		req.Limit = limit
	}

	page, err := h.service.ListObjects(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, presign.NewListResponse(page))
}

// VerifyToken handles GET /auth/verify and echoes the caller's identity
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"ok":       true,
		"identity": id,
	})
}

// Ping handles GET /presign/ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"ok":  true,
		"msg": "presign ready",
	})
}
