package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-presign/pkg/presign"
)

// statusFor maps an error code to its HTTP status
func statusFor(code string) int {
	switch code {
	case presign.CodeNoToken, presign.CodeInvalidToken:
		return http.StatusUnauthorized
	case presign.CodeInvalidRequest, presign.CodeMissingKey, presign.CodeInvalidLimit:
		return http.StatusBadRequest
	case presign.CodeRateLimited:
		return http.StatusTooManyRequests
	case presign.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {ok:false,error,detail}
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := presign.CodeOf(err)

	detail := err.Error()
	var e *presign.Error
	if errors.As(err, &e) {
		detail = e.Detail()
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", "code", code, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, presign.ErrorResponse{
		OK:     false,
		Error:  code,
		Detail: detail,
	})
}
