package presign

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-presign/pkg/presign/auth"
)

// Error kinds. Every error returned by the Issuer wraps exactly one of these.
var (
	// ErrInvalidRequest indicates malformed caller input such as a bad content type
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidLimit indicates a negative or non-numeric page size
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrMissingKey indicates a download was requested without an object key
	ErrMissingKey = errors.New("object key is required")

	// ErrPresignFailed indicates key derivation, bucket provisioning or PUT signing failed
	ErrPresignFailed = errors.New("presign failed")

	// ErrDownloadURL indicates GET signing failed
	ErrDownloadURL = errors.New("download url generation failed")

	// ErrList indicates the object listing call failed
	ErrList = errors.New("list objects failed")

	// ErrTimeout indicates a store call ran past its deadline
	ErrTimeout = errors.New("object store call timed out")

	// ErrRateLimited indicates the caller exceeded its issuance budget
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Stable, machine-readable error codes returned to callers.
const (
	CodeNoToken        = "NO_TOKEN"
	CodeInvalidToken   = "INVALID_TOKEN"
	CodeInvalidRequest = "INVALID_BODY"
	CodeInvalidLimit   = "INVALID_LIMIT"
	CodeMissingKey     = "MISSING_KEY"
	CodePresignFailed  = "PRESIGN_FAILED"
	CodeDownloadURL    = "DOWNLOAD_URL_ERROR"
	CodeList           = "LIST_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL"
)

var kindCodes = map[error]string{
	ErrInvalidRequest: CodeInvalidRequest,
	ErrInvalidLimit:   CodeInvalidLimit,
	ErrMissingKey:     CodeMissingKey,
	ErrPresignFailed:  CodePresignFailed,
	ErrDownloadURL:    CodeDownloadURL,
	ErrList:           CodeList,
	ErrTimeout:        CodeTimeout,
	ErrRateLimited:    CodeRateLimited,
}

// Error is returned by every Issuer operation. Kind is one of the Err* values
// above; Err is the underlying cause, if any.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns the stable code of the error kind.
func (e *Error) Code() string {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return CodeInternal
}

// Detail returns the human-readable cause without the operation prefix.
func (e *Error) Detail() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

// CodeOf maps any error produced by this module to its stable code.
func CodeOf(err error) string {
	var e *Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrNoToken):
		return CodeNoToken
	case errors.Is(err, auth.ErrInvalidToken):
		return CodeInvalidToken
	case errors.As(err, &e):
		return e.Code()
	}
	return CodeInternal
}
