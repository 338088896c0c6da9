package objectkey

import (
	"mime"
	"strings"
)

const (
	maxFilenameLen  = 128
	maxExtensionLen = 16
)

// preferredExtensions picks one extension for content types that map to several
var preferredExtensions = map[string]string{
	"application/gzip":         "gz",
	"application/json":         "json",
	"application/octet-stream": "bin",
	"application/pdf":          "pdf",
	"application/zip":          "zip",
	"audio/mpeg":               "mp3",
	"image/gif":                "gif",
	"image/heic":               "heic",
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/svg+xml":            "svg",
	"image/webp":               "webp",
	"text/csv":                 "csv",
	"text/html":                "html",
	"text/plain":               "txt",
	"video/mp4":                "mp4",
	"video/quicktime":          "mov",
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with an
// underscore and collapses runs of dots, so the result can never contain a
// path separator or "..". Long names keep their tail. SanitizeFilename is
// idempotent.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastDot := false
	for _, r := range name {
		if r == '.' {
			if !lastDot {
				b.WriteByte('.')
			}
			lastDot = true
			continue
		}
		lastDot = false
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > maxFilenameLen {
		s = s[len(s)-maxFilenameLen:]
	}
	return s
}

// NormalizePrefix strips leading and trailing separators, drops empty, "." and
// ".." segments and sanitizes what remains. It returns "" when nothing usable
// is left.
func NormalizePrefix(prefix string) string {
	segments := strings.Split(strings.ReplaceAll(prefix, "\\", "/"), "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = SanitizeFilename(strings.TrimSpace(seg))
		if seg == "" || seg == "." {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, "/")
}

// ExtensionForType returns the file extension (without dot) for a content
// type, or "bin" when none is known.
func ExtensionForType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return "bin"
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return SanitizeFilename(strings.TrimPrefix(exts[0], "."))
	}
	return "bin"
}

// TypeForExtension returns the content type registered for ext (without dot),
// falling back to application/octet-stream.
func TypeForExtension(ext string) string {
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension("." + strings.ToLower(ext)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// splitExtension splits an already sanitized filename at its last dot. The
// extension is lowercased; a suffix that is empty, oversized or not purely
// alphanumeric yields no extension.
func splitExtension(name string) (stem, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name, ""
	}
	ext = strings.ToLower(name[idx+1:])
	if ext == "" || len(ext) > maxExtensionLen || !isAlnum(ext) {
		return strings.TrimSuffix(name, "."), ""
	}
	return name[:idx], ext
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}
