package constants

import "strings"

// AllowedMIMETypes is the ingest allow-list: PDF plus common raster image
// types. Anything else is rejected before upload.
var AllowedMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/tiff":      {},
	"image/webp":      {},
}

// IsAllowedMIMEType reports whether a declared MIME type may be ingested.
func IsAllowedMIMEType(mime string) bool {
	_, ok := AllowedMIMETypes[NormalizeMIMEType(mime)]
	return ok
}

// NormalizeMIMEType lowercases a MIME type and strips parameters
// ("image/JPEG; charset=binary" -> "image/jpeg").
func NormalizeMIMEType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

// IsPDFMIMEType reports whether the MIME type denotes a PDF document.
func IsPDFMIMEType(mime string) bool {
	return NormalizeMIMEType(mime) == "application/pdf"
}
