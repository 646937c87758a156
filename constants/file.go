package constants

import "strings"

// DefaultImageExtensions is the extension set scanned when none is configured.
var DefaultImageExtensions = []string{"png"}

// SupportedImageExtensions holds every extension the discovery step accepts.
var SupportedImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"gif":  {},
	"heic": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsSupportedExt reports whether ext (with or without dot) is a known image extension.
func IsSupportedExt(ext string) bool {
	_, ok := SupportedImageExtensions[NormalizeExt(ext)]
	return ok
}
