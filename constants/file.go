package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for invoice submission.
// The pipeline only understands PDF; everything else is rejected before the core.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
