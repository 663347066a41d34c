package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

// maxFilenameBytes is the common filesystem limit for a single name.
const maxFilenameBytes = 255

// SanitizeFilename makes an arbitrary string safe to use as a single
// filename component: path separators become dashes, null bytes and ".."
// sequences are removed, leading and trailing dots and spaces are trimmed,
// and the result is truncated to 255 bytes. An input that
// sanitizes to nothing yields "untitled".
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		"\x00", "",
	)
	sanitized := replacer.Replace(name)
	for strings.Contains(sanitized, "..") {
		sanitized = strings.ReplaceAll(sanitized, "..", "")
	}
	sanitized = strings.Trim(sanitized, ". ")

	if len(sanitized) > maxFilenameBytes {
		sanitized = truncateUTF8(sanitized, maxFilenameBytes)
	}
	if sanitized == "" {
		return "untitled"
	}
	return sanitized
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return strings.TrimPrefix(ext, ".")
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	joined := filepath.Join(targetPath...)
	if err := os.MkdirAll(joined, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}
