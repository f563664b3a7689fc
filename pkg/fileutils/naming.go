package fileutils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonASCIIExt = regexp.MustCompile(`[^a-z0-9.]`)

// StagingName returns an ASCII-only file name that keeps the extension of
// original. Archive readers on some platforms mishandle non-ASCII paths, so
// extraction always reads from a copy with this name.
func StagingName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	ext = nonASCIIExt.ReplaceAllString(ext, "")
	if ext == "." {
		ext = ""
	}
	return uuid.NewString() + ext
}

// IsASCII reports whether s contains only 7-bit characters.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

// SanitizeForFilename removes characters that are not safe in a single path
// element.
func SanitizeForFilename(name string) string {
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "")
	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")

	// Trim spaces and dots from the ends (Windows doesn't like trailing dots)
	name = strings.Trim(name, " .")

	if len(name) > 200 {
		name = name[:200]
		name = strings.Trim(name, " .")
	}

	return name
}
