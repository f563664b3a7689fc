// Package testgen generates fixture books (EPUB, CBZ, flat text) for tests.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
)

// NavMode selects which navigation data a generated EPUB carries.
type NavMode int

const (
	// NavDocument writes an EPUB 3 nav document.
	NavDocument NavMode = iota
	// NavNCX writes only an EPUB 2 toc.ncx referenced from the spine.
	NavNCX
	// NavNone writes no navigation at all.
	NavNone
	// NavMalformed lists a nav document in the manifest whose XHTML is broken.
	NavMalformed
)

// EPUBOptions configures the generated EPUB file.
type EPUBOptions struct {
	Title    string
	Author   string
	Chapters int // defaults to 1
	Nav      NavMode
	// NestedTOC adds a "Section 2" child under every chapter that points at
	// the chapter's #section2 anchor.
	NestedTOC bool
	// TextDir puts chapter documents in a subdirectory of the package
	// directory, e.g. "Text".
	TextDir string
	// NonASCIINames names chapter files with CJK characters and
	// percent-encodes their hrefs in the package document.
	NonASCIINames bool
	HasCover      bool
	CoverMimeType string // "image/jpeg" or "image/png", defaults to "image/png"
	// CoverProperty marks the cover with the EPUB 3 cover-image property
	// instead of <meta name="cover">.
	CoverProperty bool
	// ExtraRootfile lists a non-OPF rootfile ahead of the real one.
	ExtraRootfile bool
}

// CBZOptions configures the generated CBZ file.
type CBZOptions struct {
	PageCount   int    // defaults to 3
	ImageFormat string // "png" or "jpeg", defaults to "png"
}

// TempDir creates a temporary directory for testing and registers cleanup.
// The directory is automatically removed when the test completes.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StringPtr is a helper to create a pointer to a string.
func StringPtr(s string) *string {
	return &s
}
