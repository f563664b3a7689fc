package fileutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagingName(t *testing.T) {
	tests := []struct {
		name     string
		original string
		ext      string
	}{
		{"plain epub", "/books/novel.epub", ".epub"},
		{"non-ascii name", "/books/日本語の本.epub", ".epub"},
		{"upper-case extension", "/books/Book.EPUB", ".epub"},
		{"no extension", "/books/README", ""},
		{"non-ascii extension", "/books/file.épub", ".pub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StagingName(tt.original)
			assert.True(t, IsASCII(got), got)
			assert.True(t, strings.HasSuffix(got, tt.ext), got)
		})
	}
}

func TestStagingName_Unique(t *testing.T) {
	assert.NotEqual(t, StagingName("a.epub"), StagingName("a.epub"))
}

func TestSanitizeForFilename(t *testing.T) {
	assert.Equal(t, "Book Title", SanitizeForFilename("Book:  Title?"))
	assert.Equal(t, "name", SanitizeForFilename(" name. "))
	assert.Equal(t, "ab", SanitizeForFilename("a/b"))
}
