package testgen

import (
	"fmt"
	"testing"
)

// GenerateCBZ creates a CBZ file whose pages are named 000.png, 001.png and
// so on.
func GenerateCBZ(t *testing.T, dir, filename string, opts CBZOptions) string {
	t.Helper()

	pageCount := opts.PageCount
	if pageCount <= 0 {
		pageCount = 3
	}
	mimeType := "image/png"
	ext := "png"
	if opts.ImageFormat == "jpeg" || opts.ImageFormat == "jpg" {
		mimeType = "image/jpeg"
		ext = "jpg"
	}

	// Pages are written out of order so callers must sort by name.
	entries := make([]zipEntry, 0, pageCount+1)
	entries = append(entries, zipEntry{name: "ComicInfo.xml", data: []byte(fmt.Sprintf("<ComicInfo><PageCount>%d</PageCount></ComicInfo>", pageCount))})
	for i := pageCount - 1; i >= 0; i-- {
		entries = append(entries, zipEntry{name: fmt.Sprintf("%03d.%s", i, ext), data: generateImage(t, mimeType)})
	}

	return writeArchive(t, dir, filename, "", entries)
}
