// Package pages serves page-oriented books. CBZ pages are extracted one at a
// time on demand; PDFs are handed to the rendering surface whole.
package pages

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
)

// maxImageSize is the maximum size for a single page image (100 MB).
// This prevents decompression bombs from consuming excessive memory.
const maxImageSize = 100 * 1024 * 1024

var ErrPageOutOfRange = errors.New("page out of range")

// Cache manages extracted CBZ page images.
type Cache struct {
	dir string
}

// NewCache creates a new Cache with the given directory.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// ListPages returns the archive names of the CBZ's images in reading order.
func ListPages(cbzPath string) ([]string, error) {
	zr, err := zip.OpenReader(cbzPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer zr.Close()

	files := getSortedImageFiles(&zr.Reader)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names, nil
}

// Structure describes a CBZ as one spine entry per page. Page hrefs are the
// image names inside the archive.
func Structure(cbzPath string, md document.Metadata) (*document.Structure, error) {
	names, err := ListPages(cbzPath)
	if err != nil {
		return nil, err
	}

	spine := make([]*document.ChapterRef, 0, len(names))
	for i, name := range names {
		spine = append(spine, &document.ChapterRef{
			ID:    "page-" + strconv.Itoa(i),
			Label: fmt.Sprintf("Page %d", i+1),
			Href:  name,
		})
	}
	return &document.Structure{
		Metadata:     md,
		Spine:        spine,
		TOC:          document.FlatTOC(spine),
		TOCFromSpine: true,
	}, nil
}

// GetPage returns the path to a cached page image, extracting if necessary.
// pageNum is 0-indexed.
func (c *Cache) GetPage(cbzPath string, bookID int, pageNum int) (cachedPath string, mimeType string, err error) {
	// Check if page is already cached
	cacheDir := c.pageDir(bookID)
	pattern := filepath.Join(cacheDir, fmt.Sprintf("page_%d.*", pageNum))
	matches, _ := filepath.Glob(pattern)
	if len(matches) > 0 {
		if !c.stale(cbzPath, matches[0]) {
			return matches[0], detectMimeType(matches[0]), nil
		}
		// The archive was replaced since its pages were cached.
		if err := c.Invalidate(bookID); err != nil {
			return "", "", err
		}
	}

	// Extract the page from the CBZ
	return c.extractPage(cbzPath, bookID, pageNum)
}

// extractPage extracts a single page from a CBZ file and caches it.
func (c *Cache) extractPage(cbzPath string, bookID int, pageNum int) (cachedPath string, mimeType string, err error) {
	zr, err := zip.OpenReader(cbzPath)
	if err != nil {
		return "", "", errors.WithStack(err)
	}
	defer zr.Close()

	imageFiles := getSortedImageFiles(&zr.Reader)
	if pageNum < 0 || pageNum >= len(imageFiles) {
		return "", "", errors.Wrapf(ErrPageOutOfRange, "page %d of %d", pageNum, len(imageFiles))
	}

	targetFile := imageFiles[pageNum]

	cacheDir := c.pageDir(bookID)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", "", errors.WithStack(err)
	}

	ext := strings.ToLower(filepath.Ext(targetFile.Name))
	cachedPath = filepath.Join(cacheDir, fmt.Sprintf("page_%d%s", pageNum, ext))

	r, err := targetFile.Open()
	if err != nil {
		return "", "", errors.WithStack(err)
	}
	defer r.Close()

	// Written under a temp name so a concurrent GetPage never globs a
	// half-written page.
	tmp := cachedPath + ".tmp"
	outFile, err := os.Create(tmp)
	if err != nil {
		return "", "", errors.WithStack(err)
	}

	// Use LimitReader to prevent decompression bombs
	_, err = io.Copy(outFile, io.LimitReader(r, maxImageSize))
	if cerr := outFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", "", errors.WithStack(err)
	}
	if err := os.Rename(tmp, cachedPath); err != nil {
		os.Remove(tmp)
		return "", "", errors.WithStack(err)
	}

	return cachedPath, detectMimeType(cachedPath), nil
}

// stale reports whether cbzPath was modified after cachedPath was written. A
// missing source leaves the cache in charge.
func (c *Cache) stale(cbzPath, cachedPath string) bool {
	src, err := os.Stat(cbzPath)
	if err != nil {
		return false
	}
	cached, err := os.Stat(cachedPath)
	if err != nil {
		return true
	}
	return src.ModTime().After(cached.ModTime())
}

// pageDir returns the cache directory for a book's pages.
func (c *Cache) pageDir(bookID int) string {
	return filepath.Join(c.dir, "pages", strconv.Itoa(bookID))
}

// Invalidate removes all cached pages for a book.
func (c *Cache) Invalidate(bookID int) error {
	return errors.WithStack(os.RemoveAll(c.pageDir(bookID)))
}

// getSortedImageFiles returns a sorted list of image files from a zip reader.
func getSortedImageFiles(zipReader *zip.Reader) []*zip.File {
	var imageFiles []*zip.File
	for _, file := range zipReader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(file.Name))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp" {
			imageFiles = append(imageFiles, file)
		}
	}

	sort.Slice(imageFiles, func(i, j int) bool {
		return imageFiles[i].Name < imageFiles[j].Name
	})

	return imageFiles
}

// detectMimeType sniffs the image, falling back to the extension.
func detectMimeType(path string) string {
	if mt, err := mimetype.DetectFile(path); err == nil && strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
