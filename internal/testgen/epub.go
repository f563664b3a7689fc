package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"testing"
)

// ChapterFile returns the archive-relative name (inside the package
// directory) of chapter i (0-indexed) for opts.
func ChapterFile(opts EPUBOptions, i int) string {
	name := fmt.Sprintf("ch%02d.xhtml", i+1)
	if opts.NonASCIINames {
		name = fmt.Sprintf("第%02d章.xhtml", i+1)
	}
	if opts.TextDir != "" {
		return path.Join(opts.TextDir, name)
	}
	return name
}

// ChapterHref is ChapterFile as it appears in the package document.
func ChapterHref(opts EPUBOptions, i int) string {
	name := ChapterFile(opts, i)
	if !opts.NonASCIINames {
		return name
	}
	dir, file := path.Split(name)
	return dir + url.PathEscape(file)
}

// GenerateEPUB creates a valid EPUB file at the specified path with the given options.
// The package document lives at OEBPS/content.opf.
func GenerateEPUB(t *testing.T, dir, filename string, opts EPUBOptions) string {
	t.Helper()

	if opts.Chapters <= 0 {
		opts.Chapters = 1
	}

	entries := []zipEntry{
		{name: "META-INF/container.xml", data: []byte(generateContainer(opts))},
	}

	coverMimeType := opts.CoverMimeType
	if coverMimeType == "" {
		coverMimeType = "image/png"
	}
	coverFilename := ""
	if opts.HasCover {
		coverFilename = "cover.png"
		if coverMimeType == "image/jpeg" {
			coverFilename = "cover.jpg"
		}
		entries = append(entries, zipEntry{name: "OEBPS/Images/" + coverFilename, data: generateImage(t, coverMimeType)})
	}

	entries = append(entries, zipEntry{name: "OEBPS/content.opf", data: []byte(generateOPF(opts, coverFilename, coverMimeType))})

	switch opts.Nav {
	case NavDocument:
		entries = append(entries, zipEntry{name: "OEBPS/nav.xhtml", data: []byte(generateNav(opts))})
	case NavNCX:
		entries = append(entries, zipEntry{name: "OEBPS/toc.ncx", data: []byte(generateNCX(opts))})
	case NavMalformed:
		entries = append(entries, zipEntry{name: "OEBPS/nav.xhtml", data: []byte("<html><body><nav epub:type=\"toc\"><ol><li><a href=")})
	}

	for i := 0; i < opts.Chapters; i++ {
		entries = append(entries, zipEntry{name: "OEBPS/" + ChapterFile(opts, i), data: []byte(generateChapter(i))})
	}

	return writeArchive(t, dir, filename, "application/epub+zip", entries)
}

// GenerateCorruptEPUB writes a file that starts like a zip archive but cannot
// be opened as one.
func GenerateCorruptEPUB(t *testing.T, dir, filename string) string {
	t.Helper()
	data := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 256)...)
	return WriteFile(t, dir, filename, data)
}

// GenerateZip writes an archive with exactly the given entries, in order.
// Useful for archives that are valid zips but broken EPUBs.
func GenerateZip(t *testing.T, dir, filename string, entries map[string]string, order ...string) string {
	t.Helper()
	if len(order) == 0 {
		for name := range entries {
			order = append(order, name)
		}
	}
	zes := make([]zipEntry, 0, len(order))
	for _, name := range order {
		zes = append(zes, zipEntry{name: name, data: []byte(entries[name])})
	}
	return writeArchive(t, dir, filename, "application/epub+zip", zes)
}

type zipEntry struct {
	name string
	data []byte
}

func writeArchive(t *testing.T, dir, filename, mimetype string, entries []zipEntry) string {
	t.Helper()

	p := filepath.Join(dir, filename)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	// mimetype must be first and uncompressed
	if mimetype != "" {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		if err != nil {
			t.Fatalf("failed to create mimetype entry: %v", err)
		}
		if _, err := w.Write([]byte(mimetype)); err != nil {
			t.Fatalf("failed to write mimetype: %v", err)
		}
	}

	for _, e := range entries {
		if err := writeZipFile(zw, e.name, e.data); err != nil {
			t.Fatalf("failed to write %s: %v", e.name, err)
		}
	}

	return p
}

func generateContainer(opts EPUBOptions) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
`)
	if opts.ExtraRootfile {
		buf.WriteString(`    <rootfile full-path="OEBPS/book.pdf" media-type="application/pdf"/>` + "\n")
	}
	buf.WriteString(`    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)
	return buf.String()
}

func generateOPF(opts EPUBOptions, coverFilename, coverMimeType string) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)

	// Title and author are optional so the fallbacks can be exercised.
	if opts.Title != "" {
		buf.WriteString(fmt.Sprintf("    <dc:title id=\"title\">%s</dc:title>\n", escapeXML(opts.Title)))
	}
	if opts.Author != "" {
		buf.WriteString(fmt.Sprintf("    <dc:creator id=\"creator\" opf:role=\"aut\">%s</dc:creator>\n", escapeXML(opts.Author)))
	}
	buf.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	buf.WriteString("    <dc:language>en</dc:language>\n")
	if coverFilename != "" && !opts.CoverProperty {
		buf.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}
	buf.WriteString("  </metadata>\n")

	buf.WriteString("  <manifest>\n")
	switch opts.Nav {
	case NavDocument, NavMalformed:
		buf.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	case NavNCX:
		buf.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	}
	for i := 0; i < opts.Chapters; i++ {
		buf.WriteString(fmt.Sprintf("    <item id=\"chapter%d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, escapeXML(ChapterHref(opts, i))))
	}
	if coverFilename != "" {
		props := ""
		if opts.CoverProperty {
			props = ` properties="cover-image"`
		}
		buf.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"Images/%s\" media-type=\"%s\"%s/>\n", coverFilename, coverMimeType, props))
	}
	buf.WriteString("  </manifest>\n")

	if opts.Nav == NavNCX {
		buf.WriteString("  <spine toc=\"ncx\">\n")
	} else {
		buf.WriteString("  <spine>\n")
	}
	for i := 0; i < opts.Chapters; i++ {
		buf.WriteString(fmt.Sprintf("    <itemref idref=\"chapter%d\"/>\n", i+1))
	}
	buf.WriteString("  </spine>\n")

	buf.WriteString("</package>")

	return buf.String()
}

func generateNav(opts EPUBOptions) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Contents</title></head>
<body>
  <nav epub:type="landmarks"><ol><li><a href="` + ChapterHref(opts, 0) + `">Start</a></li></ol></nav>
  <nav epub:type="toc" id="toc">
    <h1>Contents</h1>
    <ol>
`)
	for i := 0; i < opts.Chapters; i++ {
		href := escapeXML(ChapterHref(opts, i))
		buf.WriteString(fmt.Sprintf("      <li><a href=\"%s\">Chapter %d</a>", href, i+1))
		if opts.NestedTOC {
			buf.WriteString(fmt.Sprintf("\n        <ol><li><a href=\"%s#section2\">Section %d.2</a></li></ol>\n      ", href, i+1))
		}
		buf.WriteString("</li>\n")
	}
	buf.WriteString(`    </ol>
  </nav>
</body>
</html>`)
	return buf.String()
}

func generateNCX(opts EPUBOptions) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:test-book-id"/></head>
  <docTitle><text>` + escapeXML(opts.Title) + `</text></docTitle>
  <navMap>
`)
	order := 1
	for i := 0; i < opts.Chapters; i++ {
		href := escapeXML(ChapterHref(opts, i))
		buf.WriteString(fmt.Sprintf("    <navPoint id=\"np%d\" playOrder=\"%d\">\n      <navLabel><text>Chapter %d</text></navLabel>\n      <content src=\"%s\"/>\n", order, order, i+1, href))
		order++
		if opts.NestedTOC {
			buf.WriteString(fmt.Sprintf("      <navPoint id=\"np%d\" playOrder=\"%d\">\n        <navLabel><text>Section %d.2</text></navLabel>\n        <content src=\"%s#section2\"/>\n      </navPoint>\n", order, order, i+1, href))
			order++
		}
		buf.WriteString("    </navPoint>\n")
	}
	buf.WriteString("  </navMap>\n</ncx>")
	return buf.String()
}

func generateChapter(i int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>Chapter %[1]d</title>
</head>
<body>
  <h1>Chapter %[1]d</h1>
  <p>This is test chapter %[1]d.</p>
  <h2 id="section2">Section %[1]d.2</h2>
  <p>The second section of chapter %[1]d.</p>
</body>
</html>`, i+1)
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func generateImage(t *testing.T, mimeType string) []byte {
	t.Helper()

	// Create a simple 100x150 solid color image
	img := image.NewRGBA(image.Rect(0, 0, 100, 150))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < 150; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, blue)
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default: // image/png
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

// ExtractEPUB generates an EPUB and extracts it into a fresh directory,
// returning that directory.
func ExtractEPUB(t *testing.T, opts EPUBOptions) string {
	t.Helper()
	src := GenerateEPUB(t, t.TempDir(), "book.epub", opts)
	return Extract(t, src, t.TempDir())
}

// Extract unzips archive into dest without any of the production safety
// checks.
func Extract(t *testing.T, archive, dest string) string {
	t.Helper()

	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Name, err)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", target, err)
		}
	}
	return dest
}
