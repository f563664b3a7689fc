package testgen

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const textLineWidth = 64

// TextByte is the byte GenerateText writes at offset i.
func TextByte(i int64) byte {
	if i%textLineWidth == textLineWidth-1 {
		return '\n'
	}
	return byte('a' + i%26)
}

// TextRange returns the bytes GenerateText writes in [off, off+n).
func TextRange(off, n int64) []byte {
	b := make([]byte, n)
	for i := int64(0); i < n; i++ {
		b[i] = TextByte(off + i)
	}
	return b
}

// GenerateText writes a deterministic ASCII file of exactly size bytes.
func GenerateText(t *testing.T, dir, filename string, size int64) string {
	t.Helper()

	p := filepath.Join(dir, filename)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("failed to create text file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 64*1024)
	for i := int64(0); i < size; i++ {
		if err := w.WriteByte(TextByte(i)); err != nil {
			t.Fatalf("failed to write text file: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("failed to flush text file: %v", err)
	}
	return p
}

// GenerateChapteredText writes a small novel-like text with chapters
// headings "Chapter 1" through "Chapter n", each followed by a few paragraphs.
func GenerateChapteredText(t *testing.T, dir, filename string, chapters int) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("A Preface Nobody Reads\n\nSome opening words.\n\n")
	for i := 1; i <= chapters; i++ {
		sb.WriteString(fmt.Sprintf("Chapter %d\n\n", i))
		for p := 0; p < 3; p++ {
			sb.WriteString(fmt.Sprintf("Paragraph %d of chapter %d goes on for a while.\n\n", p+1, i))
		}
	}
	return WriteFile(t, dir, filename, []byte(sb.String()))
}
