package location

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/internal/testgen"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/epub"
	"github.com/shishobooks/lectern/pkg/textchunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spineOf(root string, hrefs ...string) *document.Structure {
	s := &document.Structure{Root: root}
	for i, h := range hrefs {
		s.Spine = append(s.Spine, &document.ChapterRef{ID: h, Href: filepath.Join(root, h), Label: h, Offset: int64(i)})
	}
	return s
}

func TestResolveHref_Precedence(t *testing.T) {
	t.Parallel()
	s := spineOf("/data/books/1",
		"OEBPS/Text/intro.xhtml",
		"OEBPS/Text/ch01.xhtml",
		"OEBPS/Extra/ch01.xhtml",
		"OEBPS/Text/第02章.xhtml",
	)
	r := NewResolver(s)

	tests := []struct {
		name string
		href string
		want int
		frag string
	}{
		{"exact absolute", "/data/books/1/OEBPS/Extra/ch01.xhtml", 2, ""},
		{"root relative", "OEBPS/Extra/ch01.xhtml", 2, ""},
		{"dot segments", "OEBPS/Text/../Extra/ch01.xhtml", 2, ""},
		{"path suffix", "Extra/ch01.xhtml", 2, ""},
		{"suffix with fragment", "Text/ch01.xhtml#section2", 1, "section2"},
		{"filename only, first wins", "ch01.xhtml", 1, ""},
		{"percent encoded", "Text/%E7%AC%AC02%E7%AB%A0.xhtml", 3, ""},
		{"decoded", "Text/第02章.xhtml", 3, ""},
		{"moved sandbox", "/other/place/books/1/OEBPS/Text/intro.xhtml", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, frag, err := r.ResolveHref(tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.frag, frag)
		})
	}
}

func TestResolveHref_Miss(t *testing.T) {
	t.Parallel()
	r := NewResolver(spineOf("/data", "a.xhtml"))

	_, _, err := r.ResolveHref("missing.xhtml")
	assert.True(t, errors.Is(err, ErrResolutionMiss))

	_, err = r.Resolve("elsewhere/missing.xhtml#x")
	assert.True(t, errors.Is(err, ErrResolutionMiss))
}

// Every percent-encoding variant of a spine href resolves to the same entry.
func TestResolveHref_StableAcrossEncodings(t *testing.T) {
	t.Parallel()
	opts := testgen.EPUBOptions{Chapters: 3, NonASCIINames: true, TextDir: "Text"}
	root := testgen.ExtractEPUB(t, opts)
	s, err := epub.Parse(context.Background(), root)
	require.NoError(t, err)
	r := NewResolver(s)

	for i := range s.Spine {
		variants := []string{
			s.Spine[i].Href,
			testgen.ChapterFile(opts, i),
			testgen.ChapterHref(opts, i),
			"OEBPS/" + testgen.ChapterHref(opts, i),
		}
		for _, v := range variants {
			got, _, err := r.ResolveHref(v)
			require.NoError(t, err, v)
			assert.Equal(t, i, got, v)
		}
	}
}

func TestResolve_Chapter(t *testing.T) {
	t.Parallel()
	r := NewResolver(spineOf("/d", "a", "b", "c"))

	target, err := r.Resolve("chapter:2")
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetChapter, Ordinal: 2}, target)

	target, err = r.Resolve("chapter:1@0.25")
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetChapter, Ordinal: 1, Fraction: 0.25}, target)

	target, err = r.Resolve(r.Encode(1, 0.6))
	require.NoError(t, err)
	assert.Equal(t, 1, target.Ordinal)
	assert.InDelta(t, 0.6, target.Fraction, 1e-9)

	_, err = r.Resolve("chapter:3")
	assert.True(t, errors.Is(err, ErrOrdinalOutOfRange))
	_, err = r.Resolve("chapter:-1")
	assert.True(t, errors.Is(err, ErrOrdinalOutOfRange))
}

func TestResolve_NativeAndScroll(t *testing.T) {
	t.Parallel()
	r := NewResolver(spineOf("/d", "a"))

	target, err := r.Resolve("epubcfi(/6/2!/4/1:0)")
	require.NoError(t, err)
	assert.Equal(t, TargetNative, target.Kind)
	assert.Equal(t, "epubcfi(/6/2!/4/1:0)", target.Native)

	target, err = r.Resolve("scroll:640")
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetScroll, Pixels: 640}, target)
}

// A bookmark stored as chapter:2 resolves back to ordinal 2 after the same
// archive is parsed again.
func TestResolve_ScenarioC(t *testing.T) {
	t.Parallel()
	root := testgen.ExtractEPUB(t, testgen.EPUBOptions{Chapters: 5})

	first, err := epub.Parse(context.Background(), root)
	require.NoError(t, err)
	bookmark := NewResolver(first).Encode(2, 0)
	assert.Equal(t, "chapter:2", bookmark)

	again, err := epub.Parse(context.Background(), root)
	require.NoError(t, err)
	target, err := NewResolver(again).Resolve(bookmark)
	require.NoError(t, err)
	assert.Equal(t, TargetChapter, target.Kind)
	assert.Equal(t, 2, target.Ordinal)
}

// A TOC href with a fragment resolves to its spine entry and keeps the
// fragment as a separate anchor seek.
func TestResolve_ScenarioD(t *testing.T) {
	t.Parallel()
	opts := testgen.EPUBOptions{Chapters: 3, NestedTOC: true, TextDir: "Text"}
	root := testgen.ExtractEPUB(t, opts)
	s, err := epub.Parse(context.Background(), root)
	require.NoError(t, err)
	r := NewResolver(s)

	target, err := r.Resolve("Text/ch01.xhtml#section2")
	require.NoError(t, err)
	assert.Equal(t, TargetAnchor, target.Kind)
	assert.Equal(t, 0, target.Ordinal)
	assert.Equal(t, "section2", target.Anchor)
	assert.Equal(t, "ch01.xhtml", filepath.Base(s.Spine[target.Ordinal].Href))

	// The parsed TOC child carries the same href in absolute form.
	target, err = r.Resolve(s.TOC[1].Children[0].Href)
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetAnchor, Ordinal: 1, Anchor: "section2"}, target)

	target, err = r.Resolve("Text/ch01.xhtml")
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetChapter, Ordinal: 0}, target)
}

func TestResolve_ChunkedText(t *testing.T) {
	t.Parallel()
	p := testgen.GenerateText(t, t.TempDir(), "big.txt", 100_000)
	s, err := textchunk.BuildChunked(p, 30720)
	require.NoError(t, err)
	require.Len(t, s.Spine, 4)
	r := NewResolver(s)

	target, err := r.Resolve("txt://0?len=30720")
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetChapter, Ordinal: 0}, target)

	target, err = r.Resolve(textchunk.Href(2*30720+15360, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, target.Ordinal)
	assert.InDelta(t, 0.5, target.Fraction, 1e-9)

	target, err = r.Resolve("txt://99999")
	require.NoError(t, err)
	assert.Equal(t, 3, target.Ordinal)

	_, err = r.Resolve("txt://100000")
	assert.True(t, errors.Is(err, ErrResolutionMiss))
}

func TestResolve_SmallTextOffset(t *testing.T) {
	t.Parallel()
	p := testgen.GenerateChapteredText(t, t.TempDir(), "small.txt", 2)
	s, _, err := textchunk.BuildSmall(p)
	require.NoError(t, err)
	r := NewResolver(s)

	target, err := r.Resolve(s.TOC[1].Href)
	require.NoError(t, err)
	assert.Equal(t, TargetTextOffset, target.Kind)
	assert.Equal(t, s.TOC[1].Offset, target.TextOffset)
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()
	p := testgen.GenerateText(t, t.TempDir(), "big.txt", 10*30720)
	s, err := textchunk.BuildChunked(p, 30720)
	require.NoError(t, err)
	r := NewResolver(s)

	token := r.Encode(5, 0.25)
	target, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, 5, target.Ordinal)
	assert.InDelta(t, 0.25, target.Fraction, 1e-9)

	// Fraction 1 stays inside the window.
	target, err = r.Resolve(r.Encode(9, 1))
	require.NoError(t, err)
	assert.Equal(t, 9, target.Ordinal)
}

func TestRelativeHref(t *testing.T) {
	t.Parallel()
	r := NewResolver(spineOf("/data/books/1", "OEBPS/ch01.xhtml", "OEBPS/ch02.xhtml"))

	h, ok := r.RelativeHref(1, "p4")
	require.True(t, ok)
	assert.Equal(t, "OEBPS/ch02.xhtml#p4", h)

	moved := NewResolver(spineOf("/elsewhere", "OEBPS/ch01.xhtml", "OEBPS/ch02.xhtml"))
	target, err := moved.Resolve(h)
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetAnchor, Ordinal: 1, Anchor: "p4"}, target)

	_, ok = r.RelativeHref(2, "")
	assert.False(t, ok)
}
