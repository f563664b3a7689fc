package location

import (
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/textchunk"
)

var (
	ErrResolutionMiss    = errors.New("location did not match any spine entry")
	ErrOrdinalOutOfRange = errors.New("chapter ordinal out of range")
)

type TargetKind int

const (
	// TargetChapter jumps to Ordinal at Fraction.
	TargetChapter TargetKind = iota + 1
	// TargetAnchor opens Ordinal and then seeks to the element id Anchor.
	TargetAnchor
	// TargetNative hands Native to the rendering surface untouched.
	TargetNative
	// TargetScroll scrolls the flat-text surface to Pixels.
	TargetScroll
	// TargetTextOffset scrolls the flat-text surface to the byte TextOffset.
	TargetTextOffset
)

// Target is what the controller should do to honour a token.
type Target struct {
	Kind       TargetKind
	Ordinal    int
	Fraction   float64
	Anchor     string
	Native     string
	Pixels     float64
	TextOffset int64
}

// Resolver resolves tokens against one parsed structure. It is read-only
// after construction and safe for concurrent use.
type Resolver struct {
	structure *document.Structure
	root      string
	entries   []spineEntry
}

type spineEntry struct {
	exact      string
	normalized string
	base       string
}

func NewResolver(s *document.Structure) *Resolver {
	r := &Resolver{structure: s, root: filepath.ToSlash(s.Root)}
	for _, ref := range s.Spine {
		p, _ := splitFragment(ref.Href)
		norm := r.normalize(p)
		r.entries = append(r.entries, spineEntry{
			exact:      p,
			normalized: norm,
			base:       path.Base(norm),
		})
	}
	return r
}

// normalize percent-decodes p, converts it to slashes, cleans it and strips
// the structure root so absolute and root-relative hrefs compare equal.
func (r *Resolver) normalize(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = path.Clean(filepath.ToSlash(p))
	if r.root != "" && r.root != "." {
		root := strings.TrimSuffix(r.root, "/") + "/"
		p = strings.TrimPrefix(p, root)
	}
	return strings.TrimPrefix(p, "./")
}

// ResolveHref maps href to a spine ordinal. Matching tries, in order: the
// exact href, the percent-decoded and cleaned href, a whole-segment path
// suffix, and finally the bare filename. The first spine entry to match at
// the earliest level wins. The fragment is returned separately.
func (r *Resolver) ResolveHref(href string) (ordinal int, fragment string, err error) {
	p, fragment := splitFragment(strings.TrimPrefix(strings.TrimSpace(href), "file://"))
	if p == "" {
		return 0, fragment, errors.Wrapf(ErrResolutionMiss, "%q", href)
	}

	for i, e := range r.entries {
		if e.exact == p {
			return i, fragment, nil
		}
	}

	norm := r.normalize(p)
	for i, e := range r.entries {
		if e.normalized == norm {
			return i, fragment, nil
		}
	}

	for i, e := range r.entries {
		if strings.HasSuffix(e.normalized, "/"+norm) || strings.HasSuffix(norm, "/"+e.normalized) {
			return i, fragment, nil
		}
	}

	base := path.Base(norm)
	for i, e := range r.entries {
		if e.base == base {
			return i, fragment, nil
		}
	}

	return 0, fragment, errors.Wrapf(ErrResolutionMiss, "%q", href)
}

// Resolve dispatches raw by grammar. Every error it returns is non-fatal to
// reading: callers log it and carry on.
func (r *Resolver) Resolve(raw string) (Target, error) {
	tok, err := Parse(raw)
	if err != nil {
		return Target{}, err
	}

	switch tok.Kind {
	case KindChapter:
		if tok.Ordinal < 0 || tok.Ordinal >= len(r.structure.Spine) {
			return Target{}, errors.Wrapf(ErrOrdinalOutOfRange, "%d of %d", tok.Ordinal, len(r.structure.Spine))
		}
		return Target{Kind: TargetChapter, Ordinal: tok.Ordinal, Fraction: tok.Fraction}, nil

	case KindNative:
		return Target{Kind: TargetNative, Native: tok.Raw}, nil

	case KindScroll:
		return Target{Kind: TargetScroll, Pixels: tok.Pixels}, nil

	case KindText:
		return r.resolveText(tok)

	case KindHref:
		ordinal, frag, err := r.ResolveHref(tok.Raw)
		if err != nil {
			return Target{}, err
		}
		if frag != "" {
			return Target{Kind: TargetAnchor, Ordinal: ordinal, Anchor: frag}, nil
		}
		return Target{Kind: TargetChapter, Ordinal: ordinal}, nil
	}
	return Target{}, errors.Wrapf(ErrMalformedToken, "%q", raw)
}

func (r *Resolver) resolveText(tok Token) (Target, error) {
	if !r.structure.Chunked {
		return Target{Kind: TargetTextOffset, TextOffset: tok.Offset}, nil
	}

	spine := r.structure.Spine
	// First window starting after the offset, minus one.
	i := sort.Search(len(spine), func(i int) bool {
		return spine[i].Offset > tok.Offset
	}) - 1
	if i < 0 || tok.Offset >= spine[i].Offset+spine[i].Length {
		return Target{}, errors.Wrapf(ErrResolutionMiss, "byte %d outside text", tok.Offset)
	}

	w := spine[i]
	fraction := float64(tok.Offset-w.Offset) / float64(w.Length)
	return Target{Kind: TargetChapter, Ordinal: i, Fraction: fraction}, nil
}

// Encode is the inverse of Resolve for an (ordinal, fraction) pair. Chunked
// text yields a txt:// token at the exact byte; everything else yields
// chapter:<ordinal>, carrying the fraction when it is past the start.
func (r *Resolver) Encode(ordinal int, fraction float64) string {
	if r.structure.Chunked {
		if w := r.structure.Chapter(ordinal); w != nil {
			off := w.Offset + int64(clamp01(fraction)*float64(w.Length))
			if off >= w.Offset+w.Length && w.Length > 0 {
				off = w.Offset + w.Length - 1
			}
			return textchunk.Href(off, w.Offset+w.Length-off)
		}
	}
	return ChapterAt(ordinal, fraction)
}

// RelativeHref returns the spine entry's href relative to the structure
// root, suitable for storing in a token that must survive the extraction
// directory moving.
func (r *Resolver) RelativeHref(ordinal int, fragment string) (string, bool) {
	if ordinal < 0 || ordinal >= len(r.entries) {
		return "", false
	}
	h := r.entries[ordinal].normalized
	if fragment != "" {
		h += "#" + fragment
	}
	return h, true
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
