// Package location maps reading positions between location tokens and
// (chapter ordinal, intra-chapter fraction) pairs.
//
// A token is one of:
//
//	chapter:<ordinal>[@<fraction>]
//	epubcfi(...) or native:<opaque>  passed through to the rendering surface
//	<href>[#fragment]
//	scroll:<pixels>
//	txt://<byteOffset>?len=<n>
package location

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/textchunk"
)

type Kind int

const (
	KindChapter Kind = iota + 1
	KindNative
	KindHref
	KindScroll
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindChapter:
		return "chapter"
	case KindNative:
		return "native"
	case KindHref:
		return "href"
	case KindScroll:
		return "scroll"
	case KindText:
		return "text"
	}
	return "unknown"
}

const (
	chapterPrefix = "chapter:"
	scrollPrefix  = "scroll:"
	nativePrefix  = "native:"
	cfiPrefix     = "epubcfi("
)

var ErrMalformedToken = errors.New("malformed location token")

// Token is a parsed location token. Only the fields for its Kind are set.
type Token struct {
	Kind Kind
	Raw  string

	Ordinal int
	// Fraction is the optional intra-chapter position of a chapter token.
	Fraction float64

	Href     string
	Fragment string

	Pixels float64

	Offset int64
	Length int64
}

// Parse classifies raw by grammar. Anything that is not one of the prefixed
// forms is treated as an href.
func Parse(raw string) (Token, error) {
	s := strings.TrimSpace(raw)
	tok := Token{Raw: s}

	switch {
	case s == "":
		return tok, errors.Wrap(ErrMalformedToken, "empty token")

	case strings.HasPrefix(s, chapterPrefix):
		ord, frac, hasFrac := strings.Cut(strings.TrimPrefix(s, chapterPrefix), "@")
		n, err := strconv.Atoi(ord)
		if err != nil {
			return tok, errors.Wrapf(ErrMalformedToken, "%q", raw)
		}
		if hasFrac {
			f, err := strconv.ParseFloat(frac, 64)
			if err != nil || f < 0 || f > 1 {
				return tok, errors.Wrapf(ErrMalformedToken, "%q", raw)
			}
			tok.Fraction = f
		}
		tok.Kind = KindChapter
		tok.Ordinal = n

	case strings.HasPrefix(s, cfiPrefix), strings.HasPrefix(s, nativePrefix):
		tok.Kind = KindNative

	case strings.HasPrefix(s, scrollPrefix):
		px, err := strconv.ParseFloat(strings.TrimPrefix(s, scrollPrefix), 64)
		if err != nil || px < 0 {
			return tok, errors.Wrapf(ErrMalformedToken, "%q", raw)
		}
		tok.Kind = KindScroll
		tok.Pixels = px

	case textchunk.IsHref(s):
		off, n, err := textchunk.ParseHref(s)
		if err != nil {
			return tok, errors.Wrapf(ErrMalformedToken, "%q", raw)
		}
		tok.Kind = KindText
		tok.Offset = off
		tok.Length = n

	default:
		tok.Kind = KindHref
		tok.Href, tok.Fragment = splitFragment(strings.TrimPrefix(s, "file://"))
		if tok.Href == "" {
			return tok, errors.Wrapf(ErrMalformedToken, "%q has no path", raw)
		}
	}
	return tok, nil
}

// Chapter encodes an ordinal as chapter:<n>.
func Chapter(ordinal int) string {
	return chapterPrefix + strconv.Itoa(ordinal)
}

// ChapterAt encodes an ordinal and an intra-chapter fraction, rounded to four
// places, as chapter:<n>@<fraction>. A fraction that rounds to zero encodes
// as plain chapter:<n>.
func ChapterAt(ordinal int, fraction float64) string {
	f := math.Round(fraction*1e4) / 1e4
	if f <= 0 {
		return Chapter(ordinal)
	}
	return Chapter(ordinal) + "@" + strconv.FormatFloat(math.Min(f, 1), 'f', -1, 64)
}

// Scroll encodes a pixel offset as scroll:<n>.
func Scroll(pixels float64) string {
	return scrollPrefix + strconv.FormatFloat(pixels, 'f', -1, 64)
}

func splitFragment(href string) (string, string) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i], href[i+1:]
	}
	return href, ""
}
