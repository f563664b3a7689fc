// Package htmlutil turns chapter markup into short plain-text previews for
// bookmarks, notes and selections.
package htmlutil

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const DefaultPreviewLength = 160

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Blockquote: true, atom.Tr: true, atom.Table: true,
	atom.Pre: true, atom.Header: true, atom.Footer: true, atom.Aside: true, atom.Nav: true, atom.Hr: true,
}

var skippedAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Title: true,
}

// StripTags removes all markup, decoding entities. Block-level elements
// become line breaks; whitespace within a line is collapsed and empty lines
// are dropped.
func StripTags(markup string) string {
	if markup == "" {
		return ""
	}

	var buf strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return normalizeLines(buf.String())
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedAtoms[a] {
				switch {
				case tt == html.StartTagToken:
					skip++
				case tt == html.EndTagToken && skip > 0:
					skip--
				}
			}
			if blockAtoms[a] {
				buf.WriteByte('\n')
			}
		}
	}
}

func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Preview flattens text to one line and cuts it to at most max runes,
// preferring a word boundary and marking the cut with an ellipsis.
func Preview(text string, max int) string {
	flat := strings.Join(strings.Fields(strings.ReplaceAll(text, "\u00a0", " ")), " ")
	if max <= 0 || utf8.RuneCountInString(flat) <= max {
		return flat
	}

	runes := []rune(flat)
	cut := string(runes[:max-1])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "…"
}

// DocumentPreview reads the XHTML document at p and returns a preview of
// the text starting at the element whose id is anchor, or at the top of the
// body when anchor is empty or absent.
func DocumentPreview(p, anchor string, max int) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", errors.WithStack(err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", errors.WithStack(err)
	}

	start := findByID(doc, anchor)
	if start == nil {
		start = findFirst(doc, atom.Body)
	}
	if start == nil {
		start = doc
	}

	var buf strings.Builder
	for n := start; n != nil && utf8.RuneCountInString(buf.String()) < max*2; n = nextOutside(n) {
		writeText(&buf, n)
	}
	return Preview(StripTags(buf.String()), max), nil
}

func findByID(n *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// nextOutside is the node following n in document order, skipping n's
// subtree.
func nextOutside(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// writeText renders n back to markup so StripTags can apply the block rules.
func writeText(buf *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode && skippedAtoms[n.DataAtom] {
		return
	}
	_ = html.Render(buf, n)
}
