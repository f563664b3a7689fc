package epub

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
	"golang.org/x/net/html"
)

var errEmptyTOC = errors.New("no table of contents entries")

// parseNavDocument reads the <nav epub:type="toc"> list of an EPUB 3
// navigation document. Hrefs are resolved against the nav document's own
// location (docPath, archive-internal).
func parseNavDocument(root, docPath string, data []byte) ([]*document.ChapterRef, error) {
	doc, err := html.Parse(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var toc *html.Node
	var findTOC func(*html.Node)
	findTOC = func(n *html.Node) {
		if toc != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "nav" && hasEpubType(n, "toc") {
			toc = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTOC(c)
		}
	}
	findTOC(doc)
	if toc == nil {
		return nil, errors.New("no toc nav element")
	}

	ol := findFirstChildElement(toc, "ol")
	if ol == nil {
		return nil, errEmptyTOC
	}

	refs := parseNavOL(root, docPath, ol)
	if len(refs) == 0 {
		return nil, errEmptyTOC
	}
	return refs, nil
}

func parseNavOL(root, docPath string, ol *html.Node) []*document.ChapterRef {
	var refs []*document.ChapterRef
	for c := ol.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		if ref := parseNavLI(root, docPath, c); ref != nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

// parseNavLI reads one <li>: its <a> (or heading <span>) and any nested <ol>.
// Entries with neither a label nor children are dropped.
func parseNavLI(root, docPath string, li *html.Node) *document.ChapterRef {
	ref := &document.ChapterRef{}
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "a":
			if ref.Href == "" {
				ref.Href = resolveHref(root, docPath, getAttr(c, "href"))
				ref.Label = collapseSpace(textContent(c))
			}
		case "span":
			if ref.Label == "" {
				ref.Label = collapseSpace(textContent(c))
			}
		case "ol":
			ref.Children = parseNavOL(root, docPath, c)
		}
	}

	if ref.Label == "" && len(ref.Children) == 0 {
		return nil
	}
	return ref
}

func hasEpubType(n *html.Node, typeName string) bool {
	for _, t := range strings.Fields(getAttr(n, "epub:type")) {
		if t == typeName {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirstChildElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findFirstChildElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NCX is the EPUB 2 navigation control file.
type NCX struct {
	NavMap struct {
		NavPoints []NCXNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type NCXNavPoint struct {
	ID       string `xml:"id,attr"`
	NavLabel struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []NCXNavPoint `xml:"navPoint"`
}

func parseNCX(root, docPath string, data []byte) ([]*document.ChapterRef, error) {
	var ncx NCX
	if err := decodeXML(data, &ncx); err != nil {
		return nil, err
	}

	refs := convertNavPoints(root, docPath, ncx.NavMap.NavPoints)
	if len(refs) == 0 {
		return nil, errEmptyTOC
	}
	return refs, nil
}

func convertNavPoints(root, docPath string, points []NCXNavPoint) []*document.ChapterRef {
	refs := make([]*document.ChapterRef, 0, len(points))
	for _, np := range points {
		label := collapseSpace(np.NavLabel.Text)
		if label == "" {
			continue
		}
		refs = append(refs, &document.ChapterRef{
			ID:       np.ID,
			Label:    label,
			Href:     resolveHref(root, docPath, np.Content.Src),
			Children: convertNavPoints(root, docPath, np.Children),
		})
	}
	return refs
}

// readNavigation builds the TOC from the nav document, or the NCX when there
// is none. Any failure is reported as a NavigationParseError.
func readNavigation(pd *packageDoc) ([]*document.ChapterRef, error) {
	if item, ok := pd.navItem(); ok {
		docPath := pd.itemArchivePath(item)
		data, err := readLimited(filepath.Join(pd.root, filepath.FromSlash(docPath)), maxDocumentSize)
		if err != nil {
			return nil, &NavigationParseError{Path: docPath, Err: err}
		}
		refs, err := parseNavDocument(pd.root, docPath, data)
		if err != nil {
			return nil, &NavigationParseError{Path: docPath, Err: err}
		}
		return refs, nil
	}

	if item, ok := pd.ncxItem(); ok {
		docPath := pd.itemArchivePath(item)
		data, err := readLimited(filepath.Join(pd.root, filepath.FromSlash(docPath)), maxDocumentSize)
		if err != nil {
			return nil, &NavigationParseError{Path: docPath, Err: err}
		}
		refs, err := parseNCX(pd.root, docPath, data)
		if err != nil {
			return nil, &NavigationParseError{Path: docPath, Err: err}
		}
		return refs, nil
	}

	return nil, &NavigationParseError{Path: pd.opfPath, Err: errors.New("no navigation document in manifest")}
}
