package epub

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/shishobooks/lectern/pkg/document"
)

type Package struct {
	Version  string `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Role   string `xml:"role,attr"`
			FileAs string `xml:"file-as,attr"`
		} `xml:"creator"`
		Language string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []ManifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc     string `xml:"toc,attr"`
		Itemref []struct {
			Idref  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type ManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

func (item ManifestItem) hasProperty(prop string) bool {
	for _, p := range strings.Fields(item.Properties) {
		if p == prop {
			return true
		}
	}
	return false
}

// packageDoc is a parsed package document plus where it lives.
type packageDoc struct {
	pkg *Package
	// opfPath is archive-internal, slash separated.
	opfPath string
	root    string
	byID    map[string]ManifestItem
}

func readPackage(root, opfPath string) (*packageDoc, error) {
	data, err := readLimited(filepath.Join(root, filepath.FromSlash(opfPath)), maxDocumentSize)
	if err != nil {
		return nil, &StructureParseError{Path: opfPath, Err: err}
	}

	pkg := &Package{}
	if err := decodeXML(data, pkg); err != nil {
		return nil, &StructureParseError{Path: opfPath, Err: err}
	}
	if len(pkg.Spine.Itemref) == 0 {
		return nil, &StructureParseError{Path: opfPath, Err: errors.New("spine has no entries")}
	}

	byID := make(map[string]ManifestItem, len(pkg.Manifest.Item))
	for _, item := range pkg.Manifest.Item {
		byID[item.ID] = item
	}

	return &packageDoc{pkg: pkg, opfPath: opfPath, root: root, byID: byID}, nil
}

// itemPath is the absolute filesystem path of a manifest item.
func (pd *packageDoc) itemPath(item ManifestItem) string {
	return resolveHref(pd.root, pd.opfPath, item.Href)
}

// itemArchivePath is the archive-internal path of a manifest item.
func (pd *packageDoc) itemArchivePath(item ManifestItem) string {
	p, _ := splitFragment(item.Href)
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	return path.Clean(path.Join(path.Dir(pd.opfPath), p))
}

func (pd *packageDoc) metadata() document.Metadata {
	pkg := pd.pkg

	// Parse out metadata into a more lookup-friendly structure.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	title := ""
	for _, t := range pkg.Metadata.Title {
		if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
			title = t.Text
			break
		}
	}
	if title == "" && len(pkg.Metadata.Title) > 0 {
		title = pkg.Metadata.Title[0].Text
	}

	author := ""
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		if role == "aut" || len(pkg.Metadata.Creator) == 1 {
			author = creator.Text
			break
		}
	}
	if author == "" && len(pkg.Metadata.Creator) > 0 {
		author = pkg.Metadata.Creator[0].Text
	}

	md := document.Metadata{
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
	}
	if md.Title == "" {
		md.Title = document.UnknownTitle
	}
	if md.Author == "" {
		md.Author = document.UnknownAuthor
	}

	if cover, ok := pd.coverItem(metaContent["cover"]); ok {
		md.CoverHref = pd.itemPath(cover)
		md.CoverMediaType = cover.MediaType
	}

	return md
}

// coverItem finds the cover by <meta name="cover"> first, then by the EPUB 3
// cover-image property.
func (pd *packageDoc) coverItem(metaCoverID string) (ManifestItem, bool) {
	if metaCoverID != "" {
		if item, ok := pd.byID[metaCoverID]; ok {
			return item, true
		}
	}
	for _, item := range pd.pkg.Manifest.Item {
		if item.hasProperty("cover-image") {
			return item, true
		}
	}
	return ManifestItem{}, false
}

// spine resolves every itemref through the manifest, in document order.
// Itemrefs pointing at unknown ids are returned in missing.
func (pd *packageDoc) spine() (refs []*document.ChapterRef, missing []string) {
	for _, ir := range pd.pkg.Spine.Itemref {
		item, ok := pd.byID[ir.Idref]
		if !ok {
			missing = append(missing, ir.Idref)
			continue
		}
		href := pd.itemPath(item)
		if href == "" {
			missing = append(missing, ir.Idref)
			continue
		}
		base := filepath.Base(href)
		refs = append(refs, &document.ChapterRef{
			ID:    item.ID,
			Label: strings.TrimSuffix(base, filepath.Ext(base)),
			Href:  href,
		})
	}
	return refs, missing
}

// navItem returns the EPUB 3 nav document, if the manifest declares one.
func (pd *packageDoc) navItem() (ManifestItem, bool) {
	for _, item := range pd.pkg.Manifest.Item {
		if item.hasProperty("nav") {
			return item, true
		}
	}
	return ManifestItem{}, false
}

// ncxItem returns the EPUB 2 NCX named by the spine's toc attribute, falling
// back to any manifest item with the NCX media type.
func (pd *packageDoc) ncxItem() (ManifestItem, bool) {
	if item, ok := pd.byID[pd.pkg.Spine.Toc]; ok && pd.pkg.Spine.Toc != "" {
		return item, true
	}
	for _, item := range pd.pkg.Manifest.Item {
		if item.MediaType == "application/x-dtbncx+xml" {
			return item, true
		}
	}
	return ManifestItem{}, false
}
