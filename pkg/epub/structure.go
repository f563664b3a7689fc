// Package epub turns an extracted EPUB directory into a document.Structure.
package epub

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/document"
)

// Parse reads the container descriptor, package document and navigation of
// the EPUB extracted at root. A missing or broken descriptor or package
// document is a StructureParseError. Broken navigation is logged and the
// spine is used as the TOC instead.
func Parse(ctx context.Context, root string) (*document.Structure, error) {
	log := logger.FromContext(ctx)

	opfPath, err := readContainer(root)
	if err != nil {
		return nil, err
	}

	pd, err := readPackage(root, opfPath)
	if err != nil {
		return nil, err
	}

	spine, missing := pd.spine()
	if len(missing) > 0 {
		log.Warn("spine references unknown manifest items", logger.Data{"opf": opfPath, "idrefs": missing})
	}
	if len(spine) == 0 {
		return nil, &StructureParseError{Path: opfPath, Err: errors.New("no spine entry resolves to a manifest item")}
	}

	s := &document.Structure{
		Root:     root,
		Metadata: pd.metadata(),
		Spine:    spine,
	}

	toc, err := readNavigation(pd)
	if err != nil {
		var nerr *NavigationParseError
		if errors.As(err, &nerr) {
			log.Err(err).Warn("navigation unavailable, using spine as table of contents", logger.Data{"path": nerr.Path})
		}
		s.TOC = document.FlatTOC(spine)
		s.TOCFromSpine = true
	} else {
		s.TOC = toc
		labelSpine(spine, toc)
	}

	if s.Metadata.CoverHref != "" {
		if w, h, err := ProbeCover(s.Metadata.CoverHref); err != nil {
			log.Err(err).Warn("cover image unreadable", logger.Data{"cover": s.Metadata.CoverHref})
			s.Metadata.CoverHref = ""
			s.Metadata.CoverMediaType = ""
		} else {
			s.Metadata.CoverWidth = w
			s.Metadata.CoverHeight = h
		}
	}

	log.Debug("parsed epub structure", logger.Data{
		"opf":            opfPath,
		"spine":          len(spine),
		"toc_from_spine": s.TOCFromSpine,
	})

	return s, nil
}

// labelSpine gives each spine entry the label of the first TOC entry that
// points at its document.
func labelSpine(spine []*document.ChapterRef, toc []*document.ChapterRef) {
	labels := map[string]string{}
	document.Walk(toc, func(ref *document.ChapterRef, _ int) {
		p, _ := splitFragment(ref.Href)
		if _, seen := labels[p]; !seen && p != "" && strings.TrimSpace(ref.Label) != "" {
			labels[p] = ref.Label
		}
	})
	for _, ref := range spine {
		if label, ok := labels[ref.Href]; ok {
			ref.Label = label
		}
	}
}
