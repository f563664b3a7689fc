package epub

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/lectern/pkg/document"
)

// StructureFile is written next to the extracted archive content.
const StructureFile = ".lectern-structure.json"

const structureCacheVersion = 1

type cachedStructure struct {
	Version   int                 `json:"version"`
	Structure *document.Structure `json:"structure"`
}

// LoadOrParse returns the cached structure for root, parsing and caching it
// on a miss. Paths are cached relative to root so the cache survives the
// extraction directory moving.
func LoadOrParse(ctx context.Context, root string) (*document.Structure, error) {
	log := logger.FromContext(ctx)
	p := filepath.Join(root, StructureFile)

	if data, err := os.ReadFile(p); err == nil {
		var cs cachedStructure
		if err := json.Unmarshal(data, &cs); err == nil && cs.Version == structureCacheVersion && cs.Structure != nil {
			return rebase(cs.Structure, root), nil
		}
		log.Warn("discarding unreadable structure cache", logger.Data{"path": p})
	}

	s, err := Parse(ctx, root)
	if err != nil {
		return nil, err
	}

	if err := writeCache(p, s); err != nil {
		log.Err(err).Warn("failed to write structure cache", logger.Data{"path": p})
	}
	return s, nil
}

func writeCache(p string, s *document.Structure) error {
	data, err := json.Marshal(cachedStructure{Version: structureCacheVersion, Structure: relativize(s)})
	if err != nil {
		return errors.WithStack(err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp, p))
}

func relativize(s *document.Structure) *document.Structure {
	prefix := s.Root + string(filepath.Separator)
	out := mapHrefs(s, func(href string) string {
		if !strings.HasPrefix(href, prefix) {
			return href
		}
		return filepath.ToSlash(strings.TrimPrefix(href, prefix))
	})
	out.Root = ""
	return out
}

func rebase(s *document.Structure, root string) *document.Structure {
	out := mapHrefs(s, func(href string) string {
		if href == "" || filepath.IsAbs(href) || strings.Contains(href, "://") {
			return href
		}
		p, frag := splitFragment(href)
		abs := filepath.Join(root, filepath.FromSlash(p))
		if frag != "" {
			return abs + "#" + frag
		}
		return abs
	})
	out.Root = root
	return out
}

// mapHrefs copies s, passing every filesystem href through fn.
func mapHrefs(s *document.Structure, fn func(string) string) *document.Structure {
	var mapRefs func([]*document.ChapterRef) []*document.ChapterRef
	mapRefs = func(refs []*document.ChapterRef) []*document.ChapterRef {
		if refs == nil {
			return nil
		}
		out := make([]*document.ChapterRef, len(refs))
		for i, r := range refs {
			c := *r
			c.Href = fn(r.Href)
			c.Children = mapRefs(r.Children)
			out[i] = &c
		}
		return out
	}

	out := *s
	out.Metadata.CoverHref = fn(s.Metadata.CoverHref)
	out.Spine = mapRefs(s.Spine)
	out.TOC = mapRefs(s.TOC)
	return &out
}
