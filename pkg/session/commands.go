package session

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/htmlutil"
	"github.com/shishobooks/lectern/pkg/location"
	"github.com/shishobooks/lectern/pkg/textchunk"
)

// Jump moves the session to a location token, typically a TOC entry or a
// bookmark. A token that parses but does not resolve is logged and ignored;
// applied reports whether anything happened.
func (c *Controller) Jump(ctx context.Context, raw string) (applied bool, err error) {
	tok, err := location.Parse(raw)
	if err != nil {
		return false, err
	}

	err = c.call(ctx, func() error {
		if c.state != StateReady {
			return ErrNotReady
		}
		applied = c.jump(raw, tok)
		return nil
	})
	return applied, err
}

func (c *Controller) jump(raw string, tok location.Token) bool {
	if document.IsPageOriented(c.doc.Format) {
		return c.jumpPage(raw, tok)
	}

	t, err := c.doc.Resolver.Resolve(raw)
	if err != nil {
		c.log.Err(err).Warn("location did not resolve", logger.Data{"token": raw})
		return false
	}

	token := raw
	switch t.Kind {
	case location.TargetChapter:
		var after *bridge.Command
		var precise *string
		if t.Fraction > 0 {
			after = percentage(t.Fraction * 100)
		}
		if c.doc.Structure.Chunked {
			precise = &token
		}
		c.moveTo(t.Ordinal, t.Fraction, precise, after)
	case location.TargetAnchor:
		c.moveTo(t.Ordinal, 0, &token, &bridge.Command{Type: bridge.CommandSeekAnchor, Anchor: t.Anchor})
	case location.TargetNative:
		c.token = &token
		c.seek(bridge.Command{Type: bridge.CommandGoToLocation, Location: t.Native})
		c.markDirty()
	case location.TargetScroll:
		c.token = &token
		c.seek(bridge.Command{Type: bridge.CommandScrollToOffset, Offset: bridge.Float(t.Pixels)})
		c.markDirty()
	case location.TargetTextOffset:
		c.token = &token
		if c.doc.SmallText() && len(c.doc.Text) > 0 {
			c.progress = float64(t.TextOffset) / float64(len(c.doc.Text)) * 100
			c.fraction = c.progress / 100
		}
		c.seek(bridge.Command{Type: bridge.CommandSeekTextOffset, TextOffset: bridge.Int64(t.TextOffset)})
		c.markDirty()
	}
	return true
}

// jumpPage handles page-oriented books, where chapter:<n> names a page and
// the page count may not be known yet.
func (c *Controller) jumpPage(raw string, tok location.Token) bool {
	if tok.Kind != location.KindChapter {
		c.log.Warn("location does not address a page", logger.Data{"token": raw})
		return false
	}
	if tok.Ordinal < 0 || (c.total > 0 && tok.Ordinal >= c.total) {
		c.log.Warn("page out of range", logger.Data{"page": tok.Ordinal, "total": c.total})
		return false
	}

	changed := tok.Ordinal != c.ordinal
	c.ordinal = tok.Ordinal
	c.fraction = 0
	c.token = nil
	c.updateProgress()
	if changed {
		c.flush(true)
	}
	c.seek(bridge.Command{Type: bridge.CommandGoToLocation, Location: raw, Page: bridge.Int(tok.Ordinal)})
	return true
}

// TurnPage asks the surface to turn one page in dir.
func (c *Controller) TurnPage(ctx context.Context, dir bridge.Direction) error {
	return c.command(ctx, bridge.Command{Type: bridge.CommandTurnPage, Direction: dir})
}

func (c *Controller) Search(ctx context.Context, query string) error {
	return c.command(ctx, bridge.Command{Type: bridge.CommandSearch, Query: query})
}

func (c *Controller) FindNext(ctx context.Context) error {
	return c.command(ctx, bridge.Command{Type: bridge.CommandFindNext})
}

func (c *Controller) FindPrevious(ctx context.Context) error {
	return c.command(ctx, bridge.Command{Type: bridge.CommandFindPrevious})
}

// RefreshHighlights resends the book's notes as highlights.
func (c *Controller) RefreshHighlights(ctx context.Context) error {
	return c.call(ctx, func() error {
		if c.state != StateReady {
			return ErrNotReady
		}
		c.sendHighlights()
		return nil
	})
}

func (c *Controller) command(ctx context.Context, cmd bridge.Command) error {
	return c.call(ctx, func() error {
		if c.state != StateReady {
			return ErrNotReady
		}
		c.send(cmd)
		return nil
	})
}

// Checkpoint forces a flush of the current position.
func (c *Controller) Checkpoint(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.flush(true)
		return nil
	})
}

// Here is the current position as a location token plus a short preview of
// the text there, for bookmarking.
type Here struct {
	LocationToken string
	Preview       string
}

func (c *Controller) Here(ctx context.Context) (Here, error) {
	var h Here
	err := c.call(ctx, func() error {
		if c.state != StateReady {
			return ErrNotReady
		}
		h.LocationToken = c.currentToken()
		h.Preview = c.preview()
		return nil
	})
	return h, err
}

func (c *Controller) currentToken() string {
	if c.token != nil && *c.token != "" {
		return *c.token
	}
	if c.doc.SmallText() {
		return textchunk.Href(c.textOffset(), 0)
	}
	return c.doc.Resolver.Encode(c.ordinal, c.fraction)
}

func (c *Controller) textOffset() int64 {
	off := int(c.fraction * float64(len(c.doc.Text)))
	off = min(max(off, 0), len(c.doc.Text))
	for off < len(c.doc.Text) && !utf8.RuneStart(c.doc.Text[off]) {
		off++
	}
	return int64(off)
}

func (c *Controller) preview() string {
	switch {
	case document.IsPageOriented(c.doc.Format):
		return fmt.Sprintf("Page %d", c.ordinal+1)
	case c.doc.SmallText():
		return htmlutil.Preview(c.doc.Text[c.textOffset():], htmlutil.DefaultPreviewLength)
	}

	ref := c.doc.Structure.Chapter(c.ordinal)
	if ref == nil {
		return ""
	}

	if c.doc.Structure.Chunked {
		data, err := readWindow(c.book.SourcePath, ref)
		if err != nil {
			c.log.Err(err).Warn("failed to read chunk for preview")
			return ref.Label
		}
		start := min(int(c.fraction*float64(len(data))), len(data))
		return htmlutil.Preview(strings.ToValidUTF8(string(data[start:]), ""), htmlutil.DefaultPreviewLength)
	}

	p, _, _ := strings.Cut(ref.Href, "#")
	anchor := ""
	if c.token != nil {
		if t, err := c.doc.Resolver.Resolve(*c.token); err == nil && t.Kind == location.TargetAnchor && t.Ordinal == c.ordinal {
			anchor = t.Anchor
		}
	}
	text, err := htmlutil.DocumentPreview(p, anchor, htmlutil.DefaultPreviewLength)
	if err != nil || text == "" {
		return ref.Label
	}
	return text
}

func readWindow(p string, ref *document.ChapterRef) ([]byte, error) {
	data, err := textchunk.ReadChunk(p, ref.Offset, ref.Length)
	return data, errors.WithStack(err)
}

func readText(p string, ref *document.ChapterRef) (string, error) {
	text, err := textchunk.ReadText(p, ref.Offset, ref.Length)
	return text, errors.WithStack(err)
}
