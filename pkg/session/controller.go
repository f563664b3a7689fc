// Package session runs reading sessions. A Controller owns one open book:
// it loads it, restores the saved position, drives the rendering surface,
// and persists progress at throttled checkpoints.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/config"
	"github.com/shishobooks/lectern/pkg/document"
	"github.com/shishobooks/lectern/pkg/location"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/shishobooks/lectern/pkg/settings"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateClosed  State = "closed"
	StateFailed  State = "failed"
)

type Options struct {
	LoadTimeout        time.Duration
	SaveThrottle       time.Duration
	MinSessionDuration time.Duration
	RestoreSeekDelay   time.Duration
	AwaitLayoutSettled bool
	Clock              Clock
}

const defaultLoadTimeout = 30 * time.Second

func (o Options) withDefaults() Options {
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = defaultLoadTimeout
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		LoadTimeout:        cfg.LoadTimeout,
		SaveThrottle:       cfg.SaveThrottle,
		MinSessionDuration: cfg.MinSessionDuration,
		RestoreSeekDelay:   cfg.RestoreSeekDelay,
		AwaitLayoutSettled: cfg.AwaitLayoutSettled,
	}
}

type Selection struct {
	Text          string       `json:"text"`
	LocationToken string       `json:"location_token"`
	Rect          *bridge.Rect `json:"rect,omitempty"`
}

// View is a read-only snapshot of a session.
type View struct {
	ID              string     `json:"id"`
	BookID          int        `json:"book_id"`
	Format          string     `json:"format,omitempty"`
	Title           string     `json:"title,omitempty"`
	State           State      `json:"state"`
	Error           string     `json:"error,omitempty"`
	ChapterOrdinal  int        `json:"chapter_ordinal"`
	ChapterFraction float64    `json:"chapter_fraction"`
	ProgressPercent float64    `json:"progress_percent"`
	LocationToken   *string    `json:"location_token"`
	TotalChapters   int        `json:"total_chapters"`
	LoadID          int        `json:"load_id"`
	PendingSeek     bool       `json:"pending_seek"`
	ChromeVisible   bool       `json:"chrome_visible"`
	Selection       *Selection `json:"selection,omitempty"`
	LastSavedAt     *time.Time `json:"last_saved_at"`
	StartedAt       time.Time  `json:"started_at"`
}

type Controller struct {
	id       string
	bookID   int
	store    Store
	loader   Loader
	surface  bridge.Surface
	settings *settings.Store
	opts     Options
	clock    Clock

	log logger.Logger
	ctx context.Context

	mb        *mailbox
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	view      atomic.Pointer[View]

	// Everything below is owned by the run goroutine.
	state  State
	err    error
	book   *models.Book
	doc    *Document
	loaded bool
	style  bridge.Style

	loadID    int
	readyLoad int
	pending   *bridge.Command
	stopSeek  func() bool

	ordinal  int
	fraction float64
	progress float64
	token    *string
	total    int

	dirty     bool
	lastFlush time.Time
	lastSaved *time.Time
	startedAt time.Time

	selection     *Selection
	chromeVisible bool
	unsubscribe   func()
}

// New starts a session actor for bookID. Nothing is loaded until Load.
// settingsStore may be nil, in which case the default style is used.
func New(id string, bookID int, store Store, loader Loader, surface bridge.Surface, settingsStore *settings.Store, opts Options) *Controller {
	opts = opts.withDefaults()
	log := sessionLogger(id, bookID, "")
	c := &Controller{
		id:            id,
		bookID:        bookID,
		store:         store,
		loader:        loader,
		surface:       surface,
		settings:      settingsStore,
		opts:          opts,
		clock:         opts.Clock,
		log:           log,
		ctx:           log.WithContext(context.Background()),
		mb:            newMailbox(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		state:         StateIdle,
		style:         settings.Defaults().Style(),
		chromeVisible: true,
	}
	c.startedAt = c.clock.Now()

	if settingsStore != nil {
		c.style = settingsStore.Get().Style()
		ch, cancel := settingsStore.Subscribe()
		c.unsubscribe = cancel
		go c.watchSettings(ch)
	}

	c.publishView()
	go c.run()
	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) BookID() int {
	return c.bookID
}

// View returns the latest published snapshot.
func (c *Controller) View() View {
	return *c.view.Load()
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case <-c.mb.signal:
			for _, fn := range c.mb.drain() {
				fn()
			}
			c.publishView()
		}
	}
}

func (c *Controller) watchSettings(ch <-chan settings.Settings) {
	for {
		select {
		case <-c.stop:
			return
		case s := <-ch:
			c.mb.post(func() {
				c.style = s.Style()
				if c.state == StateReady {
					c.sendStyle()
				}
			})
		}
	}
}

// call runs fn on the session goroutine and waits for it.
func (c *Controller) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	ok := c.mb.post(func() {
		err := fn()
		c.publishView()
		errc <- err
	})
	if !ok {
		return ErrClosed
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-c.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	}
}

// Load opens the book and restores its saved position. It blocks until the
// book is ready or the load has failed. Loading a ready session is a no-op;
// loading while another load is in flight fails with ErrLoadInFlight.
func (c *Controller) Load(ctx context.Context) error {
	var alreadyReady bool
	err := c.call(ctx, func() error {
		switch c.state {
		case StateLoading:
			return ErrLoadInFlight
		case StateReady:
			alreadyReady = true
			return nil
		case StateClosed:
			return ErrClosed
		}
		c.state = StateLoading
		c.err = nil
		return nil
	})
	if err != nil || alreadyReady {
		return err
	}

	book, err := c.store.RetrieveBook(ctx, c.bookID)
	if err != nil {
		c.fail(err)
		return err
	}

	doc, err := c.loadWithTimeout(ctx, book)
	if err != nil {
		c.fail(err)
		return err
	}

	return c.call(ctx, func() error {
		if c.state != StateLoading {
			return ErrClosed
		}
		c.enterReady(book, doc)
		return nil
	})
}

// loadWithTimeout races the loader against LoadTimeout. On expiry the
// loader's context is cancelled and its eventual result dropped.
func (c *Controller) loadWithTimeout(ctx context.Context, book *models.Book) (*Document, error) {
	log := sessionLogger(c.id, book.ID, book.Format)
	lctx, cancel := context.WithTimeout(log.WithContext(context.Background()), c.opts.LoadTimeout)
	defer cancel()

	type result struct {
		doc *Document
		err error
	}
	results := make(chan result, 1)
	go func() {
		doc, err := c.loader.Load(lctx, book)
		results <- result{doc, err}
	}()

	select {
	case r := <-results:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, &LoadTimeoutError{BookID: book.ID, Timeout: c.opts.LoadTimeout}
		}
		return r.doc, r.err
	case <-lctx.Done():
		return nil, &LoadTimeoutError{BookID: book.ID, Timeout: c.opts.LoadTimeout}
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

func (c *Controller) fail(err error) {
	c.log.Err(err).Error("failed to load book")
	_ = c.call(context.Background(), func() error {
		if c.state == StateLoading {
			c.state = StateFailed
			c.err = err
		}
		return nil
	})
}

func (c *Controller) enterReady(book *models.Book, doc *Document) {
	c.book = book
	c.doc = doc
	c.log = sessionLogger(c.id, c.bookID, book.Format)
	c.ctx = c.log.WithContext(context.Background())

	c.total = doc.Structure.ChapterCount()
	if c.total == 0 && document.IsPageOriented(book.Format) {
		c.total = book.TotalChapters
	}
	c.ordinal = max(book.ChapterOrdinal, 0)
	if c.total > 0 {
		c.ordinal = min(c.ordinal, c.total-1)
	}
	c.fraction = books.Clamp(book.ChapterFraction, 0, 1)
	c.progress = books.Clamp(book.ProgressPercent, 0, 100)
	c.token = book.LocationToken

	// From here on a save writes real history, never the zeroed initial
	// state.
	c.loaded = true
	c.state = StateReady
	c.lastFlush = c.clock.Now()

	s := doc.Structure
	if err := c.store.UpdateStructureInfo(c.ctx, c.bookID, s.Metadata, c.total); err != nil {
		c.log.Err(&PersistenceError{BookID: c.bookID, Op: "update structure info", Err: err}).Warn("failed to save book structure")
	}
	if err := c.store.ReplaceChapters(c.ctx, c.bookID, s.Root, s.TOC); err != nil {
		c.log.Err(&PersistenceError{BookID: c.bookID, Op: "replace chapters", Err: err}).Warn("failed to save table of contents")
	}

	c.log.Info("book loaded", logger.Data{
		"chapters": c.total,
		"ordinal":  c.ordinal,
		"fraction": c.fraction,
		"chunked":  s.Chunked,
	})

	c.sendStyle()
	after := c.restoreSeek()
	c.openChapter(c.ordinal, after)
}

// restoreSeek decides how to return to the saved position once content is
// ready. A saved precise token wins over the ordinal; when it does not
// resolve the ordinal and fraction are used.
func (c *Controller) restoreSeek() *bridge.Command {
	if c.token != nil && *c.token != "" {
		if cmd, ok := c.restoreToken(*c.token); ok {
			return cmd
		}
	}

	switch {
	case document.IsPageOriented(c.doc.Format):
		return nil
	case c.doc.SmallText():
		if c.progress > 0 {
			return percentage(c.progress)
		}
		return nil
	case c.fraction > 0:
		return percentage(c.fraction * 100)
	}
	return nil
}

func (c *Controller) restoreToken(raw string) (*bridge.Command, bool) {
	if document.IsPageOriented(c.doc.Format) {
		return nil, false
	}

	t, err := c.doc.Resolver.Resolve(raw)
	if err != nil {
		c.log.Err(err).Warn("saved location did not resolve, using chapter ordinal", logger.Data{"token": raw})
		return nil, false
	}

	switch t.Kind {
	case location.TargetChapter:
		if t.Ordinal != c.ordinal {
			c.ordinal = t.Ordinal
			c.fraction = t.Fraction
		} else if t.Fraction > 0 {
			c.fraction = t.Fraction
		}
		if c.fraction > 0 {
			return percentage(c.fraction * 100), true
		}
		return nil, true
	case location.TargetAnchor:
		c.ordinal = t.Ordinal
		return &bridge.Command{Type: bridge.CommandSeekAnchor, Anchor: t.Anchor}, true
	case location.TargetNative:
		return &bridge.Command{Type: bridge.CommandGoToLocation, Location: t.Native}, true
	case location.TargetScroll:
		return &bridge.Command{Type: bridge.CommandScrollToOffset, Offset: bridge.Float(t.Pixels)}, true
	case location.TargetTextOffset:
		return &bridge.Command{Type: bridge.CommandSeekTextOffset, TextOffset: bridge.Int64(t.TextOffset)}, true
	}
	return nil, false
}

// openChapter loads ordinal into the surface. after is sent once the
// surface reports READY for this load.
func (c *Controller) openChapter(ordinal int, after *bridge.Command) {
	c.cancelSeekTimer()
	c.loadID++
	c.ordinal = ordinal
	c.pending = after

	cmd := bridge.Command{
		Type:    bridge.CommandLoadContent,
		LoadID:  c.loadID,
		Ordinal: bridge.Int(ordinal),
	}

	s := c.doc.Structure
	switch {
	case c.doc.Format == document.FormatEPUB:
		cmd.BaseURL = contentURL(c.bookID)
		if href, ok := c.doc.Resolver.RelativeHref(ordinal, ""); ok {
			cmd.Href = href
		}
	case c.doc.Format == document.FormatCBZ:
		cmd.BaseURL = pagesURL(c.bookID)
		cmd.Page = bridge.Int(ordinal)
		cmd.Href = strconv.Itoa(ordinal)
	case c.doc.Format == document.FormatPDF:
		cmd.BaseURL = sourceURL(c.bookID)
		cmd.Page = bridge.Int(ordinal)
	case c.doc.SmallText():
		cmd.Content = c.doc.Text
	default:
		cmd.BaseURL = chunksURL(c.bookID)
		if ref := s.Chapter(ordinal); ref != nil {
			cmd.Href = ref.Href
			text, err := readText(c.book.SourcePath, ref)
			if err != nil {
				c.log.Err(err).Error("failed to read text chunk", logger.Data{"chunk": ordinal})
			} else {
				cmd.Content = text
			}
		}
	}

	c.send(cmd)
}

// HandleEvent queues an event from the surface. It never blocks, so it is
// safe to call from a Surface's Send.
func (c *Controller) HandleEvent(ev bridge.Event) {
	c.mb.post(func() {
		c.handleEvent(ev)
	})
}

func (c *Controller) handleEvent(ev bridge.Event) {
	if c.state != StateReady {
		c.log.Debug("ignoring event outside ready state", logger.Data{"type": ev.Type, "state": c.state})
		return
	}

	switch ev.Type {
	case bridge.EventReady:
		c.onReady(ev)
	case bridge.EventLayoutSettled:
		c.onLayoutSettled(ev)
	case bridge.EventScroll:
		c.onScroll(ev)
	case bridge.EventLocation:
		c.onLocation(ev)
	case bridge.EventPage:
		c.onPage(ev)
	case bridge.EventTap:
		if ev.X != nil && ev.Y != nil {
			c.onTap(bridge.ClassifyTap(c.style.Flow, 1, 1, *ev.X, *ev.Y))
		}
	case bridge.EventTapLeft, bridge.EventTapCenter, bridge.EventTapRight:
		c.onTap(ev.Type)
	case bridge.EventPrevChapter:
		c.stepChapter(-1)
	case bridge.EventNextChapter:
		c.stepChapter(1)
	case bridge.EventSelection:
		c.selection = &Selection{Text: ev.Text, LocationToken: ev.LocationToken, Rect: ev.Rect}
	case bridge.EventSelectionCleared:
		c.selection = nil
	case bridge.EventBackground:
		c.flush(true)
	}
}

func (c *Controller) stale(ev bridge.Event) bool {
	return ev.LoadID != 0 && ev.LoadID != c.loadID
}

func (c *Controller) onReady(ev bridge.Event) {
	if c.stale(ev) {
		c.log.Debug("ignoring stale READY", logger.Data{"load_id": ev.LoadID, "current": c.loadID})
		return
	}
	if c.readyLoad == c.loadID {
		return
	}
	c.readyLoad = c.loadID
	c.sendHighlights()

	if c.pending == nil || c.opts.AwaitLayoutSettled {
		return
	}
	loadID := c.loadID
	c.stopSeek = c.clock.AfterFunc(c.opts.RestoreSeekDelay, func() {
		c.mb.post(func() {
			if c.loadID == loadID {
				c.sendPending()
			}
		})
	})
}

func (c *Controller) onLayoutSettled(ev bridge.Event) {
	if c.stale(ev) || c.readyLoad != c.loadID || !c.opts.AwaitLayoutSettled {
		return
	}
	c.sendPending()
}

func (c *Controller) onScroll(ev bridge.Event) {
	switch {
	case document.IsPageOriented(c.doc.Format):
		return
	case c.doc.SmallText():
		switch {
		case ev.Offset != nil && ev.ScrollHeight != nil && *ev.ScrollHeight > 0:
			c.progress = *ev.Offset / *ev.ScrollHeight * 100
			token := scrollToken(*ev.Offset)
			c.token = &token
		case ev.Percentage != nil:
			c.progress = *ev.Percentage
			c.token = nil
		default:
			return
		}
		c.progress = books.Clamp(c.progress, 0, 100)
		c.fraction = c.progress / 100
	default:
		if ev.Percentage == nil {
			return
		}
		c.fraction = books.Clamp(*ev.Percentage/100, 0, 1)
		if c.doc.Structure.Chunked {
			token := c.doc.Resolver.Encode(c.ordinal, c.fraction)
			c.token = &token
		} else {
			// A scroll invalidates whatever precise token the surface last
			// reported.
			c.token = nil
		}
		c.updateProgress()
	}
	c.markDirty()
}

func (c *Controller) onLocation(ev bridge.Event) {
	if ev.Fraction != nil {
		c.fraction = books.Clamp(*ev.Fraction, 0, 1)
	}
	if ev.LocationToken != "" {
		token := ev.LocationToken
		c.token = &token
	}

	if ev.Chapter != nil && *ev.Chapter != c.ordinal && *ev.Chapter >= 0 && *ev.Chapter < c.total {
		c.ordinal = *ev.Chapter
		c.updateProgress()
		c.flush(true)
		return
	}
	c.updateProgress()
	c.markDirty()
}

func (c *Controller) onPage(ev bridge.Event) {
	if !document.IsPageOriented(c.doc.Format) {
		return
	}
	if ev.TotalPages != nil && *ev.TotalPages > 0 && *ev.TotalPages != c.total {
		c.total = *ev.TotalPages
		if err := c.store.UpdateStructureInfo(c.ctx, c.bookID, c.doc.Structure.Metadata, c.total); err != nil {
			c.log.Err(&PersistenceError{BookID: c.bookID, Op: "update page count", Err: err}).Warn("failed to save page count")
		}
	}
	if ev.Page != nil {
		c.ordinal = max(*ev.Page, 0)
		if c.total > 0 {
			c.ordinal = min(c.ordinal, c.total-1)
		}
	}
	c.fraction = 0
	c.token = nil
	c.updateProgress()
	c.markDirty()
}

func (c *Controller) onTap(zone bridge.EventType) {
	switch zone {
	case bridge.EventTapLeft:
		c.send(bridge.Command{Type: bridge.CommandTurnPage, Direction: bridge.DirectionPrev})
	case bridge.EventTapRight:
		c.send(bridge.Command{Type: bridge.CommandTurnPage, Direction: bridge.DirectionNext})
	case bridge.EventTapCenter:
		c.chromeVisible = !c.chromeVisible
	}
}

// stepChapter handles the surface running off either end of a chapter.
func (c *Controller) stepChapter(delta int) {
	if document.IsPageOriented(c.doc.Format) || c.doc.SmallText() {
		return
	}
	next := c.ordinal + delta
	if next < 0 || next >= c.total {
		c.log.Debug("no chapter to step to", logger.Data{"ordinal": next})
		return
	}
	if delta > 0 {
		c.moveTo(next, 0, nil, nil)
		return
	}
	c.moveTo(next, 1, nil, percentage(100))
}

// moveTo sets a new position. Changing chapter is a checkpoint and reloads
// the surface; after runs once the new content is ready.
func (c *Controller) moveTo(ordinal int, fraction float64, token *string, after *bridge.Command) {
	c.fraction = books.Clamp(fraction, 0, 1)
	c.token = token

	if ordinal != c.ordinal {
		c.ordinal = ordinal
		c.updateProgress()
		c.flush(true)
		c.openChapter(ordinal, after)
		return
	}

	// Same chapter: the surface must be told, or it stays where it was while
	// the recorded position moves.
	if after == nil {
		after = percentage(c.fraction * 100)
	}
	c.updateProgress()
	c.markDirty()
	c.seek(*after)
}

// seek sends cmd now if the current content is ready, otherwise defers it
// until READY.
func (c *Controller) seek(cmd bridge.Command) {
	if c.readyLoad == c.loadID && c.pending == nil {
		c.send(cmd)
		return
	}
	c.pending = &cmd
}

func (c *Controller) sendPending() {
	if c.pending == nil {
		return
	}
	cmd := *c.pending
	c.pending = nil
	c.send(cmd)
}

func (c *Controller) cancelSeekTimer() {
	if c.stopSeek != nil {
		c.stopSeek()
		c.stopSeek = nil
	}
}

func (c *Controller) updateProgress() {
	switch {
	case document.IsPageOriented(c.doc.Format):
		if c.total > 0 {
			c.progress = float64(c.ordinal) / float64(c.total) * 100
		}
	case c.doc.SmallText():
		// Set directly from scroll events.
	default:
		if c.total > 0 {
			c.progress = (float64(c.ordinal) + c.fraction) / float64(c.total) * 100
		}
	}
	c.progress = books.Clamp(c.progress, 0, 100)
}

func (c *Controller) markDirty() {
	c.dirty = true
	c.flush(false)
}

// flush writes the current position. Unforced flushes are throttled to one
// per SaveThrottle; checkpoints force one. Failures are logged and leave the
// state dirty for the next attempt.
func (c *Controller) flush(force bool) {
	if !c.loaded {
		return
	}
	now := c.clock.Now()
	if !force && (!c.dirty || now.Sub(c.lastFlush) < c.opts.SaveThrottle) {
		return
	}
	c.lastFlush = now

	pos := models.Position{
		ChapterOrdinal:  c.ordinal,
		ChapterFraction: c.fraction,
		ProgressPercent: c.progress,
		LocationToken:   c.token,
		LastReadAt:      now,
	}
	if err := c.store.UpdateProgress(c.ctx, c.bookID, pos); err != nil {
		c.log.Err(&PersistenceError{BookID: c.bookID, Op: "update progress", Err: err}).Warn("failed to save reading position")
		return
	}
	c.dirty = false
	c.lastSaved = &now
}

func (c *Controller) send(cmd bridge.Command) {
	if err := c.surface.Send(c.ctx, cmd); err != nil {
		c.log.Err(err).Warn("failed to send command to surface", logger.Data{"type": cmd.Type})
	}
}

func (c *Controller) sendStyle() {
	style := c.style
	c.send(bridge.Command{Type: bridge.CommandSetStyle, Style: &style})
}

func (c *Controller) sendHighlights() {
	notes, err := c.store.ListNotes(c.ctx, c.bookID)
	if err != nil {
		c.log.Err(err).Warn("failed to list notes for highlights")
		return
	}
	if len(notes) == 0 {
		return
	}
	c.send(bridge.Command{Type: bridge.CommandApplyHighlights, Highlights: highlights(notes)})
}

func highlights(notes []*models.Note) []bridge.Highlight {
	hs := make([]bridge.Highlight, 0, len(notes))
	for _, n := range notes {
		hs = append(hs, bridge.Highlight{ID: n.ID, LocationToken: n.LocationToken, Color: n.Color})
	}
	return hs
}

// Close flushes the final position, logs the session and stops the actor.
// Closing twice is a no-op.
func (c *Controller) Close(ctx context.Context) error {
	err := c.call(ctx, func() error {
		if c.state == StateClosed {
			return nil
		}
		c.cancelSeekTimer()
		c.flush(true)
		c.logSession()
		c.state = StateClosed
		return nil
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	c.shutdown()
	return nil
}

func (c *Controller) shutdown() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.mb.close()
		close(c.stop)
		<-c.done
	})
}

func (c *Controller) logSession() {
	if !c.loaded {
		return
	}
	ended := c.clock.Now()
	d := ended.Sub(c.startedAt)
	if d < c.opts.MinSessionDuration {
		c.log.Debug("session too short to log", logger.Data{"duration_ms": d.Milliseconds()})
		return
	}

	c.log.Info("reading session ended", logger.Data{"duration_ms": d.Milliseconds(), "progress": c.progress})
	rs := &models.ReadingSession{
		BookID:     c.bookID,
		StartedAt:  c.startedAt,
		EndedAt:    ended,
		DurationMs: d.Milliseconds(),
	}
	if err := c.store.LogSession(c.ctx, rs); err != nil {
		c.log.Err(&PersistenceError{BookID: c.bookID, Op: "log session", Err: err}).Warn("failed to log reading session")
	}
}

func (c *Controller) publishView() {
	v := &View{
		ID:              c.id,
		BookID:          c.bookID,
		State:           c.state,
		ChapterOrdinal:  c.ordinal,
		ChapterFraction: c.fraction,
		ProgressPercent: c.progress,
		TotalChapters:   c.total,
		LoadID:          c.loadID,
		PendingSeek:     c.pending != nil,
		ChromeVisible:   c.chromeVisible,
		StartedAt:       c.startedAt,
	}
	if c.err != nil {
		v.Error = c.err.Error()
	}
	if c.token != nil {
		token := *c.token
		v.LocationToken = &token
	}
	if c.selection != nil {
		sel := *c.selection
		v.Selection = &sel
	}
	if c.lastSaved != nil {
		saved := *c.lastSaved
		v.LastSavedAt = &saved
	}
	if c.book != nil {
		v.Format = c.book.Format
		v.Title = c.doc.Structure.Metadata.Title
	}
	c.view.Store(v)
}

func sessionLogger(id string, bookID int, format string) logger.Logger {
	data := logger.Data{"book_id": bookID}
	if format != "" {
		data["format"] = format
	}
	return logger.New().ID(id).Root(data)
}

func percentage(pct float64) *bridge.Command {
	return &bridge.Command{Type: bridge.CommandScrollToPercentage, Percentage: bridge.Float(books.Clamp(pct, 0, 100))}
}

func scrollToken(px float64) string {
	return "scroll:" + strconv.FormatFloat(max(px, 0), 'f', -1, 64)
}

func contentURL(bookID int) string {
	return fmt.Sprintf("/books/%d/content/", bookID)
}

func pagesURL(bookID int) string {
	return fmt.Sprintf("/books/%d/pages/", bookID)
}

func sourceURL(bookID int) string {
	return fmt.Sprintf("/books/%d/source", bookID)
}

func chunksURL(bookID int) string {
	return fmt.Sprintf("/books/%d/chunks/", bookID)
}
