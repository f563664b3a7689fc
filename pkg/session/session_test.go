package session

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shishobooks/lectern/pkg/books"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/migrations"
	"github.com/shishobooks/lectern/pkg/models"
	"github.com/shishobooks/lectern/pkg/unpack"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

// fakeClock only moves when Advance is called. Due timers fire
// synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		active := !t.stopped && !t.fired
		t.stopped = true
		return active
	}
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var due []func()
	rest := f.timers[:0]
	for _, t := range f.timers {
		switch {
		case t.stopped:
		case !t.at.After(f.now):
			t.fired = true
			due = append(due, t.fn)
		default:
			rest = append(rest, t)
		}
	}
	f.timers = rest
	f.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// recordingStore wraps a Store, counting progress writes and optionally
// failing them.
type recordingStore struct {
	Store

	mu       sync.Mutex
	attempts int
	saved    []models.Position
	fail     error
}

func (s *recordingStore) UpdateProgress(ctx context.Context, bookID int, pos models.Position) error {
	s.mu.Lock()
	s.attempts++
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail
	}

	if err := s.Store.UpdateProgress(ctx, bookID, pos); err != nil {
		return err
	}
	s.mu.Lock()
	s.saved = append(s.saved, pos)
	s.mu.Unlock()
	return nil
}

func (s *recordingStore) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *recordingStore) counts() (attempts int, saved []models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, append([]models.Position(nil), s.saved...)
}

// blockingLoader holds a load until released or cancelled.
type blockingLoader struct {
	inner     Loader
	started   chan struct{}
	release   chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func newBlockingLoader(inner Loader) *blockingLoader {
	return &blockingLoader{
		inner:     inner,
		started:   make(chan struct{}),
		release:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

func (l *blockingLoader) Load(ctx context.Context, book *models.Book) (*Document, error) {
	l.once.Do(func() { close(l.started) })
	select {
	case <-ctx.Done():
		close(l.cancelled)
		return nil, ctx.Err()
	case <-l.release:
		return l.inner.Load(ctx, book)
	}
}

type fixture struct {
	db     *bun.DB
	clock  *fakeClock
	store  *recordingStore
	loader Loader
	cache  *unpack.Cache
	opts   Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	clock := newFakeClock()
	cache := unpack.NewCache(t.TempDir())
	return &fixture{
		db:     db,
		clock:  clock,
		store:  &recordingStore{Store: NewDBStore(db, 0)},
		loader: NewFormatLoader(cache, 0, 0),
		cache:  cache,
		opts: Options{
			LoadTimeout:        5 * time.Second,
			SaveThrottle:       5 * time.Second,
			MinSessionDuration: 5 * time.Second,
			RestoreSeekDelay:   300 * time.Millisecond,
			Clock:              clock,
		},
	}
}

func (f *fixture) register(t *testing.T, path string) *models.Book {
	t.Helper()
	book, _, err := books.NewService(f.db).Register(context.Background(), path)
	require.NoError(t, err)
	return book
}

func (f *fixture) retrieve(t *testing.T, id int) *models.Book {
	t.Helper()
	book, err := books.NewService(f.db).RetrieveBook(context.Background(), books.RetrieveBookOptions{ID: &id})
	require.NoError(t, err)
	return book
}

func (f *fixture) open(t *testing.T, bookID int) (*Controller, *bridge.Simulator) {
	t.Helper()
	sim := bridge.NewSimulator(bridge.Viewport{Flow: bridge.FlowPaginated, Width: 100, Height: 200, ScrollWidth: 300, ScrollHeight: 200})
	c := New("session-"+t.Name(), bookID, f.store, f.loader, sim, nil, f.opts)
	t.Cleanup(func() {
		_ = c.Close(context.Background())
	})
	return c, sim
}

// barrier waits until every event queued so far has been handled.
func barrier(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.call(context.Background(), func() error { return nil }))
}

func lastLoad(t *testing.T, sim *bridge.Simulator) bridge.Command {
	t.Helper()
	cmd, ok := sim.Last(bridge.CommandLoadContent)
	require.True(t, ok, "no LOAD_CONTENT sent")
	return cmd
}

// ready acknowledges the latest load and lets the restore delay pass.
func ready(t *testing.T, f *fixture, c *Controller, sim *bridge.Simulator) {
	t.Helper()
	c.HandleEvent(bridge.Event{Type: bridge.EventReady, LoadID: lastLoad(t, sim).LoadID})
	barrier(t, c)
	f.clock.Advance(f.opts.RestoreSeekDelay)
	barrier(t, c)
}
