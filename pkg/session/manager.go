package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/lectern/pkg/bridge"
	"github.com/shishobooks/lectern/pkg/settings"
)

// Session is an open controller plus the outbox its surface attaches to.
type Session struct {
	*Controller
	Outbox *bridge.Outbox
}

// Manager owns the open sessions. At most one session is open per book, so
// every durable write for a book goes through a single controller.
type Manager struct {
	store    Store
	loader   Loader
	settings *settings.Store
	opts     Options

	mu       sync.Mutex
	sessions map[string]*Session
	byBook   map[int]string
}

func NewManager(store Store, loader Loader, settingsStore *settings.Store, opts Options) *Manager {
	return &Manager{
		store:    store,
		loader:   loader,
		settings: settingsStore,
		opts:     opts.withDefaults(),
		sessions: map[string]*Session{},
		byBook:   map[int]string{},
	}
}

// Open loads bookID in a new session, or returns the session that already
// has it open. A session whose load fails is closed and forgotten.
func (m *Manager) Open(ctx context.Context, bookID int) (*Session, bool, error) {
	m.mu.Lock()
	if id, ok := m.byBook[bookID]; ok {
		s := m.sessions[id]
		m.mu.Unlock()
		if err := s.Load(ctx); err != nil {
			return nil, false, err
		}
		return s, false, nil
	}

	id, err := uuid.NewRandom()
	if err != nil {
		m.mu.Unlock()
		return nil, false, errors.WithStack(err)
	}
	outbox := bridge.NewOutbox()
	s := &Session{
		Controller: New(id.String(), bookID, m.store, m.loader, outbox, m.settings, m.opts),
		Outbox:     outbox,
	}
	m.sessions[s.ID()] = s
	m.byBook[bookID] = s.ID()
	m.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		m.remove(s)
		if cerr := s.Close(context.Background()); cerr != nil {
			logger.FromContext(ctx).Err(cerr).Warn("failed to close failed session")
		}
		return nil, false, err
	}
	return s, true, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close closes the session with the final flush and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrClosed
	}
	m.remove(s)
	return s.Close(ctx)
}

// Shutdown closes every open session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.sessions = map[string]*Session{}
	m.byBook = map[int]string{}
	m.mu.Unlock()

	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			logger.FromContext(ctx).Err(err).Error("failed to close session", logger.Data{"session_id": s.ID()})
		}
	}
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ID()] == s {
		delete(m.sessions, s.ID())
	}
	if m.byBook[s.BookID()] == s.ID() {
		delete(m.byBook, s.BookID())
	}
}
