// Package settings owns the reader's presentation settings. A Store is
// created once, loaded from disk and handed to every session that needs it;
// sessions subscribe to hear about changes.
package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/lectern/pkg/bridge"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeSepia = "sepia"
)

type Settings struct {
	Theme      string      `json:"theme" validate:"oneof=light dark sepia"`
	FontFamily string      `json:"font_family" validate:"required,max=64"`
	FontSize   int         `json:"font_size" validate:"min=8,max=72"`
	LineHeight float64     `json:"line_height" validate:"min=1,max=3"`
	Flow       bridge.Flow `json:"flow" validate:"oneof=paginated scrolled"`
}

func Defaults() Settings {
	return Settings{
		Theme:      ThemeLight,
		FontFamily: "serif",
		FontSize:   18,
		LineHeight: 1.5,
		Flow:       bridge.FlowPaginated,
	}
}

// Style is the SET_STYLE payload for these settings.
func (s Settings) Style() bridge.Style {
	return bridge.Style{
		Theme:      s.Theme,
		FontFamily: s.FontFamily,
		FontSize:   s.FontSize,
		LineHeight: s.LineHeight,
		Flow:       s.Flow,
	}
}

type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
	subs    map[int]chan Settings
	nextSub int
}

// NewStore returns a store holding defaults. Call Load to read path.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		current: Defaults(),
		subs:    map[int]chan Settings{},
	}
}

// Load replaces the current settings with the file's. A missing file keeps
// the defaults; an unreadable one is logged and also keeps them.
func (s *Store) Load(ctx context.Context) error {
	log := logger.FromContext(ctx)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}

	loaded := Defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Err(err).Warn("settings file unreadable, using defaults", logger.Data{"path": s.path})
		return nil
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update persists next and notifies subscribers.
func (s *Store) Update(ctx context.Context, next Settings) (Settings, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return Settings{}, errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return Settings{}, errors.WithStack(err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return Settings{}, errors.WithStack(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return Settings{}, errors.WithStack(err)
	}

	s.current = next
	for _, ch := range s.subs {
		publish(ch, next)
	}
	logger.FromContext(ctx).Info("settings updated", logger.Data{"theme": next.Theme, "flow": next.Flow})
	return next, nil
}

// Subscribe returns a channel that always holds the latest settings once
// they change. Slow readers only ever see the newest value. Call cancel to
// stop receiving.
func (s *Store) Subscribe() (<-chan Settings, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Settings, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func publish(ch chan Settings, v Settings) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
