package bridge

import (
	"context"
	"sync"
)

// Simulator is an in-memory Surface that records commands and applies
// page-turn math to a Viewport. Chapter-change events produced by a turn
// are delivered to Emit, if set. It backs tests and the debug tooling.
type Simulator struct {
	mu       sync.Mutex
	commands []Command
	viewport Viewport
	style    *Style

	Emit func(Event)
	// Err, when set, is returned by every Send after recording the command.
	Err error
}

func NewSimulator(v Viewport) *Simulator {
	return &Simulator{viewport: v}
}

func (s *Simulator) Send(_ context.Context, cmd Command) error {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)

	var emit *Event
	switch cmd.Type {
	case CommandLoadContent:
		s.viewport.ScrollX, s.viewport.ScrollY = 0, 0
	case CommandSetStyle:
		s.style = cmd.Style
		if cmd.Style != nil && cmd.Style.Flow != "" {
			s.viewport.Flow = cmd.Style.Flow
		}
	case CommandTurnPage:
		res := s.viewport.Turn(cmd.Direction)
		s.viewport.ScrollX, s.viewport.ScrollY = res.ScrollX, res.ScrollY
		if res.Chapter != "" {
			emit = &Event{Type: res.Chapter}
		}
	case CommandScrollToPercentage:
		if cmd.Percentage != nil {
			s.scrollTo(*cmd.Percentage)
		}
	}
	fn, err := s.Emit, s.Err
	s.mu.Unlock()

	if emit != nil && fn != nil {
		fn(*emit)
	}
	return err
}

func (s *Simulator) scrollTo(pct float64) {
	f := min(max(pct, 0), 100) / 100
	if s.viewport.Flow == FlowScrolled {
		s.viewport.ScrollY = f * max(s.viewport.ScrollHeight-s.viewport.Height, 0)
		return
	}
	s.viewport.ScrollX = f * max(s.viewport.ScrollWidth-s.viewport.Width, 0)
}

// Commands returns a copy of every command received so far.
func (s *Simulator) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}

// CommandsOf returns the received commands of type t.
func (s *Simulator) CommandsOf(t CommandType) []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Command
	for _, c := range s.commands {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the most recent command of type t.
func (s *Simulator) Last(t CommandType) (Command, bool) {
	cmds := s.CommandsOf(t)
	if len(cmds) == 0 {
		return Command{}, false
	}
	return cmds[len(cmds)-1], true
}

func (s *Simulator) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *Simulator) Style() *Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}
