package bridge

import (
	"context"
	"sync"
)

const defaultOutboxSize = 256

// Outbox is a Surface that queues commands while no transport is attached
// and replays them in order on Attach. When the queue is full the oldest
// command is dropped.
type Outbox struct {
	mu      sync.Mutex
	target  Surface
	pending []Command
	size    int
}

func NewOutbox() *Outbox {
	return &Outbox{size: defaultOutboxSize}
}

func (o *Outbox) Send(ctx context.Context, cmd Command) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.target != nil {
		return o.target.Send(ctx, cmd)
	}
	if len(o.pending) >= o.size {
		o.pending = o.pending[1:]
	}
	o.pending = append(o.pending, cmd)
	return nil
}

// Attach routes future commands to s after replaying anything queued. If a
// replayed send fails, the unsent tail stays queued and s is not attached.
func (o *Outbox) Attach(ctx context.Context, s Surface) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.pending) > 0 {
		if err := s.Send(ctx, o.pending[0]); err != nil {
			return err
		}
		o.pending = o.pending[1:]
	}
	o.target = s
	return nil
}

// Detach stops routing to s. It is a no-op if another surface has since
// been attached.
func (o *Outbox) Detach(s Surface) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.target == s {
		o.target = nil
	}
}

// Pending returns the number of queued commands.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
