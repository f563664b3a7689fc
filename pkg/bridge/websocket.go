package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/net/websocket"
)

const defaultWriteTimeout = 10 * time.Second

// WebsocketSurface sends commands as JSON text frames.
type WebsocketSurface struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWebsocketSurface(conn *websocket.Conn) *WebsocketSurface {
	return &WebsocketSurface{conn: conn}
}

func (w *WebsocketSurface) Send(ctx context.Context, cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(websocket.Message.Send(w.conn, string(data)))
}

// ReadEvents decodes frames from conn and hands each event to fn until the
// connection closes or ctx is done. Undecodable frames are logged and
// skipped. A clean close returns nil.
func ReadEvents(ctx context.Context, conn *websocket.Conn, fn func(Event)) error {
	log := logger.FromContext(ctx)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame string
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return errors.WithStack(err)
		}

		ev, err := DecodeEvent([]byte(frame))
		if err != nil {
			log.Err(err).Warn("dropping bridge frame")
			continue
		}
		fn(ev)
	}
}
