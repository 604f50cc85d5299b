package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mgoltzsche/wakelauncher/internal/event"
)

type eventWriter struct {
	Websocket *websocket.Conn
	Timeout   time.Duration
}

// Write sends the event as a JSON text message.
func (w *eventWriter) Write(ctx context.Context, evt event.Event) error {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	err := wsjson.Write(ctx, w.Websocket, evt)
	if err != nil {
		return fmt.Errorf("write %s event to websocket: %w", evt.Type, err)
	}

	return nil
}
