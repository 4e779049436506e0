package events

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// ServeWebSocket is an additional push transport over the same bus SSE
// consumes, kept from the teacher's browser surface: a client that already
// speaks the hub's WebSocket protocol can keep using it without the SSE
// contract changing underneath it.
func (b *Bus) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case evt := <-sub.C():
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}
