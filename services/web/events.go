package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const eventWriteTimeout = 5 * time.Second

// HandleStatusEvents streams the session's status snapshots over a
// websocket: the current one on connect, then one per transition. The
// client never sends anything; the stream ends when it disconnects.
func (s *Service) HandleStatusEvents(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	sess, ok := s.pageSession(w, r, false)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		slog.Warn("websocket upgrade failed", "sessionId", sess.ID, "requestId", rid, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	updates, cancel := sess.Form.Subscribe()
	defer cancel()

	// CloseRead discards client frames and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	if err := writeEvent(ctx, conn, sess.Form.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-updates:
			if !open {
				return
			}
			if err := writeEvent(ctx, conn, snap); err != nil {
				slog.Debug("status stream closed", "sessionId", sess.ID, "requestId", rid, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
