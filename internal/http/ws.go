package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skhoolar/skhoolar/internal/chat"
	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/internal/redact"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// maxWSMessageSize is the maximum allowed WebSocket message size (512KB).
// Gorilla/websocket closes the connection with ErrReadLimit if exceeded.
const maxWSMessageSize = 512 * 1024

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// handleWS upgrades GET /ws/chat. Each connection owns one chat.Session,
// so the selected node and the conversation history persist across frames.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		id:      uuid.NewString(),
		conn:    conn,
		server:  s,
		key:     clientKey(r),
		session: chat.NewSession(),
		send:    make(chan []byte, 16),
	}
	slog.Info("websocket connected", "client", c.id, "request_id", RequestID(r.Context()))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c.run(ctx)
	slog.Info("websocket disconnected", "client", c.id)
}

// wsClient is a single /ws/chat connection.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	server  *Server
	key     string
	session *chat.Session
	send    chan []byte
}

func (c *wsClient) run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump(ctx)
	close(c.send)
	<-done
}

// readPump reads frames and answers them in order. A slow provider call
// holds up only this connection.
func (c *wsClient) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "client", c.id, "error", err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		c.reply(c.handleFrame(ctx, data))
		// Provider calls can outlast the read deadline.
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

// writePump writes frames and pings to the WebSocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) reply(frame protocol.ChatReplyFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("marshal reply failed", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping reply", "client", c.id)
	}
}

// handleFrame answers one ChatFrame.
func (c *wsClient) handleFrame(ctx context.Context, data []byte) protocol.ChatReplyFrame {
	var frame protocol.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return protocol.ChatReplyFrame{Code: protocol.ErrInvalidRequest, Error: "malformed frame: " + err.Error()}
	}
	out := protocol.ChatReplyFrame{ID: frame.ID}

	if !c.server.limiter.Allow(c.key) {
		out.Code, out.Error = protocol.ErrResourceExhausted, "Rate limit exceeded"
		return out
	}

	if frame.Reset {
		c.session.Reset()
	}
	if frame.ContextNode != nil {
		c.session.Select(frame.ContextNode)
	}
	if frame.Message == "" {
		// Selection-only frame.
		return out
	}

	cred, _, err := requestCredential(frame.APIKey, frame.Provider, frame.Endpoint, frame.Model)
	if err != nil {
		out.Code, out.Error = validationCode(err), err.Error()
		return out
	}

	reply, err := c.session.Ask(ctx, c.server.chat, cred, frame.Message)
	if err != nil {
		if _, ok := asValidation(err); ok {
			out.Code, out.Error = validationCode(err), err.Error()
			return out
		}
		var ue *providers.UpstreamError
		if !errors.As(err, &ue) {
			slog.Warn("websocket chat failed", "client", c.id, "error", redact.Credentials(err.Error()))
		}
	}
	out.Reply = reply
	return out
}
