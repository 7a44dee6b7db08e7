package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorrc/front-desk-backend/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only ever receive; anything bigger than a close frame is noise.
	maxMessageSize = 512
)

// WSConfig holds configuration for the WebSocket endpoint.
type WSConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int

	// AllowAllOrigins disables the origin check (development only).
	AllowAllOrigins bool
}

// WSHandler upgrades dashboard connections and relays hub events to them as
// JSON frames. The stream is one-way: incoming frames are drained solely to
// detect disconnects.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(hub *Hub, cfg WSConfig, logger *slog.Logger) *WSHandler {
	h := &WSHandler{
		hub:    hub,
		logger: logger.With("component", "websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.makeOriginChecker(cfg),
	}
	return h
}

// makeOriginChecker creates an origin checking function based on configuration.
func (h *WSHandler) makeOriginChecker(cfg WSConfig) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if cfg.AllowAllOrigins {
			return true
		}

		// No origin header: same-origin request or non-browser client.
		if origin == "" {
			return true
		}

		parsed, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}

		host := parsed.Host
		for _, allowed := range cfg.AllowedOrigins {
			// Support wildcard subdomains like "*.example.com".
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:]
				if strings.HasSuffix(host, suffix) || host == allowed[2:] {
					return true
				}
			} else if host == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}

// ServeHTTP handles WebSocket connection requests.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	sub := h.hub.Subscribe()

	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// writePump relays hub events to the connection and keeps it alive with
// pings. It runs in its own goroutine per connection.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case event, open := <-sub.Events():
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !open {
				// The hub closed the channel. Send close message.
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := h.writeJSON(conn, event); err != nil {
				h.logger.Debug("websocket write failed", "subscriber_id", sub.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains incoming frames until the peer goes away, then prunes the
// subscriber. It runs in its own goroutine per connection.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub.ID)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "subscriber_id", sub.ID, "error", err)
			}
			return
		}
	}
}

func (h *WSHandler) writeJSON(conn *websocket.Conn, event domain.Event) error {
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
