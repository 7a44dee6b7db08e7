package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// Reconnect hint sent to EventSource clients, in milliseconds.
	sseRetryMillis = 2000

	defaultKeepAlive = 30 * time.Second
)

// SSEHandler streams hub events to a client over Server-Sent Events. Each
// transition arrives as a named event whose data is the JSON payload, so
// kiosks and dashboards can listen per event type.
type SSEHandler struct {
	hub       *Hub
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewSSEHandler creates a new SSE handler. keepAlive is the comment ping
// interval; zero selects the default.
func NewSSEHandler(hub *Hub, keepAlive time.Duration, logger *slog.Logger) *SSEHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &SSEHandler{
		hub:       hub,
		keepAlive: keepAlive,
		logger:    logger.With("component", "sse"),
	}
}

// ServeHTTP implements http.Handler for the event stream endpoint.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub.ID)

	// Establish the stream and tell the client how fast to reconnect.
	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryMillis)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()

		case event, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(event.Payload)
			if err != nil {
				h.logger.Error("failed to encode event payload",
					"event_type", event.Type,
					"ticket_id", event.TicketID,
					"error", err,
				)
				continue
			}
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
