// Package stream pushes quote updates to connected WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/marginwatch/internal/domain"
)

const (
	writeTimeout     = 5 * time.Second
	clientBufferSize = 16
)

// Hub fans quote updates out to every connected client. Slow clients are
// disconnected rather than allowed to backpressure the refresh cycle.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty streaming hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		log:     log.With().Str("component", "stream").Logger(),
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastQuote sends one quote update to all connected clients
func (h *Hub) BroadcastQuote(quote domain.Quote) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "quote",
		"quote": quote,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal quote update")
		return
	}
	h.broadcast(payload)
}

// BroadcastCycle announces a completed refresh cycle
func (h *Hub) BroadcastCycle(refreshed, failed int, duration time.Duration) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":        "cycle",
		"refreshed":   refreshed,
		"failed":      failed,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal cycle update")
		return
	}
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
			// Buffer full, the writer goroutine will drop this client
			close(ch)
			delete(h.clients, ch)
		}
	}
}

// HandleWS upgrades the connection and streams updates until the client
// disconnects.
// GET /ws/quotes
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin enforcement happens at the CORS layer
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}

	ch := make(chan []byte, clientBufferSize)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", count).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[ch]; ok {
			close(ch)
			delete(h.clients, ch)
		}
		count := len(h.clients)
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		h.log.Info().Int("clients", count).Msg("WebSocket client disconnected")
	}()

	ctx := r.Context()

	// Reader goroutine only watches for close; clients do not send commands
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
