package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/koscakluka/voiceforms/core/events"
)

const subscriberBuffer = 64

// Hub fans dialogue events out to websocket subscribers. Slow subscribers
// miss events rather than block the controller.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan []byte]struct{})}
}

// Publish encodes the event once and queues it for every subscriber.
func (h *Hub) Publish(event events.Event) {
	data, err := json.Marshal(events.Wrap(event))
	if err != nil {
		slog.Error("Failed to encode event", "kind", event.Kind(), "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for subscriber := range h.subscribers {
		select {
		case subscriber <- data:
		default:
			slog.Warn("Dropping event for slow subscriber", "kind", event.Kind())
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) subscribe() chan []byte {
	subscriber := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[subscriber] = struct{}{}
	h.mu.Unlock()
	return subscriber
}

func (h *Hub) unsubscribe(subscriber chan []byte) {
	h.mu.Lock()
	delete(h.subscribers, subscriber)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until either side
// closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	subscriber := h.subscribe()
	defer h.unsubscribe(subscriber)

	ctx := ws.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-subscriber:
			if err := h.write(ctx, ws, data); err != nil {
				if websocket.CloseStatus(err) == -1 {
					slog.Warn("WebSocket write error", "error", err)
				}
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
