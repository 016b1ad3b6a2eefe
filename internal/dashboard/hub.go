package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jaakkos/dao-ledger/internal/app"
)

// ErrHubBusy is returned by Publish when the broadcast queue is full.
var ErrHubBusy = errors.New("dashboard hub: broadcast queue full")

const broadcastQueue = 64

// Client is a websocket connection as seen by the hub.
type Client interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Message is the JSON frame sent to websocket clients.
type Message struct {
	Type    string       `json:"type"` // "summary" on connect, "event" afterwards
	Summary *app.Summary `json:"summary,omitempty"`
	Event   *app.Event   `json:"event,omitempty"`
}

// Hub fans committed ledger events out to connected websocket clients.
type Hub struct {
	mu        sync.Mutex
	clients   map[Client]bool
	broadcast chan []byte
	logger    *log.Logger
}

// NewHub creates a hub. Call Run to start delivering broadcasts.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		clients:   make(map[Client]bool),
		broadcast: make(chan []byte, broadcastQueue),
		logger:    logger,
	}
}

// Run delivers queued broadcasts until ctx is cancelled, then closes all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case message := <-h.broadcast:
			h.write(message)
		}
	}
}

// Register adds client after sending it greeting, so the greeting always
// precedes any broadcast.
func (h *Hub) Register(client Client, greeting []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if greeting != nil {
		if err := client.WriteMessage(websocket.TextMessage, greeting); err != nil {
			return err
		}
	}
	h.clients[client] = true
	return nil
}

// Unregister removes and closes client.
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		_ = client.Close()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues message for every client. It never blocks.
func (h *Hub) Broadcast(message []byte) error {
	select {
	case h.broadcast <- message:
		return nil
	default:
		return ErrHubBusy
	}
}

// Publish implements app.EventPublisher.
func (h *Hub) Publish(ctx context.Context, ev app.Event) error {
	data, err := json.Marshal(Message{Type: "event", Event: &ev})
	if err != nil {
		return err
	}
	return h.Broadcast(data)
}

func (h *Hub) write(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Printf("Dashboard: drop websocket client: %v", err)
			_ = client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		_ = client.Close()
		delete(h.clients, client)
	}
}
