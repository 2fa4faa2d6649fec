package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types pushed to connected clients.
const (
	EventConnected           = "connected"
	EventSubscriptionUpdated = "subscription.updated"
	EventPing                = "ping"
	EventPong                = "pong"
)

// Event is the envelope for every message the hub sends.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewEvent(eventType string, data interface{}) *Event {
	return &Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type targetedEvent struct {
	userID string
	event  *Event
}

// Hub fans subscription updates out to the websocket connections of the
// affected user. A user may hold several connections (multiple
// devices); each gets every event.
type Hub struct {
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *targetedEvent

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *targetedEvent, 256),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// BroadcastSubscriptionUpdated pushes the new subscription state to the
// user's connections. Non-blocking: if the hub's queue is full the
// event is dropped, clients re-sync over HTTP.
func (h *Hub) BroadcastSubscriptionUpdated(userID string, payload map[string]interface{}) {
	select {
	case h.broadcast <- &targetedEvent{userID: userID, event: NewEvent(EventSubscriptionUpdated, payload)}:
	default:
		h.logger.Warn("event queue full, update dropped", zap.String("user_id", userID))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID),
		zap.Int("total", h.totalClients()),
	)

	client.Send(NewEvent(EventConnected, map[string]interface{}{
		"user_id": client.userID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}

	h.logger.Info("websocket client disconnected",
		zap.String("user_id", client.userID),
		zap.Int("total", h.totalClients()),
	)
}

// deliver enqueues the event on every connection of the target user. A
// client whose buffer is full is dropped here, inline: deliver runs on
// the hub goroutine, so it must never wait on the unregister channel.
func (h *Hub) deliver(msg *targetedEvent) {
	data, err := msg.event.ToJSON()
	if err != nil {
		h.logger.Warn("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[msg.userID]
	for client := range clients {
		if !client.trySend(data) {
			delete(clients, client)
			client.Close()
			h.logger.Warn("slow websocket client dropped", zap.String("user_id", msg.userID))
		}
	}
	if len(clients) == 0 {
		delete(h.clients, msg.userID)
	}
}

// ConnectedClients reports the number of open connections for a user.
func (h *Hub) ConnectedClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
