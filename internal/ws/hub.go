package ws

import (
	"fmt"
	"log/slog"
	"sync"

	"chessmatch/internal/model"
)

// TopicLobby is the broadcast group for lobby observers
const TopicLobby = "lobby"

// GameTopic returns the broadcast topic for a game's participants
func GameTopic(id model.GameID) string {
	return fmt.Sprintf("game:%s", id)
}

// Hub fans events out to the clients subscribed to one topic. Each
// interested party holds exactly one subscription per topic, so a logical
// event is delivered at most once per client.
type Hub struct {
	topic   string
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a new Hub for a topic
func NewHub(topic string, logger *slog.Logger) *Hub {
	return &Hub{
		topic:      topic,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("topic", topic)),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client subscribed",
				slog.String("conn_id", client.ID),
				slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed",
				slog.String("conn_id", client.ID),
				slog.Int("total_clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.trySend(message) {
					h.logger.Warn("message dropped - client buffer full",
						slog.String("conn_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			// Drain broadcasts already enqueued before shutdown so a
			// terminal event queued just before Close still goes out
			for {
				select {
				case message := <-h.broadcast:
					h.mu.RLock()
					for client := range h.clients {
						client.trySend(message)
					}
					h.mu.RUnlock()
				default:
					h.mu.Lock()
					for client := range h.clients {
						delete(h.clients, client)
					}
					h.mu.Unlock()
					return
				}
			}
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a message to all subscribed clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast dropped - hub buffer full")
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	close(h.done)
}

// ClientCount returns the number of subscribed clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager manages the hubs for all topics
type HubManager struct {
	hubs   map[string]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[string]*Hub),
		logger: logger.With(slog.String("component", "ws")),
	}
}

// GetOrCreateHub returns the hub for a topic, creating one if needed
func (m *HubManager) GetOrCreateHub(topic string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[topic]; ok {
		return hub
	}

	hub := NewHub(topic, m.logger)
	m.hubs[topic] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a topic, or nil if it doesn't exist
func (m *HubManager) GetHub(topic string) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[topic]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[topic]; ok {
		hub.Close()
		delete(m.hubs, topic)
	}
}

// UnregisterAll removes a client from every hub; used at connection teardown
func (m *HubManager) UnregisterAll(client *Client) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, hub := range m.hubs {
		hub.Unregister(client)
	}
}

// CloseAll shuts down every hub
func (m *HubManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, topic)
	}
}
