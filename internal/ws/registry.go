package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"chessmatch/internal/model"
)

// Registry tracks live connections by connection id and by user. One
// connection per user session: a newer connection for the same user
// supersedes the user index entry but not the older connection itself.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
	users map[model.UserID]*Client
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Client),
		users: make(map[model.UserID]*Client),
	}
}

// Add registers a connection
func (r *Registry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[client.ID] = client
	r.users[client.UserID] = client
}

// Remove drops a connection; the user index is cleared only if this
// connection is still the user's current one
func (r *Registry) Remove(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, client.ID)
	if r.users[client.UserID] == client {
		delete(r.users, client.UserID)
	}
}

// Get returns the client for a connection id
func (r *Registry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.conns[connID]
	return client, ok
}

// GetByUser returns the user's current connection
func (r *Registry) GetByUser(userID model.UserID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.users[userID]
	return client, ok
}

// Notifier delivers events to connections and topics; it satisfies the
// notification interfaces of the session manager and lobby coordinator
type Notifier struct {
	registry *Registry
	hubs     *HubManager
	logger   *slog.Logger
}

// NewNotifier creates a Notifier over the given registry and hubs
func NewNotifier(registry *Registry, hubs *HubManager, logger *slog.Logger) *Notifier {
	return &Notifier{
		registry: registry,
		hubs:     hubs,
		logger:   logger,
	}
}

// NotifyConn sends an event to a single connection
func (n *Notifier) NotifyConn(connID string, event model.Event) {
	client, ok := n.registry.Get(connID)
	if !ok {
		return
	}
	if !client.trySend(marshalEvent(event, n.logger)) {
		n.logger.Warn("event dropped - client buffer full",
			slog.String("conn_id", connID),
			slog.String("event", string(event.Type)))
	}
}

// NotifyUser sends an event to a user's current connection
func (n *Notifier) NotifyUser(userID model.UserID, event model.Event) {
	client, ok := n.registry.GetByUser(userID)
	if !ok {
		return
	}
	n.NotifyConn(client.ID, event)
}

// NotifyGame broadcasts an event to a game's subscribers
func (n *Notifier) NotifyGame(gameID model.GameID, event model.Event) {
	hub := n.hubs.GetHub(GameTopic(gameID))
	if hub == nil {
		return
	}
	hub.Broadcast(marshalEvent(event, n.logger))
}

// CloseGameTopic shuts down a finished game's broadcast topic
func (n *Notifier) CloseGameTopic(gameID model.GameID) {
	n.hubs.RemoveHub(GameTopic(gameID))
}

// NotifyLobby broadcasts an event to lobby observers
func (n *Notifier) NotifyLobby(event model.Event) {
	n.hubs.GetOrCreateHub(TopicLobby).Broadcast(marshalEvent(event, n.logger))
}

func marshalEvent(event model.Event, logger *slog.Logger) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal event", slog.String("event", string(event.Type)))
		return []byte(`{"type":"error","payload":{"code":"INTERNAL_ERROR","message":"internal error"}}`)
	}
	return data
}
