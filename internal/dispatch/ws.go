package dispatch

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/ride-hail/internal/observability"
)

// Envelope is the wire format for every server->client event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Session is one connected participant. The write mutex keeps concurrent
// broadcasts from interleaving frames on the shared connection.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(Envelope{Event: event, Data: payload})
}

// Hub holds all live websocket sessions keyed by connection id.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub() *Hub { return &Hub{sessions: make(map[string]*Session)} }

// Add registers the connection and returns its transport-assigned id.
func (h *Hub) Add(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.sessions[id] = &Session{conn: conn}
	h.mu.Unlock()
	observability.WSConnections.Inc()
	return id
}

// Remove drops the session and closes the connection. Channel memberships
// are the rooms registry's problem; callers run LeaveAll alongside this.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	delete(h.sessions, connID)
	h.mu.Unlock()
	if ok {
		_ = s.conn.Close()
		observability.WSConnections.Dec()
	}
}

func (h *Hub) Send(connID, event string, payload any) error {
	h.mu.RLock()
	s, ok := h.sessions[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(event, payload)
}

var ErrNoSession = errors.New("no ws session")
