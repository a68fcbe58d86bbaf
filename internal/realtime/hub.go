// Package realtime pushes live notices to connected browsers over WebSocket.
// Each connection is bound to the authenticated user and only receives that
// user's events.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medbook/booking-api/internal/model"
)

const sendBuffer = 64

// Message is the frame written to clients.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client is one live connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte
}

func NewClient(userID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks connected clients by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uuid.UUID]map[*Client]struct{}), now: time.Now}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.Send)
}

// SendToUser queues a message on every connection of userID and returns how
// many connections accepted it. Clients with a full buffer are skipped.
func (h *Hub) SendToUser(userID uuid.UUID, msgType string, payload interface{}) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	frame, err := json.Marshal(Message{Type: msgType, Timestamp: h.now(), Data: data})
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.clients[userID] {
		select {
		case c.Send <- frame:
			sent++
		default:
			log.Warn().Str("client_id", c.ID).Msg("websocket client buffer full, dropping message")
		}
	}
	return sent, nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Sink adapts the hub to the notification service.
type Sink struct {
	hub *Hub
}

func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

func (s *Sink) Name() string { return "websocket" }

// Deliver pushes the cancellation to the affected patient. A patient who is
// offline simply misses the live notice.
func (s *Sink) Deliver(ctx context.Context, event model.AppointmentCancelledEvent) error {
	_, err := s.hub.SendToUser(event.PatientID, model.EventAppointmentCancelled, event)
	return err
}
