// Package realtime pushes meeting events to WebSocket subscribers.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
)

// Hub maintains meeting_id -> set of connections and broadcasts events.
// With a broker each event goes through Redis so every instance delivers it once.
type Hub struct {
	meetings map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	broker   Broker
}

// Broker fans events out across instances.
type Broker interface {
	PublishMeetingEvent(meetingID uuid.UUID, event string, payload []byte) error
	SubscribeMeeting(meetingID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. broker may be nil for a single instance.
func NewHub(logger *zap.Logger, broker Broker) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		meetings: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		broker:   broker,
	}
}

// Register adds a client to a meeting room, subscribing to the broker on the first one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.meetings[c.MeetingID] == nil {
		h.meetings[c.MeetingID] = make(map[string]*Client)
		if h.broker != nil {
			id := c.MeetingID
			cancel, err := h.broker.SubscribeMeeting(id, func(event string, payload []byte) {
				h.Broadcast(id, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("meeting subscribe failed", zap.String("meeting_id", id.String()), zap.Error(err))
			} else {
				h.subs[id] = cancel
			}
		}
	}
	h.meetings[c.MeetingID][c.ID] = c
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("meeting_id", c.MeetingID.String()))
}

// Unregister removes a client. The broker subscription ends with the last client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.meetings[c.MeetingID]
	if !ok {
		return
	}
	if _, ok := m[c.ID]; !ok {
		return
	}
	delete(m, c.ID)
	close(c.send)
	if len(m) == 0 {
		delete(h.meetings, c.MeetingID)
		if cancel, ok := h.subs[c.MeetingID]; ok {
			cancel()
			delete(h.subs, c.MeetingID)
		}
	}
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.String("meeting_id", c.MeetingID.String()))
}

// Broadcast sends an event to this instance's clients of a meeting.
func (h *Hub) Broadcast(meetingID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.meetings[meetingID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping event", zap.String("client_id", c.ID))
		}
	}
}

// PublishMeetingEvent delivers an event to every subscriber of the meeting on all instances.
func (h *Hub) PublishMeetingEvent(meetingID uuid.UUID, event string, payload interface{}) {
	if h.broker == nil {
		h.Broadcast(meetingID, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.broker.PublishMeetingEvent(meetingID, event, data); err != nil {
		h.logger.Warn("publish event failed, delivering locally", zap.String("event", event), zap.Error(err))
		h.Broadcast(meetingID, event, json.RawMessage(data))
	}
}

// Subscribers returns the number of local clients watching a meeting.
func (h *Hub) Subscribers(meetingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.meetings[meetingID])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(payload)
}
