package realtime

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmeet/backend/internal/models"
)

type loopBroker struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]func(string, []byte)
	fail     bool
	cancels  int
}

func (b *loopBroker) PublishMeetingEvent(id uuid.UUID, event string, payload []byte) error {
	if b.fail {
		return errors.New("broker down")
	}
	b.mu.Lock()
	h := b.handlers[id]
	b.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (b *loopBroker) SubscribeMeeting(id uuid.UUID, handler func(string, []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		b.cancels++
	}, nil
}

func TestHub_PublishLocal(t *testing.T) {
	hub := NewHub(nil, nil)
	meeting := uuid.New()
	a := NewClient(hub, nil, meeting, uuid.New(), models.RoleStudent)
	other := NewClient(hub, nil, uuid.New(), uuid.New(), models.RoleStudent)
	hub.Register(a)
	hub.Register(other)

	hub.PublishMeetingEvent(meeting, "meeting.rescheduled", map[string]string{"start_time": "9:00 AM"})

	require.Len(t, a.send, 1)
	msg := <-a.Messages()
	assert.Equal(t, "meeting.rescheduled", msg.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "9:00 AM", data["start_time"])
	assert.Empty(t, other.send)
}

func TestHub_PublishThroughBroker(t *testing.T) {
	broker := &loopBroker{handlers: map[uuid.UUID]func(string, []byte){}}
	hub := NewHub(nil, broker)
	meeting := uuid.New()
	a := NewClient(hub, nil, meeting, uuid.New(), models.RoleAdmin)
	b := NewClient(hub, nil, meeting, uuid.New(), models.RoleStudent)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Subscribers(meeting))

	hub.PublishMeetingEvent(meeting, "meeting.cancelled", map[string]string{"id": meeting.String()})
	assert.Len(t, a.send, 1, "delivered once through the broker")
	assert.Len(t, b.send, 1)

	broker.fail = true
	hub.PublishMeetingEvent(meeting, "meeting.cancelled", nil)
	assert.Len(t, a.send, 2, "falls back to local delivery")

	hub.Unregister(a)
	hub.Unregister(b)
	assert.Zero(t, hub.Subscribers(meeting))
	assert.Equal(t, 1, broker.cancels)

	hub.Unregister(a)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://app.test"})
	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://app.test")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(req))
	assert.True(t, originChecker([]string{"*"})(req))
}
