// Package events fans live fleet activity out to any number of subscribers,
// typically SSE connections held open by the web UI.
package events

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/EyasDmour/vehicle-tracker/internal/monitoring"
)

// Topics published by the server.
const (
	TopicPosition  = "position"
	TopicIncident  = "incident"
	TopicVehicle   = "vehicle"
	TopicPlayback  = "playback"
	TopicDispatch  = "dispatch"
	TopicHeartbeat = "heartbeat"
)

// Event is one broadcast message. Payload must be JSON-marshalable.
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Hub is a broadcast multiplexer. Publish never blocks: a subscriber that
// falls behind its channel buffer misses events rather than stalling the
// publisher.
type Hub struct {
	subscriberMu sync.Mutex
	subscribers  map[string]chan Event
	closing      bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan Event),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a new channel for receiving events. The channel ID is
// used to identify the unique channel when unsubscribing.
func (h *Hub) Subscribe() (string, chan Event) {
	id := randomID()
	ch := make(chan Event, 32)
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the hub.
func (h *Hub) Unsubscribe(id string) {
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Publish broadcasts an event to every subscriber without blocking.
func (h *Hub) Publish(topic string, payload any) {
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()
	if h.closing {
		return
	}
	event := Event{Topic: topic, Payload: payload}
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// if the channel is full skip so as not to block the publisher
		}
	}
}

// SubscriberCount reports how many channels are currently subscribed.
func (h *Hub) SubscriberCount() int {
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()
	return len(h.subscribers)
}

// Close closes all subscribed channels. Publishes after Close are dropped.
func (h *Hub) Close() {
	h.subscriberMu.Lock()
	defer h.subscriberMu.Unlock()
	h.closing = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// encode renders an event as a JSON line for the SSE stream.
func encode(e Event) ([]byte, bool) {
	b, err := json.Marshal(e)
	if err != nil {
		monitoring.Logf("failed to marshal event on topic %s: %v", e.Topic, err)
		return nil, false
	}
	return b, true
}
