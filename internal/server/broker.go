package server

import (
	"encoding/json"
	"sync"
)

// RoomEvent is the payload published to room subscribers. Clients re-fetch
// /state and /feed when one arrives; the event itself carries only enough to
// decide whether a refresh is needed.
type RoomEvent struct {
	Type       string `json:"type"`
	AuthorName string `json:"authorName,omitempty"`
	Shared     bool   `json:"shared,omitempty"`
	Day        int    `json:"day,omitempty"`
}

const (
	eventParticipantJoined = "participant_joined"
	eventPactStarted       = "pact_started"
	eventEntryAdded        = "entry_added"
	eventPactFinished      = "pact_finished"
)

// Broker is an in-process pub/sub for room events, keyed by room code.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the room.
func (b *Broker) Subscribe(code string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[code] == nil {
		b.subs[code] = make(map[chan []byte]struct{})
	}
	b.subs[code][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the room's subscribers.
func (b *Broker) Unsubscribe(code string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[code], ch)
	if len(b.subs[code]) == 0 {
		delete(b.subs, code)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the room.
func (b *Broker) Publish(code string, event RoomEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[code] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
