package events

import (
	"sync"
	"time"
)

// Stage names a pipeline step reported to listeners.
type Stage string

const (
	StageStarted      Stage = "started"
	StageGenerated    Stage = "generated"
	StageParsed       Stage = "parsed"
	StageMaterialized Stage = "materialized"
	StageArchived     Stage = "archived"
	StageSucceeded    Stage = "succeeded"
	StageFailed       Stage = "failed"
)

type Event struct {
	JobID    string    `json:"job_id"`
	SchemaID string    `json:"schema_id,omitempty"`
	Stage    Stage     `json:"stage"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Hub fans events out to subscribers. A subscriber that does not keep up
// loses events instead of blocking the pipeline.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of future events and a function that
// unsubscribes and closes the channel. The function is safe to call twice.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
