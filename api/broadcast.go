package api

import (
	"sync"

	"github.com/google/uuid"
)

// PublishEvent is the per-publish notification fanned out to stream
// subscribers.
type PublishEvent struct {
	Sequence    uint32 `json:"sequence"`
	SampleCount int    `json:"sample_count"`
}

// Broadcaster fans publish events out to SSE subscribers. Notify never
// blocks: a subscriber whose buffer is full misses events rather than
// stalling the decode goroutine.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]chan PublishEvent
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]chan PublishEvent)}
}

// Subscribe registers a new subscriber and returns its ID and event channel.
func (b *Broadcaster) Subscribe() (string, <-chan PublishEvent) {
	id := uuid.New().String()
	ch := make(chan PublishEvent, 8)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Notify delivers an event to every subscriber with buffer room.
func (b *Broadcaster) Notify(sequence uint32, sampleCount int) {
	ev := PublishEvent{Sequence: sequence, SampleCount: sampleCount}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is lagging; skip rather than block
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
