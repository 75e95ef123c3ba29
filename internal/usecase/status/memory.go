package status

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memorySubscriber struct {
	ch   chan Event
	done chan struct{}
}

// MemoryFeed is an in-process Feed for single-node deployments and tests.
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID]map[int]*memorySubscriber
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		subs: make(map[uuid.UUID]map[int]*memorySubscriber),
	}
}

// Publish delivers the event to every subscriber of its meeting. Slow
// subscribers block the publisher rather than losing events, matching the
// at-least-once contract; a cancelled subscription releases any publisher
// blocked on its full buffer.
func (f *MemoryFeed) Publish(ctx context.Context, event Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs[event.MeetingID] {
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a listener for one meeting's events.
func (f *MemoryFeed) Subscribe(ctx context.Context, meetingID uuid.UUID) (<-chan Event, func(), error) {
	sub := &memorySubscriber{
		ch:   make(chan Event, 8),
		done: make(chan struct{}),
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[meetingID] == nil {
		f.subs[meetingID] = make(map[int]*memorySubscriber)
	}
	f.subs[meetingID][id] = sub
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// Closing done first unblocks publishers stuck on a full
			// buffer, so the write lock below cannot deadlock. Taking
			// the write lock before closing the channel guarantees no
			// in-flight publisher still holds this subscriber.
			close(sub.done)
			f.mu.Lock()
			delete(f.subs[meetingID], id)
			if len(f.subs[meetingID]) == 0 {
				delete(f.subs, meetingID)
			}
			f.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel, nil
}
