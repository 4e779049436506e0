// Package events implements the in-process fan-out broadcast used for SSE
// (and, additively, WebSocket) delivery of scan/job/metadata notifications.
package events

import (
	"sync"
)

// Event is the tagged union of everything the bus carries. Type names the
// event kind and Data holds its payload; encoded to JSON as a flat
// {"type":...,"data":...} envelope.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func ScanProgress(libraryID, jobID string, progress float64, message string) Event {
	return Event{Type: "scan_progress", Data: map[string]any{
		"library_id": libraryID, "job_id": jobID, "progress": progress, "message": message,
	}}
}

func ScanComplete(libraryID, jobID string, itemsAdded int) Event {
	return Event{Type: "scan_complete", Data: map[string]any{
		"library_id": libraryID, "job_id": jobID, "items_added": itemsAdded,
	}}
}

func JobUpdate(jobID, status string, progress float64) Event {
	return Event{Type: "job_update", Data: map[string]any{
		"job_id": jobID, "status": status, "progress": progress,
	}}
}

func Heartbeat(seq int64) Event {
	return Event{Type: "heartbeat", Data: map[string]any{"seq": seq}}
}

// dropNotice is what a lagged subscriber receives in place of the events it
// missed.
func dropNotice(dropped int) Event {
	return Event{Type: "error", Data: map[string]any{"dropped": dropped}}
}

const subscriberBuffer = 256

// Subscriber is a lossy receive channel: if the bus cannot enqueue an event
// without blocking, the subscriber is considered lagged and its next
// delivery is a single dropNotice carrying the count of events it missed.
type Subscriber struct {
	ch      chan Event
	dropped int
}

func (s *Subscriber) C() <-chan Event { return s.ch }

// Bus is the broadcast fan-out. Publish never blocks: a subscriber whose
// buffer is full has its send attempt counted as dropped rather than
// stalling the publisher.
type Bus struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
}

func NewBus() *Bus {
	return &Bus{subscribers: map[*Subscriber]struct{}{}}
}

func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, subscriberBuffer)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}

func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub.dropped > 0 {
			select {
			case sub.ch <- dropNotice(sub.dropped):
				sub.dropped = 0
			default:
				sub.dropped++
				continue
			}
		}
		select {
		case sub.ch <- evt:
		default:
			sub.dropped++
		}
	}
}
