package services

import (
	"sync"

	core "tabpool-backend/core/payment_job"
)

// EventLog keeps the most recent pool events and fans them out to subscribers.
type EventLog struct {
	mu     sync.Mutex
	events []core.Event
	max    int
	subs   map[int]chan core.Event
	nextID int
}

// NewEventLog creates a log retaining up to max events.
func NewEventLog(max int) *EventLog {
	if max <= 0 {
		max = 200
	}
	return &EventLog{max: max, subs: make(map[int]chan core.Event)}
}

// Subscribe returns a channel receiving events published from now on and a
// cancel func that closes it. Events are dropped for subscribers whose
// buffer is full.
func (l *EventLog) Subscribe(buffer int) (<-chan core.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan core.Event, buffer)
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// Publish records an event and forwards it to subscribers.
func (l *EventLog) Publish(evt core.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, evt)
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
	for _, ch := range l.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Recent returns up to n events, newest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]core.Event, 0, n)
	for i := len(l.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.events[i])
	}
	return out
}
