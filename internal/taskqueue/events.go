package taskqueue

import (
	"sync"
	"time"
)

// EventType classifies queue lifecycle events.
type EventType string

const (
	EventTaskAdded      EventType = "task_added"
	EventTaskStarted    EventType = "task_started"
	EventTaskCompleted  EventType = "task_completed"
	EventTaskFailed     EventType = "task_failed"
	EventTaskCancelled  EventType = "task_cancelled"
	EventQueueCleared   EventType = "queue_cleared"
	EventCeilingChanged EventType = "ceiling_changed"
)

// Event is a sequenced lifecycle notification.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Queue     string    `json:"queue"`
	TaskID    string    `json:"taskId,omitempty"`
	At        time.Time `json:"timestamp"`
	Pending   int       `json:"queuedTasks,omitempty"`
	Active    int       `json:"activeTasks,omitempty"`
	WaitMS    int64     `json:"waitTimeMs,omitempty"`
	RunMS     int64     `json:"processingTimeMs,omitempty"`
	Processed int       `json:"totalProcessed,omitempty"`
	Count     int       `json:"count,omitempty"`
	Previous  int       `json:"previous,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// eventLog keeps the most recent events for incremental reads and fans them
// out to subscribers.
type eventLog struct {
	mu          sync.Mutex
	nextSeq     uint64
	maxEvents   int
	events      []Event
	subscribers map[int]chan Event
	nextSubID   int
	closed      bool
}

func newEventLog(maxEvents int) *eventLog {
	return &eventLog{
		maxEvents:   maxEvents,
		events:      make([]Event, 0, maxEvents),
		subscribers: make(map[int]chan Event),
	}
}

func (l *eventLog) publish(event Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	event.Seq = l.nextSeq
	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		trim := len(l.events) - l.maxEvents
		l.events = append([]Event(nil), l.events[trim:]...)
	}
	for _, ch := range l.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

func (l *eventLog) since(seq uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.events))
	for _, event := range l.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

func (l *eventLog) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	id := l.nextSubID
	l.nextSubID++
	l.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if sub, ok := l.subscribers[id]; ok {
				delete(l.subscribers, id)
				close(sub)
			}
		})
	}
}

func (l *eventLog) closeSubscribers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, ch := range l.subscribers {
		delete(l.subscribers, id)
		close(ch)
	}
}

func (q *Queue) publishLocked(event Event) Event {
	event.Queue = q.name
	if event.At.IsZero() {
		event.At = q.now().UTC()
	}
	return q.events.publish(event)
}

// Subscribe returns a channel receiving every subsequent event and a function
// that unsubscribes and closes it. Events are dropped for a subscriber whose
// buffer is full so dispatch never waits on a slow reader.
func (q *Queue) Subscribe(buffer int) (<-chan Event, func()) {
	return q.events.subscribe(buffer)
}

// EventsSince returns retained events with a sequence number above seq.
func (q *Queue) EventsSince(seq uint64) []Event {
	return q.events.since(seq)
}
