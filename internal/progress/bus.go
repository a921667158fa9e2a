package progress

import (
	"sync"
	"time"

	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

const defaultQueueSize = 16

// Bus fans task events out to per-task subscribers. Each subscriber owns a
// bounded queue; when a slow subscriber's queue fills up, the oldest queued
// event is dropped to make room, so publishing never blocks task execution.
// A terminal event is always the last one published for a task, which means
// a full queue only ever holds non-terminal events at drop time: the
// terminal event itself is never lost.
//
// The bus keeps no history. A subscriber attached after an event was
// published never sees it; the task registry is the source of truth for
// current status.
type Bus struct {
	mu        sync.Mutex
	queueSize int
	nextSubID int

	seqs        map[string]int64
	subscribers map[string]map[int]chan Event
	finished    map[string]bool
}

func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		queueSize:   queueSize,
		seqs:        make(map[string]int64),
		subscribers: make(map[string]map[int]chan Event),
		finished:    make(map[string]bool),
	}
}

// Publish stamps the event with the task's next sequence number and delivers
// it to every current subscriber of the task. Events published after a
// task's terminal event are discarded.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished[event.TaskID] {
		log.Warn("dropping event for finished task %s (type=%s)", event.TaskID, event.Type)
		return event
	}

	b.seqs[event.TaskID]++
	event.Seq = b.seqs[event.TaskID]
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	for _, ch := range b.subscribers[event.TaskID] {
		b.deliver(ch, event)
	}

	if event.Terminal() {
		b.finished[event.TaskID] = true
		delete(b.seqs, event.TaskID)
		for id := range b.subscribers[event.TaskID] {
			b.closeSubscriberLocked(event.TaskID, id)
		}
	}

	return event
}

// deliver enqueues without blocking, evicting the oldest queued event when
// the subscriber is full.
func (b *Bus) deliver(ch chan Event, event Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe attaches a new subscriber to the task's future events. The
// returned channel is closed after the task's terminal event is delivered,
// or when the cancel function is called. Subscribing to a task that already
// finished yields an immediately closed channel.
func (b *Bus) Subscribe(taskID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished[taskID] {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	b.nextSubID++
	id := b.nextSubID
	ch := make(chan Event, b.queueSize)

	subs := b.subscribers[taskID]
	if subs == nil {
		subs = make(map[int]chan Event)
		b.subscribers[taskID] = subs
	}
	subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closeSubscriberLocked(taskID, id)
	}
	return ch, cancel
}

func (b *Bus) closeSubscriberLocked(taskID string, id int) {
	subs := b.subscribers[taskID]
	ch, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subscribers, taskID)
	}
	close(ch)
}

// SubscriberCount reports the live subscribers for a task.
func (b *Bus) SubscriberCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[taskID])
}

// Forget drops the finished marker for an evicted task so its id no longer
// occupies bus memory. Safe to call for unknown tasks.
func (b *Bus) Forget(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.finished, taskID)
	delete(b.seqs, taskID)
}
