package sound

import (
	"fmt"
	"sync"
)

// EventKind classifies a pending player event.
type EventKind int

const (
	EventLooped EventKind = iota + 1
	EventRelativeCue
	EventAbsoluteCue
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventLooped:
		return "looped"
	case EventRelativeCue:
		return "relative-cue"
	case EventAbsoluteCue:
		return "absolute-cue"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// PendingEvent is one result of polling a handle. Cue is meaningful for the
// cue kinds only.
type PendingEvent struct {
	Kind EventKind
	Cue  int
}

func (e PendingEvent) String() string {
	switch e.Kind {
	case EventRelativeCue, EventAbsoluteCue:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Cue)
	}
	return e.Kind.String()
}

type queuedEvent struct {
	handle Handle
	event  PendingEvent
}

// eventQueue is the hand-off between the producing tick and the consuming
// control loop. Every event is removed by exactly one pop.
type eventQueue struct {
	mu    sync.Mutex
	items []queuedEvent
}

func (q *eventQueue) push(h Handle, ev PendingEvent) {
	q.mu.Lock()
	q.items = append(q.items, queuedEvent{handle: h, event: ev})
	q.mu.Unlock()
}

func (q *eventQueue) pop() (Handle, PendingEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, PendingEvent{}, false
	}
	item := q.items[0]
	q.items[0] = queuedEvent{}
	q.items = q.items[1:]
	return item.handle, item.event, true
}

func (q *eventQueue) popFor(h Handle) (PendingEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.handle != h {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return item.event, true
	}
	return PendingEvent{}, false
}

func (q *eventQueue) drop(h Handle) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	dropped := 0
	for _, item := range q.items {
		if item.handle == h {
			dropped++
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = queuedEvent{}
	}
	q.items = kept
	return dropped
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
