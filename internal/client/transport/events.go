package transport

import (
	"slices"
	"sync"

	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
)

type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventClose
	EventError
	EventNotification
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	case EventNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Event is what subscribers receive. Only the fields matching Kind are set.
type Event struct {
	Kind         EventKind
	Endpoint     string
	Reason       string
	Err          error
	Notification *rpc.RPCNotification
}

type subscriber struct {
	id uint64
	fn func(Event)
}

type bus struct {
	mu   sync.RWMutex
	next uint64
	subs []subscriber
}

func newBus() *bus {
	return &bus{}
}

func (b *bus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
			b.mu.Unlock()
		})
	}
}

// publish runs listeners in subscription order on the caller's goroutine.
func (b *bus) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
