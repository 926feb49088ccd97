package memcache

// EventKind classifies a cache event.
type EventKind string

const (
	EventHit        EventKind = "hit"
	EventMiss       EventKind = "miss"
	EventPut        EventKind = "put"
	EventEvict      EventKind = "evict"
	EventExpire     EventKind = "expire"
	EventInvalidate EventKind = "invalidate"
)

// Event describes a single cache operation for observers.
type Event struct {
	Kind  EventKind
	Cache string
	Key   string
	Value any
}

// Listener receives cache events. Implementations must not retain the event's
// Value beyond the call.
type Listener interface {
	HandleCacheEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// HandleCacheEvent calls f(ev).
func (f ListenerFunc) HandleCacheEvent(ev Event) { f(ev) }

// notify invokes each listener, isolating panics so one faulty listener
// cannot break the cache or the remaining listeners.
func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		func() {
			defer func() { _ = recover() }()
			l.HandleCacheEvent(ev)
		}()
	}
}
