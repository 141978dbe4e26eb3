package reftable

import "errors"

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags what an entry is used for.
type Kind uint8

const (
	KindLocal Kind = iota + 1
	KindGlobal
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventInserted EventType = iota
	EventRemoved
)

// Event represents a reference lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about reference lifecycle events.
type Observer interface {
	OnRefEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnRefEvent calls f(e).
func (f ObserverFunc) OnRefEvent(e Event) { f(e) }

var (
	ErrClosed   = errors.New("reference table closed")
	ErrCapacity = errors.New("reference table capacity exceeded")
)
