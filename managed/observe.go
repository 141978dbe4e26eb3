package managed

import (
	"sort"
	"sync/atomic"

	"github.com/wippyai/rime-bridge/internal/osthread"
)

// EventType identifies a runtime event.
type EventType uint8

const (
	EventAttach EventType = iota + 1
	EventDetach
	EventLocalNew
	EventLocalDelete
	EventGlobalNew
	EventGlobalDelete
	EventUTFAcquire
	EventUTFRelease
	EventThrow
	EventArrayNew
	EventArraySet
	EventFatal
)

var eventNames = map[EventType]string{
	EventAttach:       "attach",
	EventDetach:       "detach",
	EventLocalNew:     "local_new",
	EventLocalDelete:  "local_delete",
	EventGlobalNew:    "global_new",
	EventGlobalDelete: "global_delete",
	EventUTFAcquire:   "utf_acquire",
	EventUTFRelease:   "utf_release",
	EventThrow:        "throw",
	EventArrayNew:     "array_new",
	EventArraySet:     "array_set",
	EventFatal:        "fatal",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "unknown"
}

// Event describes a single runtime event. Class is the class of the object
// involved, if any. Index and Length are set for array events.
type Event struct {
	Class  string
	Detail string
	Thread osthread.ID
	Index  int
	Length int
	Type   EventType
}

// Observer receives runtime events. Events are delivered synchronously on
// the thread that caused them.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Stats is a snapshot of the runtime counters.
type Stats struct {
	Attaches        int64
	Detaches        int64
	LocalsCreated   int64
	LocalsDeleted   int64
	GlobalsCreated  int64
	GlobalsDeleted  int64
	UTFAcquired     int64
	UTFReleased     int64
	Throws          int64
	ArraysAllocated int64
	Fatals          int64

	Threads        int
	LiveGlobals    int
	OutstandingUTF int
}

type counters struct {
	attaches, detaches             atomic.Int64
	localsCreated, localsDeleted   atomic.Int64
	globalsCreated, globalsDeleted atomic.Int64
	utfAcquired, utfReleased       atomic.Int64
	throws, arrays, fatals         atomic.Int64
}

func (c *counters) count(t EventType) {
	switch t {
	case EventAttach:
		c.attaches.Add(1)
	case EventDetach:
		c.detaches.Add(1)
	case EventLocalNew:
		c.localsCreated.Add(1)
	case EventLocalDelete:
		c.localsDeleted.Add(1)
	case EventGlobalNew:
		c.globalsCreated.Add(1)
	case EventGlobalDelete:
		c.globalsDeleted.Add(1)
	case EventUTFAcquire:
		c.utfAcquired.Add(1)
	case EventUTFRelease:
		c.utfReleased.Add(1)
	case EventThrow:
		c.throws.Add(1)
	case EventArrayNew:
		c.arrays.Add(1)
	case EventFatal:
		c.fatals.Add(1)
	}
}

// Subscribe adds an observer and returns a function that removes it.
func (vm *VM) Subscribe(o Observer) (unsubscribe func()) {
	vm.obsMu.Lock()
	id := vm.nextObs
	vm.nextObs++
	vm.observers[id] = o
	vm.obsMu.Unlock()

	return func() {
		vm.obsMu.Lock()
		delete(vm.observers, id)
		vm.obsMu.Unlock()
	}
}

// Stats returns a snapshot of the runtime counters.
func (vm *VM) Stats() Stats {
	s := Stats{
		Attaches:        vm.counters.attaches.Load(),
		Detaches:        vm.counters.detaches.Load(),
		LocalsCreated:   vm.counters.localsCreated.Load(),
		LocalsDeleted:   vm.counters.localsDeleted.Load(),
		GlobalsCreated:  vm.counters.globalsCreated.Load(),
		GlobalsDeleted:  vm.counters.globalsDeleted.Load(),
		UTFAcquired:     vm.counters.utfAcquired.Load(),
		UTFReleased:     vm.counters.utfReleased.Load(),
		Throws:          vm.counters.throws.Load(),
		ArraysAllocated: vm.counters.arrays.Load(),
		Fatals:          vm.counters.fatals.Load(),
		LiveGlobals:     vm.globals.Len(),
	}

	vm.threadMu.RLock()
	s.Threads = len(vm.threads)
	vm.threadMu.RUnlock()

	vm.utfMu.Lock()
	s.OutstandingUTF = len(vm.utf)
	vm.utfMu.Unlock()
	return s
}

func (vm *VM) emit(e Event) {
	vm.counters.count(e.Type)

	vm.obsMu.RLock()
	if len(vm.observers) == 0 {
		vm.obsMu.RUnlock()
		return
	}
	ids := make([]int, 0, len(vm.observers))
	for id := range vm.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, vm.observers[id])
	}
	vm.obsMu.RUnlock()

	for _, o := range obs {
		o.OnEvent(e)
	}
}
