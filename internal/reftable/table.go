package reftable

import (
	"sort"
	"sync"
)

// Table is an in-memory handle table with free-list reuse and observers.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers map[int]Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	capacity  int
	live      int
	nextObs   int
	closed    bool
}

type entry struct {
	value any
	kind  Kind
	valid bool
}

// New creates a table. A capacity of 0 means unbounded.
func New(capacity int) *Table {
	return &Table{
		entries:   make([]entry, 0, 16),
		freeList:  make([]Handle, 0, 8),
		observers: make(map[int]Observer),
		capacity:  capacity,
	}
}

// Insert stores a value and returns its handle.
func (t *Table) Insert(kind Kind, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}
	if t.capacity > 0 && t.live >= t.capacity {
		t.mu.Unlock()
		return 0, ErrCapacity
	}

	e := entry{
		kind:  kind,
		value: value,
		valid: true,
	}

	var handle Handle
	if len(t.freeList) > 0 {
		handle = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries))
	}
	t.live++
	t.mu.Unlock()

	t.notify(Event{
		Type:   EventInserted,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})
	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := handle - 1
	if int(idx) >= len(t.entries) {
		return nil, false
	}

	e := t.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// KindOf returns the kind recorded for a live handle.
func (t *Table) KindOf(handle Handle) (Kind, bool) {
	if handle == 0 {
		return 0, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := handle - 1
	if int(idx) >= len(t.entries) || !t.entries[idx].valid {
		return 0, false
	}
	return t.entries[idx].kind, true
}

// Remove drops an entry and returns (value, true) if it was live.
func (t *Table) Remove(handle Handle) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	t.mu.Lock()
	idx := handle - 1
	if int(idx) >= len(t.entries) {
		t.mu.Unlock()
		return nil, false
	}

	e := &t.entries[idx]
	if !e.valid {
		t.mu.Unlock()
		return nil, false
	}

	value, kind := e.value, e.kind
	e.valid = false
	e.value = nil
	t.freeList = append(t.freeList, handle)
	t.live--
	t.mu.Unlock()

	t.notify(Event{
		Type:   EventRemoved,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})
	return value, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Capacity returns the live-entry limit, 0 when unbounded.
func (t *Table) Capacity() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capacity
}

// Grow raises the capacity to at least n. It never lowers it.
func (t *Table) Grow(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capacity > 0 && n > t.capacity {
		t.capacity = n
	}
}

// Each iterates over all live entries in handle order.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, e := range t.entries {
		if e.valid {
			if !fn(Handle(i+1), e.kind, e.value) {
				break
			}
		}
	}
}

// Clear removes every live entry and returns how many were dropped.
func (t *Table) Clear() int {
	// Collect handles first to avoid holding the lock during Remove
	var handles []Handle
	t.Each(func(h Handle, _ Kind, _ any) bool {
		handles = append(handles, h)
		return true
	})
	n := 0
	for _, h := range handles {
		if _, ok := t.Remove(h); ok {
			n++
		}
	}
	return n
}

// Close drops every entry and rejects further inserts.
func (t *Table) Close() error {
	t.Clear()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.entries = nil
	t.freeList = nil
	return nil
}

// Subscribe adds an observer and returns a function that removes it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = o
	t.obsMu.Unlock()

	return func() {
		t.obsMu.Lock()
		delete(t.observers, id)
		t.obsMu.Unlock()
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	if len(t.observers) == 0 {
		t.obsMu.RUnlock()
		return
	}
	ids := make([]int, 0, len(t.observers))
	for id := range t.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, t.observers[id])
	}
	t.obsMu.RUnlock()

	for _, o := range obs {
		o.OnRefEvent(e)
	}
}
