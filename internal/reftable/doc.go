// Package reftable provides the handle tables behind managed references.
//
// A Table maps small integer handles to values and recycles freed slots
// through a free list, so a handle stays cheap to create and release.
// Handle 0 is reserved and always invalid, matching the null reference.
//
//	table := reftable.New(0)
//	h, err := table.Insert(reftable.KindLocal, obj)
//	v, ok := table.Get(h)
//	v, ok = table.Remove(h)
//
// # Capacity
//
// A table created with a non-zero capacity refuses inserts once that many
// entries are live, returning ErrCapacity. Local reference frames use this
// to model the finite per-frame budget of the managed runtime.
//
// # Observers
//
// Observers receive an Event for every insert and removal. Leak counters in
// tests subscribe here to see each acquisition and release:
//
//	table.Subscribe(counter)
package reftable
