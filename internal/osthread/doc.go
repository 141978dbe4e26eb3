// Package osthread identifies the operating system thread running the caller.
//
// Managed-runtime environments are bound to the thread that attached them.
// Callers must hold runtime.LockOSThread while the returned ID is meaningful;
// an unlocked goroutine may migrate between threads at any call.
package osthread

// ID identifies an OS thread for the lifetime of that thread.
type ID uint64
