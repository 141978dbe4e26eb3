// Package managed is an in-process managed runtime that implements the
// jni.VM and jni.Env interfaces with checked semantics.
//
// It stands in for the JVM that hosts the input-method application: it
// defines classes, allocates objects, strings and arrays, runs managed
// methods written in Go (Impl) and dispatches native methods bound with
// RegisterNatives. Every interface call is checked:
//
//   - an Env may only be used on the OS thread that attached it
//   - each local frame has a fixed capacity; overflow is fatal
//   - calling into the runtime with an exception pending is fatal
//   - deleted, popped or foreign references are fatal when used
//
// Fatal errors go to Options.OnFatal, or panic when it is nil.
//
// # Threads
//
// Threads are OS threads. A goroutine must hold runtime.LockOSThread from
// AttachCurrentThread until DetachCurrentThread:
//
//	runtime.LockOSThread()
//	defer runtime.UnlockOSThread()
//	env, _ := vm.AttachCurrentThread()
//	defer vm.DetachCurrentThread()
//
// # Observing
//
// Subscribe delivers an Event for every attach, detach, reference
// creation and deletion, string buffer acquire and release, array
// allocation and element store, and thrown exception. Stats returns the
// aggregate counters. Tests use these to prove that every acquisition is
// matched by exactly one release.
//
// # Managed side
//
// Go code that plays the managed caller uses Invoke, InvokeStatic,
// Construct and View. Exceptions left pending by a call are cleared and
// returned as *Throwable.
package managed
