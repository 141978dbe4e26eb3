// Package bridge is the native side of the boundary between the input
// engine and the managed application.
//
// It is written only against the jni interfaces:
//
//   - scoped wrappers (CString, LocalRef, JString, JClass) release each
//     acquired handle exactly once, on every path, via defer
//   - Cache resolves every class and member once and publishes the table
//     to all threads; a missing member fails Init with the full list
//   - AttachEnv, RunAttached and Thread give native goroutines an env and
//     detach the threads they attached
//   - Codec converts engine records to managed objects and back
//   - Notifier calls handleRimeNotification from any goroutine
//   - Library registers the native entry points at load time
//
// Loading into the in-process runtime:
//
//	vm := managed.New(managed.Options{})
//	trime.Define(vm, handler)
//	lib := bridge.NewLibrary(table.New())
//	if err := vm.LoadLibrary(lib); err != nil {
//		return err
//	}
//
// # Errors
//
// A native that fails leaves java/lang/Exception pending and returns a
// zero value. Exceptions raised by the runtime itself, for example a
// failed class lookup, propagate unchanged.
package bridge
