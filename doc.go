// Package rimebridge connects the Rime input method engine to the managed
// Trime application through a JNI-style native interface.
//
// The native side resolves every managed class and member it needs once,
// converts engine records to managed objects and back, exposes the engine
// as native methods of com/osfans/trime/core/Rime, and calls back into the
// application with handleRimeNotification from any thread.
//
// # Architecture Overview
//
//	rimebridge/
//	├── jni/             The native interface: handles, Env, VM, signatures, modified UTF-8
//	├── managed/         In-process managed runtime implementing jni.VM and jni.Env
//	│   └── trime/       The application's classes and a managed-side client
//	├── contract/        Class names, field layouts and native descriptors
//	├── bridge/          Scoped handles, reflection cache, attachment, codec, natives
//	├── engine/          Engine interface, records, key parsing, notifications
//	│   ├── schema/      Schema and config files, directory watcher
//	│   └── table/       Table-driven engine used by the console and tests
//	├── wasmhost/        wazero host for engine plugins
//	├── config/          TOML configuration and logger construction
//	├── errors/          Structured error types for debugging
//	└── cmd/rimebridge/  Console and one-shot key simulation
//
// # Quick Start
//
// Load the bridge into a runtime and drive it from the managed side:
//
//	vm := managed.New(managed.Options{})
//	if err := trime.Define(vm, handler); err != nil {
//	    log.Fatal(err)
//	}
//
//	err := bridge.RunAttached(vm, func(env jni.Env) error {
//	    if err := vm.LoadLibrary(bridge.NewLibrary(table.New())); err != nil {
//	        return err
//	    }
//	    c := trime.NewClient(env.(*managed.Env))
//	    if err := c.Startup(sharedDir, userDir, "1.0", false); err != nil {
//	        return err
//	    }
//	    _, err := c.SimulateKeySequence("nihao{space}")
//	    return err
//	})
//
// # Thread Safety
//
// An Env belongs to the OS thread it was attached on. Goroutines that call
// into the runtime lock their OS thread first; bridge.RunAttached and
// bridge.Thread do this for them. The reflection cache is published once
// and read without locks from every thread.
//
// # Resource Model
//
// Every acquired handle is released exactly once. Local references live in
// frames that are popped when a native returns; the bridge also releases
// them eagerly so bulk conversions stay within a constant budget. Global
// references are held only by the reflection cache and dropped on unload.
package rimebridge
