// Package wasmhost runs WebAssembly engine plugins on wazero.
//
// A plugin is a core module that imports functions from the "rime" host
// module and exports its linear memory as "memory":
//
//	(import "rime" "notify" (func (param i32 i32 i32 i32)))
//	(import "rime" "log" (func (param i32 i32)))
//
// notify reads the notification type and value from guest memory and
// forwards them to the engine.Handler given to the Host, normally the
// bridge notifier. log writes a message to the package logger.
//
// An optional export on_key(keycode, mask) -> i32 is offered every key the
// console processes; a non-zero result marks the key as handled.
//
// Host functions never trust guest pointers: a read outside memory fails
// the call with an errors.KindOutOfBounds error in errors.PhasePlugin.
package wasmhost
