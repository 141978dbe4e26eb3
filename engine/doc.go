// Package engine defines the input engine collaborator of the bridge.
//
// The bridge never looks inside an engine. It calls the Engine interface
// from native entry points and converts the record types here to and from
// their managed counterparts. Engines report state changes through a
// Handler as (type, value) notification pairs:
//
//	deploy   start | success | failure
//	schema   <schema_id>/<schema_name>
//	option   <name> | !<name>
//
// Notifications may be delivered from any goroutine, including engine
// worker threads, and carry no ordering guarantee between threads.
//
// Key codes are X11 keysyms and masks follow the X11 modifier bits, which is
// what the managed application sends. ParseKeySequence reads the
// "{Name}" key sequence syntax used by simulateRimeKeySequence.
package engine
