// Package jni models the boundary between native code and a managed runtime
// in the shape of the Java Native Interface.
//
// The bridge is written only against the interfaces here. A runtime behind
// them may be a real JVM reached through cgo or the checked in-process
// runtime in package managed.
//
// # Handles
//
// Object, Class, String and Array are opaque handles. The zero handle is the
// null reference. Local handles are valid only on the thread that received
// them and only until their frame is popped or DeleteLocalRef is called.
// Global handles are valid on every thread until DeleteGlobalRef.
//
// # Environments
//
// An Env is bound to one OS thread. A thread obtains an Env from a VM with
// GetEnv when it is already attached, or AttachCurrentThread otherwise:
//
//	env, rc := vm.GetEnv(jni.Version16)
//	if rc == jni.EDETACHED {
//	    env, rc = vm.AttachCurrentThread()
//	}
//
// # Failures
//
// Lookup and allocation failures return the zero handle and leave an
// exception pending on the Env. Callers must check ExceptionCheck and clear
// or propagate the exception before the next call into the runtime.
//
// # Strings
//
// Strings cross the boundary in modified UTF-8: NUL is encoded as C0 80 and
// supplementary characters as surrogate pairs of three bytes each. See
// EncodeMUTF8 and DecodeMUTF8.
package jni
