package jni

// Object is an opaque reference to a managed object. Zero is null.
type Object uintptr

// Reference aliases. They document intent; the runtime checks the real type.
type (
	Class     = Object
	String    = Object
	Array     = Object
	Throwable = Object
)

// MethodID identifies a resolved method. Zero is invalid.
type MethodID uintptr

// FieldID identifies a resolved field. Zero is invalid.
type FieldID uintptr

// Return codes.
const (
	OK        int32 = 0
	ERR       int32 = -1
	EDETACHED int32 = -2
	EVERSION  int32 = -3
	ENOMEM    int32 = -4
	EINVAL    int32 = -6
)

// Interface versions.
const (
	Version11 int32 = 0x00010001
	Version12 int32 = 0x00010002
	Version14 int32 = 0x00010004
	Version16 int32 = 0x00010006
)

// Value is a single call argument or return value. Type holds the
// descriptor character of the value: 'Z', 'B', 'C', 'S', 'I', 'J' or 'L'.
// Array references use 'L'.
type Value struct {
	Type byte
	Int  int64
	Obj  Object
}

// Int returns an int argument.
func Int(v int32) Value { return Value{Type: 'I', Int: int64(v)} }

// Long returns a long argument.
func Long(v int64) Value { return Value{Type: 'J', Int: v} }

// Bool returns a boolean argument.
func Bool(v bool) Value {
	if v {
		return Value{Type: 'Z', Int: 1}
	}
	return Value{Type: 'Z'}
}

// Obj returns a reference argument.
func Obj(o Object) Value { return Value{Type: 'L', Obj: o} }

// Void is the return value of a void native.
var Void = Value{Type: 'V'}

// AsInt returns the value as int.
func (v Value) AsInt() int32 { return int32(v.Int) }

// AsLong returns the value as long.
func (v Value) AsLong() int64 { return v.Int }

// AsBool returns the value as boolean.
func (v Value) AsBool() bool { return v.Int != 0 }

// AsObject returns the value as a reference.
func (v Value) AsObject() Object { return v.Obj }

// UTFChars is a runtime-owned modified UTF-8 buffer returned by
// GetStringUTFChars. Data is read-only and valid until the matching
// ReleaseStringUTFChars.
type UTFChars struct {
	Data []byte
}

// NativeFunc implements a native method. For static methods recv is the
// declaring class. Locals created by the function are freed when it returns,
// except the returned reference which the runtime moves to the caller.
type NativeFunc func(env Env, recv Object, args []Value) Value

// NativeMethod binds a name and descriptor to an implementation.
type NativeMethod struct {
	Fn        NativeFunc
	Name      string
	Signature string
}
