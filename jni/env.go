package jni

// VM is the process-wide runtime handle. It is safe for concurrent use.
type VM interface {
	// GetEnv returns the Env of the calling thread. rc is EDETACHED when the
	// thread is not attached and EVERSION when version is not supported.
	GetEnv(version int32) (env Env, rc int32)
	// AttachCurrentThread attaches the calling thread. Attaching an already
	// attached thread returns its existing Env.
	AttachCurrentThread() (env Env, rc int32)
	// DetachCurrentThread detaches the calling thread and frees its locals.
	DetachCurrentThread() int32
}

// Env is a per-thread interface to the managed runtime.
// It must only be used on the thread it was obtained on.
type Env interface {
	GetVersion() int32
	GetJavaVM() VM

	FindClass(name string) Class
	GetSuperclass(cls Class) Class
	IsAssignableFrom(sub, sup Class) bool

	Throw(t Throwable) int32
	ThrowNew(cls Class, msg string) int32
	ExceptionOccurred() Throwable
	ExceptionCheck() bool
	ExceptionClear()
	ExceptionDescribe()
	FatalError(msg string)

	PushLocalFrame(capacity int32) int32
	PopLocalFrame(result Object) Object
	EnsureLocalCapacity(capacity int32) int32
	NewGlobalRef(obj Object) Object
	DeleteGlobalRef(ref Object)
	NewLocalRef(obj Object) Object
	DeleteLocalRef(ref Object)
	IsSameObject(a, b Object) bool

	AllocObject(cls Class) Object
	NewObject(cls Class, ctor MethodID, args ...Value) Object
	GetObjectClass(obj Object) Class
	IsInstanceOf(obj Object, cls Class) bool

	GetMethodID(cls Class, name, sig string) MethodID
	GetStaticMethodID(cls Class, name, sig string) MethodID
	GetFieldID(cls Class, name, sig string) FieldID

	CallObjectMethod(obj Object, m MethodID, args ...Value) Object
	CallBooleanMethod(obj Object, m MethodID, args ...Value) bool
	CallIntMethod(obj Object, m MethodID, args ...Value) int32
	CallLongMethod(obj Object, m MethodID, args ...Value) int64
	CallVoidMethod(obj Object, m MethodID, args ...Value)

	CallStaticObjectMethod(cls Class, m MethodID, args ...Value) Object
	CallStaticBooleanMethod(cls Class, m MethodID, args ...Value) bool
	CallStaticIntMethod(cls Class, m MethodID, args ...Value) int32
	CallStaticVoidMethod(cls Class, m MethodID, args ...Value)

	GetObjectField(obj Object, f FieldID) Object
	GetBooleanField(obj Object, f FieldID) bool
	GetIntField(obj Object, f FieldID) int32
	GetLongField(obj Object, f FieldID) int64
	SetObjectField(obj Object, f FieldID, v Object)
	SetBooleanField(obj Object, f FieldID, v bool)
	SetIntField(obj Object, f FieldID, v int32)
	SetLongField(obj Object, f FieldID, v int64)

	// NewStringUTF creates a string from modified UTF-8 bytes.
	NewStringUTF(mutf8 []byte) String
	GetStringLength(s String) int32
	GetStringUTFLength(s String) int32
	GetStringUTFChars(s String) *UTFChars
	ReleaseStringUTFChars(s String, chars *UTFChars)

	GetArrayLength(a Array) int32
	NewObjectArray(length int32, elem Class, init Object) Array
	GetObjectArrayElement(a Array, i int32) Object
	SetObjectArrayElement(a Array, i int32, v Object)

	RegisterNatives(cls Class, methods []NativeMethod) int32
	UnregisterNatives(cls Class) int32
}
