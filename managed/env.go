package managed

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/internal/osthread"
	"github.com/wippyai/rime-bridge/internal/reftable"
	"github.com/wippyai/rime-bridge/jni"
)

// Env is the per-thread interface to a VM. It implements jni.Env and adds
// helpers for code that plays the managed side of the boundary.
type Env struct {
	vm       *VM
	pending  *object
	frames   []*frame
	tid      osthread.ID
	depth    int
	id       uint16
	serial   uint16
	detached atomic.Bool
}

type frame struct {
	table  *reftable.Table
	serial uint16
}

var _ jni.Env = (*Env)(nil)

// VM returns the owning VM.
func (e *Env) VM() *VM { return e.vm }

// Thread returns the OS thread the env is bound to.
func (e *Env) Thread() osthread.ID { return e.tid }

// LiveLocals returns the number of live local references across all frames.
func (e *Env) LiveLocals() int {
	n := 0
	for _, f := range e.frames {
		n += f.table.Len()
	}
	return n
}

// FrameDepth returns the number of local frames on the env.
func (e *Env) FrameDepth() int { return len(e.frames) }

func (e *Env) misuse(kind errors.Kind, op, format string, args ...any) {
	e.vm.fatal(errors.New(errors.PhaseRuntime, kind).
		Member(op).
		Detail(format, args...).
		Build())
}

// check validates the calling thread and the pending-exception state.
// It reports false after a fatal error has been delivered.
func (e *Env) check(op string, allowPending bool) bool {
	if e.detached.Load() {
		e.misuse(errors.KindNotAttached, op, "env used after DetachCurrentThread")
		return false
	}
	if cur := osthread.Current(); cur != e.tid {
		e.misuse(errors.KindWrongThread, op, "env of thread %d used on thread %d", e.tid, cur)
		return false
	}
	if !allowPending && e.pending != nil {
		e.misuse(errors.KindPendingException, op, "called with pending %s", e.pending.class.name)
		return false
	}
	return true
}

func (e *Env) enter(op string) bool { return e.check(op, false) }

func (e *Env) top() *frame { return e.frames[len(e.frames)-1] }

func (e *Env) pushFrame(capacity int) *frame {
	e.serial++
	f := &frame{
		table:  reftable.New(capacity),
		serial: e.serial,
	}
	tid := e.tid
	f.table.Subscribe(reftable.ObserverFunc(func(ev reftable.Event) {
		t := EventLocalNew
		if ev.Type == reftable.EventRemoved {
			t = EventLocalDelete
		}
		e.vm.emit(Event{Type: t, Class: className(ev.Value), Thread: tid})
	}))
	e.frames = append(e.frames, f)
	return f
}

func (e *Env) popFrame() {
	f := e.top()
	e.frames = e.frames[:len(e.frames)-1]
	_ = f.table.Close()
}

func (e *Env) frameBySerial(serial uint16) *frame {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].serial == serial {
			return e.frames[i]
		}
	}
	return nil
}

// resolve maps a reference to its object. ok is false after a fatal error.
func (e *Env) resolve(op string, ref jni.Object) (*object, bool) {
	if ref == 0 {
		return nil, true
	}
	kind, envID, serial, h := decodeRef(ref)
	switch kind {
	case refGlobal:
		v, ok := e.vm.globals.Get(h)
		if !ok {
			e.misuse(errors.KindStaleHandle, op, "deleted global reference %#x", uint64(ref))
			return nil, false
		}
		return v.(*object), true
	case refLocal:
		if envID != e.id {
			e.misuse(errors.KindWrongThread, op, "local reference %#x belongs to another thread", uint64(ref))
			return nil, false
		}
		f := e.frameBySerial(serial)
		if f == nil {
			e.misuse(errors.KindStaleHandle, op, "local reference %#x from a popped frame", uint64(ref))
			return nil, false
		}
		v, ok := f.table.Get(h)
		if !ok {
			e.misuse(errors.KindStaleHandle, op, "deleted local reference %#x", uint64(ref))
			return nil, false
		}
		return v.(*object), true
	}
	e.misuse(errors.KindStaleHandle, op, "invalid reference %#x", uint64(ref))
	return nil, false
}

func (e *Env) resolveClass(op string, ref jni.Class) (*class, bool) {
	obj, ok := e.resolve(op, ref)
	if !ok {
		return nil, false
	}
	if obj == nil {
		e.misuse(errors.KindNullHandle, op, "class reference is null")
		return nil, false
	}
	c := obj.mirrored()
	if c == nil {
		e.misuse(errors.KindTypeMismatch, op, "%s is not a class", obj.class.name)
		return nil, false
	}
	return c, true
}

func (e *Env) newLocal(op string, obj *object) jni.Object {
	if obj == nil {
		return 0
	}
	f := e.top()
	h, err := f.table.Insert(reftable.KindLocal, obj)
	if err != nil {
		e.misuse(errors.KindCapacity, op, "local reference table overflow (capacity %d)", f.table.Capacity())
		return 0
	}
	return encodeLocal(e.id, f.serial, h)
}

// throw sets obj as the pending exception.
func (e *Env) throw(obj *object) {
	e.pending = obj
	e.vm.emit(Event{Type: EventThrow, Class: obj.class.name, Detail: e.vm.throwableMessage(obj), Thread: e.tid})
}

// throwNew raises a new instance of a built-in throwable class.
func (e *Env) throwNew(name, msg string) {
	c := e.vm.lookupClass(name)
	if c == nil {
		c = e.vm.throwable
	}
	e.throw(e.vm.newThrowable(c, msg, true))
}

func (e *Env) GetVersion() int32 {
	if !e.enter("GetVersion") {
		return 0
	}
	return jni.Version16
}

func (e *Env) GetJavaVM() jni.VM { return e.vm }

func (e *Env) FindClass(name string) jni.Class {
	if !e.enter("FindClass") {
		return 0
	}
	c := e.vm.lookupClass(name)
	if c == nil {
		e.throwNew("java/lang/NoClassDefFoundError", name)
		return 0
	}
	return e.newLocal("FindClass", c.mirror)
}

func (e *Env) GetSuperclass(cls jni.Class) jni.Class {
	if !e.enter("GetSuperclass") {
		return 0
	}
	c, ok := e.resolveClass("GetSuperclass", cls)
	if !ok || c.super == nil || c.isInterface {
		return 0
	}
	return e.newLocal("GetSuperclass", c.super.mirror)
}

func (e *Env) IsAssignableFrom(sub, sup jni.Class) bool {
	if !e.enter("IsAssignableFrom") {
		return false
	}
	a, ok := e.resolveClass("IsAssignableFrom", sub)
	if !ok {
		return false
	}
	b, ok := e.resolveClass("IsAssignableFrom", sup)
	if !ok {
		return false
	}
	return a.assignableTo(b)
}

func (e *Env) Throw(t jni.Throwable) int32 {
	if !e.check("Throw", true) {
		return jni.ERR
	}
	obj, ok := e.resolve("Throw", t)
	if !ok || obj == nil || !obj.class.assignableTo(e.vm.throwable) {
		return jni.ERR
	}
	e.throw(obj)
	return jni.OK
}

func (e *Env) ThrowNew(cls jni.Class, msg string) int32 {
	if !e.check("ThrowNew", true) {
		return jni.ERR
	}
	c, ok := e.resolveClass("ThrowNew", cls)
	if !ok || !c.assignableTo(e.vm.throwable) || c.isAbstract {
		return jni.ERR
	}
	e.throw(e.vm.newThrowable(c, msg, true))
	return jni.OK
}

func (e *Env) ExceptionOccurred() jni.Throwable {
	if !e.check("ExceptionOccurred", true) || e.pending == nil {
		return 0
	}
	return e.newLocal("ExceptionOccurred", e.pending)
}

func (e *Env) ExceptionCheck() bool {
	if !e.check("ExceptionCheck", true) {
		return false
	}
	return e.pending != nil
}

func (e *Env) ExceptionClear() {
	if !e.check("ExceptionClear", true) {
		return
	}
	e.pending = nil
}

func (e *Env) ExceptionDescribe() {
	if !e.check("ExceptionDescribe", true) || e.pending == nil {
		return
	}
	Logger().Warn("exception",
		zap.String("class", e.pending.class.name),
		zap.String("message", e.vm.throwableMessage(e.pending)))
	e.pending = nil
}

func (e *Env) FatalError(msg string) {
	e.vm.fatal(errors.New(errors.PhaseRuntime, errors.KindThrown).
		Member("FatalError").
		Detail("%s", msg).
		Build())
}

func (e *Env) PushLocalFrame(capacity int32) int32 {
	if !e.check("PushLocalFrame", true) {
		return jni.ERR
	}
	if capacity < 0 {
		e.throwNew("java/lang/OutOfMemoryError", "negative local frame capacity")
		return jni.ENOMEM
	}
	if capacity == 0 {
		capacity = nativeFrameCapacity
	}
	e.pushFrame(int(capacity))
	return jni.OK
}

func (e *Env) PopLocalFrame(result jni.Object) jni.Object {
	if !e.check("PopLocalFrame", true) {
		return 0
	}
	if len(e.frames) <= 1 {
		e.misuse(errors.KindOutOfBounds, "PopLocalFrame", "no frame pushed with PushLocalFrame")
		return 0
	}
	obj, ok := e.resolve("PopLocalFrame", result)
	if !ok {
		return 0
	}
	e.popFrame()
	return e.newLocal("PopLocalFrame", obj)
}

func (e *Env) EnsureLocalCapacity(capacity int32) int32 {
	if !e.check("EnsureLocalCapacity", true) {
		return jni.ERR
	}
	if capacity < 0 {
		return jni.ERR
	}
	f := e.top()
	f.table.Grow(f.table.Len() + int(capacity))
	return jni.OK
}

func (e *Env) NewGlobalRef(obj jni.Object) jni.Object {
	if !e.enter("NewGlobalRef") {
		return 0
	}
	o, ok := e.resolve("NewGlobalRef", obj)
	if !ok || o == nil {
		return 0
	}
	h, err := e.vm.globals.Insert(reftable.KindGlobal, o)
	if err != nil {
		e.throwNew("java/lang/OutOfMemoryError", err.Error())
		return 0
	}
	return encodeGlobal(h)
}

func (e *Env) DeleteGlobalRef(ref jni.Object) {
	if ref == 0 || !e.check("DeleteGlobalRef", true) {
		return
	}
	kind, _, _, h := decodeRef(ref)
	if kind != refGlobal {
		e.misuse(errors.KindTypeMismatch, "DeleteGlobalRef", "%#x is not a global reference", uint64(ref))
		return
	}
	if _, ok := e.vm.globals.Remove(h); !ok {
		e.misuse(errors.KindStaleHandle, "DeleteGlobalRef", "global reference %#x already deleted", uint64(ref))
	}
}

func (e *Env) NewLocalRef(obj jni.Object) jni.Object {
	if !e.enter("NewLocalRef") {
		return 0
	}
	o, ok := e.resolve("NewLocalRef", obj)
	if !ok {
		return 0
	}
	return e.newLocal("NewLocalRef", o)
}

func (e *Env) DeleteLocalRef(ref jni.Object) {
	if ref == 0 || !e.check("DeleteLocalRef", true) {
		return
	}
	kind, envID, serial, h := decodeRef(ref)
	if kind != refLocal {
		e.misuse(errors.KindTypeMismatch, "DeleteLocalRef", "%#x is not a local reference", uint64(ref))
		return
	}
	if envID != e.id {
		e.misuse(errors.KindWrongThread, "DeleteLocalRef", "local reference %#x belongs to another thread", uint64(ref))
		return
	}
	f := e.frameBySerial(serial)
	if f == nil {
		e.misuse(errors.KindStaleHandle, "DeleteLocalRef", "local reference %#x from a popped frame", uint64(ref))
		return
	}
	if _, ok := f.table.Remove(h); !ok {
		e.misuse(errors.KindStaleHandle, "DeleteLocalRef", "local reference %#x already deleted", uint64(ref))
	}
}

func (e *Env) IsSameObject(a, b jni.Object) bool {
	if !e.enter("IsSameObject") {
		return false
	}
	oa, ok := e.resolve("IsSameObject", a)
	if !ok {
		return false
	}
	ob, ok := e.resolve("IsSameObject", b)
	if !ok {
		return false
	}
	return oa == ob
}

func (e *Env) AllocObject(cls jni.Class) jni.Object {
	if !e.enter("AllocObject") {
		return 0
	}
	c, ok := e.resolveClass("AllocObject", cls)
	if !ok {
		return 0
	}
	if c.isAbstract || c.isArray {
		e.throwNew("java/lang/InstantiationException", c.name)
		return 0
	}
	return e.newLocal("AllocObject", newInstance(c))
}

func (e *Env) GetObjectClass(obj jni.Object) jni.Class {
	if !e.enter("GetObjectClass") {
		return 0
	}
	o, ok := e.resolve("GetObjectClass", obj)
	if !ok {
		return 0
	}
	if o == nil {
		e.misuse(errors.KindNullHandle, "GetObjectClass", "object is null")
		return 0
	}
	return e.newLocal("GetObjectClass", o.class.mirror)
}

func (e *Env) IsInstanceOf(obj jni.Object, cls jni.Class) bool {
	if !e.enter("IsInstanceOf") {
		return false
	}
	o, ok := e.resolve("IsInstanceOf", obj)
	if !ok {
		return false
	}
	c, ok := e.resolveClass("IsInstanceOf", cls)
	if !ok {
		return false
	}
	return o == nil || o.class.assignableTo(c)
}

func (e *Env) GetMethodID(cls jni.Class, name, sig string) jni.MethodID {
	return e.getMethodID("GetMethodID", cls, name, sig, false)
}

func (e *Env) GetStaticMethodID(cls jni.Class, name, sig string) jni.MethodID {
	return e.getMethodID("GetStaticMethodID", cls, name, sig, true)
}

func (e *Env) getMethodID(op string, cls jni.Class, name, sig string, static bool) jni.MethodID {
	if !e.enter(op) {
		return 0
	}
	c, ok := e.resolveClass(op, cls)
	if !ok {
		return 0
	}
	m := c.findMethod(name, sig, static)
	if m == nil {
		e.throwNew("java/lang/NoSuchMethodError", fmt.Sprintf("%s.%s%s", c.name, name, sig))
		return 0
	}
	return m.id
}

func (e *Env) GetFieldID(cls jni.Class, name, sig string) jni.FieldID {
	if !e.enter("GetFieldID") {
		return 0
	}
	c, ok := e.resolveClass("GetFieldID", cls)
	if !ok {
		return 0
	}
	f := c.findField(name, sig)
	if f == nil {
		e.throwNew("java/lang/NoSuchFieldError", fmt.Sprintf("%s.%s %s", c.name, name, sig))
		return 0
	}
	return f.id
}

func (e *Env) RegisterNatives(cls jni.Class, methods []jni.NativeMethod) int32 {
	if !e.enter("RegisterNatives") {
		return jni.ERR
	}
	c, ok := e.resolveClass("RegisterNatives", cls)
	if !ok {
		return jni.ERR
	}
	if err := e.vm.natives.register(c, methods); err != nil {
		Logger().Error("native registration failed", zap.String("class", c.name), zap.Error(err))
		e.throwNew("java/lang/NoSuchMethodError", err.Error())
		return jni.ERR
	}
	return jni.OK
}

func (e *Env) UnregisterNatives(cls jni.Class) int32 {
	if !e.enter("UnregisterNatives") {
		return jni.ERR
	}
	c, ok := e.resolveClass("UnregisterNatives", cls)
	if !ok {
		return jni.ERR
	}
	e.vm.natives.unregister(c)
	return jni.OK
}
