package managed

import (
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// Throwable is a managed exception observed by managed-side Go code.
type Throwable struct {
	Class   string
	Message string
}

func (t *Throwable) Error() string {
	if t.Message == "" {
		return t.Class
	}
	return t.Class + ": " + t.Message
}

// Is matches another Throwable of the same class.
func (t *Throwable) Is(target error) bool {
	o, ok := target.(*Throwable)
	return ok && o.Class == t.Class && (o.Message == "" || o.Message == t.Message)
}

// takeThrowable clears the pending exception and returns it as an error.
func (e *Env) takeThrowable() *Throwable {
	p := e.pending
	if p == nil {
		return nil
	}
	e.pending = nil
	return &Throwable{Class: p.class.name, Message: e.vm.throwableMessage(p)}
}

// Invoke calls a method the way managed code would: a pending exception
// after the call is cleared and returned as *Throwable. A reference result
// is a local of the current frame.
func (e *Env) Invoke(recv jni.Object, id jni.MethodID, args ...jni.Value) (jni.Value, error) {
	m := e.vm.method(id)
	if m == nil {
		return jni.Value{}, errors.New(errors.PhaseCall, errors.KindStaleHandle).
			Detail("invalid method id %d", id).
			Build()
	}
	v, obj, ok := e.call("Invoke", recv, id, m.static, args)
	if !ok {
		return jni.Value{}, errors.New(errors.PhaseCall, errors.KindThrown).
			Class(m.owner.name).
			Member(m.name).
			Signature(m.sig).
			Detail("call rejected by runtime checks").
			Build()
	}
	if t := e.takeThrowable(); t != nil {
		return jni.Value{}, t
	}
	if obj != nil {
		v.Obj = e.newLocal("Invoke", obj)
	}
	return v, nil
}

// InvokeStatic resolves and calls a static method by name.
func (e *Env) InvokeStatic(className, name, sig string, args ...jni.Value) (jni.Value, error) {
	c := e.vm.lookupClass(className)
	if c == nil {
		return jni.Value{}, errors.ClassNotFound(errors.PhaseCall, className)
	}
	m := c.findMethod(name, sig, true)
	if m == nil {
		return jni.Value{}, errors.MemberNotFound(errors.PhaseCall, className, name, sig)
	}
	cls := e.newLocal("InvokeStatic", c.mirror)
	defer e.DeleteLocalRef(cls)
	return e.Invoke(cls, m.id, args...)
}

// InvokeMethod resolves and calls an instance method by name.
func (e *Env) InvokeMethod(recv jni.Object, name, sig string, args ...jni.Value) (jni.Value, error) {
	o, ok := e.resolve("InvokeMethod", recv)
	if !ok || o == nil {
		return jni.Value{}, errors.NullHandle(errors.PhaseCall, []string{name}, "receiver")
	}
	m := o.class.findMethod(name, sig, false)
	if m == nil {
		return jni.Value{}, errors.MemberNotFound(errors.PhaseCall, o.class.name, name, sig)
	}
	return e.Invoke(recv, m.id, args...)
}

// Construct allocates and initializes an instance of a class by name.
func (e *Env) Construct(className, sig string, args ...jni.Value) (jni.Object, error) {
	c := e.vm.lookupClass(className)
	if c == nil {
		return 0, errors.ClassNotFound(errors.PhaseCall, className)
	}
	m := c.findMethod("<init>", sig, false)
	if m == nil {
		return 0, errors.MemberNotFound(errors.PhaseCall, className, "<init>", sig)
	}
	cls := e.newLocal("Construct", c.mirror)
	defer e.DeleteLocalRef(cls)
	obj := e.NewObject(cls, m.id, args...)
	if t := e.takeThrowable(); t != nil {
		return 0, t
	}
	return obj, nil
}
