package managed

import (
	"fmt"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// call validates a method invocation from native code and runs it.
// The reference result, if any, is returned as *object; the caller turns it
// into a local of its own frame.
func (e *Env) call(op string, recv jni.Object, id jni.MethodID, static bool, args []jni.Value) (jni.Value, *object, bool) {
	if !e.enter(op) {
		return jni.Value{}, nil, false
	}
	m := e.vm.method(id)
	if m == nil {
		e.misuse(errors.KindStaleHandle, op, "invalid method id %d", id)
		return jni.Value{}, nil, false
	}
	if m.static != static {
		e.misuse(errors.KindTypeMismatch, op, "%s.%s%s static=%v called as static=%v", m.owner.name, m.name, m.sig, m.static, static)
		return jni.Value{}, nil, false
	}

	var self *object
	if static {
		c, ok := e.resolveClass(op, recv)
		if !ok {
			return jni.Value{}, nil, false
		}
		if !c.assignableTo(m.owner) {
			e.misuse(errors.KindTypeMismatch, op, "%s does not declare %s.%s", c.name, m.owner.name, m.name)
			return jni.Value{}, nil, false
		}
		self = c.mirror
	} else {
		o, ok := e.resolve(op, recv)
		if !ok {
			return jni.Value{}, nil, false
		}
		if o == nil {
			e.throwNew("java/lang/NullPointerException", fmt.Sprintf("invoke %s.%s on null", m.owner.name, m.name))
			return jni.Value{}, nil, true
		}
		if !o.class.assignableTo(m.owner) {
			e.misuse(errors.KindTypeMismatch, op, "%s is not a %s", o.class.name, m.owner.name)
			return jni.Value{}, nil, false
		}
		self = o
		m = o.class.implementation(m)
	}

	objs, ok := e.checkArgs(op, m, args)
	if !ok {
		return jni.Value{}, nil, false
	}
	ret, obj := e.run(m, self, args, objs)
	return ret, obj, true
}

// checkArgs validates arity and value kinds and resolves reference arguments.
func (e *Env) checkArgs(op string, m *method, args []jni.Value) ([]*object, bool) {
	params := m.msig.Params
	if len(args) != len(params) {
		e.misuse(errors.KindBadSignature, op, "%s.%s%s takes %d arguments, got %d", m.owner.name, m.name, m.sig, len(params), len(args))
		return nil, false
	}
	objs := make([]*object, len(args))
	for i, p := range params {
		if args[i].Type != p.ValueKind() {
			e.misuse(errors.KindBadSignature, op, "%s.%s%s argument %d: want %c, got %c", m.owner.name, m.name, m.sig, i, p.ValueKind(), args[i].Type)
			return nil, false
		}
		if !p.IsReference() {
			continue
		}
		o, ok := e.resolve(op, args[i].Obj)
		if !ok {
			return nil, false
		}
		if o != nil {
			if want := e.vm.lookupClass(p.ClassName()); want != nil && !o.class.assignableTo(want) {
				e.misuse(errors.KindTypeMismatch, op, "%s.%s argument %d: %s is not a %s", m.owner.name, m.name, i, o.class.name, want.name)
				return nil, false
			}
		}
		objs[i] = o
	}
	return objs, true
}

// run executes m in a fresh local frame.
func (e *Env) run(m *method, self *object, args []jni.Value, objs []*object) (jni.Value, *object) {
	refs := 1
	for _, o := range objs {
		if o != nil {
			refs++
		}
	}

	e.depth++
	e.pushFrame(nativeFrameCapacity + refs)
	frames := len(e.frames)
	defer func() {
		for len(e.frames) >= frames {
			e.popFrame()
		}
		e.depth--
	}()

	callArgs := make([]jni.Value, len(args))
	copy(callArgs, args)
	for i, o := range objs {
		if o != nil {
			callArgs[i].Obj = e.newLocal("call", o)
		}
	}
	recv := e.newLocal("call", self)

	var ret jni.Value
	switch {
	case m.impl != nil:
		ret = m.impl(e, recv, callArgs)
	case m.native:
		fn := m.bound.Load()
		if fn == nil {
			e.throwNew("java/lang/UnsatisfiedLinkError", fmt.Sprintf("%s.%s%s", m.owner.name, m.name, m.sig))
			return jni.Value{}, nil
		}
		ret = (*fn)(e, recv, callArgs)
	default:
		e.throwNew("java/lang/AbstractMethodError", fmt.Sprintf("%s.%s%s", m.owner.name, m.name, m.sig))
		return jni.Value{}, nil
	}

	if e.pending != nil {
		return jni.Value{}, nil
	}
	if m.name == "<init>" || m.msig.Return == "V" {
		return jni.Void, nil
	}
	want := m.msig.Return.ValueKind()
	if ret.Type != want {
		e.misuse(errors.KindBadSignature, m.name, "%s.%s%s returned %c, want %c", m.owner.name, m.name, m.sig, ret.Type, want)
		return jni.Value{}, nil
	}
	if want != 'L' {
		return ret, nil
	}
	obj, ok := e.resolve(m.name, ret.Obj)
	if !ok {
		return jni.Value{}, nil
	}
	return ret, obj
}

func (e *Env) NewObject(cls jni.Class, ctor jni.MethodID, args ...jni.Value) jni.Object {
	if !e.enter("NewObject") {
		return 0
	}
	c, ok := e.resolveClass("NewObject", cls)
	if !ok {
		return 0
	}
	m := e.vm.method(ctor)
	if m == nil || m.name != "<init>" || m.owner != c {
		e.misuse(errors.KindBadSignature, "NewObject", "method id %d is not a constructor of %s", ctor, c.name)
		return 0
	}
	if c.isAbstract {
		e.throwNew("java/lang/InstantiationException", c.name)
		return 0
	}
	objs, ok := e.checkArgs("NewObject", m, args)
	if !ok {
		return 0
	}
	obj := newInstance(c)
	e.run(m, obj, args, objs)
	if e.pending != nil {
		return 0
	}
	return e.newLocal("NewObject", obj)
}

func (e *Env) CallObjectMethod(obj jni.Object, m jni.MethodID, args ...jni.Value) jni.Object {
	_, o, _ := e.call("CallObjectMethod", obj, m, false, args)
	return e.newLocal("CallObjectMethod", o)
}

func (e *Env) CallBooleanMethod(obj jni.Object, m jni.MethodID, args ...jni.Value) bool {
	v, _, _ := e.call("CallBooleanMethod", obj, m, false, args)
	return v.AsBool()
}

func (e *Env) CallIntMethod(obj jni.Object, m jni.MethodID, args ...jni.Value) int32 {
	v, _, _ := e.call("CallIntMethod", obj, m, false, args)
	return v.AsInt()
}

func (e *Env) CallLongMethod(obj jni.Object, m jni.MethodID, args ...jni.Value) int64 {
	v, _, _ := e.call("CallLongMethod", obj, m, false, args)
	return v.AsLong()
}

func (e *Env) CallVoidMethod(obj jni.Object, m jni.MethodID, args ...jni.Value) {
	e.call("CallVoidMethod", obj, m, false, args)
}

func (e *Env) CallStaticObjectMethod(cls jni.Class, m jni.MethodID, args ...jni.Value) jni.Object {
	_, o, _ := e.call("CallStaticObjectMethod", cls, m, true, args)
	return e.newLocal("CallStaticObjectMethod", o)
}

func (e *Env) CallStaticBooleanMethod(cls jni.Class, m jni.MethodID, args ...jni.Value) bool {
	v, _, _ := e.call("CallStaticBooleanMethod", cls, m, true, args)
	return v.AsBool()
}

func (e *Env) CallStaticIntMethod(cls jni.Class, m jni.MethodID, args ...jni.Value) int32 {
	v, _, _ := e.call("CallStaticIntMethod", cls, m, true, args)
	return v.AsInt()
}

func (e *Env) CallStaticVoidMethod(cls jni.Class, m jni.MethodID, args ...jni.Value) {
	e.call("CallStaticVoidMethod", cls, m, true, args)
}

// fieldAccess resolves obj and f and checks that f is a field of obj's
// class with a value kind of want.
func (e *Env) fieldAccess(op string, obj jni.Object, id jni.FieldID, want byte) (*object, *field, bool) {
	if !e.enter(op) {
		return nil, nil, false
	}
	f := e.vm.field(id)
	if f == nil {
		e.misuse(errors.KindStaleHandle, op, "invalid field id %d", id)
		return nil, nil, false
	}
	o, ok := e.resolve(op, obj)
	if !ok {
		return nil, nil, false
	}
	if o == nil {
		e.misuse(errors.KindNullHandle, op, "%s.%s of null object", f.owner.name, f.name)
		return nil, nil, false
	}
	if !o.class.assignableTo(f.owner) {
		e.misuse(errors.KindTypeMismatch, op, "%s has no field %s.%s", o.class.name, f.owner.name, f.name)
		return nil, nil, false
	}
	if f.desc.ValueKind() != want {
		e.misuse(errors.KindTypeMismatch, op, "field %s.%s is %s", f.owner.name, f.name, f.sig)
		return nil, nil, false
	}
	return o, f, true
}

func (e *Env) GetObjectField(obj jni.Object, id jni.FieldID) jni.Object {
	o, f, ok := e.fieldAccess("GetObjectField", obj, id, 'L')
	if !ok {
		return 0
	}
	return e.newLocal("GetObjectField", o.get(f).ref)
}

func (e *Env) GetBooleanField(obj jni.Object, id jni.FieldID) bool {
	o, f, ok := e.fieldAccess("GetBooleanField", obj, id, 'Z')
	if !ok {
		return false
	}
	return o.get(f).prim != 0
}

func (e *Env) GetIntField(obj jni.Object, id jni.FieldID) int32 {
	o, f, ok := e.fieldAccess("GetIntField", obj, id, 'I')
	if !ok {
		return 0
	}
	return int32(o.get(f).prim)
}

func (e *Env) GetLongField(obj jni.Object, id jni.FieldID) int64 {
	o, f, ok := e.fieldAccess("GetLongField", obj, id, 'J')
	if !ok {
		return 0
	}
	return o.get(f).prim
}

func (e *Env) SetObjectField(obj jni.Object, id jni.FieldID, v jni.Object) {
	o, f, ok := e.fieldAccess("SetObjectField", obj, id, 'L')
	if !ok {
		return
	}
	val, ok := e.resolve("SetObjectField", v)
	if !ok {
		return
	}
	if val != nil {
		if want := e.vm.lookupClass(f.desc.ClassName()); want != nil && !val.class.assignableTo(want) {
			e.misuse(errors.KindTypeMismatch, "SetObjectField", "%s.%s: %s is not a %s", f.owner.name, f.name, val.class.name, want.name)
			return
		}
	}
	o.set(f, slot{ref: val})
}

func (e *Env) SetBooleanField(obj jni.Object, id jni.FieldID, v bool) {
	o, f, ok := e.fieldAccess("SetBooleanField", obj, id, 'Z')
	if !ok {
		return
	}
	var b int64
	if v {
		b = 1
	}
	o.set(f, slot{prim: b})
}

func (e *Env) SetIntField(obj jni.Object, id jni.FieldID, v int32) {
	o, f, ok := e.fieldAccess("SetIntField", obj, id, 'I')
	if !ok {
		return
	}
	o.set(f, slot{prim: int64(v)})
}

func (e *Env) SetLongField(obj jni.Object, id jni.FieldID, v int64) {
	o, f, ok := e.fieldAccess("SetLongField", obj, id, 'J')
	if !ok {
		return
	}
	o.set(f, slot{prim: v})
}
