package managed

import (
	"fmt"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

func (e *Env) arrayArg(op string, a jni.Array) (*object, bool) {
	o, ok := e.resolve(op, a)
	if !ok {
		return nil, false
	}
	if o == nil {
		e.misuse(errors.KindNullHandle, op, "array is null")
		return nil, false
	}
	if !o.class.isArray {
		e.misuse(errors.KindTypeMismatch, op, "%s is not an array", o.class.name)
		return nil, false
	}
	return o, true
}

func (e *Env) GetArrayLength(a jni.Array) int32 {
	if !e.enter("GetArrayLength") {
		return 0
	}
	o, ok := e.arrayArg("GetArrayLength", a)
	if !ok {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return int32(len(o.elems))
}

func (e *Env) NewObjectArray(length int32, elem jni.Class, init jni.Object) jni.Array {
	if !e.enter("NewObjectArray") {
		return 0
	}
	c, ok := e.resolveClass("NewObjectArray", elem)
	if !ok {
		return 0
	}
	if length < 0 {
		e.throwNew("java/lang/NegativeArraySizeException", fmt.Sprint(length))
		return 0
	}
	fill, ok := e.resolve("NewObjectArray", init)
	if !ok {
		return 0
	}
	if fill != nil && !fill.class.assignableTo(c) {
		e.throwNew("java/lang/ArrayStoreException", fill.class.name)
		return 0
	}

	arr := &object{
		class: e.vm.arrayClass(c),
		elems: make([]*object, length),
	}
	if fill != nil {
		for i := range arr.elems {
			arr.elems[i] = fill
		}
	}
	e.vm.emit(Event{Type: EventArrayNew, Class: arr.class.name, Length: int(length), Thread: e.tid})
	return e.newLocal("NewObjectArray", arr)
}

func (e *Env) GetObjectArrayElement(a jni.Array, i int32) jni.Object {
	if !e.enter("GetObjectArrayElement") {
		return 0
	}
	o, ok := e.arrayArg("GetObjectArrayElement", a)
	if !ok {
		return 0
	}
	o.mu.Lock()
	if i < 0 || int(i) >= len(o.elems) {
		n := len(o.elems)
		o.mu.Unlock()
		e.throwNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, n))
		return 0
	}
	v := o.elems[i]
	o.mu.Unlock()
	return e.newLocal("GetObjectArrayElement", v)
}

func (e *Env) SetObjectArrayElement(a jni.Array, i int32, v jni.Object) {
	if !e.enter("SetObjectArrayElement") {
		return
	}
	o, ok := e.arrayArg("SetObjectArrayElement", a)
	if !ok {
		return
	}
	val, ok := e.resolve("SetObjectArrayElement", v)
	if !ok {
		return
	}
	if val != nil && o.class.elem != nil && !val.class.assignableTo(o.class.elem) {
		e.throwNew("java/lang/ArrayStoreException", val.class.name)
		return
	}
	o.mu.Lock()
	if i < 0 || int(i) >= len(o.elems) {
		n := len(o.elems)
		o.mu.Unlock()
		e.throwNew("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, n))
		return
	}
	o.elems[i] = val
	o.mu.Unlock()
	e.vm.emit(Event{Type: EventArraySet, Class: o.class.name, Index: int(i), Length: len(o.elems), Thread: e.tid})
}
