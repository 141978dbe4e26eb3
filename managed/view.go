package managed

import (
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// NewString creates a local string from Go text.
func (e *Env) NewString(s string) jni.String {
	if !e.enter("NewString") {
		return 0
	}
	return e.newLocal("NewString", e.vm.newString(s))
}

// NewStringUTF16 creates a local string from raw UTF-16 code units,
// including unpaired surrogates.
func (e *Env) NewStringUTF16(units []uint16) jni.String {
	if !e.enter("NewStringUTF16") {
		return 0
	}
	cp := make([]uint16, len(units))
	copy(cp, units)
	return e.newLocal("NewStringUTF16", &object{class: e.vm.stringClass, str: cp})
}

// GoString returns the text of a string reference. ok is false for null.
func (e *Env) GoString(s jni.String) (string, bool) {
	o, ok := e.resolve("GoString", s)
	if !ok || o == nil || o.class != e.vm.stringClass {
		return "", false
	}
	return o.goString(), true
}

// ClassName returns the class name of a non-null object.
func (e *Env) ClassName(obj jni.Object) string {
	o, _ := e.resolve("ClassName", obj)
	if o == nil {
		return ""
	}
	return o.class.name
}

// View reads the fields of one object by name, the way managed code reads
// record properties. Reference results are locals of the current frame.
type View struct {
	env *Env
	obj *object
	err error
}

// View returns a View of obj. A null obj yields a View whose reads fail.
func (e *Env) View(obj jni.Object) *View {
	o, ok := e.resolve("View", obj)
	v := &View{env: e, obj: o}
	if !ok || o == nil {
		v.err = errors.NullHandle(errors.PhaseDecode, nil, "object")
	}
	return v
}

// Err returns the first error met by any read.
func (v *View) Err() error { return v.err }

// Class returns the viewed object's class name.
func (v *View) Class() string {
	if v.obj == nil {
		return ""
	}
	return v.obj.class.name
}

func (v *View) slot(name string, kind byte) (slot, bool) {
	if v.err != nil {
		return slot{}, false
	}
	f := v.obj.class.findField(name, "")
	if f == nil {
		v.err = errors.MemberNotFound(errors.PhaseDecode, v.obj.class.name, name, "")
		return slot{}, false
	}
	if f.desc.ValueKind() != kind {
		v.err = errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Class(v.obj.class.name).
			Member(name).
			Signature(f.sig).
			Build()
		return slot{}, false
	}
	return v.obj.get(f), true
}

// Int reads an int field.
func (v *View) Int(name string) int32 {
	s, _ := v.slot(name, 'I')
	return int32(s.prim)
}

// Bool reads a boolean field.
func (v *View) Bool(name string) bool {
	s, _ := v.slot(name, 'Z')
	return s.prim != 0
}

// String reads a String field. Null reads as "".
func (v *View) String(name string) string {
	s, ok := v.slot(name, 'L')
	if !ok || s.ref == nil {
		return ""
	}
	return s.ref.goString()
}

// IsNull reports whether a reference field is null.
func (v *View) IsNull(name string) bool {
	s, ok := v.slot(name, 'L')
	return !ok || s.ref == nil
}

// Object reads a reference field as a new local.
func (v *View) Object(name string) jni.Object {
	s, ok := v.slot(name, 'L')
	if !ok {
		return 0
	}
	return v.env.newLocal("View.Object", s.ref)
}

// Elements returns the elements of an array field as new locals.
func (v *View) Elements(name string) []jni.Object {
	s, ok := v.slot(name, 'L')
	if !ok || s.ref == nil {
		return nil
	}
	return v.env.elementsOf(s.ref)
}

// Strings returns the text of a String[] field.
func (v *View) Strings(name string) []string {
	s, ok := v.slot(name, 'L')
	if !ok || s.ref == nil || !s.ref.class.isArray {
		return nil
	}
	s.ref.mu.Lock()
	elems := append([]*object(nil), s.ref.elems...)
	s.ref.mu.Unlock()

	out := make([]string, len(elems))
	for i, el := range elems {
		if el != nil {
			out[i] = el.goString()
		}
	}
	return out
}

// Elements returns the elements of an array reference as new locals.
func (e *Env) Elements(arr jni.Array) []jni.Object {
	o, ok := e.resolve("Elements", arr)
	if !ok || o == nil || !o.class.isArray {
		return nil
	}
	return e.elementsOf(o)
}

func (e *Env) elementsOf(o *object) []jni.Object {
	o.mu.Lock()
	elems := append([]*object(nil), o.elems...)
	o.mu.Unlock()

	out := make([]jni.Object, len(elems))
	for i, el := range elems {
		out[i] = e.newLocal("Elements", el)
	}
	return out
}

// MapLen returns the number of entries of a java/util/HashMap, or -1 when
// obj is not one.
func (e *Env) MapLen(obj jni.Object) int {
	m, o := e.hashMapOf("MapLen", obj)
	if m == nil {
		return -1
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(m.keys)
}

// MapEntry returns the i-th entry of a HashMap in insertion order as new
// locals.
func (e *Env) MapEntry(obj jni.Object, i int) (key, value jni.Object) {
	m, o := e.hashMapOf("MapEntry", obj)
	if m == nil {
		return 0, 0
	}
	o.mu.Lock()
	if i < 0 || i >= len(m.keys) {
		o.mu.Unlock()
		return 0, 0
	}
	k, v := m.keys[i], m.vals[i]
	o.mu.Unlock()
	return e.newLocal("MapEntry", k), e.newLocal("MapEntry", v)
}

func (e *Env) hashMapOf(op string, obj jni.Object) (*hashMap, *object) {
	o, ok := e.resolve(op, obj)
	if !ok || o == nil {
		return nil, nil
	}
	m, _ := o.payload.(*hashMap)
	return m, o
}
