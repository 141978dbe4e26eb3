package managed

import (
	"fmt"
	"slices"

	"github.com/wippyai/rime-bridge/jni"
)

// throwables lists built-in throwable classes in definition order.
var throwables = []struct{ name, super string }{
	{"java/lang/Exception", "java/lang/Throwable"},
	{"java/lang/Error", "java/lang/Throwable"},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/ReflectiveOperationException", "java/lang/Exception"},
	{"java/lang/InstantiationException", "java/lang/ReflectiveOperationException"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/ArrayStoreException", "java/lang/RuntimeException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
	{"java/lang/UnsatisfiedLinkError", "java/lang/LinkageError"},
	{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
	{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/AbstractMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/VirtualMachineError", "java/lang/Error"},
	{"java/lang/OutOfMemoryError", "java/lang/VirtualMachineError"},
}

func (vm *VM) bootstrap() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	must := func(c *class, err error) *class {
		if err != nil {
			panic(err)
		}
		return c
	}

	vm.objectClass = must(vm.defineLocked(ClassDef{
		Name:    "java/lang/Object",
		Methods: []MethodDef{{Name: "<init>", Sig: "()V", Impl: nop}},
	}))
	vm.classClass = must(vm.defineLocked(ClassDef{Name: "java/lang/Class"}))
	vm.objectClass.mirror.class = vm.classClass
	vm.classClass.mirror.class = vm.classClass

	vm.stringClass = must(vm.defineLocked(ClassDef{
		Name: "java/lang/String",
		Methods: []MethodDef{
			{Name: "length", Sig: "()I", Impl: stringLength},
		},
	}))

	vm.throwable = must(vm.defineLocked(throwableDef("java/lang/Throwable", "")))
	for _, t := range throwables {
		must(vm.defineLocked(throwableDef(t.name, t.super)))
	}

	must(vm.defineLocked(ClassDef{
		Name:   "java/lang/Integer",
		Fields: []FieldDef{{Name: "value", Sig: "I"}},
		Methods: []MethodDef{
			{Name: "<init>", Sig: "(I)V", Impl: setPrim("value")},
			{Name: "intValue", Sig: "()I", Impl: getPrim("value", 'I')},
		},
	}))
	must(vm.defineLocked(ClassDef{
		Name:   "java/lang/Boolean",
		Fields: []FieldDef{{Name: "value", Sig: "Z"}},
		Methods: []MethodDef{
			{Name: "<init>", Sig: "(Z)V", Impl: setPrim("value")},
			{Name: "booleanValue", Sig: "()Z", Impl: getPrim("value", 'Z')},
		},
	}))

	must(vm.defineLocked(ClassDef{
		Name:      "java/util/Map",
		Interface: true,
		Methods: []MethodDef{
			{Name: "put", Sig: "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"},
			{Name: "get", Sig: "(Ljava/lang/Object;)Ljava/lang/Object;"},
			{Name: "size", Sig: "()I"},
		},
	}))
	must(vm.defineLocked(ClassDef{
		Name:       "java/util/HashMap",
		Interfaces: []string{"java/util/Map"},
		Methods: []MethodDef{
			{Name: "<init>", Sig: "()V", Impl: mapInit},
			{Name: "put", Sig: "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", Impl: mapPut},
			{Name: "get", Sig: "(Ljava/lang/Object;)Ljava/lang/Object;", Impl: mapGet},
			{Name: "size", Sig: "()I", Impl: mapSize},
		},
	}))

	must(vm.defineLocked(ClassDef{
		Name:      "java/util/List",
		Interface: true,
		Methods: []MethodDef{
			{Name: "add", Sig: "(ILjava/lang/Object;)V"},
			{Name: "get", Sig: "(I)Ljava/lang/Object;"},
			{Name: "size", Sig: "()I"},
		},
	}))
	must(vm.defineLocked(ClassDef{
		Name:       "java/util/ArrayList",
		Interfaces: []string{"java/util/List"},
		Methods: []MethodDef{
			{Name: "<init>", Sig: "()V", Impl: listInit},
			{Name: "<init>", Sig: "(I)V", Impl: listInit},
			{Name: "add", Sig: "(ILjava/lang/Object;)V", Impl: listInsert},
			{Name: "add", Sig: "(Ljava/lang/Object;)Z", Impl: listAppend},
			{Name: "get", Sig: "(I)Ljava/lang/Object;", Impl: listGet},
			{Name: "size", Sig: "()I", Impl: listSize},
		},
	}))

	must(vm.defineLocked(ClassDef{
		Name: "kotlin/Pair",
		Fields: []FieldDef{
			{Name: "first", Sig: "Ljava/lang/Object;"},
			{Name: "second", Sig: "Ljava/lang/Object;"},
		},
		Methods: []MethodDef{
			{Name: "<init>", Sig: "(Ljava/lang/Object;Ljava/lang/Object;)V", Impl: pairInit},
			{Name: "getFirst", Sig: "()Ljava/lang/Object;", Impl: getRef("first")},
			{Name: "getSecond", Sig: "()Ljava/lang/Object;", Impl: getRef("second")},
		},
	}))
}

func throwableDef(name, super string) ClassDef {
	def := ClassDef{
		Name:  name,
		Super: super,
		Methods: []MethodDef{
			{Name: "<init>", Sig: "()V", Impl: nop},
			{Name: "<init>", Sig: "(Ljava/lang/String;)V", Impl: setRef("detailMessage")},
		},
	}
	if super == "" {
		def.Fields = []FieldDef{{Name: "detailMessage", Sig: "Ljava/lang/String;"}}
		def.Methods = append(def.Methods, MethodDef{
			Name: "getMessage", Sig: "()Ljava/lang/String;", Impl: getRef("detailMessage"),
		})
	}
	return def
}

func nop(*Env, jni.Object, []jni.Value) jni.Value { return jni.Void }

func (e *Env) self(recv jni.Object) *object {
	o, _ := e.resolve("self", recv)
	return o
}

func setPrim(name string) Impl {
	return func(e *Env, recv jni.Object, args []jni.Value) jni.Value {
		o := e.self(recv)
		o.set(o.class.findField(name, ""), slot{prim: args[0].Int})
		return jni.Void
	}
}

func getPrim(name string, kind byte) Impl {
	return func(e *Env, recv jni.Object, _ []jni.Value) jni.Value {
		o := e.self(recv)
		return jni.Value{Type: kind, Int: o.get(o.class.findField(name, "")).prim}
	}
}

func setRef(name string) Impl {
	return func(e *Env, recv jni.Object, args []jni.Value) jni.Value {
		o := e.self(recv)
		v, _ := e.resolve("set", args[0].Obj)
		o.set(o.class.findField(name, ""), slot{ref: v})
		return jni.Void
	}
}

func getRef(name string) Impl {
	return func(e *Env, recv jni.Object, _ []jni.Value) jni.Value {
		o := e.self(recv)
		return jni.Obj(e.newLocal(name, o.get(o.class.findField(name, "")).ref))
	}
}

func stringLength(e *Env, recv jni.Object, _ []jni.Value) jni.Value {
	return jni.Int(int32(len(e.self(recv).str)))
}

func pairInit(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	setRef("first")(e, recv, args[:1])
	setRef("second")(e, recv, args[1:])
	return jni.Void
}

// hashMap keeps insertion order so encoded config maps read back in the
// order the engine produced them.
type hashMap struct {
	keys []*object
	vals []*object
}

func (m *hashMap) index(k *object) int {
	return slices.IndexFunc(m.keys, func(x *object) bool { return sameValue(x, k) })
}

// sameValue compares keys the way equals() does for the boxed and string
// types the bridge produces, and by identity otherwise.
func sameValue(a, b *object) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.class != b.class {
		return false
	}
	switch a.class.name {
	case "java/lang/String":
		return slices.Equal(a.str, b.str)
	case "java/lang/Integer", "java/lang/Boolean":
		return a.fields[0].prim == b.fields[0].prim
	}
	return false
}

func mapInit(e *Env, recv jni.Object, _ []jni.Value) jni.Value {
	e.self(recv).payload = &hashMap{}
	return jni.Void
}

func mapPut(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	o := e.self(recv)
	k, _ := e.resolve("put", args[0].Obj)
	v, _ := e.resolve("put", args[1].Obj)

	o.mu.Lock()
	m := o.payload.(*hashMap)
	var prev *object
	if i := m.index(k); i >= 0 {
		prev = m.vals[i]
		m.vals[i] = v
	} else {
		m.keys = append(m.keys, k)
		m.vals = append(m.vals, v)
	}
	o.mu.Unlock()
	return jni.Obj(e.newLocal("put", prev))
}

func mapGet(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	o := e.self(recv)
	k, _ := e.resolve("get", args[0].Obj)

	o.mu.Lock()
	m := o.payload.(*hashMap)
	var v *object
	if i := m.index(k); i >= 0 {
		v = m.vals[i]
	}
	o.mu.Unlock()
	return jni.Obj(e.newLocal("get", v))
}

func mapSize(e *Env, recv jni.Object, _ []jni.Value) jni.Value {
	o := e.self(recv)
	o.mu.Lock()
	defer o.mu.Unlock()
	return jni.Int(int32(len(o.payload.(*hashMap).keys)))
}

type arrayList struct {
	elems []*object
}

func listInit(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	n := 0
	if len(args) == 1 {
		if args[0].AsInt() < 0 {
			e.throwNew("java/lang/IllegalArgumentException", fmt.Sprintf("Illegal Capacity: %d", args[0].AsInt()))
			return jni.Void
		}
		n = int(args[0].AsInt())
	}
	e.self(recv).payload = &arrayList{elems: make([]*object, 0, n)}
	return jni.Void
}

func listInsert(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	o := e.self(recv)
	v, _ := e.resolve("add", args[1].Obj)
	i := int(args[0].AsInt())

	o.mu.Lock()
	l := o.payload.(*arrayList)
	if i < 0 || i > len(l.elems) {
		n := len(l.elems)
		o.mu.Unlock()
		e.throwNew("java/lang/IndexOutOfBoundsException", fmt.Sprintf("Index: %d, Size: %d", i, n))
		return jni.Void
	}
	l.elems = slices.Insert(l.elems, i, v)
	o.mu.Unlock()
	return jni.Void
}

func listAppend(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	o := e.self(recv)
	v, _ := e.resolve("add", args[0].Obj)
	o.mu.Lock()
	l := o.payload.(*arrayList)
	l.elems = append(l.elems, v)
	o.mu.Unlock()
	return jni.Bool(true)
}

func listGet(e *Env, recv jni.Object, args []jni.Value) jni.Value {
	o := e.self(recv)
	i := int(args[0].AsInt())
	o.mu.Lock()
	l := o.payload.(*arrayList)
	if i < 0 || i >= len(l.elems) {
		n := len(l.elems)
		o.mu.Unlock()
		e.throwNew("java/lang/IndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, n))
		return jni.Obj(0)
	}
	v := l.elems[i]
	o.mu.Unlock()
	return jni.Obj(e.newLocal("get", v))
}

func listSize(e *Env, recv jni.Object, _ []jni.Value) jni.Value {
	o := e.self(recv)
	o.mu.Lock()
	defer o.mu.Unlock()
	return jni.Int(int32(len(o.payload.(*arrayList).elems)))
}
