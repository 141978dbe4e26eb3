package managed

import (
	stderrors "errors"
	"runtime"
	"sync"
	"testing"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

type fatalLog struct {
	mu   sync.Mutex
	errs []error
}

func (f *fatalLog) record(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

func (f *fatalLog) kinds() []errors.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errors.Kind, 0, len(f.errs))
	for _, err := range f.errs {
		var e *errors.Error
		if stderrors.As(err, &e) {
			out = append(out, e.Kind)
		}
	}
	return out
}

func newTestVM(t *testing.T, opts Options) (*VM, *fatalLog) {
	t.Helper()
	fl := &fatalLog{}
	if opts.OnFatal == nil {
		opts.OnFatal = fl.record
	}
	return New(opts), fl
}

// attach locks the test goroutine to its thread and attaches it.
func attach(t *testing.T, vm *VM) *Env {
	t.Helper()
	runtime.LockOSThread()
	env, rc := vm.AttachCurrentThread()
	if rc != jni.OK {
		runtime.UnlockOSThread()
		t.Fatalf("AttachCurrentThread rc = %d", rc)
	}
	t.Cleanup(func() {
		vm.DetachCurrentThread()
		runtime.UnlockOSThread()
	})
	return env.(*Env)
}

func TestAttachDetach(t *testing.T) {
	vm, _ := newTestVM(t, Options{})

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if env, rc := vm.GetEnv(jni.Version16); env != nil || rc != jni.EDETACHED {
		t.Fatalf("GetEnv before attach = %v, %d", env, rc)
	}

	first, rc := vm.AttachCurrentThread()
	if rc != jni.OK {
		t.Fatalf("attach rc = %d", rc)
	}
	second, rc := vm.AttachCurrentThread()
	if rc != jni.OK || second != first {
		t.Fatal("second attach should return the existing env")
	}
	got, rc := vm.GetEnv(jni.Version16)
	if rc != jni.OK || got != first {
		t.Fatal("GetEnv should return the attached env")
	}
	if s := vm.Stats(); s.Attaches != 1 || s.Threads != 1 {
		t.Fatalf("stats after attach = %+v", s)
	}

	if rc := vm.DetachCurrentThread(); rc != jni.OK {
		t.Fatalf("detach rc = %d", rc)
	}
	if rc := vm.DetachCurrentThread(); rc != jni.EDETACHED {
		t.Fatalf("second detach rc = %d", rc)
	}
	if s := vm.Stats(); s.Detaches != 1 || s.Threads != 0 {
		t.Fatalf("stats after detach = %+v", s)
	}
}

func TestGetEnv_Version(t *testing.T) {
	vm, _ := newTestVM(t, Options{})
	attach(t, vm)

	if _, rc := vm.GetEnv(0x00010009); rc != jni.EVERSION {
		t.Fatalf("rc = %d, want EVERSION", rc)
	}
}

func TestMaxThreads(t *testing.T) {
	vm, _ := newTestVM(t, Options{MaxThreads: 1})
	attach(t, vm)

	rc := make(chan int32)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		_, r := vm.AttachCurrentThread()
		rc <- r
	}()
	if r := <-rc; r != jni.ERR {
		t.Fatalf("attach beyond limit rc = %d", r)
	}
}

func TestFindClass_Missing(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	if cls := env.FindClass("com/example/Missing"); cls != 0 {
		t.Fatal("missing class should return null")
	}
	if !env.ExceptionCheck() {
		t.Fatal("missing class should leave an exception pending")
	}
	exc := env.ExceptionOccurred()
	if name := env.ClassName(exc); name != "java/lang/NoClassDefFoundError" {
		t.Fatalf("exception class = %s", name)
	}
	env.ExceptionClear()
	env.DeleteLocalRef(exc)

	if env.FindClass("java/lang/String") == 0 {
		t.Fatal("String should resolve")
	}
	if len(fl.kinds()) != 0 {
		t.Fatalf("unexpected fatal errors: %v", fl.kinds())
	}
}

func TestFatal_PendingException(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	env.FindClass("com/example/Missing")
	env.FindClass("java/lang/String")

	kinds := fl.kinds()
	if len(kinds) != 1 || kinds[0] != errors.KindPendingException {
		t.Fatalf("fatal kinds = %v", kinds)
	}
}

func TestFatalError_KeepsMessage(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	env.FatalError("100% broken: %d")

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if len(fl.errs) != 1 {
		t.Fatalf("expected 1 fatal error, got %d", len(fl.errs))
	}
	var e *errors.Error
	if !stderrors.As(fl.errs[0], &e) {
		t.Fatalf("unexpected error type %T", fl.errs[0])
	}
	if e.Detail != "100% broken: %d" {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestFatal_PanicsWithoutHandler(t *testing.T) {
	vm := New(Options{})
	env := attach(t, vm)

	defer func() {
		r := recover()
		e, ok := r.(*errors.Error)
		if !ok || e.Kind != errors.KindStaleHandle {
			t.Fatalf("recovered %v", r)
		}
	}()
	s := env.NewString("x")
	env.DeleteLocalRef(s)
	env.DeleteLocalRef(s)
}

func TestFatal_LocalCapacity(t *testing.T) {
	vm, fl := newTestVM(t, Options{LocalCapacity: 4})
	env := attach(t, vm)

	for i := 0; i < 4; i++ {
		if env.NewString("x") == 0 {
			t.Fatalf("string %d should fit", i)
		}
	}
	if env.NewString("overflow") != 0 {
		t.Fatal("overflowing string should return null")
	}
	kinds := fl.kinds()
	if len(kinds) != 1 || kinds[0] != errors.KindCapacity {
		t.Fatalf("fatal kinds = %v", kinds)
	}
}

func TestFatal_WrongThread(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		env.FindClass("java/lang/String")
	}()
	<-done

	kinds := fl.kinds()
	if len(kinds) != 1 || kinds[0] != errors.KindWrongThread {
		t.Fatalf("fatal kinds = %v", kinds)
	}
}

func TestFatal_UseAfterDetach(t *testing.T) {
	vm, fl := newTestVM(t, Options{})

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	je, _ := vm.AttachCurrentThread()
	vm.DetachCurrentThread()

	je.FindClass("java/lang/String")
	kinds := fl.kinds()
	if len(kinds) != 1 || kinds[0] != errors.KindNotAttached {
		t.Fatalf("fatal kinds = %v", kinds)
	}
}

func TestGlobalRefs(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	local := env.FindClass("java/lang/Integer")
	global := env.NewGlobalRef(local)
	env.DeleteLocalRef(local)

	if vm.Stats().LiveGlobals != 1 {
		t.Fatalf("LiveGlobals = %d", vm.Stats().LiveGlobals)
	}

	done := make(chan bool)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		other, _ := vm.AttachCurrentThread()
		defer vm.DetachCurrentThread()
		done <- other.GetMethodID(global, "intValue", "()I") != 0
	}()
	if !<-done {
		t.Fatal("global ref should be usable from another thread")
	}

	env.DeleteGlobalRef(global)
	if s := vm.Stats(); s.LiveGlobals != 0 || s.GlobalsCreated != 1 || s.GlobalsDeleted != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if len(fl.kinds()) != 0 {
		t.Fatalf("unexpected fatal errors: %v", fl.kinds())
	}
}

func TestLocalFrames(t *testing.T) {
	vm, _ := newTestVM(t, Options{})
	env := attach(t, vm)
	base := env.LiveLocals()

	if rc := env.PushLocalFrame(8); rc != jni.OK {
		t.Fatalf("PushLocalFrame rc = %d", rc)
	}
	for i := 0; i < 5; i++ {
		env.NewString("tmp")
	}
	keep := env.NewString("keep")
	kept := env.PopLocalFrame(keep)

	if env.LiveLocals() != base+1 {
		t.Fatalf("LiveLocals = %d, want %d", env.LiveLocals(), base+1)
	}
	if s, ok := env.GoString(kept); !ok || s != "keep" {
		t.Fatalf("kept = %q, %v", s, ok)
	}
}

func TestStrings(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	s := env.NewStringUTF(jni.EncodeMUTF8("朙月\x00😀"))
	if n := env.GetStringLength(s); n != 5 {
		t.Fatalf("GetStringLength = %d, want 5", n)
	}
	chars := env.GetStringUTFChars(s)
	if vm.Stats().OutstandingUTF != 1 {
		t.Fatal("buffer should be outstanding")
	}
	text, err := jni.DecodeMUTF8(chars.Data)
	if err != nil || text != "朙月\x00😀" {
		t.Fatalf("decoded %q, %v", text, err)
	}
	if int(env.GetStringUTFLength(s)) != len(chars.Data) {
		t.Fatal("GetStringUTFLength mismatch")
	}
	env.ReleaseStringUTFChars(s, chars)
	if vm.Stats().OutstandingUTF != 0 {
		t.Fatal("buffer should be released")
	}

	env.ReleaseStringUTFChars(s, chars)
	kinds := fl.kinds()
	if len(kinds) != 1 || kinds[0] != errors.KindStaleHandle {
		t.Fatalf("double release should be fatal, got %v", kinds)
	}
}

func TestArrays(t *testing.T) {
	vm, _ := newTestVM(t, Options{})
	env := attach(t, vm)

	strCls := env.FindClass("java/lang/String")
	arr := env.NewObjectArray(3, strCls, 0)
	if env.GetArrayLength(arr) != 3 {
		t.Fatal("array length")
	}
	env.SetObjectArrayElement(arr, 1, env.NewString("b"))
	if s, _ := env.GoString(env.GetObjectArrayElement(arr, 1)); s != "b" {
		t.Fatalf("element 1 = %q", s)
	}
	if env.GetObjectArrayElement(arr, 0) != 0 {
		t.Fatal("unset element should be null")
	}

	env.GetObjectArrayElement(arr, 3)
	if got := env.ClassName(env.ExceptionOccurred()); got != "java/lang/ArrayIndexOutOfBoundsException" {
		t.Fatalf("exception = %s", got)
	}
	env.ExceptionClear()

	intCls := env.FindClass("java/lang/Integer")
	ctor := env.GetMethodID(intCls, "<init>", "(I)V")
	env.SetObjectArrayElement(arr, 0, env.NewObject(intCls, ctor, jni.Int(1)))
	if got := env.ClassName(env.ExceptionOccurred()); got != "java/lang/ArrayStoreException" {
		t.Fatalf("exception = %s", got)
	}
	env.ExceptionClear()
}

func TestCollections(t *testing.T) {
	vm, _ := newTestVM(t, Options{})
	env := attach(t, vm)

	m, err := env.Construct("java/util/HashMap", "()V")
	if err != nil {
		t.Fatal(err)
	}
	for _, kv := range [][2]string{{"b", "1"}, {"a", "2"}, {"b", "3"}} {
		if _, err := env.InvokeMethod(m, "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;",
			jni.Obj(env.NewString(kv[0])), jni.Obj(env.NewString(kv[1]))); err != nil {
			t.Fatal(err)
		}
	}
	size, _ := env.InvokeMethod(m, "size", "()I")
	if size.AsInt() != 2 {
		t.Fatalf("size = %d", size.AsInt())
	}
	v, _ := env.InvokeMethod(m, "get", "(Ljava/lang/Object;)Ljava/lang/Object;", jni.Obj(env.NewString("b")))
	if s, _ := env.GoString(v.Obj); s != "3" {
		t.Fatalf("get(b) = %q", s)
	}
	if n := env.MapLen(m); n != 2 {
		t.Fatalf("MapLen = %d", n)
	}
	k, val := env.MapEntry(m, 1)
	if ks, _ := env.GoString(k); ks != "a" {
		t.Fatalf("second key = %q, want insertion order", ks)
	}
	if vs, _ := env.GoString(val); vs != "2" {
		t.Fatalf("second value = %q", vs)
	}
	if env.MapLen(env.NewString("x")) != -1 {
		t.Fatal("MapLen of a non-map should be -1")
	}

	l, err := env.Construct("java/util/ArrayList", "(I)V", jni.Int(2))
	if err != nil {
		t.Fatal(err)
	}
	env.InvokeMethod(l, "add", "(ILjava/lang/Object;)V", jni.Int(0), jni.Obj(env.NewString("x")))
	_, err = env.InvokeMethod(l, "add", "(ILjava/lang/Object;)V", jni.Int(5), jni.Obj(env.NewString("y")))
	var thr *Throwable
	if !stderrors.As(err, &thr) || thr.Class != "java/lang/IndexOutOfBoundsException" {
		t.Fatalf("err = %v", err)
	}
}

func TestNativeMethods(t *testing.T) {
	vm, fl := newTestVM(t, Options{})
	env := attach(t, vm)

	err := vm.DefineClass(ClassDef{
		Name: "com/example/Native",
		Methods: []MethodDef{
			{Name: "greet", Sig: "(Ljava/lang/String;)Ljava/lang/String;", Static: true, Native: true},
			{Name: "fail", Sig: "()V", Static: true, Native: true},
			{Name: "unbound", Sig: "()V", Static: true, Native: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	cls := env.FindClass("com/example/Native")
	rc := env.RegisterNatives(cls, []jni.NativeMethod{
		{Name: "greet", Signature: "(Ljava/lang/String;)Ljava/lang/String;", Fn: func(e jni.Env, _ jni.Object, args []jni.Value) jni.Value {
			chars := e.GetStringUTFChars(args[0].Obj)
			name, _ := jni.DecodeMUTF8(chars.Data)
			e.ReleaseStringUTFChars(args[0].Obj, chars)
			for i := 0; i < 10; i++ {
				e.NewStringUTF([]byte("scratch"))
			}
			return jni.Obj(e.NewStringUTF(jni.EncodeMUTF8("hello " + name)))
		}},
		{Name: "fail", Signature: "()V", Fn: func(e jni.Env, _ jni.Object, _ []jni.Value) jni.Value {
			exc := e.FindClass("java/lang/Exception")
			e.ThrowNew(exc, "boom")
			return jni.Void
		}},
	})
	if rc != jni.OK {
		t.Fatalf("RegisterNatives rc = %d", rc)
	}
	if got := vm.BoundNatives("com/example/Native"); len(got) != 2 {
		t.Fatalf("BoundNatives = %v", got)
	}

	base := env.LiveLocals()
	v, err := env.InvokeStatic("com/example/Native", "greet", "(Ljava/lang/String;)Ljava/lang/String;", jni.Obj(env.NewString("rime")))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := env.GoString(v.Obj); s != "hello rime" {
		t.Fatalf("greet = %q", s)
	}
	if env.LiveLocals() != base+2 {
		t.Fatalf("native frame leaked locals: %d, want %d", env.LiveLocals(), base+2)
	}

	_, err = env.InvokeStatic("com/example/Native", "fail", "()V")
	if !stderrors.Is(err, &Throwable{Class: "java/lang/Exception", Message: "boom"}) {
		t.Fatalf("fail err = %v", err)
	}

	_, err = env.InvokeStatic("com/example/Native", "unbound", "()V")
	var thr *Throwable
	if !stderrors.As(err, &thr) || thr.Class != "java/lang/UnsatisfiedLinkError" {
		t.Fatalf("unbound err = %v", err)
	}

	rc = env.RegisterNatives(cls, []jni.NativeMethod{{Name: "nope", Signature: "()V", Fn: func(jni.Env, jni.Object, []jni.Value) jni.Value { return jni.Void }}})
	if rc != jni.ERR || !env.ExceptionCheck() {
		t.Fatal("registering an undeclared native should fail with an exception")
	}
	env.ExceptionClear()

	if len(fl.kinds()) != 0 {
		t.Fatalf("unexpected fatal errors: %v", fl.kinds())
	}
}

func TestDetach_RefusedInsideNative(t *testing.T) {
	vm, _ := newTestVM(t, Options{})
	env := attach(t, vm)

	vm.DefineClass(ClassDef{
		Name:    "com/example/Detacher",
		Methods: []MethodDef{{Name: "run", Sig: "()I", Static: true, Native: true}},
	})
	cls := env.FindClass("com/example/Detacher")
	env.RegisterNatives(cls, []jni.NativeMethod{{Name: "run", Signature: "()I", Fn: func(e jni.Env, _ jni.Object, _ []jni.Value) jni.Value {
		return jni.Int(e.GetJavaVM().DetachCurrentThread())
	}}})

	v, err := env.InvokeStatic("com/example/Detacher", "run", "()I")
	if err != nil {
		t.Fatal(err)
	}
	if v.AsInt() != jni.ERR {
		t.Fatalf("detach inside native rc = %d", v.AsInt())
	}
}

func TestDefineClass_Errors(t *testing.T) {
	vm, _ := newTestVM(t, Options{})

	tests := []struct {
		name string
		def  ClassDef
	}{
		{"duplicate", ClassDef{Name: "java/lang/String"}},
		{"missing super", ClassDef{Name: "a/B", Super: "a/Missing"}},
		{"bad field sig", ClassDef{Name: "a/C", Fields: []FieldDef{{Name: "x", Sig: "Q"}}}},
		{"bad method sig", ClassDef{Name: "a/D", Methods: []MethodDef{{Name: "m", Sig: "(V)V"}}}},
		{"not an interface", ClassDef{Name: "a/E", Interfaces: []string{"java/lang/String"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := vm.DefineClass(tt.def); err == nil {
				t.Fatal("DefineClass should fail")
			}
		})
	}
}

func TestObserver(t *testing.T) {
	vm, _ := newTestVM(t, Options{})
	var mu sync.Mutex
	counts := map[EventType]int{}
	unsubscribe := vm.Subscribe(ObserverFunc(func(e Event) {
		mu.Lock()
		counts[e.Type]++
		mu.Unlock()
	}))
	defer unsubscribe()

	env := attach(t, vm)
	s := env.NewString("x")
	env.DeleteLocalRef(s)

	mu.Lock()
	defer mu.Unlock()
	if counts[EventAttach] != 1 || counts[EventLocalNew] != 1 || counts[EventLocalDelete] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
