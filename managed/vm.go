package managed

import (
	"strings"
	"sync"
	"unicode/utf16"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/internal/osthread"
	"github.com/wippyai/rime-bridge/internal/reftable"
	"github.com/wippyai/rime-bridge/jni"
)

const (
	// DefaultLocalCapacity is the local reference budget of a thread's base frame.
	DefaultLocalCapacity = 512
	// nativeFrameCapacity is the budget each native call receives on top of its arguments.
	nativeFrameCapacity = 16
)

// Options configures a VM.
type Options struct {
	// OnFatal receives unrecoverable misuse of the interface: use of an env
	// on the wrong thread, local table overflow, calls with an exception
	// pending, stale references. When nil the VM panics with the error.
	OnFatal func(err error)
	// LocalCapacity is the base frame capacity of an attached thread.
	LocalCapacity int
	// MaxThreads limits concurrently attached threads. 0 means unlimited.
	MaxThreads int
}

// VM is an in-process managed runtime implementing jni.VM.
type VM struct {
	opts Options

	classes map[string]*class
	methods []*method
	fields  []*field
	mu      sync.RWMutex

	globals *reftable.Table

	threads  map[osthread.ID]*Env
	nextEnv  uint16
	threadMu sync.RWMutex

	utf   map[*jni.UTFChars]*object
	utfMu sync.Mutex

	observers map[int]Observer
	nextObs   int
	obsMu     sync.RWMutex
	counters  counters

	natives *nativeRegistry

	libraries []Library
	libMu     sync.Mutex

	objectClass *class
	classClass  *class
	stringClass *class
	throwable   *class
}

var _ jni.VM = (*VM)(nil)

// New creates a VM with the java.lang and java.util core classes defined.
func New(opts Options) *VM {
	if opts.LocalCapacity <= 0 {
		opts.LocalCapacity = DefaultLocalCapacity
	}
	vm := &VM{
		opts:      opts,
		classes:   make(map[string]*class),
		globals:   reftable.New(0),
		threads:   make(map[osthread.ID]*Env),
		utf:       make(map[*jni.UTFChars]*object),
		observers: make(map[int]Observer),
		natives:   newNativeRegistry(),
	}
	vm.globals.Subscribe(reftable.ObserverFunc(func(e reftable.Event) {
		t := EventGlobalNew
		if e.Type == reftable.EventRemoved {
			t = EventGlobalDelete
		}
		vm.emit(Event{Type: t, Class: className(e.Value), Thread: osthread.Current()})
	}))
	vm.bootstrap()
	return vm
}

// DefineClass adds a class. The superclass and interfaces must already be
// defined. Redefining an existing class is an error.
func (vm *VM) DefineClass(def ClassDef) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, err := vm.defineLocked(def)
	return err
}

// DefineClasses defines classes in order, stopping at the first failure.
func (vm *VM) DefineClasses(defs ...ClassDef) error {
	for _, def := range defs {
		if err := vm.DefineClass(def); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) defineLocked(def ClassDef) (*class, error) {
	if def.Name == "" || strings.ContainsAny(def.Name, ".;[") {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "invalid class name "+def.Name)
	}
	if _, exists := vm.classes[def.Name]; exists {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Class(def.Name).
			Detail("class already defined").
			Build()
	}

	c := &class{
		name:        def.Name,
		isInterface: def.Interface,
		isAbstract:  def.Abstract || def.Interface,
	}

	superName := def.Super
	if superName == "" && def.Name != "java/lang/Object" && !def.Interface {
		superName = "java/lang/Object"
	}
	if superName != "" {
		sup, ok := vm.classes[superName]
		if !ok {
			return nil, errors.ClassNotFound(errors.PhaseRuntime, superName)
		}
		c.super = sup
		c.nslots = sup.nslots
	}
	for _, name := range def.Interfaces {
		i, ok := vm.classes[name]
		if !ok {
			return nil, errors.ClassNotFound(errors.PhaseRuntime, name)
		}
		if !i.isInterface {
			return nil, errors.InvalidInput(errors.PhaseRuntime, name+" is not an interface")
		}
		c.interfaces = append(c.interfaces, i)
	}

	for _, fd := range def.Fields {
		desc, err := jni.ParseFieldSig(fd.Sig)
		if err != nil {
			return nil, err
		}
		f := &field{
			owner: c,
			name:  fd.Name,
			sig:   fd.Sig,
			desc:  desc,
			id:    jni.FieldID(len(vm.fields) + 1),
			slot:  c.nslots,
		}
		c.nslots++
		vm.fields = append(vm.fields, f)
		c.fields = append(c.fields, f)
	}

	for _, md := range def.Methods {
		msig, err := jni.ParseMethodSig(md.Sig)
		if err != nil {
			return nil, err
		}
		if md.Native && md.Impl != nil {
			return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Class(def.Name).
				Member(md.Name).
				Detail("native method cannot have an implementation").
				Build()
		}
		m := &method{
			owner:  c,
			impl:   md.Impl,
			name:   md.Name,
			sig:    md.Sig,
			msig:   msig,
			id:     jni.MethodID(len(vm.methods) + 1),
			static: md.Static,
			native: md.Native,
		}
		vm.methods = append(vm.methods, m)
		c.methods = append(c.methods, m)
	}

	c.mirror = &object{class: vm.classClass, payload: c}
	vm.classes[def.Name] = c

	Logger().Debug("class defined",
		zap.String("class", def.Name),
		zap.Int("fields", len(def.Fields)),
		zap.Int("methods", len(def.Methods)))
	return c, nil
}

// lookupClass resolves a class or array class by internal name.
func (vm *VM) lookupClass(name string) *class {
	vm.mu.RLock()
	c := vm.classes[name]
	vm.mu.RUnlock()
	if c != nil || !strings.HasPrefix(name, "[") {
		return c
	}

	desc, err := jni.ParseFieldSig(name)
	if err != nil || !desc.Elem().IsReference() {
		return nil
	}
	elemName := desc.Elem().ClassName()
	elem := vm.lookupClass(elemName)
	if elem == nil {
		return nil
	}
	return vm.arrayClass(elem)
}

func (vm *VM) arrayClass(elem *class) *class {
	name := "[" + elem.descriptor()

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if c, ok := vm.classes[name]; ok {
		return c
	}
	c := &class{
		name:    name,
		super:   vm.objectClass,
		elem:    elem,
		isArray: true,
	}
	c.mirror = &object{class: vm.classClass, payload: c}
	vm.classes[name] = c
	return c
}

func (vm *VM) method(id jni.MethodID) *method {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if id == 0 || int(id) > len(vm.methods) {
		return nil
	}
	return vm.methods[id-1]
}

func (vm *VM) field(id jni.FieldID) *field {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if id == 0 || int(id) > len(vm.fields) {
		return nil
	}
	return vm.fields[id-1]
}

// HasClass reports whether a class is defined.
func (vm *VM) HasClass(name string) bool {
	return vm.lookupClass(name) != nil
}

func (vm *VM) newString(s string) *object {
	return &object{class: vm.stringClass, str: utf16.Encode([]rune(s))}
}

func (vm *VM) newThrowable(c *class, msg string, withMsg bool) *object {
	obj := newInstance(c)
	if withMsg {
		if f := c.findField("detailMessage", "Ljava/lang/String;"); f != nil {
			obj.fields[f.slot] = slot{ref: vm.newString(msg)}
		}
	}
	return obj
}

func (vm *VM) throwableMessage(t *object) string {
	f := t.class.findField("detailMessage", "Ljava/lang/String;")
	if f == nil {
		return ""
	}
	s := t.get(f).ref
	if s == nil {
		return ""
	}
	return s.goString()
}

// GetEnv returns the env of the calling thread.
func (vm *VM) GetEnv(version int32) (jni.Env, int32) {
	if !supportedVersion(version) {
		return nil, jni.EVERSION
	}
	env := vm.current()
	if env == nil {
		return nil, jni.EDETACHED
	}
	return env, jni.OK
}

// AttachCurrentThread attaches the calling OS thread. The caller must hold
// runtime.LockOSThread for as long as it uses the returned env.
func (vm *VM) AttachCurrentThread() (jni.Env, int32) {
	tid := osthread.Current()

	vm.threadMu.Lock()
	if env, ok := vm.threads[tid]; ok {
		vm.threadMu.Unlock()
		return env, jni.OK
	}
	if vm.opts.MaxThreads > 0 && len(vm.threads) >= vm.opts.MaxThreads {
		vm.threadMu.Unlock()
		Logger().Warn("attach refused, thread limit reached", zap.Int("max_threads", vm.opts.MaxThreads))
		return nil, jni.ERR
	}
	vm.nextEnv = (vm.nextEnv + 1) & refEnvMask
	if vm.nextEnv == 0 {
		vm.nextEnv = 1
	}
	env := &Env{
		vm:  vm,
		id:  vm.nextEnv,
		tid: tid,
	}
	vm.threads[tid] = env
	vm.threadMu.Unlock()

	env.pushFrame(vm.opts.LocalCapacity)
	vm.emit(Event{Type: EventAttach, Thread: tid})
	Logger().Debug("thread attached", zap.Uint64("tid", uint64(tid)))
	return env, jni.OK
}

// DetachCurrentThread detaches the calling thread, freeing its locals and
// dropping any pending exception. It fails while a native call is running
// on the thread.
func (vm *VM) DetachCurrentThread() int32 {
	tid := osthread.Current()

	vm.threadMu.Lock()
	env, ok := vm.threads[tid]
	if !ok {
		vm.threadMu.Unlock()
		return jni.EDETACHED
	}
	if env.depth > 0 {
		vm.threadMu.Unlock()
		return jni.ERR
	}
	delete(vm.threads, tid)
	vm.threadMu.Unlock()

	env.detached.Store(true)
	for len(env.frames) > 0 {
		env.popFrame()
	}
	env.pending = nil
	vm.emit(Event{Type: EventDetach, Thread: tid})
	Logger().Debug("thread detached", zap.Uint64("tid", uint64(tid)))
	return jni.OK
}

// CurrentEnv returns the concrete env of the calling thread, if attached.
func (vm *VM) CurrentEnv() (*Env, bool) {
	env := vm.current()
	return env, env != nil
}

func (vm *VM) current() *Env {
	tid := osthread.Current()
	vm.threadMu.RLock()
	defer vm.threadMu.RUnlock()
	return vm.threads[tid]
}

func (vm *VM) fatal(err *errors.Error) {
	vm.emit(Event{Type: EventFatal, Detail: err.Error(), Thread: osthread.Current()})
	Logger().Error("fatal interface misuse", zap.Error(err))
	if vm.opts.OnFatal != nil {
		vm.opts.OnFatal(err)
		return
	}
	panic(err)
}

func supportedVersion(v int32) bool {
	switch v {
	case jni.Version11, jni.Version12, jni.Version14, jni.Version16:
		return true
	}
	return false
}

func className(v any) string {
	if o, ok := v.(*object); ok && o.class != nil {
		return o.class.name
	}
	return ""
}
