package bridge

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// GlobalRefs holds the class references and member ids the bridge uses.
// It is immutable once published.
type GlobalRefs struct {
	Object jni.Class
	String jni.Class

	Integer         jni.Class
	IntegerInit     jni.MethodID
	IntegerIntValue jni.MethodID

	Boolean             jni.Class
	BooleanInit         jni.MethodID
	BooleanBooleanValue jni.MethodID

	HashMap     jni.Class
	HashMapInit jni.MethodID
	HashMapPut  jni.MethodID

	ArrayList     jni.Class
	ArrayListInit jni.MethodID
	ArrayListAdd  jni.MethodID

	Pair          jni.Class
	PairGetFirst  jni.MethodID
	PairGetSecond jni.MethodID

	Exception jni.Class

	Rime                   jni.Class
	RimeHandleNotification jni.MethodID

	Composition CompositionRefs
	Candidate   CandidateRefs
	Commit      CommitRefs
	Context     ContextRefs
	Menu        MenuRefs
	Status      StatusRefs
	SchemaItem  SchemaItemRefs
}

// CompositionRefs locates the fields of RimeComposition.
type CompositionRefs struct {
	Class     jni.Class
	Length    jni.FieldID
	CursorPos jni.FieldID
	SelStart  jni.FieldID
	SelEnd    jni.FieldID
	Preedit   jni.FieldID
}

// CandidateRefs locates the constructor and fields of CandidateListItem.
type CandidateRefs struct {
	Class   jni.Class
	Init    jni.MethodID
	Text    jni.FieldID
	Comment jni.FieldID
}

// CommitRefs locates the text field of RimeCommit.
type CommitRefs struct {
	Class jni.Class
	Text  jni.FieldID
}

// ContextRefs locates the fields of RimeContext.
type ContextRefs struct {
	Class             jni.Class
	Composition       jni.FieldID
	Menu              jni.FieldID
	CommitTextPreview jni.FieldID
	SelectLabels      jni.FieldID
}

// MenuRefs locates the fields of RimeMenu.
type MenuRefs struct {
	Class                     jni.Class
	PageSize                  jni.FieldID
	PageNo                    jni.FieldID
	IsLastPage                jni.FieldID
	HighlightedCandidateIndex jni.FieldID
	NumCandidates             jni.FieldID
	Candidates                jni.FieldID
}

// StatusRefs locates the mode flags and schema fields of RimeStatus.
type StatusRefs struct {
	Class         jni.Class
	SchemaID      jni.FieldID
	SchemaName    jni.FieldID
	IsDisabled    jni.FieldID
	IsComposing   jni.FieldID
	IsASCIIMode   jni.FieldID
	IsFullShape   jni.FieldID
	IsSimplified  jni.FieldID
	IsTraditional jni.FieldID
	IsASCIIPunct  jni.FieldID
}

// SchemaItemRefs locates the constructor and fields of SchemaListItem.
type SchemaItemRefs struct {
	Class      jni.Class
	Init       jni.MethodID
	SchemaID   jni.FieldID
	SchemaName jni.FieldID
}

// Cache resolves GlobalRefs once and publishes them to every thread.
type Cache struct {
	refs atomic.Pointer[GlobalRefs]
	err  error
	done bool
	mu   sync.Mutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Init resolves every class and member on the calling thread, attaching
// it when needed. It runs once; later calls return the first result. When
// anything is missing, every global ref taken so far is deleted and the
// error lists what was not found.
func (c *Cache) Init(vm jni.VM) error {
	if c.refs.Load() != nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.err
	}
	c.done = true

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	att, err := AttachEnv(vm)
	if err != nil {
		c.err = err
		return err
	}
	defer att.Release()

	refs, err := resolveAll(att.Env())
	if err != nil {
		c.err = err
		Logger().Error("reflection cache unresolved", zap.Error(err))
		return err
	}
	c.refs.Store(refs)
	Logger().Debug("reflection cache ready")
	return nil
}

// Global returns the published table, or nil.
func (c *Cache) Global() *GlobalRefs { return c.refs.Load() }

// MustGlobal returns the published table and panics when there is none.
func (c *Cache) MustGlobal() *GlobalRefs {
	refs := c.refs.Load()
	if refs == nil {
		panic(errors.NotInitialized(errors.PhaseResolve, "reflection cache"))
	}
	return refs
}

// Shutdown deletes the global refs. Global returns nil afterwards and Init
// does not rebuild the table.
func (c *Cache) Shutdown(vm jni.VM) {
	refs := c.refs.Swap(nil)
	if refs == nil {
		return
	}
	err := RunAttached(vm, func(env jni.Env) error {
		for _, g := range refs.classes() {
			env.DeleteGlobalRef(g)
		}
		return nil
	})
	if err != nil {
		Logger().Warn("reflection cache shutdown", zap.Error(err))
	}
}

func (g *GlobalRefs) classes() []jni.Class {
	return []jni.Class{
		g.Object, g.String, g.Integer, g.Boolean, g.HashMap, g.ArrayList,
		g.Pair, g.Exception, g.Rime,
		g.Composition.Class, g.Candidate.Class, g.Commit.Class, g.Context.Class,
		g.Menu.Class, g.Status.Class, g.SchemaItem.Class,
	}
}

// resolver records every failed lookup instead of stopping at the first.
type resolver struct {
	env     jni.Env
	missing []errors.Unresolved
	globals []jni.Object
}

func (r *resolver) class(name string) jni.Class {
	cls, err := NewJClass(r.env, name)
	if err != nil {
		r.env.ExceptionClear()
		r.missing = append(r.missing, errors.Unresolved{Class: name})
		return 0
	}
	defer cls.Release()

	g := r.env.NewGlobalRef(cls.Class())
	if g == 0 {
		r.env.ExceptionClear()
		r.missing = append(r.missing, errors.Unresolved{Class: name})
		return 0
	}
	r.globals = append(r.globals, g)
	return g
}

func (r *resolver) method(cls jni.Class, class, name, sig string) jni.MethodID {
	if cls == 0 {
		return 0
	}
	id := r.env.GetMethodID(cls, name, sig)
	if id == 0 {
		r.env.ExceptionClear()
		r.missing = append(r.missing, errors.Unresolved{Class: class, Member: name, Signature: sig})
	}
	return id
}

func (r *resolver) staticMethod(cls jni.Class, class, name, sig string) jni.MethodID {
	if cls == 0 {
		return 0
	}
	id := r.env.GetStaticMethodID(cls, name, sig)
	if id == 0 {
		r.env.ExceptionClear()
		r.missing = append(r.missing, errors.Unresolved{Class: class, Member: name, Signature: sig})
	}
	return id
}

// fields resolves the fields of a record in declaration order.
func (r *resolver) fields(cls jni.Class, rec contract.Record) []jni.FieldID {
	ids := make([]jni.FieldID, len(rec.Fields))
	if cls == 0 {
		return ids
	}
	for i, f := range rec.Fields {
		ids[i] = r.env.GetFieldID(cls, f.Name, f.Sig)
		if ids[i] == 0 {
			r.env.ExceptionClear()
			r.missing = append(r.missing, errors.Unresolved{Class: rec.Class, Member: f.Name, Signature: f.Sig})
		}
	}
	return ids
}

func resolveAll(env jni.Env) (*GlobalRefs, error) {
	r := &resolver{env: env}
	g := &GlobalRefs{}

	g.Object = r.class(contract.ObjectClass)
	g.String = r.class(contract.StringClass)

	g.Integer = r.class(contract.IntegerClass)
	g.IntegerInit = r.method(g.Integer, contract.IntegerClass, contract.Init, contract.SigIntegerInit)
	g.IntegerIntValue = r.method(g.Integer, contract.IntegerClass, "intValue", contract.SigIntValue)

	g.Boolean = r.class(contract.BooleanClass)
	g.BooleanInit = r.method(g.Boolean, contract.BooleanClass, contract.Init, contract.SigBooleanInit)
	g.BooleanBooleanValue = r.method(g.Boolean, contract.BooleanClass, "booleanValue", contract.SigBooleanValue)

	g.HashMap = r.class(contract.HashMapClass)
	g.HashMapInit = r.method(g.HashMap, contract.HashMapClass, contract.Init, contract.SigNoArgInit)
	g.HashMapPut = r.method(g.HashMap, contract.HashMapClass, "put", contract.SigMapPut)

	g.ArrayList = r.class(contract.ArrayListClass)
	g.ArrayListInit = r.method(g.ArrayList, contract.ArrayListClass, contract.Init, contract.SigListInit)
	g.ArrayListAdd = r.method(g.ArrayList, contract.ArrayListClass, "add", contract.SigListAdd)

	g.Pair = r.class(contract.PairClass)
	g.PairGetFirst = r.method(g.Pair, contract.PairClass, "getFirst", contract.SigGetObject)
	g.PairGetSecond = r.method(g.Pair, contract.PairClass, "getSecond", contract.SigGetObject)

	g.Exception = r.class(contract.ExceptionClass)

	g.Rime = r.class(contract.RimeClass)
	g.RimeHandleNotification = r.staticMethod(g.Rime, contract.RimeClass,
		contract.HandleNotification, contract.SigHandleNotification)

	cls := r.class(contract.Composition.Class)
	f := r.fields(cls, contract.Composition)
	g.Composition = CompositionRefs{Class: cls, Length: f[0], CursorPos: f[1], SelStart: f[2], SelEnd: f[3], Preedit: f[4]}

	cls = r.class(contract.Candidate.Class)
	f = r.fields(cls, contract.Candidate)
	g.Candidate = CandidateRefs{
		Class:   cls,
		Init:    r.method(cls, contract.Candidate.Class, contract.Init, contract.Candidate.Ctor),
		Text:    f[0],
		Comment: f[1],
	}

	cls = r.class(contract.Commit.Class)
	f = r.fields(cls, contract.Commit)
	g.Commit = CommitRefs{Class: cls, Text: f[0]}

	cls = r.class(contract.Context.Class)
	f = r.fields(cls, contract.Context)
	g.Context = ContextRefs{Class: cls, Composition: f[0], Menu: f[1], CommitTextPreview: f[2], SelectLabels: f[3]}

	cls = r.class(contract.Menu.Class)
	f = r.fields(cls, contract.Menu)
	g.Menu = MenuRefs{
		Class:                     cls,
		PageSize:                  f[0],
		PageNo:                    f[1],
		IsLastPage:                f[2],
		HighlightedCandidateIndex: f[3],
		NumCandidates:             f[4],
		Candidates:                f[5],
	}

	cls = r.class(contract.Status.Class)
	f = r.fields(cls, contract.Status)
	g.Status = StatusRefs{
		Class:         cls,
		SchemaID:      f[0],
		SchemaName:    f[1],
		IsDisabled:    f[2],
		IsComposing:   f[3],
		IsASCIIMode:   f[4],
		IsFullShape:   f[5],
		IsSimplified:  f[6],
		IsTraditional: f[7],
		IsASCIIPunct:  f[8],
	}

	cls = r.class(contract.SchemaItem.Class)
	f = r.fields(cls, contract.SchemaItem)
	g.SchemaItem = SchemaItemRefs{
		Class:      cls,
		Init:       r.method(cls, contract.SchemaItem.Class, contract.Init, contract.SchemaItem.Ctor),
		SchemaID:   f[0],
		SchemaName: f[1],
	}

	if len(r.missing) > 0 {
		for _, ref := range r.globals {
			env.DeleteGlobalRef(ref)
		}
		return nil, errors.NewUnresolvedError(r.missing)
	}
	return g, nil
}
