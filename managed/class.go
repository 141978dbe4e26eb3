package managed

import (
	"sync/atomic"

	"github.com/wippyai/rime-bridge/jni"
)

// Impl implements a method in Go on the managed side. Reference arguments
// and recv are locals in a frame that is popped when Impl returns.
type Impl func(env *Env, recv jni.Object, args []jni.Value) jni.Value

// ClassDef declares a class. Super defaults to java/lang/Object.
type ClassDef struct {
	Name       string
	Super      string
	Interfaces []string
	Fields     []FieldDef
	Methods    []MethodDef
	Interface  bool
	Abstract   bool
}

// FieldDef declares an instance field.
type FieldDef struct {
	Name string
	Sig  string
}

// MethodDef declares a method. A method is either implemented by Impl,
// declared Native and bound later through RegisterNatives, or abstract.
type MethodDef struct {
	Impl   Impl
	Name   string
	Sig    string
	Static bool
	Native bool
}

type class struct {
	name        string
	super       *class
	interfaces  []*class
	fields      []*field
	methods     []*method
	mirror      *object
	elem        *class
	nslots      int
	isInterface bool
	isAbstract  bool
	isArray     bool
}

type field struct {
	owner *class
	name  string
	sig   string
	desc  jni.Descriptor
	id    jni.FieldID
	slot  int
}

type method struct {
	owner  *class
	impl   Impl
	bound  atomic.Pointer[jni.NativeFunc]
	name   string
	sig    string
	msig   jni.MethodSig
	id     jni.MethodID
	static bool
	native bool
}

// descriptor returns the field descriptor naming this class.
func (c *class) descriptor() string {
	if c.isArray {
		return c.name
	}
	return "L" + c.name + ";"
}

// assignableTo reports whether a value of class c can be stored where
// other is expected.
func (c *class) assignableTo(other *class) bool {
	if other == nil {
		return false
	}
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
		for _, i := range k.interfaces {
			if i.assignableTo(other) {
				return true
			}
		}
	}
	if c.isArray && other.isArray && c.elem != nil && other.elem != nil {
		return c.elem.assignableTo(other.elem)
	}
	return false
}

// findMethod searches c and its superclasses. Constructors are only looked
// up on c itself.
func (c *class) findMethod(name, sig string, static bool) *method {
	for k := c; k != nil; k = k.super {
		for _, m := range k.methods {
			if m.name == name && m.sig == sig && m.static == static {
				return m
			}
		}
		if name == "<init>" {
			return nil
		}
	}
	if !static {
		for k := c; k != nil; k = k.super {
			for _, i := range k.interfaces {
				if m := i.findMethod(name, sig, false); m != nil {
					return m
				}
			}
		}
	}
	return nil
}

// implementation returns the method that runs when m is invoked on an
// instance of c.
func (c *class) implementation(m *method) *method {
	if m.static || m.name == "<init>" {
		return m
	}
	for k := c; k != nil; k = k.super {
		for _, cand := range k.methods {
			if cand.name == m.name && cand.sig == m.sig && !cand.static && (cand.impl != nil || cand.native) {
				return cand
			}
		}
	}
	return m
}

func (c *class) findField(name, sig string) *field {
	for k := c; k != nil; k = k.super {
		for _, f := range k.fields {
			if f.name == name && (sig == "" || f.sig == sig) {
				return f
			}
		}
	}
	return nil
}
