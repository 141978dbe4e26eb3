package managed

import (
	"sort"
	"sync"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// nativeRegistry tracks native bindings per class.
type nativeRegistry struct {
	bound map[string]map[string]*method
	mu    sync.RWMutex
}

func newNativeRegistry() *nativeRegistry {
	return &nativeRegistry{
		bound: make(map[string]map[string]*method),
	}
}

// register binds every method or none. Each entry must name a method
// declared native on c with the exact descriptor.
func (r *nativeRegistry) register(c *class, methods []jni.NativeMethod) error {
	resolved := make([]*method, len(methods))
	for i, nm := range methods {
		if nm.Fn == nil {
			return errors.Registration(c.name, nm.Name, errors.InvalidInput(errors.PhaseNative, "nil function"))
		}
		var found *method
		for _, m := range c.methods {
			if m.name == nm.Name && m.sig == nm.Signature {
				found = m
				break
			}
		}
		if found == nil {
			return errors.Registration(c.name, nm.Name,
				errors.MemberNotFound(errors.PhaseNative, c.name, nm.Name, nm.Signature))
		}
		if !found.native {
			return errors.Registration(c.name, nm.Name,
				errors.InvalidInput(errors.PhaseNative, "method is not declared native"))
		}
		resolved[i] = found
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bound[c.name] == nil {
		r.bound[c.name] = make(map[string]*method)
	}
	for i, m := range resolved {
		fn := methods[i].Fn
		m.bound.Store(&fn)
		r.bound[c.name][m.name+m.sig] = m
	}
	return nil
}

func (r *nativeRegistry) unregister(c *class) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.bound[c.name] {
		m.bound.Store(nil)
	}
	delete(r.bound, c.name)
}

// list returns the bound name+descriptor keys of a class, sorted.
func (r *nativeRegistry) list(className string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bound[className]))
	for key := range r.bound[className] {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// BoundNatives returns "name+descriptor" for each bound native of a class.
func (vm *VM) BoundNatives(className string) []string {
	return vm.natives.list(className)
}
