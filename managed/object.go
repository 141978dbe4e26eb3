package managed

import (
	"sync"
	"unicode/utf16"
)

type slot struct {
	ref  *object
	prim int64
}

type object struct {
	class   *class
	payload any
	fields  []slot
	str     []uint16
	elems   []*object
	mu      sync.Mutex
}

func newInstance(c *class) *object {
	return &object{
		class:  c,
		fields: make([]slot, c.nslots),
	}
}

func (o *object) get(f *field) slot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields[f.slot]
}

func (o *object) set(f *field, s slot) {
	o.mu.Lock()
	o.fields[f.slot] = s
	o.mu.Unlock()
}

func (o *object) goString() string {
	return string(utf16.Decode(o.str))
}

// mirrored returns the class an object of java/lang/Class stands for.
func (o *object) mirrored() *class {
	if o == nil {
		return nil
	}
	c, _ := o.payload.(*class)
	return c
}
