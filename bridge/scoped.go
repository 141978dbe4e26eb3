package bridge

import (
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// CString borrows the modified UTF-8 bytes of a managed string. It does not
// own the string reference.
type CString struct {
	env      jni.Env
	str      jni.String
	chars    *jni.UTFChars
	text     string
	released bool
}

// NewCString acquires and decodes the characters of s. On a decode error
// the buffer is released before returning.
func NewCString(env jni.Env, s jni.String) (*CString, error) {
	if s == 0 {
		return nil, errors.NullHandle(errors.PhaseDecode, nil, "string")
	}
	chars := env.GetStringUTFChars(s)
	if chars == nil {
		return nil, errors.PendingException(errors.PhaseDecode, "", "GetStringUTFChars")
	}
	text, err := jni.DecodeMUTF8(chars.Data)
	if err != nil {
		env.ReleaseStringUTFChars(s, chars)
		return nil, err
	}
	return &CString{env: env, str: s, chars: chars, text: text}, nil
}

// String returns the decoded text. It stays valid after Release.
func (c *CString) String() string { return c.text }

// Bytes returns the raw modified UTF-8 buffer. It is valid until Release.
func (c *CString) Bytes() []byte {
	if c.released {
		return nil
	}
	return c.chars.Data
}

// Release returns the buffer. Later calls do nothing.
func (c *CString) Release() {
	if c == nil || c.released {
		return
	}
	c.released = true
	c.env.ReleaseStringUTFChars(c.str, c.chars)
}

// LocalRef owns one local reference.
type LocalRef struct {
	env      jni.Env
	obj      jni.Object
	released bool
}

// NewLocalRef takes ownership of a freshly obtained local reference.
func NewLocalRef(env jni.Env, obj jni.Object) *LocalRef {
	return &LocalRef{env: env, obj: obj}
}

// Object returns the reference, or 0 after Release or Take.
func (r *LocalRef) Object() jni.Object {
	if r == nil || r.released {
		return 0
	}
	return r.obj
}

// IsNull reports whether the reference is null.
func (r *LocalRef) IsNull() bool { return r.Object() == 0 }

// Take gives up ownership and returns the reference; Release then does
// nothing. Natives use it to return a result to the caller.
func (r *LocalRef) Take() jni.Object {
	obj := r.Object()
	r.released = true
	return obj
}

// Release deletes the reference. Later calls do nothing.
func (r *LocalRef) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	if r.obj != 0 {
		r.env.DeleteLocalRef(r.obj)
	}
}

// JString owns a new local string.
type JString struct {
	LocalRef
}

// NewJString creates a managed string from Go text.
func NewJString(env jni.Env, text string) (*JString, error) {
	s := env.NewStringUTF(jni.EncodeMUTF8(text))
	if s == 0 {
		return nil, errors.PendingException(errors.PhaseEncode, "java/lang/String", "NewStringUTF")
	}
	return &JString{LocalRef{env: env, obj: s}}, nil
}

// NewJStringBytes creates a managed string from modified UTF-8 bytes. The
// bytes are validated first; invalid input never reaches the runtime.
func NewJStringBytes(env jni.Env, b []byte) (*JString, error) {
	if _, err := jni.DecodeMUTF8UTF16(b); err != nil {
		return nil, err
	}
	s := env.NewStringUTF(b)
	if s == 0 {
		return nil, errors.PendingException(errors.PhaseEncode, "java/lang/String", "NewStringUTF")
	}
	return &JString{LocalRef{env: env, obj: s}}, nil
}

// Ref returns the string reference.
func (s *JString) Ref() jni.String { return s.Object() }

// JClass owns a local class reference found by name.
type JClass struct {
	LocalRef
	name string
}

// NewJClass looks up a class. A failed lookup leaves the runtime's
// exception pending.
func NewJClass(env jni.Env, name string) (*JClass, error) {
	cls := env.FindClass(name)
	if cls == 0 {
		return nil, errors.ClassNotFound(errors.PhaseResolve, name)
	}
	return &JClass{LocalRef: LocalRef{env: env, obj: cls}, name: name}, nil
}

// Class returns the class reference.
func (c *JClass) Class() jni.Class { return c.Object() }

// Name returns the class name the reference was found by.
func (c *JClass) Name() string { return c.name }

// WithLocalFrame runs fn in a new local frame of the given capacity. The
// object fn returns survives as a local of the enclosing frame; everything
// else fn created is freed.
func WithLocalFrame(env jni.Env, capacity int32, fn func() (jni.Object, error)) (jni.Object, error) {
	if rc := env.PushLocalFrame(capacity); rc != jni.OK {
		return 0, errors.New(errors.PhaseEncode, errors.KindCapacity).
			Detail("PushLocalFrame(%d) returned %d", capacity, rc).
			Build()
	}
	result, err := fn()
	if err != nil {
		env.PopLocalFrame(0)
		return 0, err
	}
	return env.PopLocalFrame(result), nil
}
