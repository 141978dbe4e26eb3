package bridge

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

var errStop = stderrors.New("stop")

func TestCString_ReleasedOnEveryPath(t *testing.T) {
	h := newHarness(t)
	s := h.env.NewString("朙月拼音")

	read := func(stop, fail bool) (string, error) {
		cs, err := NewCString(h.env, s)
		if err != nil {
			return "", err
		}
		defer cs.Release()
		if stop {
			return "", errStop
		}
		if fail {
			panic("decode callback failed")
		}
		return cs.String(), nil
	}

	tests := []struct {
		name  string
		stop  bool
		fail  bool
		want  string
		err   error
		panic bool
	}{
		{name: "normal", want: "朙月拼音"},
		{name: "early return", stop: true, err: errStop},
		{name: "panic", fail: true, panic: true},
	}

	// subtests would run on another goroutine, away from the attached thread
	for _, tt := range tests {
		before := h.vm.Stats()
		if tt.panic {
			assert.Panics(t, func() { _, _ = read(tt.stop, tt.fail) }, tt.name)
		} else {
			got, err := read(tt.stop, tt.fail)
			assert.Equal(t, tt.err, err, tt.name)
			assert.Equal(t, tt.want, got, tt.name)
		}
		after := h.vm.Stats()
		assert.Equal(t, int64(1), after.UTFAcquired-before.UTFAcquired, tt.name)
		assert.Equal(t, int64(1), after.UTFReleased-before.UTFReleased, tt.name)
		assert.Zero(t, after.OutstandingUTF, tt.name)
	}
}

func TestCString_ReleaseTwice(t *testing.T) {
	h := newHarness(t)
	s := h.env.NewString("a\x00b😀")

	before := h.vm.Stats()
	cs, err := NewCString(h.env, s)
	require.NoError(t, err)
	assert.Equal(t, "a\x00b😀", cs.String())
	assert.Equal(t, jni.EncodeMUTF8("a\x00b😀"), cs.Bytes())

	cs.Release()
	cs.Release()
	assert.Nil(t, cs.Bytes())
	assert.Equal(t, "a\x00b😀", cs.String(), "text outlives the buffer")

	after := h.vm.Stats()
	assert.Equal(t, int64(1), after.UTFReleased-before.UTFReleased)
	assert.Empty(t, h.takeFatals(), "a double release never reaches the runtime")
}

func TestCString_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := NewCString(h.env, 0)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindNullHandle})

	before := h.vm.Stats()
	lone := h.env.NewStringUTF16([]uint16{'a', 0xD800})
	_, err = NewCString(h.env, lone)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidUTF8})

	after := h.vm.Stats()
	assert.Equal(t, int64(1), after.UTFAcquired-before.UTFAcquired)
	assert.Equal(t, int64(1), after.UTFReleased-before.UTFReleased, "buffer released on decode error")
	assert.Zero(t, after.OutstandingUTF)
}

func TestLocalRef(t *testing.T) {
	h := newHarness(t)
	base := h.env.LiveLocals()

	js, err := NewJString(h.env, "luna_pinyin")
	require.NoError(t, err)
	assert.Equal(t, base+1, h.env.LiveLocals())
	assert.False(t, js.IsNull())

	js.Release()
	js.Release()
	assert.Equal(t, base, h.env.LiveLocals())
	assert.True(t, js.IsNull())
	assert.Zero(t, js.Ref())

	js, err = NewJString(h.env, "stroke")
	require.NoError(t, err)
	obj := js.Take()
	js.Release()
	assert.Equal(t, base+1, h.env.LiveLocals(), "a taken reference survives Release")
	h.env.DeleteLocalRef(obj)

	var nilRef *LocalRef
	nilRef.Release()
	assert.True(t, nilRef.IsNull())
	NewLocalRef(h.env, 0).Release()
	assert.Empty(t, h.takeFatals())
}

func TestJString_ModifiedUTF8(t *testing.T) {
	h := newHarness(t)

	for _, text := range []string{"", "nul\x00inside", "𠀀𝄞😀", "朙月拼音 é"} {
		js, err := NewJString(h.env, text)
		require.NoError(t, err)

		got, ok := h.env.GoString(js.Ref())
		require.True(t, ok)
		assert.Equal(t, text, got)

		cs, err := NewCString(h.env, js.Ref())
		require.NoError(t, err)
		assert.Equal(t, text, cs.String())
		assert.NotContains(t, cs.Bytes(), byte(0), "NUL is encoded as two bytes")
		cs.Release()
		js.Release()
	}

	b := []byte{0xC0, 0x80, 0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}
	js, err := NewJStringBytes(h.env, b)
	require.NoError(t, err)
	got, _ := h.env.GoString(js.Ref())
	assert.Equal(t, "\x00😀", got)
	js.Release()

	before := h.vm.Stats()
	_, err = NewJStringBytes(h.env, []byte{0xF0, 0x9F, 0x98, 0x80})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidUTF8})
	assert.Equal(t, before.LocalsCreated, h.vm.Stats().LocalsCreated, "invalid bytes never reach the runtime")
}

func TestJClass(t *testing.T) {
	h := newHarness(t)

	cls, err := NewJClass(h.env, "java/lang/String")
	require.NoError(t, err)
	assert.Equal(t, "java/lang/String", cls.Name())
	assert.NotZero(t, cls.Class())
	cls.Release()

	_, err = NewJClass(h.env, "com/example/Missing")
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseResolve, Kind: errors.KindClassNotFound})
	require.True(t, h.env.ExceptionCheck(), "the lookup exception stays pending")
	h.env.ExceptionClear()
}

func TestWithLocalFrame(t *testing.T) {
	h := newHarness(t)
	base := h.env.LiveLocals()
	depth := h.env.FrameDepth()

	obj, err := WithLocalFrame(h.env, 4, func() (jni.Object, error) {
		h.env.NewString("a")
		h.env.NewString("b")
		return h.env.NewString("kept"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, base+1, h.env.LiveLocals())
	got, _ := h.env.GoString(obj)
	assert.Equal(t, "kept", got)
	h.env.DeleteLocalRef(obj)

	_, err = WithLocalFrame(h.env, 4, func() (jni.Object, error) {
		h.env.NewString("a")
		return 0, errStop
	})
	assert.Equal(t, errStop, err)
	assert.Equal(t, base, h.env.LiveLocals())
	assert.Equal(t, depth, h.env.FrameDepth())
}

func TestWrongThreadIsFatal(t *testing.T) {
	h := newHarness(t)

	done := make(chan error)
	go func() {
		_, err := NewJString(h.env, "elsewhere")
		done <- err
	}()
	assert.Error(t, <-done)

	fatals := h.takeFatals()
	require.NotEmpty(t, fatals)
	assert.ErrorIs(t, fatals[0], &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindWrongThread})
	assert.Equal(t, int64(len(fatals)), h.vm.Stats().Fatals)
}
