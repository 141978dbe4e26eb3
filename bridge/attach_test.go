package bridge

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
	"github.com/wippyai/rime-bridge/managed"
)

type versionlessVM struct{}

func (versionlessVM) GetEnv(int32) (jni.Env, int32)       { return nil, jni.EVERSION }
func (versionlessVM) AttachCurrentThread() (jni.Env, int32) { return nil, jni.ERR }
func (versionlessVM) DetachCurrentThread() int32            { return jni.ERR }

type refusingVM struct{}

func (refusingVM) GetEnv(int32) (jni.Env, int32)       { return nil, jni.EDETACHED }
func (refusingVM) AttachCurrentThread() (jni.Env, int32) { return nil, jni.ERR }
func (refusingVM) DetachCurrentThread() int32            { return jni.EDETACHED }

func TestAttachEnv_Nested(t *testing.T) {
	vm := managed.New(managed.Options{})
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	outer, err := AttachEnv(vm)
	require.NoError(t, err)
	assert.True(t, outer.Attached())

	inner, err := AttachEnv(vm)
	require.NoError(t, err)
	assert.False(t, inner.Attached())
	assert.Equal(t, outer.Env(), inner.Env())
	assert.Equal(t, int64(1), vm.Stats().Attaches)

	inner.Release()
	assert.Equal(t, 1, vm.Stats().Threads, "an inner release keeps the thread attached")

	outer.Release()
	outer.Release()
	st := vm.Stats()
	assert.Equal(t, int64(1), st.Detaches)
	assert.Zero(t, st.Threads)
}

func TestAttachEnv_Errors(t *testing.T) {
	_, err := AttachEnv(versionlessVM{})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseAttach, Kind: errors.KindUnsupported})

	_, err = AttachEnv(refusingVM{})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseAttach, Kind: errors.KindNotAttached})

	var nilAtt *Attachment
	nilAtt.Release()
}

func TestAttachEnv_ThreadLimit(t *testing.T) {
	vm := managed.New(managed.Options{MaxThreads: 1})
	th, err := NewThread(vm)
	require.NoError(t, err)
	defer th.Close()

	err = RunAttached(vm, func(jni.Env) error { return nil })
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseAttach, Kind: errors.KindNotAttached})
}

func TestRunAttached(t *testing.T) {
	vm := managed.New(managed.Options{})

	var inside int
	err := RunAttached(vm, func(env jni.Env) error {
		inside = vm.Stats().Threads
		s := env.NewStringUTF(jni.EncodeMUTF8("temp"))
		assert.NotZero(t, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inside)

	st := vm.Stats()
	assert.Zero(t, st.Threads, "the thread is detached on return")
	assert.Equal(t, int64(1), st.Attaches)
	assert.Equal(t, int64(1), st.Detaches)

	err = RunAttached(vm, func(jni.Env) error { return errStop })
	assert.Equal(t, errStop, err)
	assert.Zero(t, vm.Stats().Threads)
}

func TestThread(t *testing.T) {
	vm := managed.New(managed.Options{})
	th, err := NewThread(vm)
	require.NoError(t, err)
	assert.Equal(t, 1, vm.Stats().Threads)

	var tids [2]uint64
	for i := range tids {
		require.NoError(t, th.Do(func(env jni.Env) {
			tids[i] = uint64(env.(*managed.Env).Thread())
		}))
	}
	assert.Equal(t, tids[0], tids[1], "work runs on one OS thread")

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, th.Go(func(jni.Env) { ran.Add(1) }))
	}

	th.Close()
	th.Close()
	assert.Equal(t, int32(10), ran.Load(), "queued work runs before close")
	assert.Zero(t, vm.Stats().Threads, "close detaches the thread")

	assert.Equal(t, ErrThreadClosed, th.Do(func(jni.Env) {}))
	assert.False(t, th.Go(func(jni.Env) {}))
}

func TestNewThread_AttachFails(t *testing.T) {
	_, err := NewThread(refusingVM{})
	assert.Error(t, err)
}

func TestNotifier_WorkerThread(t *testing.T) {
	h := newHarness(t)
	n := h.lib.Notifier()

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Handle("deploy", "start")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notification from a detached goroutine did not return")
	}

	list := h.rec.List()
	require.Len(t, list, 1)
	assert.Equal(t, "deploy", list[0].Type)
	assert.NotEqual(t, h.env.Thread(), list[0].Thread)

	n.Handle("option", "ascii_mode")
	list = h.rec.List()
	require.Len(t, list, 2)
	assert.Equal(t, h.env.Thread(), list[1].Thread, "an attached caller delivers directly")
}

func TestNotifier_PendingExceptionSkips(t *testing.T) {
	h := newHarness(t)

	ThrowException(h.env, "in flight")
	h.lib.Notifier().Handle("option", "ascii_mode")
	assert.Empty(t, h.rec.List())

	thr := h.env.ExceptionOccurred()
	require.NotZero(t, thr)
	h.env.ExceptionClear()
	h.env.DeleteLocalRef(thr)
}

func TestNotifier_Closed(t *testing.T) {
	h := newHarness(t)
	n := NewNotifier(h.vm, h.lib.Cache())
	n.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Handle("deploy", "start")
	}()
	<-done
	assert.Empty(t, h.rec.List(), "a closed notifier drops off-thread notifications")
}

func TestThrowError(t *testing.T) {
	h := newHarness(t)
	before := h.vm.Stats().Throws

	ThrowError(h.env, nil)
	assert.False(t, h.env.ExceptionCheck())

	ThrowError(h.env, errStop)
	require.True(t, h.env.ExceptionCheck())
	ThrowError(h.env, errors.InvalidInput(errors.PhaseNative, "second"))
	assert.Equal(t, before+1, h.vm.Stats().Throws, "a pending exception is not replaced")

	thr := h.env.ExceptionOccurred()
	h.env.ExceptionClear()
	assert.Equal(t, "java/lang/Exception", h.env.ClassName(thr))
	h.env.DeleteLocalRef(thr)
}
