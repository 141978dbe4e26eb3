package bridge

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// Attachment is an env obtained for the calling OS thread.
type Attachment struct {
	vm       jni.VM
	env      jni.Env
	attached bool
	released bool
}

// AttachEnv returns the env of the calling thread, attaching the thread
// when it is not attached yet. The caller must hold runtime.LockOSThread
// until Release.
func AttachEnv(vm jni.VM) (*Attachment, error) {
	env, rc := vm.GetEnv(jni.Version16)
	switch rc {
	case jni.OK:
		return &Attachment{vm: vm, env: env}, nil
	case jni.EDETACHED:
		env, rc = vm.AttachCurrentThread()
		if rc != jni.OK {
			return nil, errors.NotAttached("AttachCurrentThread failed")
		}
		Logger().Debug("thread attached")
		return &Attachment{vm: vm, env: env, attached: true}, nil
	case jni.EVERSION:
		return nil, errors.New(errors.PhaseAttach, errors.KindUnsupported).
			Detail("interface version %#x not supported", jni.Version16).
			Build()
	default:
		return nil, errors.New(errors.PhaseAttach, errors.KindNotAttached).
			Detail("GetEnv returned %d", rc).
			Build()
	}
}

// Env returns the thread's env.
func (a *Attachment) Env() jni.Env { return a.env }

// Attached reports whether this attachment attached the thread.
func (a *Attachment) Attached() bool { return a.attached }

// Release detaches the thread if this attachment attached it. Later calls
// do nothing.
func (a *Attachment) Release() {
	if a == nil || a.released {
		return
	}
	a.released = true
	if !a.attached {
		return
	}
	if rc := a.vm.DetachCurrentThread(); rc != jni.OK {
		Logger().Warn("detach failed", zap.Int32("rc", rc))
		return
	}
	Logger().Debug("thread detached")
}

// RunAttached runs fn with an env for the calling goroutine, locked to its
// OS thread for the duration. A thread attached here is detached before
// RunAttached returns.
func RunAttached(vm jni.VM, fn func(env jni.Env) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	att, err := AttachEnv(vm)
	if err != nil {
		return err
	}
	defer att.Release()
	return fn(att.Env())
}

// ErrThreadClosed is returned by Thread.Do after Close.
var ErrThreadClosed = errors.New(errors.PhaseAttach, errors.KindNotAttached).
	Detail("thread closed").
	Build()

// Thread is a goroutine locked to one OS thread and attached for its whole
// life. Work submitted to it runs in order with the thread's env.
type Thread struct {
	work   chan func(jni.Env)
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
}

// NewThread starts an attached worker thread.
func NewThread(vm jni.VM) (*Thread, error) {
	t := &Thread{
		work: make(chan func(jni.Env), 16),
		done: make(chan struct{}),
	}
	ready := make(chan error, 1)
	go t.run(vm, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Thread) run(vm jni.VM, ready chan<- error) {
	defer close(t.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	att, err := AttachEnv(vm)
	if err != nil {
		ready <- err
		return
	}
	defer att.Release()
	ready <- nil

	for fn := range t.work {
		fn(att.Env())
	}
}

// Do runs fn on the thread and waits for it.
func (t *Thread) Do(fn func(env jni.Env)) error {
	finished := make(chan struct{})
	if !t.submit(func(env jni.Env) {
		defer close(finished)
		fn(env)
	}) {
		return ErrThreadClosed
	}
	<-finished
	return nil
}

// Go queues fn on the thread without waiting. It reports false after
// Close.
func (t *Thread) Go(fn func(env jni.Env)) bool {
	return t.submit(fn)
}

func (t *Thread) submit(fn func(jni.Env)) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return false
	}
	t.work <- fn
	return true
}

// Close runs the queued work, detaches the thread and waits for it to
// exit. Calling Close from work running on the thread deadlocks.
func (t *Thread) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.work)
	}
	t.mu.Unlock()
	<-t.done
}
