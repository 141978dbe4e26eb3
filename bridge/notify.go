package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/jni"
)

// notifyFrame bounds the locals of one delivery.
const notifyFrame = 4

// Notifier delivers engine notifications to the static
// handleRimeNotification callback. On an attached thread it calls in
// directly; from any other goroutine it hands the call to a worker Thread
// that stays attached. Exceptions thrown by the callback are logged and
// cleared.
type Notifier struct {
	vm     jni.VM
	cache  *Cache
	thread *Thread
	closed bool
	mu     sync.Mutex
}

// NewNotifier creates a notifier. The worker thread starts on first use.
func NewNotifier(vm jni.VM, cache *Cache) *Notifier {
	return &Notifier{vm: vm, cache: cache}
}

// Handle delivers one notification. It has the engine.Handler signature.
func (n *Notifier) Handle(messageType, messageValue string) {
	if env, rc := n.vm.GetEnv(jni.Version16); rc == jni.OK {
		n.deliver(env, messageType, messageValue)
		return
	}

	t, err := n.worker()
	if err != nil {
		Logger().Warn("notification dropped",
			zap.String("type", messageType),
			zap.String("value", messageValue),
			zap.Error(err))
		return
	}
	if err := t.Do(func(env jni.Env) {
		n.deliver(env, messageType, messageValue)
	}); err != nil {
		Logger().Warn("notification dropped", zap.String("type", messageType), zap.Error(err))
	}
}

func (n *Notifier) worker() (*Thread, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrThreadClosed
	}
	if n.thread == nil {
		t, err := NewThread(n.vm)
		if err != nil {
			return nil, err
		}
		n.thread = t
	}
	return n.thread, nil
}

func (n *Notifier) deliver(env jni.Env, messageType, messageValue string) {
	refs := n.cache.Global()
	if refs == nil {
		Logger().Warn("notification before cache init", zap.String("type", messageType))
		return
	}
	if env.ExceptionCheck() {
		// a caller higher up has an exception in flight; do not call in
		Logger().Warn("notification skipped, exception pending", zap.String("type", messageType))
		return
	}

	_, err := WithLocalFrame(env, notifyFrame, func() (jni.Object, error) {
		t, err := NewJString(env, messageType)
		if err != nil {
			return 0, err
		}
		v, err := NewJString(env, messageValue)
		if err != nil {
			return 0, err
		}
		env.CallStaticVoidMethod(refs.Rime, refs.RimeHandleNotification, jni.Obj(t.Ref()), jni.Obj(v.Ref()))
		return 0, nil
	})
	if err != nil {
		Logger().Warn("notification not delivered", zap.String("type", messageType), zap.Error(err))
	}
	if env.ExceptionCheck() {
		Logger().Warn("notification handler threw",
			zap.String("type", messageType),
			zap.String("value", messageValue))
		env.ExceptionDescribe()
		env.ExceptionClear()
	}
}

// Close stops the worker thread, detaching it.
func (n *Notifier) Close() {
	n.mu.Lock()
	t := n.thread
	n.thread = nil
	n.closed = true
	n.mu.Unlock()
	if t != nil {
		t.Close()
	}
}
