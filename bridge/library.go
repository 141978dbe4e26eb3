package bridge

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/jni"
)

// AppName is passed to the engine as the application name.
const AppName = "rime.trime"

// Library is the native library: loading it resolves the reflection cache
// and registers the native entry points of the Rime class.
type Library struct {
	engine    engine.Engine
	cache     *Cache
	notifier  *Notifier
	started   atomic.Bool
	lifecycle sync.Mutex
}

// NewLibrary creates a library driving eng. Each library owns its cache.
func NewLibrary(eng engine.Engine) *Library {
	return &Library{engine: eng, cache: NewCache()}
}

// Cache returns the library's reflection cache.
func (l *Library) Cache() *Cache { return l.cache }

// Notifier returns the notifier the engine reports through, or nil before
// OnLoad.
func (l *Library) Notifier() *Notifier { return l.notifier }

// Started reports whether startupRime has run without a later exitRime.
func (l *Library) Started() bool { return l.started.Load() }

// OnLoad runs on the loading thread. It returns jni.ERR when the cache cannot be resolved or the
// natives cannot be registered.
func (l *Library) OnLoad(vm jni.VM) int32 {
	if err := l.cache.Init(vm); err != nil {
		Logger().Error("library load failed", zap.Error(err))
		return jni.ERR
	}
	l.notifier = NewNotifier(vm, l.cache)

	methods, err := l.nativeMethods()
	if err != nil {
		Logger().Error("native table", zap.Error(err))
		return jni.ERR
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	att, err := AttachEnv(vm)
	if err != nil {
		Logger().Error("library load failed", zap.Error(err))
		return jni.ERR
	}
	defer att.Release()
	env := att.Env()

	rime := l.cache.MustGlobal().Rime
	if rc := env.RegisterNatives(rime, methods); rc != jni.OK {
		env.ExceptionDescribe()
		env.ExceptionClear()
		Logger().Error("register natives failed", zap.String("class", contract.RimeClass), zap.Int32("rc", rc))
		return jni.ERR
	}
	Logger().Info("natives registered", zap.String("class", contract.RimeClass), zap.Int("count", len(methods)))
	return jni.Version16
}

// OnUnload stops the engine and releases the cache and notifier thread.
func (l *Library) OnUnload(vm jni.VM) {
	l.lifecycle.Lock()
	if l.started.Swap(false) {
		l.engine.Shutdown()
	}
	l.lifecycle.Unlock()

	if l.notifier != nil {
		l.notifier.Close()
	}
	if refs := l.cache.Global(); refs != nil {
		err := RunAttached(vm, func(env jni.Env) error {
			if rc := env.UnregisterNatives(refs.Rime); rc != jni.OK {
				Logger().Warn("unregister natives failed", zap.Int32("rc", rc))
			}
			return nil
		})
		if err != nil {
			Logger().Warn("unregister natives", zap.Error(err))
		}
	}
	l.cache.Shutdown(vm)
}
