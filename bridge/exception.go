package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/jni"
)

// ThrowException raises java/lang/Exception with msg on env. The native
// that calls it should return right after.
func ThrowException(env jni.Env, msg string) {
	cls, err := NewJClass(env, contract.ExceptionClass)
	if err != nil {
		// the failed lookup left its own exception pending
		Logger().Error("cannot raise exception", zap.String("message", msg), zap.Error(err))
		return
	}
	defer cls.Release()
	env.ThrowNew(cls.Class(), msg)
}

// ThrowError raises err as java/lang/Exception unless an exception is
// already pending, in which case that one propagates.
func ThrowError(env jni.Env, err error) {
	if err == nil || env.ExceptionCheck() {
		return
	}
	ThrowException(env, err.Error())
}
