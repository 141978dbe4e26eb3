package managed

import (
	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// Library is a native library loaded into the VM. OnLoad runs on the
// loading thread and returns the interface version the library needs.
type Library interface {
	OnLoad(vm jni.VM) int32
}

// Unloader is implemented by libraries that release state at VM shutdown.
type Unloader interface {
	OnUnload(vm jni.VM)
}

// LoadLibrary runs lib's OnLoad and keeps it for Close.
func (vm *VM) LoadLibrary(lib Library) error {
	version := lib.OnLoad(vm)
	if version == jni.ERR || !supportedVersion(version) {
		return errors.New(errors.PhaseLoad, errors.KindRegistration).
			Detail("OnLoad returned %#x", version).
			Build()
	}

	vm.libMu.Lock()
	vm.libraries = append(vm.libraries, lib)
	vm.libMu.Unlock()

	Logger().Info("native library loaded", zap.String("version", versionString(version)))
	return nil
}

// Close unloads libraries in reverse load order.
func (vm *VM) Close() error {
	vm.libMu.Lock()
	libs := vm.libraries
	vm.libraries = nil
	vm.libMu.Unlock()

	for i := len(libs) - 1; i >= 0; i-- {
		if u, ok := libs[i].(Unloader); ok {
			u.OnUnload(vm)
		}
	}
	return nil
}

func versionString(v int32) string {
	switch v {
	case jni.Version11:
		return "1.1"
	case jni.Version12:
		return "1.2"
	case jni.Version14:
		return "1.4"
	case jni.Version16:
		return "1.6"
	}
	return "unknown"
}
