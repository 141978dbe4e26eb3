package managed

import (
	"github.com/wippyai/rime-bridge/internal/reftable"
	"github.com/wippyai/rime-bridge/jni"
)

// Reference layout (64-bit):
//
//	63..62  kind (1 local, 2 global)
//	61..48  owning env id (locals only)
//	47..32  frame serial (locals only)
//	31..0   table handle
const (
	refKindShift  = 62
	refEnvShift   = 48
	refFrameShift = 32

	refEnvMask    = 1<<14 - 1
	refFrameMask  = 1<<16 - 1
	refHandleMask = 1<<32 - 1
)

type refKind uint8

const (
	refInvalid refKind = iota
	refLocal
	refGlobal
)

func encodeLocal(envID, serial uint16, h reftable.Handle) jni.Object {
	v := uint64(refLocal)<<refKindShift |
		uint64(envID&refEnvMask)<<refEnvShift |
		uint64(serial)<<refFrameShift |
		uint64(h)
	return jni.Object(v)
}

func encodeGlobal(h reftable.Handle) jni.Object {
	return jni.Object(uint64(refGlobal)<<refKindShift | uint64(h))
}

func decodeRef(ref jni.Object) (kind refKind, envID, serial uint16, h reftable.Handle) {
	v := uint64(ref)
	kind = refKind(v >> refKindShift)
	envID = uint16((v >> refEnvShift) & refEnvMask)
	serial = uint16((v >> refFrameShift) & refFrameMask)
	h = reftable.Handle(v & refHandleMask)
	return
}
