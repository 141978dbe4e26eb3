package managed

import (
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

func (e *Env) stringArg(op string, s jni.String) (*object, bool) {
	o, ok := e.resolve(op, s)
	if !ok {
		return nil, false
	}
	if o == nil {
		e.misuse(errors.KindNullHandle, op, "string is null")
		return nil, false
	}
	if o.class != e.vm.stringClass {
		e.misuse(errors.KindTypeMismatch, op, "%s is not a java/lang/String", o.class.name)
		return nil, false
	}
	return o, true
}

func (e *Env) NewStringUTF(mutf8 []byte) jni.String {
	if !e.enter("NewStringUTF") {
		return 0
	}
	units, err := jni.DecodeMUTF8UTF16(mutf8)
	if err != nil {
		e.misuse(errors.KindInvalidUTF8, "NewStringUTF", "%v", err)
		return 0
	}
	return e.newLocal("NewStringUTF", &object{class: e.vm.stringClass, str: units})
}

func (e *Env) GetStringLength(s jni.String) int32 {
	if !e.enter("GetStringLength") {
		return 0
	}
	o, ok := e.stringArg("GetStringLength", s)
	if !ok {
		return 0
	}
	return int32(len(o.str))
}

func (e *Env) GetStringUTFLength(s jni.String) int32 {
	if !e.enter("GetStringUTFLength") {
		return 0
	}
	o, ok := e.stringArg("GetStringUTFLength", s)
	if !ok {
		return 0
	}
	return int32(len(jni.EncodeMUTF8UTF16(o.str)))
}

func (e *Env) GetStringUTFChars(s jni.String) *jni.UTFChars {
	if !e.enter("GetStringUTFChars") {
		return nil
	}
	o, ok := e.stringArg("GetStringUTFChars", s)
	if !ok {
		return nil
	}
	chars := &jni.UTFChars{Data: jni.EncodeMUTF8UTF16(o.str)}

	e.vm.utfMu.Lock()
	e.vm.utf[chars] = o
	e.vm.utfMu.Unlock()

	e.vm.emit(Event{Type: EventUTFAcquire, Class: o.class.name, Length: len(chars.Data), Thread: e.tid})
	return chars
}

func (e *Env) ReleaseStringUTFChars(s jni.String, chars *jni.UTFChars) {
	if !e.check("ReleaseStringUTFChars", true) {
		return
	}
	e.vm.utfMu.Lock()
	owner, ok := e.vm.utf[chars]
	if ok {
		delete(e.vm.utf, chars)
	}
	e.vm.utfMu.Unlock()

	if !ok {
		e.misuse(errors.KindStaleHandle, "ReleaseStringUTFChars", "buffer was not returned by GetStringUTFChars or already released")
		return
	}
	if o, _ := e.resolve("ReleaseStringUTFChars", s); o != nil && o != owner {
		e.misuse(errors.KindTypeMismatch, "ReleaseStringUTFChars", "buffer released against a different string")
		return
	}
	e.vm.emit(Event{Type: EventUTFRelease, Class: owner.class.name, Length: len(chars.Data), Thread: e.tid})
}
