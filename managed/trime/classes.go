// Package trime defines the managed-side classes of the input-method
// application on a managed.VM and provides a Client that calls the native
// entry points the way the application does.
package trime

import (
	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/jni"
	"github.com/wippyai/rime-bridge/managed"
)

// NotificationFunc receives handleRimeNotification calls. A non-nil error
// is thrown back to the caller as java/lang/Exception.
type NotificationFunc func(messageType, messageValue string) error

// ClassDefs returns the application classes in definition order. Rime
// declares every native entry point and the static notification callback,
// which forwards to fn.
func ClassDefs(fn NotificationFunc) []managed.ClassDef {
	defs := make([]managed.ClassDef, 0, len(contract.Records)+1)
	for _, r := range []contract.Record{
		contract.Composition,
		contract.Commit,
		contract.Candidate,
		contract.Menu,
		contract.Context,
		contract.Status,
		contract.SchemaItem,
	} {
		defs = append(defs, recordDef(r))
	}

	rime := managed.ClassDef{Name: contract.RimeClass}
	for _, n := range contract.Natives {
		rime.Methods = append(rime.Methods, managed.MethodDef{
			Name:   n.Name,
			Sig:    n.Sig,
			Static: true,
			Native: true,
		})
	}
	rime.Methods = append(rime.Methods, managed.MethodDef{
		Name:   contract.HandleNotification,
		Sig:    contract.SigHandleNotification,
		Static: true,
		Impl:   notificationImpl(fn),
	})
	return append(defs, rime)
}

// Define defines the application classes on vm.
func Define(vm *managed.VM, fn NotificationFunc) error {
	return vm.DefineClasses(ClassDefs(fn)...)
}

func recordDef(r contract.Record) managed.ClassDef {
	def := managed.ClassDef{Name: r.Class}
	for _, f := range r.Fields {
		def.Fields = append(def.Fields, managed.FieldDef{Name: f.Name, Sig: f.Sig})
	}
	if r.Ctor != "" {
		def.Methods = append(def.Methods, managed.MethodDef{
			Name: contract.Init,
			Sig:  r.Ctor,
			Impl: fieldsCtor(r.Fields),
		})
	}
	return def
}

// fieldsCtor assigns constructor arguments to fields in declaration order.
func fieldsCtor(fields []contract.Field) managed.Impl {
	return func(env *managed.Env, recv jni.Object, args []jni.Value) jni.Value {
		cls := env.GetObjectClass(recv)
		defer env.DeleteLocalRef(cls)
		for i, f := range fields {
			id := env.GetFieldID(cls, f.Name, f.Sig)
			switch f.Sig[0] {
			case 'I':
				env.SetIntField(recv, id, args[i].AsInt())
			case 'Z':
				env.SetBooleanField(recv, id, args[i].AsBool())
			default:
				env.SetObjectField(recv, id, args[i].AsObject())
			}
		}
		return jni.Void
	}
}

func notificationImpl(fn NotificationFunc) managed.Impl {
	return func(env *managed.Env, _ jni.Object, args []jni.Value) jni.Value {
		messageType, _ := env.GoString(args[0].AsObject())
		messageValue, _ := env.GoString(args[1].AsObject())
		if fn == nil {
			return jni.Void
		}
		if err := fn(messageType, messageValue); err != nil {
			cls := env.FindClass(contract.ExceptionClass)
			env.ThrowNew(cls, err.Error())
			env.DeleteLocalRef(cls)
		}
		return jni.Void
	}
}
