package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// Messages of exceptions raised by the natives.
const (
	msgNotStarted     = "rime is not started"
	msgNotInitialized = "rime bridge is not initialized"
	msgInvalidSchema  = "invalid scheme"
)

// call is the state of one native invocation.
type call struct {
	env   jni.Env
	codec *Codec
	args  []jni.Value
}

func (c *call) str(i int) (string, error) {
	cs, err := NewCString(c.env, c.args[i].AsObject())
	if err != nil {
		return "", err
	}
	defer cs.Release()
	return cs.String(), nil
}

type nativeFunc func(l *Library, c *call) (jni.Value, error)

// nativeSpec binds an entry point of the contract to its implementation.
type nativeSpec struct {
	fn      nativeFunc
	name    string
	started bool
}

var nativeSpecs = []nativeSpec{
	{name: contract.NativeStartup, fn: (*Library).startup},
	{name: contract.NativeExit, fn: (*Library).exit},
	{name: contract.NativeDeploy, started: true, fn: (*Library).deploy},
	{name: contract.NativeSyncUserData, started: true, fn: (*Library).syncUserData},
	{name: contract.NativeProcessKey, started: true, fn: (*Library).processKey},
	{name: contract.NativeSimulateKeys, started: true, fn: (*Library).simulateKeys},
	{name: contract.NativeCommitComposition, started: true, fn: (*Library).commitComposition},
	{name: contract.NativeClearComposition, started: true, fn: (*Library).clearComposition},
	{name: contract.NativeGetCommit, started: true, fn: (*Library).getCommit},
	{name: contract.NativeGetContext, started: true, fn: (*Library).getContext},
	{name: contract.NativeGetStatus, started: true, fn: (*Library).getStatus},
	{name: contract.NativeSetOption, started: true, fn: (*Library).setOption},
	{name: contract.NativeGetOption, started: true, fn: (*Library).getOption},
	{name: contract.NativeSetOptions, started: true, fn: (*Library).setOptions},
	{name: contract.NativeGetSchemaList, started: true, fn: (*Library).getSchemaList},
	{name: contract.NativeGetCurrentSchema, started: true, fn: (*Library).getCurrentSchema},
	{name: contract.NativeSelectSchema, started: true, fn: (*Library).selectSchema},
	{name: contract.NativeGetCandidates, started: true, fn: (*Library).getCandidates},
	{name: contract.NativeSelectCandidate, started: true, fn: (*Library).selectCandidate},
	{name: contract.NativeGetRawInput, started: true, fn: (*Library).getRawInput},
	{name: contract.NativeGetCaretPos, started: true, fn: (*Library).getCaretPos},
	{name: contract.NativeSetCaretPos, started: true, fn: (*Library).setCaretPos},
	{name: contract.NativeGetConfigMap, started: true, fn: (*Library).getConfigMap},
	{name: contract.NativeGetVersion, fn: (*Library).version},
}

// nativeMethods builds the registration table.
func (l *Library) nativeMethods() ([]jni.NativeMethod, error) {
	methods := make([]jni.NativeMethod, 0, len(nativeSpecs))
	for _, spec := range nativeSpecs {
		sig, ok := contract.NativeSig(spec.name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseNative, "native", spec.name)
		}
		msig, err := jni.ParseMethodSig(sig)
		if err != nil {
			return nil, err
		}
		methods = append(methods, jni.NativeMethod{
			Name:      spec.name,
			Signature: sig,
			Fn:        l.wrap(spec, msig.Return.ValueKind()),
		})
	}
	return methods, nil
}

// wrap turns a nativeFunc into a jni.NativeFunc: it checks preconditions,
// and turns a returned error into a pending exception with a zero result.
func (l *Library) wrap(spec nativeSpec, ret byte) jni.NativeFunc {
	zero := jni.Value{Type: ret}
	return func(env jni.Env, _ jni.Object, args []jni.Value) jni.Value {
		refs := l.cache.Global()
		if refs == nil {
			ThrowException(env, msgNotInitialized)
			return zero
		}
		if spec.started && !l.started.Load() {
			ThrowException(env, msgNotStarted)
			return zero
		}

		v, err := spec.fn(l, &call{env: env, codec: NewCodec(env, refs), args: args})
		if err != nil {
			Logger().Debug("native failed", zap.String("native", spec.name), zap.Error(err))
			ThrowError(env, err)
			return zero
		}
		if env.ExceptionCheck() {
			return zero
		}
		return v
	}
}

func (l *Library) startup(c *call) (jni.Value, error) {
	shared, err := c.str(0)
	if err != nil {
		return jni.Void, err
	}
	user, err := c.str(1)
	if err != nil {
		return jni.Void, err
	}
	version, err := c.str(2)
	if err != nil {
		return jni.Void, err
	}

	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.started.Load() {
		Logger().Debug("startupRime on a started engine ignored")
		return jni.Void, nil
	}

	l.engine.SetNotificationHandler(l.notifier.Handle)
	err = l.engine.Startup(engine.Traits{
		SharedDataDir: shared,
		UserDataDir:   user,
		AppName:       AppName,
		AppVersion:    version,
		FullCheck:     c.args[3].AsBool(),
	})
	if err != nil {
		return jni.Void, err
	}
	l.started.Store(true)
	Logger().Info("rime started",
		zap.String("shared_data_dir", shared),
		zap.String("user_data_dir", user),
		zap.String("engine", l.engine.Version()))
	return jni.Void, nil
}

func (l *Library) exit(*call) (jni.Value, error) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.started.Swap(false) {
		l.engine.Shutdown()
		Logger().Info("rime exited")
	}
	return jni.Void, nil
}

func (l *Library) deploy(*call) (jni.Value, error) {
	if err := l.engine.Deploy(); err != nil {
		Logger().Warn("deploy failed", zap.Error(err))
		return jni.Bool(false), nil
	}
	return jni.Bool(true), nil
}

func (l *Library) syncUserData(*call) (jni.Value, error) {
	if err := l.engine.SyncUserData(); err != nil {
		Logger().Warn("sync user data failed", zap.Error(err))
		return jni.Bool(false), nil
	}
	return jni.Bool(true), nil
}

func (l *Library) processKey(c *call) (jni.Value, error) {
	return jni.Bool(l.engine.ProcessKey(int(c.args[0].AsInt()), int(c.args[1].AsInt()))), nil
}

func (l *Library) simulateKeys(c *call) (jni.Value, error) {
	seq, err := c.str(0)
	if err != nil {
		return jni.Bool(false), err
	}
	events, err := engine.ParseKeySequence(seq)
	if err != nil {
		Logger().Debug("bad key sequence", zap.String("sequence", seq), zap.Error(err))
		return jni.Bool(false), nil
	}
	for _, ev := range events {
		l.engine.ProcessKey(ev.Keycode, ev.Mask)
	}
	return jni.Bool(true), nil
}

func (l *Library) commitComposition(*call) (jni.Value, error) {
	return jni.Bool(l.engine.CommitComposition()), nil
}

func (l *Library) clearComposition(*call) (jni.Value, error) {
	l.engine.ClearComposition()
	return jni.Void, nil
}

func (l *Library) getCommit(c *call) (jni.Value, error) {
	commit, ok := l.engine.Commit()
	if !ok {
		return jni.Obj(0), nil
	}
	obj, err := c.codec.EncodeCommit(commit)
	return jni.Obj(obj), err
}

func (l *Library) getContext(c *call) (jni.Value, error) {
	ctx, ok := l.engine.Context()
	if !ok {
		return jni.Obj(0), nil
	}
	obj, err := c.codec.EncodeContext(ctx)
	return jni.Obj(obj), err
}

func (l *Library) getStatus(c *call) (jni.Value, error) {
	st, ok := l.engine.Status()
	if !ok {
		return jni.Obj(0), nil
	}
	obj, err := c.codec.EncodeStatus(st)
	return jni.Obj(obj), err
}

func (l *Library) setOption(c *call) (jni.Value, error) {
	name, err := c.str(0)
	if err != nil {
		return jni.Void, err
	}
	l.engine.SetOption(name, c.args[1].AsBool())
	return jni.Void, nil
}

func (l *Library) getOption(c *call) (jni.Value, error) {
	name, err := c.str(0)
	if err != nil {
		return jni.Bool(false), err
	}
	return jni.Bool(l.engine.Option(name)), nil
}

func (l *Library) setOptions(c *call) (jni.Value, error) {
	arr := c.args[0].AsObject()
	if arr == 0 {
		return jni.Void, errors.NullHandle(errors.PhaseDecode, []string{"options"}, "options")
	}
	type option struct {
		name  string
		value bool
	}
	var opts []option
	err := c.codec.decodeArray(arr, func(_ int, el jni.Object) error {
		first, second, err := c.codec.DecodePair(el)
		if err != nil {
			return err
		}
		defer first.Release()
		defer second.Release()

		cs, err := NewCString(c.env, first.Object())
		if err != nil {
			return err
		}
		name := cs.String()
		cs.Release()
		value, err := c.codec.UnboxBool(second.Object())
		if err != nil {
			return err
		}
		opts = append(opts, option{name: name, value: value})
		return nil
	})
	if err != nil {
		return jni.Void, err
	}
	// apply only after every pair decoded
	for _, o := range opts {
		l.engine.SetOption(o.name, o.value)
	}
	return jni.Void, nil
}

func (l *Library) getSchemaList(c *call) (jni.Value, error) {
	arr, err := c.codec.EncodeSchemaList(l.engine.SchemaList())
	return jni.Obj(arr), err
}

func (l *Library) getCurrentSchema(c *call) (jni.Value, error) {
	s, err := NewJString(c.env, l.engine.CurrentSchema())
	if err != nil {
		return jni.Obj(0), err
	}
	return jni.Obj(s.Take()), nil
}

func (l *Library) selectSchema(c *call) (jni.Value, error) {
	id, err := c.str(0)
	if err != nil {
		return jni.Bool(false), err
	}
	if id == "" {
		ThrowException(c.env, msgInvalidSchema)
		return jni.Bool(false), nil
	}
	return jni.Bool(l.engine.SelectSchema(id)), nil
}

func (l *Library) getCandidates(c *call) (jni.Value, error) {
	arr, err := c.codec.EncodeCandidates(l.engine.Candidates())
	return jni.Obj(arr), err
}

func (l *Library) selectCandidate(c *call) (jni.Value, error) {
	return jni.Bool(l.engine.SelectCandidateOnPage(int(c.args[0].AsInt()))), nil
}

func (l *Library) getRawInput(c *call) (jni.Value, error) {
	s, err := NewJString(c.env, l.engine.RawInput())
	if err != nil {
		return jni.Obj(0), err
	}
	return jni.Obj(s.Take()), nil
}

func (l *Library) getCaretPos(*call) (jni.Value, error) {
	return jni.Int(int32(l.engine.CaretPos())), nil
}

func (l *Library) setCaretPos(c *call) (jni.Value, error) {
	l.engine.SetCaretPos(int(c.args[0].AsInt()))
	return jni.Void, nil
}

// getConfigMap returns null unless the key names a map.
func (l *Library) getConfigMap(c *call) (jni.Value, error) {
	configID, err := c.str(0)
	if err != nil {
		return jni.Obj(0), err
	}
	key, err := c.str(1)
	if err != nil {
		return jni.Obj(0), err
	}
	v, ok := l.engine.Config(configID, key)
	if !ok {
		return jni.Obj(0), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return jni.Obj(0), nil
	}
	obj, err := c.codec.EncodeConfigValue(m)
	return jni.Obj(obj), err
}

func (l *Library) version(c *call) (jni.Value, error) {
	s, err := NewJString(c.env, l.engine.Version())
	if err != nil {
		return jni.Obj(0), err
	}
	return jni.Obj(s.Take()), nil
}
