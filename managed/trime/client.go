package trime

import (
	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
	"github.com/wippyai/rime-bridge/managed"
)

// clientFrame bounds the locals of one client call.
const clientFrame = 64

// Client calls the native entry points of the Rime class from the managed
// side. Exceptions thrown by a native are returned as *managed.Throwable.
// A Client belongs to the thread of its env.
type Client struct {
	env *managed.Env
}

// NewClient creates a client for an attached env.
func NewClient(env *managed.Env) *Client {
	return &Client{env: env}
}

// Env returns the client's env.
func (c *Client) Env() *managed.Env { return c.env }

// call runs fn inside a local frame so every reference it reads is freed.
func (c *Client) call(fn func() error) error {
	if c.env.PushLocalFrame(clientFrame) != jni.OK {
		return errors.New(errors.PhaseCall, errors.KindCapacity).Detail("push local frame").Build()
	}
	defer c.env.PopLocalFrame(0)
	return fn()
}

func (c *Client) invoke(name string, args ...jni.Value) (jni.Value, error) {
	sig, ok := contract.NativeSig(name)
	if !ok {
		return jni.Value{}, errors.NotFound(errors.PhaseCall, "native", name)
	}
	return c.env.InvokeStatic(contract.RimeClass, name, sig, args...)
}

func (c *Client) invokeBool(name string, args ...jni.Value) (bool, error) {
	var out bool
	err := c.call(func() error {
		v, err := c.invoke(name, args...)
		out = v.AsBool()
		return err
	})
	return out, err
}

func (c *Client) invokeVoid(name string, args ...jni.Value) error {
	return c.call(func() error {
		_, err := c.invoke(name, args...)
		return err
	})
}

func (c *Client) invokeString(name string, args ...jni.Value) (string, error) {
	var out string
	err := c.call(func() error {
		v, err := c.invoke(name, args...)
		if err != nil {
			return err
		}
		out, _ = c.env.GoString(v.AsObject())
		return nil
	})
	return out, err
}

func (c *Client) Startup(sharedDir, userDir, appVersion string, fullCheck bool) error {
	return c.call(func() error {
		_, err := c.invoke(contract.NativeStartup,
			jni.Obj(c.env.NewString(sharedDir)),
			jni.Obj(c.env.NewString(userDir)),
			jni.Obj(c.env.NewString(appVersion)),
			jni.Bool(fullCheck))
		return err
	})
}

func (c *Client) Exit() error { return c.invokeVoid(contract.NativeExit) }

func (c *Client) Deploy() (bool, error) { return c.invokeBool(contract.NativeDeploy) }

func (c *Client) SyncUserData() (bool, error) { return c.invokeBool(contract.NativeSyncUserData) }

func (c *Client) ProcessKey(keycode, mask int32) (bool, error) {
	return c.invokeBool(contract.NativeProcessKey, jni.Int(keycode), jni.Int(mask))
}

func (c *Client) SimulateKeySequence(seq string) (bool, error) {
	var out bool
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeSimulateKeys, jni.Obj(c.env.NewString(seq)))
		out = v.AsBool()
		return err
	})
	return out, err
}

func (c *Client) CommitComposition() (bool, error) {
	return c.invokeBool(contract.NativeCommitComposition)
}

func (c *Client) ClearComposition() error { return c.invokeVoid(contract.NativeClearComposition) }

// Commit returns the committed text; ok is false when the native returned
// null.
func (c *Client) Commit() (commit engine.Commit, ok bool, err error) {
	err = c.call(func() error {
		v, err := c.invoke(contract.NativeGetCommit)
		if err != nil || v.AsObject() == 0 {
			return err
		}
		view := c.env.View(v.AsObject())
		commit.Text = view.String("text")
		ok = true
		return view.Err()
	})
	return commit, ok, err
}

// Context reads the context record. A null record reads as the zero value.
func (c *Client) Context() (engine.Context, error) {
	var out engine.Context
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetContext)
		if err != nil || v.AsObject() == 0 {
			return err
		}
		view := c.env.View(v.AsObject())
		out.CommitTextPreview = view.String("commit_text_preview")
		out.SelectLabels = view.Strings("select_labels")

		if comp := view.Object("composition"); comp != 0 {
			out.Composition = readComposition(c.env.View(comp))
			c.env.DeleteLocalRef(comp)
		}
		if menu := view.Object("menu"); menu != 0 {
			m, err := c.readMenu(menu)
			c.env.DeleteLocalRef(menu)
			if err != nil {
				return err
			}
			out.Menu = m
		}
		return view.Err()
	})
	return out, err
}

func readComposition(v *managed.View) engine.Composition {
	return engine.Composition{
		Length:    v.Int("length"),
		CursorPos: v.Int("cursor_pos"),
		SelStart:  v.Int("sel_start"),
		SelEnd:    v.Int("sel_end"),
		Preedit:   v.String("preedit"),
	}
}

func (c *Client) readMenu(menu jni.Object) (engine.Menu, error) {
	v := c.env.View(menu)
	m := engine.Menu{
		PageSize:                  v.Int("page_size"),
		PageNo:                    v.Int("page_no"),
		IsLastPage:                v.Bool("is_last_page"),
		HighlightedCandidateIndex: v.Int("highlighted_candidate_index"),
		NumCandidates:             v.Int("num_candidates"),
	}
	arr := v.Object("candidates")
	if arr != 0 {
		cands, err := c.readCandidates(arr)
		c.env.DeleteLocalRef(arr)
		if err != nil {
			return m, err
		}
		m.Candidates = cands
	}
	return m, v.Err()
}

// readCandidates reads one element at a time so the frame never holds more
// than a few locals.
func (c *Client) readCandidates(arr jni.Array) ([]engine.Candidate, error) {
	n := c.env.GetArrayLength(arr)
	out := make([]engine.Candidate, 0, n)
	for i := int32(0); i < n; i++ {
		el := c.env.GetObjectArrayElement(arr, i)
		v := c.env.View(el)
		out = append(out, engine.Candidate{Text: v.String("text"), Comment: v.String("comment")})
		c.env.DeleteLocalRef(el)
		if err := v.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Status reads the status record.
func (c *Client) Status() (engine.Status, error) {
	var out engine.Status
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetStatus)
		if err != nil || v.AsObject() == 0 {
			return err
		}
		view := c.env.View(v.AsObject())
		out = engine.Status{
			SchemaID:      view.String("schema_id"),
			SchemaName:    view.String("schema_name"),
			IsDisabled:    view.Bool("is_disabled"),
			IsComposing:   view.Bool("is_composing"),
			IsASCIIMode:   view.Bool("is_ascii_mode"),
			IsFullShape:   view.Bool("is_full_shape"),
			IsSimplified:  view.Bool("is_simplified"),
			IsTraditional: view.Bool("is_traditional"),
			IsASCIIPunct:  view.Bool("is_ascii_punct"),
		}
		return view.Err()
	})
	return out, err
}

func (c *Client) SetOption(name string, value bool) error {
	return c.call(func() error {
		_, err := c.invoke(contract.NativeSetOption, jni.Obj(c.env.NewString(name)), jni.Bool(value))
		return err
	})
}

func (c *Client) Option(name string) (bool, error) {
	var out bool
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetOption, jni.Obj(c.env.NewString(name)))
		out = v.AsBool()
		return err
	})
	return out, err
}

// Option is one name/value pair for SetOptions.
type Option struct {
	Name  string
	Value bool
}

// SetOptions passes options as a kotlin.Pair<String, Boolean> array.
func (c *Client) SetOptions(opts []Option) error {
	return c.call(func() error {
		arr, err := c.pairArray(opts)
		if err != nil {
			return err
		}
		_, err = c.invoke(contract.NativeSetOptions, jni.Obj(arr))
		return err
	})
}

func (c *Client) pairArray(opts []Option) (jni.Array, error) {
	pairCls := c.env.FindClass(contract.PairClass)
	if pairCls == 0 {
		c.env.ExceptionClear()
		return 0, errors.ClassNotFound(errors.PhaseCall, contract.PairClass)
	}
	defer c.env.DeleteLocalRef(pairCls)

	arr := c.env.NewObjectArray(int32(len(opts)), pairCls, 0)
	for i, o := range opts {
		boxed, err := c.env.Construct(contract.BooleanClass, contract.SigBooleanInit, jni.Bool(o.Value))
		if err != nil {
			return 0, err
		}
		name := c.env.NewString(o.Name)
		pair, err := c.env.Construct(contract.PairClass, "("+contract.SigObject+contract.SigObject+")V", jni.Obj(name), jni.Obj(boxed))
		if err != nil {
			return 0, err
		}
		c.env.SetObjectArrayElement(arr, int32(i), pair)
		c.env.DeleteLocalRef(pair)
		c.env.DeleteLocalRef(name)
		c.env.DeleteLocalRef(boxed)
	}
	return arr, nil
}

// SchemaList reads the schema list array.
func (c *Client) SchemaList() ([]engine.SchemaItem, error) {
	var out []engine.SchemaItem
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetSchemaList)
		if err != nil || v.AsObject() == 0 {
			return err
		}
		arr := v.AsObject()
		n := c.env.GetArrayLength(arr)
		out = make([]engine.SchemaItem, 0, n)
		for i := int32(0); i < n; i++ {
			el := c.env.GetObjectArrayElement(arr, i)
			view := c.env.View(el)
			out = append(out, engine.SchemaItem{ID: view.String("schema_id"), Name: view.String("schema_name")})
			c.env.DeleteLocalRef(el)
			if err := view.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (c *Client) CurrentSchema() (string, error) {
	return c.invokeString(contract.NativeGetCurrentSchema)
}

func (c *Client) SelectSchema(id string) (bool, error) {
	var out bool
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeSelectSchema, jni.Obj(c.env.NewString(id)))
		out = v.AsBool()
		return err
	})
	return out, err
}

// Candidates reads every candidate of the current input.
func (c *Client) Candidates() ([]engine.Candidate, error) {
	var out []engine.Candidate
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetCandidates)
		if err != nil || v.AsObject() == 0 {
			return err
		}
		out, err = c.readCandidates(v.AsObject())
		return err
	})
	return out, err
}

func (c *Client) SelectCandidate(index int32) (bool, error) {
	return c.invokeBool(contract.NativeSelectCandidate, jni.Int(index))
}

func (c *Client) RawInput() (string, error) { return c.invokeString(contract.NativeGetRawInput) }

func (c *Client) CaretPos() (int32, error) {
	var out int32
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetCaretPos)
		out = v.AsInt()
		return err
	})
	return out, err
}

func (c *Client) SetCaretPos(pos int32) error {
	return c.invokeVoid(contract.NativeSetCaretPos, jni.Int(pos))
}

// ConfigMap reads a config subtree as Go values: maps become
// map[string]any, lists []any, boxed values int and bool.
func (c *Client) ConfigMap(configID, key string) (map[string]any, error) {
	var out map[string]any
	err := c.call(func() error {
		v, err := c.invoke(contract.NativeGetConfigMap,
			jni.Obj(c.env.NewString(configID)),
			jni.Obj(c.env.NewString(key)))
		if err != nil || v.AsObject() == 0 {
			return err
		}
		tree, err := c.readValue(v.AsObject())
		if err != nil {
			return err
		}
		m, ok := tree.(map[string]any)
		if !ok {
			return errors.TypeMismatch(errors.PhaseDecode, []string{key}, "java/util/Map", c.env.ClassName(v.AsObject()))
		}
		out = m
		return nil
	})
	return out, err
}

func (c *Client) readValue(obj jni.Object) (any, error) {
	switch name := c.env.ClassName(obj); name {
	case "":
		return nil, nil
	case contract.StringClass:
		s, _ := c.env.GoString(obj)
		return s, nil
	case contract.IntegerClass:
		v, err := c.env.InvokeMethod(obj, "intValue", contract.SigIntValue)
		return int(v.AsInt()), err
	case contract.BooleanClass:
		v, err := c.env.InvokeMethod(obj, "booleanValue", contract.SigBooleanValue)
		return v.AsBool(), err
	case contract.HashMapClass:
		return c.readMap(obj)
	case contract.ArrayListClass:
		return c.readList(obj)
	default:
		return nil, errors.Unsupported(errors.PhaseDecode, "config value of class "+name)
	}
}

func (c *Client) readMap(obj jni.Object) (map[string]any, error) {
	n := c.env.MapLen(obj)
	out := make(map[string]any, max(n, 0))
	for i := 0; i < n; i++ {
		k, val := c.env.MapEntry(obj, i)
		name, _ := c.env.GoString(k)
		v, err := c.readValue(val)
		c.env.DeleteLocalRef(k)
		c.env.DeleteLocalRef(val)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (c *Client) readList(obj jni.Object) ([]any, error) {
	size, err := c.env.InvokeMethod(obj, "size", "()I")
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, size.AsInt())
	for i := int32(0); i < size.AsInt(); i++ {
		el, err := c.env.InvokeMethod(obj, "get", "(I)"+contract.SigObject, jni.Int(i))
		if err != nil {
			return nil, err
		}
		v, err := c.readValue(el.AsObject())
		c.env.DeleteLocalRef(el.AsObject())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) Version() (string, error) { return c.invokeString(contract.NativeGetVersion) }
