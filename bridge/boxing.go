package bridge

import (
	"math"
	"sort"
	"strconv"

	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// BoxInt creates a java/lang/Integer.
func (c *Codec) BoxInt(v int32) (jni.Object, error) {
	obj := c.env.NewObject(c.refs.Integer, c.refs.IntegerInit, jni.Int(v))
	if obj == 0 || c.env.ExceptionCheck() {
		return 0, c.failed(errors.PhaseEncode, contract.IntegerClass, contract.Init)
	}
	return obj, nil
}

// BoxBool creates a java/lang/Boolean.
func (c *Codec) BoxBool(v bool) (jni.Object, error) {
	obj := c.env.NewObject(c.refs.Boolean, c.refs.BooleanInit, jni.Bool(v))
	if obj == 0 || c.env.ExceptionCheck() {
		return 0, c.failed(errors.PhaseEncode, contract.BooleanClass, contract.Init)
	}
	return obj, nil
}

// UnboxInt reads a java/lang/Integer.
func (c *Codec) UnboxInt(obj jni.Object) (int32, error) {
	if err := c.expect(obj, c.refs.Integer, contract.IntegerClass); err != nil {
		return 0, err
	}
	v := c.env.CallIntMethod(obj, c.refs.IntegerIntValue)
	if c.env.ExceptionCheck() {
		return 0, c.failed(errors.PhaseDecode, contract.IntegerClass, "intValue")
	}
	return v, nil
}

// UnboxBool reads a java/lang/Boolean.
func (c *Codec) UnboxBool(obj jni.Object) (bool, error) {
	if err := c.expect(obj, c.refs.Boolean, contract.BooleanClass); err != nil {
		return false, err
	}
	v := c.env.CallBooleanMethod(obj, c.refs.BooleanBooleanValue)
	if c.env.ExceptionCheck() {
		return false, c.failed(errors.PhaseDecode, contract.BooleanClass, "booleanValue")
	}
	return v, nil
}

func (c *Codec) expect(obj jni.Object, cls jni.Class, class string) error {
	if obj == 0 {
		return errors.NullHandle(errors.PhaseDecode, nil, class)
	}
	if !c.env.IsInstanceOf(obj, cls) {
		got := NewLocalRef(c.env, c.env.GetObjectClass(obj))
		defer got.Release()
		return errors.TypeMismatch(errors.PhaseDecode, nil, class, c.className(got.Object()))
	}
	return nil
}

// className names a class reference for error messages.
func (c *Codec) className(cls jni.Class) string {
	for _, known := range []struct {
		cls  jni.Class
		name string
	}{
		{c.refs.String, contract.StringClass},
		{c.refs.Integer, contract.IntegerClass},
		{c.refs.Boolean, contract.BooleanClass},
		{c.refs.HashMap, contract.HashMapClass},
		{c.refs.ArrayList, contract.ArrayListClass},
		{c.refs.Pair, contract.PairClass},
	} {
		if c.env.IsSameObject(cls, known.cls) {
			return known.name
		}
	}
	return contract.ObjectClass
}

// NewHashMap creates a HashMap and puts keys[i] -> values[i] in order.
func (c *Codec) NewHashMap(keys []string, values []jni.Object) (jni.Object, error) {
	if len(keys) != len(values) {
		return 0, errors.InvalidInput(errors.PhaseEncode, "keys and values differ in length")
	}
	m := c.env.NewObject(c.refs.HashMap, c.refs.HashMapInit)
	if m == 0 || c.env.ExceptionCheck() {
		return 0, c.failed(errors.PhaseEncode, contract.HashMapClass, contract.Init)
	}
	ref := NewLocalRef(c.env, m)
	defer ref.Release()
	for i, k := range keys {
		if err := c.MapPut(m, k, values[i]); err != nil {
			return 0, err
		}
	}
	return ref.Take(), nil
}

// MapPut puts a string key into a HashMap.
func (c *Codec) MapPut(m jni.Object, key string, value jni.Object) error {
	k, err := NewJString(c.env, key)
	if err != nil {
		return err
	}
	defer k.Release()
	prev := c.env.CallObjectMethod(m, c.refs.HashMapPut, jni.Obj(k.Ref()), jni.Obj(value))
	if c.env.ExceptionCheck() {
		return c.failed(errors.PhaseEncode, contract.HashMapClass, "put")
	}
	c.env.DeleteLocalRef(prev)
	return nil
}

// NewArrayList creates an ArrayList with capacity n.
func (c *Codec) NewArrayList(n int) (jni.Object, error) {
	l := c.env.NewObject(c.refs.ArrayList, c.refs.ArrayListInit, jni.Int(int32(n)))
	if l == 0 || c.env.ExceptionCheck() {
		return 0, c.failed(errors.PhaseEncode, contract.ArrayListClass, contract.Init)
	}
	return l, nil
}

// ListAdd inserts value at index i.
func (c *Codec) ListAdd(l jni.Object, i int, value jni.Object) error {
	c.env.CallVoidMethod(l, c.refs.ArrayListAdd, jni.Int(int32(i)), jni.Obj(value))
	if c.env.ExceptionCheck() {
		return c.failed(errors.PhaseEncode, contract.ArrayListClass, "add")
	}
	return nil
}

// EncodeConfigValue converts a config tree to managed values: maps become
// HashMap (keys sorted), lists ArrayList, and scalars String, Integer or
// Boolean. Floats become their decimal String; nil becomes null. Integers
// outside the int32 range fail with KindOutOfBounds.
func (c *Codec) EncodeConfigValue(v any) (jni.Object, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		return c.encodeString(x)
	case bool:
		return c.BoxBool(x)
	case int:
		return c.boxConfigInt(int64(x), v)
	case int64:
		return c.boxConfigInt(x, v)
	case uint64:
		if x > math.MaxInt32 {
			return 0, configIntRange(v)
		}
		return c.BoxInt(int32(x))
	case float64:
		return c.encodeString(strconv.FormatFloat(x, 'g', -1, 64))
	case []any:
		return c.encodeList(x)
	case map[string]any:
		return c.encodeMap(x)
	default:
		return 0, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Value(v).
			Detail("config value of type %T", v).
			Build()
	}
}

// boxConfigInt boxes an integer that must fit java/lang/Integer.
func (c *Codec) boxConfigInt(x int64, v any) (jni.Object, error) {
	if x < math.MinInt32 || x > math.MaxInt32 {
		return 0, configIntRange(v)
	}
	return c.BoxInt(int32(x))
}

func configIntRange(v any) error {
	return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
		Class(contract.IntegerClass).
		Value(v).
		Detail("config integer %v does not fit in 32 bits", v).
		Build()
}

func (c *Codec) encodeString(s string) (jni.Object, error) {
	js, err := NewJString(c.env, s)
	if err != nil {
		return 0, err
	}
	return js.Take(), nil
}

func (c *Codec) encodeList(items []any) (jni.Object, error) {
	l, err := c.NewArrayList(len(items))
	if err != nil {
		return 0, err
	}
	ref := NewLocalRef(c.env, l)
	defer ref.Release()
	for i, item := range items {
		v, err := c.EncodeConfigValue(item)
		if err != nil {
			return 0, err
		}
		err = c.ListAdd(l, i, v)
		c.env.DeleteLocalRef(v)
		if err != nil {
			return 0, err
		}
	}
	return ref.Take(), nil
}

func (c *Codec) encodeMap(m map[string]any) (jni.Object, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj, err := c.NewHashMap(nil, nil)
	if err != nil {
		return 0, err
	}
	ref := NewLocalRef(c.env, obj)
	defer ref.Release()
	for _, k := range keys {
		v, err := c.EncodeConfigValue(m[k])
		if err != nil {
			return 0, err
		}
		err = c.MapPut(obj, k, v)
		c.env.DeleteLocalRef(v)
		if err != nil {
			return 0, err
		}
	}
	return ref.Take(), nil
}
