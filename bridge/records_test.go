package bridge

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
	"github.com/wippyai/rime-bridge/managed"
)

func TestCodec_StatusRoundTrip(t *testing.T) {
	h := newHarness(t)
	c := h.codec()
	base := h.env.LiveLocals()

	// mode flags in field order: composing, ascii_mode, full_shape,
	// simplified, traditional, ascii_punct
	flags := [6]bool{false, true, false, false, true, false}
	st := engine.Status{
		SchemaID:      "luna_pinyin",
		SchemaName:    "朙月拼音",
		IsComposing:   flags[0],
		IsASCIIMode:   flags[1],
		IsFullShape:   flags[2],
		IsSimplified:  flags[3],
		IsTraditional: flags[4],
		IsASCIIPunct:  flags[5],
	}
	obj, err := c.EncodeStatus(st)
	require.NoError(t, err)
	assert.Equal(t, base+1, h.env.LiveLocals(), "only the record survives encoding")

	v := h.env.View(obj)
	assert.Equal(t, "luna_pinyin", v.String("schema_id"))
	assert.Equal(t, "朙月拼音", v.String("schema_name"))
	assert.False(t, v.Bool("is_disabled"))
	fields := []string{"is_composing", "is_ascii_mode", "is_full_shape", "is_simplified", "is_traditional", "is_ascii_punct"}
	for i, name := range fields {
		assert.Equal(t, flags[i], v.Bool(name), name)
	}
	require.NoError(t, v.Err())

	st.IsDisabled = true
	disabled, err := c.EncodeStatus(st)
	require.NoError(t, err)
	assert.True(t, h.env.View(disabled).Bool("is_disabled"))
	assert.Equal(t, flags[4], h.env.View(disabled).Bool("is_traditional"), "is_disabled is independent of the mode flags")
	h.env.DeleteLocalRef(disabled)

	got, err := c.DecodeStatus(obj)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	h.env.DeleteLocalRef(obj)
	assert.Equal(t, base, h.env.LiveLocals())
}

func TestCodec_ContextRoundTrip(t *testing.T) {
	h := newHarness(t)
	c := h.codec()
	base := h.env.LiveLocals()

	ctx := engine.Context{
		Composition: engine.Composition{Preedit: "ni hao", Length: 6, CursorPos: 3, SelStart: 0, SelEnd: 6},
		Menu: engine.Menu{
			PageSize:                  5,
			PageNo:                    1,
			IsLastPage:                true,
			HighlightedCandidateIndex: 1,
			NumCandidates:             2,
			Candidates:                []engine.Candidate{{Text: "你好"}, {Text: "擬好", Comment: "~"}},
		},
		CommitTextPreview: "你好",
		SelectLabels:      []string{"1", "2"},
	}
	obj, err := c.EncodeContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, base+1, h.env.LiveLocals())

	got, err := c.DecodeContext(obj)
	require.NoError(t, err)
	assert.Equal(t, ctx, got)
	assert.Equal(t, base+1, h.env.LiveLocals(), "decoding releases what it reads")
	h.env.DeleteLocalRef(obj)
}

func TestCodec_EmptyStrings(t *testing.T) {
	h := newHarness(t)
	c := h.codec()

	obj, err := c.EncodeCommit(engine.Commit{})
	require.NoError(t, err)
	v := h.env.View(obj)
	assert.False(t, v.IsNull("text"), "empty text is an empty string, not null")
	h.env.DeleteLocalRef(obj)

	item, err := c.EncodeSchemaItem(engine.SchemaItem{ID: "stroke", Name: "筆畫"})
	require.NoError(t, err)
	got, err := c.DecodeSchemaItem(item)
	require.NoError(t, err)
	assert.Equal(t, engine.SchemaItem{ID: "stroke", Name: "筆畫"}, got)
	h.env.DeleteLocalRef(item)
}

func TestCodec_NullRecords(t *testing.T) {
	h := newHarness(t)
	c := h.codec()

	null := &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindNullHandle}
	_, err := c.DecodeStatus(0)
	assert.ErrorIs(t, err, null)
	_, err = c.DecodeContext(0)
	assert.ErrorIs(t, err, null)
	_, err = c.DecodeCandidate(0)
	assert.ErrorIs(t, err, null)
	_, _, err = c.DecodePair(0)
	assert.ErrorIs(t, err, null)

	cands, err := c.DecodeCandidates(0)
	require.NoError(t, err)
	assert.Nil(t, cands)
}

func TestCodec_CandidateArrayIsFilledInPlace(t *testing.T) {
	h := newHarness(t)
	c := h.codec()
	tid := h.env.Thread()

	var (
		mu     sync.Mutex
		events []managed.Event
	)
	unsubscribe := h.vm.Subscribe(managed.ObserverFunc(func(e managed.Event) {
		if e.Thread != tid || (e.Type != managed.EventArrayNew && e.Type != managed.EventArraySet) {
			return
		}
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))
	defer unsubscribe()

	cands := []engine.Candidate{{Text: "你"}, {Text: "尼"}, {Text: "泥"}, {Text: "倪"}, {Text: "妮"}}
	base := h.env.LiveLocals()
	arr, err := c.EncodeCandidates(cands)
	require.NoError(t, err)
	assert.Equal(t, base+1, h.env.LiveLocals())

	mu.Lock()
	got := append([]managed.Event(nil), events...)
	mu.Unlock()

	require.Len(t, got, 6)
	assert.Equal(t, managed.EventArrayNew, got[0].Type)
	assert.Equal(t, 5, got[0].Length)
	for i, e := range got[1:] {
		assert.Equal(t, managed.EventArraySet, e.Type)
		assert.Equal(t, i, e.Index)
		assert.Equal(t, 5, e.Length)
	}

	decoded, err := c.DecodeCandidates(arr)
	require.NoError(t, err)
	assert.Equal(t, cands, decoded)
	h.env.DeleteLocalRef(arr)
}

func TestCodec_LargeArrayStaysInFrame(t *testing.T) {
	h := newHarness(t)
	c := h.codec()

	cands := make([]engine.Candidate, managed.DefaultLocalCapacity*2)
	for i := range cands {
		cands[i] = engine.Candidate{Text: "字", Comment: "zi"}
	}
	arr, err := c.EncodeCandidates(cands)
	require.NoError(t, err)
	assert.Equal(t, int32(len(cands)), h.env.GetArrayLength(arr))
	h.env.DeleteLocalRef(arr)
	assert.Empty(t, h.takeFatals(), "encoding never overflows the local table")
}

func TestCodec_Boxing(t *testing.T) {
	h := newHarness(t)
	c := h.codec()

	i, err := c.BoxInt(42)
	require.NoError(t, err)
	defer h.env.DeleteLocalRef(i)
	n, err := c.UnboxInt(i)
	require.NoError(t, err)
	assert.Equal(t, int32(42), n)

	b, err := c.BoxBool(true)
	require.NoError(t, err)
	defer h.env.DeleteLocalRef(b)
	v, err := c.UnboxBool(b)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = c.UnboxBool(i)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindTypeMismatch, e.Kind)
	assert.Contains(t, e.Error(), contract.IntegerClass)

	_, err = c.UnboxInt(0)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindNullHandle})
}

func TestCodec_EncodeConfigValue(t *testing.T) {
	h := newHarness(t)
	c := h.codec()
	base := h.env.LiveLocals()

	obj, err := c.EncodeConfigValue(map[string]any{
		"size":   18,
		"flag":   true,
		"name":   "朙月",
		"ratio":  1.5,
		"labels": []any{"a", int64(2)},
		"none":   nil,
	})
	require.NoError(t, err)
	assert.Equal(t, base+1, h.env.LiveLocals())
	require.Equal(t, 6, h.env.MapLen(obj))

	var keys []string
	values := map[string]jni.Object{}
	for i := 0; i < h.env.MapLen(obj); i++ {
		k, v := h.env.MapEntry(obj, i)
		s, _ := h.env.GoString(k)
		keys = append(keys, s)
		values[s] = v
		h.env.DeleteLocalRef(k)
	}
	assert.Equal(t, []string{"flag", "labels", "name", "none", "ratio", "size"}, keys, "keys in sorted order")

	size, err := c.UnboxInt(values["size"])
	require.NoError(t, err)
	assert.Equal(t, int32(18), size)
	flag, err := c.UnboxBool(values["flag"])
	require.NoError(t, err)
	assert.True(t, flag)
	ratio, _ := h.env.GoString(values["ratio"])
	assert.Equal(t, "1.5", ratio)
	assert.Zero(t, values["none"])
	assert.Equal(t, contract.ArrayListClass, h.env.ClassName(values["labels"]))

	for _, v := range values {
		h.env.DeleteLocalRef(v)
	}
	h.env.DeleteLocalRef(obj)
	assert.Equal(t, base, h.env.LiveLocals())

	_, err = c.EncodeConfigValue(struct{}{})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindUnsupported})
	assert.Equal(t, base, h.env.LiveLocals(), "a failed encode releases partial results")
}

func TestCodec_EncodeConfigValue_IntRange(t *testing.T) {
	h := newHarness(t)
	c := h.codec()
	base := h.env.LiveLocals()

	for _, v := range []any{int64(math.MaxInt32), int64(math.MinInt32), uint64(7), -1} {
		obj, err := c.EncodeConfigValue(v)
		require.NoError(t, err, "%v", v)
		_, err = c.UnboxInt(obj)
		require.NoError(t, err)
		h.env.DeleteLocalRef(obj)
	}

	wide := int64(3000000000)
	outOfRange := []any{
		int64(1) << 32,
		int64(math.MinInt32) - 1,
		uint64(1) << 63,
		uint64(math.MaxInt32) + 1,
		int(wide),
		map[string]any{"size": int64(1) << 40},
		[]any{"a", int64(-1) << 33},
	}
	for _, v := range outOfRange {
		_, err := c.EncodeConfigValue(v)
		assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseEncode, Kind: errors.KindOutOfBounds}, "%v", v)
	}
	assert.Equal(t, base, h.env.LiveLocals(), "rejected values leave no locals behind")

	obj, err := c.EncodeConfigValue(int64(-5))
	require.NoError(t, err)
	n, err := c.UnboxInt(obj)
	require.NoError(t, err)
	assert.Equal(t, int32(-5), n)
	h.env.DeleteLocalRef(obj)
}
