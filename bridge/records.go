package bridge

import (
	"github.com/wippyai/rime-bridge/contract"
	"github.com/wippyai/rime-bridge/engine"
	"github.com/wippyai/rime-bridge/errors"
	"github.com/wippyai/rime-bridge/jni"
)

// Codec converts engine records to managed objects and back using only
// cached ids. Every intermediate local is released before the next one is
// created, so encoding an array needs a constant number of locals.
type Codec struct {
	env  jni.Env
	refs *GlobalRefs
}

// NewCodec creates a codec for one env.
func NewCodec(env jni.Env, refs *GlobalRefs) *Codec {
	return &Codec{env: env, refs: refs}
}

// failed reports the pending exception left by op as an error.
func (c *Codec) failed(phase errors.Phase, class, op string) error {
	return errors.PendingException(phase, class, op)
}

func (c *Codec) alloc(cls jni.Class, class string) (*LocalRef, error) {
	obj := c.env.AllocObject(cls)
	if obj == 0 {
		return nil, c.failed(errors.PhaseEncode, class, "AllocObject")
	}
	return NewLocalRef(c.env, obj), nil
}

func (c *Codec) setString(obj jni.Object, id jni.FieldID, s string) error {
	js, err := NewJString(c.env, s)
	if err != nil {
		return err
	}
	defer js.Release()
	c.env.SetObjectField(obj, id, js.Ref())
	return nil
}

func (c *Codec) setObject(obj jni.Object, id jni.FieldID, encode func() (jni.Object, error)) error {
	v, err := encode()
	if err != nil {
		return err
	}
	ref := NewLocalRef(c.env, v)
	defer ref.Release()
	c.env.SetObjectField(obj, id, ref.Object())
	return nil
}

// EncodeComposition creates a RimeComposition.
func (c *Codec) EncodeComposition(comp engine.Composition) (jni.Object, error) {
	r := &c.refs.Composition
	obj, err := c.alloc(r.Class, contract.RimeCompositionClass)
	if err != nil {
		return 0, err
	}
	defer obj.Release()

	c.env.SetIntField(obj.Object(), r.Length, comp.Length)
	c.env.SetIntField(obj.Object(), r.CursorPos, comp.CursorPos)
	c.env.SetIntField(obj.Object(), r.SelStart, comp.SelStart)
	c.env.SetIntField(obj.Object(), r.SelEnd, comp.SelEnd)
	if err := c.setString(obj.Object(), r.Preedit, comp.Preedit); err != nil {
		return 0, err
	}
	return obj.Take(), nil
}

// EncodeCommit creates a RimeCommit.
func (c *Codec) EncodeCommit(commit engine.Commit) (jni.Object, error) {
	obj, err := c.alloc(c.refs.Commit.Class, contract.RimeCommitClass)
	if err != nil {
		return 0, err
	}
	defer obj.Release()
	if err := c.setString(obj.Object(), c.refs.Commit.Text, commit.Text); err != nil {
		return 0, err
	}
	return obj.Take(), nil
}

// EncodeCandidate creates a CandidateListItem through its constructor.
func (c *Codec) EncodeCandidate(cand engine.Candidate) (jni.Object, error) {
	return c.newTwoStrings(c.refs.Candidate.Class, c.refs.Candidate.Init, contract.CandidateListItemClass, cand.Text, cand.Comment)
}

// EncodeSchemaItem creates a SchemaListItem through its constructor.
func (c *Codec) EncodeSchemaItem(item engine.SchemaItem) (jni.Object, error) {
	return c.newTwoStrings(c.refs.SchemaItem.Class, c.refs.SchemaItem.Init, contract.SchemaListItemClass, item.ID, item.Name)
}

func (c *Codec) newTwoStrings(cls jni.Class, ctor jni.MethodID, class, a, b string) (jni.Object, error) {
	first, err := NewJString(c.env, a)
	if err != nil {
		return 0, err
	}
	defer first.Release()
	second, err := NewJString(c.env, b)
	if err != nil {
		return 0, err
	}
	defer second.Release()

	obj := c.env.NewObject(cls, ctor, jni.Obj(first.Ref()), jni.Obj(second.Ref()))
	if obj == 0 || c.env.ExceptionCheck() {
		if obj != 0 {
			c.env.DeleteLocalRef(obj)
		}
		return 0, c.failed(errors.PhaseEncode, class, contract.Init)
	}
	return obj, nil
}

// encodeArray creates an array of n elements and fills it by index.
func (c *Codec) encodeArray(n int, elem jni.Class, class string, encode func(i int) (jni.Object, error)) (jni.Array, error) {
	arr := c.env.NewObjectArray(int32(n), elem, 0)
	if arr == 0 {
		return 0, c.failed(errors.PhaseEncode, class, "NewObjectArray")
	}
	ref := NewLocalRef(c.env, arr)
	defer ref.Release()

	for i := 0; i < n; i++ {
		v, err := encode(i)
		if err != nil {
			return 0, err
		}
		c.env.SetObjectArrayElement(arr, int32(i), v)
		c.env.DeleteLocalRef(v)
		if c.env.ExceptionCheck() {
			return 0, c.failed(errors.PhaseEncode, class, "SetObjectArrayElement")
		}
	}
	return ref.Take(), nil
}

// EncodeCandidates creates a CandidateListItem[].
func (c *Codec) EncodeCandidates(cands []engine.Candidate) (jni.Array, error) {
	return c.encodeArray(len(cands), c.refs.Candidate.Class, contract.CandidateListItemClass, func(i int) (jni.Object, error) {
		return c.EncodeCandidate(cands[i])
	})
}

// EncodeSchemaList creates a SchemaListItem[].
func (c *Codec) EncodeSchemaList(items []engine.SchemaItem) (jni.Array, error) {
	return c.encodeArray(len(items), c.refs.SchemaItem.Class, contract.SchemaListItemClass, func(i int) (jni.Object, error) {
		return c.EncodeSchemaItem(items[i])
	})
}

// EncodeStringArray creates a String[].
func (c *Codec) EncodeStringArray(ss []string) (jni.Array, error) {
	return c.encodeArray(len(ss), c.refs.String, contract.StringClass, func(i int) (jni.Object, error) {
		js, err := NewJString(c.env, ss[i])
		if err != nil {
			return 0, err
		}
		return js.Take(), nil
	})
}

// EncodeMenu creates a RimeMenu.
func (c *Codec) EncodeMenu(menu engine.Menu) (jni.Object, error) {
	r := &c.refs.Menu
	obj, err := c.alloc(r.Class, contract.RimeMenuClass)
	if err != nil {
		return 0, err
	}
	defer obj.Release()

	o := obj.Object()
	c.env.SetIntField(o, r.PageSize, menu.PageSize)
	c.env.SetIntField(o, r.PageNo, menu.PageNo)
	c.env.SetBooleanField(o, r.IsLastPage, menu.IsLastPage)
	c.env.SetIntField(o, r.HighlightedCandidateIndex, menu.HighlightedCandidateIndex)
	c.env.SetIntField(o, r.NumCandidates, menu.NumCandidates)
	if err := c.setObject(o, r.Candidates, func() (jni.Object, error) {
		return c.EncodeCandidates(menu.Candidates)
	}); err != nil {
		return 0, err
	}
	return obj.Take(), nil
}

// EncodeContext creates a RimeContext with its composition and menu.
func (c *Codec) EncodeContext(ctx engine.Context) (jni.Object, error) {
	r := &c.refs.Context
	obj, err := c.alloc(r.Class, contract.RimeContextClass)
	if err != nil {
		return 0, err
	}
	defer obj.Release()

	o := obj.Object()
	if err := c.setObject(o, r.Composition, func() (jni.Object, error) {
		return c.EncodeComposition(ctx.Composition)
	}); err != nil {
		return 0, err
	}
	if err := c.setObject(o, r.Menu, func() (jni.Object, error) {
		return c.EncodeMenu(ctx.Menu)
	}); err != nil {
		return 0, err
	}
	if err := c.setString(o, r.CommitTextPreview, ctx.CommitTextPreview); err != nil {
		return 0, err
	}
	if err := c.setObject(o, r.SelectLabels, func() (jni.Object, error) {
		return c.EncodeStringArray(ctx.SelectLabels)
	}); err != nil {
		return 0, err
	}
	return obj.Take(), nil
}

// EncodeStatus creates a RimeStatus.
func (c *Codec) EncodeStatus(st engine.Status) (jni.Object, error) {
	r := &c.refs.Status
	obj, err := c.alloc(r.Class, contract.RimeStatusClass)
	if err != nil {
		return 0, err
	}
	defer obj.Release()

	o := obj.Object()
	if err := c.setString(o, r.SchemaID, st.SchemaID); err != nil {
		return 0, err
	}
	if err := c.setString(o, r.SchemaName, st.SchemaName); err != nil {
		return 0, err
	}
	c.env.SetBooleanField(o, r.IsDisabled, st.IsDisabled)
	c.env.SetBooleanField(o, r.IsComposing, st.IsComposing)
	c.env.SetBooleanField(o, r.IsASCIIMode, st.IsASCIIMode)
	c.env.SetBooleanField(o, r.IsFullShape, st.IsFullShape)
	c.env.SetBooleanField(o, r.IsSimplified, st.IsSimplified)
	c.env.SetBooleanField(o, r.IsTraditional, st.IsTraditional)
	c.env.SetBooleanField(o, r.IsASCIIPunct, st.IsASCIIPunct)
	return obj.Take(), nil
}

// getString reads a String field; null reads as "".
func (c *Codec) getString(obj jni.Object, id jni.FieldID, path ...string) (string, error) {
	ref := NewLocalRef(c.env, c.env.GetObjectField(obj, id))
	defer ref.Release()
	if ref.IsNull() {
		return "", nil
	}
	cs, err := NewCString(c.env, ref.Object())
	if err != nil {
		if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
			e.Path = path
		}
		return "", err
	}
	defer cs.Release()
	return cs.String(), nil
}

func nullRecord(path string) error {
	return errors.NullHandle(errors.PhaseDecode, []string{path}, path)
}

// DecodeComposition reads a RimeComposition.
func (c *Codec) DecodeComposition(obj jni.Object) (engine.Composition, error) {
	if obj == 0 {
		return engine.Composition{}, nullRecord("composition")
	}
	r := &c.refs.Composition
	comp := engine.Composition{
		Length:    c.env.GetIntField(obj, r.Length),
		CursorPos: c.env.GetIntField(obj, r.CursorPos),
		SelStart:  c.env.GetIntField(obj, r.SelStart),
		SelEnd:    c.env.GetIntField(obj, r.SelEnd),
	}
	var err error
	comp.Preedit, err = c.getString(obj, r.Preedit, "composition", "preedit")
	return comp, err
}

// DecodeCommit reads a RimeCommit.
func (c *Codec) DecodeCommit(obj jni.Object) (engine.Commit, error) {
	if obj == 0 {
		return engine.Commit{}, nullRecord("commit")
	}
	text, err := c.getString(obj, c.refs.Commit.Text, "commit", "text")
	return engine.Commit{Text: text}, err
}

// DecodeCandidate reads a CandidateListItem.
func (c *Codec) DecodeCandidate(obj jni.Object) (engine.Candidate, error) {
	if obj == 0 {
		return engine.Candidate{}, nullRecord("candidate")
	}
	text, err := c.getString(obj, c.refs.Candidate.Text, "candidate", "text")
	if err != nil {
		return engine.Candidate{}, err
	}
	comment, err := c.getString(obj, c.refs.Candidate.Comment, "candidate", "comment")
	return engine.Candidate{Text: text, Comment: comment}, err
}

// DecodeSchemaItem reads a SchemaListItem.
func (c *Codec) DecodeSchemaItem(obj jni.Object) (engine.SchemaItem, error) {
	if obj == 0 {
		return engine.SchemaItem{}, nullRecord("schema")
	}
	id, err := c.getString(obj, c.refs.SchemaItem.SchemaID, "schema", "schema_id")
	if err != nil {
		return engine.SchemaItem{}, err
	}
	name, err := c.getString(obj, c.refs.SchemaItem.SchemaName, "schema", "schema_name")
	return engine.SchemaItem{ID: id, Name: name}, err
}

// decodeArray visits each element of arr, releasing it after fn returns.
func (c *Codec) decodeArray(arr jni.Array, fn func(i int, el jni.Object) error) error {
	n := c.env.GetArrayLength(arr)
	for i := int32(0); i < n; i++ {
		el := NewLocalRef(c.env, c.env.GetObjectArrayElement(arr, i))
		err := fn(int(i), el.Object())
		el.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

// DecodeCandidates reads a CandidateListItem[]. A null array reads as nil.
func (c *Codec) DecodeCandidates(arr jni.Array) ([]engine.Candidate, error) {
	if arr == 0 {
		return nil, nil
	}
	out := make([]engine.Candidate, 0, c.env.GetArrayLength(arr))
	err := c.decodeArray(arr, func(_ int, el jni.Object) error {
		cand, err := c.DecodeCandidate(el)
		out = append(out, cand)
		return err
	})
	return out, err
}

// DecodeStringArray reads a String[]. Null elements read as "".
func (c *Codec) DecodeStringArray(arr jni.Array) ([]string, error) {
	if arr == 0 {
		return nil, nil
	}
	out := make([]string, c.env.GetArrayLength(arr))
	err := c.decodeArray(arr, func(i int, el jni.Object) error {
		if el == 0 {
			return nil
		}
		cs, err := NewCString(c.env, el)
		if err != nil {
			return err
		}
		out[i] = cs.String()
		cs.Release()
		return nil
	})
	return out, err
}

// DecodeMenu reads a RimeMenu.
func (c *Codec) DecodeMenu(obj jni.Object) (engine.Menu, error) {
	if obj == 0 {
		return engine.Menu{}, nullRecord("menu")
	}
	r := &c.refs.Menu
	menu := engine.Menu{
		PageSize:                  c.env.GetIntField(obj, r.PageSize),
		PageNo:                    c.env.GetIntField(obj, r.PageNo),
		IsLastPage:                c.env.GetBooleanField(obj, r.IsLastPage),
		HighlightedCandidateIndex: c.env.GetIntField(obj, r.HighlightedCandidateIndex),
		NumCandidates:             c.env.GetIntField(obj, r.NumCandidates),
	}
	arr := NewLocalRef(c.env, c.env.GetObjectField(obj, r.Candidates))
	defer arr.Release()
	var err error
	menu.Candidates, err = c.DecodeCandidates(arr.Object())
	return menu, err
}

// DecodeContext reads a RimeContext. Null composition or menu read as
// zero values.
func (c *Codec) DecodeContext(obj jni.Object) (engine.Context, error) {
	if obj == 0 {
		return engine.Context{}, nullRecord("context")
	}
	r := &c.refs.Context
	var ctx engine.Context

	comp := NewLocalRef(c.env, c.env.GetObjectField(obj, r.Composition))
	defer comp.Release()
	if !comp.IsNull() {
		v, err := c.DecodeComposition(comp.Object())
		if err != nil {
			return ctx, err
		}
		ctx.Composition = v
	}

	menu := NewLocalRef(c.env, c.env.GetObjectField(obj, r.Menu))
	defer menu.Release()
	if !menu.IsNull() {
		v, err := c.DecodeMenu(menu.Object())
		if err != nil {
			return ctx, err
		}
		ctx.Menu = v
	}

	var err error
	if ctx.CommitTextPreview, err = c.getString(obj, r.CommitTextPreview, "context", "commit_text_preview"); err != nil {
		return ctx, err
	}

	labels := NewLocalRef(c.env, c.env.GetObjectField(obj, r.SelectLabels))
	defer labels.Release()
	ctx.SelectLabels, err = c.DecodeStringArray(labels.Object())
	return ctx, err
}

// DecodeStatus reads a RimeStatus.
func (c *Codec) DecodeStatus(obj jni.Object) (engine.Status, error) {
	if obj == 0 {
		return engine.Status{}, nullRecord("status")
	}
	r := &c.refs.Status
	st := engine.Status{
		IsDisabled:    c.env.GetBooleanField(obj, r.IsDisabled),
		IsComposing:   c.env.GetBooleanField(obj, r.IsComposing),
		IsASCIIMode:   c.env.GetBooleanField(obj, r.IsASCIIMode),
		IsFullShape:   c.env.GetBooleanField(obj, r.IsFullShape),
		IsSimplified:  c.env.GetBooleanField(obj, r.IsSimplified),
		IsTraditional: c.env.GetBooleanField(obj, r.IsTraditional),
		IsASCIIPunct:  c.env.GetBooleanField(obj, r.IsASCIIPunct),
	}
	var err error
	if st.SchemaID, err = c.getString(obj, r.SchemaID, "status", "schema_id"); err != nil {
		return st, err
	}
	st.SchemaName, err = c.getString(obj, r.SchemaName, "status", "schema_name")
	return st, err
}

// DecodePair calls getFirst and getSecond on a kotlin.Pair. The caller
// owns both results.
func (c *Codec) DecodePair(obj jni.Object) (first, second *LocalRef, err error) {
	if obj == 0 {
		return nil, nil, nullRecord("pair")
	}
	f := c.env.CallObjectMethod(obj, c.refs.PairGetFirst)
	if c.env.ExceptionCheck() {
		return nil, nil, c.failed(errors.PhaseDecode, contract.PairClass, "getFirst")
	}
	first = NewLocalRef(c.env, f)
	s := c.env.CallObjectMethod(obj, c.refs.PairGetSecond)
	if c.env.ExceptionCheck() {
		first.Release()
		return nil, nil, c.failed(errors.PhaseDecode, contract.PairClass, "getSecond")
	}
	return first, NewLocalRef(c.env, s), nil
}
