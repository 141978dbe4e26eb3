package table

import (
	"strings"

	"github.com/wippyai/rime-bridge/engine"
)

func (e *Engine) resetLocked() {
	e.input = ""
	e.cands = nil
	e.caret = 0
	e.page = 0
	e.highlighted = 0
}

func (e *Engine) setInputLocked(input string, caret int) {
	e.input = input
	e.caret = caret
	e.cands = lookup(e.current, input)
	e.page = 0
	e.highlighted = 0
}

func (e *Engine) pageSizeLocked() int {
	if e.current == nil || e.current.PageSize <= 0 {
		return 5
	}
	return e.current.PageSize
}

func (e *Engine) pageLocked() []engine.Candidate {
	size := e.pageSizeLocked()
	start := e.page * size
	if start >= len(e.cands) {
		return nil
	}
	end := min(start+size, len(e.cands))
	return e.cands[start:end]
}

func (e *Engine) lastPageLocked() bool {
	return (e.page+1)*e.pageSizeLocked() >= len(e.cands)
}

func (e *Engine) commitLocked(text string) {
	if e.options[OptionFullShape] {
		text = fullWidth(text)
	}
	e.commit = &text
	e.resetLocked()
}

// ProcessKey handles one key event and reports whether it was consumed.
// Release events and keys with Control, Alt or Super are never consumed.
func (e *Engine) ProcessKey(keycode, mask int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.current == nil {
		return false
	}
	if mask&(engine.ReleaseMask|engine.ControlMask|engine.AltMask|engine.SuperMask) != 0 {
		return false
	}
	if e.options[OptionASCIIMode] {
		return false
	}

	if keycode > 0 && keycode < 0x80 && strings.IndexByte(e.alphabetLocked(), byte(keycode)) >= 0 {
		if e.input == "" || e.selectIndexLocked(keycode) < 0 {
			in := e.input[:e.caret] + string(rune(keycode)) + e.input[e.caret:]
			e.setInputLocked(in, e.caret+1)
			return true
		}
	}

	if e.input == "" {
		return false
	}

	if idx := e.selectIndexLocked(keycode); idx >= 0 {
		e.selectOnPageLocked(idx)
		return true
	}

	switch keycode {
	case engine.KeySpace:
		if len(e.pageLocked()) == 0 {
			e.commitLocked(e.input)
		} else {
			e.selectOnPageLocked(e.highlighted)
		}
	case engine.KeyReturn:
		e.commitLocked(e.input)
	case engine.KeyEscape:
		e.resetLocked()
	case engine.KeyBackSpace:
		if e.caret > 0 {
			e.setInputLocked(e.input[:e.caret-1]+e.input[e.caret:], e.caret-1)
		}
	case engine.KeyDelete:
		if e.caret < len(e.input) {
			e.setInputLocked(e.input[:e.caret]+e.input[e.caret+1:], e.caret)
		}
	case engine.KeyLeft:
		if e.caret > 0 {
			e.caret--
		}
	case engine.KeyRight:
		if e.caret < len(e.input) {
			e.caret++
		}
	case engine.KeyHome:
		e.caret = 0
	case engine.KeyEnd:
		e.caret = len(e.input)
	case engine.KeyUp:
		if e.highlighted > 0 {
			e.highlighted--
		}
	case engine.KeyDown:
		if e.highlighted+1 < len(e.pageLocked()) {
			e.highlighted++
		}
	case engine.KeyPageDown, '=':
		if !e.lastPageLocked() {
			e.page++
			e.highlighted = 0
		}
	case engine.KeyPageUp, '-':
		if e.page > 0 {
			e.page--
			e.highlighted = 0
		}
	default:
		return false
	}
	return true
}

func (e *Engine) alphabetLocked() string {
	if e.current.Alphabet != "" {
		return e.current.Alphabet
	}
	return "abcdefghijklmnopqrstuvwxyz"
}

func (e *Engine) selectKeysLocked() string {
	if e.current != nil && e.current.SelectKeys != "" {
		return e.current.SelectKeys
	}
	return "1234567890"
}

// selectIndexLocked maps a select key to a page index, or -1.
func (e *Engine) selectIndexLocked(keycode int) int {
	if keycode <= 0 || keycode >= 0x80 {
		return -1
	}
	keys := e.selectKeysLocked()
	idx := strings.IndexByte(keys, byte(keycode))
	if idx < 0 || idx >= e.pageSizeLocked() {
		return -1
	}
	return idx
}

func (e *Engine) selectOnPageLocked(index int) bool {
	page := e.pageLocked()
	if index < 0 || index >= len(page) {
		return false
	}
	e.commitLocked(page[index].Text)
	return true
}

// SelectCandidateOnPage commits the candidate at index of the current page.
func (e *Engine) SelectCandidateOnPage(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectOnPageLocked(index)
}

// CommitComposition commits the highlighted candidate, or the raw input
// when there is none.
func (e *Engine) CommitComposition() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.input == "" {
		return false
	}
	if !e.selectOnPageLocked(e.highlighted) {
		e.commitLocked(e.input)
	}
	return true
}

func (e *Engine) ClearComposition() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
}

func (e *Engine) Commit() (engine.Commit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.commit == nil {
		return engine.Commit{}, false
	}
	c := engine.Commit{Text: *e.commit}
	e.commit = nil
	return c, true
}

// Context returns the composition and current menu page.
func (e *Engine) Context() (engine.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return engine.Context{}, false
	}

	var ctx engine.Context
	if e.input == "" {
		return ctx, true
	}
	ctx.Composition = engine.Composition{
		Preedit:   e.input,
		Length:    int32(len(e.input)),
		CursorPos: int32(e.caret),
		SelStart:  0,
		SelEnd:    int32(len(e.input)),
	}

	page := e.pageLocked()
	ctx.Menu = engine.Menu{
		Candidates:                append([]engine.Candidate(nil), page...),
		PageSize:                  int32(e.pageSizeLocked()),
		PageNo:                    int32(e.page),
		HighlightedCandidateIndex: int32(e.highlighted),
		NumCandidates:             int32(len(page)),
		IsLastPage:                e.lastPageLocked(),
	}
	if len(page) > 0 {
		ctx.CommitTextPreview = page[e.highlighted].Text
		keys := e.selectKeysLocked()
		for i := range page {
			if i >= len(keys) {
				break
			}
			ctx.SelectLabels = append(ctx.SelectLabels, keys[i:i+1])
		}
	}
	return ctx, true
}

// Status reports the schema and mode flags.
func (e *Engine) Status() (engine.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return engine.Status{}, false
	}
	st := engine.Status{
		IsDisabled:    e.deploying || e.current == nil,
		IsComposing:   e.input != "",
		IsASCIIMode:   e.options[OptionASCIIMode],
		IsFullShape:   e.options[OptionFullShape],
		IsSimplified:  e.options[OptionSimplification],
		IsTraditional: e.options[OptionTraditional],
		IsASCIIPunct:  e.options[OptionASCIIPunct],
	}
	if e.current != nil {
		st.SchemaID = e.current.ID
		st.SchemaName = e.current.Name
	}
	return st, true
}

// Candidates returns every candidate of the input, not only the page.
func (e *Engine) Candidates() []engine.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Candidate(nil), e.cands...)
}

func (e *Engine) RawInput() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// CaretPos is a byte offset into RawInput.
func (e *Engine) CaretPos() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caret
}

// SetCaretPos moves the caret, clamped to the input.
func (e *Engine) SetCaretPos(pos int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caret = max(0, min(pos, len(e.input)))
}

// fullWidth maps printable ASCII to the fullwidth forms block.
func fullWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteRune('　')
		case r > 0x20 && r < 0x7f:
			b.WriteRune(r + 0xfee0)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
