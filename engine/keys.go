package engine

import (
	"strings"

	"github.com/wippyai/rime-bridge/errors"
)

// X11 keysyms understood by the engines in this module.
const (
	KeySpace     = 0x0020
	KeyBackSpace = 0xff08
	KeyTab       = 0xff09
	KeyReturn    = 0xff0d
	KeyEscape    = 0xff1b
	KeyHome      = 0xff50
	KeyLeft      = 0xff51
	KeyUp        = 0xff52
	KeyRight     = 0xff53
	KeyDown      = 0xff54
	KeyPageUp    = 0xff55
	KeyPageDown  = 0xff56
	KeyEnd       = 0xff57
	KeyShiftL    = 0xffe1
	KeyShiftR    = 0xffe2
	KeyControlL  = 0xffe3
	KeyControlR  = 0xffe4
	KeyDelete    = 0xffff
)

// X11 modifier masks.
const (
	ShiftMask   = 1 << 0
	LockMask    = 1 << 1
	ControlMask = 1 << 2
	AltMask     = 1 << 3
	SuperMask   = 1 << 26
	ReleaseMask = 1 << 30
)

var keyNames = map[string]int{
	"space":        KeySpace,
	"BackSpace":    KeyBackSpace,
	"Tab":          KeyTab,
	"Return":       KeyReturn,
	"Escape":       KeyEscape,
	"Home":         KeyHome,
	"Left":         KeyLeft,
	"Up":           KeyUp,
	"Right":        KeyRight,
	"Down":         KeyDown,
	"Page_Up":      KeyPageUp,
	"Prior":        KeyPageUp,
	"Page_Down":    KeyPageDown,
	"Next":         KeyPageDown,
	"End":          KeyEnd,
	"Shift_L":      KeyShiftL,
	"Shift_R":      KeyShiftR,
	"Control_L":    KeyControlL,
	"Control_R":    KeyControlR,
	"Delete":       KeyDelete,
	"minus":        '-',
	"equal":        '=',
	"comma":        ',',
	"period":       '.',
	"bracketleft":  '[',
	"bracketright": ']',
	"braceleft":    '{',
	"braceright":   '}',
}

var modifierNames = map[string]int{
	"Shift":   ShiftMask,
	"Lock":    LockMask,
	"Control": ControlMask,
	"Alt":     AltMask,
	"Super":   SuperMask,
	"Release": ReleaseMask,
}

// KeyEvent is a keysym with modifier mask.
type KeyEvent struct {
	Keycode int
	Mask    int
}

// ParseKeySequence parses a key sequence. Printable ASCII characters stand
// for themselves; other keys are written in braces by name with optional
// modifiers, e.g. "ni{space}", "{Control+a}", "{Release+Shift_L}".
func ParseKeySequence(seq string) ([]KeyEvent, error) {
	var out []KeyEvent
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		if c != '{' {
			if c < 0x20 || c > 0x7e {
				return nil, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
					Value(seq).
					Detail("non-printable character %#x at %d", c, i).
					Build()
			}
			out = append(out, KeyEvent{Keycode: int(c)})
			continue
		}

		end := strings.IndexByte(seq[i:], '}')
		if end < 0 {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
				Value(seq).
				Detail("unterminated key name at %d", i).
				Build()
		}
		ev, err := parseKeyName(seq[i+1 : i+end])
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
		i += end
	}
	return out, nil
}

func parseKeyName(repr string) (KeyEvent, error) {
	parts := strings.Split(repr, "+")
	name := parts[len(parts)-1]

	var ev KeyEvent
	for _, m := range parts[:len(parts)-1] {
		bit, ok := modifierNames[m]
		if !ok {
			return KeyEvent{}, errors.NotFound(errors.PhaseDecode, "modifier", m)
		}
		ev.Mask |= bit
	}

	switch {
	case name == "":
		return KeyEvent{}, errors.InvalidInput(errors.PhaseDecode, "empty key name")
	case len(name) == 1 && name[0] >= 0x20 && name[0] <= 0x7e:
		ev.Keycode = int(name[0])
	default:
		code, ok := keyNames[name]
		if !ok {
			return KeyEvent{}, errors.NotFound(errors.PhaseDecode, "key", name)
		}
		ev.Keycode = code
	}
	return ev, nil
}

// KeyName returns a display name for a keysym.
func KeyName(keycode int) string {
	if keycode > 0x20 && keycode <= 0x7e {
		return string(rune(keycode))
	}
	for name, code := range keyNames {
		if code == keycode && len(name) > 1 && name != "Prior" && name != "Next" {
			return name
		}
	}
	return ""
}
