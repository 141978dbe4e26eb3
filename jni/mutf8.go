package jni

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/wippyai/rime-bridge/errors"
)

// EncodeMUTF8 converts Go text to modified UTF-8.
func EncodeMUTF8(s string) []byte {
	return EncodeMUTF8UTF16(utf16.Encode([]rune(s)))
}

// EncodeMUTF8UTF16 converts UTF-16 code units to modified UTF-8. Unpaired
// surrogates are encoded as-is, matching what the managed runtime produces.
func EncodeMUTF8UTF16(units []uint16) []byte {
	n := 0
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			n++
		case u < 0x800:
			n += 2
		default:
			n += 3
		}
	}

	out := make([]byte, 0, n)
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			out = append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return out
}

// DecodeMUTF8UTF16 parses modified UTF-8 into UTF-16 code units.
func DecodeMUTF8UTF16(b []byte) ([]uint16, error) {
	out := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
		case c < 0x80:
			out = append(out, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
			}
			u := uint16(c&0x1F)<<6 | uint16(b[i+1]&0x3F)
			if u != 0 && u < 0x80 {
				return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
			}
			out = append(out, u)
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
			}
			u := uint16(c&0x0F)<<12 | uint16(b[i+1]&0x3F)<<6 | uint16(b[i+2]&0x3F)
			if u < 0x800 {
				return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
			}
			out = append(out, u)
			i += 3
		default:
			return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, b)
		}
	}
	return out, nil
}

// DecodeMUTF8 converts modified UTF-8 to Go text. Unpaired surrogates have
// no UTF-8 form and are reported as errors.
func DecodeMUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units, err := DecodeMUTF8UTF16(b)
	if err != nil {
		return "", err
	}

	buf := make([]byte, 0, len(b))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case utf16.IsSurrogate(rune(u)):
			if u >= 0xDC00 || i+1 >= len(units) {
				return "", errors.InvalidUTF8(errors.PhaseDecode, nil, b)
			}
			r := utf16.DecodeRune(rune(u), rune(units[i+1]))
			if r == utf8.RuneError {
				return "", errors.InvalidUTF8(errors.PhaseDecode, nil, b)
			}
			buf = utf8.AppendRune(buf, r)
			i++
		default:
			buf = utf8.AppendRune(buf, rune(u))
		}
	}
	return string(buf), nil
}
