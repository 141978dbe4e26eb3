package jni

import (
	"strings"

	"github.com/wippyai/rime-bridge/errors"
)

// Descriptor is a single field type descriptor such as "I",
// "Ljava/lang/String;" or "[Lkotlin/Pair;".
type Descriptor string

// Kind returns the leading descriptor character.
func (d Descriptor) Kind() byte {
	if d == "" {
		return 0
	}
	return d[0]
}

// IsReference reports whether values of this type are object handles.
func (d Descriptor) IsReference() bool {
	k := d.Kind()
	return k == 'L' || k == '['
}

// ClassName returns the internal class name of an object or array type.
// Arrays yield their descriptor, the way Class.getName names array classes.
func (d Descriptor) ClassName() string {
	switch d.Kind() {
	case 'L':
		return string(d[1 : len(d)-1])
	case '[':
		return string(d)
	}
	return ""
}

// Elem returns the element type of an array descriptor.
func (d Descriptor) Elem() Descriptor {
	if d.Kind() != '[' {
		return ""
	}
	return d[1:]
}

// ValueKind maps the descriptor to the Value.Type used to carry it.
func (d Descriptor) ValueKind() byte {
	switch k := d.Kind(); k {
	case '[':
		return 'L'
	case 'F', 'D':
		return 'J'
	default:
		return k
	}
}

// MethodSig is a parsed method descriptor.
type MethodSig struct {
	Params []Descriptor
	Return Descriptor
}

// ParseMethodSig parses a method descriptor such as "(ILjava/lang/Object;)V".
func ParseMethodSig(sig string) (MethodSig, error) {
	if len(sig) < 3 || sig[0] != '(' {
		return MethodSig{}, errors.BadSignature(errors.PhaseResolve, sig, "method descriptor must start with '('")
	}
	end := strings.IndexByte(sig, ')')
	if end < 0 {
		return MethodSig{}, errors.BadSignature(errors.PhaseResolve, sig, "missing ')'")
	}

	var out MethodSig
	rest := sig[1:end]
	for rest != "" {
		d, n, err := parseOne(rest, false)
		if err != nil {
			return MethodSig{}, errors.BadSignature(errors.PhaseResolve, sig, err.Error())
		}
		out.Params = append(out.Params, d)
		rest = rest[n:]
	}

	ret, n, err := parseOne(sig[end+1:], true)
	if err != nil {
		return MethodSig{}, errors.BadSignature(errors.PhaseResolve, sig, err.Error())
	}
	if end+1+n != len(sig) {
		return MethodSig{}, errors.BadSignature(errors.PhaseResolve, sig, "trailing characters after return type")
	}
	out.Return = ret
	return out, nil
}

// ParseFieldSig validates a field descriptor.
func ParseFieldSig(sig string) (Descriptor, error) {
	d, n, err := parseOne(sig, false)
	if err != nil {
		return "", errors.BadSignature(errors.PhaseResolve, sig, err.Error())
	}
	if n != len(sig) {
		return "", errors.BadSignature(errors.PhaseResolve, sig, "trailing characters after field type")
	}
	return d, nil
}

// MustParseMethodSig is like ParseMethodSig but panics on error.
func MustParseMethodSig(sig string) MethodSig {
	ms, err := ParseMethodSig(sig)
	if err != nil {
		panic(err)
	}
	return ms
}

func parseOne(s string, allowVoid bool) (Descriptor, int, error) {
	if s == "" {
		return "", 0, errString("unexpected end of descriptor")
	}
	switch s[0] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return Descriptor(s[:1]), 1, nil
	case 'V':
		if !allowVoid {
			return "", 0, errString("void is only valid as a return type")
		}
		return "V", 1, nil
	case 'L':
		semi := strings.IndexByte(s, ';')
		if semi < 2 {
			return "", 0, errString("unterminated or empty class name")
		}
		name := s[1:semi]
		if strings.ContainsAny(name, ".[()") {
			return "", 0, errString("invalid class name " + name)
		}
		return Descriptor(s[:semi+1]), semi + 1, nil
	case '[':
		dims := 0
		for dims < len(s) && s[dims] == '[' {
			dims++
		}
		if dims > 255 {
			return "", 0, errString("too many array dimensions")
		}
		_, n, err := parseOne(s[dims:], false)
		if err != nil {
			return "", 0, err
		}
		return Descriptor(s[:dims+n]), dims + n, nil
	}
	return "", 0, errString("unknown type character " + string(s[0]))
}

type errString string

func (e errString) Error() string { return string(e) }
