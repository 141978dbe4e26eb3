package jni

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/wippyai/rime-bridge/errors"
)

func TestEncodeMUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "abc", []byte("abc")},
		{"nul", "a\x00b", []byte{'a', 0xC0, 0x80, 'b'}},
		{"two byte", "é", []byte{0xC3, 0xA9}},
		{"cjk", "拼", []byte{0xE6, 0x8B, 0xBC}},
		{"supplementary", "😀", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
		{"empty", "", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeMUTF8(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("EncodeMUTF8(%q) = % x, want % x", tt.in, got, tt.want)
			}
		})
	}
}

func TestMUTF8RoundTrip(t *testing.T) {
	for _, s := range []string{"", "luna_pinyin", "朙月拼音", "nul\x00inside", "𠀀𝄞😀", "mixed é 拼 😀 \x00"} {
		got, err := DecodeMUTF8(EncodeMUTF8(s))
		if err != nil {
			t.Fatalf("DecodeMUTF8(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestDecodeMUTF8_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"raw nul", []byte{'a', 0x00}},
		{"four byte form", []byte{0xF0, 0x9F, 0x98, 0x80}},
		{"truncated two byte", []byte{0xC3}},
		{"truncated three byte", []byte{0xE6, 0x8B}},
		{"bad continuation", []byte{0xE6, 0x2B, 0xBC}},
		{"overlong ascii", []byte{0xC1, 0x81}},
		{"lone high surrogate", []byte{0xED, 0xA0, 0xBD}},
		{"lone low surrogate", []byte{0xED, 0xB8, 0x80}},
		{"stray continuation", []byte{0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMUTF8(tt.in)
			if err == nil {
				t.Fatalf("DecodeMUTF8(% x) should fail", tt.in)
			}
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Kind != errors.KindInvalidUTF8 {
				t.Fatalf("expected invalid_utf8 error, got %v", err)
			}
		})
	}
}

func TestDecodeMUTF8UTF16_LoneSurrogate(t *testing.T) {
	units, err := DecodeMUTF8UTF16([]byte{0xED, 0xA0, 0xBD})
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 || units[0] != 0xD83D {
		t.Fatalf("units = %x", units)
	}
	if got := EncodeMUTF8UTF16(units); !bytes.Equal(got, []byte{0xED, 0xA0, 0xBD}) {
		t.Fatalf("re-encode = % x", got)
	}
}
