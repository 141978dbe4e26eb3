package engine

import "testing"

func TestParseKeySequence(t *testing.T) {
	tests := []struct {
		seq  string
		want []KeyEvent
	}{
		{"ni", []KeyEvent{{Keycode: 'n'}, {Keycode: 'i'}}},
		{"ni{space}", []KeyEvent{{Keycode: 'n'}, {Keycode: 'i'}, {Keycode: KeySpace}}},
		{"{BackSpace}{Return}", []KeyEvent{{Keycode: KeyBackSpace}, {Keycode: KeyReturn}}},
		{"{Control+a}", []KeyEvent{{Keycode: 'a', Mask: ControlMask}}},
		{"{Release+Shift+Shift_L}", []KeyEvent{{Keycode: KeyShiftL, Mask: ReleaseMask | ShiftMask}}},
		{"{Page_Down}1", []KeyEvent{{Keycode: KeyPageDown}, {Keycode: '1'}}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.seq, func(t *testing.T) {
			got, err := ParseKeySequence(tt.seq)
			if err != nil {
				t.Fatalf("ParseKeySequence: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseKeySequence_Errors(t *testing.T) {
	for _, seq := range []string{"{space", "{Hyper+a}", "{NoSuchKey}", "{}", "a\tb"} {
		if _, err := ParseKeySequence(seq); err == nil {
			t.Errorf("ParseKeySequence(%q) should fail", seq)
		}
	}
}

func TestKeyName(t *testing.T) {
	if KeyName('a') != "a" {
		t.Fatal("printable keys name themselves")
	}
	if KeyName(KeyBackSpace) != "BackSpace" {
		t.Fatalf("KeyName(BackSpace) = %q", KeyName(KeyBackSpace))
	}
	if KeyName(0x1234567) != "" {
		t.Fatal("unknown key should have no name")
	}
}

func TestNotificationValues(t *testing.T) {
	id, name := ParseSchemaValue(SchemaValue("luna_pinyin", "朙月拼音"))
	if id != "luna_pinyin" || name != "朙月拼音" {
		t.Fatalf("schema value = %q %q", id, name)
	}
	if OptionValue("ascii_mode", false) != "!ascii_mode" {
		t.Fatal("cleared option should be prefixed with !")
	}
	n, v := ParseOptionValue("!ascii_mode")
	if n != "ascii_mode" || v {
		t.Fatalf("ParseOptionValue = %q %v", n, v)
	}
	n, v = ParseOptionValue("full_shape")
	if n != "full_shape" || !v {
		t.Fatalf("ParseOptionValue = %q %v", n, v)
	}
}
