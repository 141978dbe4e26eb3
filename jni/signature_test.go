package jni

import "testing"

func TestParseMethodSig(t *testing.T) {
	tests := []struct {
		sig    string
		params []Descriptor
		ret    Descriptor
	}{
		{"()V", nil, "V"},
		{"(I)V", []Descriptor{"I"}, "V"},
		{"(ILjava/lang/Object;)V", []Descriptor{"I", "Ljava/lang/Object;"}, "V"},
		{"(Ljava/lang/String;Ljava/lang/String;)V", []Descriptor{"Ljava/lang/String;", "Ljava/lang/String;"}, "V"},
		{"([Lkotlin/Pair;)V", []Descriptor{"[Lkotlin/Pair;"}, "V"},
		{"()[Lcom/osfans/trime/core/CandidateListItem;", nil, "[Lcom/osfans/trime/core/CandidateListItem;"},
		{"(II)Z", []Descriptor{"I", "I"}, "Z"},
		{"([[IJ)Ljava/util/Map;", []Descriptor{"[[I", "J"}, "Ljava/util/Map;"},
	}

	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			ms, err := ParseMethodSig(tt.sig)
			if err != nil {
				t.Fatalf("ParseMethodSig: %v", err)
			}
			if len(ms.Params) != len(tt.params) {
				t.Fatalf("params = %v, want %v", ms.Params, tt.params)
			}
			for i := range tt.params {
				if ms.Params[i] != tt.params[i] {
					t.Errorf("param %d = %s, want %s", i, ms.Params[i], tt.params[i])
				}
			}
			if ms.Return != tt.ret {
				t.Errorf("return = %s, want %s", ms.Return, tt.ret)
			}
		})
	}
}

func TestParseMethodSig_Invalid(t *testing.T) {
	for _, sig := range []string{"", "V", "(", "(I", "(V)V", "(Ljava/lang/String)V", "(L;)V", "(I)", "(I)VV", "(Q)V", "(Ljava.lang.String;)V"} {
		if _, err := ParseMethodSig(sig); err == nil {
			t.Errorf("ParseMethodSig(%q) should fail", sig)
		}
	}
}

func TestParseFieldSig(t *testing.T) {
	valid := []string{"I", "Z", "Ljava/lang/String;", "[Ljava/lang/String;", "Lcom/osfans/trime/core/Rime$RimeMenu;"}
	for _, sig := range valid {
		if _, err := ParseFieldSig(sig); err != nil {
			t.Errorf("ParseFieldSig(%q): %v", sig, err)
		}
	}
	for _, sig := range []string{"", "V", "II", "[", "Ljava/lang/String"} {
		if _, err := ParseFieldSig(sig); err == nil {
			t.Errorf("ParseFieldSig(%q) should fail", sig)
		}
	}
}

func TestDescriptor(t *testing.T) {
	d := Descriptor("[Lcom/osfans/trime/core/CandidateListItem;")
	if !d.IsReference() || d.ValueKind() != 'L' {
		t.Fatalf("array descriptor should be a reference")
	}
	if d.Elem() != "Lcom/osfans/trime/core/CandidateListItem;" {
		t.Fatalf("Elem = %s", d.Elem())
	}
	if d.Elem().ClassName() != "com/osfans/trime/core/CandidateListItem" {
		t.Fatalf("ClassName = %s", d.Elem().ClassName())
	}
	if Descriptor("I").IsReference() {
		t.Fatal("int is not a reference")
	}
}

func TestValue(t *testing.T) {
	if !Bool(true).AsBool() || Bool(false).AsBool() {
		t.Fatal("Bool round trip")
	}
	if Int(-7).AsInt() != -7 {
		t.Fatal("Int round trip")
	}
	if Obj(42).AsObject() != 42 {
		t.Fatal("Obj round trip")
	}
	if Long(1<<40).AsLong() != 1<<40 {
		t.Fatal("Long round trip")
	}
}
