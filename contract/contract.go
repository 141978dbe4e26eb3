// Package contract names the classes, members and descriptors shared by the
// native binding and the managed application. Both sides build from these
// tables so a rename on one side fails resolution instead of corrupting data.
package contract

// Class names in internal form.
const (
	ObjectClass    = "java/lang/Object"
	StringClass    = "java/lang/String"
	IntegerClass   = "java/lang/Integer"
	BooleanClass   = "java/lang/Boolean"
	HashMapClass   = "java/util/HashMap"
	ArrayListClass = "java/util/ArrayList"
	ExceptionClass = "java/lang/Exception"
	PairClass      = "kotlin/Pair"

	RimeClass              = "com/osfans/trime/core/Rime"
	RimeCompositionClass   = "com/osfans/trime/core/Rime$RimeComposition"
	RimeCommitClass        = "com/osfans/trime/core/Rime$RimeCommit"
	RimeContextClass       = "com/osfans/trime/core/Rime$RimeContext"
	RimeMenuClass          = "com/osfans/trime/core/Rime$RimeMenu"
	RimeStatusClass        = "com/osfans/trime/core/Rime$RimeStatus"
	CandidateListItemClass = "com/osfans/trime/core/CandidateListItem"
	SchemaListItemClass    = "com/osfans/trime/core/SchemaListItem"
)

// Common descriptors.
const (
	SigString         = "Ljava/lang/String;"
	SigObject         = "Ljava/lang/Object;"
	SigStringArray    = "[Ljava/lang/String;"
	SigComposition    = "L" + RimeCompositionClass + ";"
	SigMenu           = "L" + RimeMenuClass + ";"
	SigCandidateArray = "[L" + CandidateListItemClass + ";"
	SigSchemaArray    = "[L" + SchemaListItemClass + ";"
	SigPairArray      = "[L" + PairClass + ";"
	SigMap            = "Ljava/util/Map;"
)

// Member names and descriptors used by the binding.
const (
	Init              = "<init>"
	SigIntegerInit    = "(I)V"
	SigBooleanInit    = "(Z)V"
	SigNoArgInit      = "()V"
	SigMapPut         = "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"
	SigListInit       = "(I)V"
	SigListAdd        = "(ILjava/lang/Object;)V"
	SigGetObject      = "()Ljava/lang/Object;"
	SigTwoStringsInit = "(Ljava/lang/String;Ljava/lang/String;)V"
	SigIntValue       = "()I"
	SigBooleanValue   = "()Z"

	HandleNotification    = "handleRimeNotification"
	SigHandleNotification = "(Ljava/lang/String;Ljava/lang/String;)V"
)

// Field is one record field.
type Field struct {
	Name string
	Sig  string
}

// Record describes a record class: its fields in declaration order and,
// for records built through a constructor, the constructor descriptor.
type Record struct {
	Class  string
	Ctor   string
	Fields []Field
}

// Record shapes, in field declaration order.
var (
	Composition = Record{
		Class: RimeCompositionClass,
		Fields: []Field{
			{"length", "I"},
			{"cursor_pos", "I"},
			{"sel_start", "I"},
			{"sel_end", "I"},
			{"preedit", SigString},
		},
	}

	Commit = Record{
		Class:  RimeCommitClass,
		Fields: []Field{{"text", SigString}},
	}

	Menu = Record{
		Class: RimeMenuClass,
		Fields: []Field{
			{"page_size", "I"},
			{"page_no", "I"},
			{"is_last_page", "Z"},
			{"highlighted_candidate_index", "I"},
			{"num_candidates", "I"},
			{"candidates", SigCandidateArray},
		},
	}

	Context = Record{
		Class: RimeContextClass,
		Fields: []Field{
			{"composition", SigComposition},
			{"menu", SigMenu},
			{"commit_text_preview", SigString},
			{"select_labels", SigStringArray},
		},
	}

	Status = Record{
		Class: RimeStatusClass,
		Fields: []Field{
			{"schema_id", SigString},
			{"schema_name", SigString},
			{"is_disabled", "Z"},
			{"is_composing", "Z"},
			{"is_ascii_mode", "Z"},
			{"is_full_shape", "Z"},
			{"is_simplified", "Z"},
			{"is_traditional", "Z"},
			{"is_ascii_punct", "Z"},
		},
	}

	Candidate = Record{
		Class:  CandidateListItemClass,
		Ctor:   SigTwoStringsInit,
		Fields: []Field{{"text", SigString}, {"comment", SigString}},
	}

	SchemaItem = Record{
		Class:  SchemaListItemClass,
		Ctor:   SigTwoStringsInit,
		Fields: []Field{{"schema_id", SigString}, {"schema_name", SigString}},
	}
)

// Records lists every record shape.
var Records = []Record{Composition, Commit, Menu, Context, Status, Candidate, SchemaItem}

// Native is one native entry point declared on RimeClass.
type Native struct {
	Name string
	Sig  string
}

// Native entry point names.
const (
	NativeStartup           = "startupRime"
	NativeExit              = "exitRime"
	NativeDeploy            = "deployRime"
	NativeSyncUserData      = "syncRimeUserData"
	NativeProcessKey        = "processRimeKey"
	NativeSimulateKeys      = "simulateRimeKeySequence"
	NativeCommitComposition = "commitRimeComposition"
	NativeClearComposition  = "clearRimeComposition"
	NativeGetCommit         = "getRimeCommit"
	NativeGetContext        = "getRimeContext"
	NativeGetStatus         = "getRimeStatus"
	NativeSetOption         = "setRimeOption"
	NativeGetOption         = "getRimeOption"
	NativeSetOptions        = "setRimeOptions"
	NativeGetSchemaList     = "getRimeSchemaList"
	NativeGetCurrentSchema  = "getCurrentRimeSchema"
	NativeSelectSchema      = "selectRimeSchema"
	NativeGetCandidates     = "getRimeCandidates"
	NativeSelectCandidate   = "selectRimeCandidateOnCurrentPage"
	NativeGetRawInput       = "getRimeRawInput"
	NativeGetCaretPos       = "getRimeCaretPos"
	NativeSetCaretPos       = "setRimeCaretPos"
	NativeGetConfigMap      = "getRimeConfigMap"
	NativeGetVersion        = "getLibrimeVersion"
)

// Natives is the native method table of RimeClass. All entries are static.
var Natives = []Native{
	{NativeStartup, "(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Z)V"},
	{NativeExit, "()V"},
	{NativeDeploy, "()Z"},
	{NativeSyncUserData, "()Z"},
	{NativeProcessKey, "(II)Z"},
	{NativeSimulateKeys, "(Ljava/lang/String;)Z"},
	{NativeCommitComposition, "()Z"},
	{NativeClearComposition, "()V"},
	{NativeGetCommit, "()L" + RimeCommitClass + ";"},
	{NativeGetContext, "()L" + RimeContextClass + ";"},
	{NativeGetStatus, "()L" + RimeStatusClass + ";"},
	{NativeSetOption, "(Ljava/lang/String;Z)V"},
	{NativeGetOption, "(Ljava/lang/String;)Z"},
	{NativeSetOptions, "(" + SigPairArray + ")V"},
	{NativeGetSchemaList, "()" + SigSchemaArray},
	{NativeGetCurrentSchema, "()Ljava/lang/String;"},
	{NativeSelectSchema, "(Ljava/lang/String;)Z"},
	{NativeGetCandidates, "()" + SigCandidateArray},
	{NativeSelectCandidate, "(I)Z"},
	{NativeGetRawInput, "()Ljava/lang/String;"},
	{NativeGetCaretPos, "()I"},
	{NativeSetCaretPos, "(I)V"},
	{NativeGetConfigMap, "(Ljava/lang/String;Ljava/lang/String;)Ljava/util/Map;"},
	{NativeGetVersion, "()Ljava/lang/String;"},
}

// NativeSig returns the descriptor of a native entry point.
func NativeSig(name string) (string, bool) {
	for _, n := range Natives {
		if n.Name == name {
			return n.Sig, true
		}
	}
	return "", false
}
