package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve Phase = "resolve" // class and member lookup
	PhaseAttach  Phase = "attach"  // thread attachment
	PhaseEncode  Phase = "encode"  // engine to managed
	PhaseDecode  Phase = "decode"  // managed to engine
	PhaseCall    Phase = "call"    // managed method invocation
	PhaseNative  Phase = "native"  // native entry points
	PhaseLoad    Phase = "load"    // library and schema loading
	PhaseConfig  Phase = "config"  // configuration
	PhasePlugin  Phase = "plugin"  // wasm plugins
	PhaseRuntime Phase = "runtime" // managed runtime checks
)

// Kind categorizes the error
type Kind string

const (
	KindClassNotFound    Kind = "class_not_found"
	KindMemberNotFound   Kind = "member_not_found"
	KindBadSignature     Kind = "bad_signature"
	KindNullHandle       Kind = "null_handle"
	KindStaleHandle      Kind = "stale_handle"
	KindWrongThread      Kind = "wrong_thread"
	KindCapacity         Kind = "capacity"
	KindPendingException Kind = "pending_exception"
	KindNotAttached      Kind = "not_attached"
	KindNotInitialized   Kind = "not_initialized"
	KindInvalidUTF8      Kind = "invalid_utf8"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindTypeMismatch     Kind = "type_mismatch"
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindThrown           Kind = "thrown"
	KindRegistration     Kind = "registration"
	KindUnsupported      Kind = "unsupported"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Class     string
	Member    string
	Signature string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	hasTarget := e.Class != "" || e.Member != ""
	if hasTarget {
		b.WriteString(": ")
		switch {
		case e.Class != "" && e.Member != "":
			b.WriteString(e.Class)
			b.WriteByte('.')
			b.WriteString(e.Member)
		case e.Class != "":
			b.WriteString(e.Class)
		default:
			b.WriteString(e.Member)
		}
		if e.Signature != "" {
			b.WriteByte(' ')
			b.WriteString(e.Signature)
		}
	}

	if e.Detail != "" {
		if hasTarget {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Class sets the foreign class name
func (b *Builder) Class(name string) *Builder {
	b.err.Class = name
	return b
}

// Member sets the member (method or field) name
func (b *Builder) Member(name string) *Builder {
	b.err.Member = name
	return b
}

// Signature sets the member descriptor
func (b *Builder) Signature(sig string) *Builder {
	b.err.Signature = sig
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ClassNotFound creates a class lookup failure error
func ClassNotFound(phase Phase, class string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindClassNotFound,
		Class: class,
	}
}

// MemberNotFound creates a method or field lookup failure error
func MemberNotFound(phase Phase, class, member, sig string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindMemberNotFound,
		Class:     class,
		Member:    member,
		Signature: sig,
	}
}

// BadSignature creates a malformed descriptor error
func BadSignature(phase Phase, sig, detail string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindBadSignature,
		Signature: sig,
		Detail:    detail,
	}
}

// NullHandle creates an error for a null foreign reference where one is required
func NullHandle(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullHandle,
		Path:   path,
		Detail: fmt.Sprintf("%s is null", what),
	}
}

// InvalidUTF8 creates an invalid modified UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid modified UTF-8 sequence: %x", preview),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch creates an error for an object that is not an instance of the expected class
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Class:  want,
		Detail: fmt.Sprintf("got instance of %s", got),
	}
}

// PendingException creates an error for a managed exception raised during a call
func PendingException(phase Phase, class, member string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPendingException,
		Class:  class,
		Member: member,
		Detail: "managed exception pending",
	}
}

// NotAttached creates an error for a thread without an environment
func NotAttached(detail string) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindNotAttached,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Unresolved represents a single class or member that failed to resolve
type Unresolved struct {
	Class     string // e.g. "com/osfans/trime/core/Rime$RimeMenu"
	Member    string // empty when the class itself is missing
	Signature string // e.g. "[Lcom/osfans/trime/core/CandidateListItem;"
}

// UnresolvedError is returned when reflection cache construction fails
type UnresolvedError struct {
	Missing []Unresolved
}

// NewUnresolvedError creates an error from a list of unresolved entries
func NewUnresolvedError(missing []Unresolved) *UnresolvedError {
	out := make([]Unresolved, len(missing))
	copy(out, missing)
	return &UnresolvedError{Missing: out}
}

func (e *UnresolvedError) Error() string {
	if len(e.Missing) == 0 {
		return "[resolve] member_not_found: no entries specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "unresolved %d class/member reference(s):\n", len(e.Missing))

	// Group by class for cleaner output
	byClass := make(map[string][]Unresolved)
	var order []string
	for _, u := range e.Missing {
		if _, exists := byClass[u.Class]; !exists {
			order = append(order, u.Class)
		}
		byClass[u.Class] = append(byClass[u.Class], u)
	}

	for _, cls := range order {
		b.WriteString("\n  ")
		b.WriteString(cls)
		b.WriteString(":\n")
		for _, u := range byClass[cls] {
			b.WriteString("    - ")
			if u.Member == "" {
				b.WriteString("<class not found>")
			} else {
				b.WriteString(u.Member)
				b.WriteByte(' ')
				b.WriteString(u.Signature)
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *UnresolvedError) Is(target error) bool {
	_, ok := target.(*UnresolvedError)
	return ok
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a native registration error
func Registration(class, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseNative,
		Kind:   KindRegistration,
		Class:  class,
		Member: name,
		Cause:  cause,
	}
}

// Load creates a loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}
