// Package errors provides structured error types for the rime-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the boundary context: the foreign class, the member name
// and its descriptor, an optional path inside a record, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindMemberNotFound).
//		Class("com/osfans/trime/core/Rime$RimeStatus").
//		Member("schema_id").
//		Signature("Ljava/lang/String;").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ClassNotFound(errors.PhaseResolve, "kotlin/Pair")
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
