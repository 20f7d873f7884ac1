// Package errors provides structured error types for the type-representation layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: entity path, source/physical type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
//		Path("Pkg", "Rec", "Field").
//		SourceType("Small_Int").
//		TargetType("i8").
//		Detail("biased request without a static low bound").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Internal(errors.PhaseBounds, "unexpected node %T", e)
//	err := errors.MissingDiscriminant(errors.PhaseBounds, "Rec", "N")
//
// Errors of KindInternal are internal compiler errors: the input was supposed to be
// validated by semantic analysis, so the unit being processed must be abandoned.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
