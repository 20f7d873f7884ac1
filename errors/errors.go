package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegistry Phase = "registry" // alternate creation and matching
	PhaseConvert  Phase = "convert"  // alternate <-> primitive conversion
	PhaseBounds   Phase = "bounds"   // bounds and size algebra
	PhaseAddress  Phase = "address"  // array indexing and slicing
	PhaseLiteral  Phase = "literal"  // aggregate literal construction
	PhaseLower    Phase = "lower"    // natural type elaboration
	PhaseLoad     Phase = "load"     // unit description loading
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseBackend  Phase = "backend"  // wasm generation and execution
	PhaseReport   Phase = "report"   // representation report
)

// Kind categorizes the error
type Kind string

const (
	KindInternal            Kind = "internal"
	KindTypeMismatch        Kind = "type_mismatch"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindInvalidData         Kind = "invalid_data"
	KindUnsupported         Kind = "unsupported"
	KindOverflow            Kind = "overflow"
	KindMissingDiscriminant Kind = "missing_discriminant"
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindDuplicate           Kind = "duplicate"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	SourceType string
	TargetType string
	Detail     string
	Path       []string
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

	if e.SourceType != "" || e.TargetType != "" {
		b.WriteString(": ")
		if e.SourceType != "" && e.TargetType != "" {
			b.WriteString("source type ")
			b.WriteString(e.SourceType)
			b.WriteString(", target type ")
			b.WriteString(e.TargetType)
		} else if e.SourceType != "" {
			b.WriteString("source type ")
			b.WriteString(e.SourceType)
		} else {
			b.WriteString("target type ")
			b.WriteString(e.TargetType)
		}
	}

	if e.Detail != "" {
		if e.SourceType != "" || e.TargetType != "" {
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

// IsInternal reports whether err carries an internal compiler error anywhere in its chain.
func IsInternal(err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindInternal {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
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

// Path sets the entity path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// SourceType sets the source type name
func (b *Builder) SourceType(t string) *Builder {
	b.err.SourceType = t
	return b
}

// TargetType sets the physical type name
func (b *Builder) TargetType(t string) *Builder {
	b.err.TargetType = t
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

// Internal creates an internal compiler error. Processing of the unit must stop.
func Internal(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: fmt.Sprintf(format, args...),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, sourceType, targetType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		SourceType: sourceType,
		TargetType: targetType,
	}
}

// MissingDiscriminant reports a discriminant whose value is not available in the current context
func MissingDiscriminant(phase Phase, record, disc string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindMissingDiscriminant,
		SourceType: record,
		Detail:     fmt.Sprintf("no value for discriminant %q", disc),
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

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		TargetType: targetType,
		Detail:     fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:      value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
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

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Duplicate creates a duplicate-definition error
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("%s %q already defined", what, name),
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

// Load creates a unit loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Backend creates a wasm backend error
func Backend(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseBackend,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// LoadIssue is a single problem found while loading a unit description
type LoadIssue struct {
	Where   string // e.g., "types[3].high"
	Message string
}

// LoadIssuesError collects every problem found in a unit description
type LoadIssuesError struct {
	File   string
	Issues []LoadIssue
}

// NewLoadIssuesError creates an error from "where: message" strings
func NewLoadIssuesError(file string, issues []string) *LoadIssuesError {
	result := &LoadIssuesError{
		File:   file,
		Issues: make([]LoadIssue, 0, len(issues)),
	}
	for _, is := range issues {
		where, msg := parseIssue(is)
		result.Issues = append(result.Issues, LoadIssue{Where: where, Message: msg})
	}
	return result
}

func parseIssue(s string) (where, message string) {
	w, m, found := strings.Cut(s, ": ")
	if found {
		return w, m
	}
	return "", s
}

func (e *LoadIssuesError) Error() string {
	if len(e.Issues) == 0 {
		return "[load] invalid_data: no issues recorded"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d problem(s) in %s:\n", len(e.Issues), e.File))

	// Group by top-level section for cleaner output
	bySection := make(map[string][]LoadIssue)
	var order []string
	for _, is := range e.Issues {
		sec := is.Where
		if i := strings.IndexAny(sec, "[."); i > 0 {
			sec = sec[:i]
		}
		if _, exists := bySection[sec]; !exists {
			order = append(order, sec)
		}
		bySection[sec] = append(bySection[sec], is)
	}

	for _, sec := range order {
		b.WriteString("\n  ")
		if sec == "" {
			b.WriteString("(unit)")
		} else {
			b.WriteString(sec)
		}
		b.WriteString(":\n")
		for _, is := range bySection[sec] {
			b.WriteString("    - ")
			if is.Where != "" {
				b.WriteString(is.Where)
				b.WriteString(": ")
			}
			b.WriteString(is.Message)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *LoadIssuesError) Is(target error) bool {
	_, ok := target.(*LoadIssuesError)
	return ok
}
