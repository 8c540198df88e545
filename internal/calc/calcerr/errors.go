package calcerr

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel errors for broad classification.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNonConvergence = errors.New("solver did not converge")
	ErrTimeout        = errors.New("solver timed out")
)

// Kind is a coarse-grained categorization for calculation failures.
type Kind string

const (
	KindInvalidInput   Kind = "invalid_input"
	KindNonConvergence Kind = "solver_non_convergence"
	KindTimeout        Kind = "solver_timeout"
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNonConvergence:
		return ErrNonConvergence
	case KindTimeout:
		return ErrTimeout
	}
	return nil
}

// FieldError points at one offending input field.
type FieldError struct {
	Path    string `json:"field_path"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Path + ": " + f.Message
}

// Error wraps a failure with the operation that produced it. Fields is
// populated for invalid input and lists every offending path, not just the first.
type Error struct {
	Op     string
	Kind   Kind
	Fields []FieldError
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.String())
		}
		base += " [" + strings.Join(parts, "; ") + "]"
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinel so callers can use errors.Is(err, ErrInvalidInput).
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// IsKind helps callers classify errors without knowing the concrete type.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// FieldsOf returns the field errors carried by err, if any.
func FieldsOf(err error) []FieldError {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Fields
	}
	return nil
}

// NonConvergence builds a solver_non_convergence error.
func NonConvergence(op string, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindNonConvergence, Err: fmt.Errorf(format, args...)}
}

// Timeout builds a solver_timeout error.
func Timeout(op string, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindTimeout, Err: fmt.Errorf(format, args...)}
}

// Validator collects field errors so a caller sees every problem at once.
type Validator struct {
	op     string
	fields []FieldError
}

func NewValidator(op string) *Validator {
	return &Validator{op: op}
}

func (v *Validator) Add(path, format string, args ...any) {
	v.fields = append(v.fields, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Finite rejects NaN and ±Inf. Returns false when it recorded an error.
func (v *Validator) Finite(path string, x float64) bool {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		v.Add(path, "must be a finite number")
		return false
	}
	return true
}

// Required flags a zero value as missing.
func (v *Validator) Required(path string, x float64) bool {
	if !v.Finite(path, x) {
		return false
	}
	if x == 0 {
		v.Add(path, "is required")
		return false
	}
	return true
}

func (v *Validator) Positive(path string, x float64) bool {
	if !v.Finite(path, x) {
		return false
	}
	if x <= 0 {
		v.Add(path, "must be greater than zero, got %g", x)
		return false
	}
	return true
}

func (v *Validator) NonNegative(path string, x float64) bool {
	if !v.Finite(path, x) {
		return false
	}
	if x < 0 {
		v.Add(path, "must not be negative, got %g", x)
		return false
	}
	return true
}

func (v *Validator) Fields() []FieldError {
	return v.fields
}

// Err returns nil when nothing was recorded.
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	out := make([]FieldError, len(v.fields))
	copy(out, v.fields)
	return &Error{Op: v.op, Kind: KindInvalidInput, Fields: out}
}
