// Package failure defines the error taxonomy shared by every pipeline stage.
//
// Callers branch on Kind through IsKind or KindOf rather than matching
// error strings. Error() text is meant for operators and may change.
package failure

import (
	"errors"
	"fmt"
)

// Kind is a stable category for a pipeline failure.
type Kind string

const (
	KindBuild          Kind = "BuildFailure"
	KindSpecGeneration Kind = "SpecGenerationFailure"
	KindConversion     Kind = "ConversionHazard"
	KindFragmentMiss   Kind = "FragmentMissing"
	KindFragmentParse  Kind = "FragmentParseError"
	KindOutputWrite    Kind = "OutputWriteFailure"
	KindConfig         Kind = "ConfigError"
)

// Error is the structured error returned by pipeline components.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "build.first" or "typereg.load".
	Op string
	// Path is the file involved, when there is one.
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Op)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns an *Error without a cause.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error around cause. A nil cause yields the same as New.
func Wrap(kind Kind, op string, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithPath returns a copy of err with Path set, when err is an *Error.
func WithPath(err error, path string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cp := *e
	cp.Path = path
	return &cp
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
