package scanerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is a coded failure with the operation that produced it
type Error struct {
	Code    Code
	Op      string            // e.g. "dispatch.resolve"
	Message string            // human readable, safe to show to callers
	Context map[string]string // extra detail such as the failing command
	Err     error             // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: CodeNotFound})
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of the error with an extra context entry
func (e *Error) With(key, value string) *Error {
	clone := *e
	clone.Context = make(map[string]string, len(e.Context)+1)
	for k, v := range e.Context {
		clone.Context[k] = v
	}
	clone.Context[key] = value
	return &clone
}

// ContextKeys returns the context keys in sorted order
func (e *Error) ContextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New creates a coded error
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Newf creates a coded error with a formatted message
func Newf(code Code, op, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around an underlying cause
func Wrap(err error, code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain,
// CodeInternal for other errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the caller-facing message of err. Context entries are
// appended so that the failing command and its captured error text reach
// the caller.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for _, k := range e.ContextKeys() {
		fmt.Fprintf(&b, "\n%s: %s", k, e.Context[k])
	}
	return b.String()
}

// Constructors for the taxonomy

// ConfigError reports missing or malformed configuration
func ConfigError(op, message string, err error) *Error {
	return Wrap(err, CodeInvalidConfig, op, message)
}

// ValidationError reports a rejected request
func ValidationError(op, message string) *Error {
	return New(CodeInvalidInput, op, message)
}

// ExtractionError reports a corrupt or malicious archive
func ExtractionError(op, message string, err error) *Error {
	return Wrap(err, CodeExtractionFailed, op, message)
}

// DispatchError reports an unsupported toolchain label
func DispatchError(op, label string) *Error {
	return Newf(CodeUnsupportedToolchain, op, "unsupported toolchain: %s", label)
}

// NotFoundError reports a missing required file or directory
func NotFoundError(op, message string) *Error {
	return New(CodeNotFound, op, message)
}
