// errors.go: the typed runtime error model and caret-snippet rendering.
//
// Every failing operation in the interpreter, the VM, and the transpiler
// produces an *Error carrying a closed ErrorKind, a source span, and (for
// runtime failures) a stack trace. Rendering follows the Python-style caret
// snippet format:
//
//	Division by zero at 2:11: integer division by zero
//
//	   1 | let x = 10
//	   2 | let y = x / 0
//	     |           ^
//	   3 | y
//
// The snippet shows up to one line of context before and after, numbers the
// lines, and places a caret under the 1-based column. Output is plain text,
// suitable for logs and terminals; the REPL adds color on top.
package ruchy

import (
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failure categories the execution core can
// produce. The interpreter and the VM must agree on the kind for any failing
// program; parity tests compare kinds, never message text.
type ErrorKind int

const (
	ErrParse ErrorKind = iota
	ErrUnboundName
	ErrTypeMismatch
	ErrArity
	ErrDivisionByZero
	ErrIndexOutOfRange
	ErrNonExhaustiveMatch
	ErrImmutableAssignment
	ErrStackOverflow
	ErrInterrupted
	ErrNative
	ErrPropagated
)

func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "Parse error"
	case ErrUnboundName:
		return "Unbound name"
	case ErrTypeMismatch:
		return "Type mismatch"
	case ErrArity:
		return "Arity mismatch"
	case ErrDivisionByZero:
		return "Division by zero"
	case ErrIndexOutOfRange:
		return "Index out of range"
	case ErrNonExhaustiveMatch:
		return "Non-exhaustive match"
	case ErrImmutableAssignment:
		return "Immutable assignment"
	case ErrStackOverflow:
		return "Stack overflow"
	case ErrInterrupted:
		return "Interrupted"
	case ErrNative:
		return "Native error"
	case ErrPropagated:
		return "Propagated error"
	default:
		return "Runtime error"
	}
}

// Frame is one entry of a stack trace, deepest last. IP is the bytecode
// instruction pointer for VM frames and -1 for interpreter frames.
type Frame struct {
	FnName string
	IP     int
	Span   Span
	Locals [][2]string // (name, repr) pairs captured at unwind time
}

// Error is the unified diagnostic for lex, parse, and runtime failures.
type Error struct {
	Kind   ErrorKind
	Msg    string
	Span   Span
	Frames []Frame

	// Payload is set for ErrPropagated: the Err(v) value travelling up
	// through `?` out of the top-level scope.
	Payload Value

	// NativeName is set for ErrNative.
	NativeName string

	// Incomplete marks a parse error caused by premature end of input. The
	// REPL uses it to keep reading continuation lines instead of reporting.
	Incomplete bool

	src string // attached by the facade for snippet rendering
}

func (e *Error) Error() string {
	if e.src != "" {
		return e.renderSnippet()
	}
	return e.summary()
}

func (e *Error) summary() string {
	line, col := e.Span.Line, e.Span.Col
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if e.Kind == ErrNative && e.NativeName != "" {
		return fmt.Sprintf("%s at %d:%d: %s: %s", e.Kind, line, col, e.NativeName, e.Msg)
	}
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, line, col, e.Msg)
}

// WithSource attaches source text so Error() renders a caret snippet.
func (e *Error) WithSource(src string) *Error {
	e.src = src
	return e
}

// Trace renders the expanded stack trace, one line per frame, deepest last.
// The REPL prints this under its verbose flag.
func (e *Error) Trace() string {
	if len(e.Frames) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("stack trace (most recent call last):\n")
	for _, f := range e.Frames {
		name := f.FnName
		if name == "" {
			name = "<lambda>"
		}
		if f.IP >= 0 {
			fmt.Fprintf(&b, "  at %s (ip=%d, line %d)\n", name, f.IP, f.Span.Line)
		} else {
			fmt.Fprintf(&b, "  at %s (line %d)\n", name, f.Span.Line)
		}
		for _, kv := range f.Locals {
			fmt.Fprintf(&b, "      %s = %s\n", kv[0], kv[1])
		}
	}
	return b.String()
}

func (e *Error) renderSnippet() string {
	line, col := e.Span.Line, e.Span.Col
	if line < 1 || col < 1 {
		line, col = offsetToLineCol(e.src, e.Span.Start)
	}
	header := e.Kind.String()
	if e.Kind == ErrNative && e.NativeName != "" {
		header = fmt.Sprintf("%s (%s)", e.Kind, e.NativeName)
	}
	return prettyErrorString(e.src, header, line, col, e.Msg)
}

// errAt builds a runtime error with a span. The variadic args feed Sprintf.
func errAt(kind ErrorKind, sp Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Span: sp}
}

// AsError extracts the *Error from a Go error, or wraps a foreign error as a
// native failure so callers always see a typed kind.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: ErrNative, Msg: err.Error()}
}

// IsIncomplete reports whether err is a parse error that more input could
// still repair.
func IsIncomplete(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Incomplete
}

// prettyErrorString builds a snippet with a header and a caret. It shows at
// most one previous and one next line when available. Coordinates are 1-based
// and clamped to the source bounds.
func prettyErrorString(src, header string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad > len(lineTxt) {
		caretPad = len(lineTxt)
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
