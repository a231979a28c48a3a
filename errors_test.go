package ruchy

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorSummary(t *testing.T) {
	e := errAt(ErrDivisionByZero, Span{Line: 2, Col: 11}, "integer division by zero")
	got := e.Error()
	if got != "Division by zero at 2:11: integer division by zero" {
		t.Fatalf("summary: %q", got)
	}
}

func TestErrorSnippet(t *testing.T) {
	src := "let x = 10\nlet y = x / 0\ny"
	_, err := RunSource(src)
	if err == nil {
		t.Fatal("want error")
	}
	msg := err.Error()
	for _, want := range []string{
		"Division by zero at 2:",
		"   1 | let x = 10",
		"   2 | let y = x / 0",
		"   3 | y",
		"^",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("snippet missing %q:\n%s", want, msg)
		}
	}
	// the caret line sits under the reported column
	var caret, code string
	for _, line := range strings.Split(msg, "\n") {
		if strings.Contains(line, "let y") {
			code = line
		}
		if strings.HasSuffix(line, "^") {
			caret = line
		}
	}
	if caret == "" || code == "" {
		t.Fatalf("caret or code line missing:\n%s", msg)
	}
	if strings.Index(code, "/") > len(caret)-1 {
		t.Fatalf("caret left of the failing operator:\n%s", msg)
	}
}

func TestErrorSpansFirstLine(t *testing.T) {
	_, err := RunSource("undefined_name")
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "at 1:1") {
		t.Fatalf("span: %v", err)
	}
}

func TestInterpreterTraceFrames(t *testing.T) {
	_, err := RunSource("fun inner() { boom }\nfun outer() { inner() }\nouter()")
	if err == nil {
		t.Fatal("want error")
	}
	e := AsError(err)
	if e.Kind != ErrUnboundName {
		t.Fatalf("kind: %v", e.Kind)
	}
	tr := e.Trace()
	if !strings.Contains(tr, "inner") || !strings.Contains(tr, "outer") {
		t.Fatalf("trace:\n%s", tr)
	}
	if !strings.HasPrefix(tr, "stack trace") {
		t.Fatalf("trace header:\n%s", tr)
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatal("nil passes through")
	}
	e := errAt(ErrArity, Span{}, "x")
	if AsError(e) != e {
		t.Fatal("typed errors pass through unchanged")
	}
	w := AsError(errors.New("plain failure"))
	if w.Kind != ErrNative || w.Msg != "plain failure" {
		t.Fatalf("foreign error wrap: %#v", w)
	}
}

func TestErrorKindStrings(t *testing.T) {
	tests := map[ErrorKind]string{
		ErrParse:              "Parse error",
		ErrUnboundName:        "Unbound name",
		ErrNonExhaustiveMatch: "Non-exhaustive match",
		ErrPropagated:         "Propagated error",
	}
	for k, want := range tests {
		if k.String() != want {
			t.Fatalf("kind %d: got %q, want %q", k, k.String(), want)
		}
	}
}

func TestParseErrorRendersSnippet(t *testing.T) {
	_, err := NewSession().Eval("let x = \nlet")
	if err == nil {
		t.Fatal("want parse error")
	}
	if !strings.Contains(err.Error(), "|") {
		t.Fatalf("parse errors also render snippets: %v", err)
	}
}
