package ruchy

import (
	"strings"
	"testing"
)

func newREPL() *REPL { return NewREPL(NewSession()) }

func dispatch(t *testing.T, r *REPL, input string) string {
	t.Helper()
	out, quit := r.Dispatch(input)
	if quit {
		t.Fatalf("unexpected quit for %q", input)
	}
	return out
}

func TestREPLEvalEcho(t *testing.T) {
	r := newREPL()
	if got := dispatch(t, r, "1 + 2"); got != "3" {
		t.Fatalf("echo: %q", got)
	}
	if got := dispatch(t, r, `"hi"`); got != `"hi"` {
		t.Fatalf("string echo keeps quotes: %q", got)
	}
	// unit results print nothing
	if got := dispatch(t, r, "let x = 1"); got != "" {
		t.Fatalf("let echo: %q", got)
	}
	if got := dispatch(t, r, "x + 1"); got != "2" {
		t.Fatalf("binding persists: %q", got)
	}
}

func TestREPLErrorsAreText(t *testing.T) {
	r := newREPL()
	out := dispatch(t, r, "1 / 0")
	if !strings.Contains(out, "Division by zero") {
		t.Fatalf("error text: %q", out)
	}
	// the session survives the error
	if got := dispatch(t, r, "2 + 2"); got != "4" {
		t.Fatalf("session after error: %q", got)
	}
}

func TestREPLQuit(t *testing.T) {
	for _, cmd := range []string{":quit", ":q"} {
		_, quit := newREPL().Dispatch(cmd)
		if !quit {
			t.Fatalf("%s must quit", cmd)
		}
	}
	if _, quit := newREPL().Dispatch("1 + 1"); quit {
		t.Fatal("evaluation must not quit")
	}
}

func TestREPLModeSwitching(t *testing.T) {
	r := newREPL()
	if r.Mode() != "normal" || r.Prompt() != "ruchy> " {
		t.Fatalf("initial mode: %q %q", r.Mode(), r.Prompt())
	}
	out := dispatch(t, r, ":mode debug")
	if out != "mode: debug" || r.Prompt() != "debug> " {
		t.Fatalf("mode switch: %q %q", out, r.Prompt())
	}
	out = dispatch(t, r, ":mode nope")
	if !strings.Contains(out, "unknown mode") || r.Mode() != "debug" {
		t.Fatalf("bad mode: %q %q", out, r.Mode())
	}
	if out := dispatch(t, r, ":mode"); !strings.Contains(out, "debug") {
		t.Fatalf("mode query: %q", out)
	}
}

func TestREPLDebugMode(t *testing.T) {
	r := newREPL()
	dispatch(t, r, ":mode debug")
	out := dispatch(t, r, "[1, 2, 3].map(|x| x * 2)")
	if !strings.Contains(out, "[2, 4, 6]") {
		t.Fatalf("debug keeps the value: %q", out)
	}
	for _, want := range []string{"nodes", "tracked objects", "cache"} {
		if !strings.Contains(out, want) {
			t.Fatalf("debug trace missing %q: %q", want, out)
		}
	}
}

func TestREPLTestMode(t *testing.T) {
	r := newREPL()
	dispatch(t, r, ":mode test")
	if out := dispatch(t, r, "assert(1 == 1)"); out != "PASS" {
		t.Fatalf("passing assert: %q", out)
	}
	out := dispatch(t, r, "assert(1 == 2)")
	if !strings.HasPrefix(out, "FAIL:") {
		t.Fatalf("failing assert: %q", out)
	}
	out = dispatch(t, r, `assert_eq(2 + 2, 5)`)
	if !strings.HasPrefix(out, "FAIL:") {
		t.Fatalf("failing assert_eq: %q", out)
	}
}

func TestREPLTimeMode(t *testing.T) {
	r := newREPL()
	dispatch(t, r, ":mode time")
	out := dispatch(t, r, "1 + 1")
	if !strings.Contains(out, "2") || !strings.Contains(out, "elapsed:") {
		t.Fatalf("time mode: %q", out)
	}
}

func TestREPLEnvCommand(t *testing.T) {
	r := newREPL()
	if out := dispatch(t, r, ":env"); out != "(no bindings)" {
		t.Fatalf("empty env: %q", out)
	}
	dispatch(t, r, "let count = 42")
	dispatch(t, r, `let name = "ada"`)
	out := dispatch(t, r, ":env")
	if !strings.Contains(out, "count: integer = 42") {
		t.Fatalf("env report: %q", out)
	}
	if !strings.Contains(out, `name: string = "ada"`) {
		t.Fatalf("env report: %q", out)
	}
	// builtins stay out of the listing
	if strings.Contains(out, "println") {
		t.Fatalf("env lists natives: %q", out)
	}
}

func TestREPLTypeCommand(t *testing.T) {
	r := newREPL()
	if out := dispatch(t, r, ":type 1 + 2"); out != "integer" {
		t.Fatalf(":type: %q", out)
	}
	if out := dispatch(t, r, ":type |x| x"); out != "function" {
		t.Fatalf(":type lambda: %q", out)
	}
	if out := dispatch(t, r, ":type"); !strings.Contains(out, "usage") {
		t.Fatalf(":type usage: %q", out)
	}
}

func TestREPLAstCommand(t *testing.T) {
	r := newREPL()
	if out := dispatch(t, r, ":ast 1 + 2 * 3"); out != "(+ (int 1) (* (int 2) (int 3)))" {
		t.Fatalf(":ast: %q", out)
	}
	out := dispatch(t, r, ":ast let (a, b) = p")
	if out != "(let (tuple-pat a b) p)" {
		t.Fatalf(":ast let: %q", out)
	}
	out = dispatch(t, r, `:ast match x { 1 | 2 => "s", _ => "o" }`)
	if !strings.Contains(out, "(or-pat 1 2)") {
		t.Fatalf(":ast match: %q", out)
	}
}

func TestREPLInspectCommand(t *testing.T) {
	r := newREPL()
	dispatch(t, r, "let xs = [1, 2, 3]")
	dispatch(t, r, "fun f(a, b) { a + b }")
	out := dispatch(t, r, ":inspect xs")
	if !strings.Contains(out, "xs: array") || !strings.Contains(out, "length: 3") {
		t.Fatalf(":inspect array: %q", out)
	}
	out = dispatch(t, r, ":inspect f")
	if !strings.Contains(out, "arity: 2") {
		t.Fatalf(":inspect function: %q", out)
	}
	out = dispatch(t, r, ":inspect nothing")
	if !strings.Contains(out, "no binding") {
		t.Fatalf(":inspect missing: %q", out)
	}
}

func TestREPLHelpAndUnknown(t *testing.T) {
	r := newREPL()
	if out := dispatch(t, r, ":help"); !strings.Contains(out, ":quit") {
		t.Fatalf("help: %q", out)
	}
	if out := dispatch(t, r, ":wat"); !strings.Contains(out, "unknown command") {
		t.Fatalf("unknown: %q", out)
	}
	if out := dispatch(t, r, "   "); out != "" {
		t.Fatalf("blank input: %q", out)
	}
}
