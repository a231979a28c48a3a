package ruchy

import (
	"strings"
	"testing"
)

func transpileOK(t *testing.T, src string) string {
	t.Helper()
	out, err := Transpile(src)
	if err != nil {
		t.Fatalf("transpile error: %v\nsource:\n%s", err, src)
	}
	return out
}

func mustContain(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q:\n%s", w, out)
		}
	}
}

func TestTranspileMainShape(t *testing.T) {
	out := transpileOK(t, "let mut c = 0\nc = c + 1\nc")
	mustContain(t, out,
		"fn main() {",
		"let mut c = 0;",
		"c = c + 1;",
		`println!("{}", c);`,
	)
	// the binding must survive as a let, not collapse into the print
	if strings.Contains(out, `println!("{}", let`) {
		t.Fatalf("let leaked into println:\n%s", out)
	}
}

func TestTranspileFnWithArithParams(t *testing.T) {
	out := transpileOK(t, "fun add(a, b) { a + b }\nadd(1, 2)")
	mustContain(t, out,
		"fn add(a: i64, b: i64) -> i64 {",
		"a + b",
		"add(1, 2)",
	)
}

func TestTranspileCallableParam(t *testing.T) {
	out := transpileOK(t, "fun apply(f, x) { f(x) }\napply(|n| n * 2, 5)")
	mustContain(t, out,
		"f: impl Fn(i64) -> i64",
		"x: i64",
		"|n| n * 2",
	)
}

func TestTranspileInferenceReachesNestedUses(t *testing.T) {
	// the evidence sits inside a loop inside the body, not at the top level
	out := transpileOK(t, "fun drain(a, g) { while a > 0 { g(a - 1) } }")
	mustContain(t, out, "a: i64", "g: impl Fn(i64) -> i64")
}

func TestTranspileStringParamDefault(t *testing.T) {
	out := transpileOK(t, `fun shout(name) { println(name) }`)
	mustContain(t, out, "fn shout(name: String)")
}

func TestTranspileAutoBorrow(t *testing.T) {
	out := transpileOK(t, `fun greet(name: String) { "hello " + name }
greet("world")`)
	mustContain(t, out,
		`"hello " + &name`,
		"-> String",
	)
}

func TestTranspileOwnedLetBorrow(t *testing.T) {
	out := transpileOK(t, `let name = "world"
"hello " + name`)
	mustContain(t, out,
		`let name = "world".to_string();`,
		`"hello " + &name`,
	)
}

func TestTranspileMatchStringArms(t *testing.T) {
	out := transpileOK(t, `fun word(n: Int) { match n { 1 => "one", 2 => "two", _ => "many" } }`)
	mustContain(t, out,
		`1 => "one".to_string()`,
		`_ => "many".to_string()`,
		"-> String",
	)
}

func TestTranspileMatchGuard(t *testing.T) {
	out := transpileOK(t, "fun sign(n: Int) { match n { x if x > 0 => 1, _ => 0 } }")
	mustContain(t, out, "x if x > 0 => 1")
}

func TestTranspileCtorToStructLiteral(t *testing.T) {
	out := transpileOK(t, `class Point {
  x: Int = 0
  y: Int = 0
  new(x, y) { self.x = x
self.y = y }
  fun norm2(self) { self.x * self.x + self.y * self.y }
}`)
	mustContain(t, out,
		"struct Point {",
		"x: i64,",
		"impl Point {",
		"pub fn new(x: i64, y: i64) -> Self {",
		"Self { x: x, y: y }",
		"pub fn norm2(&self) -> i64 {",
	)
	if strings.Contains(out, "self.x =") {
		t.Fatalf("field assignment survived into the ctor:\n%s", out)
	}
}

func TestTranspileDefaultCtor(t *testing.T) {
	out := transpileOK(t, `class Pair {
  a: Int = 0
  b: Int = 0
}`)
	mustContain(t, out, "pub fn new(a: i64, b: i64) -> Self {", "Self { a, b }")
}

func TestTranspileStaticMethod(t *testing.T) {
	out := transpileOK(t, "class M { fun sq(n) { n * n } }")
	mustContain(t, out, "pub fn sq(n: i64) -> i64")
	if strings.Contains(out, "sq(&self") {
		t.Fatalf("static method took self:\n%s", out)
	}
}

func TestTranspileEnum(t *testing.T) {
	out := transpileOK(t, "enum Shape { Dot, Rect(Int, Int) }")
	mustContain(t, out, "enum Shape {", "Dot,", "Rect(i64, i64),")
}

func TestTranspileUseLines(t *testing.T) {
	out := transpileOK(t, `use std::collections::{HashMap, HashSet};
use std::fmt::{Display};
let x = 1
x`)
	mustContain(t, out,
		"use std::collections::{HashMap, HashSet};",
		"use std::fmt::Display;",
	)
	if strings.Contains(out, "{Display}") {
		t.Fatalf("single-element group not simplified:\n%s", out)
	}
}

func TestTranspileControlFlow(t *testing.T) {
	out := transpileOK(t, `let mut total = 0
for i in 1..=10 { total = total + i }
while total > 100 { total = total - 1 }
total`)
	mustContain(t, out,
		"for i in 1..=10 {",
		"while total > 100 {",
		`println!("{}", total);`,
	)
}

func TestTranspileVecAndIndex(t *testing.T) {
	out := transpileOK(t, "let xs = [1, 2, 3]\nxs[0]")
	mustContain(t, out, "vec![1, 2, 3]", "xs[0 as usize]")
}

func TestTranspilePrintln(t *testing.T) {
	out := transpileOK(t, `println("a", 1)`)
	mustContain(t, out, `println!("{} {}", "a", 1);`)
}

func TestTranspileActorFails(t *testing.T) {
	_, err := Transpile("actor A { receive X() => 1 }")
	if err == nil {
		t.Fatal("actors are not transpilable")
	}
	if !strings.Contains(err.Error(), "cannot transpile actor") {
		t.Fatalf("error: %v", err)
	}
}
