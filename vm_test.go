package ruchy

import (
	"strings"
	"testing"
	"time"
)

// Every program here runs on both engines; values and error kinds must agree.
var parityPrograms = []struct {
	name string
	src  string
}{
	{"arith", "2 + 3 * 4 - 1"},
	{"precedence", "(2 + 3) * (4 - 1)"},
	{"float_promotion", "1 + 0.5 * 4"},
	{"wrap_overflow", "9223372036854775807 + 1"},
	{"string_concat", `"ab" + "cd" + "ef"`},
	{"string_repeat", `"xy" * 3`},
	{"compare_chain", "1 < 2 == true"},
	{"logic_and", "1 < 2 && 3 < 4"},
	{"logic_or_value", "false || true"},
	{"short_circuit", "false && (1 / 0 == 0)"},
	{"not", "!(1 == 2)"},
	{"negate", "-(3 + 4)"},
	{"bitwise_not", "~41"},
	{"power", "2 ** 10"},
	{"power_right_assoc", "2 ** 3 ** 2"},
	{"power_negative_exp", "2 ** -2"},
	{"power_float", "2.0 ** 0.5"},
	{"and_yields_operand", "1 && 2"},
	{"or_yields_operand", "0 || 5"},
	{"and_yields_left", `0 && "never"`},
	{"negative_index", "[10, 20, 30][-1]"},
	{"negative_index_assign", "let a = [1, 2]\na[-2] = 8\na[0]"},
	{"min_int_literal", "-9223372036854775808 - 1"},
	{"newline_statement", "let a = 1\n(2, 3).0"},

	{"let_use", "let x = 42\nx + 8"},
	{"let_mut", "let mut c = 0\nc = c + 1\nc += 4\nc"},
	{"shadowing", "let x = 1\nlet x = x + 1\nx"},
	{"tuple_destructure", "let (a, b) = (1, 2)\na + b"},
	{"list_destructure", "let [h, ..t] = [1, 2, 3]\nh + t.len()"},
	{"nested_blocks", "let x = 1\nif true { let x = 10\nx } "},

	{"fun_call", "fun add(a, b) { a + b }\nadd(3, 4)"},
	{"fun_default", "fun f(a, b = 10) { a + b }\nf(5)"},
	{"lambda", "(|x| x * 2)(21)"},
	{"higher_order", "fun apply(f, x) { f(x) }\napply(|n| n + 1, 41)"},
	{"recursion", "fun fib(n) { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }\nfib(12)"},
	{"mutual_recursion", "fun even(n) { if n == 0 { true } else { odd(n - 1) } }\nfun odd(n) { if n == 0 { false } else { even(n - 1) } }\neven(9)"},
	{"counter_closure", "fun counter() { let mut n = 0\n|| { n = n + 1\nn } }\nlet c = counter()\nc()\nc()\nc()"},
	{"snapshot_capture", "fun make() { let mut x = 1\nlet f = || x\nx = 5\nf }\nmake()()"},
	{"live_global_capture", "let mut g = 1\nlet f = || g\ng = 7\nf()"},
	{"nested_lambda", "fun adder(a) { |b| |c| a + b + c }\nadder(1)(2)(3)"},
	{"early_return", "fun f(n) { if n > 0 { return n * 10 }\nn }\nf(4)"},
	{"top_level_return", "return 7\n1 + 1"},

	{"if_else", "if 1 > 2 { 10 } else { 20 }"},
	{"if_unit", "if false { 1 }"},
	{"while_sum", "let mut i = 0\nlet mut s = 0\nwhile i < 10 { i = i + 1\ns = s + i }\ns"},
	{"while_break_value", "let mut i = 0\nwhile true { i = i + 1\nif i == 5 { break i * i } }"},
	{"for_range_sum", "let mut s = 0\nfor i in 1..=100 { s = s + i }\ns"},
	{"for_continue", "let mut s = 0\nfor x in 1..10 { if x % 2 == 0 { continue }\ns = s + x }\ns"},
	{"for_tuple_pattern", "let mut s = 0\nfor (a, b) in [(1, 2), (3, 4)] { s = s + a * b }\ns"},
	{"nested_break", "let mut hits = 0\nfor i in 0..4 { for j in 0..4 { if j == 2 { break }\nhits = hits + 1 } }\nhits"},
	{"for_over_string", "let mut n = 0\nfor ch in \"héllo\" { n = n + 1 }\nn"},
	{"for_over_object_keys", `let o = { b: 1, a: 2 }
let mut ks = ""
for k in o { ks = ks + k }
ks`},

	{"match_literal", `match 2 { 1 => "one", 2 => "two", _ => "other" }`},
	{"match_guard", "match 5 { x if x > 3 => x * 2, _ => 0 }"},
	{"match_or", `match 3 { 1 | 2 | 3 => "small", _ => "big" }`},
	{"match_or_bind_order", "match (1, 2) { (0, x) | (x, _) => x }"},
	{"match_list_rest", "match [1, 2, 3] { [] => 0, [x] => x, [f, ..r] => f * 10 + r.len() }"},
	{"match_ctor", `fun area(s) { match s { Circle(r) => r * r, Rect(w, h) => w * h } }
enum Shape { Circle(Int), Rect(Int, Int) }
area(Rect(3, 4))`},

	{"array_index", "[10, 20, 30][2]"},
	{"array_mutate", "let a = [1, 2, 3]\na[1] = 99\na[1]"},
	{"array_push_len", "let mut a = []\na.push(1)\na.push(2)\na.len()"},
	{"array_map_filter", "[1, 2, 3, 4, 5].map(|x| x * x).filter(|x| x > 5)"},
	{"array_reduce", "[1, 2, 3, 4].reduce(10, |acc, x| acc + x)"},
	{"array_concat", "[1, 2] + [3]"},
	{"tuple_index", "(1, 2, 3).1"},
	{"object_field", "let o = { a: 1, b: 2 }\no.a + o.b"},
	{"object_field_set", "let o = { a: 1 }\no.a = 5\no.a"},
	{"object_index_set", `let o = { a: 1 }
o["b"] = 2
o.b`},
	{"range_to_vec", "(1..=5).to_vec()"},
	{"range_len", "(3..9).len()"},

	{"try_ok", "fun go() { let a = Ok(4)?\nOk(a + 1) }\ngo()"},
	{"try_err_in_fn", `fun half(n) { if n % 2 == 0 { Ok(n / 2) } else { Err("odd") } }
fun go() { let a = half(10)?
let b = half(a)?
Ok(a + b) }
go()`},
	{"option_chain", "Some(3).map(|x| x + 1).unwrap_or(0)"},

	{"struct_lit", "struct Point { x: Int, y: Int }\nlet p = Point { x: 3, y: 4 }\np.x * p.y"},
	{"struct_pattern", `struct P { x: Int, y: Int }
let p = P { x: 1, y: 2 }
match p { P { x: 1, .. } => "one", _ => "other" }`},
	{"class_counter", `class Counter {
  count: Int = 0
  fun increment(self) { self.count = self.count + 1 }
  fun get(self) { self.count }
}
let c = Counter::new()
c.increment()
c.increment()
c.get()`},
	{"class_ctor", `class Point {
  x: Int = 0
  y: Int = 0
  new(x, y) { self.x = x
self.y = y }
  fun sum(self) { self.x + self.y }
}
Point::new(20, 22).sum()`},
	{"static_method", "class M { fun sq(n) { n * n } }\nM::sq(6)"},
	{"enum_match", "enum Color { Red, Green, Blue }\nmatch Color::Blue { Red => 1, Green => 2, Blue => 3 }"},
	{"actor_roundtrip", `actor Acc {
  total: Int = 0
  receive Add(n) => { self.total = self.total + n }
  receive Total() => self.total
}
let a = Acc::new()
a <- Add(10)
a <- Add(32)
a <? Total()`},

	{"builtin_math", "pow(2, 10) + abs(-24)"},
	{"builtin_sqrt", "sqrt(2.0) * sqrt(2.0)"},
	{"builtin_typeof", `type_of([1]) + "/" + type_of(1.5)`},
	{"string_methods", `"Hello World".to_lower().split(" ")[1]`},
	{"aggregate", "[1, 2, 3, 4, 5].std()"},
	{"dataframe", "DataFrame({ v: [1, 2, 3] }).sum()"},
}

var parityFailures = []struct {
	name string
	src  string
}{
	{"div_zero", "1 / 0"},
	{"mod_zero", "1 % 0"},
	{"type_mismatch", `1 + "x"`},
	{"unbound", "nope"},
	{"immutable_assign", "let x = 1\nx = 2"},
	{"index_range", "[1][3]"},
	{"index_negative_range", "[1, 2][-3]"},
	{"bitwise_not_float", "~1.5"},
	{"power_string", `2 ** "x"`},
	{"non_exhaustive", "match 9 { 1 => 1 }"},
	{"arity_low", "fun f(a) { a }\nf()"},
	{"arity_high", "fun f(a) { a }\nf(1, 2)"},
	{"call_non_fn", "42(1)"},
	{"iterate_int", "for x in 5 { x }"},
	{"bad_range", "1.5..2"},
	{"stack_overflow", "fun f() { f() }\nf()"},
	{"try_non_variant", "5?"},
	{"try_top_level_err", `Err("boom")?`},
	{"unknown_struct", "Zz { a: 1 }"},
	{"unknown_field", "struct S { a: Int }\nS { b: 1 }"},
	{"assert_fail", "assert(1 == 2)"},
	{"break_outside", "break"},
	{"loop_pattern_miss", "for (a, b) in [1, 2] { a }"},
	{"let_pattern_miss", "let (a, b) = [1, 2]\na"},
}

func TestEngineParityValues(t *testing.T) {
	for _, tt := range parityPrograms {
		t.Run(tt.name, func(t *testing.T) {
			want, err := RunSource(tt.src)
			if err != nil {
				t.Fatalf("interpreter error: %v", err)
			}
			got, err := CompileAndRun(tt.src)
			if err != nil {
				t.Fatalf("vm error: %v", err)
			}
			if !Equal(want, got) {
				t.Fatalf("engines disagree: interpreter %s, vm %s",
					FormatValue(want), FormatValue(got))
			}
			if want.Tag != got.Tag {
				t.Fatalf("engines disagree on tag: %s vs %s", want.TypeName(), got.TypeName())
			}
		})
	}
}

func TestEngineParityErrors(t *testing.T) {
	for _, tt := range parityFailures {
		t.Run(tt.name, func(t *testing.T) {
			_, ierr := RunSource(tt.src)
			if ierr == nil {
				t.Fatal("interpreter: want error, got success")
			}
			_, verr := CompileAndRun(tt.src)
			if verr == nil {
				t.Fatal("vm: want error, got success")
			}
			ik, vk := AsError(ierr).Kind, AsError(verr).Kind
			if ik != vk {
				t.Fatalf("engines disagree on kind: interpreter %v (%v), vm %v (%v)", ik, ierr, vk, verr)
			}
		})
	}
}

// Closures cross engine boundaries: a bytecode closure defined in one Compile
// call must be callable from a later Eval, and the other way round.
func TestCrossEngineClosures(t *testing.T) {
	s := NewSession()
	if _, err := s.Compile("fun compiled(n) { n * 2 }"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Eval("compiled(21)")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 42)

	if _, err := s.Eval("fun walked(n) { n + 1 }"); err != nil {
		t.Fatal(err)
	}
	v, err = s.Compile("walked(41)")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 42)
}

func TestCompiledSessionPersistence(t *testing.T) {
	s := NewSession()
	if _, err := s.Compile("let x = 10"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Compile("x * 3")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 30)
}

func TestCompiledUpvalueMutation(t *testing.T) {
	src := `fun counter() { let mut n = 0
|| { n = n + 1
n } }
let a = counter()
let b = counter()
a()
a()
b()
a() * 10 + b()`
	wantInt(t, evalVM(t, src), 32)
}

func TestCompiledImmutableCapture(t *testing.T) {
	_, err := CompileAndRun("fun f() { let x = 1\n|| { x = 2 } }\nf()()")
	if err == nil {
		t.Fatal("want immutable assignment error")
	}
	if k := AsError(err).Kind; k != ErrImmutableAssignment {
		t.Fatalf("want ErrImmutableAssignment, got %v: %v", k, err)
	}
}

func TestCompiledTryReturnsVariant(t *testing.T) {
	v := evalVM(t, `fun go() { let x = Err("no")?
Ok(x) }
go()`)
	if v.Tag != TagVariant || v.Data.(*VariantObject).Name != "Err" {
		t.Fatalf("want Err variant, got %s", FormatValue(v))
	}
}

func TestCompiledTryNoneEndsProgram(t *testing.T) {
	v := evalVM(t, "let x = None?\nx + 1")
	if v.Tag != TagVariant || v.Data.(*VariantObject).Name != "None" {
		t.Fatalf("want None, got %s", FormatValue(v))
	}
}

func TestCompiledErrorCarriesFrames(t *testing.T) {
	_, err := CompileAndRun("fun inner() { 1 / 0 }\nfun outer() { inner() }\nouter()")
	if err == nil {
		t.Fatal("want error")
	}
	e := AsError(err)
	if e.Kind != ErrDivisionByZero {
		t.Fatalf("want ErrDivisionByZero, got %v", e.Kind)
	}
	if len(e.Frames) < 2 {
		t.Fatalf("want at least 2 frames, got %d", len(e.Frames))
	}
	tr := e.Trace()
	if !strings.Contains(tr, "inner") || !strings.Contains(tr, "outer") {
		t.Fatalf("trace missing frames:\n%s", tr)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{"break", "continue", "if true { break }"} {
		if _, err := CompileAndRun(src); err == nil {
			t.Fatalf("want compile error for %q", src)
		}
	}
}

func TestDisassemble(t *testing.T) {
	s := NewSession()
	out, err := s.Disassemble("let x = 1\nfun f(a) { a + x }\nf(2)")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CONST", "DEF_GLOBAL", "CLOSURE", "CALL", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Fatalf("disassembly missing %s:\n%s", want, out)
		}
	}
}

func TestDisassembleNestedProto(t *testing.T) {
	out, err := NewSession().Disassemble("fun outer() { |x| x }\n1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "outer") {
		t.Fatalf("nested proto not rendered:\n%s", out)
	}
}

func TestVMInterruptStopsLoop(t *testing.T) {
	s := NewSession()
	errc := make(chan error, 1)
	go func() {
		_, err := s.Compile("while true { 0 }")
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	s.Interp().Interrupt()
	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("want ErrInterrupted, got success")
		}
		if k := AsError(err).Kind; k != ErrInterrupted {
			t.Fatalf("want ErrInterrupted, got %v", k)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt did not stop the loop")
	}
}

func TestVMDeclarationsPersist(t *testing.T) {
	s := NewSession()
	if _, err := s.Compile("struct P { x: Int }"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Compile("P { x: 9 }.x")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 9)
}
