package ruchy

import (
	"math"
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

func evalSrc(t *testing.T, src string) Value {
	t.Helper()
	v, err := RunSource(src)
	if err != nil {
		t.Fatalf("RunSource error: %v\nsource:\n%s", err, src)
	}
	return v
}

func evalVM(t *testing.T, src string) Value {
	t.Helper()
	v, err := CompileAndRun(src)
	if err != nil {
		t.Fatalf("CompileAndRun error: %v\nsource:\n%s", err, src)
	}
	return v
}

func wantInt(t *testing.T, v Value, n int64) {
	t.Helper()
	if v.Tag != TagInteger || v.Data.(int64) != n {
		t.Fatalf("want integer %d, got %s", n, FormatValue(v))
	}
}

func wantFloat(t *testing.T, v Value, f, tol float64) {
	t.Helper()
	if v.Tag != TagFloat {
		t.Fatalf("want float %g, got %s", f, FormatValue(v))
	}
	if got := v.Data.(float64); math.Abs(got-f) > tol {
		t.Fatalf("want float %g, got %g", f, got)
	}
}

func wantStr(t *testing.T, v Value, s string) {
	t.Helper()
	if v.Tag != TagString || v.Data.(string) != s {
		t.Fatalf("want string %q, got %s", s, FormatValue(v))
	}
}

func wantBool(t *testing.T, v Value, b bool) {
	t.Helper()
	if v.Tag != TagBool || v.Data.(bool) != b {
		t.Fatalf("want bool %v, got %s", b, FormatValue(v))
	}
}

func wantUnit(t *testing.T, v Value) {
	t.Helper()
	if v.Tag != TagUnit {
		t.Fatalf("want unit, got %s", FormatValue(v))
	}
}

func wantInts(t *testing.T, v Value, ns ...int64) {
	t.Helper()
	if v.Tag != TagArray {
		t.Fatalf("want array, got %s", FormatValue(v))
	}
	elems := v.Data.(*ArrayObject).Elems
	if len(elems) != len(ns) {
		t.Fatalf("want %d elements, got %s", len(ns), FormatValue(v))
	}
	for i, n := range ns {
		wantInt(t, elems[i], n)
	}
}

func wantErrKind(t *testing.T, src string, kind ErrorKind) {
	t.Helper()
	_, err := RunSource(src)
	if err == nil {
		t.Fatalf("want %v error, got success for %q", kind, src)
	}
	if e := AsError(err); e.Kind != kind {
		t.Fatalf("want %v, got %v: %v", kind, e.Kind, err)
	}
}

// --- literals and operators ------------------------------------------------

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"6 * 7", 42},
		{"20 / 6", 3},
		{"20 % 6", 2},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"-5 + 3", -2},
		{"--5", 5},
		{"1_000_000 / 1000", 1000},
	}
	for _, tt := range tests {
		wantInt(t, evalSrc(t, tt.src), tt.want)
	}
}

func TestFloatArithmetic(t *testing.T) {
	wantFloat(t, evalSrc(t, "1.5 + 2.5"), 4.0, 0)
	wantFloat(t, evalSrc(t, "1 + 0.5"), 1.5, 0)
	wantFloat(t, evalSrc(t, "7.0 / 2"), 3.5, 0)
	wantFloat(t, evalSrc(t, "1e3 * 2"), 2000, 0)
}

func TestIntegerOverflowWraps(t *testing.T) {
	wantInt(t, evalSrc(t, "9223372036854775807 + 1"), math.MinInt64)
	wantInt(t, evalSrc(t, "-9223372036854775808 - 1"), math.MaxInt64)
}

func TestComparisonAndLogic(t *testing.T) {
	wantBool(t, evalSrc(t, "1 < 2"), true)
	wantBool(t, evalSrc(t, "2 <= 1"), false)
	wantBool(t, evalSrc(t, `"abc" < "abd"`), true)
	wantBool(t, evalSrc(t, "1 == 1.0"), true)
	wantBool(t, evalSrc(t, "true && false"), false)
	wantBool(t, evalSrc(t, "true || false"), true)
	wantBool(t, evalSrc(t, "!false"), true)
}

func TestShortCircuit(t *testing.T) {
	// the right side must not evaluate
	wantBool(t, evalSrc(t, "false && (1 / 0 == 0)"), false)
	wantBool(t, evalSrc(t, "true || (1 / 0 == 0)"), true)
}

func TestLogicalYieldsOperand(t *testing.T) {
	wantInt(t, evalSrc(t, "1 && 2"), 2)
	wantInt(t, evalSrc(t, "0 && 2"), 0)
	wantInt(t, evalSrc(t, "0 || 5"), 5)
	wantInt(t, evalSrc(t, "3 || 5"), 3)
	wantStr(t, evalSrc(t, `"" || "fallback"`), "fallback")
	wantInts(t, evalSrc(t, "[] || [7]"), 7)
}

func TestPowerOperator(t *testing.T) {
	wantInt(t, evalSrc(t, "2 ** 3"), 8)
	wantInt(t, evalSrc(t, "7 ** 0"), 1)
	wantInt(t, evalSrc(t, "2 ** 3 ** 2"), 512) // binds to the right
	wantInt(t, evalSrc(t, "2 * 3 ** 2"), 18)
	wantInt(t, evalSrc(t, "(-2) ** 2"), 4)
	wantInt(t, evalSrc(t, "2 ** 62"), 1<<62)
	wantFloat(t, evalSrc(t, "2 ** -1"), 0.5, 0)
	wantFloat(t, evalSrc(t, "2.0 ** 0.5"), math.Sqrt2, 1e-12)
	wantFloat(t, evalSrc(t, "9 ** 0.5"), 3.0, 1e-12)
	wantErrKind(t, `2 ** "x"`, ErrTypeMismatch)
}

func TestBitwiseNot(t *testing.T) {
	wantInt(t, evalSrc(t, "~5"), -6)
	wantInt(t, evalSrc(t, "~0"), -1)
	wantInt(t, evalSrc(t, "~~42"), 42)
	wantErrKind(t, "~1.5", ErrTypeMismatch)
}

func TestStringOps(t *testing.T) {
	wantStr(t, evalSrc(t, `"foo" + "bar"`), "foobar")
	wantStr(t, evalSrc(t, `"ab" * 3`), "ababab")
	wantStr(t, evalSrc(t, `"x" + 'y'`), "xy")
	wantInt(t, evalSrc(t, `"hello".len()`), 5)
	wantInt(t, evalSrc(t, `len("héllo")`), 5)
	wantStr(t, evalSrc(t, `"HeLLo".to_lower()`), "hello")
	wantStr(t, evalSrc(t, `"  pad  ".trim()`), "pad")
	wantStr(t, evalSrc(t, `"abc".reverse()`), "cba")
	wantBool(t, evalSrc(t, `"hello".starts_with("he")`), true)
	wantStr(t, evalSrc(t, `"a,b,c".split(",")[1]`), "b")
}

// --- bindings and scope ----------------------------------------------------

func TestLetAndAddition(t *testing.T) {
	wantInt(t, evalSrc(t, "let x = 42\nx + 8"), 50)
}

func TestMutableRebinding(t *testing.T) {
	wantInt(t, evalSrc(t, "let mut c = 0\nc = c + 1\nc"), 1)
	wantInt(t, evalSrc(t, "let mut c = 1\nc += 4\nc *= 2\nc"), 10)
}

func TestImmutableAssignmentFails(t *testing.T) {
	wantErrKind(t, "let x = 1\nx = 2", ErrImmutableAssignment)
}

func TestUnboundName(t *testing.T) {
	wantErrKind(t, "nope + 1", ErrUnboundName)
	wantErrKind(t, "let x = 1\ny = 2", ErrUnboundName)
}

func TestTupleDestructuring(t *testing.T) {
	wantInt(t, evalSrc(t, "let (a, b) = (1, 2)\na + b"), 3)
	wantInt(t, evalSrc(t, "let (a, (b, c)) = (1, (2, 3))\na + b + c"), 6)
	wantErrKind(t, "let (a, b) = (1, 2, 3)\na", ErrTypeMismatch)
}

func TestListDestructuring(t *testing.T) {
	wantInt(t, evalSrc(t, "let [a, b] = [10, 20]\na + b"), 30)
	wantInts(t, evalSrc(t, "let [head, ..tail] = [1, 2, 3]\ntail"), 2, 3)
}

func TestScopeIsolation(t *testing.T) {
	src := `fun inner() { let a = 999
("s", a) }
let a = "outer"
let t = inner()
a`
	wantStr(t, evalSrc(t, src), "outer")
}

func TestBlockScopeDoesNotLeak(t *testing.T) {
	wantErrKind(t, "if true { let hidden = 1 }\nhidden", ErrUnboundName)
}

func TestNewlineSeparatesStatements(t *testing.T) {
	// a `(` or `[` opening a new line is a fresh statement, not a call or
	// index on the previous line's value
	wantInt(t, evalSrc(t, "let a = 1\n(2, 3).0"), 2)
	wantInt(t, evalSrc(t, "let a = 1\n[5, 6][0]"), 5)
	// a line-initial `||` is a lambda, not logical or
	v := evalSrc(t, "let mut n = 0\n|| n")
	if v.Tag != TagClosure {
		t.Fatalf("want closure, got %s", FormatValue(v))
	}
	// on one line the call still binds
	wantInt(t, evalSrc(t, "let f = |x| x + 1\nf (4)"), 5)
}

// --- functions and closures ------------------------------------------------

func TestFunctionCall(t *testing.T) {
	wantInt(t, evalSrc(t, "fun add(a, b) { a + b }\nadd(3, 4)"), 7)
}

func TestHigherOrderFunction(t *testing.T) {
	wantInt(t, evalSrc(t, "fun apply(f, x) { f(x) }\napply(|n| n * 2, 5)"), 10)
}

func TestDefaultParams(t *testing.T) {
	wantInt(t, evalSrc(t, "fun greet(a, b = 10) { a + b }\ngreet(5)"), 15)
	wantInt(t, evalSrc(t, "fun greet(a, b = 10) { a + b }\ngreet(5, 1)"), 6)
	wantErrKind(t, "fun f(a) { a }\nf()", ErrArity)
	wantErrKind(t, "fun f(a) { a }\nf(1, 2)", ErrArity)
}

func TestRecursion(t *testing.T) {
	src := `fun fib(n) { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }
fib(10)`
	wantInt(t, evalSrc(t, src), 55)
}

func TestMutualRecursion(t *testing.T) {
	src := `fun is_even(n) { if n == 0 { true } else { is_odd(n - 1) } }
fun is_odd(n) { if n == 0 { false } else { is_even(n - 1) } }
is_even(10)`
	wantBool(t, evalSrc(t, src), true)
}

func TestClosureCounter(t *testing.T) {
	src := `fun counter() { let mut n = 0
|| { n = n + 1
n } }
let c = counter()
c()
c()
c()`
	wantInt(t, evalSrc(t, src), 3)
}

func TestClosureCapturesSnapshot(t *testing.T) {
	// mutating a local after capture does not change the closure's copy
	src := `fun make() { let mut x = 1
let f = || x
x = 5
f }
make()()`
	wantInt(t, evalSrc(t, src), 1)
}

func TestTopLevelCaptureIsLive(t *testing.T) {
	// globals are shared, not copied
	src := `let mut x = 1
let f = || x
x = 5
f()`
	wantInt(t, evalSrc(t, src), 5)
}

func TestIndependentCounters(t *testing.T) {
	src := `fun counter() { let mut n = 0
|| { n = n + 1
n } }
let a = counter()
let b = counter()
a()
a()
b()`
	wantInt(t, evalSrc(t, src), 1)
}

func TestStackOverflow(t *testing.T) {
	wantErrKind(t, "fun f() { f() }\nf()", ErrStackOverflow)
}

func TestReturnEarly(t *testing.T) {
	src := `fun f(n) { if n > 0 { return "pos" }
"neg" }
f(3)`
	wantStr(t, evalSrc(t, src), "pos")
}

// --- control flow ----------------------------------------------------------

func TestIfExpression(t *testing.T) {
	wantInt(t, evalSrc(t, "if 1 < 2 { 10 } else { 20 }"), 10)
	wantUnit(t, evalSrc(t, "if false { 10 }"))
	wantInt(t, evalSrc(t, "let x = if true { 1 } else { 2 }\nx"), 1)
}

func TestWhileLoop(t *testing.T) {
	src := `let mut i = 0
let mut total = 0
while i < 5 { i = i + 1
total = total + i }
total`
	wantInt(t, evalSrc(t, src), 15)
}

func TestWhileBreakValue(t *testing.T) {
	src := `let mut i = 0
while true { i = i + 1
if i == 5 { break i * 2 } }`
	wantInt(t, evalSrc(t, src), 10)
}

func TestForOverRange(t *testing.T) {
	src := `let mut total = 0
for i in 1..=10 { total = total + i }
total`
	wantInt(t, evalSrc(t, src), 55)
}

func TestForOverArrayWithContinue(t *testing.T) {
	src := `let mut total = 0
for x in [1, 2, 3, 4, 5, 6] { if x % 2 == 0 { continue }
total = total + x }
total`
	wantInt(t, evalSrc(t, src), 9)
}

func TestForTuplePattern(t *testing.T) {
	src := `let mut total = 0
for (a, b) in [(1, 2), (3, 4)] { total = total + a * b }
total`
	wantInt(t, evalSrc(t, src), 14)
}

func TestNestedLoopBreak(t *testing.T) {
	src := `let mut hits = 0
for i in 0..3 { for j in 0..3 { if j == 1 { break }
hits = hits + 1 } }
hits`
	wantInt(t, evalSrc(t, src), 3)
}

func TestBreakOutsideLoop(t *testing.T) {
	wantErrKind(t, "break", ErrTypeMismatch)
	wantErrKind(t, "continue", ErrTypeMismatch)
}

// --- match -----------------------------------------------------------------

func TestMatchLiteral(t *testing.T) {
	wantStr(t, evalSrc(t, `match 2 { 1 => "one", 2 => "two", _ => "other" }`), "two")
	wantStr(t, evalSrc(t, `match 9 { 1 => "one", 2 => "two", _ => "other" }`), "other")
}

func TestMatchGuard(t *testing.T) {
	src := `fun sign(n) { match n { x if x > 0 => 1, x if x < 0 => -1, _ => 0 } }
sign(-42)`
	wantInt(t, evalSrc(t, src), -1)
}

func TestMatchTupleAndBinding(t *testing.T) {
	wantInt(t, evalSrc(t, "match (1, 2) { (a, b) => a + b }"), 3)
}

func TestMatchListRest(t *testing.T) {
	src := `match [1, 2, 3] { [] => 0, [x] => x, [first, ..rest] => first + rest.len() }`
	wantInt(t, evalSrc(t, src), 3)
}

func TestMatchOrPattern(t *testing.T) {
	wantStr(t, evalSrc(t, `match 3 { 1 | 2 | 3 => "small", _ => "big" }`), "small")
}

func TestMatchNonExhaustive(t *testing.T) {
	wantErrKind(t, "match 3 { 1 => 1, 2 => 2 }", ErrNonExhaustiveMatch)
}

// --- collections -----------------------------------------------------------

func TestArrayBasics(t *testing.T) {
	wantInt(t, evalSrc(t, "[10, 20, 30][1]"), 20)
	wantInt(t, evalSrc(t, "[1, 2, 3].len()"), 3)
	wantInts(t, evalSrc(t, "[1, 2, 3].map(|x| x * 2)"), 2, 4, 6)
	wantInts(t, evalSrc(t, "[1, 2, 3, 4].filter(|x| x % 2 == 0)"), 2, 4)
	wantInt(t, evalSrc(t, "[1, 2, 3].reduce(0, |acc, x| acc + x)"), 6)
	wantInts(t, evalSrc(t, "[3, 1, 2].sort()"), 1, 2, 3)
	wantInts(t, evalSrc(t, "[1, 2, 3].reverse()"), 3, 2, 1)
	wantInt(t, evalSrc(t, "let mut a = [1]\na.push(9)\na[1]"), 9)
	wantStr(t, evalSrc(t, `[1, 2, 3].join("-")`), "1-2-3")
}

func TestReverseInvolution(t *testing.T) {
	wantBool(t, evalSrc(t, `let a = [3, 1, "x", 2.5]
a.reverse().reverse() == a`), true)
}

func TestArrayAggregates(t *testing.T) {
	wantInt(t, evalSrc(t, "[1, 2, 3, 4].sum()"), 10)
	wantFloat(t, evalSrc(t, "[1, 2, 3, 4].mean()"), 2.5, 1e-9)
	wantFloat(t, evalSrc(t, "[1, 2, 3, 4, 5].std()"), math.Sqrt2, 0.01)
	wantInt(t, evalSrc(t, "[5, 2, 9].max()"), 9)
}

func TestIndexOutOfRange(t *testing.T) {
	wantErrKind(t, "[1, 2][5]", ErrIndexOutOfRange)
	wantErrKind(t, "[1, 2][-3]", ErrIndexOutOfRange)
	wantErrKind(t, `[1, 2]["x"]`, ErrTypeMismatch)
}

func TestNegativeIndexing(t *testing.T) {
	wantInt(t, evalSrc(t, "[1, 2, 3][-1]"), 3)
	wantInt(t, evalSrc(t, "[1, 2, 3][-3]"), 1)
	wantBool(t, evalSrc(t, `"abc"[-1] == 'c'`), true)
	wantInt(t, evalSrc(t, "(4, 5, 6)[-2]"), 5)
	wantInt(t, evalSrc(t, "let a = [1, 2, 3]\na[-1] = 9\na[2]"), 9)
}

func TestTuples(t *testing.T) {
	wantInt(t, evalSrc(t, "(1, 2, 3).1"), 2)
	wantInt(t, evalSrc(t, "(9,).0"), 9)
	wantInt(t, evalSrc(t, "(1, 2).len()"), 2)
}

func TestObjects(t *testing.T) {
	wantInt(t, evalSrc(t, `{ a: 1, b: 2 }.a`), 1)
	wantInt(t, evalSrc(t, `let o = { a: 1 }
o.a = 5
o.a`), 5)
	wantInt(t, evalSrc(t, `let o = { x: 1, y: 2 }
o.len()`), 2)
	wantStr(t, evalSrc(t, `{ b: 1, a: 2 }.keys()[0]`), "b")
	wantBool(t, evalSrc(t, `{ a: 1 }.contains_key("a")`), true)
}

func TestRanges(t *testing.T) {
	wantInts(t, evalSrc(t, "(1..4).to_vec()"), 1, 2, 3)
	wantInts(t, evalSrc(t, "(1..=4).to_vec()"), 1, 2, 3, 4)
	wantInt(t, evalSrc(t, "(1..=10).len()"), 10)
	wantBool(t, evalSrc(t, "(1..5).contains(4)"), true)
	wantBool(t, evalSrc(t, "(1..5).contains(5)"), false)
	wantErrKind(t, "1.5..3", ErrTypeMismatch)
}

// --- errors ----------------------------------------------------------------

func TestDivisionByZero(t *testing.T) {
	wantErrKind(t, "5 / 0", ErrDivisionByZero)
	wantErrKind(t, "5 % 0", ErrDivisionByZero)
	wantFloat(t, evalSrc(t, "5.0 / 0.0"), math.Inf(1), 0)
}

func TestTypeMismatch(t *testing.T) {
	wantErrKind(t, `1 + "x"`, ErrTypeMismatch)
	wantErrKind(t, `true < 1`, ErrTypeMismatch)
	wantErrKind(t, `3(4)`, ErrTypeMismatch)
}

// --- option, result, try ---------------------------------------------------

func TestOptionResult(t *testing.T) {
	wantBool(t, evalSrc(t, "Some(3).is_some()"), true)
	wantBool(t, evalSrc(t, "None.is_none()"), true)
	wantInt(t, evalSrc(t, "Some(3).unwrap()"), 3)
	wantInt(t, evalSrc(t, "None.unwrap_or(7)"), 7)
	wantInt(t, evalSrc(t, "Ok(2).map(|x| x * 10).unwrap()"), 20)
	wantErrKind(t, "None.unwrap()", ErrNative)
}

func TestTryOperator(t *testing.T) {
	src := `fun half(n) { if n % 2 == 0 { Ok(n / 2) } else { Err("odd") } }
fun go() { let a = half(10)?
let b = half(a)?
Ok(a + b) }
go()`
	v := evalSrc(t, src)
	if v.Tag != TagVariant {
		t.Fatalf("want variant, got %s", FormatValue(v))
	}
	vo := v.Data.(*VariantObject)
	if vo.Name != "Err" {
		t.Fatalf("want Err, got %s", FormatValue(v))
	}
	wantStr(t, vo.Payload[0], "odd")
}

func TestTryUnwrapsOk(t *testing.T) {
	src := `fun go() { let a = Ok(4)?
Ok(a + 1) }
go().unwrap()`
	wantInt(t, evalSrc(t, src), 5)
}

func TestTryPropagatesAtTopLevel(t *testing.T) {
	_, err := RunSource(`Err("boom")?`)
	if err == nil {
		t.Fatal("want propagated error")
	}
	e := AsError(err)
	if e.Kind != ErrPropagated {
		t.Fatalf("want ErrPropagated, got %v", e.Kind)
	}
	if e.Payload.Tag != TagVariant {
		t.Fatalf("want variant payload, got %s", FormatValue(e.Payload))
	}
}

func TestTryOnNonVariant(t *testing.T) {
	wantErrKind(t, "5?", ErrTypeMismatch)
}

// --- declarations ----------------------------------------------------------

func TestStructDeclAndLiteral(t *testing.T) {
	src := `struct Point { x: Int, y: Int }
let p = Point { x: 3, y: 4 }
p.x + p.y`
	wantInt(t, evalSrc(t, src), 7)
}

func TestStructUnknownField(t *testing.T) {
	wantErrKind(t, "struct P { x: Int }\nP { z: 1 }", ErrTypeMismatch)
	wantErrKind(t, "Q { z: 1 }", ErrUnboundName)
}

func TestClassMethods(t *testing.T) {
	src := `class Counter {
  count: Int = 0
  fun increment(self) { self.count = self.count + 1 }
  fun get(self) { self.count }
}
let c = Counter::new()
c.increment()
c.increment()
c.get()`
	wantInt(t, evalSrc(t, src), 2)
}

func TestClassConstructor(t *testing.T) {
	src := `class Point {
  x: Int = 0
  y: Int = 0
  new(x, y) { self.x = x
self.y = y }
  fun norm2(self) { self.x * self.x + self.y * self.y }
}
Point::new(3, 4).norm2()`
	wantInt(t, evalSrc(t, src), 25)
}

func TestNamedConstructor(t *testing.T) {
	src := `class Temp {
  deg: Float = 0.0
  pub new freezing() { self.deg = 0.0 }
  fun degrees(self) { self.deg }
}
Temp::freezing().degrees()`
	wantFloat(t, evalSrc(t, src), 0.0, 0)
}

func TestMethodShadowsObjectBuiltin(t *testing.T) {
	// a declared method wins over the map builtin of the same name
	src := `class Box {
  items: Int = 0
  fun len(self) { 99 }
}
Box::new().len()`
	wantInt(t, evalSrc(t, src), 99)
}

func TestConstructorYieldsInstance(t *testing.T) {
	// the body's own value is discarded; the new instance comes back
	src := `class P {
  x: Int = 0
  new(x) { self.x = x
42 }
}
P::new(7).x`
	wantInt(t, evalSrc(t, src), 7)
	wantErrKind(t, "class Q {\n  new(a) { self.q = a }\n}\nQ::new()", ErrArity)
}

func TestStaticMethod(t *testing.T) {
	src := `class MathUtil {
  fun square(n) { n * n }
}
MathUtil::square(9)`
	wantInt(t, evalSrc(t, src), 81)
}

func TestEnumVariants(t *testing.T) {
	src := `enum Color { Red, Green, Blue }
match Color::Green { Red => 1, Green => 2, _ => 3 }`
	wantInt(t, evalSrc(t, src), 2)
}

func TestEnumPayload(t *testing.T) {
	src := `enum Shape { Circle(Float), Rect(Float, Float) }
fun area(s) { match s { Circle(r) => 3.14 * r * r, Rect(w, h) => w * h } }
area(Rect(3.0, 4.0))`
	wantFloat(t, evalSrc(t, src), 12.0, 1e-9)
}

func TestStructPatternMatch(t *testing.T) {
	src := `struct Point { x: Int, y: Int }
let p = Point { x: 1, y: 2 }
match p { Point { x: 1, .. } => "one", _ => "other" }`
	wantStr(t, evalSrc(t, src), "one")
}

// --- actors ----------------------------------------------------------------

func TestActorSendAndAsk(t *testing.T) {
	src := `actor Counter {
  count: Int = 0
  receive Increment() => { self.count = self.count + 1 }
  receive Get() => self.count
}
let a = Counter::new()
a <- Increment()
a <- Increment()
a <? Get()`
	wantInt(t, evalSrc(t, src), 2)
}

func TestActorSendReturnsUnit(t *testing.T) {
	src := `actor Echo {
  receive Ping() => 42
}
let e = Echo::new()
e <- Ping()`
	wantUnit(t, evalSrc(t, src))
}

func TestActorMessageWithArgs(t *testing.T) {
	src := `actor Acc {
  total: Int = 0
  receive Add(n) => { self.total = self.total + n }
  receive Total() => self.total
}
let a = Acc::new()
a <- Add(10)
a <- Add(32)
a <? Total()`
	wantInt(t, evalSrc(t, src), 42)
}

func TestActorUnknownHandler(t *testing.T) {
	src := `actor A { receive X() => 1 }
let a = A::new()
a <? Y()`
	wantErrKind(t, src, ErrTypeMismatch)
}

// --- builtins --------------------------------------------------------------

func TestMathBuiltins(t *testing.T) {
	wantFloat(t, evalSrc(t, "sqrt(2.0)"), math.Sqrt2, 1e-12)
	wantFloat(t, evalSrc(t, "sqrt(16)"), 4.0, 0)
	wantInt(t, evalSrc(t, "pow(2, 10)"), 1024)
	wantInt(t, evalSrc(t, "pow(7, 0)"), 1)
	wantFloat(t, evalSrc(t, "pow(2.0, 0.5)"), math.Sqrt2, 1e-12)
	wantInt(t, evalSrc(t, "abs(-9)"), 9)
	wantInt(t, evalSrc(t, "floor(3.7)"), 3)
	wantInt(t, evalSrc(t, "round(3.5)"), 4)
	wantInt(t, evalSrc(t, "min(3, 8)"), 3)
	wantInt(t, evalSrc(t, "max(3, 8)"), 8)
}

func TestTrigIdentity(t *testing.T) {
	for _, x := range []string{"0.3", "1.0", "2.7"} {
		src := "sin(" + x + ") * sin(" + x + ") + cos(" + x + ") * cos(" + x + ")"
		wantFloat(t, evalSrc(t, src), 1.0, 1e-10)
	}
}

func TestTypeOf(t *testing.T) {
	wantStr(t, evalSrc(t, "type_of(1)"), "integer")
	wantStr(t, evalSrc(t, "type_of(1.0)"), "float")
	wantStr(t, evalSrc(t, `type_of("x")`), "string")
	wantStr(t, evalSrc(t, "type_of([1])"), "array")
	wantStr(t, evalSrc(t, "type_of(|x| x)"), "function")
}

func TestAssert(t *testing.T) {
	wantUnit(t, evalSrc(t, "assert(1 == 1)"))
	wantErrKind(t, "assert(1 == 2)", ErrNative)
	wantErrKind(t, `assert(false, "custom reason")`, ErrNative)
	wantUnit(t, evalSrc(t, "assert_eq([1, 2], [1, 2])"))
	wantErrKind(t, "assert_eq(1, 2)", ErrNative)
}

func TestPrintln(t *testing.T) {
	s := NewSession()
	var out strings.Builder
	s.Interp().Out = &out
	if _, err := s.Eval(`println("hi", 1 + 1)`); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hi 2\n" {
		t.Fatalf("println wrote %q", out.String())
	}
}

func TestDataFrame(t *testing.T) {
	src := `let df = DataFrame({ v: [1, 2, 3, 4, 5] })
df.std()`
	wantFloat(t, evalSrc(t, src), 1.414, 0.01)
	wantInt(t, evalSrc(t, `DataFrame({ a: [1, 2, 3] }).rows()`), 3)
	wantInts(t, evalSrc(t, `DataFrame({ a: [1, 2], b: [3, 4] })["b"]`), 3, 4)
}

// --- session persistence ---------------------------------------------------

func TestSessionPersistence(t *testing.T) {
	s := NewSession()
	if _, err := s.Eval("let x = 10"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Eval("fun double(n) { n * 2 }"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Eval("double(x) + 1")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 21)
}

func TestTopLevelReturnEndsProgram(t *testing.T) {
	wantInt(t, evalSrc(t, "return 7\n1 + 1"), 7)
}

func TestInterrupt(t *testing.T) {
	s := NewSession()
	s.Interp().Interrupt()
	// the flag resets at program start, so this still runs
	v, err := s.Eval("1 + 1")
	if err != nil {
		t.Fatal(err)
	}
	wantInt(t, v, 2)
}
