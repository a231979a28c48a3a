package ruchy

import "testing"

func parseOne(t *testing.T, src string) Expr {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	if len(prog.Exprs) != 1 {
		t.Fatalf("parse %q: want 1 statement, got %d", src, len(prog.Exprs))
	}
	return prog.Exprs[0]
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 groups as 1 + (2 * 3)
	b, ok := parseOne(t, "1 + 2 * 3").(*Binary)
	if !ok || b.Op != "+" {
		t.Fatalf("want top-level +, got %#v", b)
	}
	r, ok := b.Right.(*Binary)
	if !ok || r.Op != "*" {
		t.Fatalf("want * on the right, got %#v", b.Right)
	}

	// comparison binds looser than arithmetic
	c, ok := parseOne(t, "1 + 2 < 3 * 4").(*Binary)
	if !ok || c.Op != "<" {
		t.Fatalf("want top-level <, got %#v", c)
	}

	// && binds tighter than ||
	o, ok := parseOne(t, "a || b && c").(*Binary)
	if !ok || o.Op != "||" {
		t.Fatalf("want top-level ||, got %#v", o)
	}

	// ** binds tighter than * and groups to the right
	p, ok := parseOne(t, "2 * 3 ** 4").(*Binary)
	if !ok || p.Op != "*" {
		t.Fatalf("want top-level *, got %#v", p)
	}
	q := parseOne(t, "2 ** 3 ** 4").(*Binary)
	if q.Op != "**" {
		t.Fatalf("want top-level **, got %#v", q)
	}
	qr, ok := q.Right.(*Binary)
	if !ok || qr.Op != "**" {
		t.Fatalf("** must group to the right, got %#v", q.Right)
	}
}

func TestParseBinarySpanPointsAtOperator(t *testing.T) {
	b := parseOne(t, "long_name / 2").(*Binary)
	if b.Span.Col != 11 {
		t.Fatalf("span col: want 11 (the /), got %d", b.Span.Col)
	}
	if b.Span.Start != b.Left.Pos().Start {
		t.Fatalf("span start must still cover the left operand: %d vs %d",
			b.Span.Start, b.Left.Pos().Start)
	}
}

func TestParseNewlineEndsExpression(t *testing.T) {
	for _, tt := range []struct {
		src  string
		want int
	}{
		{"let a = 1\n(2, 3)", 2},
		{"let a = f\n[1][0]", 2},
		{"let mut n = 0\n|| n", 2},
		{"let a = f(1,\n2)", 1}, // inside parens the newline stays insignificant
	} {
		prog, err := Parse(tt.src)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.src, err)
		}
		if len(prog.Exprs) != tt.want {
			t.Fatalf("parse %q: want %d statements, got %d", tt.src, tt.want, len(prog.Exprs))
		}
	}
}

func TestParseStatementSeparators(t *testing.T) {
	for _, src := range []string{"let x = 1; x + 1", "let x = 1\nx + 1", "let x = 1;\nx + 1"} {
		prog, err := Parse(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if len(prog.Exprs) != 2 {
			t.Fatalf("parse %q: want 2 statements, got %d", src, len(prog.Exprs))
		}
	}
}

func TestParseLetForms(t *testing.T) {
	l := parseOne(t, "let mut x = 1").(*Let)
	if l.Name != "x" || !l.Mutable {
		t.Fatalf("let mut: %#v", l)
	}
	l = parseOne(t, "let (a, b) = p").(*Let)
	if l.Pattern == nil {
		t.Fatalf("destructuring let lost its pattern: %#v", l)
	}
	l = parseOne(t, "let x: Int = 1").(*Let)
	if l.Name != "x" {
		t.Fatalf("annotated let: %#v", l)
	}
}

func TestParseCompoundAssign(t *testing.T) {
	// x += 1 desugars to x = x + 1
	a := parseOne(t, "x += 1").(*Assign)
	b, ok := a.Value.(*Binary)
	if !ok || b.Op != "+" {
		t.Fatalf("compound assign did not desugar: %#v", a.Value)
	}
}

func TestParseLambdaForms(t *testing.T) {
	lam := parseOne(t, "|x| x + 1").(*Lambda)
	if len(lam.Params) != 1 || lam.Params[0].Name != "x" {
		t.Fatalf("pipe lambda params: %#v", lam.Params)
	}
	lam = parseOne(t, "|| 42").(*Lambda)
	if len(lam.Params) != 0 {
		t.Fatalf("empty lambda params: %#v", lam.Params)
	}
	lam = parseOne(t, "fun(a, b) { a + b }").(*Lambda)
	if len(lam.Params) != 2 {
		t.Fatalf("fun lambda params: %#v", lam.Params)
	}
}

func TestParseFunDecl(t *testing.T) {
	fd := parseOne(t, "fun f(a, b = 2) -> Int { a + b }").(*FunDecl)
	if fd.Name != "f" || len(fd.Params) != 2 {
		t.Fatalf("fun decl: %#v", fd)
	}
	if fd.Params[1].Default == nil {
		t.Fatal("default parameter value lost")
	}
}

func TestParseStructLitVsBlock(t *testing.T) {
	// uppercase name followed by field: value is a struct literal
	if _, ok := parseOne(t, "Point { x: 1, y: 2 }").(*StructLit); !ok {
		t.Fatal("want struct literal")
	}
	// in an if condition the brace opens the body instead
	n := parseOne(t, "if x { 1 }").(*If)
	if _, ok := n.Cond.(*Ident); !ok {
		t.Fatalf("if condition swallowed the block: %#v", n.Cond)
	}
	// a lone brace with key: value pairs is an object literal
	if _, ok := parseOne(t, "{ a: 1 }").(*ObjectLit); !ok {
		t.Fatal("want object literal")
	}
	// an empty or statement brace is a block
	if _, ok := parseOne(t, "{ 1 + 1 }").(*Block); !ok {
		t.Fatal("want block")
	}
}

func TestParseRanges(t *testing.T) {
	r := parseOne(t, "1..5").(*RangeLit)
	if r.Inclusive {
		t.Fatal("1..5 must be exclusive")
	}
	r = parseOne(t, "1..=5").(*RangeLit)
	if !r.Inclusive {
		t.Fatal("1..=5 must be inclusive")
	}
}

func TestParseActorOps(t *testing.T) {
	if _, ok := parseOne(t, "a <- Ping()").(*ActorSend); !ok {
		t.Fatal("want actor send")
	}
	if _, ok := parseOne(t, "a <? Get()").(*ActorQuery); !ok {
		t.Fatal("want actor query")
	}
}

func TestParseTryPostfix(t *testing.T) {
	n := parseOne(t, "f(x)?").(*Try)
	if _, ok := n.Operand.(*Call); !ok {
		t.Fatalf("try operand: %#v", n.Operand)
	}
}

func TestParseMethodChain(t *testing.T) {
	m := parseOne(t, "xs.map(f).filter(g)").(*MethodCall)
	if m.Name != "filter" {
		t.Fatalf("outer method: %q", m.Name)
	}
	inner, ok := m.Recv.(*MethodCall)
	if !ok || inner.Name != "map" {
		t.Fatalf("inner method: %#v", m.Recv)
	}
}

func TestParsePathExpr(t *testing.T) {
	p := parseOne(t, "Color::Red").(*Path)
	if p.TypeName != "Color" || p.Name != "Red" {
		t.Fatalf("path: %#v", p)
	}
}

func TestParseClassDecl(t *testing.T) {
	src := `class Point {
  x: Int = 0
  new(x) { self.x = x }
  pub new origin() { self.x = 0 }
  fun get(self) { self.x }
  fun zero() { 0 }
}`
	cd := parseOne(t, src).(*ClassDecl)
	if len(cd.Fields) != 1 || cd.Fields[0].Name != "x" {
		t.Fatalf("fields: %#v", cd.Fields)
	}
	if len(cd.Ctors) != 2 {
		t.Fatalf("ctors: %#v", cd.Ctors)
	}
	if len(cd.Methods) != 2 {
		t.Fatalf("methods: %#v", cd.Methods)
	}
	var static, instance bool
	for _, m := range cd.Methods {
		if m.Static {
			static = true
		} else {
			instance = true
		}
	}
	if !static || !instance {
		t.Fatal("self parameter must decide static vs instance")
	}
}

func TestParseEnumDecl(t *testing.T) {
	ed := parseOne(t, "enum Shape { Circle(Float), Dot }").(*EnumDecl)
	if len(ed.Variants) != 2 {
		t.Fatalf("variants: %#v", ed.Variants)
	}
	if ed.Variants[0].Arity != 1 || ed.Variants[1].Arity != 0 {
		t.Fatalf("variant arities: %#v", ed.Variants)
	}
}

func TestParseActorDecl(t *testing.T) {
	src := `actor Counter {
  count: Int = 0
  receive Increment() => { self.count = self.count + 1 }
  receive Get() => self.count
}`
	ad := parseOne(t, src).(*ActorDecl)
	if len(ad.Handlers) != 2 {
		t.Fatalf("handlers: %#v", ad.Handlers)
	}
	if ad.Handlers[0].Message != "Increment" || ad.Handlers[1].Message != "Get" {
		t.Fatalf("handler names: %#v", ad.Handlers)
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"let = 1", "fun (", "1 +* 2", "match x", "a <-"} {
		_, err := Parse(src)
		if err == nil {
			t.Fatalf("want parse error for %q", src)
		}
		if AsError(err).Kind != ErrParse {
			t.Fatalf("want ErrParse for %q, got %v", src, err)
		}
	}
}

func TestParseInteractiveIncomplete(t *testing.T) {
	incomplete := []string{
		"fun f(a) {",
		"if x {",
		"[1, 2,",
		"(1 +",
		"match x {",
		"let o = {",
	}
	for _, src := range incomplete {
		_, err := ParseInteractive(src)
		if err == nil {
			t.Fatalf("want error for %q", src)
		}
		if !IsIncomplete(err) {
			t.Fatalf("%q should read as incomplete, got %v", src, err)
		}
	}

	complete := []string{")", "1 +* 2", "let = 1"}
	for _, src := range complete {
		_, err := ParseInteractive(src)
		if err == nil {
			t.Fatalf("want error for %q", src)
		}
		if IsIncomplete(err) {
			t.Fatalf("%q is not repairable by more input", src)
		}
	}

	// the non-interactive parser never reports incompleteness
	_, err := Parse("if x {")
	if err == nil || IsIncomplete(err) {
		t.Fatalf("batch parse marked incomplete: %v", err)
	}
}
