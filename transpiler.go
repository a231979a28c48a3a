// transpiler.go: Rust source emission.
//
// The emitter covers the straight-line subset of the language: functions,
// classes, enums, scalars, strings, arrays, control flow. Parameter types are
// inferred from how the body uses them: call position means a callable type,
// arithmetic means i64, anything else defaults to String. Top-level
// statements collect into a synthesized fn main, and the program's final
// expression is printed so the compiled artifact is observable.
package ruchy

import (
	"fmt"
	"strings"
)

// Transpile parses src and emits Rust source preserving its semantics.
func Transpile(src string) (string, error) {
	uses, body := splitUseLines(src)
	prog, err := Parse(body)
	if err != nil {
		return "", AsError(err).WithSource(src)
	}
	t := &transpiler{
		ownedVars:   map[string]bool{},
		ownedFields: map[string]bool{},
		paramTypes:  map[string]string{},
	}
	return t.program(uses, prog)
}

// splitUseLines collects leading `use` lines so import groups survive the
// round trip; the parser never sees them.
func splitUseLines(src string) ([]string, string) {
	var uses []string
	var rest []string
	header := true
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if header && strings.HasPrefix(trimmed, "use ") {
			uses = append(uses, trimmed)
			rest = append(rest, "")
			continue
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, "//") {
			header = false
		}
		rest = append(rest, line)
	}
	return uses, strings.Join(rest, "\n")
}

// simplifyUse collapses single-element groups: use a::{B}; becomes use a::B;
func simplifyUse(u string) string {
	open := strings.Index(u, "{")
	end := strings.Index(u, "}")
	if open < 0 || end < open {
		return u
	}
	inner := strings.TrimSpace(u[open+1 : end])
	if inner != "" && !strings.Contains(inner, ",") {
		return u[:open] + inner + u[end+1:]
	}
	return u
}

type transpiler struct {
	b      strings.Builder
	indent int

	ownedVars   map[string]bool // let-bound names holding owned String
	ownedFields map[string]bool // struct fields of owned-string type
	paramTypes  map[string]string
}

func (t *transpiler) line(format string, args ...any) {
	t.b.WriteString(strings.Repeat("    ", t.indent))
	fmt.Fprintf(&t.b, format, args...)
	t.b.WriteByte('\n')
}

func (t *transpiler) program(uses []string, prog *Block) (string, error) {
	for _, u := range uses {
		t.line("%s", simplifyUse(u))
	}
	if len(uses) > 0 {
		t.line("")
	}

	var mainStmts []Expr
	for _, e := range prog.Exprs {
		switch n := e.(type) {
		case *FunDecl:
			if err := t.emitFn(n); err != nil {
				return "", err
			}
			t.line("")
		case *ClassDecl:
			if err := t.emitClass(n); err != nil {
				return "", err
			}
			t.line("")
		case *StructDecl:
			t.emitStruct(n)
			t.line("")
		case *EnumDecl:
			t.emitEnum(n)
			t.line("")
		case *ActorDecl:
			return "", errAt(ErrTypeMismatch, n.Span, "cannot transpile actor declarations")
		default:
			mainStmts = append(mainStmts, e)
		}
	}

	t.line("fn main() {")
	t.indent++
	for i, e := range mainStmts {
		last := i == len(mainStmts)-1
		if last && producesValue(e) {
			s, err := t.expr(e)
			if err != nil {
				return "", err
			}
			t.line("println!(\"{}\", %s);", s)
			continue
		}
		if err := t.stmt(e); err != nil {
			return "", err
		}
	}
	t.indent--
	t.line("}")
	return t.b.String(), nil
}

// producesValue reports whether an expression yields something worth printing
// as the program result. Bindings and loops lower to statements.
func producesValue(e Expr) bool {
	switch e.(type) {
	case *Let, *Assign, *While, *For, *FunDecl, *ClassDecl, *StructDecl, *EnumDecl:
		return false
	}
	return true
}

// ----- items -----

func (t *transpiler) emitFn(n *FunDecl) error {
	types := t.inferParams(n.Params, n.Body)
	for _, p := range n.Params {
		t.paramTypes[p.Name] = types[p.Name]
	}
	var parts []string
	for _, p := range n.Params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, types[p.Name]))
	}
	ret := t.inferReturn(n)
	sig := fmt.Sprintf("fn %s(%s)", n.Name, strings.Join(parts, ", "))
	if ret != "" {
		sig += " -> " + ret
	}
	t.line("%s {", sig)
	t.indent++
	if err := t.body(n.Body); err != nil {
		return err
	}
	t.indent--
	t.line("}")
	for _, p := range n.Params {
		delete(t.paramTypes, p.Name)
	}
	return nil
}

func (t *transpiler) emitStruct(n *StructDecl) {
	t.line("struct %s {", n.Name)
	t.indent++
	for _, f := range n.Fields {
		ty := t.fieldType(f)
		if ty == "String" {
			t.ownedFields[f.Name] = true
		}
		t.line("%s: %s,", f.Name, ty)
	}
	t.indent--
	t.line("}")
}

func (t *transpiler) emitEnum(n *EnumDecl) {
	t.line("enum %s {", n.Name)
	t.indent++
	for _, v := range n.Variants {
		if v.Arity == 0 {
			t.line("%s,", v.Name)
		} else {
			payload := strings.TrimSuffix(strings.Repeat("i64, ", v.Arity), ", ")
			t.line("%s(%s),", v.Name, payload)
		}
	}
	t.indent--
	t.line("}")
}

func (t *transpiler) emitClass(n *ClassDecl) error {
	t.emitStruct(&StructDecl{Name: n.Name, Fields: n.Fields, Span: n.Span})
	t.line("")
	t.line("impl %s {", n.Name)
	t.indent++
	for i := range n.Ctors {
		if err := t.emitCtor(n, &n.Ctors[i]); err != nil {
			return err
		}
	}
	if len(n.Ctors) == 0 {
		if err := t.emitDefaultCtor(n); err != nil {
			return err
		}
	}
	for i := range n.Methods {
		if err := t.emitMethod(n, &n.Methods[i]); err != nil {
			return err
		}
	}
	t.indent--
	t.line("}")
	return nil
}

// emitCtor lowers a constructor to an associated function returning a struct
// literal. Assignments to self fields become literal fields; everything else
// in the body runs first.
func (t *transpiler) emitCtor(cls *ClassDecl, ct *CtorDef) error {
	var parts []string
	types := t.inferParams(ct.Params, ct.Body)
	for _, p := range ct.Params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, types[p.Name]))
	}
	t.line("pub fn %s(%s) -> Self {", ct.Name, strings.Join(parts, ", "))
	t.indent++

	inits := map[string]string{}
	var rest []Expr
	exprs := []Expr{ct.Body}
	if blk, ok := ct.Body.(*Block); ok {
		exprs = blk.Exprs
	}
	for _, e := range exprs {
		if asg, ok := e.(*Assign); ok {
			if fa, ok := asg.Target.(*FieldAccess); ok {
				if id, ok := fa.Recv.(*Ident); ok && id.Name == "self" {
					s, err := t.expr(asg.Value)
					if err != nil {
						return err
					}
					inits[fa.Name] = s
					continue
				}
			}
		}
		rest = append(rest, e)
	}
	for _, e := range rest {
		if err := t.stmt(e); err != nil {
			return err
		}
	}
	var fields []string
	for _, f := range cls.Fields {
		if s, ok := inits[f.Name]; ok {
			fields = append(fields, fmt.Sprintf("%s: %s", f.Name, s))
		} else if f.Default != nil {
			s, err := t.expr(f.Default)
			if err != nil {
				return err
			}
			fields = append(fields, fmt.Sprintf("%s: %s", f.Name, s))
		}
	}
	t.line("Self { %s }", strings.Join(fields, ", "))
	t.indent--
	t.line("}")
	return nil
}

func (t *transpiler) emitDefaultCtor(cls *ClassDecl) error {
	var parts, fields []string
	for _, f := range cls.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Name, t.fieldType(f)))
		fields = append(fields, f.Name)
	}
	t.line("pub fn new(%s) -> Self {", strings.Join(parts, ", "))
	t.indent++
	t.line("Self { %s }", strings.Join(fields, ", "))
	t.indent--
	t.line("}")
	return nil
}

func (t *transpiler) emitMethod(cls *ClassDecl, m *MethodDef) error {
	types := t.inferParams(m.Params, m.Body)
	parts := []string{"&self"}
	if m.Static {
		parts = nil
	}
	for _, p := range m.Params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, types[p.Name]))
	}
	ret := t.inferReturn(&FunDecl{Name: m.Name, Params: m.Params, Body: m.Body})
	sig := fmt.Sprintf("pub fn %s(%s)", m.Name, strings.Join(parts, ", "))
	if ret != "" {
		sig += " -> " + ret
	}
	t.line("%s {", sig)
	t.indent++
	if err := t.body(m.Body); err != nil {
		return err
	}
	t.indent--
	t.line("}")
	return nil
}

func (t *transpiler) fieldType(f FieldDef) string {
	switch {
	case f.Type != "":
		return rustType(f.Type)
	case f.Default != nil:
		if _, ok := f.Default.(*StringLit); ok {
			return "String"
		}
		if _, ok := f.Default.(*FloatLit); ok {
			return "f64"
		}
	}
	return "i64"
}

func rustType(ty string) string {
	switch ty {
	case "String", "str":
		return "String"
	case "Float", "f64":
		return "f64"
	case "Bool", "bool":
		return "bool"
	default:
		return "i64"
	}
}

// ----- inference -----

// inferParams types each parameter from body evidence: an identifier in call
// position is callable, arithmetic context means i64, otherwise String.
func (t *transpiler) inferParams(params []Param, body Expr) map[string]string {
	types := map[string]string{}
	for _, p := range params {
		if p.Type != "" {
			types[p.Name] = rustType(p.Type)
		}
	}
	walkExprs(body, func(e Expr) {
		switch n := e.(type) {
		case *Call:
			if id, ok := n.Callee.(*Ident); ok {
				if _, mine := types[id.Name]; !mine && paramNamed(params, id.Name) {
					types[id.Name] = "impl Fn(i64) -> i64"
				}
			}
		case *Binary:
			if isArith(n.Op) {
				for _, side := range []Expr{n.Left, n.Right} {
					if id, ok := side.(*Ident); ok && paramNamed(params, id.Name) {
						if types[id.Name] == "" {
							types[id.Name] = "i64"
						}
					}
				}
			}
		}
	})
	for _, p := range params {
		if types[p.Name] == "" {
			types[p.Name] = "String"
		}
	}
	return types
}

// walkExprs visits e and every reachable sub-expression, parents first.
func walkExprs(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *Block:
		for _, s := range n.Exprs {
			walkExprs(s, visit)
		}
	case *Binary:
		walkExprs(n.Left, visit)
		walkExprs(n.Right, visit)
	case *Unary:
		walkExprs(n.Operand, visit)
	case *Let:
		walkExprs(n.Value, visit)
	case *Assign:
		walkExprs(n.Target, visit)
		walkExprs(n.Value, visit)
	case *If:
		walkExprs(n.Cond, visit)
		walkExprs(n.Then, visit)
		walkExprs(n.Else, visit)
	case *Match:
		walkExprs(n.Scrutinee, visit)
		for i := range n.Arms {
			walkExprs(n.Arms[i].Guard, visit)
			walkExprs(n.Arms[i].Body, visit)
		}
	case *For:
		walkExprs(n.Iterable, visit)
		walkExprs(n.Body, visit)
	case *While:
		walkExprs(n.Cond, visit)
		walkExprs(n.Body, visit)
	case *Break:
		walkExprs(n.Value, visit)
	case *Return:
		walkExprs(n.Value, visit)
	case *Lambda:
		walkExprs(n.Body, visit)
	case *FunDecl:
		walkExprs(n.Body, visit)
	case *Call:
		walkExprs(n.Callee, visit)
		for _, a := range n.Args {
			walkExprs(a, visit)
		}
	case *MethodCall:
		walkExprs(n.Recv, visit)
		for _, a := range n.Args {
			walkExprs(a, visit)
		}
	case *FieldAccess:
		walkExprs(n.Recv, visit)
	case *Index:
		walkExprs(n.Recv, visit)
		walkExprs(n.Idx, visit)
	case *List:
		for _, el := range n.Elems {
			walkExprs(el, visit)
		}
	case *TupleLit:
		for _, el := range n.Elems {
			walkExprs(el, visit)
		}
	case *ObjectLit:
		for _, f := range n.Fields {
			walkExprs(f.Value, visit)
		}
	case *RangeLit:
		walkExprs(n.Start, visit)
		walkExprs(n.End, visit)
	case *StructLit:
		for _, f := range n.Fields {
			walkExprs(f.Value, visit)
		}
	case *ActorSend:
		walkExprs(n.Actor, visit)
		walkExprs(n.Msg, visit)
	case *ActorQuery:
		walkExprs(n.Actor, visit)
		walkExprs(n.Msg, visit)
	case *Try:
		walkExprs(n.Operand, visit)
	}
}

func paramNamed(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func isArith(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%":
		return true
	}
	return false
}

func (t *transpiler) inferReturn(n *FunDecl) string {
	if n.RetType != "" {
		return rustType(n.RetType)
	}
	last := lastExpr(n.Body)
	if last == nil {
		return ""
	}
	switch e := last.(type) {
	case *StringLit:
		return "String"
	case *BoolLit:
		return "bool"
	case *FloatLit:
		return "f64"
	case *IntLit, *Binary, *Ident, *Call, *Index, *If:
		if isStringy(last) {
			return "String"
		}
		return "i64"
	case *Match:
		for _, arm := range e.Arms {
			if isStringy(lastExpr(arm.Body)) {
				return "String"
			}
		}
		return "i64"
	case *Let, *Assign, *While, *For:
		return ""
	}
	return "i64"
}

func lastExpr(e Expr) Expr {
	if blk, ok := e.(*Block); ok {
		if len(blk.Exprs) == 0 {
			return nil
		}
		return lastExpr(blk.Exprs[len(blk.Exprs)-1])
	}
	return e
}

// isStringy reports whether an expression is string-valued on its face.
func isStringy(e Expr) bool {
	switch n := e.(type) {
	case *StringLit:
		return true
	case *Binary:
		return n.Op == "+" && (isStringy(n.Left) || isStringy(n.Right))
	case *MethodCall:
		return n.Name == "to_string" || n.Name == "to_upper" || n.Name == "to_lower" || n.Name == "trim"
	}
	return false
}

// ----- statements and expressions -----

func (t *transpiler) body(e Expr) error {
	exprs := []Expr{e}
	if blk, ok := e.(*Block); ok {
		exprs = blk.Exprs
	}
	for i, s := range exprs {
		if i == len(exprs)-1 && producesValue(s) {
			out, err := t.expr(s)
			if err != nil {
				return err
			}
			t.line("%s", out)
			return nil
		}
		if err := t.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *transpiler) stmt(e Expr) error {
	switch n := e.(type) {
	case *Let:
		return t.letStmt(n)
	case *Assign:
		target, err := t.expr(n.Target)
		if err != nil {
			return err
		}
		value, err := t.expr(n.Value)
		if err != nil {
			return err
		}
		t.line("%s = %s;", target, value)
		return nil
	case *While:
		cond, err := t.expr(n.Cond)
		if err != nil {
			return err
		}
		t.line("while %s {", cond)
		t.indent++
		if err := t.bodyStmts(n.Body); err != nil {
			return err
		}
		t.indent--
		t.line("}")
		return nil
	case *For:
		pat := "_item"
		if p, ok := n.Pattern.(*PatIdent); ok {
			pat = p.Name
		}
		iter, err := t.expr(n.Iterable)
		if err != nil {
			return err
		}
		t.line("for %s in %s {", pat, iter)
		t.indent++
		if err := t.bodyStmts(n.Body); err != nil {
			return err
		}
		t.indent--
		t.line("}")
		return nil
	}
	out, err := t.expr(e)
	if err != nil {
		return err
	}
	t.line("%s;", out)
	return nil
}

func (t *transpiler) bodyStmts(e Expr) error {
	exprs := []Expr{e}
	if blk, ok := e.(*Block); ok {
		exprs = blk.Exprs
	}
	for _, s := range exprs {
		if err := t.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

// letStmt keeps a top-level or block let as a real Rust let. String-literal
// initializers become owned strings so later concatenations borrow correctly.
func (t *transpiler) letStmt(n *Let) error {
	if n.Pattern != nil {
		pat, err := t.pattern(n.Pattern)
		if err != nil {
			return err
		}
		value, err := t.expr(n.Value)
		if err != nil {
			return err
		}
		t.line("let %s = %s;", pat, value)
		return nil
	}
	mut := ""
	if n.Mutable {
		mut = "mut "
	}
	if s, ok := n.Value.(*StringLit); ok {
		t.ownedVars[n.Name] = true
		t.line("let %s%s = %q.to_string();", mut, n.Name, s.Value)
		return nil
	}
	value, err := t.expr(n.Value)
	if err != nil {
		return err
	}
	if isStringy(n.Value) {
		t.ownedVars[n.Name] = true
	}
	t.line("let %s%s = %s;", mut, n.Name, value)
	return nil
}

func (t *transpiler) expr(e Expr) (string, error) {
	switch n := e.(type) {
	case *IntLit:
		return fmt.Sprintf("%d", n.Value), nil
	case *FloatLit:
		s := fmt.Sprintf("%g", n.Value)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	case *BoolLit:
		return fmt.Sprintf("%t", n.Value), nil
	case *StringLit:
		return fmt.Sprintf("%q", n.Value), nil
	case *CharLit:
		return fmt.Sprintf("%q", string(n.Value)), nil
	case *NilLit:
		return "None", nil
	case *UnitLit:
		return "()", nil
	case *Ident:
		return n.Name, nil
	case *Path:
		return n.TypeName + "::" + n.Name, nil
	case *Unary:
		s, err := t.expr(n.Operand)
		if err != nil {
			return "", err
		}
		return n.Op + s, nil
	case *Binary:
		return t.binaryExpr(n)
	case *Call:
		return t.callExpr(n)
	case *MethodCall:
		recv, err := t.expr(n.Recv)
		if err != nil {
			return "", err
		}
		args, err := t.exprList(n.Args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.%s(%s)", recv, n.Name, args), nil
	case *FieldAccess:
		recv, err := t.expr(n.Recv)
		if err != nil {
			return "", err
		}
		return recv + "." + n.Name, nil
	case *Index:
		recv, err := t.expr(n.Recv)
		if err != nil {
			return "", err
		}
		idx, err := t.expr(n.Idx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%s as usize]", recv, idx), nil
	case *List:
		elems, err := t.exprList(n.Elems)
		if err != nil {
			return "", err
		}
		return "vec![" + elems + "]", nil
	case *TupleLit:
		elems, err := t.exprList(n.Elems)
		if err != nil {
			return "", err
		}
		return "(" + elems + ")", nil
	case *RangeLit:
		start, err := t.expr(n.Start)
		if err != nil {
			return "", err
		}
		end, err := t.expr(n.End)
		if err != nil {
			return "", err
		}
		op := ".."
		if n.Inclusive {
			op = "..="
		}
		return start + op + end, nil
	case *StructLit:
		var fields []string
		for _, f := range n.Fields {
			v, err := t.expr(f.Value)
			if err != nil {
				return "", err
			}
			fields = append(fields, fmt.Sprintf("%s: %s", f.Key, v))
		}
		return fmt.Sprintf("%s { %s }", n.Name, strings.Join(fields, ", ")), nil
	case *Lambda:
		var names []string
		for _, p := range n.Params {
			names = append(names, p.Name)
		}
		body, err := t.expr(lastOrSelf(n.Body))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("|%s| %s", strings.Join(names, ", "), body), nil
	case *If:
		return t.ifExpr(n)
	case *Match:
		return t.matchExpr(n)
	case *Block:
		if len(n.Exprs) == 1 {
			return t.expr(n.Exprs[0])
		}
		var sub transpiler
		sub.ownedVars = t.ownedVars
		sub.ownedFields = t.ownedFields
		sub.paramTypes = t.paramTypes
		sub.indent = t.indent + 1
		if err := sub.body(n); err != nil {
			return "", err
		}
		return "{\n" + sub.b.String() + strings.Repeat("    ", t.indent) + "}", nil
	case *Try:
		s, err := t.expr(n.Operand)
		if err != nil {
			return "", err
		}
		return s + "?", nil
	}
	return "", errAt(ErrTypeMismatch, e.Pos(), "cannot transpile this expression")
}

func lastOrSelf(e Expr) Expr {
	if l := lastExpr(e); l != nil {
		return l
	}
	return e
}

func (t *transpiler) exprList(exprs []Expr) (string, error) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := t.expr(e)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

// binaryExpr inserts the automatic borrow: a borrowed-string left operand
// concatenated with an owned-string variable or field borrows the right side.
func (t *transpiler) binaryExpr(n *Binary) (string, error) {
	left, err := t.expr(n.Left)
	if err != nil {
		return "", err
	}
	right, err := t.expr(n.Right)
	if err != nil {
		return "", err
	}
	if n.Op == "+" && t.borrowedStr(n.Left) && t.ownedRef(n.Right) {
		right = "&" + right
	}
	return fmt.Sprintf("%s %s %s", left, n.Op, right), nil
}

// borrowedStr reports whether the expression evaluates to &str: a literal, or
// a concatenation headed by one.
func (t *transpiler) borrowedStr(e Expr) bool {
	switch n := e.(type) {
	case *StringLit:
		return true
	case *Binary:
		return n.Op == "+" && t.borrowedStr(n.Left)
	}
	return false
}

// ownedRef reports whether the expression references an owned String: a
// variable bound to one, a String-typed parameter, or an owned struct field.
func (t *transpiler) ownedRef(e Expr) bool {
	switch n := e.(type) {
	case *Ident:
		return t.ownedVars[n.Name] || t.paramTypes[n.Name] == "String"
	case *FieldAccess:
		return t.ownedFields[n.Name]
	}
	return false
}

func (t *transpiler) callExpr(n *Call) (string, error) {
	if id, ok := n.Callee.(*Ident); ok && (id.Name == "println" || id.Name == "print") {
		args, err := t.exprList(n.Args)
		if err != nil {
			return "", err
		}
		holes := strings.TrimSuffix(strings.Repeat("{} ", len(n.Args)), " ")
		if id.Name == "print" {
			return fmt.Sprintf("print!(%q, %s)", holes, args), nil
		}
		return fmt.Sprintf("println!(%q, %s)", holes, args), nil
	}
	callee, err := t.expr(n.Callee)
	if err != nil {
		return "", err
	}
	args, err := t.exprList(n.Args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", callee, args), nil
}

func (t *transpiler) ifExpr(n *If) (string, error) {
	cond, err := t.expr(n.Cond)
	if err != nil {
		return "", err
	}
	then, err := t.expr(lastOrSelf(n.Then))
	if err != nil {
		return "", err
	}
	if n.Else == nil {
		return fmt.Sprintf("if %s { %s }", cond, then), nil
	}
	els, err := t.expr(lastOrSelf(n.Else))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("if %s { %s } else { %s }", cond, then, els), nil
}

// matchExpr emits a match. When any arm is a string literal every string arm
// converts to an owned String so the arms agree on one type.
func (t *transpiler) matchExpr(n *Match) (string, error) {
	scrut, err := t.expr(n.Scrutinee)
	if err != nil {
		return "", err
	}
	stringArms := false
	for _, arm := range n.Arms {
		if _, ok := lastOrSelf(arm.Body).(*StringLit); ok {
			stringArms = true
			break
		}
	}
	var arms []string
	for _, arm := range n.Arms {
		pat, err := t.pattern(arm.Pattern)
		if err != nil {
			return "", err
		}
		body, err := t.expr(lastOrSelf(arm.Body))
		if err != nil {
			return "", err
		}
		if stringArms {
			if _, ok := lastOrSelf(arm.Body).(*StringLit); ok {
				body += ".to_string()"
			}
		}
		if arm.Guard != nil {
			g, err := t.expr(arm.Guard)
			if err != nil {
				return "", err
			}
			pat += " if " + g
		}
		arms = append(arms, fmt.Sprintf("%s => %s", pat, body))
	}
	return fmt.Sprintf("match %s { %s }", scrut, strings.Join(arms, ", ")), nil
}

func (t *transpiler) pattern(p Pattern) (string, error) {
	switch n := p.(type) {
	case *PatWildcard:
		return "_", nil
	case *PatIdent:
		return n.Name, nil
	case *PatLiteral:
		switch n.Lit.Tag {
		case TagString:
			return fmt.Sprintf("%q", n.Lit.Data.(string)), nil
		default:
			return FormatValue(n.Lit), nil
		}
	case *PatTuple:
		parts := make([]string, len(n.Elems))
		for i, el := range n.Elems {
			s, err := t.pattern(el)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	case *PatCtor:
		if len(n.Args) == 0 {
			return patCtorName(n), nil
		}
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			s, err := t.pattern(a)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return patCtorName(n) + "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", errAt(ErrTypeMismatch, p.Pos(), "cannot transpile this pattern")
}

func patCtorName(n *PatCtor) string {
	if n.TypeName != "" {
		return n.TypeName + "::" + n.Name
	}
	return n.Name
}
