// ast.go: the AST consumed from the parser by all three backends.
//
// Every node carries a span. The shapes mirror the surface grammar closely;
// desugaring (compound assignment, fun declarations as closures, classes as
// tagged objects) happens in the backends, not here, so the transpiler sees
// the program the way it was written.
package ruchy

// Expr is any expression node.
type Expr interface {
	Pos() Span
}

// Pattern is any pattern node usable in let, match arms, and for loops.
type Pattern interface {
	Pos() Span
}

// Param is a declared function parameter. Default may be nil.
type Param struct {
	Name    string
	Type    string // surface annotation; informational at runtime
	Default Expr
	Span    Span
}

// ---- literals ----

type IntLit struct {
	Span  Span
	Value int64
}

type FloatLit struct {
	Span  Span
	Value float64
}

type BoolLit struct {
	Span  Span
	Value bool
}

type StringLit struct {
	Span  Span
	Value string
}

type CharLit struct {
	Span  Span
	Value rune
}

type NilLit struct {
	Span Span
}

type UnitLit struct {
	Span Span
}

// ---- names, operators ----

type Ident struct {
	Span Span
	Name string
}

// Path is a qualified name such as Point::origin or Option::Some.
type Path struct {
	Span     Span
	TypeName string
	Name     string
}

type Binary struct {
	Span  Span
	Op    string
	Left  Expr
	Right Expr
}

type Unary struct {
	Span    Span
	Op      string
	Operand Expr
}

// ---- binding and control flow ----

type Block struct {
	Span  Span
	Exprs []Expr
}

// Let binds a pattern for the rest of the enclosing block. Name is the fast
// path for the common single-identifier case; Pattern is set when the target
// destructures.
type Let struct {
	Span    Span
	Name    string
	Pattern Pattern
	Mutable bool
	Value   Expr
}

type Assign struct {
	Span   Span
	Target Expr // Ident, FieldAccess, or Index
	Value  Expr
}

type If struct {
	Span Span
	Cond Expr
	Then Expr
	Else Expr // nil means Unit
}

type MatchArm struct {
	Span    Span
	Pattern Pattern
	Guard   Expr // nil means unconditional
	Body    Expr
}

type Match struct {
	Span      Span
	Scrutinee Expr
	Arms      []MatchArm
}

type For struct {
	Span     Span
	Pattern  Pattern
	Iterable Expr
	Body     Expr
}

type While struct {
	Span Span
	Cond Expr
	Body Expr
}

type Break struct {
	Span  Span
	Value Expr // nil yields Unit as the loop value
}

type Continue struct {
	Span Span
}

type Return struct {
	Span  Span
	Value Expr // nil returns Unit
}

// ---- functions and calls ----

type Lambda struct {
	Span   Span
	Params []Param
	Body   Expr
}

type FunDecl struct {
	Span    Span
	Name    string
	Params  []Param
	RetType string // surface annotation; informational at runtime
	Body    Expr
}

type Call struct {
	Span   Span
	Callee Expr
	Args   []Expr
}

type MethodCall struct {
	Span Span
	Recv Expr
	Name string
	Args []Expr
}

type FieldAccess struct {
	Span Span
	Recv Expr
	Name string
}

type Index struct {
	Span Span
	Recv Expr
	Idx  Expr
}

// ---- composite literals ----

type List struct {
	Span  Span
	Elems []Expr
}

type TupleLit struct {
	Span  Span
	Elems []Expr
}

type ObjectField struct {
	Key   string
	Value Expr
}

type ObjectLit struct {
	Span   Span
	Fields []ObjectField
}

type RangeLit struct {
	Span      Span
	Start     Expr
	End       Expr
	Inclusive bool
}

// StructLit instantiates a named struct or class: Point { x: 1, y: 2 }.
// Omitted fields with declared defaults are filled at evaluation time.
type StructLit struct {
	Span   Span
	Name   string
	Fields []ObjectField
}

// ---- type declarations ----

type FieldDef struct {
	Name    string
	Type    string
	Default Expr // nil means required at construction
	Pub     bool
	Span    Span
}

type CtorDef struct {
	Name   string // "new" for the default constructor
	Params []Param
	Body   Expr
	Pub    bool
	Span   Span
}

type MethodDef struct {
	Name   string
	Params []Param // excluding self
	Body   Expr
	Static bool
	Pub    bool
	Span   Span
}

type ClassDecl struct {
	Span    Span
	Name    string
	Fields  []FieldDef
	Ctors   []CtorDef
	Methods []MethodDef
}

type StructDecl struct {
	Span   Span
	Name   string
	Fields []FieldDef
}

type EnumVariantDef struct {
	Name  string
	Arity int // 0 for unit variants
	Span  Span
}

type EnumDecl struct {
	Span     Span
	Name     string
	Variants []EnumVariantDef
}

// ---- actors ----

type ActorHandler struct {
	Message string
	Params  []Param
	Body    Expr
	Span    Span
}

type ActorDecl struct {
	Span     Span
	Name     string
	Fields   []FieldDef
	Handlers []ActorHandler
}

// ActorSend is fire-and-forget: a <- msg.
type ActorSend struct {
	Span  Span
	Actor Expr
	Msg   Expr
}

// ActorQuery runs the matching handler synchronously: a <? msg.
type ActorQuery struct {
	Span  Span
	Actor Expr
	Msg   Expr
}

// Try is the postfix `?`: unwrap Ok, early-return Err.
type Try struct {
	Span    Span
	Operand Expr
}

// ---- patterns ----

type PatLiteral struct {
	Span Span
	Lit  Value
}

type PatWildcard struct {
	Span Span
}

type PatIdent struct {
	Span Span
	Name string
}

type PatTuple struct {
	Span  Span
	Elems []Pattern
}

// PatList matches arrays; Rest names the tail binding when HasRest is set
// (an empty Rest with HasRest discards the tail).
type PatList struct {
	Span    Span
	Elems   []Pattern
	HasRest bool
	Rest    string
}

type PatField struct {
	Name string
	Pat  Pattern
}

type PatStruct struct {
	Span     Span
	TypeName string
	Fields   []PatField
}

// PatCtor matches an enum variant: Some(x), Err(e), Option::None.
type PatCtor struct {
	Span     Span
	TypeName string // empty when written bare
	Name     string
	Args     []Pattern
}

type PatOr struct {
	Span Span
	Alts []Pattern
}

// ---- Pos plumbing ----

func (n *IntLit) Pos() Span      { return n.Span }
func (n *FloatLit) Pos() Span    { return n.Span }
func (n *BoolLit) Pos() Span     { return n.Span }
func (n *StringLit) Pos() Span   { return n.Span }
func (n *CharLit) Pos() Span     { return n.Span }
func (n *NilLit) Pos() Span      { return n.Span }
func (n *UnitLit) Pos() Span     { return n.Span }
func (n *Ident) Pos() Span       { return n.Span }
func (n *Path) Pos() Span        { return n.Span }
func (n *Binary) Pos() Span      { return n.Span }
func (n *Unary) Pos() Span       { return n.Span }
func (n *Block) Pos() Span       { return n.Span }
func (n *Let) Pos() Span         { return n.Span }
func (n *Assign) Pos() Span      { return n.Span }
func (n *If) Pos() Span          { return n.Span }
func (n *Match) Pos() Span       { return n.Span }
func (n *For) Pos() Span         { return n.Span }
func (n *While) Pos() Span       { return n.Span }
func (n *Break) Pos() Span       { return n.Span }
func (n *Continue) Pos() Span    { return n.Span }
func (n *Return) Pos() Span      { return n.Span }
func (n *Lambda) Pos() Span      { return n.Span }
func (n *FunDecl) Pos() Span     { return n.Span }
func (n *Call) Pos() Span        { return n.Span }
func (n *MethodCall) Pos() Span  { return n.Span }
func (n *FieldAccess) Pos() Span { return n.Span }
func (n *Index) Pos() Span       { return n.Span }
func (n *List) Pos() Span        { return n.Span }
func (n *TupleLit) Pos() Span    { return n.Span }
func (n *ObjectLit) Pos() Span   { return n.Span }
func (n *RangeLit) Pos() Span    { return n.Span }
func (n *StructLit) Pos() Span   { return n.Span }
func (n *ClassDecl) Pos() Span   { return n.Span }
func (n *StructDecl) Pos() Span  { return n.Span }
func (n *EnumDecl) Pos() Span    { return n.Span }
func (n *ActorDecl) Pos() Span   { return n.Span }
func (n *ActorSend) Pos() Span   { return n.Span }
func (n *ActorQuery) Pos() Span  { return n.Span }
func (n *Try) Pos() Span         { return n.Span }

func (p *PatLiteral) Pos() Span  { return p.Span }
func (p *PatWildcard) Pos() Span { return p.Span }
func (p *PatIdent) Pos() Span    { return p.Span }
func (p *PatTuple) Pos() Span    { return p.Span }
func (p *PatList) Pos() Span     { return p.Span }
func (p *PatStruct) Pos() Span   { return p.Span }
func (p *PatCtor) Pos() Span     { return p.Span }
func (p *PatOr) Pos() Span       { return p.Span }

// BindNames lists the variables a pattern binds, in deterministic
// left-to-right order. The VM's match opcode relies on this order to store
// bindings into pre-allocated local slots.
func BindNames(p Pattern) []string {
	var out []string
	collectBindNames(p, &out)
	return out
}

func collectBindNames(p Pattern, out *[]string) {
	switch pt := p.(type) {
	case *PatIdent:
		*out = append(*out, pt.Name)
	case *PatTuple:
		for _, e := range pt.Elems {
			collectBindNames(e, out)
		}
	case *PatList:
		for _, e := range pt.Elems {
			collectBindNames(e, out)
		}
		if pt.HasRest && pt.Rest != "" {
			*out = append(*out, pt.Rest)
		}
	case *PatStruct:
		for _, f := range pt.Fields {
			collectBindNames(f.Pat, out)
		}
	case *PatCtor:
		for _, a := range pt.Args {
			collectBindNames(a, out)
		}
	case *PatOr:
		// Alternatives must bind the same set; the first alternative is
		// authoritative for ordering.
		if len(pt.Alts) > 0 {
			collectBindNames(pt.Alts[0], out)
		}
	}
}
