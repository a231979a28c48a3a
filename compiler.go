// compiler.go: AST to bytecode.
//
// One compiler per function; nested functions compile through a child
// compiler whose prototype lands in the parent chunk. Locals live in a flat
// per-frame slot array, so the compiler models the operand stack depth only
// to know how much break, continue and return must discard. The top-level
// program compiles in script mode: names bound at depth zero go to the
// session globals so definitions persist across inputs, names in nested
// blocks become frame locals.
package ruchy

type localVar struct {
	name    string
	depth   int
	mutable bool
}

type loopCtx struct {
	start     int // continue jumps here
	contDepth int // operand depth at the continue target
	baseDepth int // operand depth before the loop expression
	breaks    []int
}

type compiler struct {
	parent *compiler
	chunk  *Chunk
	proto  *Proto
	fnName string
	script bool

	locals []localVar
	depth  int // lexical scope depth
	sdepth int // modelled operand stack depth
	loops  []loopCtx
	cur    Span
}

// CompileProgram compiles a parsed program into a script prototype. The
// script evaluates to the value of its last expression.
func CompileProgram(prog *Block) (*Proto, error) {
	fc := &compiler{
		chunk:  &Chunk{},
		script: true,
	}
	fc.proto = &Proto{Name: "<main>", Chunk: fc.chunk}
	fc.at(prog.Span)
	if len(prog.Exprs) == 0 {
		fc.emit(opUnit, 0, 1)
	}
	for i, e := range prog.Exprs {
		if err := fc.compile(e); err != nil {
			return nil, err
		}
		if i < len(prog.Exprs)-1 {
			fc.emit(opPop, 0, -1)
		}
	}
	fc.at(prog.Span)
	fc.emit(opReturn, 0, -1)
	return fc.proto, nil
}

// emitter

func (fc *compiler) at(sp Span) { fc.cur = sp }

func (fc *compiler) emit(op opcode, imm uint32, delta int) int {
	fc.chunk.Code = append(fc.chunk.Code, pack(op, imm))
	fc.chunk.Spans = append(fc.chunk.Spans, fc.cur)
	fc.sdepth += delta
	return len(fc.chunk.Code) - 1
}

func (fc *compiler) here() int { return len(fc.chunk.Code) }

func (fc *compiler) patch(at, to int) {
	fc.chunk.Code[at] = pack(uop(fc.chunk.Code[at]), uint32(to))
}

func (fc *compiler) k(v Value) (uint32, error) {
	for i, c := range fc.chunk.Consts {
		if c.Tag == v.Tag && Equal(c, v) {
			return uint32(i), nil
		}
	}
	if len(fc.chunk.Consts) > 0xFFFFFF {
		return 0, errAt(ErrParse, fc.cur, "too many constants in one chunk")
	}
	fc.chunk.Consts = append(fc.chunk.Consts, v)
	return uint32(len(fc.chunk.Consts) - 1), nil
}

func (fc *compiler) name(s string) uint32 {
	for i, n := range fc.chunk.Names {
		if n == s {
			return uint32(i)
		}
	}
	fc.chunk.Names = append(fc.chunk.Names, s)
	return uint32(len(fc.chunk.Names) - 1)
}

func (fc *compiler) node(e Expr) uint32 {
	fc.chunk.Nodes = append(fc.chunk.Nodes, e)
	return uint32(len(fc.chunk.Nodes) - 1)
}

// scopes and locals

func (fc *compiler) beginScope() { fc.depth++ }

func (fc *compiler) endScope() {
	fc.depth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].depth > fc.depth {
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

func (fc *compiler) addLocal(name string, mutable bool) int {
	fc.locals = append(fc.locals, localVar{name: name, depth: fc.depth, mutable: mutable})
	if len(fc.locals) > fc.proto.NumLocals {
		fc.proto.NumLocals = len(fc.locals)
	}
	return len(fc.locals) - 1
}

func (fc *compiler) findLocal(name string) (int, localVar, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			return i, fc.locals[i], true
		}
	}
	return 0, localVar{}, false
}

func (fc *compiler) addUpval(d UpvalDesc) int {
	fc.proto.Upvals = append(fc.proto.Upvals, d)
	return len(fc.proto.Upvals) - 1
}

func (fc *compiler) resolveUpval(name string) (int, bool) {
	if fc.parent == nil {
		return 0, false
	}
	for i, u := range fc.proto.Upvals {
		if u.Name == name {
			return i, true
		}
	}
	if slot, lv, ok := fc.parent.findLocal(name); ok {
		return fc.addUpval(UpvalDesc{Name: name, FromLocal: true, Index: slot, Mutable: lv.mutable}), true
	}
	if fc.parent.fnName == name {
		return fc.addUpval(UpvalDesc{Name: name, FromSelf: true}), true
	}
	if idx, ok := fc.parent.resolveUpval(name); ok {
		u := fc.parent.proto.Upvals[idx]
		return fc.addUpval(UpvalDesc{Name: name, FromLocal: false, Index: idx, Mutable: u.Mutable}), true
	}
	return 0, false
}

// atGlobalScope reports whether a binding introduced here persists in the
// session environment rather than a frame slot.
func (fc *compiler) atGlobalScope() bool { return fc.script && fc.depth == 0 }

// compile emits code leaving exactly one value on the operand stack.
func (fc *compiler) compile(e Expr) error {
	fc.at(e.Pos())
	switch n := e.(type) {
	case *IntLit:
		return fc.constant(IntV(n.Value))
	case *FloatLit:
		return fc.constant(FloatV(n.Value))
	case *StringLit:
		return fc.constant(StrV(n.Value))
	case *CharLit:
		return fc.constant(CharV(n.Value))
	case *BoolLit:
		if n.Value {
			fc.emit(opTrue, 0, 1)
		} else {
			fc.emit(opFalse, 0, 1)
		}
		return nil
	case *NilLit:
		fc.emit(opNil, 0, 1)
		return nil
	case *UnitLit:
		fc.emit(opUnit, 0, 1)
		return nil

	case *Ident:
		return fc.compileIdent(n)
	case *Path:
		fc.emit(opPath, fc.node(n), 1)
		return nil

	case *Binary:
		return fc.compileBinary(n)
	case *Unary:
		if err := fc.compile(n.Operand); err != nil {
			return err
		}
		fc.at(n.Span)
		switch n.Op {
		case "-":
			fc.emit(opNeg, 0, 0)
		case "~":
			fc.emit(opBNot, 0, 0)
		default:
			fc.emit(opNot, 0, 0)
		}
		return nil

	case *Block:
		return fc.compileBlock(n)
	case *Let:
		return fc.compileLet(n)
	case *Assign:
		return fc.compileAssign(n)
	case *If:
		return fc.compileIf(n)
	case *Match:
		return fc.compileMatch(n)
	case *For:
		return fc.compileFor(n)
	case *While:
		return fc.compileWhile(n)
	case *Break:
		return fc.compileBreak(n)
	case *Continue:
		return fc.compileContinue(n)
	case *Return:
		d := fc.sdepth
		if n.Value != nil {
			if err := fc.compile(n.Value); err != nil {
				return err
			}
		} else {
			fc.emit(opUnit, 0, 1)
		}
		fc.at(n.Span)
		fc.emit(opReturn, 0, -1)
		fc.sdepth = d + 1
		return nil

	case *Lambda:
		idx, err := fc.compileFunction("", n.Params, n.Body, n.Span)
		if err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opClosure, idx, 1)
		return nil
	case *FunDecl:
		return fc.compileFunDecl(n)

	case *Call:
		if err := fc.compile(n.Callee); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := fc.compile(a); err != nil {
				return err
			}
		}
		fc.at(n.Span)
		fc.emit(opCall, uint32(len(n.Args)), -len(n.Args))
		return nil
	case *MethodCall:
		if len(n.Args) > 0xFF {
			return errAt(ErrParse, n.Span, "too many method arguments")
		}
		if err := fc.compile(n.Recv); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := fc.compile(a); err != nil {
				return err
			}
		}
		nameIdx := fc.name(n.Name)
		if nameIdx > 0xFFFF {
			return errAt(ErrParse, n.Span, "too many names in one chunk")
		}
		fc.at(n.Span)
		fc.emit(opMethodCall, nameIdx<<8|uint32(len(n.Args)), -len(n.Args))
		return nil
	case *FieldAccess:
		if err := fc.compile(n.Recv); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opField, fc.name(n.Name), 0)
		return nil
	case *Index:
		if err := fc.compile(n.Recv); err != nil {
			return err
		}
		if err := fc.compile(n.Idx); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opIndex, 0, -1)
		return nil

	case *List:
		for _, el := range n.Elems {
			if err := fc.compile(el); err != nil {
				return err
			}
		}
		fc.at(n.Span)
		fc.emit(opMakeArr, uint32(len(n.Elems)), 1-len(n.Elems))
		return nil
	case *TupleLit:
		for _, el := range n.Elems {
			if err := fc.compile(el); err != nil {
				return err
			}
		}
		fc.at(n.Span)
		fc.emit(opMakeTuple, uint32(len(n.Elems)), 1-len(n.Elems))
		return nil
	case *ObjectLit:
		for _, f := range n.Fields {
			if err := fc.constant(StrV(f.Key)); err != nil {
				return err
			}
			if err := fc.compile(f.Value); err != nil {
				return err
			}
		}
		fc.at(n.Span)
		fc.emit(opMakeObj, uint32(len(n.Fields)), 1-2*len(n.Fields))
		return nil
	case *RangeLit:
		if err := fc.compile(n.Start); err != nil {
			return err
		}
		if err := fc.compile(n.End); err != nil {
			return err
		}
		incl := uint32(0)
		if n.Inclusive {
			incl = 1
		}
		fc.at(n.Span)
		fc.emit(opMakeRange, incl, -1)
		return nil
	case *StructLit:
		ref := structLitRef{TypeName: n.Name}
		for _, f := range n.Fields {
			ref.Keys = append(ref.Keys, f.Key)
			if err := fc.compile(f.Value); err != nil {
				return err
			}
		}
		fc.chunk.Lits = append(fc.chunk.Lits, ref)
		fc.at(n.Span)
		fc.emit(opStructLit, uint32(len(fc.chunk.Lits)-1), 1-len(n.Fields))
		return nil

	case *ClassDecl, *StructDecl, *EnumDecl, *ActorDecl:
		fc.emit(opDecl, fc.node(e), 1)
		return nil

	case *ActorSend:
		return fc.compileMessage(n.Actor, n.Msg, n.Span, opSend)
	case *ActorQuery:
		return fc.compileMessage(n.Actor, n.Msg, n.Span, opAsk)

	case *Try:
		if err := fc.compile(n.Operand); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opTry, 0, 0)
		return nil
	}
	return errAt(ErrParse, e.Pos(), "cannot compile this expression")
}

func (fc *compiler) constant(v Value) error {
	idx, err := fc.k(v)
	if err != nil {
		return err
	}
	fc.emit(opConst, idx, 1)
	return nil
}

func (fc *compiler) compileIdent(n *Ident) error {
	if slot, _, ok := fc.findLocal(n.Name); ok {
		fc.emit(opLoadLocal, uint32(slot), 1)
		return nil
	}
	if fc.fnName != "" && n.Name == fc.fnName {
		fc.emit(opLoadSelf, 0, 1)
		return nil
	}
	if idx, ok := fc.resolveUpval(n.Name); ok {
		fc.emit(opLoadUpval, uint32(idx), 1)
		return nil
	}
	fc.emit(opLoadGlobal, fc.name(n.Name), 1)
	return nil
}

// compileBinary lowers one binary operation. The logical forms keep the
// deciding operand on the stack instead of coercing to Bool, matching the
// tree-walker: a short-circuited `&&` yields its left operand, a completed
// one yields its right.
func (fc *compiler) compileBinary(n *Binary) error {
	switch n.Op {
	case "&&":
		if err := fc.compile(n.Left); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opDup, 0, 1)
		jf := fc.emit(opJumpIfFalse, 0, -1)
		fc.emit(opPop, 0, -1)
		if err := fc.compile(n.Right); err != nil {
			return err
		}
		fc.patch(jf, fc.here())
		return nil
	case "||":
		if err := fc.compile(n.Left); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opDup, 0, 1)
		jt := fc.emit(opJumpIfTrue, 0, -1)
		fc.emit(opPop, 0, -1)
		if err := fc.compile(n.Right); err != nil {
			return err
		}
		fc.patch(jt, fc.here())
		return nil
	}
	if err := fc.compile(n.Left); err != nil {
		return err
	}
	if err := fc.compile(n.Right); err != nil {
		return err
	}
	fc.at(n.Span)
	var op opcode
	switch n.Op {
	case "+":
		op = opAdd
	case "-":
		op = opSub
	case "*":
		op = opMul
	case "/":
		op = opDiv
	case "%":
		op = opMod
	case "**":
		op = opPow
	case "==":
		op = opEq
	case "!=":
		op = opNe
	case "<":
		op = opLt
	case "<=":
		op = opLe
	case ">":
		op = opGt
	case ">=":
		op = opGe
	default:
		return errAt(ErrParse, n.Span, "unknown operator %q", n.Op)
	}
	fc.emit(op, 0, -1)
	return nil
}

func (fc *compiler) compileBlock(n *Block) error {
	if len(n.Exprs) == 0 {
		fc.emit(opUnit, 0, 1)
		return nil
	}
	fc.beginScope()
	defer fc.endScope()
	for i, e := range n.Exprs {
		if err := fc.compile(e); err != nil {
			return err
		}
		if i < len(n.Exprs)-1 {
			fc.emit(opPop, 0, -1)
		}
	}
	return nil
}

// bindSlots allocates contiguous frame slots for a pattern's names and
// registers the pattern in the chunk. The base slot must fit the 8-bit
// operand field.
func (fc *compiler) bindSlots(p Pattern, mutable bool) (uint32, int, []string, error) {
	names := BindNames(p)
	base := len(fc.locals)
	if base > 0xFF {
		return 0, 0, nil, errAt(ErrParse, p.Pos(), "too many locals in scope for a pattern binding")
	}
	for _, nm := range names {
		fc.addLocal(nm, mutable)
	}
	fc.chunk.Pats = append(fc.chunk.Pats, patRef{Pat: p, Names: names})
	patIdx := uint32(len(fc.chunk.Pats) - 1)
	if patIdx > 0xFFFF {
		return 0, 0, nil, errAt(ErrParse, p.Pos(), "too many patterns in one chunk")
	}
	return patIdx, base, names, nil
}

func (fc *compiler) compileLet(n *Let) error {
	if err := fc.compile(n.Value); err != nil {
		return err
	}
	fc.at(n.Span)
	if n.Pattern == nil {
		if fc.atGlobalScope() {
			mut := uint32(0)
			if n.Mutable {
				mut = 1
			}
			fc.emit(opDefGlobal, fc.name(n.Name)<<1|mut, -1)
		} else {
			slot := fc.addLocal(n.Name, n.Mutable)
			fc.emit(opStoreLocal, uint32(slot), -1)
		}
		fc.emit(opUnit, 0, 1)
		return nil
	}

	patIdx, base, names, err := fc.bindSlots(n.Pattern, n.Mutable)
	if err != nil {
		return err
	}
	fc.emit(opMatch, patIdx<<8|uint32(base), 1)
	jt := fc.emit(opJumpIfTrue, 0, -1)
	fc.emit(opPatFail, 0, -1)
	fc.patch(jt, fc.here())
	fc.sdepth++ // value still on stack on the match path
	fc.emit(opPop, 0, -1)
	if fc.atGlobalScope() {
		mut := uint32(0)
		if n.Mutable {
			mut = 1
		}
		for i, nm := range names {
			fc.emit(opLoadLocal, uint32(base+i), 1)
			fc.emit(opDefGlobal, fc.name(nm)<<1|mut, -1)
		}
		// the slots were only staging space; free them so later lookups
		// resolve to the globals just defined
		fc.locals = fc.locals[:base]
	}
	fc.emit(opUnit, 0, 1)
	return nil
}

func (fc *compiler) compileAssign(n *Assign) error {
	switch target := n.Target.(type) {
	case *Ident:
		if err := fc.compile(n.Value); err != nil {
			return err
		}
		fc.at(n.Span)
		if slot, lv, ok := fc.findLocal(target.Name); ok {
			if !lv.mutable {
				fc.emit(opPop, 0, -1)
				fc.emit(opFailImm, fc.name(target.Name), 0)
			} else {
				fc.emit(opStoreLocal, uint32(slot), -1)
			}
			fc.emit(opUnit, 0, 1)
			return nil
		}
		if fc.fnName != "" && target.Name == fc.fnName {
			fc.emit(opPop, 0, -1)
			fc.emit(opFailImm, fc.name(target.Name), 0)
			fc.emit(opUnit, 0, 1)
			return nil
		}
		if idx, ok := fc.resolveUpval(target.Name); ok {
			u := fc.proto.Upvals[idx]
			if !u.Mutable {
				fc.emit(opPop, 0, -1)
				fc.emit(opFailImm, fc.name(target.Name), 0)
			} else {
				fc.emit(opStoreUpval, uint32(idx), -1)
			}
			fc.emit(opUnit, 0, 1)
			return nil
		}
		fc.emit(opStoreGlobal, fc.name(target.Name), -1)
		fc.emit(opUnit, 0, 1)
		return nil
	case *FieldAccess:
		// rhs evaluates before the receiver
		if err := fc.compile(n.Value); err != nil {
			return err
		}
		if err := fc.compile(target.Recv); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opFieldSet, fc.name(target.Name), -1)
		return nil
	case *Index:
		if err := fc.compile(n.Value); err != nil {
			return err
		}
		if err := fc.compile(target.Recv); err != nil {
			return err
		}
		if err := fc.compile(target.Idx); err != nil {
			return err
		}
		fc.at(n.Span)
		fc.emit(opIndexSet, 0, -2)
		return nil
	}
	return errAt(ErrParse, n.Span, "invalid assignment target")
}

func (fc *compiler) compileIf(n *If) error {
	if err := fc.compile(n.Cond); err != nil {
		return err
	}
	fc.at(n.Span)
	jf := fc.emit(opJumpIfFalse, 0, -1)
	d := fc.sdepth
	if err := fc.compile(n.Then); err != nil {
		return err
	}
	end := fc.emit(opJump, 0, 0)
	fc.patch(jf, fc.here())
	fc.sdepth = d
	if n.Else != nil {
		if err := fc.compile(n.Else); err != nil {
			return err
		}
	} else {
		fc.emit(opUnit, 0, 1)
	}
	fc.patch(end, fc.here())
	return nil
}

func (fc *compiler) compileMatch(n *Match) error {
	if err := fc.compile(n.Scrutinee); err != nil {
		return err
	}
	d := fc.sdepth // scrutinee on top
	var ends []int
	for _, arm := range n.Arms {
		fc.beginScope()
		patIdx, base, _, err := fc.bindSlots(arm.Pattern, false)
		if err != nil {
			fc.endScope()
			return err
		}
		fc.at(arm.Span)
		fc.emit(opMatch, patIdx<<8|uint32(base), 1)
		var misses []int
		misses = append(misses, fc.emit(opJumpIfFalse, 0, -1))
		if arm.Guard != nil {
			if err := fc.compile(arm.Guard); err != nil {
				fc.endScope()
				return err
			}
			misses = append(misses, fc.emit(opJumpIfFalse, 0, -1))
		}
		fc.emit(opPop, 0, -1) // scrutinee
		if err := fc.compile(arm.Body); err != nil {
			fc.endScope()
			return err
		}
		ends = append(ends, fc.emit(opJump, 0, 0))
		fc.endScope()
		for _, m := range misses {
			fc.patch(m, fc.here())
		}
		fc.sdepth = d
	}
	fc.at(n.Span)
	fc.emit(opNoMatch, 0, -1)
	for _, e := range ends {
		fc.patch(e, fc.here())
	}
	fc.sdepth = d
	return nil
}

func (fc *compiler) compileFor(n *For) error {
	d0 := fc.sdepth
	if err := fc.compile(n.Iterable); err != nil {
		return err
	}
	fc.at(n.Span)
	fc.emit(opIter, 0, 0)
	fc.beginScope()
	start := fc.here()
	next := fc.emit(opIterNext, 0, 1)
	patIdx, base, _, err := fc.bindSlots(n.Pattern, false)
	if err != nil {
		fc.endScope()
		return err
	}
	fc.emit(opMatch, patIdx<<8|uint32(base), 1)
	jt := fc.emit(opJumpIfTrue, 0, -1)
	fc.emit(opPatFail, 1, -1)
	fc.patch(jt, fc.here())
	fc.sdepth++ // item still on stack on the match path
	fc.emit(opPop, 0, -1)

	fc.loops = append(fc.loops, loopCtx{start: start, contDepth: d0 + 1, baseDepth: d0})
	if err := fc.compile(n.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		fc.endScope()
		return err
	}
	loop := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]

	fc.emit(opPop, 0, -1)
	fc.emit(opJump, uint32(start), 0)
	fc.patch(next, fc.here())
	fc.sdepth = d0
	fc.emit(opUnit, 0, 1)
	for _, b := range loop.breaks {
		fc.patch(b, fc.here())
	}
	fc.endScope()
	fc.sdepth = d0 + 1
	return nil
}

func (fc *compiler) compileWhile(n *While) error {
	d0 := fc.sdepth
	start := fc.here()
	if err := fc.compile(n.Cond); err != nil {
		return err
	}
	fc.at(n.Span)
	jf := fc.emit(opJumpIfFalse, 0, -1)

	fc.loops = append(fc.loops, loopCtx{start: start, contDepth: d0, baseDepth: d0})
	if err := fc.compile(n.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		return err
	}
	loop := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]

	fc.emit(opPop, 0, -1)
	fc.emit(opJump, uint32(start), 0)
	fc.patch(jf, fc.here())
	fc.sdepth = d0
	fc.emit(opUnit, 0, 1)
	for _, b := range loop.breaks {
		fc.patch(b, fc.here())
	}
	fc.sdepth = d0 + 1
	return nil
}

func (fc *compiler) compileBreak(n *Break) error {
	if len(fc.loops) == 0 {
		return errAt(ErrTypeMismatch, n.Span, "break outside loop")
	}
	loop := &fc.loops[len(fc.loops)-1]
	d := fc.sdepth
	if drop := fc.sdepth - loop.baseDepth; drop > 0 {
		fc.emit(opPopN, uint32(drop), -drop)
	}
	if n.Value != nil {
		if err := fc.compile(n.Value); err != nil {
			return err
		}
	} else {
		fc.emit(opUnit, 0, 1)
	}
	fc.at(n.Span)
	loop.breaks = append(loop.breaks, fc.emit(opJump, 0, 0))
	fc.sdepth = d + 1
	return nil
}

func (fc *compiler) compileContinue(n *Continue) error {
	if len(fc.loops) == 0 {
		return errAt(ErrTypeMismatch, n.Span, "continue outside loop")
	}
	loop := fc.loops[len(fc.loops)-1]
	d := fc.sdepth
	if drop := fc.sdepth - loop.contDepth; drop > 0 {
		fc.emit(opPopN, uint32(drop), -drop)
	}
	fc.at(n.Span)
	fc.emit(opJump, uint32(loop.start), 0)
	fc.sdepth = d + 1
	return nil
}

func (fc *compiler) compileFunDecl(n *FunDecl) error {
	idx, err := fc.compileFunction(n.Name, n.Params, n.Body, n.Span)
	if err != nil {
		return err
	}
	fc.at(n.Span)
	fc.emit(opClosure, idx, 1)
	if fc.atGlobalScope() {
		fc.emit(opDefGlobal, fc.name(n.Name)<<1, -1)
	} else {
		slot := fc.addLocal(n.Name, false)
		fc.emit(opStoreLocal, uint32(slot), -1)
	}
	fc.emit(opUnit, 0, 1)
	return nil
}

func (fc *compiler) compileFunction(name string, params []Param, body Expr, sp Span) (uint32, error) {
	sub := &compiler{
		parent: fc,
		chunk:  &Chunk{},
		fnName: name,
	}
	sub.proto = &Proto{Name: name, Params: params, Chunk: sub.chunk}
	for _, p := range params {
		sub.addLocal(p.Name, false)
	}
	sub.at(sp)
	if err := sub.compile(body); err != nil {
		return 0, err
	}
	sub.at(sp)
	sub.emit(opReturn, 0, -1)
	fc.chunk.Protos = append(fc.chunk.Protos, sub.proto)
	idx := uint32(len(fc.chunk.Protos) - 1)
	if idx > 0xFFFFFF {
		return 0, errAt(ErrParse, sp, "too many functions in one chunk")
	}
	return idx, nil
}

// compileMessage lowers send and ask. The message expression is a handler
// name with optional arguments, never an ordinary value.
func (fc *compiler) compileMessage(actorExpr, msgExpr Expr, sp Span, op opcode) error {
	if err := fc.compile(actorExpr); err != nil {
		return err
	}
	var name string
	var args []Expr
	switch msg := msgExpr.(type) {
	case *Ident:
		name = msg.Name
	case *Call:
		callee, ok := msg.Callee.(*Ident)
		if !ok {
			return errAt(ErrTypeMismatch, msg.Pos(), "invalid actor message")
		}
		name = callee.Name
		args = msg.Args
	case *Path:
		name = msg.Name
	default:
		return errAt(ErrTypeMismatch, msgExpr.Pos(), "invalid actor message")
	}
	for _, a := range args {
		if err := fc.compile(a); err != nil {
			return err
		}
	}
	fc.chunk.Msgs = append(fc.chunk.Msgs, msgRef{Name: name, Argc: len(args)})
	fc.at(sp)
	fc.emit(op, uint32(len(fc.chunk.Msgs)-1), -len(args))
	return nil
}
