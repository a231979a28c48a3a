// vm.go: the bytecode interpreter.
//
// One vm instance drives one top-level activation; nested calls to compiled
// closures push frames inside the same run loop, while natives, AST closures
// and method dispatch delegate back to the session (Interp). The delegation
// is deliberate: both engines funnel arithmetic, indexing, matching and
// dispatch through the same helpers, so a program cannot tell them apart.
package ruchy

type vmFrame struct {
	closure *Closure
	ip      int
	locals  []Value
	base    int // operand stack watermark at entry
	release func()
}

type vm struct {
	in       *Interp
	stack    []Value
	frames   []*vmFrame
	topLevel bool // bottom frame is the program script
}

// runProtoClosure executes a compiled closure call. Apply routes here for
// closures carrying a prototype.
func runProtoClosure(in *Interp, c *Closure, args []Value, sp Span) (Value, error) {
	m := &vm{in: in}
	release := in.gc.AddRoots(&m.stack)
	defer release()
	if err := m.pushFrame(c, args, sp); err != nil {
		return Nil, err
	}
	return m.run()
}

// runScript executes a compiled program with top-level semantics: a plain
// return ends the program with the carried value, a propagated Err becomes an
// unhandled error.
func runScript(in *Interp, p *Proto) (Value, error) {
	in.depth = 0
	in.interrupted.Store(false)
	m := &vm{in: in, topLevel: true}
	release := in.gc.AddRoots(&m.stack)
	defer release()
	c := &Closure{Name: p.Name, Proto: p}
	if err := m.pushFrame(c, nil, p.Chunk.spanAt(0)); err != nil {
		return Nil, err
	}
	return m.run()
}

func (c *Chunk) spanAt(ip int) Span {
	if ip >= 0 && ip < len(c.Spans) {
		return c.Spans[ip]
	}
	return Span{}
}

// ----- stack -----

func (m *vm) push(v Value) { m.stack = append(m.stack, v) }

func (m *vm) pop() Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *vm) peek() Value { return m.stack[len(m.stack)-1] }

func (m *vm) popN(n int) []Value {
	if n == 0 {
		return nil
	}
	at := len(m.stack) - n
	out := make([]Value, n)
	copy(out, m.stack[at:])
	m.stack = m.stack[:at]
	return out
}

// ----- frames -----

func (m *vm) pushFrame(c *Closure, args []Value, sp Span) error {
	in := m.in
	if in.interrupted.Load() {
		return errAt(ErrInterrupted, sp, "interrupted")
	}
	in.depth++
	if in.depth > in.cfg.MaxDepth {
		in.depth--
		return errAt(ErrStackOverflow, sp, "call depth exceeded %d", in.cfg.MaxDepth)
	}
	locals, err := vmBindArgs(in, c.Proto, args, sp)
	if err != nil {
		in.depth--
		return err
	}
	f := &vmFrame{closure: c, locals: locals, base: len(m.stack)}
	f.release = in.gc.AddRoots(&f.locals)
	m.frames = append(m.frames, f)
	return nil
}

func (m *vm) popFrame() {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	f.release()
	m.in.depth--
}

// vmBindArgs lays arguments into a fresh slot array, evaluating declared
// defaults for missing trailing arguments.
func vmBindArgs(in *Interp, p *Proto, args []Value, sp Span) ([]Value, error) {
	name := p.Name
	if name == "" {
		name = "<lambda>"
	}
	if len(args) > len(p.Params) {
		return nil, errAt(ErrArity, sp, "%s expects at most %d arguments, got %d", name, len(p.Params), len(args))
	}
	n := p.NumLocals
	if n < len(p.Params) {
		n = len(p.Params)
	}
	locals := make([]Value, n)
	var defEnv *Env
	for i, prm := range p.Params {
		if i < len(args) {
			locals[i] = args[i]
			continue
		}
		if prm.Default == nil {
			return nil, errAt(ErrArity, sp, "%s expects argument %q", name, prm.Name)
		}
		if defEnv == nil {
			defEnv = NewEnv(in.Globals)
			for j := 0; j < i; j++ {
				defEnv.Define(p.Params[j].Name, locals[j], false)
			}
		}
		d, err := in.Eval(prm.Default, defEnv)
		if err != nil {
			return nil, err
		}
		locals[i] = d
		defEnv.Define(prm.Name, d, false)
	}
	return locals, nil
}

// ----- run loop -----

func (m *vm) run() (Value, error) {
	in := m.in
	for {
		f := m.frames[len(m.frames)-1]
		ch := f.closure.Proto.Chunk
		raw := ch.Code[f.ip]
		f.ip++
		op, imm := uop(raw), uimm(raw)

		switch op {
		case opNop:

		case opConst:
			m.push(ch.Consts[imm])
		case opNil:
			m.push(Nil)
		case opUnit:
			m.push(Unit)
		case opTrue:
			m.push(BoolV(true))
		case opFalse:
			m.push(BoolV(false))

		case opPop:
			m.pop()
		case opPopN:
			m.stack = m.stack[:len(m.stack)-int(imm)]
		case opDup:
			m.push(m.peek())

		case opLoadLocal:
			in.feedback.Record(uint32(m.span().Start), f.locals[imm].TypeName())
			m.push(f.locals[imm])
		case opStoreLocal:
			f.locals[imm] = m.pop()
		case opLoadUpval:
			in.feedback.Record(uint32(m.span().Start), f.closure.Upvals[imm].TypeName())
			m.push(f.closure.Upvals[imm])
		case opStoreUpval:
			f.closure.Upvals[imm] = m.pop()
		case opLoadSelf:
			m.push(ClosureV(f.closure))

		case opLoadGlobal:
			name := ch.Names[imm]
			v, ok := in.Globals.Get(name)
			if !ok {
				return m.throw(errAt(ErrUnboundName, m.span(), "undefined variable %q", name))
			}
			in.feedback.Record(uint32(m.span().Start), v.TypeName())
			m.push(v)
		case opStoreGlobal:
			name := ch.Names[imm]
			v := m.pop()
			switch in.Globals.Set(name, v) {
			case nil:
			case errSetImmutable:
				return m.throw(errAt(ErrImmutableAssignment, m.span(), "cannot assign to immutable binding %q", name))
			default:
				return m.throw(errAt(ErrUnboundName, m.span(), "undefined variable %q", name))
			}
		case opDefGlobal:
			in.Globals.Define(ch.Names[imm>>1], m.pop(), imm&1 == 1)
		case opFailImm:
			return m.throw(errAt(ErrImmutableAssignment, m.span(), "cannot assign to immutable binding %q", ch.Names[imm]))

		case opAdd, opSub, opMul, opDiv, opMod, opPow, opEq, opNe, opLt, opLe, opGt, opGe:
			b, a := m.pop(), m.pop()
			in.feedback.Record(uint32(m.span().Start), a.TypeName())
			v, err := binaryOp(binOpName(op), a, b, m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opNeg:
			v, err := unaryOp("-", m.pop(), m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opNot:
			v, err := unaryOp("!", m.pop(), m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opBNot:
			v, err := unaryOp("~", m.pop(), m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)

		case opMakeArr:
			elems := m.popN(int(imm))
			if elems == nil {
				elems = []Value{}
			}
			m.push(in.alloc(ArrV(elems)))
		case opMakeTuple:
			m.push(in.alloc(TupV(m.popN(int(imm)))))
		case opMakeObj:
			pairs := m.popN(int(imm) * 2)
			mo := NewMapObject()
			for i := 0; i < len(pairs); i += 2 {
				mo.Set(pairs[i].Data.(string), pairs[i+1])
			}
			m.push(in.alloc(ObjV(mo)))
		case opMakeRange:
			end, start := m.pop(), m.pop()
			if start.Tag != TagInteger || end.Tag != TagInteger {
				return m.throw(errAt(ErrTypeMismatch, m.span(), "range bounds must be integers, got %s and %s",
					start.TypeName(), end.TypeName()))
			}
			m.push(RangeV(start.Data.(int64), end.Data.(int64), imm&1 == 1))
		case opClosure:
			p := ch.Protos[imm]
			ups := make([]Value, len(p.Upvals))
			for i, d := range p.Upvals {
				switch {
				case d.FromSelf:
					ups[i] = ClosureV(f.closure)
				case d.FromLocal:
					ups[i] = f.locals[d.Index]
				default:
					ups[i] = f.closure.Upvals[d.Index]
				}
			}
			c := &Closure{Name: p.Name, Params: p.Params, Proto: p, Upvals: ups}
			m.push(in.alloc(ClosureV(c)))

		case opIndex:
			idx, recv := m.pop(), m.pop()
			v, err := indexValue(recv, idx, m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opIndexSet:
			idx, recv, v := m.pop(), m.pop(), m.pop()
			if err := indexAssign(recv, idx, v, m.span()); err != nil {
				return m.throw(err)
			}
			m.push(Unit)
		case opField:
			recv := m.pop()
			in.feedback.Record(uint32(m.span().Start), recv.TypeName())
			v, err := fieldValue(recv, ch.Names[imm], m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opFieldSet:
			recv, v := m.pop(), m.pop()
			if recv.Tag != TagObject {
				return m.throw(errAt(ErrTypeMismatch, m.span(), "cannot assign field on %s", recv.TypeName()))
			}
			recv.Data.(*MapObject).Set(ch.Names[imm], v)
			m.push(Unit)

		case opJump:
			if int(imm) <= f.ip-1 && in.interrupted.Load() {
				return m.throw(errAt(ErrInterrupted, m.span(), "interrupted"))
			}
			f.ip = int(imm)
		case opJumpIfFalse:
			if !Truthy(m.pop()) {
				f.ip = int(imm)
			}
		case opJumpIfTrue:
			if Truthy(m.pop()) {
				f.ip = int(imm)
			}

		case opReturn:
			v := m.pop()
			m.stack = m.stack[:f.base]
			m.popFrame()
			if len(m.frames) == 0 {
				return v, nil
			}
			m.push(v)

		case opCall:
			argc := int(imm)
			args := m.popN(argc)
			callee := m.pop()
			in.feedback.Record(uint32(m.span().Start), callee.TypeName())
			if callee.Tag == TagClosure {
				if c := callee.Data.(*Closure); c.Proto != nil {
					if err := m.pushFrame(c, args, m.span()); err != nil {
						return m.throw(err)
					}
					continue
				}
			}
			v, err := in.Apply(callee, args, m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opMethodCall:
			argc := int(imm & 0xFF)
			args := m.popN(argc)
			recv := m.pop()
			v, err := in.DispatchMethod(recv, ch.Names[imm>>8], args, m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)

		case opMatch:
			pr := ch.Pats[imm>>8]
			base := int(imm & 0xFF)
			binds, ok := MatchPattern(pr.Pat, m.peek())
			if ok {
				for _, b := range binds {
					for i, nm := range pr.Names {
						if nm == b.Name {
							f.locals[base+i] = b.Val
							break
						}
					}
				}
			}
			m.push(BoolV(ok))
		case opNoMatch:
			v := m.pop()
			return m.throw(errAt(ErrNonExhaustiveMatch, m.span(), "no pattern matched %s", FormatValue(v)))
		case opPatFail:
			v := m.pop()
			if imm == 0 {
				return m.throw(errAt(ErrTypeMismatch, m.span(), "let pattern does not match %s value", v.TypeName()))
			}
			return m.throw(errAt(ErrTypeMismatch, m.span(), "loop pattern does not match %s element", v.TypeName()))

		case opIter:
			elems, err := iterableElems(m.pop(), m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(Value{Tag: tagIterator, Data: &iterState{items: elems}})
		case opIterNext:
			it := m.peek().Data.(*iterState)
			if it.idx < len(it.items) {
				m.push(it.items[it.idx])
				it.idx++
			} else {
				m.pop()
				f.ip = int(imm)
			}

		case opTry:
			v := m.pop()
			done, out, err := m.tryUnwrap(v, f)
			if err != nil {
				return m.throw(err)
			}
			if done {
				return out, nil
			}

		case opDecl:
			if _, err := in.Eval(ch.Nodes[imm], in.Globals); err != nil {
				return m.throw(err)
			}
			m.push(Unit)
		case opPath:
			v, err := in.resolvePath(ch.Nodes[imm].(*Path), in.Globals)
			if err != nil {
				return m.throw(err)
			}
			m.push(v)
		case opStructLit:
			ref := ch.Lits[imm]
			vals := m.popN(len(ref.Keys))
			ci, ok := in.classes[ref.TypeName]
			if !ok {
				return m.throw(errAt(ErrUnboundName, m.span(), "unknown type %q", ref.TypeName))
			}
			provided := map[string]Value{}
			for i, k := range ref.Keys {
				known := false
				for _, fd := range ci.fields {
					if fd.Name == k {
						known = true
						break
					}
				}
				if !known {
					return m.throw(errAt(ErrTypeMismatch, m.span(), "%s has no field %q", ref.TypeName, k))
				}
				provided[k] = vals[i]
			}
			v, err := in.instantiate(ci, provided, m.span())
			if err != nil {
				return m.throw(err)
			}
			m.push(v)

		case opSend, opAsk:
			ref := ch.Msgs[imm]
			args := m.popN(ref.Argc)
			actor := m.pop()
			v, err := in.deliverMessage(actor, ref.Name, args, m.span())
			if err != nil {
				return m.throw(err)
			}
			if op == opSend {
				m.push(Unit)
			} else {
				m.push(v)
			}

		default:
			return m.throw(errAt(ErrTypeMismatch, m.span(), "corrupt bytecode: opcode %d", op))
		}
	}
}

// tryUnwrap implements the ? operator. Ok/Some unwrap onto the stack; Err and
// None return from the current frame carrying the variant. At the program's
// top level an Err becomes an unhandled-error result and a None ends the
// program with itself as value.
func (m *vm) tryUnwrap(v Value, f *vmFrame) (done bool, out Value, err error) {
	if v.Tag == TagVariant {
		vo := v.Data.(*VariantObject)
		switch vo.Name {
		case "Ok", "Some":
			if len(vo.Payload) == 1 {
				m.push(vo.Payload[0])
			} else {
				m.push(Unit)
			}
			return false, Nil, nil
		case "Err", "None":
			// the frame holding the `?` site is about to go away
			sp := m.span()
			m.stack = m.stack[:f.base]
			m.popFrame()
			if len(m.frames) == 0 {
				if m.topLevel && vo.Name == "Err" {
					e := errAt(ErrPropagated, sp, "unhandled error: %s", FormatValue(v))
					e.Payload = v
					return false, Nil, e
				}
				return true, v, nil
			}
			m.push(v)
			return false, Nil, nil
		}
	}
	return false, Nil, errAt(ErrTypeMismatch, m.span(), "the ? operator needs a Result or Option, got %s", v.TypeName())
}

// span reports the source span of the instruction being executed.
func (m *vm) span() Span {
	f := m.frames[len(m.frames)-1]
	return f.closure.Proto.Chunk.spanAt(f.ip - 1)
}

// throw annotates the error with a trace of the live frames and unwinds them.
func (m *vm) throw(err error) (Value, error) {
	e := AsError(err)
	if e.Span == (Span{}) {
		e.Span = m.span()
	}
	for len(m.frames) > 0 {
		f := m.frames[len(m.frames)-1]
		p := f.closure.Proto
		fr := Frame{FnName: p.Name, IP: f.ip - 1, Span: p.Chunk.spanAt(f.ip - 1)}
		const maxLocals = 4
		for i, prm := range p.Params {
			if i >= maxLocals {
				break
			}
			repr := FormatValue(f.locals[i])
			if len(repr) > 40 {
				repr = repr[:37] + "..."
			}
			fr.Locals = append(fr.Locals, [2]string{prm.Name, repr})
		}
		e.Frames = append(e.Frames, fr)
		m.stack = m.stack[:f.base]
		m.popFrame()
	}
	return Nil, e
}

func binOpName(op opcode) string {
	switch op {
	case opAdd:
		return "+"
	case opSub:
		return "-"
	case opMul:
		return "*"
	case opDiv:
		return "/"
	case opMod:
		return "%"
	case opPow:
		return "**"
	case opEq:
		return "=="
	case opNe:
		return "!="
	case opLt:
		return "<"
	case opLe:
		return "<="
	case opGt:
		return ">"
	case opGe:
		return ">="
	}
	return "?"
}
