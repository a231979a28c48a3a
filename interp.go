// interp.go: the tree-walking evaluator.
//
// Interp owns all per-session state: the global environment, the declared
// class/enum/actor registries, the GC, and the type-feedback store. Both
// backends share it; the VM borrows the same registries and globals so a
// program behaves identically under either engine.
//
// break/continue/return travel as sentinel errors and are intercepted by the
// nearest loop or call frame. One escaping to the top level is a bug in the
// program and reported as a type mismatch.
package ruchy

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Interp is one execution session.
type Interp struct {
	cfg      Config
	Globals  *Env
	Out      io.Writer
	gc       *GC
	feedback *TypeFeedback

	classes map[string]*classInfo
	actors  map[string]*actorInfo
	enums   map[string]*enumInfo

	// prelude names the globals installBuiltins defined; the REPL's :env
	// hides them from session listings.
	prelude map[string]bool

	depth       int
	curEnv      *Env
	interrupted atomic.Bool

	// EvalCount counts evaluated nodes; the REPL's debug mode reports it.
	EvalCount uint64
}

// NewInterp builds a session with builtins installed and default config.
func NewInterp() *Interp {
	return NewInterpWith(LoadConfig())
}

// NewInterpWith builds a session with an explicit config.
func NewInterpWith(cfg Config) *Interp {
	in := &Interp{
		cfg:      cfg,
		Globals:  NewEnv(nil),
		Out:      os.Stdout,
		gc:       NewGC(cfg.GCThreshold),
		feedback: NewTypeFeedback(cfg.CacheEnabled, cfg.CacheCap),
		classes:  map[string]*classInfo{},
		actors:   map[string]*actorInfo{},
		enums:    map[string]*enumInfo{},
	}
	installBuiltins(in)
	in.prelude = map[string]bool{}
	in.Globals.ForEach(func(name string, _ Value, _ bool) {
		in.prelude[name] = true
	})
	return in
}

// Preinstalled reports whether name was bound by the session prelude rather
// than user code.
func (in *Interp) Preinstalled(name string) bool { return in.prelude[name] }

// Config exposes the session configuration.
func (in *Interp) Config() Config { return in.cfg }

// GC exposes the session collector.
func (in *Interp) GC() *GC { return in.gc }

// Feedback exposes the type-feedback store.
func (in *Interp) Feedback() *TypeFeedback { return in.feedback }

// Interrupt requests cancellation; the next loop back-edge or call notices.
func (in *Interp) Interrupt() { in.interrupted.Store(true) }

// RunProgram evaluates a parsed program in the global scope, so definitions
// persist across calls (the REPL relies on this).
func (in *Interp) RunProgram(prog *Block) (Value, error) {
	in.depth = 0
	in.interrupted.Store(false)
	result := Unit
	for _, e := range prog.Exprs {
		v, err := in.Eval(e, in.Globals)
		if err != nil {
			switch sig := err.(type) {
			case *breakSignal:
				return Nil, errAt(ErrTypeMismatch, sig.sp, "break outside loop")
			case *continueSignal:
				return Nil, errAt(ErrTypeMismatch, sig.sp, "continue outside loop")
			case *returnSignal:
				if sig.fromTry {
					if vo, ok := sig.val.Data.(*VariantObject); ok && vo.Name == "Err" {
						e := errAt(ErrPropagated, sig.sp, "unhandled error: %s", FormatValue(sig.val))
						e.Payload = sig.val
						return Nil, e
					}
				}
				// plain top-level return (or a propagated None) ends the
				// program with the carried value
				return sig.val, nil
			}
			return Nil, err
		}
		result = v
	}
	return result, nil
}

// alloc tracks a freshly built heap value and collects when over threshold.
func (in *Interp) alloc(v Value) Value {
	in.gc.Track(v)
	if in.gc.NeedsCollect() {
		in.gc.Collect(in.Globals, in.curEnv)
	}
	return v
}

// ----- control-flow signals -----

type breakSignal struct {
	val Value
	sp  Span
}

func (*breakSignal) Error() string { return "break" }

type continueSignal struct{ sp Span }

func (*continueSignal) Error() string { return "continue" }

type returnSignal struct {
	val     Value
	sp      Span
	fromTry bool
}

func (*returnSignal) Error() string { return "return" }

// ----- the evaluator -----

// Eval evaluates one expression in env.
func (in *Interp) Eval(e Expr, env *Env) (Value, error) {
	in.curEnv = env
	in.EvalCount++
	switch n := e.(type) {
	case *IntLit:
		return IntV(n.Value), nil
	case *FloatLit:
		return FloatV(n.Value), nil
	case *BoolLit:
		return BoolV(n.Value), nil
	case *StringLit:
		return StrV(n.Value), nil
	case *CharLit:
		return CharV(n.Value), nil
	case *NilLit:
		return Nil, nil
	case *UnitLit:
		return Unit, nil

	case *Ident:
		if v, ok := env.Get(n.Name); ok {
			in.feedback.Record(uint32(n.Span.Start), v.TypeName())
			return v, nil
		}
		return Nil, errAt(ErrUnboundName, n.Span, "undefined variable %q", n.Name)

	case *Binary:
		return in.evalBinary(n, env)

	case *Unary:
		v, err := in.Eval(n.Operand, env)
		if err != nil {
			return Nil, err
		}
		return unaryOp(n.Op, v, n.Span)

	case *Block:
		return in.evalBlock(n, NewEnv(env))

	case *Let:
		return in.evalLet(n, env)

	case *Assign:
		return in.evalAssign(n, env)

	case *If:
		cond, err := in.Eval(n.Cond, env)
		if err != nil {
			return Nil, err
		}
		if Truthy(cond) {
			return in.Eval(n.Then, env)
		}
		if n.Else != nil {
			return in.Eval(n.Else, env)
		}
		return Unit, nil

	case *Match:
		return in.evalMatch(n, env)

	case *For:
		return in.evalFor(n, env)

	case *While:
		return in.evalWhile(n, env)

	case *Break:
		sig := &breakSignal{val: Unit, sp: n.Span}
		if n.Value != nil {
			v, err := in.Eval(n.Value, env)
			if err != nil {
				return Nil, err
			}
			sig.val = v
		}
		return Nil, sig

	case *Continue:
		return Nil, &continueSignal{sp: n.Span}

	case *Return:
		sig := &returnSignal{val: Unit, sp: n.Span}
		if n.Value != nil {
			v, err := in.Eval(n.Value, env)
			if err != nil {
				return Nil, err
			}
			sig.val = v
		}
		return Nil, sig

	case *Lambda:
		c := &Closure{Params: n.Params, Body: n.Body, Env: env.Snapshot(in.Globals)}
		return in.alloc(ClosureV(c)), nil

	case *FunDecl:
		c := &Closure{Name: n.Name, Params: n.Params, Body: n.Body, Env: env.Snapshot(in.Globals)}
		env.Define(n.Name, in.alloc(ClosureV(c)), false)
		return Unit, nil

	case *Call:
		callee, err := in.Eval(n.Callee, env)
		if err != nil {
			return Nil, err
		}
		args, err := in.evalArgs(n.Args, env)
		if err != nil {
			return Nil, err
		}
		in.feedback.Record(uint32(n.Span.Start), callee.TypeName())
		return in.Apply(callee, args, n.Span)

	case *MethodCall:
		recv, err := in.Eval(n.Recv, env)
		if err != nil {
			return Nil, err
		}
		args, err := in.evalArgs(n.Args, env)
		if err != nil {
			return Nil, err
		}
		return in.DispatchMethod(recv, n.Name, args, n.Span)

	case *FieldAccess:
		recv, err := in.Eval(n.Recv, env)
		if err != nil {
			return Nil, err
		}
		in.feedback.Record(uint32(n.Span.Start), recv.TypeName())
		return fieldValue(recv, n.Name, n.Span)

	case *Index:
		recv, err := in.Eval(n.Recv, env)
		if err != nil {
			return Nil, err
		}
		idx, err := in.Eval(n.Idx, env)
		if err != nil {
			return Nil, err
		}
		return indexValue(recv, idx, n.Span)

	case *List:
		elems, err := in.evalArgs(n.Elems, env)
		if err != nil {
			return Nil, err
		}
		if elems == nil {
			elems = []Value{}
		}
		return in.alloc(ArrV(elems)), nil

	case *TupleLit:
		elems, err := in.evalArgs(n.Elems, env)
		if err != nil {
			return Nil, err
		}
		return in.alloc(TupV(elems)), nil

	case *ObjectLit:
		m := NewMapObject()
		for _, f := range n.Fields {
			v, err := in.Eval(f.Value, env)
			if err != nil {
				return Nil, err
			}
			m.Set(f.Key, v)
		}
		return in.alloc(ObjV(m)), nil

	case *RangeLit:
		start, err := in.Eval(n.Start, env)
		if err != nil {
			return Nil, err
		}
		end, err := in.Eval(n.End, env)
		if err != nil {
			return Nil, err
		}
		if start.Tag != TagInteger || end.Tag != TagInteger {
			return Nil, errAt(ErrTypeMismatch, n.Span, "range bounds must be integers, got %s and %s",
				start.TypeName(), end.TypeName())
		}
		return RangeV(start.Data.(int64), end.Data.(int64), n.Inclusive), nil

	case *StructLit:
		return in.evalStructLit(n, env)

	case *Path:
		return in.resolvePath(n, env)

	case *ClassDecl:
		return in.declareClass(n, env)
	case *StructDecl:
		return in.declareStruct(n, env)
	case *EnumDecl:
		return in.declareEnum(n, env)
	case *ActorDecl:
		return in.declareActor(n, env)

	case *ActorSend:
		_, err := in.evalActorMessage(n.Actor, n.Msg, env, n.Span)
		if err != nil {
			return Nil, err
		}
		return Unit, nil

	case *ActorQuery:
		return in.evalActorMessage(n.Actor, n.Msg, env, n.Span)

	case *Try:
		return in.evalTry(n, env)
	}
	return Nil, errAt(ErrTypeMismatch, e.Pos(), "cannot evaluate this expression")
}

func (in *Interp) evalArgs(exprs []Expr, env *Env) ([]Value, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	out := make([]Value, len(exprs))
	for i, a := range exprs {
		v, err := in.Eval(a, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalBinary evaluates one binary operation. The logical operators short
// circuit and yield the last operand evaluated, not a coerced Bool, so
// `0 || 5` is 5 and `1 && 2` is 2.
func (in *Interp) evalBinary(n *Binary, env *Env) (Value, error) {
	if n.Op == "&&" || n.Op == "||" {
		l, err := in.Eval(n.Left, env)
		if err != nil {
			return Nil, err
		}
		if n.Op == "&&" && !Truthy(l) {
			return l, nil
		}
		if n.Op == "||" && Truthy(l) {
			return l, nil
		}
		return in.Eval(n.Right, env)
	}
	l, err := in.Eval(n.Left, env)
	if err != nil {
		return Nil, err
	}
	r, err := in.Eval(n.Right, env)
	if err != nil {
		return Nil, err
	}
	in.feedback.Record(uint32(n.Span.Start), l.TypeName())
	return binaryOp(n.Op, l, r, n.Span)
}

// evalBlock evaluates statements in an already-created scope; the block's
// value is its last expression's value, Unit when empty.
func (in *Interp) evalBlock(b *Block, env *Env) (Value, error) {
	result := Unit
	for _, e := range b.Exprs {
		v, err := in.Eval(e, env)
		if err != nil {
			return Nil, err
		}
		result = v
	}
	return result, nil
}

func (in *Interp) evalLet(n *Let, env *Env) (Value, error) {
	v, err := in.Eval(n.Value, env)
	if err != nil {
		return Nil, err
	}
	if n.Pattern == nil {
		env.Define(n.Name, v, n.Mutable)
		return Unit, nil
	}
	binds, ok := MatchPattern(n.Pattern, v)
	if !ok {
		return Nil, errAt(ErrTypeMismatch, n.Span, "let pattern does not match %s value", v.TypeName())
	}
	for _, b := range binds {
		env.Define(b.Name, b.Val, n.Mutable)
	}
	return Unit, nil
}

func (in *Interp) evalAssign(n *Assign, env *Env) (Value, error) {
	v, err := in.Eval(n.Value, env)
	if err != nil {
		return Nil, err
	}
	switch target := n.Target.(type) {
	case *Ident:
		switch env.Set(target.Name, v) {
		case nil:
			return Unit, nil
		case errSetImmutable:
			return Nil, errAt(ErrImmutableAssignment, n.Span, "cannot assign to immutable binding %q", target.Name)
		default:
			return Nil, errAt(ErrUnboundName, n.Span, "undefined variable %q", target.Name)
		}
	case *FieldAccess:
		recv, err := in.Eval(target.Recv, env)
		if err != nil {
			return Nil, err
		}
		if recv.Tag != TagObject {
			return Nil, errAt(ErrTypeMismatch, n.Span, "cannot assign field on %s", recv.TypeName())
		}
		recv.Data.(*MapObject).Set(target.Name, v)
		return Unit, nil
	case *Index:
		recv, err := in.Eval(target.Recv, env)
		if err != nil {
			return Nil, err
		}
		idx, err := in.Eval(target.Idx, env)
		if err != nil {
			return Nil, err
		}
		if err := indexAssign(recv, idx, v, n.Span); err != nil {
			return Nil, err
		}
		return Unit, nil
	}
	return Nil, errAt(ErrTypeMismatch, n.Span, "invalid assignment target")
}

func (in *Interp) evalMatch(n *Match, env *Env) (Value, error) {
	scrut, err := in.Eval(n.Scrutinee, env)
	if err != nil {
		return Nil, err
	}
	for i := range n.Arms {
		arm := &n.Arms[i]
		binds, ok := MatchPattern(arm.Pattern, scrut)
		if !ok {
			continue
		}
		armEnv := NewEnv(env)
		for _, b := range binds {
			armEnv.Define(b.Name, b.Val, false)
		}
		if arm.Guard != nil {
			g, err := in.Eval(arm.Guard, armEnv)
			if err != nil {
				return Nil, err
			}
			if !Truthy(g) {
				continue
			}
		}
		return in.Eval(arm.Body, armEnv)
	}
	return Nil, errAt(ErrNonExhaustiveMatch, n.Span, "no pattern matched %s", FormatValue(scrut))
}

func (in *Interp) evalFor(n *For, env *Env) (Value, error) {
	iter, err := in.Eval(n.Iterable, env)
	if err != nil {
		return Nil, err
	}
	items, err := iterableElems(iter, n.Iterable.Pos())
	if err != nil {
		return Nil, err
	}
	for _, item := range items {
		if in.interrupted.Load() {
			return Nil, errAt(ErrInterrupted, n.Span, "interrupted")
		}
		binds, ok := MatchPattern(n.Pattern, item)
		if !ok {
			return Nil, errAt(ErrTypeMismatch, n.Pattern.Pos(), "loop pattern does not match %s element", item.TypeName())
		}
		iterEnv := NewEnv(env)
		for _, b := range binds {
			iterEnv.Define(b.Name, b.Val, false)
		}
		if _, err := in.Eval(n.Body, iterEnv); err != nil {
			switch sig := err.(type) {
			case *breakSignal:
				return sig.val, nil
			case *continueSignal:
				continue
			}
			return Nil, err
		}
	}
	return Unit, nil
}

func (in *Interp) evalWhile(n *While, env *Env) (Value, error) {
	for {
		if in.interrupted.Load() {
			return Nil, errAt(ErrInterrupted, n.Span, "interrupted")
		}
		cond, err := in.Eval(n.Cond, env)
		if err != nil {
			return Nil, err
		}
		if !Truthy(cond) {
			return Unit, nil
		}
		if _, err := in.Eval(n.Body, NewEnv(env)); err != nil {
			switch sig := err.(type) {
			case *breakSignal:
				return sig.val, nil
			case *continueSignal:
				continue
			}
			return Nil, err
		}
	}
}

func (in *Interp) evalTry(n *Try, env *Env) (Value, error) {
	v, err := in.Eval(n.Operand, env)
	if err != nil {
		return Nil, err
	}
	if v.Tag == TagVariant {
		vo := v.Data.(*VariantObject)
		switch vo.Name {
		case "Ok", "Some":
			if len(vo.Payload) == 1 {
				return vo.Payload[0], nil
			}
			return Unit, nil
		case "Err", "None":
			return Nil, &returnSignal{val: v, sp: n.Span, fromTry: true}
		}
	}
	return Nil, errAt(ErrTypeMismatch, n.Span, "the ? operator needs a Result or Option, got %s", v.TypeName())
}

// ----- calls -----

// Apply invokes a callable value. Closures with a compiled Proto execute on
// the VM; AST closures evaluate here; natives run directly.
func (in *Interp) Apply(callee Value, args []Value, sp Span) (Value, error) {
	switch callee.Tag {
	case TagNative:
		nat := callee.Data.(*Native)
		if nat.Arity >= 0 && len(args) != nat.Arity {
			return Nil, errAt(ErrArity, sp, "%s expects %d arguments, got %d", nat.Name, nat.Arity, len(args))
		}
		v, err := nat.Fn(in, args, sp)
		if err != nil {
			e := AsError(err)
			if e.Span == (Span{}) {
				e.Span = sp
			}
			if e.NativeName == "" {
				e.NativeName = nat.Name
			}
			return Nil, e
		}
		return v, nil

	case TagClosure:
		c := callee.Data.(*Closure)
		if c.Proto != nil {
			return runProtoClosure(in, c, args, sp)
		}
		return in.applyAST(c, args, sp)
	}
	return Nil, errAt(ErrTypeMismatch, sp, "%s is not callable", callee.TypeName())
}

func (in *Interp) applyAST(c *Closure, args []Value, sp Span) (Value, error) {
	if in.interrupted.Load() {
		return Nil, errAt(ErrInterrupted, sp, "interrupted")
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.cfg.MaxDepth {
		return Nil, errAt(ErrStackOverflow, sp, "call depth exceeded %d", in.cfg.MaxDepth)
	}

	env := NewEnv(c.Env)
	if c.Name != "" {
		env.Define(c.Name, ClosureV(c), false)
	}
	if err := bindParams(in, env, c.Params, args, c.Name, sp); err != nil {
		return Nil, err
	}
	v, err := in.Eval(c.Body, env)
	if err != nil {
		if sig, ok := err.(*returnSignal); ok {
			return sig.val, nil
		}
		if e, ok := err.(*Error); ok {
			e.Frames = append(e.Frames, callFrame(c.Name, -1, sp, env))
		}
		return Nil, err
	}
	return v, nil
}

// bindParams binds declared parameters to arguments, evaluating defaults for
// missing trailing arguments.
func bindParams(in *Interp, env *Env, params []Param, args []Value, fnName string, sp Span) error {
	if fnName == "" {
		fnName = "<lambda>"
	}
	if len(args) > len(params) {
		return errAt(ErrArity, sp, "%s expects at most %d arguments, got %d", fnName, len(params), len(args))
	}
	for i, p := range params {
		if i < len(args) {
			env.Define(p.Name, args[i], false)
			continue
		}
		if p.Default == nil {
			return errAt(ErrArity, sp, "%s expects argument %q", fnName, p.Name)
		}
		d, err := in.Eval(p.Default, env)
		if err != nil {
			return err
		}
		env.Define(p.Name, d, false)
	}
	return nil
}

// callFrame captures a stack-trace frame with a few locals for context.
func callFrame(name string, ip int, sp Span, env *Env) Frame {
	f := Frame{FnName: name, IP: ip, Span: sp}
	const maxLocals = 4
	for _, n := range env.Names() {
		if len(f.Locals) >= maxLocals {
			break
		}
		if v, ok := env.Get(n); ok {
			repr := FormatValue(v)
			if len(repr) > 40 {
				repr = repr[:37] + "..."
			}
			f.Locals = append(f.Locals, [2]string{n, repr})
		}
	}
	return f
}

// Println writes a display-formatted line to the session output.
func (in *Interp) Println(v Value) {
	fmt.Fprintln(in.Out, DisplayValue(v))
}
