// interp_class.go: nominal types: classes, structs, enums, actors.
//
// Classes lower to tagged objects: an instance is a MapObject whose "__type"
// entry names the class, plus the declared fields in declaration order.
// Methods never live on the instance; dispatch looks them up in the session
// registry by type name. Constructors are associated functions reachable as
// Type::name. Structs are classes without methods; actors are classes with
// receive handlers.
package ruchy

type classInfo struct {
	name    string
	fields  []FieldDef
	methods map[string]*Closure
	statics map[string]*Closure
	ctors   map[string]Value
	env     *Env // declaration-scope snapshot for defaults
	isActor bool
}

type enumInfo struct {
	name     string
	variants map[string]int // name -> arity
}

type actorInfo struct {
	class    *classInfo
	handlers map[string]*ActorHandler
	env      *Env
}

func (in *Interp) declareClass(n *ClassDecl, env *Env) (Value, error) {
	snap := env.Snapshot(in.Globals)
	ci := &classInfo{
		name:    n.Name,
		fields:  n.Fields,
		methods: map[string]*Closure{},
		statics: map[string]*Closure{},
		ctors:   map[string]Value{},
		env:     snap,
	}
	for i := range n.Methods {
		m := &n.Methods[i]
		c := &Closure{Name: n.Name + "::" + m.Name, Params: m.Params, Body: m.Body, Env: snap}
		if m.Static {
			ci.statics[m.Name] = c
		} else {
			ci.methods[m.Name] = c
		}
	}
	for i := range n.Ctors {
		ct := &n.Ctors[i]
		c := &Closure{Name: n.Name + "::" + ct.Name, Params: ct.Params, Body: ct.Body, Env: snap}
		ci.ctors[ct.Name] = NativeV(in.userCtor(ci, c))
	}
	if _, ok := ci.ctors["new"]; !ok {
		ci.ctors["new"] = NativeV(in.defaultCtor(ci))
	}
	in.classes[n.Name] = ci
	return Unit, nil
}

func (in *Interp) declareStruct(n *StructDecl, env *Env) (Value, error) {
	snap := env.Snapshot(in.Globals)
	ci := &classInfo{
		name:    n.Name,
		fields:  n.Fields,
		methods: map[string]*Closure{},
		statics: map[string]*Closure{},
		ctors:   map[string]Value{},
		env:     snap,
	}
	ci.ctors["new"] = NativeV(in.defaultCtor(ci))
	in.classes[n.Name] = ci
	return Unit, nil
}

func (in *Interp) declareEnum(n *EnumDecl, env *Env) (Value, error) {
	ei := &enumInfo{name: n.Name, variants: map[string]int{}}
	for _, v := range n.Variants {
		ei.variants[v.Name] = v.Arity
		env.Define(v.Name, in.variantValue(n.Name, v.Name, v.Arity), false)
	}
	in.enums[n.Name] = ei
	return Unit, nil
}

func (in *Interp) declareActor(n *ActorDecl, env *Env) (Value, error) {
	snap := env.Snapshot(in.Globals)
	ci := &classInfo{
		name:    n.Name,
		fields:  n.Fields,
		methods: map[string]*Closure{},
		statics: map[string]*Closure{},
		ctors:   map[string]Value{},
		env:     snap,
		isActor: true,
	}
	ci.ctors["new"] = NativeV(in.defaultCtor(ci))
	ai := &actorInfo{class: ci, handlers: map[string]*ActorHandler{}, env: snap}
	for i := range n.Handlers {
		h := &n.Handlers[i]
		ai.handlers[h.Message] = h
	}
	in.classes[n.Name] = ci
	in.actors[n.Name] = ai
	return Unit, nil
}

// variantValue produces what a bare variant name denotes: the unit value for
// arity 0, a constructor function otherwise.
func (in *Interp) variantValue(typeName, name string, arity int) Value {
	if arity == 0 {
		return VariantV(typeName, name, nil)
	}
	return NativeV(&Native{
		Name:  typeName + "::" + name,
		Arity: arity,
		Fn: func(in *Interp, args []Value, sp Span) (Value, error) {
			payload := make([]Value, len(args))
			copy(payload, args)
			return in.alloc(VariantV(typeName, name, payload)), nil
		},
	})
}

// userCtor wraps a declared constructor: allocate the instance, run the body
// with self bound to it, and yield the instance whatever the body evaluates
// to. Arity follows the declared parameters.
func (in *Interp) userCtor(ci *classInfo, body *Closure) *Native {
	return &Native{
		Name:  body.Name,
		Arity: -1,
		Fn: func(in *Interp, args []Value, sp Span) (Value, error) {
			inst, err := in.blankInstance(ci, sp)
			if err != nil {
				return Nil, err
			}
			if _, err := in.ApplyWithSelf(body, inst, args, sp); err != nil {
				return Nil, err
			}
			return inst, nil
		},
	}
}

// blankInstance builds the instance a constructor body fills in: declared
// defaults evaluate up front, fields without one start as Nil.
func (in *Interp) blankInstance(ci *classInfo, sp Span) (Value, error) {
	m := NewMapObject()
	m.Set("__type", StrV(ci.name))
	for _, f := range ci.fields {
		if f.Default == nil {
			m.Set(f.Name, Nil)
			continue
		}
		d, err := in.Eval(f.Default, ci.env)
		if err != nil {
			return Nil, err
		}
		m.Set(f.Name, d)
	}
	return in.alloc(ObjV(m)), nil
}

// defaultCtor synthesizes Type::new taking the declared fields positionally,
// with declared defaults filling omitted trailing arguments.
func (in *Interp) defaultCtor(ci *classInfo) *Native {
	return &Native{
		Name:  ci.name + "::new",
		Arity: -1,
		Fn: func(in *Interp, args []Value, sp Span) (Value, error) {
			if len(args) > len(ci.fields) {
				return Nil, errAt(ErrArity, sp, "%s::new expects at most %d arguments, got %d",
					ci.name, len(ci.fields), len(args))
			}
			provided := map[string]Value{}
			for i, a := range args {
				provided[ci.fields[i].Name] = a
			}
			return in.instantiate(ci, provided, sp)
		},
	}
}

// instantiate builds a tagged instance, filling omitted fields from their
// declared defaults.
func (in *Interp) instantiate(ci *classInfo, provided map[string]Value, sp Span) (Value, error) {
	m := NewMapObject()
	m.Set("__type", StrV(ci.name))
	for _, f := range ci.fields {
		if v, ok := provided[f.Name]; ok {
			m.Set(f.Name, v)
			continue
		}
		if f.Default == nil {
			return Nil, errAt(ErrTypeMismatch, sp, "%s is missing field %q", ci.name, f.Name)
		}
		d, err := in.Eval(f.Default, ci.env)
		if err != nil {
			return Nil, err
		}
		m.Set(f.Name, d)
	}
	return in.alloc(ObjV(m)), nil
}

func (in *Interp) evalStructLit(n *StructLit, env *Env) (Value, error) {
	ci, ok := in.classes[n.Name]
	if !ok {
		return Nil, errAt(ErrUnboundName, n.Span, "unknown type %q", n.Name)
	}
	provided := map[string]Value{}
	for _, f := range n.Fields {
		known := false
		for _, fd := range ci.fields {
			if fd.Name == f.Key {
				known = true
				break
			}
		}
		if !known {
			return Nil, errAt(ErrTypeMismatch, f.Value.Pos(), "%s has no field %q", n.Name, f.Key)
		}
		v, err := in.Eval(f.Value, env)
		if err != nil {
			return Nil, err
		}
		provided[f.Key] = v
	}
	return in.instantiate(ci, provided, n.Span)
}

// resolvePath evaluates Type::name: enum variants first, then constructors
// and static methods.
func (in *Interp) resolvePath(n *Path, env *Env) (Value, error) {
	if ei, ok := in.enums[n.TypeName]; ok {
		if arity, ok := ei.variants[n.Name]; ok {
			return in.variantValue(n.TypeName, n.Name, arity), nil
		}
		return Nil, errAt(ErrUnboundName, n.Span, "enum %s has no variant %q", n.TypeName, n.Name)
	}
	if ci, ok := in.classes[n.TypeName]; ok {
		if ctor, ok := ci.ctors[n.Name]; ok {
			return ctor, nil
		}
		if st, ok := ci.statics[n.Name]; ok {
			return ClosureV(st), nil
		}
		return Nil, errAt(ErrUnboundName, n.Span, "%s has no associated function %q", n.TypeName, n.Name)
	}
	if n.TypeName == "Option" || n.TypeName == "Result" {
		if v, ok := env.Get(n.Name); ok {
			return v, nil
		}
	}
	return Nil, errAt(ErrUnboundName, n.Span, "unknown type %q", n.TypeName)
}

// classMethod finds the instance method table entry for a tagged object.
func (in *Interp) classMethod(typeName, method string) (*Closure, bool) {
	ci, ok := in.classes[typeName]
	if !ok {
		return nil, false
	}
	c, ok := ci.methods[method]
	return c, ok
}

// ApplyWithSelf invokes an instance method or handler body with self bound.
func (in *Interp) ApplyWithSelf(c *Closure, self Value, args []Value, sp Span) (Value, error) {
	if in.interrupted.Load() {
		return Nil, errAt(ErrInterrupted, sp, "interrupted")
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.cfg.MaxDepth {
		return Nil, errAt(ErrStackOverflow, sp, "call depth exceeded %d", in.cfg.MaxDepth)
	}
	env := NewEnv(c.Env)
	env.Define("self", self, false)
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

// evalActorMessage delivers a message. Send and ask share this path; ask
// returns the handler's value, send discards it. Delivery is synchronous on
// the calling thread.
func (in *Interp) evalActorMessage(actorExpr, msgExpr Expr, env *Env, sp Span) (Value, error) {
	actor, err := in.Eval(actorExpr, env)
	if err != nil {
		return Nil, err
	}
	var name string
	var args []Value
	switch msg := msgExpr.(type) {
	case *Ident:
		name = msg.Name
	case *Call:
		callee, ok := msg.Callee.(*Ident)
		if !ok {
			return Nil, errAt(ErrTypeMismatch, msg.Pos(), "invalid actor message")
		}
		name = callee.Name
		args, err = in.evalArgs(msg.Args, env)
		if err != nil {
			return Nil, err
		}
	case *Path:
		name = msg.Name
	default:
		return Nil, errAt(ErrTypeMismatch, msgExpr.Pos(), "invalid actor message")
	}

	return in.deliverMessage(actor, name, args, sp)
}

// deliverMessage runs the actor's handler for name with self bound to the
// actor instance.
func (in *Interp) deliverMessage(actor Value, name string, args []Value, sp Span) (Value, error) {
	if actor.Tag != TagObject {
		return Nil, errAt(ErrTypeMismatch, sp, "cannot send a message to %s", actor.TypeName())
	}
	ai, ok := in.actors[actor.TypeName()]
	if !ok {
		return Nil, errAt(ErrTypeMismatch, sp, "%s is not an actor", actor.TypeName())
	}
	h, ok := ai.handlers[name]
	if !ok {
		return Nil, errAt(ErrTypeMismatch, sp, "actor %s has no handler for %s", ai.class.name, name)
	}
	body := &Closure{Name: ai.class.name + "::" + h.Message, Params: h.Params, Body: h.Body, Env: ai.env}
	return in.ApplyWithSelf(body, actor, args, sp)
}
