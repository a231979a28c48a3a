// repl.go: REPL command and mode engine.
//
// The CLI owns the terminal; this layer owns everything testable: command
// dispatch, mode switching, and the per-mode evaluation wrappers. Commands
// start with ':' and never reach the language grammar.
package ruchy

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// replModes are the accepted :mode arguments. Every mode changes the prompt;
// a few also wrap evaluation.
var replModes = []string{"normal", "test", "debug", "shell", "pkg", "help", "sql", "math", "time"}

// REPL drives one interactive session.
type REPL struct {
	s    *Session
	mode string
}

// NewREPL wraps a session in REPL state.
func NewREPL(s *Session) *REPL {
	return &REPL{s: s, mode: "normal"}
}

// Mode reports the current mode.
func (r *REPL) Mode() string { return r.mode }

// Prompt returns the prompt string for the current mode.
func (r *REPL) Prompt() string {
	if r.mode == "normal" {
		return "ruchy> "
	}
	return r.mode + "> "
}

// Dispatch handles one complete input. It returns the text to display and
// whether the caller should exit.
func (r *REPL) Dispatch(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, ":") {
		return r.command(trimmed)
	}
	return r.eval(input), false
}

func (r *REPL) command(input string) (string, bool) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case ":quit", ":q":
		return "", true
	case ":help":
		return replHelp, false
	case ":env":
		return r.envReport(), false
	case ":type":
		if arg == "" {
			return "usage: :type <expr>", false
		}
		v, err := r.s.Eval(arg)
		if err != nil {
			return "error: " + err.Error(), false
		}
		return v.TypeName(), false
	case ":ast":
		if arg == "" {
			return "usage: :ast <expr>", false
		}
		prog, err := Parse(arg)
		if err != nil {
			return "error: " + AsError(err).WithSource(arg).Error(), false
		}
		var parts []string
		for _, e := range prog.Exprs {
			parts = append(parts, dumpAST(e))
		}
		return strings.Join(parts, "\n"), false
	case ":inspect":
		if arg == "" {
			return "usage: :inspect <name>", false
		}
		return r.inspect(arg), false
	case ":mode":
		if arg == "" {
			return "current mode: " + r.mode, false
		}
		for _, m := range replModes {
			if m == arg {
				r.mode = arg
				return "mode: " + arg, false
			}
		}
		return fmt.Sprintf("unknown mode %q (available: %s)", arg, strings.Join(replModes, ", ")), false
	}
	return fmt.Sprintf("unknown command %s (try :help)", cmd), false
}

const replHelp = `REPL commands:
  :env              List session bindings
  :type <expr>      Evaluate and print the value's type
  :ast <expr>       Print the parsed syntax tree
  :inspect <name>   Show details of a binding
  :mode <name>      Switch mode (normal, test, debug, shell, pkg, help, sql, math, time)
  :help             This text
  :quit             Exit`

func (r *REPL) envReport() string {
	in := r.s.Interp()
	var names []string
	in.Globals.ForEach(func(name string, _ Value, _ bool) {
		if in.Preinstalled(name) {
			return
		}
		names = append(names, name)
	})
	sort.Strings(names)
	if len(names) == 0 {
		return "(no bindings)"
	}
	var b strings.Builder
	for _, n := range names {
		v, _ := in.Globals.Get(n)
		repr := FormatValue(v)
		if len(repr) > 60 {
			repr = repr[:57] + "..."
		}
		fmt.Fprintf(&b, "%s: %s = %s\n", n, v.TypeName(), repr)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *REPL) inspect(name string) string {
	in := r.s.Interp()
	v, ok := in.Globals.Get(name)
	if !ok {
		return fmt.Sprintf("no binding named %q", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", name, v.TypeName())
	fmt.Fprintf(&b, "value: %s\n", FormatValue(v))
	switch v.Tag {
	case TagObject:
		m := v.Data.(*MapObject)
		fmt.Fprintf(&b, "fields: %s\n", strings.Join(m.Keys, ", "))
	case TagArray:
		fmt.Fprintf(&b, "length: %d\n", len(v.Data.(*ArrayObject).Elems))
	case TagClosure:
		c := v.Data.(*Closure)
		fmt.Fprintf(&b, "arity: %d\n", c.Arity())
		if c.Proto != nil {
			b.WriteString("compiled: yes\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *REPL) eval(src string) string {
	switch r.mode {
	case "debug":
		return r.evalDebug(src)
	case "test":
		return r.evalTest(src)
	case "time":
		start := time.Now()
		out := r.evalNormal(src)
		return out + fmt.Sprintf("\nelapsed: %s", time.Since(start).Round(time.Microsecond))
	case "shell":
		out, err := exec.Command("sh", "-c", src).CombinedOutput()
		if err != nil {
			return strings.TrimRight(string(out), "\n") + "\n" + err.Error()
		}
		return strings.TrimRight(string(out), "\n")
	case "help":
		return replHelp
	}
	return r.evalNormal(src)
}

func (r *REPL) evalNormal(src string) string {
	v, err := r.s.Eval(src)
	if err != nil {
		return "error: " + err.Error()
	}
	if v.Tag == TagUnit {
		return ""
	}
	return FormatValue(v)
}

// evalDebug wraps evaluation with a timing and allocation trace.
func (r *REPL) evalDebug(src string) string {
	in := r.s.Interp()
	before := in.EvalCount
	gcBefore := in.GC().Stats()
	start := time.Now()
	out := r.evalNormal(src)
	elapsed := time.Since(start)
	gcAfter := in.GC().Stats()
	cache := in.Feedback().Stats()
	trace := fmt.Sprintf("-- %s, %d nodes, %d tracked objects (%d collections), cache %d/%d hits",
		elapsed.Round(time.Microsecond), in.EvalCount-before,
		gcAfter.TrackedObjects, gcAfter.Collections-gcBefore.Collections,
		cache.Hits, cache.Hits+cache.Misses)
	if out == "" {
		return trace
	}
	return out + "\n" + trace
}

// evalTest reports assertion results instead of values.
func (r *REPL) evalTest(src string) string {
	v, err := r.s.Eval(src)
	if err != nil {
		e := AsError(err)
		if e.Kind == ErrNative && strings.Contains(e.Msg, "assertion failed") {
			return "FAIL: " + e.Msg
		}
		return "error: " + err.Error()
	}
	if strings.Contains(src, "assert") {
		return "PASS"
	}
	if v.Tag == TagUnit {
		return ""
	}
	return FormatValue(v)
}

// ----- AST dump -----

func dumpAST(e Expr) string {
	switch n := e.(type) {
	case *IntLit:
		return fmt.Sprintf("(int %d)", n.Value)
	case *FloatLit:
		return fmt.Sprintf("(float %g)", n.Value)
	case *BoolLit:
		return fmt.Sprintf("(bool %t)", n.Value)
	case *StringLit:
		return fmt.Sprintf("(str %q)", n.Value)
	case *CharLit:
		return fmt.Sprintf("(char %q)", string(n.Value))
	case *NilLit:
		return "(nil)"
	case *UnitLit:
		return "(unit)"
	case *Ident:
		return n.Name
	case *Path:
		return fmt.Sprintf("(path %s %s)", n.TypeName, n.Name)
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", n.Op, dumpAST(n.Left), dumpAST(n.Right))
	case *Unary:
		return fmt.Sprintf("(%s %s)", n.Op, dumpAST(n.Operand))
	case *Block:
		return "(block " + dumpList(n.Exprs) + ")"
	case *Let:
		kw := "let"
		if n.Mutable {
			kw = "let-mut"
		}
		if n.Pattern != nil {
			return fmt.Sprintf("(%s %s %s)", kw, dumpPattern(n.Pattern), dumpAST(n.Value))
		}
		return fmt.Sprintf("(%s %s %s)", kw, n.Name, dumpAST(n.Value))
	case *Assign:
		return fmt.Sprintf("(set %s %s)", dumpAST(n.Target), dumpAST(n.Value))
	case *If:
		if n.Else != nil {
			return fmt.Sprintf("(if %s %s %s)", dumpAST(n.Cond), dumpAST(n.Then), dumpAST(n.Else))
		}
		return fmt.Sprintf("(if %s %s)", dumpAST(n.Cond), dumpAST(n.Then))
	case *Match:
		var arms []string
		for _, a := range n.Arms {
			arm := fmt.Sprintf("(%s %s)", dumpPattern(a.Pattern), dumpAST(a.Body))
			if a.Guard != nil {
				arm = fmt.Sprintf("(%s if %s %s)", dumpPattern(a.Pattern), dumpAST(a.Guard), dumpAST(a.Body))
			}
			arms = append(arms, arm)
		}
		return fmt.Sprintf("(match %s %s)", dumpAST(n.Scrutinee), strings.Join(arms, " "))
	case *For:
		return fmt.Sprintf("(for %s %s %s)", dumpPattern(n.Pattern), dumpAST(n.Iterable), dumpAST(n.Body))
	case *While:
		return fmt.Sprintf("(while %s %s)", dumpAST(n.Cond), dumpAST(n.Body))
	case *Break:
		if n.Value != nil {
			return fmt.Sprintf("(break %s)", dumpAST(n.Value))
		}
		return "(break)"
	case *Continue:
		return "(continue)"
	case *Return:
		if n.Value != nil {
			return fmt.Sprintf("(return %s)", dumpAST(n.Value))
		}
		return "(return)"
	case *Lambda:
		return fmt.Sprintf("(lambda (%s) %s)", paramNames(n.Params), dumpAST(n.Body))
	case *FunDecl:
		return fmt.Sprintf("(fun %s (%s) %s)", n.Name, paramNames(n.Params), dumpAST(n.Body))
	case *Call:
		return fmt.Sprintf("(call %s %s)", dumpAST(n.Callee), dumpList(n.Args))
	case *MethodCall:
		return fmt.Sprintf("(method %s %s %s)", dumpAST(n.Recv), n.Name, dumpList(n.Args))
	case *FieldAccess:
		return fmt.Sprintf("(field %s %s)", dumpAST(n.Recv), n.Name)
	case *Index:
		return fmt.Sprintf("(index %s %s)", dumpAST(n.Recv), dumpAST(n.Idx))
	case *List:
		return "(list " + dumpList(n.Elems) + ")"
	case *TupleLit:
		return "(tuple " + dumpList(n.Elems) + ")"
	case *ObjectLit:
		var fields []string
		for _, f := range n.Fields {
			fields = append(fields, fmt.Sprintf("(%s %s)", f.Key, dumpAST(f.Value)))
		}
		return "(object " + strings.Join(fields, " ") + ")"
	case *RangeLit:
		op := "range"
		if n.Inclusive {
			op = "range-incl"
		}
		return fmt.Sprintf("(%s %s %s)", op, dumpAST(n.Start), dumpAST(n.End))
	case *StructLit:
		var fields []string
		for _, f := range n.Fields {
			fields = append(fields, fmt.Sprintf("(%s %s)", f.Key, dumpAST(f.Value)))
		}
		return fmt.Sprintf("(struct-lit %s %s)", n.Name, strings.Join(fields, " "))
	case *ClassDecl:
		return fmt.Sprintf("(class %s)", n.Name)
	case *StructDecl:
		return fmt.Sprintf("(struct %s)", n.Name)
	case *EnumDecl:
		return fmt.Sprintf("(enum %s)", n.Name)
	case *ActorDecl:
		return fmt.Sprintf("(actor %s)", n.Name)
	case *ActorSend:
		return fmt.Sprintf("(send %s %s)", dumpAST(n.Actor), dumpAST(n.Msg))
	case *ActorQuery:
		return fmt.Sprintf("(ask %s %s)", dumpAST(n.Actor), dumpAST(n.Msg))
	case *Try:
		return fmt.Sprintf("(try %s)", dumpAST(n.Operand))
	}
	return "(?)"
}

func dumpList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = dumpAST(e)
	}
	return strings.Join(parts, " ")
}

func paramNames(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name
	}
	return strings.Join(parts, " ")
}

func dumpPattern(p Pattern) string {
	switch n := p.(type) {
	case *PatWildcard:
		return "_"
	case *PatIdent:
		return n.Name
	case *PatLiteral:
		return FormatValue(n.Lit)
	case *PatTuple:
		parts := make([]string, len(n.Elems))
		for i, el := range n.Elems {
			parts[i] = dumpPattern(el)
		}
		return "(tuple-pat " + strings.Join(parts, " ") + ")"
	case *PatList:
		parts := make([]string, len(n.Elems))
		for i, el := range n.Elems {
			parts[i] = dumpPattern(el)
		}
		s := "(list-pat " + strings.Join(parts, " ")
		if n.HasRest {
			if n.Rest != "" {
				s += " ..." + n.Rest
			} else {
				s += " ..."
			}
		}
		return s + ")"
	case *PatStruct:
		var fields []string
		for _, f := range n.Fields {
			fields = append(fields, fmt.Sprintf("(%s %s)", f.Name, dumpPattern(f.Pat)))
		}
		return fmt.Sprintf("(struct-pat %s %s)", n.TypeName, strings.Join(fields, " "))
	case *PatCtor:
		if len(n.Args) == 0 {
			return "(ctor-pat " + patName(n) + ")"
		}
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			parts[i] = dumpPattern(a)
		}
		return fmt.Sprintf("(ctor-pat %s %s)", patName(n), strings.Join(parts, " "))
	case *PatOr:
		parts := make([]string, len(n.Alts))
		for i, a := range n.Alts {
			parts[i] = dumpPattern(a)
		}
		return "(or-pat " + strings.Join(parts, " ") + ")"
	}
	return "_"
}

func patName(n *PatCtor) string {
	if n.TypeName != "" {
		return n.TypeName + "::" + n.Name
	}
	return n.Name
}
