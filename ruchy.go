// ruchy.go: the embedding surface.
//
// A Session wraps one Interp and runs source text through either engine.
// Definitions persist across Eval calls, which is what the REPL builds on.
// The package-level helpers run one program in a throwaway session.
package ruchy

import "fmt"

// Session is a persistent execution context.
type Session struct {
	in *Interp
}

// NewSession builds a session configured from the environment.
func NewSession() *Session { return NewSessionWith(LoadConfig()) }

// NewSessionWith builds a session with an explicit config.
func NewSessionWith(cfg Config) *Session {
	return &Session{in: NewInterpWith(cfg)}
}

// Interp exposes the underlying session state.
func (s *Session) Interp() *Interp { return s.in }

// Eval parses and evaluates src on the tree-walker. Parse errors from
// interactive input report incompleteness so a REPL can keep reading.
func (s *Session) Eval(src string) (Value, error) {
	prog, err := ParseInteractive(src)
	if err != nil {
		return Nil, AsError(err).WithSource(src)
	}
	v, err := s.in.RunProgram(prog)
	if err != nil {
		return Nil, AsError(err).WithSource(src)
	}
	return v, nil
}

// Compile parses and compiles src, then executes the bytecode.
func (s *Session) Compile(src string) (Value, error) {
	prog, err := ParseInteractive(src)
	if err != nil {
		return Nil, AsError(err).WithSource(src)
	}
	proto, err := CompileProgram(prog)
	if err != nil {
		return Nil, AsError(err).WithSource(src)
	}
	if s.in.cfg.DebugBytecode {
		fmt.Fprint(s.in.Out, proto.Chunk.Disassemble(proto.Name))
	}
	v, err := runScript(s.in, proto)
	if err != nil {
		return Nil, AsError(err).WithSource(src)
	}
	return v, nil
}

// Disassemble compiles src and renders its bytecode without running it.
func (s *Session) Disassemble(src string) (string, error) {
	prog, err := Parse(src)
	if err != nil {
		return "", AsError(err).WithSource(src)
	}
	proto, err := CompileProgram(prog)
	if err != nil {
		return "", AsError(err).WithSource(src)
	}
	return proto.Chunk.Disassemble(proto.Name), nil
}

// RunSource evaluates one program in a fresh session on the tree-walker.
func RunSource(src string) (Value, error) {
	return NewSession().Eval(src)
}

// CompileAndRun evaluates one program in a fresh session on the VM.
func CompileAndRun(src string) (Value, error) {
	return NewSession().Compile(src)
}
