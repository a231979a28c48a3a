// env.go: lexical environments.
//
// An Env is one scope frame with a parent link; the chain is the scope stack.
// Define always writes into the current frame (shadowing any outer binding);
// Set rewrites the innermost existing occurrence and fails on a missing or
// immutable binding; Get walks innermost-out. This discipline is what keeps
// a callee's `let x` from ever touching a caller's `x`.
package ruchy

import "errors"

// Sentinel errors from Env.Set; callers attach span and kind.
var (
	errSetMissing   = errors.New("undefined variable")
	errSetImmutable = errors.New("immutable binding")
)

type binding struct {
	value   Value
	mutable bool
}

// Env is a lexical environment frame. Lookups walk parent-ward.
type Env struct {
	parent *Env
	table  map[string]binding
}

// NewEnv creates a new frame with the given parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, table: make(map[string]binding)}
}

// Parent exposes the enclosing frame.
func (e *Env) Parent() *Env { return e.parent }

// Define binds name in the current frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value, mutable bool) {
	e.table[name] = binding{value: v, mutable: mutable}
}

// Set updates the nearest existing binding of name. It never defines.
func (e *Env) Set(name string, v Value) error {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.table[name]; ok {
			if !b.mutable {
				return errSetImmutable
			}
			s.table[name] = binding{value: v, mutable: true}
			return nil
		}
	}
	return errSetMissing
}

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.table[name]; ok {
			return b.value, true
		}
	}
	return Value{}, false
}

// Mutable reports whether the nearest binding of name is mutable. The second
// result is false when the name is unbound.
func (e *Env) Mutable(name string) (bool, bool) {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.table[name]; ok {
			return b.mutable, true
		}
	}
	return false, false
}

// Snapshot flattens every local binding slot between this frame and the
// boundary frame (exclusive) into a single fresh frame parented on boundary.
// Heap payloads stay shared; binding slots are copied, so rebinding a local
// in the original chain after the snapshot does not affect it. This is the
// closure-capture rule: capture by value of the reference.
func (e *Env) Snapshot(boundary *Env) *Env {
	var scopes []*Env
	for s := e; s != nil && s != boundary; s = s.parent {
		scopes = append(scopes, s)
	}
	snap := NewEnv(boundary)
	for i := len(scopes) - 1; i >= 0; i-- {
		for k, b := range scopes[i].table {
			snap.table[k] = b
		}
	}
	return snap
}

// ForEach visits every binding visible from this frame, innermost first.
// Shadowed outer bindings are still visited; the visitor sees the innermost
// occurrence first.
func (e *Env) ForEach(fn func(name string, v Value, mutable bool)) {
	for s := e; s != nil; s = s.parent {
		for k, b := range s.table {
			fn(k, b.value, b.mutable)
		}
	}
}

// Names lists the names bound in this frame only.
func (e *Env) Names() []string {
	out := make([]string, 0, len(e.table))
	for k := range e.table {
		out = append(out, k)
	}
	return out
}
