// gc.go: conservative tracking collector.
//
// The host garbage collector owns the memory; this layer tracks heap values
// the program allocates so the runtime can report live-set statistics and
// drop dead entries deterministically. Tracking keys on payload identity
// (the *ArrayObject, *MapObject, ... pointer), so aliases count once.
//
// A collection marks every payload reachable from the root environments and
// any registered extra roots (VM value stacks), then sweeps unmarked entries
// from the tracked set. Collections trigger automatically once the estimated
// tracked bytes cross the threshold, or explicitly via gc_collect().
package ruchy

// GCStats is the report surfaced by gc_stats() and the REPL's debug mode.
type GCStats struct {
	TrackedObjects int
	TrackedBytes   int
	Collections    int
	FreedObjects   int
	FreedBytes     int
}

// GC is the conservative collector state for one session.
type GC struct {
	enabled   bool
	threshold int
	tracked   map[any]int // payload pointer -> size estimate
	bytes     int
	stats     GCStats

	// extraRoots are value slices owned by running VM frames.
	extraRoots []*[]Value
}

// NewGC creates a collector with the given byte threshold.
func NewGC(threshold int) *GC {
	return &GC{enabled: true, threshold: threshold, tracked: map[any]int{}}
}

// SetEnabled toggles automatic collection. Tracking continues either way.
func (g *GC) SetEnabled(on bool) { g.enabled = on }

// Enabled reports whether automatic collection is active.
func (g *GC) Enabled() bool { return g.enabled }

// Track registers a freshly allocated value's payload.
func (g *GC) Track(v Value) {
	key, size := payloadKey(v)
	if key == nil {
		return
	}
	if _, ok := g.tracked[key]; ok {
		return
	}
	g.tracked[key] = size
	g.bytes += size
}

// NeedsCollect reports whether tracked bytes crossed the threshold.
func (g *GC) NeedsCollect() bool {
	return g.enabled && g.bytes >= g.threshold
}

// AddRoots registers a VM value stack for the duration of a run. The returned
// func unregisters it.
func (g *GC) AddRoots(stack *[]Value) func() {
	g.extraRoots = append(g.extraRoots, stack)
	return func() {
		for i, s := range g.extraRoots {
			if s == stack {
				g.extraRoots = append(g.extraRoots[:i], g.extraRoots[i+1:]...)
				return
			}
		}
	}
}

// Collect marks from the given environments plus registered extra roots and
// sweeps everything unmarked from the tracked set.
func (g *GC) Collect(roots ...*Env) {
	m := &marker{objs: map[any]bool{}, envs: map[*Env]bool{}}
	for _, r := range roots {
		m.markEnv(r)
	}
	for _, stack := range g.extraRoots {
		for _, v := range *stack {
			m.markValue(v)
		}
	}
	for key, size := range g.tracked {
		if !m.objs[key] {
			delete(g.tracked, key)
			g.bytes -= size
			g.stats.FreedObjects++
			g.stats.FreedBytes += size
		}
	}
	g.stats.Collections++
}

// Stats snapshots the collector counters.
func (g *GC) Stats() GCStats {
	st := g.stats
	st.TrackedObjects = len(g.tracked)
	st.TrackedBytes = g.bytes
	return st
}

// payloadKey extracts the identity pointer and a size estimate for heap
// values. Scalars and ranges return nil: nothing to track.
func payloadKey(v Value) (any, int) {
	const header = 24
	switch v.Tag {
	case TagArray:
		a := v.Data.(*ArrayObject)
		return a, header + 16*len(a.Elems)
	case TagTuple:
		t := v.Data.(*TupleObject)
		return t, header + 16*len(t.Elems)
	case TagObject:
		m := v.Data.(*MapObject)
		size := header
		for _, k := range m.Keys {
			size += 32 + len(k)
		}
		return m, size
	case TagVariant:
		vo := v.Data.(*VariantObject)
		return vo, header + 16*len(vo.Payload)
	case TagClosure:
		return v.Data.(*Closure), 96
	case TagDataFrame:
		df := v.Data.(*DataFrame)
		size := header
		for _, c := range df.Columns {
			size += 32 + 16*len(c.Values)
		}
		return df, size
	}
	return nil, 0
}

type marker struct {
	objs map[any]bool
	envs map[*Env]bool
}

func (m *marker) markEnv(e *Env) {
	for s := e; s != nil; s = s.Parent() {
		if m.envs[s] {
			return
		}
		m.envs[s] = true
		s.ForEach(func(_ string, v Value, _ bool) {
			m.markValue(v)
		})
	}
}

func (m *marker) markValue(v Value) {
	key, _ := payloadKey(v)
	if key != nil {
		if m.objs[key] {
			return
		}
		m.objs[key] = true
	}
	switch v.Tag {
	case TagArray:
		for _, e := range v.Data.(*ArrayObject).Elems {
			m.markValue(e)
		}
	case TagTuple:
		for _, e := range v.Data.(*TupleObject).Elems {
			m.markValue(e)
		}
	case TagObject:
		mo := v.Data.(*MapObject)
		for _, k := range mo.Keys {
			m.markValue(mo.Entries[k])
		}
	case TagVariant:
		for _, e := range v.Data.(*VariantObject).Payload {
			m.markValue(e)
		}
	case TagClosure:
		c := v.Data.(*Closure)
		if c.Env != nil {
			m.markEnv(c.Env)
		}
		for _, u := range c.Upvals {
			m.markValue(u)
		}
	case TagDataFrame:
		for _, c := range v.Data.(*DataFrame).Columns {
			for _, e := range c.Values {
				m.markValue(e)
			}
		}
	case tagIterator:
		for _, e := range v.Data.(*iterState).items {
			m.markValue(e)
		}
	}
}
