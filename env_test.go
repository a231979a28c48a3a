package ruchy

import (
	"errors"
	"testing"
)

func TestEnvDefineGetSet(t *testing.T) {
	g := NewEnv(nil)
	g.Define("x", IntV(1), true)

	child := NewEnv(g)
	if v, ok := child.Get("x"); !ok || v.Data.(int64) != 1 {
		t.Fatal("child sees parent binding")
	}

	if err := child.Set("x", IntV(2)); err != nil {
		t.Fatal(err)
	}
	if v, _ := g.Get("x"); v.Data.(int64) != 2 {
		t.Fatal("Set rewrites the parent slot")
	}
}

func TestEnvSetNeverDefines(t *testing.T) {
	g := NewEnv(nil)
	if err := g.Set("missing", IntV(1)); !errors.Is(err, errSetMissing) {
		t.Fatalf("want errSetMissing, got %v", err)
	}
	g.Define("ro", IntV(1), false)
	if err := g.Set("ro", IntV(2)); !errors.Is(err, errSetImmutable) {
		t.Fatalf("want errSetImmutable, got %v", err)
	}
}

func TestEnvShadowing(t *testing.T) {
	g := NewEnv(nil)
	g.Define("x", IntV(1), true)
	child := NewEnv(g)
	child.Define("x", IntV(10), false)

	if v, _ := child.Get("x"); v.Data.(int64) != 10 {
		t.Fatal("inner binding shadows")
	}
	if v, _ := g.Get("x"); v.Data.(int64) != 1 {
		t.Fatal("outer binding untouched")
	}
	if mut, ok := child.Mutable("x"); !ok || mut {
		t.Fatal("Mutable reports the innermost binding")
	}
}

func TestEnvSnapshot(t *testing.T) {
	g := NewEnv(nil)
	g.Define("global", IntV(0), true)

	frame := NewEnv(g)
	frame.Define("a", IntV(1), true)
	inner := NewEnv(frame)
	inner.Define("b", IntV(2), true)

	snap := inner.Snapshot(g)

	// the snapshot flattens the locals and shares the boundary
	if v, ok := snap.Get("a"); !ok || v.Data.(int64) != 1 {
		t.Fatal("snapshot holds a")
	}
	if v, ok := snap.Get("b"); !ok || v.Data.(int64) != 2 {
		t.Fatal("snapshot holds b")
	}
	if snap.Parent() != g {
		t.Fatal("snapshot parents on the boundary")
	}

	// rebinding the original local does not touch the snapshot copy
	if err := frame.Set("a", IntV(99)); err != nil {
		t.Fatal(err)
	}
	if v, _ := snap.Get("a"); v.Data.(int64) != 1 {
		t.Fatal("snapshot slot is a copy")
	}

	// globals stay shared through the boundary
	if err := g.Set("global", IntV(7)); err != nil {
		t.Fatal(err)
	}
	if v, _ := snap.Get("global"); v.Data.(int64) != 7 {
		t.Fatal("boundary bindings stay live")
	}
}

func TestEnvSnapshotInnermostWins(t *testing.T) {
	g := NewEnv(nil)
	outer := NewEnv(g)
	outer.Define("x", IntV(1), false)
	inner := NewEnv(outer)
	inner.Define("x", IntV(2), false)

	snap := inner.Snapshot(g)
	if v, _ := snap.Get("x"); v.Data.(int64) != 2 {
		t.Fatal("inner shadow wins in the flattened frame")
	}
}
