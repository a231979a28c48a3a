// builtins.go: the global native functions installed into every session.
package ruchy

import (
	"fmt"
	"math"
	"strings"
)

func installBuiltins(in *Interp) {
	g := in.Globals

	def := func(name string, arity int, fn func(in *Interp, args []Value, sp Span) (Value, error)) {
		g.Define(name, NativeV(&Native{Name: name, Arity: arity, Fn: fn}), false)
	}

	def("println", -1, func(in *Interp, args []Value, sp Span) (Value, error) {
		fmt.Fprintln(in.Out, displayJoin(args))
		return Unit, nil
	})
	def("print", -1, func(in *Interp, args []Value, sp Span) (Value, error) {
		fmt.Fprint(in.Out, displayJoin(args))
		return Unit, nil
	})

	def("len", 1, func(in *Interp, args []Value, sp Span) (Value, error) {
		return lengthOf(args[0], sp)
	})
	def("type_of", 1, func(in *Interp, args []Value, sp Span) (Value, error) {
		return StrV(args[0].TypeName()), nil
	})

	def("assert", -1, func(in *Interp, args []Value, sp Span) (Value, error) {
		if len(args) == 0 || len(args) > 2 {
			return Nil, errAt(ErrArity, sp, "assert expects 1 or 2 arguments, got %d", len(args))
		}
		if Truthy(args[0]) {
			return Unit, nil
		}
		msg := "assertion failed"
		if len(args) == 2 {
			msg = "assertion failed: " + DisplayValue(args[1])
		}
		return Nil, errAt(ErrNative, sp, "%s", msg)
	})
	def("assert_eq", 2, func(in *Interp, args []Value, sp Span) (Value, error) {
		if Equal(args[0], args[1]) {
			return Unit, nil
		}
		return Nil, errAt(ErrNative, sp, "assertion failed: %s != %s",
			FormatValue(args[0]), FormatValue(args[1]))
	})

	// numeric helpers; each promotes integers to floats
	mathFn := func(name string, f func(float64) float64) {
		def(name, 1, func(in *Interp, args []Value, sp Span) (Value, error) {
			if !isNumeric(args[0]) {
				return Nil, errAt(ErrTypeMismatch, sp, "%s expects a number, got %s", name, args[0].TypeName())
			}
			return FloatV(f(toFloat(args[0]))), nil
		})
	}
	mathFn("sqrt", math.Sqrt)
	mathFn("sin", math.Sin)
	mathFn("cos", math.Cos)
	mathFn("tan", math.Tan)
	mathFn("ln", math.Log)
	mathFn("log10", math.Log10)
	mathFn("exp", math.Exp)

	def("pow", 2, func(in *Interp, args []Value, sp Span) (Value, error) {
		a, b := args[0], args[1]
		if !isNumeric(a) || !isNumeric(b) {
			return Nil, errAt(ErrTypeMismatch, sp, "pow expects numbers")
		}
		if a.Tag == TagInteger && b.Tag == TagInteger && b.Data.(int64) >= 0 {
			return IntV(ipow(a.Data.(int64), b.Data.(int64))), nil
		}
		return FloatV(math.Pow(toFloat(a), toFloat(b))), nil
	})
	def("abs", 1, func(in *Interp, args []Value, sp Span) (Value, error) {
		switch args[0].Tag {
		case TagInteger:
			n := args[0].Data.(int64)
			if n < 0 {
				n = -n
			}
			return IntV(n), nil
		case TagFloat:
			return FloatV(math.Abs(args[0].Data.(float64))), nil
		}
		return Nil, errAt(ErrTypeMismatch, sp, "abs expects a number, got %s", args[0].TypeName())
	})
	def("floor", 1, floatToInt(math.Floor))
	def("ceil", 1, floatToInt(math.Ceil))
	def("round", 1, floatToInt(math.Round))
	def("min", 2, extremum("min", "<"))
	def("max", 2, extremum("max", ">"))

	// Option and Result constructors
	g.Define("None", VariantV("Option", "None", nil), false)
	def("Some", 1, variantCtor("Option", "Some"))
	def("Ok", 1, variantCtor("Result", "Ok"))
	def("Err", 1, variantCtor("Result", "Err"))

	def("DataFrame", 1, func(in *Interp, args []Value, sp Span) (Value, error) {
		if args[0].Tag != TagObject {
			return Nil, errAt(ErrTypeMismatch, sp, "DataFrame expects an object of columns, got %s", args[0].TypeName())
		}
		m := args[0].Data.(*MapObject)
		df := &DataFrame{}
		for _, k := range m.Keys {
			col := m.Entries[k]
			if col.Tag != TagArray {
				return Nil, errAt(ErrTypeMismatch, sp, "column %q must be an array, got %s", k, col.TypeName())
			}
			src := col.Data.(*ArrayObject).Elems
			vals := make([]Value, len(src))
			copy(vals, src)
			df.Columns = append(df.Columns, DFColumn{Name: k, Values: vals})
		}
		return in.alloc(FrameV(df)), nil
	})

	def("gc_collect", 0, func(in *Interp, args []Value, sp Span) (Value, error) {
		in.gc.Collect(in.Globals, in.curEnv)
		return Unit, nil
	})
	def("gc_stats", 0, func(in *Interp, args []Value, sp Span) (Value, error) {
		st := in.gc.Stats()
		m := NewMapObject()
		m.Set("tracked_objects", IntV(int64(st.TrackedObjects)))
		m.Set("tracked_bytes", IntV(int64(st.TrackedBytes)))
		m.Set("collections", IntV(int64(st.Collections)))
		m.Set("freed_objects", IntV(int64(st.FreedObjects)))
		m.Set("freed_bytes", IntV(int64(st.FreedBytes)))
		return in.alloc(ObjV(m)), nil
	})
	def("gc_enable", 1, func(in *Interp, args []Value, sp Span) (Value, error) {
		in.gc.SetEnabled(Truthy(args[0]))
		return Unit, nil
	})
	def("cache_stats", 0, func(in *Interp, args []Value, sp Span) (Value, error) {
		st := in.feedback.Stats()
		m := NewMapObject()
		m.Set("sites", IntV(int64(st.Sites)))
		m.Set("monomorphic", IntV(int64(st.Monomorphic)))
		m.Set("polymorphic", IntV(int64(st.Polymorphic)))
		m.Set("megamorphic", IntV(int64(st.Megamorphic)))
		m.Set("hits", IntV(int64(st.Hits)))
		m.Set("misses", IntV(int64(st.Misses)))
		return in.alloc(ObjV(m)), nil
	})
}

func displayJoin(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = DisplayValue(a)
	}
	return strings.Join(parts, " ")
}

func variantCtor(typeName, name string) func(in *Interp, args []Value, sp Span) (Value, error) {
	return func(in *Interp, args []Value, sp Span) (Value, error) {
		payload := make([]Value, len(args))
		copy(payload, args)
		return in.alloc(VariantV(typeName, name, payload)), nil
	}
}

func floatToInt(f func(float64) float64) func(in *Interp, args []Value, sp Span) (Value, error) {
	return func(in *Interp, args []Value, sp Span) (Value, error) {
		switch args[0].Tag {
		case TagInteger:
			return args[0], nil
		case TagFloat:
			return IntV(int64(f(args[0].Data.(float64)))), nil
		}
		return Nil, errAt(ErrTypeMismatch, sp, "expected a number, got %s", args[0].TypeName())
	}
}

func extremum(name, op string) func(in *Interp, args []Value, sp Span) (Value, error) {
	return func(in *Interp, args []Value, sp Span) (Value, error) {
		cmp, err := binaryOp(op, args[0], args[1], sp)
		if err != nil {
			return Nil, err
		}
		if Truthy(cmp) {
			return args[0], nil
		}
		return args[1], nil
	}
}

func ipow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// lengthOf implements len() and the .len() methods. String length counts
// Unicode characters, never bytes.
func lengthOf(v Value, sp Span) (Value, error) {
	switch v.Tag {
	case TagString:
		return IntV(int64(len([]rune(v.Data.(string))))), nil
	case TagArray:
		return IntV(int64(len(v.Data.(*ArrayObject).Elems))), nil
	case TagTuple:
		return IntV(int64(len(v.Data.(*TupleObject).Elems))), nil
	case TagObject:
		return IntV(int64(len(v.Data.(*MapObject).Keys))), nil
	case TagRange:
		return IntV(v.Data.(RangeValue).Len()), nil
	case TagDataFrame:
		df := v.Data.(*DataFrame)
		if len(df.Columns) == 0 {
			return IntV(0), nil
		}
		return IntV(int64(len(df.Columns[0].Values))), nil
	}
	return Nil, errAt(ErrTypeMismatch, sp, "len is not defined for %s", v.TypeName())
}
