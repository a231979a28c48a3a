// value.go: the unified runtime value model shared by the interpreter, the
// bytecode VM, and the transpiler's constant folder.
//
// Value is a tagged sum in the classic Tag+Data shape. Scalars live directly
// in Data (int64, float64, bool, rune, string); containers and closures hold
// a pointer to a heap object so that aliases share mutations and the GC can
// key tracking on payload identity. Strings are immutable and never tracked.
//
// Equality is structural and recursive for values, identity for closures and
// natives. Comparing values of incompatible tags is false, never an error.
package ruchy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tag enumerates all runtime kinds a Value may hold.
type Tag uint8

const (
	TagNil Tag = iota
	TagUnit
	TagBool
	TagInteger
	TagFloat
	TagChar
	TagString
	TagArray
	TagTuple
	TagObject
	TagRange
	TagVariant
	TagClosure
	TagNative
	TagDataFrame
	tagIterator // internal loop cursor; never observable from user code
)

// Value is the universal runtime carrier. The tag determines which Go type
// Data holds:
//
//	TagBool    bool
//	TagInteger int64
//	TagFloat   float64
//	TagChar    rune
//	TagString  string
//	TagArray   *ArrayObject
//	TagTuple   *TupleObject
//	TagObject  *MapObject
//	TagRange   RangeValue
//	TagVariant *VariantObject
//	TagClosure *Closure
//	TagNative  *Native
//	TagDataFrame *DataFrame
//
// Nil and Unit carry no payload. Nil is absence; Unit is a statement result.
type Value struct {
	Tag  Tag
	Data any
}

// Singletons for the payload-less variants.
var (
	Nil  = Value{Tag: TagNil}
	Unit = Value{Tag: TagUnit}
)

// Constructors.
func BoolV(b bool) Value        { return Value{Tag: TagBool, Data: b} }
func IntV(n int64) Value        { return Value{Tag: TagInteger, Data: n} }
func FloatV(f float64) Value    { return Value{Tag: TagFloat, Data: f} }
func CharV(r rune) Value        { return Value{Tag: TagChar, Data: r} }
func StrV(s string) Value       { return Value{Tag: TagString, Data: s} }
func ArrV(xs []Value) Value     { return Value{Tag: TagArray, Data: &ArrayObject{Elems: xs}} }
func TupV(xs []Value) Value     { return Value{Tag: TagTuple, Data: &TupleObject{Elems: xs}} }
func ClosureV(c *Closure) Value { return Value{Tag: TagClosure, Data: c} }
func NativeV(n *Native) Value   { return Value{Tag: TagNative, Data: n} }

func RangeV(start, end int64, inclusive bool) Value {
	return Value{Tag: TagRange, Data: RangeValue{Start: start, End: end, Inclusive: inclusive}}
}

func VariantV(typeName, name string, payload []Value) Value {
	return Value{Tag: TagVariant, Data: &VariantObject{TypeName: typeName, Name: name, Payload: payload}}
}

// ArrayObject is the shared, mutable backing of a TagArray value.
type ArrayObject struct {
	Elems []Value
}

// TupleObject is the fixed-arity backing of a TagTuple value. Arity is part
// of the type; tuples are immutable after construction.
type TupleObject struct {
	Elems []Value
}

// MapObject is an insertion-ordered map. Entries is the key/value storage;
// Keys records insertion order and is the only sanctioned iteration order.
type MapObject struct {
	Entries map[string]Value
	Keys    []string
}

// NewMapObject returns an empty ordered map.
func NewMapObject() *MapObject {
	return &MapObject{Entries: map[string]Value{}}
}

// Set inserts or updates a key. New keys append to the insertion order.
func (m *MapObject) Set(key string, v Value) {
	if _, ok := m.Entries[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Entries[key] = v
}

// Get retrieves a key.
func (m *MapObject) Get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

// Delete removes a key, preserving the order of the remaining keys.
func (m *MapObject) Delete(key string) {
	if _, ok := m.Entries[key]; !ok {
		return
	}
	delete(m.Entries, key)
	for i, k := range m.Keys {
		if k == key {
			m.Keys = append(m.Keys[:i], m.Keys[i+1:]...)
			break
		}
	}
}

// ObjV wraps a MapObject into a Value.
func ObjV(m *MapObject) Value { return Value{Tag: TagObject, Data: m} }

// RangeValue is a lazy integer range; it materializes to an Array on
// iteration. An exclusive range with End <= Start (or inclusive with
// End < Start) is empty, not an error.
type RangeValue struct {
	Start     int64
	End       int64
	Inclusive bool
}

// Len reports how many elements the range yields.
func (r RangeValue) Len() int64 {
	n := r.End - r.Start
	if r.Inclusive {
		n++
	}
	if n < 0 {
		return 0
	}
	return n
}

// Elems materializes the range.
func (r RangeValue) Elems() []Value {
	n := r.Len()
	out := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, IntV(r.Start+i))
	}
	return out
}

// VariantObject is an enum variant instance such as Some(3) or Err("x").
// A nil Payload marks a unit variant.
type VariantObject struct {
	TypeName string
	Name     string
	Payload  []Value
}

// Closure bundles parameters, a body, and the captured scope chain. A closure
// produced by the AST interpreter carries Body+Env; one produced by the VM
// carries Proto+Upvals. Either way it is a first-class Value and both
// backends can call it (the apply path dispatches on which half is set).
type Closure struct {
	Name   string // empty for lambdas
	Params []Param
	Body   Expr
	Env    *Env

	Proto  *Proto
	Upvals []Value
}

// Arity reports the declared parameter count.
func (c *Closure) Arity() int {
	if c.Proto != nil {
		return len(c.Proto.Params)
	}
	return len(c.Params)
}

// Native is a built-in function implemented in the host. Arity < 0 marks a
// variadic builtin.
type Native struct {
	Name  string
	Arity int
	Fn    func(in *Interp, args []Value, sp Span) (Value, error)
}

// DataFrame is an ordered collection of named columns.
type DataFrame struct {
	Columns []DFColumn
}

// DFColumn is one named value sequence of a DataFrame.
type DFColumn struct {
	Name   string
	Values []Value
}

// FrameV wraps a DataFrame into a Value.
func FrameV(df *DataFrame) Value { return Value{Tag: TagDataFrame, Data: df} }

// iterState is the VM's loop cursor over a materialized iterable.
type iterState struct {
	items []Value
	idx   int
}

// TypeName reports a user-facing type name for diagnostics and `:type`.
func (v Value) TypeName() string {
	switch v.Tag {
	case TagNil:
		return "nil"
	case TagUnit:
		return "unit"
	case TagBool:
		return "bool"
	case TagInteger:
		return "integer"
	case TagFloat:
		return "float"
	case TagChar:
		return "char"
	case TagString:
		return "string"
	case TagArray:
		return "array"
	case TagTuple:
		return "tuple"
	case TagObject:
		if m := v.Data.(*MapObject); m != nil {
			if t, ok := m.Entries["__type"]; ok && t.Tag == TagString {
				return t.Data.(string)
			}
		}
		return "object"
	case TagRange:
		return "range"
	case TagVariant:
		return v.Data.(*VariantObject).TypeName
	case TagClosure:
		return "function"
	case TagNative:
		return "function"
	case TagDataFrame:
		return "dataframe"
	default:
		return "unknown"
	}
}

// Truthy implements the language truthiness rule: Bool by its value, numbers
// by non-zero, containers by non-empty, Nil and Unit false, everything else
// true.
func Truthy(v Value) bool {
	switch v.Tag {
	case TagNil, TagUnit:
		return false
	case TagBool:
		return v.Data.(bool)
	case TagInteger:
		return v.Data.(int64) != 0
	case TagFloat:
		return v.Data.(float64) != 0
	case TagString:
		return len(v.Data.(string)) > 0
	case TagArray:
		return len(v.Data.(*ArrayObject).Elems) > 0
	case TagTuple:
		return len(v.Data.(*TupleObject).Elems) > 0
	case TagObject:
		return len(v.Data.(*MapObject).Keys) > 0
	case TagRange:
		return v.Data.(RangeValue).Len() > 0
	default:
		return true
	}
}

// Equal is structural, recursive equality. Integer and Float compare across
// tags numerically; other mixed-tag comparisons are false. NaN != NaN.
func Equal(a, b Value) bool {
	if a.Tag != b.Tag {
		if isNumeric(a) && isNumeric(b) {
			return toFloat(a) == toFloat(b)
		}
		return false
	}
	switch a.Tag {
	case TagNil, TagUnit:
		return true
	case TagBool:
		return a.Data.(bool) == b.Data.(bool)
	case TagInteger:
		return a.Data.(int64) == b.Data.(int64)
	case TagFloat:
		return a.Data.(float64) == b.Data.(float64)
	case TagChar:
		return a.Data.(rune) == b.Data.(rune)
	case TagString:
		return a.Data.(string) == b.Data.(string)
	case TagArray:
		return equalSlices(a.Data.(*ArrayObject).Elems, b.Data.(*ArrayObject).Elems)
	case TagTuple:
		return equalSlices(a.Data.(*TupleObject).Elems, b.Data.(*TupleObject).Elems)
	case TagObject:
		return equalMaps(a.Data.(*MapObject), b.Data.(*MapObject))
	case TagRange:
		ra, rb := a.Data.(RangeValue), b.Data.(RangeValue)
		return ra == rb
	case TagVariant:
		va, vb := a.Data.(*VariantObject), b.Data.(*VariantObject)
		if va.TypeName != vb.TypeName || va.Name != vb.Name {
			return false
		}
		return equalSlices(va.Payload, vb.Payload)
	case TagClosure, TagNative:
		return a.Data == b.Data
	case TagDataFrame:
		da, db := a.Data.(*DataFrame), b.Data.(*DataFrame)
		if len(da.Columns) != len(db.Columns) {
			return false
		}
		for i := range da.Columns {
			if da.Columns[i].Name != db.Columns[i].Name {
				return false
			}
			if !equalSlices(da.Columns[i].Values, db.Columns[i].Values) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalMaps(a, b *MapObject) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	for k, av := range a.Entries {
		bv, ok := b.Entries[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func isNumeric(v Value) bool { return v.Tag == TagInteger || v.Tag == TagFloat }

func toFloat(v Value) float64 {
	if v.Tag == TagInteger {
		return float64(v.Data.(int64))
	}
	return v.Data.(float64)
}

// HashKey derives a stable string key for using a Value as an object key.
// Floats hash by bit pattern so that 0.0 and -0.0 are distinct keys and NaN
// keys are stable.
func HashKey(v Value) string {
	switch v.Tag {
	case TagString:
		return v.Data.(string)
	case TagInteger:
		return strconv.FormatInt(v.Data.(int64), 10)
	case TagFloat:
		return "f#" + strconv.FormatUint(math.Float64bits(v.Data.(float64)), 16)
	case TagBool:
		if v.Data.(bool) {
			return "true"
		}
		return "false"
	case TagChar:
		return "c#" + string(v.Data.(rune))
	default:
		return FormatValue(v)
	}
}

// FormatValue renders the REPL echo form: strings quoted, chars quoted,
// containers recursive.
func FormatValue(v Value) string {
	var b strings.Builder
	writeValue(&b, v, true)
	return b.String()
}

// DisplayValue renders the println form: a top-level string or char prints
// bare; everything else matches FormatValue.
func DisplayValue(v Value) string {
	switch v.Tag {
	case TagString:
		return v.Data.(string)
	case TagChar:
		return string(v.Data.(rune))
	}
	return FormatValue(v)
}

func writeValue(b *strings.Builder, v Value, quoted bool) {
	switch v.Tag {
	case TagNil:
		b.WriteString("nil")
	case TagUnit:
		b.WriteString("()")
	case TagBool:
		if v.Data.(bool) {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case TagInteger:
		b.WriteString(strconv.FormatInt(v.Data.(int64), 10))
	case TagFloat:
		f := v.Data.(float64)
		if f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f) {
			fmt.Fprintf(b, "%.1f", f)
		} else {
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case TagChar:
		if quoted {
			fmt.Fprintf(b, "'%c'", v.Data.(rune))
		} else {
			b.WriteRune(v.Data.(rune))
		}
	case TagString:
		if quoted {
			fmt.Fprintf(b, "%q", v.Data.(string))
		} else {
			b.WriteString(v.Data.(string))
		}
	case TagArray:
		b.WriteByte('[')
		for i, e := range v.Data.(*ArrayObject).Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, e, true)
		}
		b.WriteByte(']')
	case TagTuple:
		elems := v.Data.(*TupleObject).Elems
		b.WriteByte('(')
		for i, e := range elems {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, e, true)
		}
		if len(elems) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case TagObject:
		m := v.Data.(*MapObject)
		b.WriteByte('{')
		for i, k := range m.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			writeValue(b, m.Entries[k], true)
		}
		b.WriteByte('}')
	case TagRange:
		r := v.Data.(RangeValue)
		if r.Inclusive {
			fmt.Fprintf(b, "%d..=%d", r.Start, r.End)
		} else {
			fmt.Fprintf(b, "%d..%d", r.Start, r.End)
		}
	case TagVariant:
		vo := v.Data.(*VariantObject)
		b.WriteString(vo.Name)
		if vo.Payload != nil {
			b.WriteByte('(')
			for i, p := range vo.Payload {
				if i > 0 {
					b.WriteString(", ")
				}
				writeValue(b, p, true)
			}
			b.WriteByte(')')
		}
	case TagClosure:
		c := v.Data.(*Closure)
		if c.Name == "" {
			b.WriteString("<lambda>")
		} else {
			fmt.Fprintf(b, "<function %s>", c.Name)
		}
	case TagNative:
		fmt.Fprintf(b, "<function %s>", v.Data.(*Native).Name)
	case TagDataFrame:
		df := v.Data.(*DataFrame)
		fmt.Fprintf(b, "DataFrame with %d columns:", len(df.Columns))
		for _, c := range df.Columns {
			fmt.Fprintf(b, "\n  %s: %d rows", c.Name, len(c.Values))
		}
	default:
		b.WriteString("<internal>")
	}
}
