// ops.go: operator, indexing, and iteration semantics.
//
// Both backends call into these helpers, so any quirk (wrapping integer
// arithmetic, numeric promotion, rune-based string indexing) is decided in
// exactly one place.
package ruchy

import (
	"math"
	"strings"
)

// binaryOp applies an arithmetic, comparison, or equality operator. The
// logical operators never reach here; they short-circuit in the backends.
func binaryOp(op string, a, b Value, sp Span) (Value, error) {
	switch op {
	case "==":
		return BoolV(Equal(a, b)), nil
	case "!=":
		return BoolV(!Equal(a, b)), nil
	}

	switch op {
	case "+":
		switch {
		case a.Tag == TagInteger && b.Tag == TagInteger:
			return IntV(a.Data.(int64) + b.Data.(int64)), nil
		case isNumeric(a) && isNumeric(b):
			return FloatV(toFloat(a) + toFloat(b)), nil
		case a.Tag == TagString && b.Tag == TagString:
			return StrV(a.Data.(string) + b.Data.(string)), nil
		case a.Tag == TagString && b.Tag == TagChar:
			return StrV(a.Data.(string) + string(b.Data.(rune))), nil
		case a.Tag == TagChar && b.Tag == TagString:
			return StrV(string(a.Data.(rune)) + b.Data.(string)), nil
		case a.Tag == TagArray && b.Tag == TagArray:
			as := a.Data.(*ArrayObject).Elems
			bs := b.Data.(*ArrayObject).Elems
			out := make([]Value, 0, len(as)+len(bs))
			out = append(out, as...)
			out = append(out, bs...)
			return ArrV(out), nil
		}
	case "-":
		switch {
		case a.Tag == TagInteger && b.Tag == TagInteger:
			return IntV(a.Data.(int64) - b.Data.(int64)), nil
		case isNumeric(a) && isNumeric(b):
			return FloatV(toFloat(a) - toFloat(b)), nil
		}
	case "*":
		switch {
		case a.Tag == TagInteger && b.Tag == TagInteger:
			return IntV(a.Data.(int64) * b.Data.(int64)), nil
		case isNumeric(a) && isNumeric(b):
			return FloatV(toFloat(a) * toFloat(b)), nil
		case a.Tag == TagString && b.Tag == TagInteger:
			n := b.Data.(int64)
			if n < 0 {
				n = 0
			}
			return StrV(strings.Repeat(a.Data.(string), int(n))), nil
		}
	case "/":
		switch {
		case a.Tag == TagInteger && b.Tag == TagInteger:
			if b.Data.(int64) == 0 {
				return Nil, errAt(ErrDivisionByZero, sp, "integer division by zero")
			}
			return IntV(a.Data.(int64) / b.Data.(int64)), nil
		case isNumeric(a) && isNumeric(b):
			return FloatV(toFloat(a) / toFloat(b)), nil
		}
	case "%":
		switch {
		case a.Tag == TagInteger && b.Tag == TagInteger:
			if b.Data.(int64) == 0 {
				return Nil, errAt(ErrDivisionByZero, sp, "integer modulo by zero")
			}
			return IntV(a.Data.(int64) % b.Data.(int64)), nil
		}
	case "**":
		switch {
		case a.Tag == TagInteger && b.Tag == TagInteger:
			// a negative exponent leaves the integers
			if e := b.Data.(int64); e >= 0 {
				return IntV(ipow(a.Data.(int64), e)), nil
			}
			return FloatV(math.Pow(toFloat(a), toFloat(b))), nil
		case isNumeric(a) && isNumeric(b):
			return FloatV(math.Pow(toFloat(a), toFloat(b))), nil
		}
	case "<", "<=", ">", ">=":
		return compareOp(op, a, b, sp)
	}
	return Nil, errAt(ErrTypeMismatch, sp, "cannot apply %s to %s and %s", op, a.TypeName(), b.TypeName())
}

func compareOp(op string, a, b Value, sp Span) (Value, error) {
	var cmp int
	switch {
	case isNumeric(a) && isNumeric(b):
		if a.Tag == TagInteger && b.Tag == TagInteger {
			x, y := a.Data.(int64), b.Data.(int64)
			switch {
			case x < y:
				cmp = -1
			case x > y:
				cmp = 1
			}
		} else {
			x, y := toFloat(a), toFloat(b)
			switch {
			case x < y:
				cmp = -1
			case x > y:
				cmp = 1
			default:
				if x != y { // NaN involved: all orderings false
					return BoolV(false), nil
				}
			}
		}
	case a.Tag == TagString && b.Tag == TagString:
		cmp = strings.Compare(a.Data.(string), b.Data.(string))
	case a.Tag == TagChar && b.Tag == TagChar:
		x, y := a.Data.(rune), b.Data.(rune)
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	default:
		return Nil, errAt(ErrTypeMismatch, sp, "cannot compare %s and %s", a.TypeName(), b.TypeName())
	}
	switch op {
	case "<":
		return BoolV(cmp < 0), nil
	case "<=":
		return BoolV(cmp <= 0), nil
	case ">":
		return BoolV(cmp > 0), nil
	default:
		return BoolV(cmp >= 0), nil
	}
}

func unaryOp(op string, v Value, sp Span) (Value, error) {
	switch op {
	case "-":
		switch v.Tag {
		case TagInteger:
			return IntV(-v.Data.(int64)), nil
		case TagFloat:
			return FloatV(-v.Data.(float64)), nil
		}
		return Nil, errAt(ErrTypeMismatch, sp, "cannot negate %s", v.TypeName())
	case "!":
		return BoolV(!Truthy(v)), nil
	case "~":
		if v.Tag == TagInteger {
			return IntV(^v.Data.(int64)), nil
		}
		return Nil, errAt(ErrTypeMismatch, sp, "cannot apply ~ to %s", v.TypeName())
	}
	return Nil, errAt(ErrTypeMismatch, sp, "unknown unary operator %s", op)
}

// indexValue implements recv[idx] for arrays, tuples, strings (by character),
// objects, and dataframes (by column name).
func indexValue(recv, idx Value, sp Span) (Value, error) {
	switch recv.Tag {
	case TagArray:
		elems := recv.Data.(*ArrayObject).Elems
		i, err := indexInt(idx, len(elems), sp)
		if err != nil {
			return Nil, err
		}
		return elems[i], nil
	case TagTuple:
		elems := recv.Data.(*TupleObject).Elems
		i, err := indexInt(idx, len(elems), sp)
		if err != nil {
			return Nil, err
		}
		return elems[i], nil
	case TagString:
		runes := []rune(recv.Data.(string))
		i, err := indexInt(idx, len(runes), sp)
		if err != nil {
			return Nil, err
		}
		return CharV(runes[i]), nil
	case TagObject:
		m := recv.Data.(*MapObject)
		v, ok := m.Get(HashKey(idx))
		if !ok {
			return Nil, nil
		}
		return v, nil
	case TagDataFrame:
		if idx.Tag == TagString {
			df := recv.Data.(*DataFrame)
			for _, c := range df.Columns {
				if c.Name == idx.Data.(string) {
					vals := make([]Value, len(c.Values))
					copy(vals, c.Values)
					return ArrV(vals), nil
				}
			}
			return Nil, errAt(ErrIndexOutOfRange, sp, "no column named %q", idx.Data.(string))
		}
	}
	return Nil, errAt(ErrTypeMismatch, sp, "cannot index %s", recv.TypeName())
}

// indexInt normalizes an index against length n. Negative indices count from
// the end, so -1 is the last element.
func indexInt(idx Value, n int, sp Span) (int, error) {
	if idx.Tag != TagInteger {
		return 0, errAt(ErrTypeMismatch, sp, "index must be an integer, got %s", idx.TypeName())
	}
	i := idx.Data.(int64)
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, errAt(ErrIndexOutOfRange, sp, "index %d out of range for length %d", idx.Data.(int64), n)
	}
	return int(i), nil
}

// indexAssign implements recv[idx] = v for arrays and objects.
func indexAssign(recv, idx, v Value, sp Span) error {
	switch recv.Tag {
	case TagArray:
		elems := recv.Data.(*ArrayObject).Elems
		i, err := indexInt(idx, len(elems), sp)
		if err != nil {
			return err
		}
		elems[i] = v
		return nil
	case TagObject:
		recv.Data.(*MapObject).Set(HashKey(idx), v)
		return nil
	}
	return errAt(ErrTypeMismatch, sp, "cannot assign into %s by index", recv.TypeName())
}

// iterableElems materializes a loop iterable. Arrays iterate their elements,
// ranges their integers, strings their characters, tuples their elements, and
// objects their keys in insertion order.
func iterableElems(v Value, sp Span) ([]Value, error) {
	switch v.Tag {
	case TagArray:
		src := v.Data.(*ArrayObject).Elems
		out := make([]Value, len(src))
		copy(out, src)
		return out, nil
	case TagRange:
		return v.Data.(RangeValue).Elems(), nil
	case TagString:
		runes := []rune(v.Data.(string))
		out := make([]Value, len(runes))
		for i, r := range runes {
			out[i] = CharV(r)
		}
		return out, nil
	case TagTuple:
		src := v.Data.(*TupleObject).Elems
		out := make([]Value, len(src))
		copy(out, src)
		return out, nil
	case TagObject:
		m := v.Data.(*MapObject)
		out := make([]Value, len(m.Keys))
		for i, k := range m.Keys {
			out[i] = StrV(k)
		}
		return out, nil
	}
	return nil, errAt(ErrTypeMismatch, sp, "cannot iterate over %s", v.TypeName())
}

// fieldValue implements recv.name for objects, dataframes, and variants.
func fieldValue(recv Value, name string, sp Span) (Value, error) {
	switch recv.Tag {
	case TagObject:
		if v, ok := recv.Data.(*MapObject).Get(name); ok {
			return v, nil
		}
		return Nil, errAt(ErrUnboundName, sp, "%s has no field %q", recv.TypeName(), name)
	case TagDataFrame:
		return indexValue(recv, StrV(name), sp)
	}
	return Nil, errAt(ErrTypeMismatch, sp, "%s has no fields", recv.TypeName())
}
