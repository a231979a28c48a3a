// methods.go: built-in methods and method dispatch.
//
// Dispatch order: the class method table for tagged objects, then the
// built-in table for the receiver's tag, then a field whose value is
// callable. A declared class method shadows the map built-ins an instance
// would otherwise answer to.
// Every dispatch feeds the type-feedback store keyed by call-site offset.
package ruchy

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// DispatchMethod resolves and invokes recv.name(args...).
func (in *Interp) DispatchMethod(recv Value, name string, args []Value, sp Span) (Value, error) {
	in.feedback.Record(uint32(sp.Start), recv.TypeName())

	if recv.Tag == TagObject {
		if c, ok := in.classMethod(recv.TypeName(), name); ok {
			return in.ApplyWithSelf(c, recv, args, sp)
		}
	}

	if v, err, ok := in.builtinMethod(recv, name, args, sp); ok {
		return v, err
	}

	if recv.Tag == TagObject {
		if f, ok := recv.Data.(*MapObject).Get(name); ok {
			if f.Tag == TagClosure || f.Tag == TagNative {
				return in.Apply(f, args, sp)
			}
		}
	}
	return Nil, errAt(ErrTypeMismatch, sp, "%s has no method %q", recv.TypeName(), name)
}

// builtinMethod tries the per-tag table. The third result reports whether the
// method exists for this receiver.
func (in *Interp) builtinMethod(recv Value, name string, args []Value, sp Span) (Value, error, bool) {
	// methods every value answers
	switch name {
	case "to_string":
		if err := needArgs(name, args, 0, sp); err != nil {
			return Nil, err, true
		}
		return StrV(DisplayValue(recv)), nil, true
	}

	switch recv.Tag {
	case TagInteger:
		return in.intMethod(recv.Data.(int64), name, args, sp)
	case TagFloat:
		return in.floatMethod(recv.Data.(float64), name, args, sp)
	case TagChar:
		return in.charMethod(recv.Data.(rune), name, args, sp)
	case TagString:
		return in.stringMethod(recv.Data.(string), name, args, sp)
	case TagArray:
		return in.arrayMethod(recv.Data.(*ArrayObject), name, args, sp)
	case TagTuple:
		return in.tupleMethod(recv.Data.(*TupleObject), name, args, sp)
	case TagRange:
		return in.rangeMethod(recv.Data.(RangeValue), name, args, sp)
	case TagObject:
		return in.objectMethod(recv.Data.(*MapObject), name, args, sp)
	case TagVariant:
		return in.variantMethod(recv, name, args, sp)
	case TagDataFrame:
		return in.frameMethod(recv.Data.(*DataFrame), name, args, sp)
	}
	return Nil, nil, false
}

func needArgs(name string, args []Value, n int, sp Span) error {
	if len(args) != n {
		return errAt(ErrArity, sp, "%s expects %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func (in *Interp) intMethod(n int64, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "abs":
		if n < 0 {
			n = -n
		}
		return IntV(n), nil, true
	case "to_float":
		return FloatV(float64(n)), nil, true
	case "sqrt":
		return FloatV(math.Sqrt(float64(n))), nil, true
	case "pow":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		if args[0].Tag == TagInteger && args[0].Data.(int64) >= 0 {
			return IntV(ipow(n, args[0].Data.(int64))), nil, true
		}
		if isNumeric(args[0]) {
			return FloatV(math.Pow(float64(n), toFloat(args[0]))), nil, true
		}
		return Nil, errAt(ErrTypeMismatch, sp, "pow expects a number"), true
	}
	return Nil, nil, false
}

func (in *Interp) floatMethod(f float64, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "abs":
		return FloatV(math.Abs(f)), nil, true
	case "floor":
		return IntV(int64(math.Floor(f))), nil, true
	case "ceil":
		return IntV(int64(math.Ceil(f))), nil, true
	case "round":
		return IntV(int64(math.Round(f))), nil, true
	case "sqrt":
		return FloatV(math.Sqrt(f)), nil, true
	case "to_int":
		return IntV(int64(f)), nil, true
	case "pow":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		if !isNumeric(args[0]) {
			return Nil, errAt(ErrTypeMismatch, sp, "pow expects a number"), true
		}
		return FloatV(math.Pow(f, toFloat(args[0]))), nil, true
	}
	return Nil, nil, false
}

func (in *Interp) charMethod(r rune, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "to_upper":
		return CharV(unicode.ToUpper(r)), nil, true
	case "to_lower":
		return CharV(unicode.ToLower(r)), nil, true
	case "to_int":
		return IntV(int64(r)), nil, true
	case "is_digit":
		return BoolV(unicode.IsDigit(r)), nil, true
	case "is_alpha":
		return BoolV(unicode.IsLetter(r)), nil, true
	case "is_whitespace":
		return BoolV(unicode.IsSpace(r)), nil, true
	}
	return Nil, nil, false
}

func (in *Interp) stringMethod(s string, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "len":
		return IntV(int64(len([]rune(s)))), nil, true
	case "is_empty":
		return BoolV(s == ""), nil, true
	case "to_upper":
		return StrV(strings.ToUpper(s)), nil, true
	case "to_lower":
		return StrV(strings.ToLower(s)), nil, true
	case "trim":
		return StrV(strings.TrimSpace(s)), nil, true
	case "reverse":
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return StrV(string(runes)), nil, true
	case "chars":
		runes := []rune(s)
		out := make([]Value, len(runes))
		for i, r := range runes {
			out[i] = CharV(r)
		}
		return in.alloc(ArrV(out)), nil, true
	case "contains":
		if err := needStr(name, args, sp); err != nil {
			return Nil, err, true
		}
		return BoolV(strings.Contains(s, args[0].Data.(string))), nil, true
	case "starts_with":
		if err := needStr(name, args, sp); err != nil {
			return Nil, err, true
		}
		return BoolV(strings.HasPrefix(s, args[0].Data.(string))), nil, true
	case "ends_with":
		if err := needStr(name, args, sp); err != nil {
			return Nil, err, true
		}
		return BoolV(strings.HasSuffix(s, args[0].Data.(string))), nil, true
	case "split":
		if err := needStr(name, args, sp); err != nil {
			return Nil, err, true
		}
		parts := strings.Split(s, args[0].Data.(string))
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = StrV(p)
		}
		return in.alloc(ArrV(out)), nil, true
	case "replace":
		if err := needArgs(name, args, 2, sp); err != nil {
			return Nil, err, true
		}
		if args[0].Tag != TagString || args[1].Tag != TagString {
			return Nil, errAt(ErrTypeMismatch, sp, "replace expects strings"), true
		}
		return StrV(strings.ReplaceAll(s, args[0].Data.(string), args[1].Data.(string))), nil, true
	case "repeat":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		if args[0].Tag != TagInteger {
			return Nil, errAt(ErrTypeMismatch, sp, "repeat expects an integer"), true
		}
		n := args[0].Data.(int64)
		if n < 0 {
			n = 0
		}
		return StrV(strings.Repeat(s, int(n))), nil, true
	case "to_int":
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Nil, errAt(ErrTypeMismatch, sp, "cannot parse %q as integer", s), true
		}
		return IntV(v), nil, true
	case "to_float":
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Nil, errAt(ErrTypeMismatch, sp, "cannot parse %q as float", s), true
		}
		return FloatV(v), nil, true
	}
	return Nil, nil, false
}

func needStr(name string, args []Value, sp Span) error {
	if len(args) != 1 {
		return errAt(ErrArity, sp, "%s expects 1 argument, got %d", name, len(args))
	}
	if args[0].Tag != TagString {
		return errAt(ErrTypeMismatch, sp, "%s expects a string, got %s", name, args[0].TypeName())
	}
	return nil
}

func (in *Interp) arrayMethod(a *ArrayObject, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "len":
		return IntV(int64(len(a.Elems))), nil, true
	case "is_empty":
		return BoolV(len(a.Elems) == 0), nil, true
	case "push":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		a.Elems = append(a.Elems, args[0])
		return Unit, nil, true
	case "pop":
		if len(a.Elems) == 0 {
			return Nil, errAt(ErrIndexOutOfRange, sp, "pop on empty array"), true
		}
		last := a.Elems[len(a.Elems)-1]
		a.Elems = a.Elems[:len(a.Elems)-1]
		return last, nil, true
	case "first":
		if len(a.Elems) == 0 {
			return VariantV("Option", "None", nil), nil, true
		}
		return in.alloc(VariantV("Option", "Some", []Value{a.Elems[0]})), nil, true
	case "last":
		if len(a.Elems) == 0 {
			return VariantV("Option", "None", nil), nil, true
		}
		return in.alloc(VariantV("Option", "Some", []Value{a.Elems[len(a.Elems)-1]})), nil, true
	case "reverse":
		out := make([]Value, len(a.Elems))
		for i, v := range a.Elems {
			out[len(a.Elems)-1-i] = v
		}
		return in.alloc(ArrV(out)), nil, true
	case "contains":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		for _, v := range a.Elems {
			if Equal(v, args[0]) {
				return BoolV(true), nil, true
			}
		}
		return BoolV(false), nil, true
	case "join":
		if err := needStr(name, args, sp); err != nil {
			return Nil, err, true
		}
		parts := make([]string, len(a.Elems))
		for i, v := range a.Elems {
			parts[i] = DisplayValue(v)
		}
		return StrV(strings.Join(parts, args[0].Data.(string))), nil, true
	case "to_vec":
		out := make([]Value, len(a.Elems))
		copy(out, a.Elems)
		return in.alloc(ArrV(out)), nil, true
	case "sort":
		out := make([]Value, len(a.Elems))
		copy(out, a.Elems)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			lt, err := compareOp("<", out[i], out[j], sp)
			if err != nil && sortErr == nil {
				sortErr = err
			}
			return err == nil && Truthy(lt)
		})
		if sortErr != nil {
			return Nil, sortErr, true
		}
		return in.alloc(ArrV(out)), nil, true
	case "map":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		out := make([]Value, len(a.Elems))
		for i, v := range a.Elems {
			r, err := in.Apply(args[0], []Value{v}, sp)
			if err != nil {
				return Nil, err, true
			}
			out[i] = r
		}
		return in.alloc(ArrV(out)), nil, true
	case "filter":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		var out []Value
		for _, v := range a.Elems {
			keep, err := in.Apply(args[0], []Value{v}, sp)
			if err != nil {
				return Nil, err, true
			}
			if Truthy(keep) {
				out = append(out, v)
			}
		}
		if out == nil {
			out = []Value{}
		}
		return in.alloc(ArrV(out)), nil, true
	case "reduce":
		if err := needArgs(name, args, 2, sp); err != nil {
			return Nil, err, true
		}
		acc := args[0]
		for _, v := range a.Elems {
			r, err := in.Apply(args[1], []Value{acc, v}, sp)
			if err != nil {
				return Nil, err, true
			}
			acc = r
		}
		return acc, nil, true
	case "sum", "mean", "min", "max", "std", "var":
		v, err := numericAggregate(name, a.Elems, sp)
		return v, err, true
	}
	return Nil, nil, false
}

func (in *Interp) tupleMethod(t *TupleObject, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "len":
		return IntV(int64(len(t.Elems))), nil, true
	case "to_vec":
		out := make([]Value, len(t.Elems))
		copy(out, t.Elems)
		return in.alloc(ArrV(out)), nil, true
	}
	return Nil, nil, false
}

func (in *Interp) rangeMethod(r RangeValue, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "len":
		return IntV(r.Len()), nil, true
	case "to_vec":
		return in.alloc(ArrV(r.Elems())), nil, true
	case "contains":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		if args[0].Tag != TagInteger {
			return BoolV(false), nil, true
		}
		n := args[0].Data.(int64)
		hi := r.End
		if r.Inclusive {
			hi++
		}
		return BoolV(n >= r.Start && n < hi), nil, true
	case "map", "filter", "sum", "mean", "min", "max", "std", "var", "reduce":
		arr := &ArrayObject{Elems: r.Elems()}
		return in.arrayMethod(arr, name, args, sp)
	}
	return Nil, nil, false
}

func (in *Interp) objectMethod(m *MapObject, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "len":
		return IntV(int64(len(m.Keys))), nil, true
	case "keys":
		out := make([]Value, len(m.Keys))
		for i, k := range m.Keys {
			out[i] = StrV(k)
		}
		return in.alloc(ArrV(out)), nil, true
	case "values":
		out := make([]Value, len(m.Keys))
		for i, k := range m.Keys {
			out[i] = m.Entries[k]
		}
		return in.alloc(ArrV(out)), nil, true
	case "contains_key":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		_, ok := m.Get(HashKey(args[0]))
		return BoolV(ok), nil, true
	case "get":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		if v, ok := m.Get(HashKey(args[0])); ok {
			return in.alloc(VariantV("Option", "Some", []Value{v})), nil, true
		}
		return VariantV("Option", "None", nil), nil, true
	case "insert":
		if err := needArgs(name, args, 2, sp); err != nil {
			return Nil, err, true
		}
		m.Set(HashKey(args[0]), args[1])
		return Unit, nil, true
	case "remove":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		m.Delete(HashKey(args[0]))
		return Unit, nil, true
	}
	return Nil, nil, false
}

func (in *Interp) variantMethod(recv Value, name string, args []Value, sp Span) (Value, error, bool) {
	vo := recv.Data.(*VariantObject)
	switch name {
	case "is_some":
		return BoolV(vo.Name == "Some"), nil, true
	case "is_none":
		return BoolV(vo.Name == "None"), nil, true
	case "is_ok":
		return BoolV(vo.Name == "Ok"), nil, true
	case "is_err":
		return BoolV(vo.Name == "Err"), nil, true
	case "unwrap":
		switch vo.Name {
		case "Ok", "Some":
			if len(vo.Payload) == 1 {
				return vo.Payload[0], nil, true
			}
			return Unit, nil, true
		}
		return Nil, errAt(ErrNative, sp, "called unwrap on %s", FormatValue(recv)), true
	case "unwrap_or":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		switch vo.Name {
		case "Ok", "Some":
			if len(vo.Payload) == 1 {
				return vo.Payload[0], nil, true
			}
			return Unit, nil, true
		}
		return args[0], nil, true
	case "map":
		if err := needArgs(name, args, 1, sp); err != nil {
			return Nil, err, true
		}
		switch vo.Name {
		case "Ok", "Some":
			if len(vo.Payload) == 1 {
				r, err := in.Apply(args[0], []Value{vo.Payload[0]}, sp)
				if err != nil {
					return Nil, err, true
				}
				return in.alloc(VariantV(vo.TypeName, vo.Name, []Value{r})), nil, true
			}
		}
		return recv, nil, true
	}
	return Nil, nil, false
}

func (in *Interp) frameMethod(df *DataFrame, name string, args []Value, sp Span) (Value, error, bool) {
	switch name {
	case "columns":
		out := make([]Value, len(df.Columns))
		for i, c := range df.Columns {
			out[i] = StrV(c.Name)
		}
		return in.alloc(ArrV(out)), nil, true
	case "rows":
		if len(df.Columns) == 0 {
			return IntV(0), nil, true
		}
		return IntV(int64(len(df.Columns[0].Values))), nil, true
	case "sum", "mean", "min", "max", "std", "var":
		vals, err := frameColumn(df, name, args, sp)
		if err != nil {
			return Nil, err, true
		}
		v, err := numericAggregate(name, vals, sp)
		return v, err, true
	}
	return Nil, nil, false
}

// frameColumn selects the aggregate's target: the named column, or the sole
// column when the frame has exactly one.
func frameColumn(df *DataFrame, agg string, args []Value, sp Span) ([]Value, error) {
	switch len(args) {
	case 0:
		if len(df.Columns) == 1 {
			return df.Columns[0].Values, nil
		}
		return nil, errAt(ErrArity, sp, "%s needs a column name on a multi-column dataframe", agg)
	case 1:
		if args[0].Tag != TagString {
			return nil, errAt(ErrTypeMismatch, sp, "column name must be a string")
		}
		want := args[0].Data.(string)
		for _, c := range df.Columns {
			if c.Name == want {
				return c.Values, nil
			}
		}
		return nil, errAt(ErrIndexOutOfRange, sp, "no column named %q", want)
	}
	return nil, errAt(ErrArity, sp, "%s expects at most 1 argument, got %d", agg, len(args))
}

// numericAggregate computes sum/mean/min/max/std/var over numeric values.
// Variance and standard deviation are population statistics.
func numericAggregate(name string, vals []Value, sp Span) (Value, error) {
	if name == "sum" {
		allInt := true
		var isum int64
		var fsum float64
		for _, v := range vals {
			if !isNumeric(v) {
				return Nil, errAt(ErrTypeMismatch, sp, "sum needs numeric values, got %s", v.TypeName())
			}
			if v.Tag == TagInteger {
				isum += v.Data.(int64)
			} else {
				allInt = false
			}
			fsum += toFloat(v)
		}
		if allInt {
			return IntV(isum), nil
		}
		return FloatV(fsum), nil
	}

	if len(vals) == 0 {
		return Nil, errAt(ErrIndexOutOfRange, sp, "%s of an empty column", name)
	}
	nums := make([]float64, len(vals))
	for i, v := range vals {
		if !isNumeric(v) {
			return Nil, errAt(ErrTypeMismatch, sp, "%s needs numeric values, got %s", name, v.TypeName())
		}
		nums[i] = toFloat(v)
	}
	switch name {
	case "min":
		out := nums[0]
		for _, f := range nums[1:] {
			if f < out {
				out = f
			}
		}
		return numResult(out, vals), nil
	case "max":
		out := nums[0]
		for _, f := range nums[1:] {
			if f > out {
				out = f
			}
		}
		return numResult(out, vals), nil
	}
	mean := 0.0
	for _, f := range nums {
		mean += f
	}
	mean /= float64(len(nums))
	switch name {
	case "mean":
		return FloatV(mean), nil
	case "var", "std":
		variance := 0.0
		for _, f := range nums {
			d := f - mean
			variance += d * d
		}
		variance /= float64(len(nums))
		if name == "var" {
			return FloatV(variance), nil
		}
		return FloatV(math.Sqrt(variance)), nil
	}
	return Nil, errAt(ErrTypeMismatch, sp, "unknown aggregate %q", name)
}

// numResult keeps min/max integral when every input was an integer.
func numResult(f float64, vals []Value) Value {
	for _, v := range vals {
		if v.Tag != TagInteger {
			return FloatV(f)
		}
	}
	return IntV(int64(f))
}
