// pattern.go: structural pattern matching.
//
// The matcher is shared by the tree-walking interpreter and the VM so both
// backends agree on every edge case. Bindings accumulate in the same
// left-to-right order BindNames reports; a failed match commits nothing.
package ruchy

// PatBinding is one variable bound by a successful match.
type PatBinding struct {
	Name string
	Val  Value
}

// MatchPattern tests pat against v. On success it returns the bindings in
// deterministic left-to-right order; on failure the slice is nil.
func MatchPattern(pat Pattern, v Value) ([]PatBinding, bool) {
	var binds []PatBinding
	if !matchInto(pat, v, &binds) {
		return nil, false
	}
	return binds, true
}

func matchInto(pat Pattern, v Value, binds *[]PatBinding) bool {
	switch pt := pat.(type) {
	case *PatLiteral:
		return Equal(pt.Lit, v)

	case *PatWildcard:
		return true

	case *PatIdent:
		*binds = append(*binds, PatBinding{Name: pt.Name, Val: v})
		return true

	case *PatTuple:
		if v.Tag != TagTuple {
			return false
		}
		tup := v.Data.(*TupleObject)
		if len(tup.Elems) != len(pt.Elems) {
			return false
		}
		for i, ep := range pt.Elems {
			if !matchInto(ep, tup.Elems[i], binds) {
				return false
			}
		}
		return true

	case *PatList:
		if v.Tag != TagArray {
			return false
		}
		arr := v.Data.(*ArrayObject)
		if pt.HasRest {
			if len(arr.Elems) < len(pt.Elems) {
				return false
			}
		} else if len(arr.Elems) != len(pt.Elems) {
			return false
		}
		for i, ep := range pt.Elems {
			if !matchInto(ep, arr.Elems[i], binds) {
				return false
			}
		}
		if pt.HasRest && pt.Rest != "" {
			rest := make([]Value, len(arr.Elems)-len(pt.Elems))
			copy(rest, arr.Elems[len(pt.Elems):])
			*binds = append(*binds, PatBinding{Name: pt.Rest, Val: ArrV(rest)})
		}
		return true

	case *PatStruct:
		if v.Tag != TagObject {
			return false
		}
		obj := v.Data.(*MapObject)
		tn, ok := obj.Get("__type")
		if !ok || tn.Tag != TagString || tn.Data.(string) != pt.TypeName {
			return false
		}
		for _, f := range pt.Fields {
			fv, ok := obj.Get(f.Name)
			if !ok {
				return false
			}
			if !matchInto(f.Pat, fv, binds) {
				return false
			}
		}
		return true

	case *PatCtor:
		if v.Tag != TagVariant {
			return false
		}
		vo := v.Data.(*VariantObject)
		if vo.Name != pt.Name {
			return false
		}
		if pt.TypeName != "" && vo.TypeName != pt.TypeName {
			return false
		}
		if len(pt.Args) != len(vo.Payload) {
			return false
		}
		for i, ap := range pt.Args {
			if !matchInto(ap, vo.Payload[i], binds) {
				return false
			}
		}
		return true

	case *PatOr:
		for _, alt := range pt.Alts {
			var trial []PatBinding
			if matchInto(alt, v, &trial) {
				*binds = append(*binds, trial...)
				return true
			}
		}
		return false
	}
	return false
}
