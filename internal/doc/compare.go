package doc

// Equal reports structural equality. Objects compare key sets regardless of
// insertion order; arrays compare element-wise in order. Int and Float
// compare by numeric value.
func Equal(a, b Value) bool {
	a, b = normalize(a), normalize(b)

	if an, ok := Number(a); ok {
		bn, ok := Number(b)
		return ok && an == bn
	}

	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case *Array:
		bv, ok := b.(*Array)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, item := range av.Items() {
			if !Equal(item, bv.items[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.Keys() {
			mine, _ := av.Get(k)
			other, exists := bv.Get(k)
			if !exists || !Equal(mine, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SubsetOf reports whether a is structurally contained in b:
//   - objects: every key of a exists in b and maps to a contained value
//   - arrays: every element of a is contained in some element of b
//   - scalars: equal by value
//
// Any missing key or kind mismatch fails the check.
func SubsetOf(a, b Value) bool {
	a, b = normalize(a), normalize(b)

	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok {
			return false
		}
		for _, k := range av.Keys() {
			mine, _ := av.Get(k)
			other, exists := bv.Get(k)
			if !exists || !SubsetOf(mine, other) {
				return false
			}
		}
		return true
	case *Array:
		bv, ok := b.(*Array)
		if !ok {
			return false
		}
		for _, item := range av.Items() {
			found := false
			for _, candidate := range bv.Items() {
				if SubsetOf(item, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return Equal(a, b)
	}
}

// SubsetOf reports whether o is structurally contained in other.
func (o *Object) SubsetOf(other *Object) bool {
	if o == nil {
		return true
	}
	if other == nil {
		return o.Len() == 0
	}
	return SubsetOf(o, other)
}
