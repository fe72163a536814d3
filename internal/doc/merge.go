package doc

// DeepClone returns a structural copy of v. The clone shares no mutable
// sub-document with the original at any depth.
func DeepClone(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case *Object:
		return val.DeepClone()
	case *Array:
		return val.DeepClone()
	default:
		// Scalars are immutable values
		return val
	}
}

// DeepClone returns a structural copy of the object.
func (o *Object) DeepClone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys: make([]string, len(o.keys)),
		vals: make(map[string]Value, len(o.vals)),
	}
	copy(out.keys, o.keys)
	for k, v := range o.vals {
		out.vals[k] = DeepClone(v)
	}
	return out
}

// DeepClone returns a structural copy of the array.
func (a *Array) DeepClone() *Array {
	if a == nil {
		return nil
	}
	out := &Array{items: make([]Value, len(a.items))}
	for i, v := range a.items {
		out.items[i] = DeepClone(v)
	}
	return out
}

// Join merges other into o, key by key, and returns o:
//   - both sides objects: recurse
//   - both sides arrays: append elements of other not already present in o,
//     keeping o's elements first
//   - otherwise: other's value overwrites o's
//
// Values taken from other are cloned, so later mutation of other never leaks
// into o. Joining the same operand twice is a no-op the second time.
//
// Every template-to-instance conversion is instance.Join(template).
func (o *Object) Join(other *Object) *Object {
	if other == nil {
		return o
	}
	for _, key := range other.keys {
		incoming := other.vals[key]
		current, exists := o.Get(key)
		if !exists {
			o.Set(key, DeepClone(incoming))
			continue
		}

		switch in := incoming.(type) {
		case *Object:
			if cur, ok := current.(*Object); ok && cur != nil {
				cur.Join(in)
				continue
			}
		case *Array:
			if cur, ok := current.(*Array); ok && cur != nil {
				cur.union(in)
				continue
			}
		}
		o.Set(key, DeepClone(incoming))
	}
	return o
}

// union appends every element of other that a does not already contain.
func (a *Array) union(other *Array) {
	for _, item := range other.Items() {
		if !a.Contains(item) {
			a.items = append(a.items, DeepClone(item))
		}
	}
}
