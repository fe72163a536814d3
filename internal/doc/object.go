package doc

// Object is a string-keyed map that preserves insertion order.
// Re-setting an existing key keeps its original position.
type Object struct {
	keys []string
	vals map[string]Value
}

func (*Object) docValue() {}

// Pair is a key/value pair for ordered object construction.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
// Example: NewObject(P("condition", String("true")))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject creates an object from pairs in order.
func NewObject(pairs ...Pair) *Object {
	obj := &Object{
		keys: make([]string, 0, len(pairs)),
		vals: make(map[string]Value, len(pairs)),
	}
	for _, p := range pairs {
		obj.Set(p.Key, p.Value)
	}
	return obj
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns keys in insertion order. The returned slice is a copy.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.vals[key]
	return ok
}

// Get returns the raw value stored at key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Set stores v at key and returns o for chaining.
func (o *Object) Set(key string, v Value) *Object {
	if o.vals == nil {
		o.vals = make(map[string]Value)
	}
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = normalize(v)
	return o
}

// Delete removes key. Missing keys are ignored.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, exists := o.vals[key]; !exists {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each key in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}

// GetString returns the string at key. ok is false when the key is missing
// or holds another kind.
func (o *Object) GetString(key string) (string, bool) {
	v, _ := o.Get(key)
	s, ok := v.(String)
	return string(s), ok
}

// GetInt returns the Int at key. Floats are not truncated.
func (o *Object) GetInt(key string) (int64, bool) {
	v, _ := o.Get(key)
	n, ok := v.(Int)
	return int64(n), ok
}

// GetFloat returns the Float at key.
func (o *Object) GetFloat(key string) (float64, bool) {
	v, _ := o.Get(key)
	f, ok := v.(Float)
	return float64(f), ok
}

// GetNumber returns the Int or Float at key as a float64.
func (o *Object) GetNumber(key string) (float64, bool) {
	v, _ := o.Get(key)
	return Number(v)
}

// GetBool returns the Bool at key.
func (o *Object) GetBool(key string) (bool, bool) {
	v, _ := o.Get(key)
	b, ok := v.(Bool)
	return bool(b), ok
}

// GetObject returns the object at key.
func (o *Object) GetObject(key string) (*Object, bool) {
	v, _ := o.Get(key)
	obj, ok := v.(*Object)
	return obj, ok && obj != nil
}

// GetArray returns the array at key.
func (o *Object) GetArray(key string) (*Array, bool) {
	v, _ := o.Get(key)
	arr, ok := v.(*Array)
	return arr, ok && arr != nil
}

// StringOr returns the string at key or def.
func (o *Object) StringOr(key, def string) string {
	if s, ok := o.GetString(key); ok {
		return s
	}
	return def
}

// NumberOr returns the number at key or def.
func (o *Object) NumberOr(key string, def float64) float64 {
	if n, ok := o.GetNumber(key); ok {
		return n
	}
	return def
}

// BoolOr returns the bool at key or def.
func (o *Object) BoolOr(key string, def bool) bool {
	if b, ok := o.GetBool(key); ok {
		return b
	}
	return def
}

// Strings returns the string elements of the array at key.
// Missing keys and other kinds yield an empty slice.
func (o *Object) Strings(key string) []string {
	arr, ok := o.GetArray(key)
	if !ok {
		return []string{}
	}
	return arr.Strings()
}

// EnsureArray returns the array at key, creating an empty one when the key
// is missing or holds another kind.
func (o *Object) EnsureArray(key string) *Array {
	if arr, ok := o.GetArray(key); ok {
		return arr
	}
	arr := NewArray()
	o.Set(key, arr)
	return arr
}

// EnsureObject returns the object at key, creating an empty one when needed.
func (o *Object) EnsureObject(key string) *Object {
	if obj, ok := o.GetObject(key); ok {
		return obj
	}
	obj := NewObject()
	o.Set(key, obj)
	return obj
}
