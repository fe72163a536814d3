package doc

import "math"

// Value is a sealed interface over the document value kinds.
// Only Null, String, Int, Float, Bool, *Array and *Object implement it.
type Value interface {
	docValue() // Sealed
}

// Kind names a value kind for diagnostics.
type Kind string

const (
	KindNull   Kind = "null"
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// Null represents a JSON null.
type Null struct{}

func (Null) docValue() {}

// String is a string value.
type String string

func (String) docValue() {}

// Int is an integral number. JSON numbers without a fraction or exponent
// decode to Int.
type Int int64

func (Int) docValue() {}

// Float is a non-integral number.
type Float float64

func (Float) docValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) docValue() {}

// Array is an ordered list of values. It is always handled by pointer so
// callers holding an array observe in-place appends.
type Array struct {
	items []Value
}

func (*Array) docValue() {}

// NewArray creates an array holding vals.
func NewArray(vals ...Value) *Array {
	items := make([]Value, len(vals))
	copy(items, vals)
	return &Array{items: items}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// At returns the element at index i, or false when out of range.
func (a *Array) At(i int) (Value, bool) {
	if a == nil || i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

// Set replaces the element at index i. Returns false when out of range.
func (a *Array) Set(i int, v Value) bool {
	if a == nil || i < 0 || i >= len(a.items) {
		return false
	}
	a.items[i] = normalize(v)
	return true
}

// Append adds values to the end of the array.
func (a *Array) Append(vals ...Value) {
	for _, v := range vals {
		a.items = append(a.items, normalize(v))
	}
}

// Items returns the backing elements. The slice must not be retained across
// mutations of the array.
func (a *Array) Items() []Value {
	if a == nil {
		return nil
	}
	return a.items
}

// Contains reports whether an element structurally equal to v is present.
func (a *Array) Contains(v Value) bool {
	for _, item := range a.Items() {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// Strings returns the string elements of the array, skipping other kinds.
func (a *Array) Strings() []string {
	out := make([]string, 0, a.Len())
	for _, item := range a.Items() {
		if s, ok := item.(String); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// StringArray builds an array of strings.
func StringArray(vals ...string) *Array {
	arr := &Array{items: make([]Value, len(vals))}
	for i, v := range vals {
		arr.items[i] = String(v)
	}
	return arr
}

// KindOf returns the kind of v. A nil interface reports KindNull.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, Null:
		return KindNull
	case String:
		return KindString
	case Int:
		return KindInt
	case Float:
		return KindFloat
	case Bool:
		return KindBool
	case *Array:
		return KindArray
	case *Object:
		return KindObject
	default:
		return KindNull
	}
}

// Number returns v as a float64 when it is Int or Float.
// No other kind is coerced.
func Number(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// NumberValue returns the most precise value for f: Int when f is integral
// and in range, Float otherwise.
func NumberValue(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return Int(int64(f))
	}
	return Float(f)
}

// normalize maps a nil interface to Null so stored values are never nil.
func normalize(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}
