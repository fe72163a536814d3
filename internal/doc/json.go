package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Parse decodes JSON into a document value. Object key order follows the
// source text. Numbers without a fraction or exponent become Int.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// ParseObject decodes JSON that must hold an object.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", KindOf(v))
	}
	return obj, nil
}

// MustParseObject is like ParseObject but panics on error.
// Use only in tests or with literal input known to be valid.
func MustParseObject(s string) *Object {
	obj, err := ParseObject([]byte(s))
	if err != nil {
		panic(err)
	}
	return obj
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(t)
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, fmt.Errorf("key %q: %w", key, err)
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for i := 0; dec.More(); i++ {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, fmt.Errorf("index %d: %w", i, err)
				}
				arr.Append(val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

func parseNumber(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// Marshal encodes v as JSON with object keys in insertion order.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler preserving insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return Marshal(o)
}

// MarshalJSON implements json.Marshaler.
func (a *Array) MarshalJSON() ([]byte, error) {
	return Marshal(a)
}

// UnmarshalJSON implements json.Unmarshaler preserving source key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	parsed, err := ParseObject(data)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}

// String renders the document as compact JSON for logs and errors.
func (o *Object) String() string {
	b, err := Marshal(o)
	if err != nil {
		return fmt.Sprintf("<invalid document: %v>", err)
	}
	return string(b)
}

// writeJSON encodes v. When sorted is true the output is canonical: object
// keys are emitted in UTF-16 order and strings are NFC normalized.
func writeJSON(buf *bytes.Buffer, v Value, sorted bool) error {
	switch val := normalize(v).(type) {
	case Null:
		buf.WriteString("null")
	case String:
		str := string(val)
		if sorted {
			str = norm.NFC.String(str)
		}
		b, err := marshalString(str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("unsupported float value %v", f)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case *Array:
		buf.WriteByte('[')
		for i, item := range val.Items() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item, sorted); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case *Object:
		keys := val.Keys()
		if sorted {
			sort.Slice(keys, func(i, j int) bool { return compareKeysUTF16(keys[i], keys[j]) < 0 })
		}
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name := k
			if sorted {
				name = norm.NFC.String(k)
			}
			kb, err := marshalString(name)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			item, _ := val.Get(k)
			if err := writeJSON(buf, item, sorted); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown document value type %T", v)
	}
	return nil
}

// marshalString encodes a JSON string without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FromAny converts decoded Go data (encoding/json, yaml.v3, Lua bridges)
// into a document value. Map keys are sorted because Go maps carry no order.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return DeepClone(val), nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return Float(float64(val)), nil
		}
		return Int(int64(val)), nil
	case float64:
		return NumberValue(val), nil
	case float32:
		return NumberValue(float64(val)), nil
	case json.Number:
		return parseNumber(val)
	case []any:
		arr := NewArray()
		for i, item := range val {
			conv, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr.Append(conv)
		}
		return arr, nil
	case []string:
		return StringArray(val...), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			conv, err := FromAny(val[k])
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			obj.Set(k, conv)
		}
		return obj, nil
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = item
		}
		return FromAny(m)
	default:
		return nil, fmt.Errorf("unsupported type for document: %T", v)
	}
}

// ToAny converts a document value into plain Go data: map[string]any,
// []any, string, int64, float64, bool or nil.
func ToAny(v Value) any {
	switch val := normalize(v).(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case *Array:
		out := make([]any, 0, val.Len())
		for _, item := range val.Items() {
			out = append(out, ToAny(item))
		}
		return out
	case *Object:
		out := make(map[string]any, val.Len())
		val.Range(func(k string, item Value) bool {
			out[k] = ToAny(item)
			return true
		})
		return out
	default:
		return nil
	}
}
