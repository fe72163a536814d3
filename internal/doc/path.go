package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Path grammar:
//
//	path    := segment*
//	segment := "." key | key (first segment only) | "[" index "]" | "[" filter "]"
//	index   := decimal integer
//	filter  := JSON object; selects the first array element it is a subset of
//
// Example: a.b[0].c[{"id":"x"}].d

// SegmentKind identifies a path segment form.
type SegmentKind int

const (
	SegmentKey SegmentKind = iota
	SegmentIndex
	SegmentFilter
)

// Segment is one parsed step of a path.
type Segment struct {
	Kind   SegmentKind
	Key    string
	Index  int
	Filter *Object
}

// Path is a parsed seek path.
type Path []Segment

// PathError reports a malformed path.
type PathError struct {
	Path   string
	Offset int
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Path, e.Offset, e.Reason)
}

// ParsePath parses the textual path grammar.
// The empty string is the root path.
func ParsePath(s string) (Path, error) {
	var path Path
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			key, next := scanKey(s, i)
			if key == "" {
				return nil, &PathError{Path: s, Offset: i, Reason: "empty key"}
			}
			path = append(path, Segment{Kind: SegmentKey, Key: key})
			i = next
		case '[':
			seg, next, err := scanBracket(s, i)
			if err != nil {
				return nil, err
			}
			path = append(path, seg)
			i = next
		default:
			if i != 0 {
				return nil, &PathError{Path: s, Offset: i, Reason: "expected '.' or '['"}
			}
			key, next := scanKey(s, i)
			path = append(path, Segment{Kind: SegmentKey, Key: key})
			i = next
		}
	}
	return path, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func scanKey(s string, start int) (string, int) {
	end := start
	for end < len(s) && s[end] != '.' && s[end] != '[' {
		end++
	}
	return s[start:end], end
}

func scanBracket(s string, start int) (Segment, int, error) {
	body := start + 1
	if body >= len(s) {
		return Segment{}, 0, &PathError{Path: s, Offset: start, Reason: "unterminated '['"}
	}

	if s[body] == '{' {
		dec := json.NewDecoder(strings.NewReader(s[body:]))
		dec.UseNumber()
		v, err := decodeValue(dec)
		if err != nil {
			return Segment{}, 0, &PathError{Path: s, Offset: body, Reason: fmt.Sprintf("bad filter: %v", err)}
		}
		filter, ok := v.(*Object)
		if !ok {
			return Segment{}, 0, &PathError{Path: s, Offset: body, Reason: "filter must be an object"}
		}
		end := body + int(dec.InputOffset())
		end = skipSpace(s, end)
		if end >= len(s) || s[end] != ']' {
			return Segment{}, 0, &PathError{Path: s, Offset: end, Reason: "expected ']' after filter"}
		}
		return Segment{Kind: SegmentFilter, Filter: filter}, end + 1, nil
	}

	end := strings.IndexByte(s[body:], ']')
	if end < 0 {
		return Segment{}, 0, &PathError{Path: s, Offset: start, Reason: "unterminated '['"}
	}
	raw := strings.TrimSpace(s[body : body+end])
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return Segment{}, 0, &PathError{Path: s, Offset: body, Reason: fmt.Sprintf("bad index %q", raw)}
	}
	return Segment{Kind: SegmentIndex, Index: n}, body + end + 1, nil
}

func skipSpace(s string, i int) int {
	for i < len(s) && bytes.IndexByte([]byte(" \t\r\n"), s[i]) >= 0 {
		i++
	}
	return i
}

// String renders the path back into its textual form.
func (p Path) String() string {
	var sb strings.Builder
	for _, seg := range p {
		switch seg.Kind {
		case SegmentKey:
			sb.WriteByte('.')
			sb.WriteString(seg.Key)
		case SegmentIndex:
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(seg.Index))
			sb.WriteByte(']')
		case SegmentFilter:
			sb.WriteByte('[')
			sb.WriteString(seg.Filter.String())
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// Seek walks the parsed path from v. Any miss (absent key, index out of
// range, no filter match, kind mismatch) reports false.
func (p Path) Seek(v Value) (Value, bool) {
	cur := normalize(v)
	for _, seg := range p {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur Value, seg Segment) (Value, bool) {
	switch seg.Kind {
	case SegmentKey:
		obj, ok := cur.(*Object)
		if !ok {
			return nil, false
		}
		return obj.Get(seg.Key)
	case SegmentIndex:
		arr, ok := cur.(*Array)
		if !ok {
			return nil, false
		}
		return arr.At(seg.Index)
	case SegmentFilter:
		arr, ok := cur.(*Array)
		if !ok {
			return nil, false
		}
		for _, item := range arr.Items() {
			if SubsetOf(seg.Filter, item) {
				return item, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// Seek parses path and walks it from v. Malformed paths report false;
// use ParsePath to surface the parse error.
func Seek(v Value, path string) (Value, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return p.Seek(v)
}

// Seek is the method form of Seek rooted at o.
func (o *Object) Seek(path string) (Value, bool) {
	return Seek(o, path)
}

// Put writes v at a plain key/index path under root. Missing object keys are
// created along the way; an index equal to the array length appends.
// Filter segments are rejected: callers re-seek the container and mutate it.
func (p Path) Put(root *Object, v Value) error {
	if len(p) == 0 {
		return fmt.Errorf("put: empty path")
	}
	for _, seg := range p {
		if seg.Kind == SegmentFilter {
			return fmt.Errorf("put %s: filter segments are read-only", p)
		}
	}
	if p[0].Kind != SegmentKey {
		return fmt.Errorf("put %s: root is an object, first segment must be a key", p)
	}

	var cur Value = root
	for i, seg := range p {
		last := i == len(p)-1
		switch seg.Kind {
		case SegmentKey:
			obj, ok := cur.(*Object)
			if !ok {
				return fmt.Errorf("put %s: segment %d expects object, found %s", p, i, KindOf(cur))
			}
			if last {
				obj.Set(seg.Key, v)
				return nil
			}
			next, exists := obj.Get(seg.Key)
			if !exists || KindOf(next) == KindNull {
				next = containerFor(p[i+1])
				obj.Set(seg.Key, next)
			}
			cur = next
		case SegmentIndex:
			arr, ok := cur.(*Array)
			if !ok {
				return fmt.Errorf("put %s: segment %d expects array, found %s", p, i, KindOf(cur))
			}
			if seg.Index > arr.Len() {
				return fmt.Errorf("put %s: index %d out of range (len %d)", p, seg.Index, arr.Len())
			}
			if seg.Index == arr.Len() {
				if last {
					arr.Append(v)
					return nil
				}
				arr.Append(containerFor(p[i+1]))
			}
			if last {
				arr.Set(seg.Index, v)
				return nil
			}
			cur, _ = arr.At(seg.Index)
		}
	}
	return nil
}

func containerFor(next Segment) Value {
	if next.Kind == SegmentIndex {
		return NewArray()
	}
	return NewObject()
}

// Put parses path and writes v under o.
func (o *Object) Put(path string, v Value) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return p.Put(o, v)
}
