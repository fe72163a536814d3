package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		buf.WriteString("\ntrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s target=%s applied=%v\n", ev.Seq, ev.ID, ev.Subevent, ev.Target, ev.Applied)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertApplied:
		return assertApplied(result.Trace, a)
	case AssertState:
		return assertState(result.State, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains holds when some subevent of the kind contains the
// expected subset.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Subevent == a.Subevent && doc.SubsetOf(a.Expect.Value, ev.Doc) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s containing %s", a.Subevent, render(a.Expect.Value)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder holds when the first occurrences of the kinds appear in
// the listed order. Other subevents may occur in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if _, seen := first[ev.Subevent]; !seen {
			first[ev.Subevent] = i
		}
	}

	prev := -1
	for _, kind := range a.Subevents {
		pos, ok := first[kind]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("order %v", a.Subevents),
				Actual:   fmt.Sprintf("%s not found in trace", kind),
				Trace:    trace,
			}
		}
		if pos < prev {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("order %v", a.Subevents),
				Actual:   fmt.Sprintf("%s occurs before its predecessor", kind),
				Trace:    trace,
			}
		}
		prev = pos
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Subevent == a.Subevent {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s subevents", a.Count, a.Subevent),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertApplied holds when the first subevent of the kind was modified by
// exactly the listed effects, in application order.
func assertApplied(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Subevent != a.Subevent {
			continue
		}
		if !equalStrings(ev.Applied, a.Effects) {
			return &AssertionError{
				Type:     AssertApplied,
				Expected: fmt.Sprintf("%s applied %v", a.Subevent, a.Effects),
				Actual:   fmt.Sprintf("%v", ev.Applied),
				Trace:    trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertApplied,
		Expected: fmt.Sprintf("%s applied %v", a.Subevent, a.Effects),
		Actual:   "subevent not found in trace",
		Trace:    trace,
	}
}

// assertState checks a directory document from the final snapshot.
func assertState(state *doc.Object, a Assertion) error {
	kind := a.Kind
	if kind == "" {
		kind = rules.KindEntity
	}
	entry, ok := state.GetObject(a.ID)
	if !ok || entry.StringOr("kind", "") != kind {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s %q in directory", kind, a.ID),
			Actual:   "not found",
		}
	}
	body, _ := entry.GetObject("doc")

	if a.Path != "" {
		got, ok := doc.Seek(body, a.Path)
		if !ok {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s %s = %s", a.ID, a.Path, render(a.Equals.Value)),
				Actual:   "path not found",
			}
		}
		if !doc.Equal(got, a.Equals.Value) {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s %s = %s", a.ID, a.Path, render(a.Equals.Value)),
				Actual:   render(got),
			}
		}
	}
	if !a.Expect.IsZero() && !doc.SubsetOf(a.Expect.Value, body) {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s containing %s", a.ID, render(a.Expect.Value)),
			Actual:   body.String(),
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
