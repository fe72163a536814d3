package content

import (
	"fmt"
	"strings"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Validation error codes (E210-E219).
const (
	ErrCodeUnknownSubevent  = "E210" // subevent_filters key has no subevent handler
	ErrCodeUnknownCondition = "E211" // condition id has no handler
	ErrCodeUnknownFunction  = "E212" // function id has no handler
	ErrCodeInvertArity      = "E213" // invert wraps other than one condition
	ErrCodeDanglingRef      = "E214" // grant/revoke names a missing template
)

// ValidationError is one problem found by Check.
type ValidationError struct {
	Ref     string `json:"ref"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %s", e.Code, e.Ref, e.Field, e.Message)
}

// Check cross-references every effect template against reg and the
// library itself. It returns all problems found (does not fail fast).
func (lib *Library) Check(reg *rules.Registry) []ValidationError {
	var errs []ValidationError
	for _, ref := range lib.Refs(rules.KindEffect) {
		tpl := lib.templates[rules.KindEffect][ref]
		filters, _ := tpl.GetObject("subevent_filters")
		filters.Range(func(kind string, v doc.Value) bool {
			field := "subevent_filters." + kind
			if _, ok := reg.LookupSubevent(kind); !ok {
				errs = append(errs, ValidationError{
					Ref: ref, Field: field, Code: ErrCodeUnknownSubevent,
					Message: fmt.Sprintf("no subevent handler %q", kind),
				})
			}
			behaviors, _ := v.(*doc.Array)
			for i, item := range behaviors.Items() {
				behavior, ok := item.(*doc.Object)
				if !ok {
					continue
				}
				at := fmt.Sprintf("%s[%d]", field, i)
				conditions, _ := behavior.GetArray("conditions")
				for j, c := range conditions.Items() {
					errs = lib.checkCondition(reg, ref, fmt.Sprintf("%s.conditions[%d]", at, j), c, errs)
				}
				functions, _ := behavior.GetArray("functions")
				for j, f := range functions.Items() {
					errs = lib.checkFunction(reg, ref, fmt.Sprintf("%s.functions[%d]", at, j), f, errs)
				}
			}
			return true
		})
	}
	return errs
}

func (lib *Library) checkCondition(reg *rules.Registry, ref, field string, v doc.Value, errs []ValidationError) []ValidationError {
	node, ok := v.(*doc.Object)
	if !ok {
		return errs
	}
	id := node.StringOr(rules.TagCondition, "")
	children, _ := node.GetArray("conditions")

	if rules.IsComposite(id) {
		if id == rules.CompositeInvert && children.Len() != 1 {
			errs = append(errs, ValidationError{
				Ref: ref, Field: field, Code: ErrCodeInvertArity,
				Message: fmt.Sprintf("invert takes exactly one condition, got %d", children.Len()),
			})
		}
		for i, child := range children.Items() {
			errs = lib.checkCondition(reg, ref, fmt.Sprintf("%s.conditions[%d]", field, i), child, errs)
		}
		return errs
	}
	if _, ok := reg.LookupCondition(id); !ok {
		errs = append(errs, ValidationError{
			Ref: ref, Field: field, Code: ErrCodeUnknownCondition,
			Message: fmt.Sprintf("no condition handler %q", id),
		})
	}
	return errs
}

func (lib *Library) checkFunction(reg *rules.Registry, ref, field string, v doc.Value, errs []ValidationError) []ValidationError {
	node, ok := v.(*doc.Object)
	if !ok {
		return errs
	}
	id := node.StringOr(rules.TagFunction, "")
	if _, ok := reg.LookupFunction(id); !ok {
		errs = append(errs, ValidationError{
			Ref: ref, Field: field, Code: ErrCodeUnknownFunction,
			Message: fmt.Sprintf("no function handler %q", id),
		})
	}
	switch id {
	case "grant_effect", "revoke_effect":
		target := node.StringOr("effect", "")
		if !strings.Contains(target, ":") {
			return errs
		}
		if _, exists := lib.templates[rules.KindEffect][target]; !exists {
			errs = append(errs, ValidationError{
				Ref: ref, Field: field + ".effect", Code: ErrCodeDanglingRef,
				Message: fmt.Sprintf("no effect template %q", target),
			})
		}
	}
	return errs
}
