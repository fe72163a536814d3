package engine

import (
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Effect document fields.
const (
	FieldSubeventFilters = "subevent_filters"
	FieldConditions      = "conditions"
	FieldFunctions       = "functions"
	FieldOrigin          = "origin"
	FieldOriginPoint     = "origin_point"
	FieldPosition        = "position"
)

// ApplyEffect offers sub to one effect attached to entityID. It reports
// whether a behavior matched and ran.
//
// Behaviors listed under the subevent's kind are tried in order. The first
// one whose conditions hold runs its functions, records the effect in the
// subevent's applied set and ends the call. An effect already in the applied
// set never runs again for the same subevent.
func (e *Engine) ApplyEffect(env *rules.Env, entityID, effectID string, sub *rules.Subevent) (bool, error) {
	return e.applyEffect(env, entityID, effectID, sub, 0)
}

func (e *Engine) applyEffect(env *rules.Env, entityID, effectID string, sub *rules.Subevent, pass int) (bool, error) {
	if sub.HasApplied(effectID) {
		return false, nil
	}

	effect, ok := env.Directory.Get(rules.KindEffect, effectID)
	if !ok {
		// Revoked earlier in this pass
		e.logger.Debug("effect not in directory", "effect", effectID, "entity", entityID)
		return false, nil
	}

	filters, ok := effect.GetObject(FieldSubeventFilters)
	if !ok {
		return false, nil
	}
	raw, ok := filters.Get(sub.Kind())
	if !ok {
		return false, nil
	}
	behaviors, ok := raw.(*doc.Array)
	if !ok {
		return false, NewMalformedError(sub.ID, effectID,
			fmt.Sprintf("subevent_filters.%s is %s, want array", sub.Kind(), doc.KindOf(raw)))
	}

	scope := e.scopeFor(env, entityID, effectID, effect)
	for i, item := range behaviors.Items() {
		if sub.HasApplied(effectID) {
			break
		}
		behavior, ok := item.(*doc.Object)
		if !ok {
			return false, NewMalformedError(sub.ID, effectID,
				fmt.Sprintf("behavior %d is %s, want object", i, doc.KindOf(item)))
		}

		matched, err := e.runBehavior(env, scope, sub, behavior)
		if rules.IsNotApplicable(err) {
			e.logger.Warn("behavior not applicable",
				"effect", effectID,
				"entity", entityID,
				"subevent", sub.ID,
				"kind", sub.Kind(),
				"error", err,
			)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("effect %s behavior %d: %w", effectID, i, err)
		}
		if !matched {
			continue
		}

		sub.MarkApplied(effectID)
		e.logger.Debug("effect applied",
			"effect", effectID,
			"entity", entityID,
			"subevent", sub.ID,
			"behavior", i,
			"pass", pass,
		)
		app := Application{
			SubeventID: sub.ID,
			Seq:        sub.Seq,
			Pass:       pass,
			Entity:     entityID,
			Effect:     effectID,
			Behavior:   i,
		}
		if err := e.recorder.RecordApplication(env.Context(), app); err != nil {
			return true, fmt.Errorf("record application: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// runBehavior evaluates the behavior's conditions as a conjunction and, when
// they hold, executes its functions in order. A function that does not apply
// to this subevent kind is logged and skipped; the behavior still counts as
// applied.
func (e *Engine) runBehavior(env *rules.Env, scope rules.Scope, sub *rules.Subevent, behavior *doc.Object) (bool, error) {
	conditions, err := nodeList(sub, scope.Effect, behavior, FieldConditions)
	if err != nil {
		return false, err
	}
	for _, node := range conditions {
		ok, err := e.EvaluateCondition(env, scope, sub, node)
		if err != nil || !ok {
			return false, err
		}
	}

	functions, err := nodeList(sub, scope.Effect, behavior, FieldFunctions)
	if err != nil {
		return false, err
	}
	for i, node := range functions {
		err := e.executeFunction(env, scope, sub, node)
		if rules.IsNotApplicable(err) {
			e.logger.Warn("function not applicable",
				"effect", scope.Effect,
				"subevent", sub.ID,
				"index", i,
				"error", err,
			)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("function %d: %w", i, err)
		}
	}
	return true, nil
}

// EvaluateCondition evaluates a condition tree. The composites all, any and
// invert are handled here; every other identifier dispatches to the registry
// after its discriminant is verified.
//
// all and any are short-circuiting and both hold on an empty list. invert
// takes exactly one nested condition.
func (e *Engine) EvaluateCondition(env *rules.Env, scope rules.Scope, sub *rules.Subevent, node *doc.Object) (bool, error) {
	id, ok := node.GetString(rules.TagCondition)
	if !ok || id == "" {
		return false, NewMalformedError(sub.ID, scope.Effect, "condition missing \"condition\" field")
	}

	switch id {
	case rules.CompositeAll:
		children, err := nodeList(sub, scope.Effect, node, FieldConditions)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			ok, err := e.EvaluateCondition(env, scope, sub, child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case rules.CompositeAny:
		children, err := nodeList(sub, scope.Effect, node, FieldConditions)
		if err != nil {
			return false, err
		}
		if len(children) == 0 {
			return true, nil
		}
		for _, child := range children {
			ok, err := e.EvaluateCondition(env, scope, sub, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case rules.CompositeInvert:
		children, err := nodeList(sub, scope.Effect, node, FieldConditions)
		if err != nil {
			return false, err
		}
		if len(children) != 1 {
			return false, NewMalformedError(sub.ID, scope.Effect,
				fmt.Sprintf("invert takes exactly one condition, got %d", len(children)))
		}
		ok, err := e.EvaluateCondition(env, scope, sub, children[0])
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		h, err := e.registry.Condition(id)
		if err != nil {
			return false, err
		}
		if err := rules.Verify(h, rules.TagCondition, node); err != nil {
			return false, err
		}
		return h.Evaluate(env, scope, sub, node)
	}
}

func (e *Engine) executeFunction(env *rules.Env, scope rules.Scope, sub *rules.Subevent, node *doc.Object) error {
	id, ok := node.GetString(rules.TagFunction)
	if !ok || id == "" {
		return NewMalformedError(sub.ID, scope.Effect, "function missing \"function\" field")
	}
	h, err := e.registry.Function(id)
	if err != nil {
		return err
	}
	if err := rules.Verify(h, rules.TagFunction, node); err != nil {
		return err
	}
	return h.Execute(env, scope, sub, node)
}

// nodeList reads an optional array of objects at field.
func nodeList(sub *rules.Subevent, effectID string, parent *doc.Object, field string) ([]*doc.Object, error) {
	raw, ok := parent.Get(field)
	if !ok {
		return nil, nil
	}
	arr, ok := raw.(*doc.Array)
	if !ok {
		return nil, NewMalformedError(sub.ID, effectID,
			fmt.Sprintf("%s is %s, want array", field, doc.KindOf(raw)))
	}
	out := make([]*doc.Object, 0, arr.Len())
	for i, item := range arr.Items() {
		obj, ok := item.(*doc.Object)
		if !ok {
			return nil, NewMalformedError(sub.ID, effectID,
				fmt.Sprintf("%s[%d] is %s, want object", field, i, doc.KindOf(item)))
		}
		out = append(out, obj)
	}
	return out, nil
}

// scopeFor builds the scope of one effect. The spatial origin comes from the
// effect's origin_point, else from the position of its origin entity.
func (e *Engine) scopeFor(env *rules.Env, entityID, effectID string, effect *doc.Object) rules.Scope {
	scope := rules.Scope{
		Owner:  entityID,
		Effect: effectID,
		Origin: effect.StringOr(FieldOrigin, ""),
	}
	if raw, ok := effect.Get(FieldOriginPoint); ok {
		if p, ok := rules.PointFrom(raw); ok {
			scope.Point = &p
			return scope
		}
	}
	if origin, ok := env.Entity(scope.Origin); ok {
		raw, _ := origin.Get(FieldPosition)
		if p, ok := rules.PointFrom(raw); ok {
			scope.Point = &p
		}
	}
	return scope
}
