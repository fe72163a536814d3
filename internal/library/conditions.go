package library

import (
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

type constantCondition struct {
	id    string
	value bool
}

func (c constantCondition) ID() string { return c.id }

func (c constantCondition) Evaluate(*rules.Env, rules.Scope, *rules.Subevent, *doc.Object) (bool, error) {
	return c.value, nil
}

// compareCondition seeks "path" in the subevent, or in the entity named by
// "actor" when given, and compares it with "value" under "operator".
// An absent path evaluates false.
type compareCondition struct{}

func (compareCondition) ID() string { return "compare" }

func (c compareCondition) Evaluate(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	path, err := requireString(c.ID(), params, "path")
	if err != nil {
		return false, err
	}
	threshold, ok := params.Get("value")
	if !ok {
		return false, fmt.Errorf("%s: missing parameter \"value\"", c.ID())
	}
	op := params.StringOr("operator", rules.OpEqual)

	root := sub.Doc
	if params.Has("actor") {
		id, err := actorID(scope, sub, params, "")
		if err != nil {
			return false, err
		}
		ent, ok := env.Entity(id)
		if !ok {
			return false, nil
		}
		root = ent
	}

	actual, ok := root.Seek(path)
	if !ok {
		return false, nil
	}
	return rules.Compare(actual, threshold, op)
}

// hasTagCondition checks the subevent tags for "tag" or every entry of "tags".
type hasTagCondition struct{}

func (hasTagCondition) ID() string { return "has_tag" }

func (hasTagCondition) Evaluate(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	return sub.HasTags(wantedTags(params)...), nil
}

func wantedTags(params *doc.Object) []string {
	tags := params.Strings("tags")
	if tag, ok := params.GetString("tag"); ok {
		tags = append(tags, tag)
	}
	return tags
}

// entityHasTagCondition checks the tags of the entity selected by "actor"
// (default "target").
type entityHasTagCondition struct{}

func (entityHasTagCondition) ID() string { return "entity_has_tag" }

func (entityHasTagCondition) Evaluate(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	id, err := actorID(scope, sub, params, ActorTarget)
	if err != nil {
		return false, err
	}
	ent, ok := env.Entity(id)
	if !ok {
		return false, nil
	}
	have := make(map[string]bool)
	for _, tag := range ent.Strings(rules.FieldTags) {
		have[tag] = true
	}
	for _, tag := range wantedTags(params) {
		if !have[tag] {
			return false, nil
		}
	}
	return true, nil
}

// isActorCondition reports whether the effect owner is the subevent's
// "actor" (default "source").
type isActorCondition struct{}

func (isActorCondition) ID() string { return "is_actor" }

func (isActorCondition) Evaluate(_ *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	id, err := actorID(scope, sub, params, ActorSource)
	if err != nil {
		return false, err
	}
	return id != "" && id == scope.Owner, nil
}

type isCanceledCondition struct{}

func (isCanceledCondition) ID() string { return "is_canceled" }

func (isCanceledCondition) Evaluate(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, _ *doc.Object) (bool, error) {
	return sub.Canceled(), nil
}

// withinDistanceCondition measures from the effect's origin point to the
// "position" of the entity selected by "actor" (default "target") and
// compares it with "distance". Without an origin point or a position the
// condition does not apply.
type withinDistanceCondition struct{}

func (withinDistanceCondition) ID() string { return "within_distance" }

func (c withinDistanceCondition) Evaluate(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) (bool, error) {
	limit, ok := params.GetNumber("distance")
	if !ok {
		return false, fmt.Errorf("%s: missing numeric parameter \"distance\"", c.ID())
	}
	if scope.Point == nil {
		return false, rules.NotApplicable(c.ID(), sub.Kind())
	}
	id, err := actorID(scope, sub, params, ActorTarget)
	if err != nil {
		return false, err
	}
	ent, ok := env.Entity(id)
	if !ok {
		return false, rules.NotApplicable(c.ID(), sub.Kind())
	}
	raw, _ := ent.Get("position")
	pos, ok := rules.PointFrom(raw)
	if !ok {
		return false, rules.NotApplicable(c.ID(), sub.Kind())
	}
	d, err := env.Registry.Distance(*scope.Point, pos, params.StringOr("algorithm", ""))
	if err != nil {
		return false, err
	}
	return d <= limit, nil
}
