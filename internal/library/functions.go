package library

import (
	"fmt"
	"strings"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// setFunction writes a clone of "value" at "path" in the subevent.
type setFunction struct{}

func (setFunction) ID() string { return "set" }

func (f setFunction) Execute(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	path, err := requireString(f.ID(), params, "path")
	if err != nil {
		return err
	}
	value, ok := params.Get("value")
	if !ok {
		return fmt.Errorf("%s: missing parameter \"value\"", f.ID())
	}
	if err := sub.Doc.Put(path, doc.DeepClone(value)); err != nil {
		return fmt.Errorf("%s: %w", f.ID(), err)
	}
	return nil
}

// addFunction adds "amount" to the number at "path". An absent path counts
// as zero.
type addFunction struct{}

func (addFunction) ID() string { return "add" }

func (f addFunction) Execute(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	path, err := requireString(f.ID(), params, "path")
	if err != nil {
		return err
	}
	amount, ok := params.GetNumber("amount")
	if !ok {
		return fmt.Errorf("%s: missing numeric parameter \"amount\"", f.ID())
	}
	current := 0.0
	if v, found := sub.Doc.Seek(path); found {
		n, isNum := doc.Number(v)
		if !isNum {
			return fmt.Errorf("%s: %s holds %s, not a number", f.ID(), path, doc.KindOf(v))
		}
		current = n
	}
	if err := sub.Doc.Put(path, doc.NumberValue(current+amount)); err != nil {
		return fmt.Errorf("%s: %w", f.ID(), err)
	}
	return nil
}

type appendTagFunction struct{}

func (appendTagFunction) ID() string { return "append_tag" }

func (f appendTagFunction) Execute(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	tags := wantedTags(params)
	if len(tags) == 0 {
		return fmt.Errorf("%s: missing parameter \"tag\"", f.ID())
	}
	list := sub.Doc.EnsureArray(rules.FieldTags)
	for _, tag := range tags {
		if !list.Contains(doc.String(tag)) {
			list.Append(doc.String(tag))
		}
	}
	return nil
}

// cancelFunction sets the cooperative cancel flag.
type cancelFunction struct{}

func (cancelFunction) ID() string { return "cancel" }

func (f cancelFunction) Execute(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, _ *doc.Object) error {
	if !sub.Cancel() {
		return rules.NotApplicable(f.ID(), sub.Kind())
	}
	return nil
}

// affinityFunction flags immunity, resistance or vulnerability on a
// damage_affinity subevent, for "damage_type" or for every type when omitted.
type affinityFunction struct {
	id    string
	field string
}

func (f affinityFunction) ID() string { return f.id }

func (f affinityFunction) Execute(_ *rules.Env, _ rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	if sub.Kind() != SubeventDamageAffinity {
		return rules.NotApplicable(f.ID(), sub.Kind())
	}
	affinities := sub.Doc.EnsureObject(FieldAffinities)
	only, filtered := params.GetString("damage_type")
	for _, damageType := range affinities.Keys() {
		if filtered && damageType != only {
			continue
		}
		affinities.EnsureObject(damageType).Set(f.field, doc.Bool(true))
	}
	return nil
}

// invokeSubeventFunction runs the "subevent" document as a nested subevent.
// The string placeholders $owner, $origin, $source and $target in its
// source, target and targets fields are bound from the current scope.
type invokeSubeventFunction struct{}

func (invokeSubeventFunction) ID() string { return "invoke_subevent" }

func (f invokeSubeventFunction) Execute(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	template, ok := params.GetObject(rules.FieldSubevent)
	if !ok {
		return fmt.Errorf("%s: missing object parameter \"subevent\"", f.ID())
	}
	nested := template.DeepClone()
	bind := func(s string) string {
		switch s {
		case "$owner":
			return scope.Owner
		case "$origin":
			return scope.Origin
		case "$source":
			return sub.Source()
		case "$target":
			return sub.Target()
		default:
			return s
		}
	}
	for _, field := range []string{rules.FieldSource, rules.FieldTarget} {
		if s, ok := nested.GetString(field); ok {
			nested.Set(field, doc.String(bind(s)))
		}
	}
	if !nested.Has(rules.FieldSource) {
		nested.Set(rules.FieldSource, doc.String(scope.Owner))
	}
	if targets, ok := nested.GetArray(rules.FieldTargets); ok {
		bound := doc.NewArray()
		for _, t := range targets.Strings() {
			bound.Append(doc.String(bind(t)))
		}
		nested.Set(rules.FieldTargets, bound)
	}

	if _, err := env.Invoke(sub, nested); err != nil {
		return fmt.Errorf("%s: %w", f.ID(), err)
	}
	return nil
}

// grantEffectFunction instantiates the "effect" template and attaches the
// instance to the entity selected by "actor" (default "target").
type grantEffectFunction struct{}

func (grantEffectFunction) ID() string { return "grant_effect" }

func (f grantEffectFunction) Execute(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	ref, err := requireString(f.ID(), params, "effect")
	if err != nil {
		return err
	}
	if env.Content == nil || env.Directory == nil {
		return fmt.Errorf("%s: content and directory are required", f.ID())
	}
	entityID, err := actorID(scope, sub, params, ActorTarget)
	if err != nil {
		return err
	}
	ent, ok := env.Entity(entityID)
	if !ok {
		return fmt.Errorf("%s: entity %q not found", f.ID(), entityID)
	}

	overrides, _ := params.GetObject("overrides")
	effect, err := env.Content.Instantiate(rules.KindEffect, ref, overrides)
	if err != nil {
		return fmt.Errorf("%s: %w", f.ID(), err)
	}
	if !effect.Has(FieldOrigin) && scope.Owner != "" {
		effect.Set(FieldOrigin, doc.String(scope.Owner))
	}
	effect.Set(FieldOwner, doc.String(entityID))

	id, err := env.Directory.Register(rules.KindEffect, effect)
	if err != nil {
		return fmt.Errorf("%s: %w", f.ID(), err)
	}
	ent.EnsureArray(FieldEffects).Append(doc.String(id))
	env.Log().Debug("effect granted", "effect", id, "template", ref, "entity", entityID)
	return nil
}

// revokeEffectFunction removes from the selected entity every effect whose
// id or template equals "effect", and unregisters it.
type revokeEffectFunction struct{}

func (revokeEffectFunction) ID() string { return "revoke_effect" }

func (f revokeEffectFunction) Execute(env *rules.Env, scope rules.Scope, sub *rules.Subevent, params *doc.Object) error {
	ref, err := requireString(f.ID(), params, "effect")
	if err != nil {
		return err
	}
	entityID, err := actorID(scope, sub, params, ActorTarget)
	if err != nil {
		return err
	}
	ent, ok := env.Entity(entityID)
	if !ok {
		return fmt.Errorf("%s: entity %q not found", f.ID(), entityID)
	}

	kept := doc.NewArray()
	for _, id := range ent.Strings(FieldEffects) {
		if matchesEffect(env, id, ref) {
			env.Directory.Unregister(id)
			env.Log().Debug("effect revoked", "effect", id, "entity", entityID)
			continue
		}
		kept.Append(doc.String(id))
	}
	ent.Set(FieldEffects, kept)
	return nil
}

func matchesEffect(env *rules.Env, id, ref string) bool {
	if id == ref {
		return true
	}
	if !strings.Contains(ref, ":") {
		return false
	}
	effect, ok := env.Directory.Get(rules.KindEffect, id)
	return ok && effect.StringOr(FieldTemplate, "") == ref
}
