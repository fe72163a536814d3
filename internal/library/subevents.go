package library

import (
	"fmt"
	"math"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Subevent identifiers.
const (
	SubeventGeneric        = "generic"
	SubeventRest           = "rest"
	SubeventTest           = "test"
	SubeventDamage         = "damage"
	SubeventDamageAffinity = "damage_affinity"
)

// Conventional document fields used by the built-ins.
const (
	FieldEffects     = rules.FieldEffects
	FieldResources   = rules.FieldResources
	FieldOrigin      = "origin"
	FieldOwner       = "owner"
	FieldTemplate    = "template"
	FieldAffinities  = "affinities"
	FieldDamageTypes = "damage_types"
	FieldDamage      = "damage"
	FieldFinal       = "final"
	FieldTotal       = "total"
	FieldHitPoints   = "hit_points"
)

// Affinity flags and outcomes.
const (
	AffinityImmunity      = "immunity"
	AffinityResistance    = "resistance"
	AffinityVulnerability = "vulnerability"

	AffinityNormal     = "normal"
	AffinityImmune     = "immune"
	AffinityResistant  = "resistant"
	AffinityVulnerable = "vulnerable"
)

// genericSubevent carries no payload of its own.
type genericSubevent struct{ id string }

func (g genericSubevent) ID() string                              { return g.id }
func (genericSubevent) Prepare(*rules.Env, *rules.Subevent) error { return nil }
func (genericSubevent) Clone(sub *rules.Subevent) *rules.Subevent { return sub.Clone() }
func (genericSubevent) Resolve(*rules.Env, *rules.Subevent) error { return nil }

// damageAffinitySubevent asks which affinities a target has for a set of
// damage types. Effects answer by granting flags; nothing is written on
// resolve.
type damageAffinitySubevent struct{}

func (damageAffinitySubevent) ID() string { return SubeventDamageAffinity }

func (damageAffinitySubevent) Prepare(_ *rules.Env, sub *rules.Subevent) error {
	types := sub.Doc.Strings(FieldDamageTypes)
	if t, ok := sub.Doc.GetString("damage_type"); ok {
		types = append(types, t)
	}
	affinities := sub.Doc.EnsureObject(FieldAffinities)
	for _, t := range types {
		entry := affinities.EnsureObject(t)
		for _, flag := range []string{AffinityImmunity, AffinityResistance, AffinityVulnerability} {
			if !entry.Has(flag) {
				entry.Set(flag, doc.Bool(false))
			}
		}
	}
	return nil
}

func (damageAffinitySubevent) Clone(sub *rules.Subevent) *rules.Subevent { return sub.Clone() }

func (damageAffinitySubevent) Resolve(*rules.Env, *rules.Subevent) error { return nil }

// Affinity reports the resolved affinity of a damage_affinity document for
// damageType. Immunity wins; resistance and vulnerability cancel out.
// Types the document does not mention are normal.
func Affinity(d *doc.Object, damageType string) string {
	affinities, ok := d.GetObject(FieldAffinities)
	if !ok {
		return AffinityNormal
	}
	entry, ok := affinities.GetObject(damageType)
	if !ok {
		return AffinityNormal
	}
	immune := entry.BoolOr(AffinityImmunity, false)
	resistant := entry.BoolOr(AffinityResistance, false)
	vulnerable := entry.BoolOr(AffinityVulnerability, false)
	switch {
	case immune:
		return AffinityImmune
	case resistant && !vulnerable:
		return AffinityResistant
	case vulnerable && !resistant:
		return AffinityVulnerable
	default:
		return AffinityNormal
	}
}

// damageSubevent accumulates damage per type in "damage". Prepare adds the
// rolls listed in "dice" ({damage_type, dice, bonus}) once for all targets.
// Resolve asks the target's affinities through a nested damage_affinity
// subevent, writes "final" and "total", and subtracts the total from the
// target's "hit_points".
type damageSubevent struct{}

func (damageSubevent) ID() string { return SubeventDamage }

func (h damageSubevent) Prepare(env *rules.Env, sub *rules.Subevent) error {
	rolls, ok := sub.Doc.GetArray("dice")
	if !ok {
		return nil
	}
	damage := sub.Doc.EnsureObject(FieldDamage)
	for i, item := range rolls.Items() {
		entry, ok := item.(*doc.Object)
		if !ok {
			return fmt.Errorf("%s: dice[%d] is %s, not an object", h.ID(), i, doc.KindOf(item))
		}
		damageType, err := requireString(h.ID(), entry, "damage_type")
		if err != nil {
			return err
		}
		total := entry.NumberOr("bonus", 0)
		if spec, ok := entry.GetString("dice"); ok && spec != "" {
			if env.Dice == nil {
				return fmt.Errorf("%s: dice service is required to roll %q", h.ID(), spec)
			}
			n, err := env.Dice.Roll(spec)
			if err != nil {
				return fmt.Errorf("%s: %w", h.ID(), err)
			}
			total += float64(n)
		}
		damage.Set(damageType, doc.NumberValue(damage.NumberOr(damageType, 0)+total))
	}
	sub.Doc.Delete("dice")
	return nil
}

func (damageSubevent) Clone(sub *rules.Subevent) *rules.Subevent { return sub.Clone() }

func (h damageSubevent) Resolve(env *rules.Env, sub *rules.Subevent) error {
	damage := sub.Doc.EnsureObject(FieldDamage)
	final := doc.NewObject()
	if sub.Canceled() {
		sub.Doc.Set(FieldFinal, final)
		sub.Doc.Set(FieldTotal, doc.Int(0))
		return nil
	}

	affinity := doc.NewObject()
	if env.Invoker != nil && sub.Target() != "" && damage.Len() > 0 {
		query := doc.NewObject(
			doc.P(rules.FieldSubevent, doc.String(SubeventDamageAffinity)),
			doc.P(rules.FieldSource, doc.String(sub.Source())),
			doc.P(rules.FieldTarget, doc.String(sub.Target())),
			doc.P(FieldDamageTypes, doc.StringArray(damage.Keys()...)),
		)
		results, err := env.Invoke(sub, query)
		if err != nil {
			return fmt.Errorf("%s: affinity: %w", h.ID(), err)
		}
		if len(results) > 0 {
			affinity = results[0].Doc
		}
	}

	total := 0.0
	for _, damageType := range damage.Keys() {
		amount := damage.NumberOr(damageType, 0)
		switch Affinity(affinity, damageType) {
		case AffinityImmune:
			amount = 0
		case AffinityResistant:
			amount = math.Floor(amount / 2)
		case AffinityVulnerable:
			amount *= 2
		}
		final.Set(damageType, doc.NumberValue(amount))
		total += amount
	}
	sub.Doc.Set(FieldFinal, final)
	sub.Doc.Set(FieldTotal, doc.NumberValue(total))

	if ent, ok := env.Entity(sub.Target()); ok {
		if hp, ok := ent.GetNumber(FieldHitPoints); ok {
			ent.Set(FieldHitPoints, doc.NumberValue(math.Max(0, hp-total)))
		}
	}
	return nil
}
