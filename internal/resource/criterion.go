package resource

import (
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Criterion document fields.
const (
	FieldSubevent          = "subevent"
	FieldActor             = "actor"
	FieldChance            = "chance"
	FieldCompleted         = "completed"
	FieldRequired          = "required"
	FieldRequiredGenerator = "required_generator"
	FieldBonus             = "bonus"
	FieldDice              = "dice"
)

// Actors a criterion can require the owner to be.
const (
	ActorSource = "source"
	ActorTarget = "target"
)

// DefaultChance is the refresh chance, in percent, when none is given.
const DefaultChance = 100.0

// Generator produces the number of completions a criterion needs:
// Bonus plus the sum of the Dice rolls.
type Generator struct {
	Bonus int
	Dice  []string
}

// Generate rolls the generator.
func (g Generator) Generate(roller Roller) (int, error) {
	total := g.Bonus
	if len(g.Dice) > 0 && roller == nil {
		return 0, fmt.Errorf("required generator rolls %v: no dice service", g.Dice)
	}
	for _, spec := range g.Dice {
		n, err := roller.Roll(spec)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Criterion is one way an exhausted resource makes progress toward refresh.
type Criterion struct {
	Subevent  string
	Tags      []string
	Actor     string
	Chance    float64
	Completed int
	Required  int
	Generator Generator
}

// Matches reports whether sub counts toward this criterion for owner: the
// kind matches, sub carries every criterion tag, the criterion's actor is
// owner and a probability draw lands within Chance.
func (c *Criterion) Matches(sub *rules.Subevent, owner string, drawer Drawer) bool {
	if sub.Kind() != c.Subevent {
		return false
	}
	if !sub.HasTags(c.Tags...) {
		return false
	}
	actor := sub.Source()
	if c.Actor == ActorTarget {
		actor = sub.Target()
	}
	if owner == "" || actor != owner {
		return false
	}
	draw := 0.0
	if drawer != nil {
		draw = drawer.Draw()
	}
	return draw*100 <= c.Chance
}

func loadCriterion(d *doc.Object) (*Criterion, error) {
	c := &Criterion{
		Subevent: d.StringOr(FieldSubevent, ""),
		Tags:     d.Strings(FieldTags),
		Actor:    d.StringOr(FieldActor, ActorSource),
		Chance:   d.NumberOr(FieldChance, DefaultChance),
	}
	if c.Subevent == "" {
		return nil, fmt.Errorf("missing %q", FieldSubevent)
	}
	if c.Actor != ActorSource && c.Actor != ActorTarget {
		return nil, fmt.Errorf("actor %q, want %q or %q", c.Actor, ActorSource, ActorTarget)
	}
	c.Completed = int(d.NumberOr(FieldCompleted, 0))
	c.Required = int(d.NumberOr(FieldRequired, 0))

	if gen, ok := d.GetObject(FieldRequiredGenerator); ok {
		c.Generator.Bonus = int(gen.NumberOr(FieldBonus, 0))
		c.Generator.Dice = gen.Strings(FieldDice)
	}
	return c, nil
}

func (c *Criterion) document() *doc.Object {
	return doc.NewObject(
		doc.P(FieldSubevent, doc.String(c.Subevent)),
		doc.P(FieldTags, doc.StringArray(c.Tags...)),
		doc.P(FieldActor, doc.String(c.Actor)),
		doc.P(FieldChance, doc.NumberValue(c.Chance)),
		doc.P(FieldCompleted, doc.Int(int64(c.Completed))),
		doc.P(FieldRequired, doc.Int(int64(c.Required))),
		doc.P(FieldRequiredGenerator, doc.NewObject(
			doc.P(FieldBonus, doc.Int(int64(c.Generator.Bonus))),
			doc.P(FieldDice, doc.StringArray(c.Generator.Dice...)),
		)),
	)
}
