package resource

import (
	"errors"
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Resource document fields.
const (
	FieldPotency         = "potency"
	FieldExhausted       = "exhausted"
	FieldTags            = "tags"
	FieldRefreshCriteria = "refresh_criteria"
)

// State is the availability of a resource.
type State int

const (
	Available State = iota
	Exhausted
)

func (s State) String() string {
	if s == Exhausted {
		return "exhausted"
	}
	return "available"
}

// ErrAlreadyExhausted is returned when exhausting an exhausted resource.
var ErrAlreadyExhausted = errors.New("resource already exhausted")

// Roller rolls die specs for required generators. Satisfied by dice.Roller.
type Roller interface {
	Roll(spec string) (int, error)
}

// Drawer produces probability draws in [0, 1). Satisfied by dice.Roller.
type Drawer interface {
	Draw() float64
}

// Resource is a limited-use capability.
//
// INVARIANTS:
//   - Completed counts only change while the resource is Exhausted
//   - Every transition resets Completed to 0 on every criterion
type Resource struct {
	ID       string
	Potency  float64
	Tags     []string
	Criteria []*Criterion

	state State
	src   *doc.Object
}

// Load reads a resource document. The returned Resource remembers d, so
// Document writes state changes back into it.
func Load(d *doc.Object) (*Resource, error) {
	if d == nil {
		return nil, fmt.Errorf("load resource: nil document")
	}
	r := &Resource{
		ID:      d.StringOr("id", ""),
		Potency: d.NumberOr(FieldPotency, 0),
		Tags:    d.Strings(FieldTags),
		src:     d,
	}
	if d.BoolOr(FieldExhausted, false) {
		r.state = Exhausted
	}

	if raw, ok := d.Get(FieldRefreshCriteria); ok {
		arr, ok := raw.(*doc.Array)
		if !ok {
			return nil, fmt.Errorf("load resource %s: %s is %s, want array", r.ID, FieldRefreshCriteria, doc.KindOf(raw))
		}
		for i, item := range arr.Items() {
			obj, ok := item.(*doc.Object)
			if !ok {
				return nil, fmt.Errorf("load resource %s: %s[%d] is %s, want object", r.ID, FieldRefreshCriteria, i, doc.KindOf(item))
			}
			c, err := loadCriterion(obj)
			if err != nil {
				return nil, fmt.Errorf("load resource %s: %s[%d]: %w", r.ID, FieldRefreshCriteria, i, err)
			}
			r.Criteria = append(r.Criteria, c)
		}
	}
	return r, nil
}

// Document writes the resource state into its source document, creating
// one when the resource was not loaded, and returns it.
func (r *Resource) Document() *doc.Object {
	if r.src == nil {
		r.src = doc.NewObject()
		if r.ID != "" {
			r.src.Set("id", doc.String(r.ID))
		}
	}
	r.src.Set(FieldPotency, doc.NumberValue(r.Potency))
	r.src.Set(FieldExhausted, doc.Bool(r.state == Exhausted))
	if len(r.Tags) > 0 || r.src.Has(FieldTags) {
		r.src.Set(FieldTags, doc.StringArray(r.Tags...))
	}
	criteria := doc.NewArray()
	for _, c := range r.Criteria {
		criteria.Append(c.document())
	}
	r.src.Set(FieldRefreshCriteria, criteria)
	return r.src
}

// State returns the current state.
func (r *Resource) State() State {
	return r.state
}

// Exhausted reports whether the resource is spent.
func (r *Resource) Exhausted() bool {
	return r.state == Exhausted
}

// HasTags reports whether the resource carries every tag in want.
func (r *Resource) HasTags(want ...string) bool {
	have := make(map[string]bool, len(r.Tags))
	for _, t := range r.Tags {
		have[t] = true
	}
	for _, t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}

// Exhaust spends the resource. Each criterion starts over at zero and
// rolls a fresh required count from its generator.
func (r *Resource) Exhaust(roller Roller) error {
	if r.state == Exhausted {
		return fmt.Errorf("exhaust %s: %w", r.ID, ErrAlreadyExhausted)
	}
	required, err := r.rollRequired(roller)
	if err != nil {
		return err
	}
	r.exhaustWith(required)
	return nil
}

// rollRequired generates the required count of every criterion without
// touching the resource.
func (r *Resource) rollRequired(roller Roller) ([]int, error) {
	required := make([]int, len(r.Criteria))
	for i, c := range r.Criteria {
		n, err := c.Generator.Generate(roller)
		if err != nil {
			return nil, fmt.Errorf("exhaust %s: criterion %d: %w", r.ID, i, err)
		}
		required[i] = n
	}
	return required, nil
}

func (r *Resource) exhaustWith(required []int) {
	for i, c := range r.Criteria {
		c.Completed = 0
		c.Required = required[i]
	}
	r.state = Exhausted
}

// Refresh makes the resource available again and zeroes every criterion.
func (r *Resource) Refresh() {
	for _, c := range r.Criteria {
		c.Completed = 0
		c.Required = 0
	}
	r.state = Available
}

// ProcessSubevent offers sub to the refresh criteria on behalf of owner.
// It reports whether the resource refreshed. Available resources ignore
// subevents.
func (r *Resource) ProcessSubevent(sub *rules.Subevent, owner string, drawer Drawer) bool {
	if r.state != Exhausted {
		return false
	}
	for _, c := range r.Criteria {
		if !c.Matches(sub, owner, drawer) {
			continue
		}
		c.Completed++
		if c.Completed >= c.Required {
			r.Refresh()
			return true
		}
	}
	return false
}
