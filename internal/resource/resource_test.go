package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grimoire/internal/dice"
	"github.com/roach88/grimoire/internal/directory"
	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
	"github.com/roach88/grimoire/internal/testutil"
)

func load(t *testing.T, body string) *Resource {
	t.Helper()
	r, err := Load(testutil.MustDoc(t, body))
	require.NoError(t, err)
	return r
}

func rest(t *testing.T, owner string) *rules.Subevent {
	t.Helper()
	return rules.NewSubevent(testutil.MustDoc(t,
		`{"subevent":"rest","source":"`+owner+`","tags":["short"]}`))
}

// TestResource_RefreshAfterRequiredCompletions walks a four-step refresh.
func TestResource_RefreshAfterRequiredCompletions(t *testing.T) {
	r := load(t, `{"id":"slot","refresh_criteria":[
		{"subevent":"rest","required_generator":{"bonus":4,"dice":[]}}
	]}`)
	roller := dice.NewTesting(0.5)

	require.NoError(t, r.Exhaust(roller))
	assert.Equal(t, Exhausted, r.State())
	assert.Equal(t, 4, r.Criteria[0].Required)

	for i := 1; i <= 3; i++ {
		assert.False(t, r.ProcessSubevent(rest(t, "hero"), "hero", roller))
		assert.Equal(t, Exhausted, r.State())
		assert.Equal(t, i, r.Criteria[0].Completed)
	}

	assert.True(t, r.ProcessSubevent(rest(t, "hero"), "hero", roller))
	assert.Equal(t, Available, r.State())
	assert.Equal(t, 0, r.Criteria[0].Completed)
	assert.Equal(t, 0, r.Criteria[0].Required)
}

// TestResource_BonusOnlyGenerator verifies a fixed bonus sets required directly.
func TestResource_BonusOnlyGenerator(t *testing.T) {
	r := load(t, `{"refresh_criteria":[{"subevent":"rest","required_generator":{"bonus":1,"dice":[]}}]}`)
	require.NoError(t, r.Exhaust(nil))
	assert.Equal(t, 1, r.Criteria[0].Required)
	assert.Equal(t, 0, r.Criteria[0].Completed)
}

// TestResource_DiceGenerator verifies dice are rolled on every exhaust.
func TestResource_DiceGenerator(t *testing.T) {
	r := load(t, `{"refresh_criteria":[{"subevent":"rest","required_generator":{"bonus":1,"dice":["1d4","1d6"]}}]}`)
	require.NoError(t, r.Exhaust(dice.NewTesting(0.5, 3, 5)))
	assert.Equal(t, 9, r.Criteria[0].Required)

	r.Refresh()
	err := r.Exhaust(nil)
	require.Error(t, err)
	assert.Equal(t, Available, r.State(), "failed exhaust leaves state alone")
}

// TestResource_ExhaustTwice verifies exhausting is only legal when available.
func TestResource_ExhaustTwice(t *testing.T) {
	r := load(t, `{"refresh_criteria":[]}`)
	require.NoError(t, r.Exhaust(nil))
	assert.ErrorIs(t, r.Exhaust(nil), ErrAlreadyExhausted)
}

// TestResource_AvailableIgnoresSubevents verifies completed only moves while exhausted.
func TestResource_AvailableIgnoresSubevents(t *testing.T) {
	r := load(t, `{"refresh_criteria":[{"subevent":"rest","required":3}]}`)
	assert.False(t, r.ProcessSubevent(rest(t, "hero"), "hero", nil))
	assert.Equal(t, 0, r.Criteria[0].Completed)
}

// TestCriterion_Matches covers every matching rule.
func TestCriterion_Matches(t *testing.T) {
	sub := rules.NewSubevent(testutil.MustDoc(t,
		`{"subevent":"rest","source":"hero","target":"camp","tags":["long","safe"]}`))

	tests := []struct {
		name      string
		criterion Criterion
		owner     string
		draw      float64
		want      bool
	}{
		{"kind and source", Criterion{Subevent: "rest", Actor: ActorSource, Chance: 100}, "hero", 0.5, true},
		{"wrong kind", Criterion{Subevent: "attack", Actor: ActorSource, Chance: 100}, "hero", 0.5, false},
		{"tags subset", Criterion{Subevent: "rest", Tags: []string{"long"}, Actor: ActorSource, Chance: 100}, "hero", 0.5, true},
		{"missing tag", Criterion{Subevent: "rest", Tags: []string{"short"}, Actor: ActorSource, Chance: 100}, "hero", 0.5, false},
		{"target actor", Criterion{Subevent: "rest", Actor: ActorTarget, Chance: 100}, "camp", 0.5, true},
		{"other owner", Criterion{Subevent: "rest", Actor: ActorSource, Chance: 100}, "villain", 0.5, false},
		{"draw within chance", Criterion{Subevent: "rest", Actor: ActorSource, Chance: 50}, "hero", 0.5, true},
		{"draw above chance", Criterion{Subevent: "rest", Actor: ActorSource, Chance: 25}, "hero", 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criterion.Matches(sub, tt.owner, dice.NewTesting(tt.draw)))
		})
	}
}

// TestResource_FirstSatisfiedCriterionWins verifies later criteria are not advanced.
func TestResource_FirstSatisfiedCriterionWins(t *testing.T) {
	r := load(t, `{"refresh_criteria":[
		{"subevent":"rest","required_generator":{"bonus":1}},
		{"subevent":"rest","required_generator":{"bonus":5}}
	]}`)
	require.NoError(t, r.Exhaust(nil))

	assert.True(t, r.ProcessSubevent(rest(t, "hero"), "hero", nil))
	assert.Equal(t, Available, r.State())
	for _, c := range r.Criteria {
		assert.Equal(t, 0, c.Completed)
	}
}

// TestResource_DocumentRoundTrip verifies state lands back in the source document.
func TestResource_DocumentRoundTrip(t *testing.T) {
	src := testutil.MustDoc(t, `{"id":"slot","name":"Spell slot","potency":2,"tags":["spell"],
		"refresh_criteria":[{"subevent":"rest","tags":["long"],"chance":50,"required_generator":{"bonus":2,"dice":["1d4"]}}]}`)
	r, err := Load(src)
	require.NoError(t, err)
	require.NoError(t, r.Exhaust(dice.NewTesting(0.5, 1)))

	out := r.Document()
	assert.Same(t, src, out)
	assert.True(t, out.BoolOr(FieldExhausted, false))
	assert.Equal(t, "Spell slot", out.StringOr("name", ""), "unknown fields are kept")

	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, again.State())
	assert.Equal(t, 2.0, again.Potency)
	assert.Equal(t, []string{"spell"}, again.Tags)
	require.Len(t, again.Criteria, 1)
	assert.Equal(t, Criterion{
		Subevent:  "rest",
		Tags:      []string{"long"},
		Actor:     ActorSource,
		Chance:    50,
		Required:  3,
		Generator: Generator{Bonus: 2, Dice: []string{"1d4"}},
	}, *again.Criteria[0])
}

// TestLoad_Errors verifies malformed resource documents are rejected.
func TestLoad_Errors(t *testing.T) {
	for name, body := range map[string]string{
		"criteria not array": `{"refresh_criteria":{}}`,
		"criterion scalar":   `{"refresh_criteria":[1]}`,
		"missing subevent":   `{"refresh_criteria":[{"required":1}]}`,
		"bad actor":          `{"refresh_criteria":[{"subevent":"rest","actor":"origin"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(testutil.MustDoc(t, body))
			assert.Error(t, err)
		})
	}
	_, err := Load(nil)
	assert.Error(t, err)
}

// TestValidate covers each cost validation failure.
func TestValidate(t *testing.T) {
	slot := func(potency string, tags string) *Resource {
		return load(t, `{"id":"r","potency":`+potency+`,"tags":`+tags+`}`)
	}
	cost := []Requirement{{Tags: []string{"spell"}, MinPotency: 2}}

	assert.NoError(t, Validate(cost, []*Resource{slot("3", `["spell","arcane"]`)}))

	err := Validate(cost, nil)
	assert.True(t, IsResourceCountError(err))
	err = Validate(cost, []*Resource{slot("3", `["spell"]`), slot("3", `["spell"]`)})
	var count *ResourceCountError
	require.ErrorAs(t, err, &count)
	assert.Equal(t, 1, count.Expected)
	assert.Equal(t, 2, count.Actual)

	err = Validate(cost, []*Resource{slot("3", `["ki"]`)})
	var mismatch *ResourceMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"spell"}, mismatch.Missing)

	err = Validate(cost, []*Resource{slot("1", `["spell"]`)})
	assert.True(t, IsInsufficientPotencyError(err))
	assert.False(t, IsResourceMismatchError(err))

	spent := slot("3", `["spell"]`)
	require.NoError(t, spent.Exhaust(nil))
	err = Validate(cost, []*Resource{spent})
	assert.True(t, IsResourceMismatchError(err))
}

// TestSpend verifies validation happens before anything is exhausted.
func TestSpend(t *testing.T) {
	a := load(t, `{"id":"a","potency":1,"tags":["ki"]}`)
	b := load(t, `{"id":"b","potency":1,"tags":["spell"]}`)
	cost := []Requirement{{Tags: []string{"ki"}}, {Tags: []string{"ki"}}}

	err := Spend(cost, []*Resource{a, b}, nil)
	assert.True(t, IsResourceMismatchError(err))
	assert.False(t, a.Exhausted())

	require.NoError(t, Spend(cost[:1], []*Resource{a}, nil))
	assert.True(t, a.Exhausted())
}

// TestSpend_RepeatedResource verifies one resource cannot pay for two slots.
func TestSpend_RepeatedResource(t *testing.T) {
	cost := []Requirement{{Tags: []string{"spell"}}, {Tags: []string{"spell"}}}
	body := `{"id":"slot","potency":1,"tags":["spell"]}`

	t.Run("same resource", func(t *testing.T) {
		r := load(t, body)
		err := Spend(cost, []*Resource{r, r}, nil)
		var mismatch *ResourceMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.True(t, mismatch.Duplicate)
		assert.Equal(t, 1, mismatch.Index)
		assert.False(t, r.Exhausted())
	})

	t.Run("same id", func(t *testing.T) {
		d := testutil.MustDoc(t, body)
		first, err := Load(d)
		require.NoError(t, err)
		second, err := Load(d)
		require.NoError(t, err)

		err = Spend(cost, []*Resource{first, second}, nil)
		var mismatch *ResourceMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.True(t, mismatch.Duplicate)
		assert.Contains(t, err.Error(), "already used")
		assert.False(t, first.Exhausted())
		assert.False(t, d.BoolOr(FieldExhausted, false))
	})
}

// TestSpend_GeneratorFailureExhaustsNothing verifies a later resource that
// cannot roll its requirements leaves earlier resources available.
func TestSpend_GeneratorFailureExhaustsNothing(t *testing.T) {
	x := load(t, `{"id":"x","tags":["spell"],"refresh_criteria":[{"subevent":"rest","required_generator":{"bonus":1}}]}`)
	y := load(t, `{"id":"y","tags":["spell"],"refresh_criteria":[{"subevent":"rest","required_generator":{"dice":["1d4"]}}]}`)
	cost := []Requirement{{Tags: []string{"spell"}}, {Tags: []string{"spell"}}}

	err := Spend(cost, []*Resource{x, y}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dice service")
	assert.False(t, x.Exhausted())
	assert.False(t, y.Exhausted())
	assert.Zero(t, x.Criteria[0].Required)

	require.NoError(t, Spend(cost, []*Resource{x, y}, dice.NewTesting(0.5, 3)))
	assert.True(t, x.Exhausted())
	assert.True(t, y.Exhausted())
	assert.Equal(t, 1, x.Criteria[0].Required)
	assert.Equal(t, 3, y.Criteria[0].Required)
}

// TestTracker verifies roster resources refresh from observed subevents.
func TestTracker(t *testing.T) {
	dir := directory.New()
	testutil.PutEntity(t, dir, "hero", `{"resources":["slot","lost"]}`)
	testutil.PutEntity(t, dir, "villain", `{"resources":["villain-slot"]}`)
	testutil.PutResource(t, dir, "slot", `{"exhausted":true,"refresh_criteria":[{"subevent":"rest","required":2}]}`)
	testutil.PutResource(t, dir, "villain-slot", `{"exhausted":true,"refresh_criteria":[{"subevent":"rest","required":1}]}`)

	env := &rules.Env{
		Ctx:       context.Background(),
		Directory: dir,
		Dice:      dice.NewTesting(0.5),
		Roster:    []string{"hero", "villain", "nobody"},
	}
	tracker := NewTracker()

	require.NoError(t, tracker.ObserveSubevent(env, rest(t, "hero")))
	slot, _ := dir.Get(rules.KindResource, "slot")
	assert.True(t, slot.BoolOr(FieldExhausted, false))
	completed, _ := slot.Seek("refresh_criteria[0].completed")
	assert.True(t, doc.Equal(doc.Int(1), completed))

	require.NoError(t, tracker.ObserveSubevent(env, rest(t, "hero")))
	assert.False(t, slot.BoolOr(FieldExhausted, true))

	villain, _ := dir.Get(rules.KindResource, "villain-slot")
	assert.True(t, villain.BoolOr(FieldExhausted, false), "the villain did not rest")
}
