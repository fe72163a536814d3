package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grimoire/internal/doc"
)

type stubCondition struct {
	id     string
	result bool
}

func (s stubCondition) ID() string { return s.id }

func (s stubCondition) Evaluate(*Env, Scope, *Subevent, *doc.Object) (bool, error) {
	return s.result, nil
}

type stubFunction struct{ id string }

func (s stubFunction) ID() string { return s.id }

func (s stubFunction) Execute(*Env, Scope, *Subevent, *doc.Object) error { return nil }

type stubSubevent struct{ id string }

func (s stubSubevent) ID() string                    { return s.id }
func (s stubSubevent) Prepare(*Env, *Subevent) error { return nil }
func (s stubSubevent) Clone(sub *Subevent) *Subevent { return sub.Clone() }
func (s stubSubevent) Resolve(*Env, *Subevent) error { return nil }

func stubInstaller(r *Registry, includeTesting bool) error {
	if err := r.RegisterCondition(stubCondition{id: "true", result: true}); err != nil {
		return err
	}
	if err := r.RegisterFunction(stubFunction{id: "noop"}); err != nil {
		return err
	}
	if err := r.RegisterSubevent(stubSubevent{id: "generic"}); err != nil {
		return err
	}
	if includeTesting {
		return r.RegisterCondition(stubCondition{id: "testing_only"})
	}
	return nil
}

// TestRegistry_Initialize verifies the testing set is opt-in.
func TestRegistry_Initialize(t *testing.T) {
	r := NewRegistry(stubInstaller)

	require.NoError(t, r.Initialize(false))
	assert.Equal(t, []string{"true"}, r.ConditionIDs())
	assert.Equal(t, []string{"noop"}, r.FunctionIDs())
	assert.Equal(t, []string{"generic"}, r.SubeventIDs())

	require.NoError(t, r.Initialize(true))
	assert.Equal(t, []string{"testing_only", "true"}, r.ConditionIDs())
}

// TestRegistry_InitializeClears verifies re-initialization is a full reset.
func TestRegistry_InitializeClears(t *testing.T) {
	r := NewRegistry(stubInstaller)
	require.NoError(t, r.Initialize(true))
	r.RegisterDistance("custom", func(a, b Point) float64 { return 0 })

	require.NoError(t, r.Initialize(false))
	_, ok := r.LookupCondition("testing_only")
	assert.False(t, ok)
	assert.Equal(t, []string{DistanceChebyshev, DistanceDirect, DistanceManhattan}, r.DistanceIDs())
}

// TestRegistry_InstallerErrorLeavesEmpty verifies a failed install clears the tables.
func TestRegistry_InstallerErrorLeavesEmpty(t *testing.T) {
	r := NewRegistry(func(r *Registry, _ bool) error {
		if err := r.RegisterFunction(stubFunction{id: "noop"}); err != nil {
			return err
		}
		return r.RegisterFunction(stubFunction{id: "noop"})
	})

	err := r.Initialize(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate function")
	assert.Empty(t, r.FunctionIDs())
}

// TestRegistry_RejectsComposites verifies composite ids are reserved.
func TestRegistry_RejectsComposites(t *testing.T) {
	r := NewRegistry(nil)
	for _, id := range []string{CompositeAll, CompositeAny, CompositeInvert} {
		assert.Error(t, r.RegisterCondition(stubCondition{id: id}))
	}
}

// TestRegistry_UnknownHandler verifies misses surface as typed errors.
func TestRegistry_UnknownHandler(t *testing.T) {
	r := NewRegistry(stubInstaller)
	require.NoError(t, r.Initialize(false))

	_, err := r.Condition("missing")
	assert.True(t, IsUnknownHandler(err))
	_, err = r.Function("missing")
	assert.True(t, IsUnknownHandler(err))
	_, err = r.Subevent("missing")
	var uh *UnknownHandlerError
	require.ErrorAs(t, err, &uh)
	assert.Equal(t, TagSubevent, uh.Family)

	h, err := r.Condition("true")
	require.NoError(t, err)
	assert.Equal(t, "true", h.ID())
}

// TestVerify covers the discriminant contract.
func TestVerify(t *testing.T) {
	h := stubCondition{id: "has_tag"}

	assert.NoError(t, Verify(h, TagCondition, doc.MustParseObject(`{"condition":"has_tag","tag":"fire"}`)))

	err := Verify(h, TagCondition, doc.MustParseObject(`{"condition":"compare"}`))
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, "has_tag", tm.Expected)
	assert.Equal(t, "compare", tm.Actual)

	err = Verify(h, TagCondition, doc.MustParseObject(`{"function":"has_tag"}`))
	assert.True(t, IsTypeMismatch(err))
	assert.Contains(t, err.Error(), "field missing")
}

// TestNotApplicable verifies the soft-failure sentinel survives wrapping.
func TestNotApplicable(t *testing.T) {
	err := NotApplicable("grant_immunity", "damage")
	assert.True(t, IsNotApplicable(err))
	assert.True(t, errors.Is(err, ErrNotApplicable))
	assert.False(t, IsNotApplicable(errors.New("other")))
}

// TestCompare covers every operator and the no-coercion rule.
func TestCompare(t *testing.T) {
	tests := []struct {
		name      string
		actual    doc.Value
		threshold doc.Value
		op        string
		want      bool
	}{
		{"less true", doc.Int(5), doc.Int(10), "<", true},
		{"less-equal false", doc.Int(10), doc.Int(5), "<=", false},
		{"equal", doc.Int(5), doc.Int(5), "=", true},
		{"equal mixed numeric", doc.Int(5), doc.Float(5), "=", true},
		{"greater-equal", doc.Float(2.5), doc.Int(2), ">=", true},
		{"greater false", doc.Int(1), doc.Int(1), ">", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.actual, tt.threshold, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Compare(doc.String("5"), doc.Int(5), "=")
	assert.Error(t, err)
	_, err = Compare(doc.Int(5), doc.Bool(true), "=")
	assert.Error(t, err)
	_, err = Compare(doc.Int(5), doc.Int(5), "!=")
	assert.Error(t, err)
}

// TestDistance covers the built-in algorithms and the default.
func TestDistance(t *testing.T) {
	r := NewRegistry(nil)
	a, b := Point{}, Point{X: 3, Y: 4, Z: 0}

	d, err := r.Distance(a, b, "")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)

	d, err = r.Distance(a, b, DistanceManhattan)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, d, 1e-9)

	d, err = r.Distance(a, b, DistanceChebyshev)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, d, 1e-9)

	_, err = r.Distance(a, b, "hex")
	assert.Error(t, err)

	r.RegisterDistance("hex", func(a, b Point) float64 { return 1 })
	d, err = r.Distance(a, b, "hex")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

// TestPointFrom covers array and object encodings.
func TestPointFrom(t *testing.T) {
	p, ok := PointFrom(doc.MustParseObject(`{"p":[1,2,3]}`).EnsureArray("p"))
	require.True(t, ok)
	assert.Equal(t, Point{1, 2, 3}, p)

	p, ok = PointFrom(doc.MustParseObject(`{"x":1,"y":2}`))
	require.True(t, ok)
	assert.Equal(t, Point{1, 2, 0}, p)

	_, ok = PointFrom(doc.String("here"))
	assert.False(t, ok)

	back, ok := PointFrom(Point{1, 2.5, 3}.Value())
	require.True(t, ok)
	assert.Equal(t, Point{1, 2.5, 3}, back)
}

// TestSubevent_AppliedSet verifies identity-keyed idempotency bookkeeping.
func TestSubevent_AppliedSet(t *testing.T) {
	sub := NewSubevent(doc.MustParseObject(`{"subevent":"damage","tags":["fire","magic"]}`))

	assert.Equal(t, "damage", sub.Kind())
	assert.True(t, sub.HasTags("fire"))
	assert.False(t, sub.HasTags("fire", "cold"))
	assert.False(t, sub.HasApplied("fx1"))

	sub.MarkApplied("fx1")
	sub.MarkApplied("fx2")
	sub.MarkApplied("fx1")
	assert.True(t, sub.HasApplied("fx1"))
	assert.Equal(t, []string{"fx1", "fx2"}, sub.AppliedEffects())

	clone := sub.Clone()
	assert.Empty(t, clone.AppliedEffects())
	clone.Doc.Set("target", doc.String("t1"))
	assert.Equal(t, "", sub.Target())
}

// TestSubevent_Cancel verifies cancellation is gated by the cancelable flag.
func TestSubevent_Cancel(t *testing.T) {
	plain := NewSubevent(doc.MustParseObject(`{"subevent":"generic"}`))
	assert.False(t, plain.Cancel())
	assert.False(t, plain.Canceled())

	cancelable := NewSubevent(doc.MustParseObject(`{"subevent":"generic","cancelable":true}`))
	assert.True(t, cancelable.Cancel())
	assert.True(t, cancelable.Canceled())
}

// TestEnv_InvokeWithoutInvoker verifies nested invocation requires an invoker.
func TestEnv_InvokeWithoutInvoker(t *testing.T) {
	env := &Env{}
	_, err := env.Invoke(NewSubevent(nil), doc.MustParseObject(`{"subevent":"generic"}`))
	assert.Error(t, err)
	assert.NotNil(t, env.Log())
	assert.NotNil(t, env.Context())
}
