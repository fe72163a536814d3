package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSpec covers the accepted notations.
func TestParseSpec(t *testing.T) {
	tests := []struct {
		in   string
		want Spec
	}{
		{"2d6", Spec{Count: 2, Sides: 6}},
		{"d20", Spec{Count: 1, Sides: 20}},
		{"1d8+2", Spec{Count: 1, Sides: 8, Modifier: 2}},
		{"3D4-1", Spec{Count: 3, Sides: 4, Modifier: -1}},
		{"5", Spec{Modifier: 5}},
		{" 2 d 6 ", Spec{Count: 2, Sides: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpec(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseSpec_Errors verifies malformed specs are rejected.
func TestParseSpec_Errors(t *testing.T) {
	for _, in := range []string{"", "d", "0d6", "2d0", "xd6", "2d6+x", "abc"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSpec(in)
			assert.Error(t, err)
		})
	}
}

// TestSpec_String verifies specs render back to notation.
func TestSpec_String(t *testing.T) {
	assert.Equal(t, "2d6", Spec{Count: 2, Sides: 6}.String())
	assert.Equal(t, "1d8+2", Spec{Count: 1, Sides: 8, Modifier: 2}.String())
	assert.Equal(t, "3d4-1", Spec{Count: 3, Sides: 4, Modifier: -1}.String())
	assert.Equal(t, "5", Spec{Modifier: 5}.String())
}

// TestRoller_Deterministic verifies equal seeds give equal rolls.
func TestRoller_Deterministic(t *testing.T) {
	a, err := New(42).RollSpecs(Spec{Count: 4, Sides: 6}, Spec{Count: 1, Sides: 20})
	require.NoError(t, err)
	b, err := New(42).RollSpecs(Spec{Count: 4, Sides: 6}, Spec{Count: 1, Sides: 20})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a.Rolls, 2)
	for _, v := range a.Rolls[0].Results {
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 6)
	}
	assert.Equal(t, a.Rolls[0].Total+a.Rolls[1].Total, a.Total)
}

// TestRoller_Errors verifies invalid requests fail.
func TestRoller_Errors(t *testing.T) {
	r := New(1)
	_, err := r.RollSpecs()
	assert.ErrorIs(t, err, ErrMissingDice)
	_, err = r.RollSpecs(Spec{Count: 1})
	assert.ErrorIs(t, err, ErrInvalidDiceSpec)
	_, err = r.Roll("bad")
	assert.Error(t, err)
}

// TestRoller_TestingMode verifies fixed faces cycle and clamp.
func TestRoller_TestingMode(t *testing.T) {
	r := NewTesting(0.5, 3, 10)
	assert.True(t, r.Testing())

	total, err := r.Roll("3d6+1")
	require.NoError(t, err)
	// faces 3, 6 (10 clamped), 3
	assert.Equal(t, 13, total)
	assert.Equal(t, 0.5, r.Draw())

	ones := NewTesting(0)
	total, err = ones.Roll("4d8")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

// TestRoller_Draw verifies draws stay in range.
func TestRoller_Draw(t *testing.T) {
	r := New(7)
	for i := 0; i < 100; i++ {
		v := r.Draw()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
