package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRuntimeError_Format verifies the message includes known context.
func TestRuntimeError_Format(t *testing.T) {
	err := NewMalformedError("sub-1", "fx", "bad behavior")
	assert.Equal(t, "MALFORMED_CONTENT: bad behavior (subevent=sub-1, effect=fx)", err.Error())

	err = NewMalformedError("", "fx", "bad behavior")
	assert.Equal(t, "MALFORMED_CONTENT: bad behavior (effect=fx)", err.Error())

	assert.Equal(t, "PASS_LIMIT: propagation did not settle (4 passes > 3) (subevent=sub-2)",
		NewPassLimitError("sub-2", 4, 3).Error())
}

// TestRuntimeError_Helpers verifies the Is helpers see through wrapping.
func TestRuntimeError_Helpers(t *testing.T) {
	pass := fmt.Errorf("outer: %w", NewPassLimitError("s", 2, 1))
	depth := fmt.Errorf("outer: %w", NewDepthLimitError("test", 5, 4))

	assert.True(t, IsPassLimitError(pass))
	assert.False(t, IsDepthLimitError(pass))
	assert.True(t, IsDepthLimitError(depth))
	assert.False(t, IsMalformedError(depth))
	assert.False(t, IsPassLimitError(fmt.Errorf("plain")))
}

// TestPassLimiter verifies counting and the ceiling.
func TestPassLimiter(t *testing.T) {
	p := NewPassLimiter(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Check("s"))
	}
	err := p.Check("s")
	require.Error(t, err)
	assert.True(t, IsPassLimitError(err))
	assert.Equal(t, 4, p.Current())
	assert.Equal(t, 3, p.MaxPasses())
}

// TestClock verifies monotonic sequencing and resumption.
func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	resumed := NewClockAt(100)
	assert.Equal(t, int64(101), resumed.Next())
}

// TestFixedGenerator verifies ids come out in order and exhaustion panics.
func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })

	assert.Len(t, UUIDv7Generator{}.Generate(), 36)
}
