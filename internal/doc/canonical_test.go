package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMarshalCanonical_SortsKeys verifies output is independent of insertion order.
func TestMarshalCanonical_SortsKeys(t *testing.T) {
	a := MustParseObject(`{"zebra":1,"alpha":{"y":2,"b":3},"beta":"<&>"}`)
	b := MustParseObject(`{"beta":"<&>","alpha":{"b":3,"y":2},"zebra":1}`)

	ca, err := MarshalCanonical(a)
	require.NoError(t, err)
	cb, err := MarshalCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, `{"alpha":{"b":3,"y":2},"beta":"<&>","zebra":1}`, string(ca))
	assert.Equal(t, ca, cb)
}

// TestMarshalCanonical_NFC verifies decomposed strings are normalized.
func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := NewObject(P("name", String("e\u0301")))
	composed := NewObject(P("name", String("\u00e9")))

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// TestMarshalCanonical_RejectsNonFinite verifies NaN cannot be encoded.
func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	var zero float64
	_, err := MarshalCanonical(NewObject(P("x", Float(zero/zero))))
	assert.Error(t, err)
}

// TestCompareKeysUTF16 verifies supplementary-plane characters sort by code unit.
func TestCompareKeysUTF16(t *testing.T) {
	// U+1F600 encodes as 0xD83D 0xDE00, which sorts before U+FFFD in UTF-16.
	assert.Equal(t, -1, compareKeysUTF16("\U0001F600", "\uFFFD"))
	assert.Equal(t, 0, compareKeysUTF16("abc", "abc"))
	assert.Equal(t, -1, compareKeysUTF16("ab", "abc"))
	assert.Equal(t, 1, compareKeysUTF16("b", "a"))
}

// TestHash_DomainSeparated verifies equal documents share a hash per domain.
func TestHash_DomainSeparated(t *testing.T) {
	a := MustParseObject(`{"x":1,"y":2}`)
	b := MustParseObject(`{"y":2,"x":1}`)

	ha, err := Hash(DomainEffect, a)
	require.NoError(t, err)
	hb, err := Hash(DomainEffect, b)
	require.NoError(t, err)
	hs, err := Hash(DomainSubevent, a)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hs)
	assert.Len(t, ha, 64)
}
