package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParsePath covers the accepted segment forms.
func TestParsePath(t *testing.T) {
	p, err := ParsePath(`a.b[0].c[{"id":"x"}].d`)
	require.NoError(t, err)
	require.Len(t, p, 6)

	assert.Equal(t, SegmentKey, p[0].Kind)
	assert.Equal(t, "a", p[0].Key)
	assert.Equal(t, SegmentIndex, p[2].Kind)
	assert.Equal(t, 0, p[2].Index)
	assert.Equal(t, SegmentFilter, p[4].Kind)
	assert.True(t, Equal(MustParseObject(`{"id":"x"}`), p[4].Filter))
	assert.Equal(t, `.a.b[0].c[{"id":"x"}].d`, p.String())
}

// TestParsePath_Errors verifies malformed paths are rejected.
func TestParsePath_Errors(t *testing.T) {
	for _, s := range []string{
		"a..b",
		"a[",
		"a[x]",
		"a[-1]",
		"a[1",
		`a[{"id":}]`,
		`a[{"id":"x"}`,
		"a[0]b",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := ParsePath(s)
			require.Error(t, err)
			var pathErr *PathError
			assert.ErrorAs(t, err, &pathErr)
		})
	}
}

// TestSeek_Resolves verifies seek through keys, indexes and filters.
func TestSeek_Resolves(t *testing.T) {
	root := MustParseObject(`{"a":{"b":[{"c":[{"id":"y","d":1},{"id":"x","d":2}]}]}}`)

	v, ok := root.Seek(`a.b[0].c[{"id":"x"}].d`)
	require.True(t, ok)
	assert.Equal(t, Int(2), v)

	v, ok = root.Seek("")
	require.True(t, ok)
	assert.Same(t, root, v)
}

// TestSeek_Misses verifies every miss reports absent instead of failing.
func TestSeek_Misses(t *testing.T) {
	root := MustParseObject(`{"a":{"b":[1,2]},"s":"str"}`)

	for _, p := range []string{
		"missing",
		"a.b[5]",
		`a.b[{"id":"q"}]`,
		"s.inner",
		"a[0]",
		"a..",
	} {
		t.Run(p, func(t *testing.T) {
			_, ok := root.Seek(p)
			assert.False(t, ok)
		})
	}
}

// TestPut_CreatesIntermediates verifies missing containers are created.
func TestPut_CreatesIntermediates(t *testing.T) {
	root := NewObject()

	require.NoError(t, root.Put("a.b[0].c", String("v")))
	assert.True(t, Equal(MustParseObject(`{"a":{"b":[{"c":"v"}]}}`), root))

	require.NoError(t, root.Put("a.b[0].d", Int(1)))
	require.NoError(t, root.Put("a.b[1]", Bool(true)))
	assert.True(t, Equal(MustParseObject(`{"a":{"b":[{"c":"v","d":1},true]}}`), root))
}

// TestPut_ThenSeek verifies a written value is read back at the same path.
func TestPut_ThenSeek(t *testing.T) {
	root := MustParseObject(`{"x":{"y":[0]}}`)

	for _, p := range []string{"x.z", "x.y[0]", "x.y[1]", "fresh.deep.key"} {
		t.Run(p, func(t *testing.T) {
			require.NoError(t, root.Put(p, String(p)))
			v, ok := root.Seek(p)
			require.True(t, ok)
			assert.Equal(t, String(p), v)
		})
	}
}

// TestPut_Rejects verifies filters, gaps and kind mismatches fail.
func TestPut_Rejects(t *testing.T) {
	root := MustParseObject(`{"arr":[{"id":"x"}],"s":"str"}`)

	assert.Error(t, root.Put(`arr[{"id":"x"}].v`, Int(1)))
	assert.Error(t, root.Put("arr[3]", Int(1)))
	assert.Error(t, root.Put("s.inner", Int(1)))
	assert.Error(t, root.Put("", Int(1)))
	assert.Error(t, root.Put("[0]", Int(1)))
}

// TestMustParsePath verifies a parsed path can be reused across documents.
func TestMustParsePath(t *testing.T) {
	p := MustParsePath("stats.hp")
	assert.Equal(t, ".stats.hp", p.String())

	for _, body := range []string{`{"stats":{"hp":3}}`, `{}`} {
		root := MustParseObject(body)
		require.NoError(t, p.Put(root, Int(7)))
		v, ok := p.Seek(root)
		require.True(t, ok)
		assert.Equal(t, Int(7), v)
	}

	assert.Panics(t, func() { MustParsePath("a[") })
}
