package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/library"
	"github.com/roach88/grimoire/internal/rules"
)

func loadTestdata(t *testing.T) *Library {
	t.Helper()
	lib, err := Load(filepath.Join("testdata", "content"))
	require.NoError(t, err)
	return lib
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// TestLoad_AllFormats verifies YAML, JSON and CUE files land in their namespaces.
func TestLoad_AllFormats(t *testing.T) {
	lib := loadTestdata(t)

	assert.Equal(t, []string{"core", "homebrew"}, lib.Namespaces())
	assert.Equal(t, []string{"core:bless", "core:fire_ward", "core:flame_tongue", "homebrew:lucky"}, lib.Refs(rules.KindEffect))
	assert.Equal(t, []string{"core:spell_slot", "homebrew:luck"}, lib.Refs(rules.KindResource))
	assert.Len(t, lib.Files(), 3)
}

// TestLoad_YAMLKeepsOrder verifies mapping order survives decoding.
func TestLoad_YAMLKeepsOrder(t *testing.T) {
	lib := loadTestdata(t)
	tpl, err := lib.Template(rules.KindEffect, "core:fire_ward")
	require.NoError(t, err)

	fn, ok := tpl.Seek("subevent_filters.damage_affinity[0].functions[0]")
	require.True(t, ok)
	assert.Equal(t, []string{"function", "damage_type"}, fn.(*doc.Object).Keys())
}

// TestLoad_CUEDefaults verifies CUE definitions and defaults are resolved.
func TestLoad_CUEDefaults(t *testing.T) {
	lib := loadTestdata(t)
	tpl, err := lib.Template(rules.KindEffect, "homebrew:lucky")
	require.NoError(t, err)

	want := doc.MustParseObject(`{"subevent_filters":{"test":[{
		"conditions":[{"condition":"counter_below","limit":3}],
		"functions":[{"function":"increment","amount":1}]
	}]}}`)
	assert.True(t, doc.Equal(want, tpl), "got %s", tpl)
}

// TestInstantiate verifies defaults, template and overrides are joined.
func TestInstantiate(t *testing.T) {
	lib := loadTestdata(t)

	slot, err := lib.Instantiate(rules.KindResource, "core:spell_slot", doc.MustParseObject(`{"potency":3,"tags":["arcane"]}`))
	require.NoError(t, err)
	assert.Equal(t, 3.0, slot.NumberOr("potency", 0))
	assert.Equal(t, []string{"spell", "arcane"}, slot.Strings("tags"))
	assert.False(t, slot.BoolOr("exhausted", true), "default filled")
	assert.Equal(t, "core:spell_slot", slot.StringOr(FieldTemplate, ""))

	a, err := lib.Instantiate(rules.KindEffect, "core:bless", nil)
	require.NoError(t, err)
	b, err := lib.Instantiate(rules.KindEffect, "core:bless", nil)
	require.NoError(t, err)
	a.Set("origin", doc.String("cleric"))
	assert.False(t, b.Has("origin"), "instances share nothing")

	tpl, _ := lib.Template(rules.KindEffect, "core:bless")
	assert.False(t, tpl.Has(FieldTemplate), "template itself untouched")

	_, err = lib.Instantiate(rules.KindEffect, "core:missing", nil)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeUnknownRef, loadErr.Code)

	_, err = lib.Instantiate(rules.KindEffect, "bless", nil)
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeBadRef, loadErr.Code)
}

// TestParseRef covers the reference grammar.
func TestParseRef(t *testing.T) {
	ns, name, err := ParseRef("core:fireball")
	require.NoError(t, err)
	assert.Equal(t, "core", ns)
	assert.Equal(t, "fireball", name)

	for _, bad := range []string{"", "core", ":fireball", "core:", "a:b:c"} {
		_, _, err := ParseRef(bad)
		assert.Error(t, err, bad)
	}
}

// TestLoad_Errors verifies malformed content is reported with a code.
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		code string
	}{
		{"bad json", "x.json", `{"effects":`, ErrCodeDecode},
		{"bad yaml", "x.yaml", "effects: [unclosed", ErrCodeDecode},
		{"bad cue", "x.cue", `effects: a: 1 & 2`, ErrCodeDecode},
		{"unknown section", "x.json", `{"spells":{}}`, ErrCodeShape},
		{"template not object", "x.json", `{"effects":{"a":1}}`, ErrCodeShape},
		{"schema", "x.json", `{"effects":{"a":{"subevent_filters":{"test":[{"conditions":[{"tag":"x"}]}]}}}}`, ErrCodeSchema},
		{"resource schema", "x.yaml", "resources:\n  slot:\n    refresh_criteria:\n      - actor: origin\n", ErrCodeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, filepath.Join("core", tt.file), tt.body)

			_, err := Load(root)
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.code, loadErr.Code, "error: %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

// TestLoad_Duplicate verifies a name may only be defined once per namespace.
func TestLoad_Duplicate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "core/a.json", `{"effects":{"bless":{"subevent_filters":{}}}}`)
	writeFile(t, root, "core/b.yaml", "effects:\n  bless:\n    subevent_filters: {}\n")
	writeFile(t, root, "other/c.json", `{"effects":{"bless":{"subevent_filters":{}}}}`)

	_, err := Load(root)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeDuplicate, loadErr.Code)
	assert.Contains(t, loadErr.Path, "b.yaml")
}

// TestCheck verifies cross-references against the registry.
func TestCheck(t *testing.T) {
	reg, err := library.NewRegistry(true)
	require.NoError(t, err)

	assert.Empty(t, loadTestdata(t).Check(reg))

	lib := New()
	require.NoError(t, lib.Add(rules.KindEffect, "core:broken", doc.MustParseObject(`{"subevent_filters":{
		"teleport":[{"conditions":[{"condition":"nope"}],"functions":[]}],
		"test":[{
			"conditions":[{"condition":"invert","conditions":[{"condition":"true"},{"condition":"false"}]}],
			"functions":[{"function":"explode"},{"function":"grant_effect","effect":"core:ghost"}]
		}]
	}}`)))

	var codes []string
	for _, e := range lib.Check(reg) {
		codes = append(codes, e.Code)
	}
	assert.ElementsMatch(t, []string{
		ErrCodeUnknownSubevent,
		ErrCodeUnknownCondition,
		ErrCodeInvertArity,
		ErrCodeUnknownFunction,
		ErrCodeDanglingRef,
	}, codes)
}
