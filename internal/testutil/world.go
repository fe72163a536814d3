package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/grimoire/internal/directory"
	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// PutEntity parses body as JSON and stores it as entity id.
func PutEntity(t testing.TB, dir *directory.Directory, id, body string) *doc.Object {
	t.Helper()
	return put(t, dir, rules.KindEntity, id, body)
}

// PutEffect parses body as JSON and stores it as effect id.
func PutEffect(t testing.TB, dir *directory.Directory, id, body string) *doc.Object {
	t.Helper()
	return put(t, dir, rules.KindEffect, id, body)
}

// PutResource parses body as JSON and stores it as resource id.
func PutResource(t testing.TB, dir *directory.Directory, id, body string) *doc.Object {
	t.Helper()
	return put(t, dir, rules.KindResource, id, body)
}

func put(t testing.TB, dir *directory.Directory, kind, id, body string) *doc.Object {
	t.Helper()
	d, err := doc.ParseObject([]byte(body))
	require.NoError(t, err, "fixture %s %q", kind, id)
	dir.Put(kind, id, d)
	return d
}

// MustDoc parses body as a JSON object or fails the test.
func MustDoc(t testing.TB, body string) *doc.Object {
	t.Helper()
	d, err := doc.ParseObject([]byte(body))
	require.NoError(t, err)
	return d
}
