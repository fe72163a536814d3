// Package directory implements the identity directory: an arena of live
// documents keyed by opaque identifier.
//
// Documents never hold pointers to each other. An entity lists its effects
// and resources by id, and every hop goes back through the directory.
package directory

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// FieldID is the identifier field written into every registered document.
const FieldID = "id"

// IDGenerator produces identifiers for documents registered without one.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 identifiers.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type entry struct {
	kind string
	doc  *doc.Object
}

// Directory is an arena of documents. It is not safe for concurrent use;
// callers serialize access per game context.
type Directory struct {
	entries map[string]entry
	ids     IDGenerator
}

// Option configures a Directory.
type Option func(*Directory)

// WithIDGenerator overrides the default UUIDv7 generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Directory) {
		d.ids = g
	}
}

// New creates an empty directory.
func New(opts ...Option) *Directory {
	d := &Directory{
		entries: make(map[string]entry),
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register stores d under kind and returns its id. A document that already
// carries an "id" keeps it; otherwise one is generated and written into it.
func (dir *Directory) Register(kind string, d *doc.Object) (string, error) {
	if d == nil {
		return "", fmt.Errorf("register %s: nil document", kind)
	}
	id, ok := d.GetString(FieldID)
	if !ok || id == "" {
		id = dir.ids.Generate()
		d.Set(FieldID, doc.String(id))
	}
	if existing, taken := dir.entries[id]; taken {
		return "", fmt.Errorf("register %s %q: id already held by a %s", kind, id, existing.kind)
	}
	dir.entries[id] = entry{kind: kind, doc: d}
	return id, nil
}

// Put stores d under kind and id, replacing any previous document.
func (dir *Directory) Put(kind, id string, d *doc.Object) {
	d.Set(FieldID, doc.String(id))
	dir.entries[id] = entry{kind: kind, doc: d}
}

// Get returns the live document for id when it is registered under kind.
func (dir *Directory) Get(kind, id string) (*doc.Object, bool) {
	e, ok := dir.entries[id]
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.doc, true
}

// Kind returns the kind id is registered under.
func (dir *Directory) Kind(id string) (string, bool) {
	e, ok := dir.entries[id]
	return e.kind, ok
}

// Unregister removes id. It reports whether anything was removed.
func (dir *Directory) Unregister(id string) bool {
	if _, ok := dir.entries[id]; !ok {
		return false
	}
	delete(dir.entries, id)
	return true
}

// IDs returns the ids registered under kind, sorted.
func (dir *Directory) IDs(kind string) []string {
	var out []string
	for id, e := range dir.entries {
		if e.kind == kind {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered documents.
func (dir *Directory) Len() int {
	return len(dir.entries)
}

// Attach appends id to the entity's list field ("effects", "resources")
// unless already present.
func (dir *Directory) Attach(entityID, field, id string) error {
	ent, ok := dir.Get(rules.KindEntity, entityID)
	if !ok {
		return fmt.Errorf("attach %s to %q: entity not found", field, entityID)
	}
	list := ent.EnsureArray(field)
	if !list.Contains(doc.String(id)) {
		list.Append(doc.String(id))
	}
	return nil
}

// Detach removes id from the entity's list field. It reports whether the id
// was present.
func (dir *Directory) Detach(entityID, field, id string) bool {
	ent, ok := dir.Get(rules.KindEntity, entityID)
	if !ok {
		return false
	}
	list, ok := ent.GetArray(field)
	if !ok {
		return false
	}
	kept := doc.NewArray()
	found := false
	for _, item := range list.Items() {
		if doc.Equal(item, doc.String(id)) {
			found = true
			continue
		}
		kept.Append(item)
	}
	if found {
		ent.Set(field, kept)
	}
	return found
}

// Snapshot returns a deep copy of every document keyed by id, for traces
// and assertions.
func (dir *Directory) Snapshot() *doc.Object {
	ids := make([]string, 0, len(dir.entries))
	for id := range dir.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := doc.NewObject()
	for _, id := range ids {
		e := dir.entries[id]
		out.Set(id, doc.NewObject(
			doc.P("kind", doc.String(e.kind)),
			doc.P("doc", e.doc.DeepClone()),
		))
	}
	return out
}
