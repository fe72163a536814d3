package content

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// File sections holding each template kind.
const (
	SectionEffects   = "effects"
	SectionResources = "resources"
)

// FieldTemplate records the reference an instance was built from.
const FieldTemplate = "template"

var sections = map[string]string{
	SectionEffects:   rules.KindEffect,
	SectionResources: rules.KindResource,
}

// Library holds every loaded template, by kind then "namespace:name".
// Populate it with Load or Add, then treat it as read-only.
type Library struct {
	templates map[string]map[string]*doc.Object
	files     []string
	logger    *slog.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger used while loading.
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) {
		lib.logger = l
	}
}

// New creates an empty library.
func New(opts ...Option) *Library {
	lib := &Library{
		templates: map[string]map[string]*doc.Object{
			rules.KindEffect:   {},
			rules.KindResource: {},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Load reads every namespace directory under root.
func Load(root string, opts ...Option) (*Library, error) {
	lib := New(opts...)
	if err := lib.LoadDir(root); err != nil {
		return nil, err
	}
	return lib, nil
}

// LoadDir reads every namespace directory under root into the library.
// Files are read in name order so duplicate reports are stable.
func (lib *Library) LoadDir(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return &LoadError{Path: root, Code: ErrCodeNotFound, Message: err.Error()}
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := lib.LoadNamespace(entry.Name(), filepath.Join(root, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadNamespace reads the content files in dir into namespace ns.
func (lib *Library) LoadNamespace(ns, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &LoadError{Path: dir, Code: ErrCodeNotFound, Message: err.Error()}
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".yaml", ".yml", ".cue":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return &LoadError{Path: path, Code: ErrCodeNotFound, Message: err.Error()}
		}
		file, err := decodeFile(path, data)
		if err != nil {
			return err
		}
		n, err := lib.addFile(ns, path, file)
		if err != nil {
			return err
		}
		lib.files = append(lib.files, path)
		lib.logger.Debug("content file loaded", "namespace", ns, "path", path, "templates", n)
	}
	return nil
}

func (lib *Library) addFile(ns, path string, file *doc.Object) (int, error) {
	count := 0
	for _, key := range file.Keys() {
		kind, ok := sections[key]
		if !ok {
			return count, &LoadError{Path: path, Code: ErrCodeShape,
				Message: fmt.Sprintf("unknown top-level key %q, want %q or %q", key, SectionEffects, SectionResources)}
		}
		section, ok := file.GetObject(key)
		if !ok {
			return count, &LoadError{Path: path, Code: ErrCodeShape, Message: fmt.Sprintf("%q must be an object", key)}
		}
		var failed error
		section.Range(func(name string, v doc.Value) bool {
			tpl, ok := v.(*doc.Object)
			if !ok {
				failed = &LoadError{Path: path, Code: ErrCodeShape,
					Message: fmt.Sprintf("%s.%s is %s, want object", key, name, doc.KindOf(v))}
				return false
			}
			if err := lib.Add(kind, ns+":"+name, tpl); err != nil {
				var loadErr *LoadError
				if errors.As(err, &loadErr) {
					loadErr.Path = path
				}
				failed = err
				return false
			}
			count++
			return true
		})
		if failed != nil {
			return count, failed
		}
	}
	return count, nil
}

// Add validates tpl and stores it under ref.
func (lib *Library) Add(kind, ref string, tpl *doc.Object) error {
	if _, _, err := ParseRef(ref); err != nil {
		return err
	}
	table, ok := lib.templates[kind]
	if !ok {
		return fmt.Errorf("unknown template kind %q", kind)
	}
	if _, exists := table[ref]; exists {
		return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("%s template %q defined twice", kind, ref)}
	}
	if err := ValidateTemplate(kind, tpl); err != nil {
		return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s %s: %v", kind, ref, err)}
	}
	table[ref] = tpl.DeepClone()
	return nil
}

// ParseRef splits "namespace:name". Both parts must be non-empty.
func ParseRef(ref string) (ns, name string, err error) {
	ns, name, ok := strings.Cut(ref, ":")
	if !ok || ns == "" || name == "" || strings.Contains(name, ":") {
		return "", "", &LoadError{Code: ErrCodeBadRef, Message: fmt.Sprintf("reference %q is not namespace:name", ref)}
	}
	return ns, name, nil
}

// Template returns a copy of the template at ref.
func (lib *Library) Template(kind, ref string) (*doc.Object, error) {
	if _, _, err := ParseRef(ref); err != nil {
		return nil, err
	}
	tpl, ok := lib.templates[kind][ref]
	if !ok {
		return nil, &LoadError{Code: ErrCodeUnknownRef, Message: fmt.Sprintf("no %s template %q", kind, ref)}
	}
	return tpl.DeepClone(), nil
}

// Refs lists the template references of kind in sorted order.
func (lib *Library) Refs(kind string) []string {
	refs := make([]string, 0, len(lib.templates[kind]))
	for ref := range lib.templates[kind] {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Namespaces lists the namespaces holding at least one template.
func (lib *Library) Namespaces() []string {
	seen := make(map[string]bool)
	for _, table := range lib.templates {
		for ref := range table {
			ns, _, _ := strings.Cut(ref, ":")
			seen[ns] = true
		}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Files lists the loaded file paths in load order.
func (lib *Library) Files() []string {
	out := make([]string, len(lib.files))
	copy(out, lib.files)
	return out
}

// Defaults returns the document every instance of kind starts from.
func Defaults(kind string) *doc.Object {
	switch kind {
	case rules.KindEffect:
		return doc.MustParseObject(`{"subevent_filters":{}}`)
	case rules.KindResource:
		return doc.MustParseObject(`{"potency":0,"exhausted":false,"tags":[],"refresh_criteria":[]}`)
	default:
		return doc.NewObject()
	}
}

// Instantiate builds a fresh instance of the template at ref: the kind's
// defaults joined with the template, then with overrides. The instance
// records ref in its "template" field. It satisfies rules.Templates.
func (lib *Library) Instantiate(kind, ref string, overrides *doc.Object) (*doc.Object, error) {
	tpl, err := lib.Template(kind, ref)
	if err != nil {
		return nil, err
	}
	instance := Defaults(kind).Join(tpl)
	instance.Join(overrides)
	instance.Set(FieldTemplate, doc.String(ref))
	return instance, nil
}
