package content

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		files := map[string]string{
			rules.KindEffect:   "schemas/effect.schema.json",
			rules.KindResource: "schemas/resource.schema.json",
		}
		out := make(map[string]*jsonschema.Schema, len(files))
		for kind, name := range files {
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				schemasErr = err
				return
			}
			url := "grimoire://" + name
			if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[kind] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// ValidateTemplate checks a template document against the JSON Schema of
// its kind.
func ValidateTemplate(kind string, d *doc.Object) error {
	all, err := compileSchemas()
	if err != nil {
		return err
	}
	s, ok := all[kind]
	if !ok {
		return fmt.Errorf("no schema for template kind %q", kind)
	}
	data, err := doc.Marshal(d)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.Validate(v)
}
