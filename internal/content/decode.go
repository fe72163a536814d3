package content

import (
	"fmt"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/grimoire/internal/doc"
)

// decodeFile turns the bytes of a content file into a document, choosing
// the decoder from the extension. Key order follows the source file.
func decodeFile(path string, data []byte) (*doc.Object, error) {
	switch filepath.Ext(path) {
	case ".json":
		obj, err := doc.ParseObject(data)
		if err != nil {
			return nil, &LoadError{Path: path, Code: ErrCodeDecode, Message: err.Error()}
		}
		return obj, nil
	case ".yaml", ".yml":
		return decodeYAML(path, data)
	case ".cue":
		return decodeCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Code: ErrCodeDecode, Message: "unsupported file extension"}
	}
}

func decodeYAML(path string, data []byte) (*doc.Object, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeDecode, Message: err.Error()}
	}
	if root.Kind == 0 {
		return doc.NewObject(), nil
	}
	v, err := yamlValue(&root)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeDecode, Message: err.Error()}
	}
	obj, ok := v.(*doc.Object)
	if !ok {
		return nil, &LoadError{Path: path, Code: ErrCodeDecode, Message: fmt.Sprintf("top level is %s, want mapping", doc.KindOf(v))}
	}
	return obj, nil
}

// FromYAML converts a yaml.v3 node into a document value. Mapping order is
// kept, merge keys and aliases are expanded and timestamps stay strings.
func FromYAML(n *yaml.Node) (doc.Value, error) {
	if n == nil {
		return doc.Null{}, nil
	}
	return yamlValue(n)
}

func yamlValue(n *yaml.Node) (doc.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return doc.Null{}, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		obj := doc.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			if key.Tag == "!!merge" {
				merged, err := yamlValue(val)
				if err != nil {
					return nil, err
				}
				if m, ok := merged.(*doc.Object); ok {
					obj.Join(m)
				}
				continue
			}
			conv, err := yamlValue(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key.Value, err)
			}
			obj.Set(key.Value, conv)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := doc.NewArray()
		for i, item := range n.Content {
			conv, err := yamlValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr.Append(conv)
		}
		return arr, nil
	case yaml.ScalarNode:
		if n.Tag == "!!timestamp" {
			return doc.String(n.Value), nil
		}
		var raw any
		if err := n.Decode(&raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return doc.FromAny(raw)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func decodeCUE(path string, data []byte) (*doc.Object, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(path, err)
	}
	obj, err := doc.ParseObject(out)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeDecode, Message: err.Error()}
	}
	return obj, nil
}

// cueLoadError keeps the position of the first CUE error when it has one.
func cueLoadError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Code: ErrCodeDecode, Message: err.Error()}
	}
	first := errs[0]
	loadErr := &LoadError{Path: path, Code: ErrCodeDecode, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}
