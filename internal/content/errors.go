package content

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// Load error codes (E200-E209).
const (
	ErrCodeNotFound   = "E200" // content root or namespace missing
	ErrCodeDecode     = "E201" // file could not be decoded
	ErrCodeShape      = "E202" // file top level is not {effects, resources}
	ErrCodeSchema     = "E203" // template fails its JSON Schema
	ErrCodeDuplicate  = "E204" // template name defined twice in a namespace
	ErrCodeBadRef     = "E205" // reference is not "namespace:name"
	ErrCodeUnknownRef = "E206" // reference resolves to nothing
)

// LoadError reports a problem with one content file or reference.
type LoadError struct {
	Path    string
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
