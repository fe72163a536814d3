// Package content loads effect and resource templates from disk and turns
// them into live instances.
//
// A content root holds one directory per namespace. Every file in a
// namespace directory (.json, .yaml, .yml or .cue) contributes templates
// under two top-level keys:
//
//	effects:   { <name>: <effect template>, ... }
//	resources: { <name>: <resource template>, ... }
//
// Templates are referenced as "namespace:name". Instances are built by
// joining the template into a kind-specific default document, then joining
// caller overrides on top.
package content
