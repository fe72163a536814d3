// Package doc provides the document model shared by every piece of rules data.
//
// A document is a JSON-like tree: objects (string keyed, insertion ordered),
// arrays, strings, integers, floats, booleans and null. Effects, resources,
// entities and subevents are all documents with a conventional shape; nothing
// in the rules core owns another document by pointer. Cross-document links are
// opaque identifier strings resolved through the identity directory.
//
// This package imports nothing internal. Every other package builds on it.
//
// Core operations:
//   - Get*: typed accessors that report a miss instead of panicking
//   - DeepClone: structural copy with no shared mutable sub-documents
//   - Join: recursive merge used for template instantiation
//   - Seek / Put: textual path queries (".key", "[N]", `[{"k":"v"}]`)
//   - SubsetOf: structural containment used by content-filter paths
//
// Documents are not safe for concurrent mutation. The rules core is
// single-threaded per game context and callers serialize access at the boundary.
package doc
