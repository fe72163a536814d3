// Package rules defines the dispatch contract shared by every pluggable rule
// fragment, and the Registry value that maps identifiers to handlers.
//
// Three handler families exist:
//   - ConditionHandler: boolean predicates, tagged {"condition": id, ...}
//   - FunctionHandler: subevent mutations, tagged {"function": id, ...}
//   - SubeventHandler: subevent kinds, tagged {"subevent": id, ...}
//
// A Registry is built once with Initialize and is read-only afterwards.
// Handlers are looked up purely by the identifier carried in the document
// being processed. The composite conditions all, any and invert are reserved
// and evaluated by the engine, never registered here.
//
// Error policy:
//   - TypeMismatchError: the document's discriminant does not match the
//     handler. Fatal to the current operation.
//   - ErrNotApplicable: a handler was handed a subevent of the wrong kind.
//     The caller logs it and skips the behavior.
//   - UnknownHandlerError: no handler is registered for an identifier.
package rules
