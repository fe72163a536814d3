// Package engine implements effect resolution and the propagation loop.
//
// Given an occurring subevent and the roster of participating entities, the
// engine offers the subevent to every effect attached to every entity, pass
// after pass, until a full pass produces no match. Each effect applies at
// most once per subevent instance; that guard is what makes the loop settle.
//
// ARCHITECTURE:
//
// Invocation:
//  1. Look up the subevent handler and Prepare the document once
//  2. Clone one subevent per target and bind the target
//  3. Propagate each clone to a fixed point
//  4. Resolve the clone and notify observers
//
// Functions may invoke nested subevents synchronously. Nested invocations
// run their own propagation before the calling function returns.
//
// Bounds:
//   - WithMaxPasses caps propagation passes per subevent (PASS_LIMIT)
//   - WithMaxDepth caps nested invocation depth (DEPTH_LIMIT)
//
// The engine is single-threaded per game context. Callers serialize access
// to an Engine and its directory.
package engine
