// Package harness runs YAML rule scenarios against the real engine.
//
// A scenario loads a content library, places entities with their effect and
// resource instances in a fresh directory, then executes steps in order:
// invoking subevent documents and spending resources. Each step may state an
// expected error or a subset of the settled subevent documents. After the
// steps, assertions check the trace and the final directory state.
//
// Runs are deterministic. Subevent ids come from a sequential generator,
// the logical clock starts at zero and dice are seeded or fixed by the
// scenario, so the trace of a scenario can be compared byte for byte with
// a golden file:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden.
package harness
