// Package resource implements limited-use capabilities: spell slots,
// per-rest abilities and anything else that is exhausted by use and
// refreshed by qualifying subevents.
//
// A resource is either Available or Exhausted:
//
//	Available --Exhaust--> Exhausted   criteria reset, required re-rolled
//	Exhausted --Refresh--> Available   criteria zeroed
//
// While Exhausted, every processed subevent is checked against the refresh
// criteria in declared order. A matching subevent advances the criterion's
// completed count; the first criterion to reach its required count
// refreshes the resource.
//
// Resources live in the directory as documents. Load reads one into a
// Resource and Document writes the state back into the same document.
package resource
