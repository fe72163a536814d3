package rules

import (
	"fmt"
	"sort"
)

// Composite condition identifiers. They are evaluated by the engine and can
// never be registered as leaf handlers.
const (
	CompositeAll    = "all"
	CompositeAny    = "any"
	CompositeInvert = "invert"
)

// IsComposite reports whether id names a built-in composite condition.
func IsComposite(id string) bool {
	switch id {
	case CompositeAll, CompositeAny, CompositeInvert:
		return true
	default:
		return false
	}
}

// Installer populates a freshly cleared registry. includeTesting selects the
// extra handlers reserved for tests and scenario fixtures.
type Installer func(r *Registry, includeTesting bool) error

// Registry maps identifiers to handler singletons for each family.
//
// A Registry is populated by Initialize and treated as read-only afterwards.
// It is not safe for concurrent Initialize and lookup.
type Registry struct {
	install    Installer
	conditions map[string]ConditionHandler
	functions  map[string]FunctionHandler
	subevents  map[string]SubeventHandler
	distances  map[string]DistanceFunc
}

// NewRegistry creates an empty registry that Initialize fills with install.
// A nil installer yields a registry holding only the distance algorithms.
func NewRegistry(install Installer) *Registry {
	r := &Registry{install: install}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.conditions = make(map[string]ConditionHandler)
	r.functions = make(map[string]FunctionHandler)
	r.subevents = make(map[string]SubeventHandler)
	r.distances = map[string]DistanceFunc{
		DistanceDirect:    directDistance,
		DistanceManhattan: manhattanDistance,
		DistanceChebyshev: chebyshevDistance,
	}
}

// Initialize clears every table and repopulates it. It is the single
// re-initialization point; on error the registry is left empty.
func (r *Registry) Initialize(includeTesting bool) error {
	r.reset()
	if r.install == nil {
		return nil
	}
	if err := r.install(r, includeTesting); err != nil {
		r.reset()
		return fmt.Errorf("initialize registry: %w", err)
	}
	return nil
}

// RegisterCondition adds a leaf condition. Installers call this.
func (r *Registry) RegisterCondition(h ConditionHandler) error {
	if IsComposite(h.ID()) {
		return fmt.Errorf("condition %q is a reserved composite", h.ID())
	}
	if _, exists := r.conditions[h.ID()]; exists {
		return fmt.Errorf("duplicate condition %q", h.ID())
	}
	r.conditions[h.ID()] = h
	return nil
}

// RegisterFunction adds a function handler. Installers call this.
func (r *Registry) RegisterFunction(h FunctionHandler) error {
	if _, exists := r.functions[h.ID()]; exists {
		return fmt.Errorf("duplicate function %q", h.ID())
	}
	r.functions[h.ID()] = h
	return nil
}

// RegisterSubevent adds a subevent handler. Installers call this.
func (r *Registry) RegisterSubevent(h SubeventHandler) error {
	if _, exists := r.subevents[h.ID()]; exists {
		return fmt.Errorf("duplicate subevent %q", h.ID())
	}
	r.subevents[h.ID()] = h
	return nil
}

// RegisterDistance adds or replaces a named distance algorithm.
func (r *Registry) RegisterDistance(name string, fn DistanceFunc) {
	r.distances[name] = fn
}

// LookupCondition returns the leaf condition registered under id.
func (r *Registry) LookupCondition(id string) (ConditionHandler, bool) {
	h, ok := r.conditions[id]
	return h, ok
}

// LookupFunction returns the function registered under id.
func (r *Registry) LookupFunction(id string) (FunctionHandler, bool) {
	h, ok := r.functions[id]
	return h, ok
}

// LookupSubevent returns the subevent handler registered under id.
func (r *Registry) LookupSubevent(id string) (SubeventHandler, bool) {
	h, ok := r.subevents[id]
	return h, ok
}

// Condition is LookupCondition returning *UnknownHandlerError on a miss.
func (r *Registry) Condition(id string) (ConditionHandler, error) {
	if h, ok := r.conditions[id]; ok {
		return h, nil
	}
	return nil, &UnknownHandlerError{Family: TagCondition, ID: id}
}

// Function is LookupFunction returning *UnknownHandlerError on a miss.
func (r *Registry) Function(id string) (FunctionHandler, error) {
	if h, ok := r.functions[id]; ok {
		return h, nil
	}
	return nil, &UnknownHandlerError{Family: TagFunction, ID: id}
}

// Subevent is LookupSubevent returning *UnknownHandlerError on a miss.
func (r *Registry) Subevent(id string) (SubeventHandler, error) {
	if h, ok := r.subevents[id]; ok {
		return h, nil
	}
	return nil, &UnknownHandlerError{Family: TagSubevent, ID: id}
}

// ConditionIDs returns registered leaf condition ids, sorted.
func (r *Registry) ConditionIDs() []string { return sortedKeys(r.conditions) }

// FunctionIDs returns registered function ids, sorted.
func (r *Registry) FunctionIDs() []string { return sortedKeys(r.functions) }

// SubeventIDs returns registered subevent ids, sorted.
func (r *Registry) SubeventIDs() []string { return sortedKeys(r.subevents) }

// DistanceIDs returns registered distance algorithm names, sorted.
func (r *Registry) DistanceIDs() []string { return sortedKeys(r.distances) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
