package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/grimoire/internal/doc"
)

// Discriminant fields carried by handler documents.
const (
	TagCondition = "condition"
	TagFunction  = "function"
	TagSubevent  = FieldSubevent
)

// Entity list fields holding attached ids.
const (
	FieldEffects   = "effects"
	FieldResources = "resources"
)

// Directory kinds.
const (
	KindEntity   = "entity"
	KindEffect   = "effect"
	KindResource = "resource"
)

// Handler is implemented by every pluggable rule fragment.
type Handler interface {
	// ID is the identifier documents use to select this handler.
	ID() string
}

// ConditionHandler evaluates a leaf condition.
type ConditionHandler interface {
	Handler
	Evaluate(env *Env, scope Scope, sub *Subevent, params *doc.Object) (bool, error)
}

// FunctionHandler applies a mutation to a subevent or triggers new ones.
// Return values beyond the error are never consumed.
type FunctionHandler interface {
	Handler
	Execute(env *Env, scope Scope, sub *Subevent, params *doc.Object) error
}

// SubeventHandler owns one subevent kind.
type SubeventHandler interface {
	Handler

	// Prepare resolves ambient defaults before any target is bound.
	Prepare(env *Env, sub *Subevent) error

	// Clone returns an independent subevent for a single target.
	Clone(sub *Subevent) *Subevent

	// Resolve applies the final outcome once propagation has settled.
	Resolve(env *Env, sub *Subevent) error
}

// Verify checks that d carries field == h.ID().
func Verify(h Handler, field string, d *doc.Object) error {
	actual, _ := d.GetString(field)
	if actual != h.ID() {
		return &TypeMismatchError{Field: field, Expected: h.ID(), Actual: actual}
	}
	return nil
}

// Scope is what a behavior is evaluated on behalf of.
type Scope struct {
	// Owner is the entity the effect is attached to.
	Owner string

	// Effect is the effect instance id.
	Effect string

	// Origin is the item or entity that granted the effect, if recorded.
	Origin string

	// Point is the spatial origin used by position-dependent handlers.
	Point *Point
}

// Directory resolves opaque identifiers to live documents. Documents
// returned by Get are the stored instances: mutations are visible to every
// later lookup.
type Directory interface {
	Register(kind string, d *doc.Object) (string, error)
	Get(kind, id string) (*doc.Object, bool)
	Unregister(id string) bool
}

// Dice rolls die specs such as "2d6" and draws uniform values in [0, 1).
type Dice interface {
	Roll(spec string) (int, error)
	Draw() float64
}

// Templates instantiates namespaced content templates ("namespace:name").
type Templates interface {
	Instantiate(kind, ref string, overrides *doc.Object) (*doc.Object, error)
}

// Invoker runs a nested subevent to completion on behalf of parent.
type Invoker interface {
	InvokeNested(ctx context.Context, d *doc.Object, roster []string, parent *Subevent) ([]*Subevent, error)
}

// Env is the evaluation context handed to every handler: the ambient lookup
// services of one game context.
type Env struct {
	Ctx       context.Context
	Registry  *Registry
	Directory Directory
	Dice      Dice
	Content   Templates
	Invoker   Invoker
	Logger    *slog.Logger

	// Roster lists the entity ids participating in this context.
	Roster []string
}

// Log returns the configured logger or the default one.
func (e *Env) Log() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Context returns Ctx or context.Background.
func (e *Env) Context() context.Context {
	if e == nil || e.Ctx == nil {
		return context.Background()
	}
	return e.Ctx
}

// Invoke synchronously runs d as a nested subevent of parent and returns the
// per-target subevents once each has fully propagated.
func (e *Env) Invoke(parent *Subevent, d *doc.Object) ([]*Subevent, error) {
	if e.Invoker == nil {
		return nil, fmt.Errorf("nested invocation of %q: no invoker configured", d.StringOr(FieldSubevent, ""))
	}
	return e.Invoker.InvokeNested(e.Context(), d, e.Roster, parent)
}

// Entity looks up an entity document in the directory.
func (e *Env) Entity(id string) (*doc.Object, bool) {
	if e.Directory == nil || id == "" {
		return nil, false
	}
	return e.Directory.Get(KindEntity, id)
}
