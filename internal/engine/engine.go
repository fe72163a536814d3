package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

const tracerName = "github.com/roach88/grimoire/internal/engine"

// DefaultMaxPasses is the default propagation pass ceiling per subevent.
const DefaultMaxPasses = 64

// DefaultMaxDepth is the default nested invocation ceiling.
const DefaultMaxDepth = 16

// Engine resolves subevents against the effects of a roster of entities.
//
// INVARIANTS:
//   - An effect applies at most once per subevent instance
//   - Propagation over one subevent never exceeds maxPasses passes
//   - Nested invocations never exceed maxDepth levels
type Engine struct {
	registry  *rules.Registry
	directory rules.Directory
	dice      rules.Dice
	content   rules.Templates
	recorder  Recorder
	observers []Observer
	ids       IDGenerator
	clock     Sequencer
	logger    *slog.Logger
	tracer    trace.Tracer

	maxPasses int
	maxDepth  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxPasses sets the propagation pass ceiling.
//
// Default: 64 passes (DefaultMaxPasses).
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		e.maxPasses = n
	}
}

// WithMaxDepth sets the nested invocation ceiling.
//
// Default: 16 levels (DefaultMaxDepth). Top-level invocations are depth 0.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithDice sets the dice service handed to handlers.
func WithDice(d rules.Dice) Option {
	return func(e *Engine) {
		e.dice = d
	}
}

// WithContent sets the template source used by grant functions.
func WithContent(t rules.Templates) Option {
	return func(e *Engine) {
		e.content = t
	}
}

// WithRecorder sets where traces are written.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithObserver adds an observer notified after each resolved subevent.
// Observers run in registration order.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithIDGenerator overrides the UUIDv7 subevent id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the logical clock, e.g. to resume a recorded sequence or
// to reset numbering between scenario runs.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// New creates an Engine over an initialized registry and a directory.
func New(registry *rules.Registry, directory rules.Directory, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		directory: directory,
		recorder:  nopRecorder{},
		ids:       UUIDv7Generator{},
		clock:     NewClock(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		maxPasses: DefaultMaxPasses,
		maxDepth:  DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *rules.Registry {
	return e.registry
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() Sequencer {
	return e.clock
}

// Env builds the evaluation context for roster.
func (e *Engine) Env(ctx context.Context, roster []string) *rules.Env {
	r := make([]string, len(roster))
	copy(r, roster)
	return &rules.Env{
		Ctx:       ctx,
		Registry:  e.registry,
		Directory: e.directory,
		Dice:      e.dice,
		Content:   e.content,
		Invoker:   e,
		Logger:    e.logger,
		Roster:    r,
	}
}

// Invoke runs the subevent document d against roster and returns one
// settled subevent per target. d itself is not modified.
//
// Targets come from the "targets" array, else the "target" field. A
// subevent without any target runs once, unbound.
func (e *Engine) Invoke(ctx context.Context, d *doc.Object, roster []string) ([]*rules.Subevent, error) {
	return e.invoke(ctx, d, roster, nil)
}

// InvokeNested runs d as a child of parent. Handlers reach it through
// rules.Env.Invoke.
func (e *Engine) InvokeNested(ctx context.Context, d *doc.Object, roster []string, parent *rules.Subevent) ([]*rules.Subevent, error) {
	return e.invoke(ctx, d, roster, parent)
}

func (e *Engine) invoke(ctx context.Context, d *doc.Object, roster []string, parent *rules.Subevent) ([]*rules.Subevent, error) {
	if d == nil {
		return nil, NewMalformedError("", "", "nil subevent document")
	}
	kind, ok := d.GetString(rules.FieldSubevent)
	if !ok || kind == "" {
		return nil, NewMalformedError("", "", "subevent document missing \"subevent\" field")
	}

	depth, parentID := 0, ""
	if parent != nil {
		depth, parentID = parent.Depth+1, parent.ID
	}
	if depth > e.maxDepth {
		return nil, NewDepthLimitError(kind, depth, e.maxDepth)
	}

	h, err := e.registry.Subevent(kind)
	if err != nil {
		return nil, err
	}
	if err := rules.Verify(h, rules.TagSubevent, d); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "grimoire.invoke", trace.WithAttributes(
		attribute.String("grimoire.subevent.kind", kind),
		attribute.Int("grimoire.depth", depth),
	))
	defer span.End()

	results, err := e.run(ctx, h, d, roster, depth, parentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("grimoire.targets", len(results)))
	return results, nil
}

func (e *Engine) run(ctx context.Context, h rules.SubeventHandler, d *doc.Object, roster []string, depth int, parentID string) ([]*rules.Subevent, error) {
	env := e.Env(ctx, roster)

	base := rules.NewSubevent(d.DeepClone())
	base.Depth = depth
	base.ParentID = parentID
	if err := h.Prepare(env, base); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", h.ID(), err)
	}

	targets, err := targetsOf(base.Doc)
	if err != nil {
		return nil, NewMalformedError("", "", fmt.Sprintf("%s subevent: %v", h.ID(), err))
	}

	var results []*rules.Subevent
	for _, target := range targets {
		sub := h.Clone(base)
		sub.Depth = depth
		sub.ParentID = parentID
		sub.Doc.Delete(rules.FieldTargets)
		if target != "" {
			sub.Doc.Set(rules.FieldTarget, doc.String(target))
		}
		sub.ID = e.ids.Generate()
		sub.Seq = e.clock.Next()

		e.logger.Debug("subevent invoked",
			"subevent", sub.ID,
			"kind", h.ID(),
			"target", target,
			"depth", depth,
			"seq", sub.Seq,
		)

		passes, err := e.propagate(env, sub)
		if err != nil {
			return nil, err
		}
		if err := h.Resolve(env, sub); err != nil {
			return nil, fmt.Errorf("resolve %s %s: %w", h.ID(), sub.ID, err)
		}

		rec := SubeventRecord{
			ID:       sub.ID,
			ParentID: sub.ParentID,
			Seq:      sub.Seq,
			Depth:    sub.Depth,
			Kind:     h.ID(),
			Target:   target,
			Passes:   passes,
			Applied:  sub.AppliedEffects(),
			Doc:      sub.Doc.DeepClone(),
		}
		if err := e.recorder.RecordSubevent(ctx, rec); err != nil {
			return nil, fmt.Errorf("record subevent %s: %w", sub.ID, err)
		}

		for _, o := range e.observers {
			if err := o.ObserveSubevent(env, sub); err != nil {
				return nil, fmt.Errorf("observe subevent %s: %w", sub.ID, err)
			}
		}
		results = append(results, sub)
	}
	return results, nil
}

// targetsOf lists the targets to clone for. It always returns at least one
// entry; "" means unbound.
func targetsOf(d *doc.Object) ([]string, error) {
	raw, ok := d.Get(rules.FieldTargets)
	if !ok {
		return []string{d.StringOr(rules.FieldTarget, "")}, nil
	}
	targets, ok := raw.(*doc.Array)
	if !ok {
		return nil, fmt.Errorf("%s is %s, want array", rules.FieldTargets, doc.KindOf(raw))
	}
	if targets.Len() == 0 {
		return []string{d.StringOr(rules.FieldTarget, "")}, nil
	}
	ids := make([]string, 0, targets.Len())
	for i, item := range targets.Items() {
		id, ok := item.(doc.String)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %s, want string", rules.FieldTargets, i, doc.KindOf(item))
		}
		ids = append(ids, string(id))
	}
	return ids, nil
}
