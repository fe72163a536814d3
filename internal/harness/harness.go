package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/grimoire/internal/content"
	"github.com/roach88/grimoire/internal/dice"
	"github.com/roach88/grimoire/internal/directory"
	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/engine"
	"github.com/roach88/grimoire/internal/library"
	"github.com/roach88/grimoire/internal/resource"
	"github.com/roach88/grimoire/internal/rules"
	"github.com/roach88/grimoire/internal/testutil"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger   *slog.Logger
	recorder engine.Recorder
}

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithRecorder additionally records the run into r, e.g. a store.Store.
func WithRecorder(r engine.Recorder) Option {
	return func(c *runConfig) {
		c.recorder = r
	}
}

// harness holds the live state of one scenario run.
type harness struct {
	scenario *Scenario
	lib      *content.Library
	dir      *directory.Directory
	dice     *dice.Roller
	engine   *engine.Engine
	memory   *engine.MemoryRecorder
	roster   []string
}

// Run executes scenario in a fresh world and returns the result. Errors
// are returned only when the scenario cannot be set up; step and assertion
// failures are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := newHarness(scenario, cfg)
	if err != nil {
		return nil, err
	}
	if err := h.placeEntities(); err != nil {
		return nil, fmt.Errorf("setup %s: %w", scenario.Name, err)
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if msg := h.runStep(ctx, i, step); msg != "" {
			result.AddError(msg)
			break
		}
	}

	for _, rec := range h.memory.Subevents() {
		result.Trace = append(result.Trace, traceEvent(rec))
	}
	sort.SliceStable(result.Trace, func(i, j int) bool { return result.Trace[i].Seq < result.Trace[j].Seq })
	result.Applications = append(result.Applications, h.memory.Applications()...)
	result.State = h.dir.Snapshot()

	if result.Pass {
		for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
			result.AddError(msg)
		}
	}
	return result, nil
}

func newHarness(s *Scenario, cfg runConfig) (*harness, error) {
	reg, err := library.NewRegistry(s.Testing)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	lib := content.New(content.WithLogger(cfg.logger))
	if s.Content != "" {
		root := s.Content
		if !filepath.IsAbs(root) {
			root = filepath.Join(s.dir, root)
		}
		if err := lib.LoadDir(root); err != nil {
			return nil, fmt.Errorf("content: %w", err)
		}
	}

	roller := dice.New(0)
	if s.Dice != nil {
		if s.Dice.Draw != nil {
			roller = dice.NewTesting(*s.Dice.Draw, s.Dice.Faces...)
		} else {
			roller = dice.New(s.Dice.Seed)
		}
	}

	dir := directory.New(directory.WithIDGenerator(testutil.NewSequentialIDs("doc")))
	memory := engine.NewMemoryRecorder()
	var rec engine.Recorder = memory
	if cfg.recorder != nil {
		rec = teeRecorder{memory, cfg.recorder}
	}

	opts := []engine.Option{
		engine.WithDice(roller),
		engine.WithContent(lib),
		engine.WithRecorder(rec),
		engine.WithObserver(resource.NewTracker()),
		engine.WithIDGenerator(testutil.NewSequentialIDs("sub")),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithLogger(cfg.logger),
	}
	if s.MaxPasses > 0 {
		opts = append(opts, engine.WithMaxPasses(s.MaxPasses))
	}
	if s.MaxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(s.MaxDepth))
	}

	return &harness{
		scenario: s,
		lib:      lib,
		dir:      dir,
		dice:     roller,
		engine:   engine.New(reg, dir, opts...),
		memory:   memory,
	}, nil
}

func (h *harness) placeEntities() error {
	for _, e := range h.scenario.Entities {
		body := doc.NewObject()
		if obj, ok := e.Doc.Object(); ok {
			body = obj.DeepClone()
		}
		body.EnsureArray(rules.FieldEffects)
		body.EnsureArray(rules.FieldResources)
		h.dir.Put(rules.KindEntity, e.ID, body)
		h.roster = append(h.roster, e.ID)

		for _, a := range e.Effects {
			if err := h.attach(e.ID, rules.KindEffect, rules.FieldEffects, a); err != nil {
				return err
			}
		}
		for _, a := range e.Resources {
			if err := h.attach(e.ID, rules.KindResource, rules.FieldResources, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *harness) attach(entityID, kind, field string, a Attachment) error {
	var instance *doc.Object
	if a.Template != "" {
		overrides, _ := a.Overrides.Object()
		inst, err := h.lib.Instantiate(kind, a.Template, overrides)
		if err != nil {
			return fmt.Errorf("%s %s: %w", entityID, kind, err)
		}
		instance = inst
	} else {
		body, _ := a.Doc.Object()
		instance = content.Defaults(kind).Join(body)
	}
	if a.ID != "" {
		instance.Set(directory.FieldID, doc.String(a.ID))
	}
	if kind == rules.KindEffect && !instance.Has(library.FieldOwner) {
		instance.Set(library.FieldOwner, doc.String(entityID))
	}

	id, err := h.dir.Register(kind, instance)
	if err != nil {
		return err
	}
	return h.dir.Attach(entityID, field, id)
}

// runStep executes one step and returns a failure message, or "".
func (h *harness) runStep(ctx context.Context, i int, step Step) string {
	var (
		subs []*rules.Subevent
		err  error
	)
	if !step.Invoke.IsZero() {
		body, _ := step.Invoke.Object()
		roster := step.Roster
		if len(roster) == 0 {
			roster = h.roster
		}
		subs, err = h.engine.Invoke(ctx, body, roster)
	} else {
		err = h.spend(step.Spend)
	}

	expect := step.Expect
	if expect == nil {
		expect = &Expect{}
	}

	if expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("steps[%d]: expected error %q, step succeeded", i, expect.Error)
		}
		if !errorMatches(err, expect.Error) {
			return fmt.Sprintf("steps[%d]: expected error %q, got %v", i, expect.Error, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("steps[%d]: %v", i, err)
	}

	if len(expect.Subevents) > 0 {
		if len(subs) != len(expect.Subevents) {
			return fmt.Sprintf("steps[%d]: expected %d subevents, got %d", i, len(expect.Subevents), len(subs))
		}
		for j, want := range expect.Subevents {
			if !doc.SubsetOf(want.Value, subs[j].Doc) {
				return fmt.Sprintf("steps[%d].subevents[%d]: %s does not contain %s", i, j, subs[j].Doc, render(want.Value))
			}
		}
	}
	return ""
}

func (h *harness) spend(step *SpendStep) error {
	provided := make([]*resource.Resource, 0, len(step.Resources))
	for _, id := range step.Resources {
		d, ok := h.dir.Get(rules.KindResource, id)
		if !ok {
			return fmt.Errorf("spend: resource %q not found", id)
		}
		r, err := resource.Load(d)
		if err != nil {
			return fmt.Errorf("spend: %w", err)
		}
		provided = append(provided, r)
	}

	cost := make([]resource.Requirement, 0, len(step.Cost))
	for _, slot := range step.Cost {
		cost = append(cost, resource.Requirement{Tags: slot.Tags, MinPotency: slot.MinPotency})
	}

	if err := resource.Spend(cost, provided, h.dice); err != nil {
		return err
	}
	for _, r := range provided {
		r.Document()
	}
	return nil
}

// ErrorCode names the category of err for scenario expectations: engine
// runtime codes, rules and resource error names, or "" when unknown.
func ErrorCode(err error) string {
	var re *engine.RuntimeError
	switch {
	case errors.As(err, &re):
		return string(re.Code)
	case rules.IsTypeMismatch(err):
		return "type_mismatch"
	case rules.IsUnknownHandler(err):
		return "unknown_handler"
	case resource.IsResourceCountError(err):
		return "resource_count"
	case resource.IsResourceMismatchError(err):
		return "resource_mismatch"
	case resource.IsInsufficientPotencyError(err):
		return "insufficient_potency"
	case errors.Is(err, resource.ErrAlreadyExhausted):
		return "already_exhausted"
	default:
		return ""
	}
}

func errorMatches(err error, want string) bool {
	if code := ErrorCode(err); code != "" && code == want {
		return true
	}
	return strings.Contains(err.Error(), want)
}

func render(v doc.Value) string {
	b, err := doc.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// teeRecorder writes every record to each recorder in order.
type teeRecorder []engine.Recorder

func (t teeRecorder) RecordApplication(ctx context.Context, app engine.Application) error {
	for _, r := range t {
		if err := r.RecordApplication(ctx, app); err != nil {
			return err
		}
	}
	return nil
}

func (t teeRecorder) RecordSubevent(ctx context.Context, rec engine.SubeventRecord) error {
	for _, r := range t {
		if err := r.RecordSubevent(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
