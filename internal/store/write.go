package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/engine"
)

// ErrNoRun is returned when a record is written before any run was begun.
var ErrNoRun = errors.New("store: no run begun")

var _ engine.Recorder = (*Store)(nil)

// Run identifies one recorded invocation session.
type Run struct {
	ID      string
	Label   string
	Content string
}

// BeginRun registers run and makes it the target of subsequent records.
// Beginning an existing run again only switches to it.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, label, content)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`, run.ID, run.Label, run.Content)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	s.mu.Lock()
	s.current = run.ID
	s.mu.Unlock()
	return nil
}

// CurrentRun returns the id of the run records are written to.
func (s *Store) CurrentRun() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// RecordSubevent inserts a settled subevent into the current run.
// Duplicate ids are silently ignored.
func (s *Store) RecordSubevent(ctx context.Context, rec engine.SubeventRecord) error {
	run := s.CurrentRun()
	if run == "" {
		return ErrNoRun
	}

	body := rec.Doc
	if body == nil {
		body = doc.NewObject()
	}
	docJSON, err := doc.MarshalCanonical(body)
	if err != nil {
		return fmt.Errorf("record subevent %s: %w", rec.ID, err)
	}
	hash, err := doc.Hash(doc.DomainSubevent, body)
	if err != nil {
		return fmt.Errorf("record subevent %s: %w", rec.ID, err)
	}
	appliedJSON, err := marshalApplied(rec.Applied)
	if err != nil {
		return fmt.Errorf("record subevent %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subevents
		(id, run_id, parent_id, seq, depth, kind, target, passes, applied, doc, doc_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`,
		rec.ID,
		run,
		rec.ParentID,
		rec.Seq,
		rec.Depth,
		rec.Kind,
		rec.Target,
		rec.Passes,
		appliedJSON,
		string(docJSON),
		hash,
	)
	if err != nil {
		return fmt.Errorf("record subevent %s: %w", rec.ID, err)
	}
	return nil
}

// RecordApplication inserts an effect application into the current run.
// An effect applies at most once per subevent, so a repeated
// (subevent, effect) pair within a run is silently ignored.
func (s *Store) RecordApplication(ctx context.Context, app engine.Application) error {
	run := s.CurrentRun()
	if run == "" {
		return ErrNoRun
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications
		(run_id, subevent_id, seq, pass, entity, effect, behavior)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		run,
		app.SubeventID,
		app.Seq,
		app.Pass,
		app.Entity,
		app.Effect,
		app.Behavior,
	)
	if err != nil {
		return fmt.Errorf("record application %s/%s: %w", app.SubeventID, app.Effect, err)
	}
	return nil
}

func marshalApplied(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal applied: %w", err)
	}
	return string(data), nil
}

func unmarshalApplied(data string) ([]string, error) {
	out := []string{}
	if data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal applied: %w", err)
	}
	return out, nil
}
