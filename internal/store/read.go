package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/engine"
)

// StoredSubevent is a subevent row together with its content hash.
type StoredSubevent struct {
	engine.SubeventRecord
	RunID string
	Hash  string
}

// Runs returns every run in the order it was begun.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, content FROM runs ORDER BY ord ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Label, &r.Content); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently begun run. ok is false when the
// store holds no runs.
func (s *Store) LatestRun(ctx context.Context) (Run, bool, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, content FROM runs ORDER BY ord DESC LIMIT 1
	`).Scan(&r.ID, &r.Label, &r.Content)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query latest run: %w", err)
	}
	return r, true, nil
}

// GetRun looks up a run by id. ok is false when no such run exists.
func (s *Store) GetRun(ctx context.Context, id string) (Run, bool, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, content FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Label, &r.Content)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query run %s: %w", id, err)
	}
	return r, true, nil
}

// ReadSubevents returns the subevents of run ordered by seq, id.
func (s *Store) ReadSubevents(ctx context.Context, runID string) ([]StoredSubevent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, parent_id, seq, depth, kind, target, passes, applied, doc, doc_hash
		FROM subevents
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query subevents: %w", err)
	}
	defer rows.Close()

	subs := []StoredSubevent{}
	for rows.Next() {
		var (
			sub         StoredSubevent
			appliedJSON string
			docJSON     string
		)
		if err := rows.Scan(
			&sub.ID, &sub.RunID, &sub.ParentID, &sub.Seq, &sub.Depth,
			&sub.Kind, &sub.Target, &sub.Passes, &appliedJSON, &docJSON, &sub.Hash,
		); err != nil {
			return nil, fmt.Errorf("scan subevent: %w", err)
		}
		if sub.Applied, err = unmarshalApplied(appliedJSON); err != nil {
			return nil, fmt.Errorf("subevent %s: %w", sub.ID, err)
		}
		if sub.Doc, err = doc.ParseObject([]byte(docJSON)); err != nil {
			return nil, fmt.Errorf("subevent %s: %w", sub.ID, err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subevents: %w", err)
	}
	return subs, nil
}

// ReadSubevent returns one subevent of run by id. ok is false when it is
// absent.
func (s *Store) ReadSubevent(ctx context.Context, runID, id string) (StoredSubevent, bool, error) {
	var (
		sub         StoredSubevent
		appliedJSON string
		docJSON     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, parent_id, seq, depth, kind, target, passes, applied, doc, doc_hash
		FROM subevents WHERE run_id = ? AND id = ?
	`, runID, id).Scan(
		&sub.ID, &sub.RunID, &sub.ParentID, &sub.Seq, &sub.Depth,
		&sub.Kind, &sub.Target, &sub.Passes, &appliedJSON, &docJSON, &sub.Hash,
	)
	if err == sql.ErrNoRows {
		return StoredSubevent{}, false, nil
	}
	if err != nil {
		return StoredSubevent{}, false, fmt.Errorf("query subevent %s: %w", id, err)
	}
	if sub.Applied, err = unmarshalApplied(appliedJSON); err != nil {
		return StoredSubevent{}, false, fmt.Errorf("subevent %s: %w", id, err)
	}
	if sub.Doc, err = doc.ParseObject([]byte(docJSON)); err != nil {
		return StoredSubevent{}, false, fmt.Errorf("subevent %s: %w", id, err)
	}
	return sub, true, nil
}

// ReadApplications returns the applications of run ordered by seq, then
// pass, then record order.
func (s *Store) ReadApplications(ctx context.Context, runID string) ([]engine.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subevent_id, seq, pass, entity, effect, behavior
		FROM applications
		WHERE run_id = ?
		ORDER BY seq ASC, pass ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := []engine.Application{}
	for rows.Next() {
		var app engine.Application
		if err := rows.Scan(&app.SubeventID, &app.Seq, &app.Pass, &app.Entity, &app.Effect, &app.Behavior); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}
