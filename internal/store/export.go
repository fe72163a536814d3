package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/grimoire/internal/doc"
)

// Export entry types.
const (
	EntryRun         = "run"
	EntrySubevent    = "subevent"
	EntryApplication = "application"
)

// ExportEntry is one JSONL line of an exported run. The first line of an
// export is always the run; subevents follow in seq order, then
// applications.
type ExportEntry struct {
	Type string `json:"type"`

	// run
	Label   string `json:"label,omitempty"`
	Content string `json:"content,omitempty"`

	// subevent and application
	ID       string          `json:"id,omitempty"`
	ParentID string          `json:"parent_id,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Depth    int             `json:"depth,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Target   string          `json:"target,omitempty"`
	Passes   int             `json:"passes,omitempty"`
	Applied  []string        `json:"applied,omitempty"`
	Hash     string          `json:"hash,omitempty"`
	Doc      json.RawMessage `json:"doc,omitempty"`
	Pass     int             `json:"pass,omitempty"`
	Entity   string          `json:"entity,omitempty"`
	Effect   string          `json:"effect,omitempty"`
	Behavior int             `json:"behavior,omitempty"`
}

// Export writes run as zstd-compressed JSONL to w.
func (s *Store) Export(ctx context.Context, runID string, w io.Writer) error {
	run, ok, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("export: unknown run %q", runID)
	}
	subs, err := s.ReadSubevents(ctx, runID)
	if err != nil {
		return err
	}
	apps, err := s.ReadApplications(ctx, runID)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	je := json.NewEncoder(bw)
	je.SetEscapeHTML(false)

	write := func(e ExportEntry) error {
		if err := je.Encode(e); err != nil {
			return fmt.Errorf("export %s %s: %w", e.Type, e.ID, err)
		}
		return nil
	}

	if err := write(ExportEntry{Type: EntryRun, ID: run.ID, Label: run.Label, Content: run.Content}); err != nil {
		enc.Close()
		return err
	}
	for _, sub := range subs {
		body, err := doc.MarshalCanonical(sub.Doc)
		if err != nil {
			enc.Close()
			return fmt.Errorf("export subevent %s: %w", sub.ID, err)
		}
		if err := write(ExportEntry{
			Type:     EntrySubevent,
			ID:       sub.ID,
			ParentID: sub.ParentID,
			Seq:      sub.Seq,
			Depth:    sub.Depth,
			Kind:     sub.Kind,
			Target:   sub.Target,
			Passes:   sub.Passes,
			Applied:  sub.Applied,
			Hash:     sub.Hash,
			Doc:      body,
		}); err != nil {
			enc.Close()
			return err
		}
	}
	for _, app := range apps {
		if err := write(ExportEntry{
			Type:     EntryApplication,
			ID:       app.SubeventID,
			Seq:      app.Seq,
			Pass:     app.Pass,
			Entity:   app.Entity,
			Effect:   app.Effect,
			Behavior: app.Behavior,
		}); err != nil {
			enc.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ReadExport decodes a stream written by Export.
func ReadExport(r io.Reader) ([]ExportEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	entries := []ExportEntry{}
	for line := 1; sc.Scan(); line++ {
		var e ExportEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("read export line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return entries, nil
}
