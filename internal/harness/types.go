package harness

import (
	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/engine"
)

// TraceEvent is one settled subevent of a run.
type TraceEvent struct {
	ID       string
	ParentID string
	Seq      int64
	Depth    int
	Subevent string
	Target   string
	Passes   int
	Applied  []string
	Doc      *doc.Object
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool

	// Trace lists settled subevents in seq order.
	Trace []TraceEvent

	// Applications lists effect applications in record order.
	Applications []engine.Application

	// Errors holds one message per failed step or assertion.
	Errors []string

	// State is the final directory snapshot.
	State *doc.Object
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Applications: []engine.Application{},
		Errors:       []string{},
		State:        doc.NewObject(),
	}
}

// AddError records a failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

func traceEvent(rec engine.SubeventRecord) TraceEvent {
	applied := rec.Applied
	if applied == nil {
		applied = []string{}
	}
	return TraceEvent{
		ID:       rec.ID,
		ParentID: rec.ParentID,
		Seq:      rec.Seq,
		Depth:    rec.Depth,
		Subevent: rec.Kind,
		Target:   rec.Target,
		Passes:   rec.Passes,
		Applied:  applied,
		Doc:      rec.Doc,
	}
}
