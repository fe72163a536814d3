package engine

import (
	"context"
	"sync"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/rules"
)

// Application records one effect behavior applied to a subevent.
type Application struct {
	SubeventID string
	Seq        int64
	Pass       int
	Entity     string
	Effect     string
	Behavior   int
}

// SubeventRecord is the settled state of one invoked subevent.
type SubeventRecord struct {
	ID       string
	ParentID string
	Seq      int64
	Depth    int
	Kind     string
	Target   string
	Passes   int
	Applied  []string
	Doc      *doc.Object
}

// Recorder persists invocation traces. Implemented by store.Store and
// MemoryRecorder.
type Recorder interface {
	RecordApplication(ctx context.Context, app Application) error
	RecordSubevent(ctx context.Context, rec SubeventRecord) error
}

// Observer is notified after each subevent has propagated and resolved.
// An error aborts the invocation.
type Observer interface {
	ObserveSubevent(env *rules.Env, sub *rules.Subevent) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(env *rules.Env, sub *rules.Subevent) error

// ObserveSubevent calls f.
func (f ObserverFunc) ObserveSubevent(env *rules.Env, sub *rules.Subevent) error {
	return f(env, sub)
}

// MemoryRecorder keeps traces in memory, in record order. Safe for
// concurrent use.
type MemoryRecorder struct {
	mu           sync.Mutex
	applications []Application
	subevents    []SubeventRecord
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// RecordApplication appends app.
func (m *MemoryRecorder) RecordApplication(_ context.Context, app Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications = append(m.applications, app)
	return nil
}

// RecordSubevent appends rec.
func (m *MemoryRecorder) RecordSubevent(_ context.Context, rec SubeventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subevents = append(m.subevents, rec)
	return nil
}

// Applications returns a copy of the recorded applications.
func (m *MemoryRecorder) Applications() []Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Application, len(m.applications))
	copy(out, m.applications)
	return out
}

// Subevents returns a copy of the recorded subevents.
func (m *MemoryRecorder) Subevents() []SubeventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SubeventRecord, len(m.subevents))
	copy(out, m.subevents)
	return out
}

// Reset discards everything recorded.
func (m *MemoryRecorder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications = nil
	m.subevents = nil
}

type nopRecorder struct{}

func (nopRecorder) RecordApplication(context.Context, Application) error { return nil }
func (nopRecorder) RecordSubevent(context.Context, SubeventRecord) error { return nil }
