package rules

import "github.com/roach88/grimoire/internal/doc"

// Conventional subevent document fields.
const (
	FieldSubevent   = "subevent"
	FieldSource     = "source"
	FieldTarget     = "target"
	FieldTargets    = "targets"
	FieldTags       = "tags"
	FieldCancelable = "cancelable"
	FieldCanceled   = "canceled"
)

// Subevent is one occurring rules action. Doc holds the kind-specific
// payload and is mutated in place by functions. The applied set records
// which effect instances already modified this subevent, keyed by effect id.
//
// A Subevent lives for a single invocation and is never persisted.
type Subevent struct {
	// ID uniquely identifies this subevent instance.
	ID string

	// ParentID is the subevent whose function triggered this one, if any.
	ParentID string

	// Seq is the logical clock value assigned when propagation started.
	Seq int64

	// Depth is the nesting level: 0 for top-level invocations.
	Depth int

	// Doc is the subevent document.
	Doc *doc.Object

	applied map[string]struct{}
	order   []string
}

// NewSubevent wraps d. A nil d becomes an empty document.
func NewSubevent(d *doc.Object) *Subevent {
	if d == nil {
		d = doc.NewObject()
	}
	return &Subevent{Doc: d, applied: make(map[string]struct{})}
}

// Kind returns the subevent identifier.
func (s *Subevent) Kind() string {
	return s.Doc.StringOr(FieldSubevent, "")
}

// Source returns the acting entity id.
func (s *Subevent) Source() string {
	return s.Doc.StringOr(FieldSource, "")
}

// Target returns the bound target entity id.
func (s *Subevent) Target() string {
	return s.Doc.StringOr(FieldTarget, "")
}

// Tags returns the subevent tags.
func (s *Subevent) Tags() []string {
	return s.Doc.Strings(FieldTags)
}

// HasTags reports whether the subevent carries every tag in want.
func (s *Subevent) HasTags(want ...string) bool {
	have := make(map[string]bool)
	for _, t := range s.Tags() {
		have[t] = true
	}
	for _, t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}

// HasApplied reports whether effectID already modified this subevent.
func (s *Subevent) HasApplied(effectID string) bool {
	_, ok := s.applied[effectID]
	return ok
}

// MarkApplied records effectID in the applied set.
func (s *Subevent) MarkApplied(effectID string) {
	if s.applied == nil {
		s.applied = make(map[string]struct{})
	}
	if _, ok := s.applied[effectID]; ok {
		return
	}
	s.applied[effectID] = struct{}{}
	s.order = append(s.order, effectID)
}

// AppliedEffects returns applied effect ids in application order.
func (s *Subevent) AppliedEffects() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Cancelable reports whether the subevent exposes a cancel flag.
func (s *Subevent) Cancelable() bool {
	return s.Doc.BoolOr(FieldCancelable, false)
}

// Cancel sets the cancel flag. It reports false, changing nothing, when the
// subevent is not cancelable. Cancellation is cooperative: nothing stops
// propagation, later handlers check Canceled themselves.
func (s *Subevent) Cancel() bool {
	if !s.Cancelable() {
		return false
	}
	s.Doc.Set(FieldCanceled, doc.Bool(true))
	return true
}

// Canceled reports whether the subevent was canceled.
func (s *Subevent) Canceled() bool {
	return s.Doc.BoolOr(FieldCanceled, false)
}

// Clone returns an independent copy for one target. The document is deep
// cloned and the applied set starts empty.
func (s *Subevent) Clone() *Subevent {
	c := NewSubevent(s.Doc.DeepClone())
	c.ParentID = s.ParentID
	c.Depth = s.Depth
	return c
}
