package resource

import (
	"errors"
	"fmt"
	"strings"
)

// Requirement is one resource an action consumes: it must carry every tag
// in Tags and have at least MinPotency potency.
type Requirement struct {
	Tags       []string
	MinPotency float64
}

// ResourceCountError reports a resource list of the wrong length.
type ResourceCountError struct {
	Expected int
	Actual   int
}

func (e *ResourceCountError) Error() string {
	return fmt.Sprintf("expected %d resources, got %d", e.Expected, e.Actual)
}

// ResourceMismatchError reports a resource that cannot pay for its slot:
// it lacks a required tag, it is exhausted, or it already pays for an
// earlier slot.
type ResourceMismatchError struct {
	Index     int
	Resource  string
	Missing   []string
	Spent     bool
	Duplicate bool
}

func (e *ResourceMismatchError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("resource %d (%s) is already used for another slot", e.Index, e.Resource)
	}
	if e.Spent {
		return fmt.Sprintf("resource %d (%s) is exhausted", e.Index, e.Resource)
	}
	return fmt.Sprintf("resource %d (%s) missing tags [%s]", e.Index, e.Resource, strings.Join(e.Missing, ", "))
}

// InsufficientPotencyError reports a resource too weak for its slot.
type InsufficientPotencyError struct {
	Index    int
	Resource string
	Have     float64
	Need     float64
}

func (e *InsufficientPotencyError) Error() string {
	return fmt.Sprintf("resource %d (%s) potency %g below required %g", e.Index, e.Resource, e.Have, e.Need)
}

// IsResourceCountError reports whether err is a ResourceCountError.
func IsResourceCountError(err error) bool {
	var target *ResourceCountError
	return errors.As(err, &target)
}

// IsResourceMismatchError reports whether err is a ResourceMismatchError.
func IsResourceMismatchError(err error) bool {
	var target *ResourceMismatchError
	return errors.As(err, &target)
}

// IsInsufficientPotencyError reports whether err is an InsufficientPotencyError.
func IsInsufficientPotencyError(err error) bool {
	var target *InsufficientPotencyError
	return errors.As(err, &target)
}

// Validate checks that provided pays for cost, slot by slot. Each resource
// pays for at most one slot. Nothing is corrected: the first failing slot
// is reported.
func Validate(cost []Requirement, provided []*Resource) error {
	if len(cost) != len(provided) {
		return &ResourceCountError{Expected: len(cost), Actual: len(provided)}
	}
	seen := make(map[*Resource]bool, len(provided))
	seenIDs := make(map[string]bool, len(provided))
	for i, req := range cost {
		r := provided[i]
		if seen[r] || (r.ID != "" && seenIDs[r.ID]) {
			return &ResourceMismatchError{Index: i, Resource: r.ID, Duplicate: true}
		}
		seen[r] = true
		if r.ID != "" {
			seenIDs[r.ID] = true
		}
		if r.Exhausted() {
			return &ResourceMismatchError{Index: i, Resource: r.ID, Spent: true}
		}
		var missing []string
		for _, tag := range req.Tags {
			if !r.HasTags(tag) {
				missing = append(missing, tag)
			}
		}
		if len(missing) > 0 {
			return &ResourceMismatchError{Index: i, Resource: r.ID, Missing: missing}
		}
		if r.Potency < req.MinPotency {
			return &InsufficientPotencyError{Index: i, Resource: r.ID, Have: r.Potency, Need: req.MinPotency}
		}
	}
	return nil
}

// Spend validates provided against cost and exhausts every resource. The
// required counts of all resources are rolled before any is exhausted, so
// on any error nothing is exhausted.
func Spend(cost []Requirement, provided []*Resource, roller Roller) error {
	if err := Validate(cost, provided); err != nil {
		return err
	}
	required := make([][]int, len(provided))
	for i, r := range provided {
		n, err := r.rollRequired(roller)
		if err != nil {
			return err
		}
		required[i] = n
	}
	for i, r := range provided {
		r.exhaustWith(required[i])
	}
	return nil
}
