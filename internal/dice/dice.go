// Package dice rolls die specs for the rules core.
//
// A Roller is deterministic with respect to its seed. The testing mode
// returns fixed faces and a fixed probability draw so scenarios can pin
// every random outcome.
package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrMissingDice is returned when a roll request holds no specs.
	ErrMissingDice = errors.New("at least one die spec is required")

	// ErrInvalidDiceSpec is returned for non-positive count or sides.
	ErrInvalidDiceSpec = errors.New("die spec count and sides must be positive")
)

// Spec describes Count dice with Sides faces plus a flat Modifier.
// A Spec with zero Count is a constant equal to Modifier.
type Spec struct {
	Count    int
	Sides    int
	Modifier int
}

// String renders the spec in NdS+M notation.
func (s Spec) String() string {
	var sb strings.Builder
	if s.Count > 0 {
		fmt.Fprintf(&sb, "%dd%d", s.Count, s.Sides)
	}
	switch {
	case s.Modifier > 0 && s.Count > 0:
		fmt.Fprintf(&sb, "+%d", s.Modifier)
	case s.Modifier != 0 || s.Count == 0:
		fmt.Fprintf(&sb, "%d", s.Modifier)
	}
	return sb.String()
}

// ParseSpec parses "2d6", "d20", "1d8+2", "3d4-1" or a bare constant "5".
func ParseSpec(s string) (Spec, error) {
	raw := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if raw == "" {
		return Spec{}, fmt.Errorf("parse die spec: empty")
	}

	d := strings.IndexByte(raw, 'd')
	if d < 0 {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Spec{}, fmt.Errorf("parse die spec %q: %w", s, err)
		}
		return Spec{Modifier: n}, nil
	}

	count := 1
	if d > 0 {
		n, err := strconv.Atoi(raw[:d])
		if err != nil {
			return Spec{}, fmt.Errorf("parse die spec %q: bad count: %w", s, err)
		}
		count = n
	}

	rest := raw[d+1:]
	mod := 0
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		n, err := strconv.Atoi(rest[i:])
		if err != nil {
			return Spec{}, fmt.Errorf("parse die spec %q: bad modifier: %w", s, err)
		}
		mod = n
		rest = rest[:i]
	}
	sides, err := strconv.Atoi(rest)
	if err != nil {
		return Spec{}, fmt.Errorf("parse die spec %q: bad sides: %w", s, err)
	}

	spec := Spec{Count: count, Sides: sides, Modifier: mod}
	if spec.Count <= 0 || spec.Sides <= 0 {
		return Spec{}, fmt.Errorf("parse die spec %q: %w", s, ErrInvalidDiceSpec)
	}
	return spec, nil
}

// Roll is the outcome of one spec.
type Roll struct {
	Spec    Spec
	Results []int
	Total   int
}

// Result is the outcome of a set of specs, in request order.
type Result struct {
	Rolls []Roll
	Total int
}

// Roller rolls dice from a seeded source, or from fixed faces in testing
// mode. It is safe for concurrent use.
type Roller struct {
	mu    sync.Mutex
	rng   *rand.Rand
	faces []int
	next  int
	draw  float64
	fixed bool
}

// New creates a seeded roller.
func New(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// NewTesting creates a roller that returns faces in order, cycling, and
// always draws draw. Faces are clamped into [1, sides]; with no faces every
// die shows 1.
func NewTesting(draw float64, faces ...int) *Roller {
	f := make([]int, len(faces))
	copy(f, faces)
	return &Roller{faces: f, draw: draw, fixed: true}
}

// Testing reports whether the roller is in testing mode.
func (r *Roller) Testing() bool {
	return r.fixed
}

// Roll parses spec and returns its total.
func (r *Roller) Roll(spec string) (int, error) {
	s, err := ParseSpec(spec)
	if err != nil {
		return 0, err
	}
	res, err := r.RollSpecs(s)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

// RollSpecs rolls each spec in order.
func (r *Roller) RollSpecs(specs ...Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rolls := make([]Roll, 0, len(specs))
	total := 0
	for _, spec := range specs {
		if spec.Count < 0 || (spec.Count > 0 && spec.Sides <= 0) {
			return Result{}, ErrInvalidDiceSpec
		}
		results := make([]int, spec.Count)
		rollTotal := spec.Modifier
		for i := 0; i < spec.Count; i++ {
			value := r.rollDie(spec.Sides)
			results[i] = value
			rollTotal += value
		}
		rolls = append(rolls, Roll{Spec: spec, Results: results, Total: rollTotal})
		total += rollTotal
	}
	return Result{Rolls: rolls, Total: total}, nil
}

// Draw returns a uniform value in [0, 1).
func (r *Roller) Draw() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fixed {
		return r.draw
	}
	return r.rng.Float64()
}

func (r *Roller) rollDie(sides int) int {
	if !r.fixed {
		return r.rng.Intn(sides) + 1
	}
	if len(r.faces) == 0 {
		return 1
	}
	face := r.faces[r.next%len(r.faces)]
	r.next++
	return min(max(face, 1), sides)
}
