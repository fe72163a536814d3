package rules

import (
	"fmt"
	"math"

	"github.com/roach88/grimoire/internal/doc"
)

// Built-in distance algorithm names.
const (
	DistanceDirect    = "direct"
	DistanceManhattan = "manhattan"
	DistanceChebyshev = "chebyshev"
)

// Point is a 3-coordinate position.
type Point struct {
	X, Y, Z float64
}

// PointFrom reads a point from [x, y, z] or {"x":..,"y":..,"z":..}.
// A missing z defaults to 0.
func PointFrom(v doc.Value) (Point, bool) {
	switch val := v.(type) {
	case *doc.Array:
		if val.Len() < 2 || val.Len() > 3 {
			return Point{}, false
		}
		var coords [3]float64
		for i, item := range val.Items() {
			n, ok := doc.Number(item)
			if !ok {
				return Point{}, false
			}
			coords[i] = n
		}
		return Point{X: coords[0], Y: coords[1], Z: coords[2]}, true
	case *doc.Object:
		x, okX := val.GetNumber("x")
		y, okY := val.GetNumber("y")
		if !okX || !okY {
			return Point{}, false
		}
		return Point{X: x, Y: y, Z: val.NumberOr("z", 0)}, true
	default:
		return Point{}, false
	}
}

// Value encodes the point as [x, y, z].
func (p Point) Value() *doc.Array {
	return doc.NewArray(doc.NumberValue(p.X), doc.NumberValue(p.Y), doc.NumberValue(p.Z))
}

// DistanceFunc computes a scalar distance between two points.
type DistanceFunc func(a, b Point) float64

// Distance measures a to b with the named algorithm, "direct" when empty.
func (r *Registry) Distance(a, b Point, algorithm string) (float64, error) {
	if algorithm == "" {
		algorithm = DistanceDirect
	}
	fn, ok := r.distances[algorithm]
	if !ok {
		return 0, fmt.Errorf("unknown distance algorithm %q", algorithm)
	}
	return fn(a, b), nil
}

func directDistance(a, b Point) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func manhattanDistance(a, b Point) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y) + math.Abs(a.Z-b.Z)
}

func chebyshevDistance(a, b Point) float64 {
	return math.Max(math.Abs(a.X-b.X), math.Max(math.Abs(a.Y-b.Y), math.Abs(a.Z-b.Z)))
}
