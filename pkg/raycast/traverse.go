package raycast

import (
	"math"

	"github.com/chazu/voxcast/pkg/voxel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// State is handed to a Predicate for each cell the ray enters.
type State struct {
	Position voxel.Pos
}

// Predicate decides whether the ray stops in a cell. Implementations must
// only read external state.
type Predicate interface {
	Hit(s State) bool
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(s State) bool

// Hit calls f.
func (f PredicateFunc) Hit(s State) bool {
	return f(s)
}

// Hit is the raw output of Traverse.
type Hit struct {
	Position         voxel.Pos
	PreviousPosition voxel.Pos
	// Distance is where the ray entered Position.
	Distance float64
	// PreviousDistance is where the ray entered PreviousPosition.
	PreviousDistance float64
}

// Traverse walks the unit grid cells crossed by the ray origin + t*direction
// in increasing t, calling pred once per cell, and returns the first cell
// for which pred holds. The cell containing origin is tested first, at
// distance 0. No hit is reported when maxDistance <= 0 or when the next
// boundary crossing lies beyond maxDistance.
//
// This is the incremental traversal of Amanatides and Woo: for each axis we
// track the distance of the next boundary crossing and advance along the
// axis whose crossing is nearest.
func Traverse(origin, direction v3.Vec, pred Predicate, maxDistance float64) (Hit, bool) {
	if !(maxDistance > 0) {
		return Hit{}, false
	}

	pos := voxel.FloorPos(origin)
	if pred.Hit(State{Position: pos}) {
		return Hit{Position: pos, PreviousPosition: pos}, true
	}

	stepX, deltaX, crossX := axisInit(origin.X, direction.X)
	stepY, deltaY, crossY := axisInit(origin.Y, direction.Y)
	stepZ, deltaZ, crossZ := axisInit(origin.Z, direction.Z)

	t := 0.0
	for {
		prev, tPrev := pos, t

		if crossX < crossY {
			if crossX < crossZ {
				t = crossX
				pos.X += stepX
				crossX += deltaX
			} else {
				t = crossZ
				pos.Z += stepZ
				crossZ += deltaZ
			}
		} else {
			if crossY < crossZ {
				t = crossY
				pos.Y += stepY
				crossY += deltaY
			} else {
				t = crossZ
				pos.Z += stepZ
				crossZ += deltaZ
			}
		}

		// An infinite crossing means the direction is zero on every axis.
		if t > maxDistance || math.IsInf(t, 1) {
			return Hit{}, false
		}

		if pred.Hit(State{Position: pos}) {
			return Hit{
				Position:         pos,
				PreviousPosition: prev,
				Distance:         t,
				PreviousDistance: tPrev,
			}, true
		}
	}
}

// axisInit returns the cell step, the distance between two boundary
// crossings and the distance of the first crossing along one axis.
func axisInit(o, d float64) (step int, delta, cross float64) {
	switch {
	case d > 0:
		delta = 1 / d
		return 1, delta, (math.Floor(o) + 1 - o) * delta
	case d < 0:
		delta = -1 / d
		return -1, delta, (o - math.Floor(o)) * delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}
