// Package raycast finds the first voxel hit by a ray in a volume.
//
// A grid traversal (Traverse) walks the cells crossed by the ray and asks a
// Predicate whether each one is solid. Three predicates cover the supported
// volume kinds: SDF sign, blocky collision boxes and nonzero channel values.
// For SDF volumes the coarse cell hit can be refined to sub-voxel precision
// by bisection on the trilinearly interpolated field (Refine).
//
// All entry points are synchronous and only read the volume. They are safe
// to call concurrently when the volume's GetVoxel is.
package raycast

import (
	"math"

	"github.com/chazu/voxcast/pkg/blocky"
	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// degenerateSegmentSq is the smallest squared local-space ray length
// GenericWorld will cast.
const degenerateSegmentSq = 1e-6

// sdfCenterOffset shifts SDF rays so that cells line up with the
// interpolated surface. Interpolated matter is centered on a voxel's lower
// corner and extends half a unit in every direction.
var sdfCenterOffset = v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}

// Ray is a half-line segment. Direction need not be normalized; distances
// are measured in multiples of its length.
type Ray struct {
	Origin      v3.Vec
	Direction   v3.Vec
	MaxDistance float64
}

// End returns the far endpoint of the ray.
func (r Ray) End() v3.Vec {
	return r.Origin.Add(r.Direction.MulScalar(r.MaxDistance))
}

// Result describes a hit.
type Result struct {
	Position voxel.Pos
	// PreviousPosition is the cell the ray was in before entering Position.
	// It equals Position when the ray starts inside a solid cell.
	PreviousPosition voxel.Pos
	Distance         float64
}

// Options tune Generic and GenericWorld.
type Options struct {
	// CollisionMask filters blocky models by their collision mask.
	CollisionMask uint32
	// BinarySearchIterations refines SDF hits when positive.
	BinarySearchIterations int
}

// DefaultOptions matches every collision layer and does not refine.
func DefaultOptions() Options {
	return Options{CollisionMask: math.MaxUint32}
}

// SDF casts a ray against the SDF channel of vol. When iterations > 0 the
// distance is refined by bisection between the last empty cell and the hit.
func SDF(vol voxel.Volume, ray Ray, iterations int) (Result, bool) {
	hit, ok := Traverse(ray.Origin.Add(sdfCenterOffset), ray.Direction, SDFPredicate{Volume: vol}, ray.MaxDistance)
	if !ok {
		return Result{}, false
	}

	d := hit.Distance
	if iterations > 0 {
		sampler := Trilinear{Cells: VolumeSDF{Volume: vol}}
		pos0 := ray.Origin.Add(ray.Direction.MulScalar(hit.PreviousDistance))
		d = hit.PreviousDistance + Refine(sampler, pos0, ray.Direction, hit.Distance-hit.PreviousDistance, iterations)
	}

	return Result{
		Position:         hit.Position,
		PreviousPosition: hit.PreviousPosition,
		Distance:         d,
	}, true
}

// Blocky casts a ray against the collision boxes of the models stored in
// the type channel of vol. A nil baked library never hits.
func Blocky(vol voxel.Volume, baked *blocky.BakedData, ray Ray, collisionMask uint32) (Result, bool) {
	if baked == nil {
		return Result{}, false
	}
	pred := BlockyPredicate{
		Volume:        vol,
		Baked:         baked,
		CollisionMask: collisionMask,
		From:          ray.Origin,
		To:            ray.End(),
	}
	return fromHit(Traverse(ray.Origin, ray.Direction, pred, ray.MaxDistance))
}

// Nonzero casts a ray that stops at the first cell where ch is not zero.
func Nonzero(vol voxel.Volume, ray Ray, ch voxel.Channel) (Result, bool) {
	pred := NonzeroPredicate{Volume: vol, Channel: ch}
	return fromHit(Traverse(ray.Origin, ray.Direction, pred, ray.MaxDistance))
}

func fromHit(hit Hit, ok bool) (Result, bool) {
	if !ok {
		return Result{}, false
	}
	return Result{
		Position:         hit.Position,
		PreviousPosition: hit.PreviousPosition,
		Distance:         hit.Distance,
	}, true
}

// BlockyMesher is implemented by meshing strategies backed by a blocky
// model library. BakedLibrary may return nil when no library is set.
type BlockyMesher interface {
	BakedLibrary() *blocky.BakedData
}

// CubesMesher is implemented by meshing strategies that render one colored
// cube per nonzero voxel.
type CubesMesher interface {
	ColorChannel() voxel.Channel
}

// Generic picks the raycast matching the capabilities of mesher: blocky
// collision for a BlockyMesher, nonzero color for a CubesMesher, and SDF
// for anything else, including nil.
func Generic(vol voxel.Volume, mesher any, ray Ray, opts Options) (Result, bool) {
	switch m := mesher.(type) {
	case BlockyMesher:
		return Blocky(vol, m.BakedLibrary(), ray, opts.CollisionMask)
	case CubesMesher:
		return Nonzero(vol, ray, m.ColorChannel())
	default:
		return SDF(vol, ray, opts.BinarySearchIterations)
	}
}

// GenericWorld casts a world-space ray against a volume placed in the world
// by toWorld. The ray is converted to the volume's local space, cast with
// Generic, and the hit distance scaled back to world units.
//
// The scale factor is the ratio of the squared world and local segment
// lengths. It is exact for identity transforms only; under scaling it is an
// approximation that callers should not rely on beyond ordering hits.
func GenericWorld(vol voxel.Volume, mesher any, toWorld sdf.M44, ray Ray, opts Options) (Result, bool) {
	endWorld := ray.End()
	toLocal := toWorld.Inverse()

	p0 := toLocal.MulPosition(ray.Origin)
	p1 := toLocal.MulPosition(endWorld)

	span := p1.Sub(p0)
	localSq := span.Dot(span)
	if localSq < degenerateSegmentSq {
		return Result{}, false
	}
	localMax := math.Sqrt(localSq)

	local := Ray{
		Origin:      p0,
		Direction:   span.MulScalar(1 / localMax),
		MaxDistance: localMax,
	}
	res, ok := Generic(vol, mesher, local, opts)
	if !ok {
		return Result{}, false
	}

	worldSpan := endWorld.Sub(ray.Origin)
	res.Distance *= worldSpan.Dot(worldSpan) / localSq
	return res, true
}
