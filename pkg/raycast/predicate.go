package raycast

import (
	"github.com/chazu/voxcast/pkg/blocky"
	"github.com/chazu/voxcast/pkg/voxel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ Predicate = SDFPredicate{}
	_ Predicate = BlockyPredicate{}
	_ Predicate = NonzeroPredicate{}
)

// SDFPredicate stops in cells whose SDF value is negative.
type SDFPredicate struct {
	Volume voxel.Volume
}

// Hit reports whether the cell is inside the surface.
func (p SDFPredicate) Hit(s State) bool {
	v := p.Volume.GetVoxel(s.Position, voxel.ChannelSDF, voxel.Float(voxel.SDFFarOutside))
	return v.Float() < 0
}

// BlockyPredicate stops in cells whose model has a collision box crossed by
// the segment From-To. Note the whole segment is tested, not only the part
// of it inside the cell.
type BlockyPredicate struct {
	Volume        voxel.Volume
	Baked         *blocky.BakedData
	CollisionMask uint32
	From, To      v3.Vec
}

// Hit reports whether the cell's collision geometry blocks the ray.
func (p BlockyPredicate) Hit(s State) bool {
	id := p.Volume.GetVoxel(s.Position, voxel.ChannelType, voxel.Int(blocky.AirID)).Int()
	if !p.Baked.HasModel(id) {
		return false
	}
	model := p.Baked.Model(id)
	if model.CollisionMask&p.CollisionMask == 0 {
		return false
	}
	offset := s.Position.Vec()
	for _, box := range model.CollisionBoxes {
		if segmentIntersectsBox(p.From, p.To, box.Min.Add(offset), box.Max.Add(offset)) {
			return true
		}
	}
	return false
}

// NonzeroPredicate stops in cells where an integer channel is not zero.
type NonzeroPredicate struct {
	Volume  voxel.Volume
	Channel voxel.Channel
}

// Hit reports whether the channel value is nonzero.
func (p NonzeroPredicate) Hit(s State) bool {
	return p.Volume.GetVoxel(s.Position, p.Channel, voxel.Int(0)).Int() != 0
}

// segmentIntersectsBox clips the segment from-to against the box slabs.
// Touching a face counts as an intersection.
func segmentIntersectsBox(from, to, min, max v3.Vec) bool {
	tMin, tMax := 0.0, 1.0
	for axis := 0; axis < 3; axis++ {
		segFrom, segTo := component(from, axis), component(to, axis)
		boxBegin, boxEnd := component(min, axis), component(max, axis)
		length := segTo - segFrom

		var cMin, cMax float64
		if segFrom < segTo {
			if segFrom > boxEnd || segTo < boxBegin {
				return false
			}
			cMin, cMax = 0, 1
			if segFrom < boxBegin {
				cMin = (boxBegin - segFrom) / length
			}
			if segTo > boxEnd {
				cMax = (boxEnd - segFrom) / length
			}
		} else {
			if segTo > boxEnd || segFrom < boxBegin {
				return false
			}
			cMin, cMax = 0, 1
			if segFrom > boxEnd {
				cMin = (boxEnd - segFrom) / length
			}
			if segTo < boxBegin {
				cMax = (boxBegin - segFrom) / length
			}
		}

		if cMin > tMin {
			tMin = cMin
		}
		if cMax < tMax {
			tMax = cMax
		}
		if tMax < tMin {
			return false
		}
	}
	return true
}

func component(v v3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
