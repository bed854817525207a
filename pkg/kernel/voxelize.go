package kernel

import (
	"fmt"
	"math"

	"github.com/chazu/voxcast/pkg/voxel"
)

// MaxVoxelizeCells bounds the number of samples a single Voxelize call may
// take.
const MaxVoxelizeCells = 1 << 24

// Writer is a volume that can be written voxel by voxel.
type Writer interface {
	voxel.Volume
	SetVoxel(p voxel.Pos, ch voxel.Channel, v voxel.Value) error
}

// Voxelize samples s at every integer position of its bounding box, grown by
// margin cells on each side, and unions it into dst. The SDF channel keeps
// the smaller of the existing and sampled distance; voxels with a negative
// distance to s get typeID in the type channel. It returns the number of
// voxels found inside s.
func Voxelize(s Solid, dst Writer, margin int, typeID uint64) (int, error) {
	if margin < 0 {
		return 0, fmt.Errorf("voxelize: negative margin %d", margin)
	}
	bmin, bmax := s.BoundingBox()
	var lo, hi voxel.Pos
	for i, c := range [3]*int{&lo.X, &lo.Y, &lo.Z} {
		*c = int(math.Floor(bmin[i])) - margin
	}
	for i, c := range [3]*int{&hi.X, &hi.Y, &hi.Z} {
		*c = int(math.Ceil(bmax[i])) + margin
	}
	cells := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1) * float64(hi.Z-lo.Z+1)
	if cells > MaxVoxelizeCells {
		return 0, fmt.Errorf("voxelize: %v to %v is %.0f cells, limit is %d", lo, hi, cells, MaxVoxelizeCells)
	}

	far := voxel.Float(voxel.SDFFarOutside)
	inside := 0
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				p := voxel.Pos{X: x, Y: y, Z: z}
				sample := s.Evaluate(p.Vec())
				d := sample
				if prev := dst.GetVoxel(p, voxel.ChannelSDF, far).Float(); prev < d {
					d = prev
				}
				if err := dst.SetVoxel(p, voxel.ChannelSDF, voxel.Float(d)); err != nil {
					return inside, fmt.Errorf("voxelize at %v: %w", p, err)
				}
				if sample < 0 {
					inside++
					if err := dst.SetVoxel(p, voxel.ChannelType, voxel.Int(typeID)); err != nil {
						return inside, fmt.Errorf("voxelize at %v: %w", p, err)
					}
				}
			}
		}
	}
	return inside, nil
}
