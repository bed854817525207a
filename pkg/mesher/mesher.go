// Package mesher holds the strategies that turn voxel data into triangle
// meshes. The raycaster dispatches on the same values: a Blocky mesher casts
// against collision boxes, Cubes against a nonzero channel and SDF against
// the interpolated distance field.
package mesher

import (
	"fmt"

	"github.com/chazu/voxcast/pkg/blocky"
	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/voxel"
)

// Mesher builds a mesh for the voxels in [min, max).
type Mesher interface {
	Name() string
	Build(vol voxel.Volume, min, max voxel.Pos) (*kernel.Mesh, error)
}

// MaxBuildCells bounds the region a single Build call may cover.
const MaxBuildCells = 1 << 22

// ByName returns the mesher called name. lib is required for "blocky".
func ByName(name string, lib *blocky.Library) (Mesher, error) {
	switch name {
	case "", "sdf":
		return NewSDF(), nil
	case "cubes":
		return NewCubes(), nil
	case "blocky":
		if lib == nil {
			return nil, fmt.Errorf("mesher %q needs a model library", name)
		}
		return NewBlocky(lib)
	}
	return nil, fmt.Errorf("unknown mesher %q, expected sdf, cubes or blocky", name)
}

// checkRegion validates a Build region.
func checkRegion(min, max voxel.Pos) error {
	size := max.Sub(min)
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return fmt.Errorf("empty region %v to %v", min, max)
	}
	if cells := float64(size.X) * float64(size.Y) * float64(size.Z); cells > MaxBuildCells {
		return fmt.Errorf("region %v to %v is %.0f cells, limit is %d", min, max, cells, MaxBuildCells)
	}
	return nil
}

// forEach calls fn for every position in [min, max).
func forEach(min, max voxel.Pos, fn func(p voxel.Pos)) {
	for z := min.Z; z < max.Z; z++ {
		for y := min.Y; y < max.Y; y++ {
			for x := min.X; x < max.X; x++ {
				fn(voxel.Pos{X: x, Y: y, Z: z})
			}
		}
	}
}
