package mesher

import (
	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/kernel/sdfx"
	"github.com/chazu/voxcast/pkg/raycast"
	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/deadsy/sdfx/sdf"
)

var _ Mesher = (*SDF)(nil)

// SDF extracts the zero isosurface of the interpolated SDF channel with
// marching cubes.
type SDF struct {
	// CellsPerVoxel sets the marching cubes resolution. Zero means one.
	CellsPerVoxel int
}

// NewSDF returns an SDF mesher sampling once per voxel.
func NewSDF() *SDF {
	return &SDF{CellsPerVoxel: 1}
}

func (m *SDF) Name() string { return "sdf" }

// Build meshes the surface inside [min, max]. Vertices are in voxel
// coordinates, with each SDF value located at its cell's lower corner.
func (m *SDF) Build(vol voxel.Volume, min, max voxel.Pos) (*kernel.Mesh, error) {
	if err := checkRegion(min, max); err != nil {
		return nil, err
	}
	field := raycast.Trilinear{Cells: raycast.VolumeSDF{Volume: vol}}.
		Bounded(sdf.Box3{Min: min.Vec(), Max: max.Vec()})

	size := max.Sub(min)
	longest := size.X
	if size.Y > longest {
		longest = size.Y
	}
	if size.Z > longest {
		longest = size.Z
	}
	per := m.CellsPerVoxel
	if per <= 0 {
		per = 1
	}
	mesh := sdfx.Mesh(field, longest*per)
	mesh.Name = m.Name()
	return mesh, nil
}
