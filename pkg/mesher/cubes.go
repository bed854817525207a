package mesher

import (
	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/raycast"
	"github.com/chazu/voxcast/pkg/voxel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	_ Mesher              = (*Cubes)(nil)
	_ raycast.CubesMesher = (*Cubes)(nil)
)

// Cubes meshes every voxel with a nonzero value in Channel as a unit cube.
// Faces shared by two filled voxels are skipped.
type Cubes struct {
	Channel voxel.Channel
}

// NewCubes returns a Cubes mesher reading the color channel.
func NewCubes() *Cubes {
	return &Cubes{Channel: voxel.ChannelColor}
}

// ColorChannel returns the channel that marks filled voxels.
func (m *Cubes) ColorChannel() voxel.Channel { return m.Channel }

func (m *Cubes) Name() string { return "cubes" }

// cubeFace is one side of a unit cube: the neighbor it faces and its
// corners in counter-clockwise order seen from outside.
type cubeFace struct {
	neighbor voxel.Pos
	corners  [4]v3.Vec
}

var cubeFaces = [6]cubeFace{
	{voxel.Pos{X: -1}, [4]v3.Vec{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{voxel.Pos{X: 1}, [4]v3.Vec{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{voxel.Pos{Y: -1}, [4]v3.Vec{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{voxel.Pos{Y: 1}, [4]v3.Vec{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{voxel.Pos{Z: -1}, [4]v3.Vec{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
	{voxel.Pos{Z: 1}, [4]v3.Vec{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
}

// Build emits the exposed faces of the filled voxels in [min, max).
// Neighbors outside the region count as filled when the volume says so.
func (m *Cubes) Build(vol voxel.Volume, min, max voxel.Pos) (*kernel.Mesh, error) {
	if err := checkRegion(min, max); err != nil {
		return nil, err
	}
	filled := func(p voxel.Pos) bool {
		return vol.GetVoxel(p, m.Channel, voxel.Int(0)).Int() != 0
	}
	mesh := &kernel.Mesh{Name: m.Name()}
	forEach(min, max, func(p voxel.Pos) {
		if !filled(p) {
			return
		}
		corner := p.Vec()
		for _, f := range cubeFaces {
			if filled(p.Add(f.neighbor)) {
				continue
			}
			mesh.AddQuad(corner.Add(f.corners[0]), corner.Add(f.corners[1]),
				corner.Add(f.corners[2]), corner.Add(f.corners[3]))
		}
	})
	return mesh, nil
}
