package mesher

import (
	"fmt"

	"github.com/chazu/voxcast/pkg/blocky"
	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/raycast"
	"github.com/chazu/voxcast/pkg/voxel"
)

var (
	_ Mesher               = (*Blocky)(nil)
	_ raycast.BlockyMesher = (*Blocky)(nil)
)

// Blocky meshes the collision boxes of the model in each voxel's type
// channel.
type Blocky struct {
	baked *blocky.BakedData
}

// NewBlocky bakes lib into a mesher.
func NewBlocky(lib *blocky.Library) (*Blocky, error) {
	baked, err := lib.Bake()
	if err != nil {
		return nil, fmt.Errorf("blocky mesher: %w", err)
	}
	return &Blocky{baked: baked}, nil
}

// BakedLibrary returns the baked models, or nil for a nil mesher.
func (m *Blocky) BakedLibrary() *blocky.BakedData {
	if m == nil {
		return nil
	}
	return m.baked
}

func (m *Blocky) Name() string { return "blocky" }

// Build adds one box per collision box of every voxel with a model.
func (m *Blocky) Build(vol voxel.Volume, min, max voxel.Pos) (*kernel.Mesh, error) {
	if err := checkRegion(min, max); err != nil {
		return nil, err
	}
	mesh := &kernel.Mesh{Name: m.Name()}
	forEach(min, max, func(p voxel.Pos) {
		id := vol.GetVoxel(p, voxel.ChannelType, voxel.Int(blocky.AirID)).Int()
		if !m.BakedLibrary().HasModel(id) {
			return
		}
		corner := p.Vec()
		for _, box := range m.baked.Model(id).CollisionBoxes {
			mesh.AddBox(corner.Add(box.Min), corner.Add(box.Max))
		}
	})
	return mesh, nil
}
