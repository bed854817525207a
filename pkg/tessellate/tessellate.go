// Package tessellate walks the resident blocks of a scene and produces
// triangle meshes with the scene's mesher. One mesh is produced per block.
package tessellate

import (
	"fmt"

	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/mesher"
	"github.com/chazu/voxcast/pkg/scene"
	"github.com/chazu/voxcast/pkg/store"
	"github.com/chazu/voxcast/pkg/voxel"
)

// Tessellate meshes every resident block of sc in z, y, x order. Blocks
// that produce no geometry are skipped. Each mesh is named after its block
// position. The tessellator is read-only and never mutates the scene.
func Tessellate(sc *scene.Scene) ([]*kernel.Mesh, error) {
	if sc == nil {
		return nil, nil
	}
	m, err := sc.Mesher()
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}

	var meshes []*kernel.Mesh
	for _, bpos := range sc.Store.BlockPositions() {
		mesh, err := block(sc, m, bpos)
		if err != nil {
			return nil, err
		}
		if mesh.IsEmpty() {
			continue
		}
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// Block meshes the single block at bpos, resident or not.
func Block(sc *scene.Scene, bpos voxel.Pos) (*kernel.Mesh, error) {
	m, err := sc.Mesher()
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	return block(sc, m, bpos)
}

func block(sc *scene.Scene, m mesher.Mesher, bpos voxel.Pos) (*kernel.Mesh, error) {
	min := store.BlockOrigin(bpos)
	max := min.Add(voxel.Pos{X: store.BlockSize, Y: store.BlockSize, Z: store.BlockSize})
	mesh, err := m.Build(sc.Store, min, max)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %s mesher failed for block %s: %w", m.Name(), bpos, err)
	}
	mesh.Name = bpos.String()
	return mesh, nil
}
