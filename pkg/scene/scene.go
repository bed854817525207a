// Package scene is the result of evaluating a script: a voxel store, the
// blocky models it refers to, the chosen mesher, the volume's placement in
// the world, and every raycast the script performed.
package scene

import (
	"fmt"

	"github.com/chazu/voxcast/pkg/blocky"
	"github.com/chazu/voxcast/pkg/kernel"
	"github.com/chazu/voxcast/pkg/mesher"
	"github.com/chazu/voxcast/pkg/raycast"
	"github.com/chazu/voxcast/pkg/store"
	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/deadsy/sdfx/sdf"
)

// Cast records one raycast and its outcome.
type Cast struct {
	Ray     raycast.Ray
	Options raycast.Options
	Result  raycast.Result
	Hit     bool
}

// Scene is not safe for concurrent mutation.
type Scene struct {
	Store   *store.Store
	Library *blocky.Library
	// MesherName selects the mesher, see mesher.ByName.
	MesherName string
	// ToWorld places the volume in world space.
	ToWorld sdf.M44
	// Options are used by Cast.
	Options raycast.Options
	Casts   []Cast
	// Previews are solids tessellated directly by the kernel.
	Previews []*kernel.Mesh
}

// New returns an empty scene over s. A nil s gets a fresh in-memory store.
func New(s *store.Store) *Scene {
	if s == nil {
		s = store.New()
	}
	return &Scene{
		Store:      s,
		Library:    blocky.NewLibrary(),
		MesherName: "sdf",
		ToWorld:    sdf.Identity3d(),
		Options:    raycast.DefaultOptions(),
	}
}

// Mesher builds the selected mesher against the current library.
func (sc *Scene) Mesher() (mesher.Mesher, error) {
	return mesher.ByName(sc.MesherName, sc.Library)
}

// SetMesher selects a mesher by name, failing if it cannot be built.
func (sc *Scene) SetMesher(name string) error {
	if _, err := mesher.ByName(name, sc.Library); err != nil {
		return err
	}
	sc.MesherName = name
	return nil
}

// Cast casts a world-space ray with the scene options and records it.
func (sc *Scene) Cast(ray raycast.Ray) (Cast, error) {
	return sc.CastWith(ray, sc.Options)
}

// CastWith casts a world-space ray with opts and records it.
func (sc *Scene) CastWith(ray raycast.Ray, opts raycast.Options) (Cast, error) {
	m, err := sc.Mesher()
	if err != nil {
		return Cast{}, fmt.Errorf("raycast: %w", err)
	}
	res, ok := raycast.GenericWorld(sc.Store, m, sc.ToWorld, ray, opts)
	c := Cast{Ray: ray, Options: opts, Result: res, Hit: ok}
	sc.Casts = append(sc.Casts, c)
	return c, nil
}

// Bounds returns the voxel range covered by resident blocks, with max
// exclusive. ok is false for an empty store.
func (sc *Scene) Bounds() (min, max voxel.Pos, ok bool) {
	positions := sc.Store.BlockPositions()
	if len(positions) == 0 {
		return voxel.Pos{}, voxel.Pos{}, false
	}
	lo, hi := positions[0], positions[0]
	for _, p := range positions[1:] {
		lo = voxel.Pos{X: minInt(lo.X, p.X), Y: minInt(lo.Y, p.Y), Z: minInt(lo.Z, p.Z)}
		hi = voxel.Pos{X: maxInt(hi.X, p.X), Y: maxInt(hi.Y, p.Y), Z: maxInt(hi.Z, p.Z)}
	}
	one := voxel.Pos{X: 1, Y: 1, Z: 1}
	return store.BlockOrigin(lo), store.BlockOrigin(hi.Add(one)), true
}

// Mesh builds a mesh of [min, max) with the selected mesher.
func (sc *Scene) Mesh(min, max voxel.Pos) (*kernel.Mesh, error) {
	m, err := sc.Mesher()
	if err != nil {
		return nil, err
	}
	return m.Build(sc.Store, min, max)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
