// Package blocky holds the per-type collision geometry of blocky volumes.
// A Library is edited by the caller and baked into an immutable BakedData
// snapshot that raycasts read without locking.
package blocky

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// AirID is the reserved id of empty voxels. It never has a model.
const AirID = 0

// Model describes one voxel type.
type Model struct {
	Name string
	// CollisionMask is matched against the mask requested by a raycast.
	CollisionMask uint32
	// CollisionBoxes are relative to the voxel's lower corner.
	CollisionBoxes []sdf.Box3
}

// FullCube returns a model whose single collision box fills the cell.
func FullCube(name string) Model {
	return Model{
		Name:          name,
		CollisionMask: 1,
		CollisionBoxes: []sdf.Box3{
			{Min: v3.Vec{}, Max: v3.Vec{X: 1, Y: 1, Z: 1}},
		},
	}
}

// Library is a mutable list of models indexed by voxel type id.
// It is not safe for concurrent use; bake it before sharing.
type Library struct {
	models []Model
	byName map[string]int
}

// NewLibrary returns a library containing only the air slot.
func NewLibrary() *Library {
	return &Library{
		models: []Model{{Name: "air"}},
		byName: map[string]int{"air": AirID},
	}
}

// AddModel appends a model and returns its type id.
func (l *Library) AddModel(m Model) int {
	id := len(l.models)
	l.models = append(l.models, m)
	if m.Name != "" {
		l.byName[m.Name] = id
	}
	return id
}

// Lookup returns the id of the model with the given name.
func (l *Library) Lookup(name string) (int, bool) {
	id, ok := l.byName[name]
	return id, ok
}

// Model returns the model with the given id.
func (l *Library) Model(id int) (Model, bool) {
	if id <= AirID || id >= len(l.models) {
		return Model{}, false
	}
	return l.models[id], true
}

// Len returns the number of type ids including air.
func (l *Library) Len() int {
	return len(l.models)
}

// Bake validates the library and produces an immutable snapshot.
func (l *Library) Bake() (*BakedData, error) {
	baked := &BakedData{models: make([]BakedModel, len(l.models))}
	for id, m := range l.models {
		if id == AirID {
			continue
		}
		boxes := make([]sdf.Box3, len(m.CollisionBoxes))
		for i, b := range m.CollisionBoxes {
			if b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z {
				return nil, fmt.Errorf("model %d (%s): collision box %d has negative size", id, m.Name, i)
			}
			boxes[i] = b
		}
		baked.models[id] = BakedModel{
			present:        true,
			CollisionMask:  m.CollisionMask,
			CollisionBoxes: boxes,
		}
	}
	return baked, nil
}

// BakedModel is the baked form of a Model.
type BakedModel struct {
	present        bool
	CollisionMask  uint32
	CollisionBoxes []sdf.Box3
}

// BakedData is a read-only snapshot of a Library.
type BakedData struct {
	models []BakedModel
}

// HasModel reports whether id refers to a baked model.
func (b *BakedData) HasModel(id uint64) bool {
	if b == nil {
		return false
	}
	return id < uint64(len(b.models)) && b.models[id].present
}

// Model returns the baked model for id. Call HasModel first.
func (b *BakedData) Model(id uint64) *BakedModel {
	return &b.models[id]
}

// Len returns the number of type ids in the snapshot.
func (b *BakedData) Len() int {
	if b == nil {
		return 0
	}
	return len(b.models)
}
