package main

import (
	"fmt"
	"log"

	"github.com/chazu/voxcast/pkg/config"
	"github.com/chazu/voxcast/pkg/engine"
	"github.com/chazu/voxcast/pkg/scene"
	"github.com/chazu/voxcast/pkg/store"
	"github.com/chazu/voxcast/pkg/store/kv"
	"github.com/chazu/voxcast/pkg/tessellate"
	"github.com/chazu/voxcast/pkg/voxel"
)

// colorPalette is a default palette used to assign distinct colors to blocks.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs scripts against a voxel world and converts the resulting scene
// to JSON-serializable data.
type App struct {
	engine *engine.Engine
	db     *kv.DB
	// Meshing turns on per-block meshes in EvalResult.
	Meshing bool
	last    *scene.Scene
}

// MeshData is the JSON-serializable mesh of one block.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// CastData is a JSON-serializable raycast and its outcome.
type CastData struct {
	Origin      [3]float64 `json:"origin"`
	Direction   [3]float64 `json:"direction"`
	MaxDistance float64    `json:"maxDistance"`
	Hit         bool       `json:"hit"`
	Position    *[3]int    `json:"position,omitempty"`
	Previous    *[3]int    `json:"previous,omitempty"`
	Distance    float64    `json:"distance,omitempty"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of evaluating a script.
type EvalResult struct {
	Casts   []CastData      `json:"casts"`
	Meshes  []MeshData      `json:"meshes"`
	Blocks  int             `json:"blocks"`
	Mesher  string          `json:"mesher"`
	Errors  []EvalErrorData `json:"errors"`
	Flushed int             `json:"flushed"`
}

// NewApp creates an App with the default configuration and an in-process
// voxel store.
func NewApp() *App {
	return NewAppWithConfig(config.Default(), nil)
}

// NewAppWithConfig creates an App from cfg. When db is non-nil every
// evaluation reads missing blocks from it and writes its edits back.
func NewAppWithConfig(cfg *config.Config, db *kv.DB) *App {
	a := &App{db: db, Meshing: true}
	newScene := func() *scene.Scene {
		opts := []store.Option{store.WithCacheBlocks(cfg.Store.CacheBlocks)}
		if db != nil {
			opts = append(opts, store.WithSource(db))
		}
		sc := scene.New(store.New(opts...))
		if cfg.Raycast.Mesher != "" {
			sc.MesherName = cfg.Raycast.Mesher
		}
		sc.Options = cfg.RaycastOptions()
		return sc
	}
	a.engine = engine.NewEngine(
		engine.WithTimeout(cfg.Engine.Timeout()),
		engine.WithKernel(cfg.Engine.Kernel()),
		engine.WithSceneFactory(newScene),
	)
	return a
}

// Evaluate takes Lisp source and returns the raycasts it performed, block
// meshes and errors.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Casts:  []CastData{},
		Meshes: []MeshData{},
		Errors: []EvalErrorData{},
	}

	// Step 1: Evaluate the Lisp source into a scene.
	sc, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	a.last = sc
	result.Mesher = sc.MesherName
	result.Blocks = sc.Store.Len()

	// Step 3: Report every raycast.
	for _, c := range sc.Casts {
		result.Casts = append(result.Casts, castData(c))
	}

	// Step 4: Write edits back to the block database.
	if a.db != nil {
		result.Flushed = len(sc.Store.DirtyBlocks())
		if err := sc.Store.Flush(a.db); err != nil {
			log.Printf("Flush error: %v", err)
			result.Errors = append(result.Errors, EvalErrorData{Message: "saving blocks failed: " + err.Error()})
			return result
		}
	}

	// Step 5: Mesh every resident block.
	if a.Meshing {
		meshes, err := meshBlocks(sc)
		if err != nil {
			log.Printf("Mesh error: %v", err)
			result.Errors = append(result.Errors, EvalErrorData{Message: "meshing failed: " + err.Error()})
			return result
		}
		result.Meshes = meshes
	}

	// Step 6: Append the kernel previews the script asked for.
	for _, m := range sc.Previews {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Name:     m.Name,
			Color:    colorPalette[len(result.Meshes)%len(colorPalette)],
		})
	}
	return result
}

// Mesh builds one mesh of [min, max) in the most recently evaluated scene.
func (a *App) Mesh(min, max voxel.Pos) (MeshData, error) {
	if a.last == nil {
		return MeshData{}, fmt.Errorf("no scene has been evaluated")
	}
	m, err := a.last.Mesh(min, max)
	if err != nil {
		return MeshData{}, err
	}
	return MeshData{
		Vertices: m.Vertices,
		Normals:  m.Normals,
		Indices:  m.Indices,
		Name:     fmt.Sprintf("%s..%s", min, max),
		Color:    colorPalette[0],
	}, nil
}

func meshBlocks(sc *scene.Scene) ([]MeshData, error) {
	meshes, err := tessellate.Tessellate(sc)
	if err != nil {
		return nil, err
	}
	out := make([]MeshData, 0, len(meshes))
	for i, m := range meshes {
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Name:     m.Name,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	return out, nil
}

func castData(c scene.Cast) CastData {
	d := CastData{
		Origin:      [3]float64{c.Ray.Origin.X, c.Ray.Origin.Y, c.Ray.Origin.Z},
		Direction:   [3]float64{c.Ray.Direction.X, c.Ray.Direction.Y, c.Ray.Direction.Z},
		MaxDistance: c.Ray.MaxDistance,
		Hit:         c.Hit,
	}
	if c.Hit {
		p, q := c.Result.Position, c.Result.PreviousPosition
		d.Position = &[3]int{p.X, p.Y, p.Z}
		d.Previous = &[3]int{q.X, q.Y, q.Z}
		d.Distance = c.Result.Distance
	}
	return d
}
