package main

import (
	"strings"
	"testing"

	"github.com/chazu/voxcast/pkg/config"
	"github.com/chazu/voxcast/pkg/store/kv"
	"github.com/chazu/voxcast/pkg/voxel"
)

// ---------------------------------------------------------------------------
// 1. Empty editor: empty string -> 0 meshes, 0 casts, 0 errors.
//    (TestE2EEmptySource already exists; this verifies additional invariants.)
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for empty source, got %d", len(result.Errors))
	}
	if len(result.Casts) != 0 {
		t.Errorf("expected 0 casts for empty source, got %d", len(result.Casts))
	}
	if result.Blocks != 0 {
		t.Errorf("expected 0 blocks for empty source, got %d", result.Blocks)
	}
	// Ensure slices are non-nil (JSON should serialize as [] not null).
	if result.Meshes == nil {
		t.Error("Meshes should be non-nil empty slice, got nil")
	}
	if result.Casts == nil {
		t.Error("Casts should be non-nil empty slice, got nil")
	}
	if result.Errors == nil {
		t.Error("Errors should be non-nil empty slice, got nil")
	}
}

// ---------------------------------------------------------------------------
// 2. Syntax error mid-expression: unmatched parens -> eval error.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := NewApp()

	// Put valid code on line 1, broken code on line 2 so line info is meaningful.
	source := "(+ 1 2)\n(fill (vec3 0 0 0) (vec3 1 1 1)"
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	t.Logf("syntax error: line=%d, col=%d, message=%q", e.Line, e.Col, e.Message)
}

// ---------------------------------------------------------------------------
// 3. Undefined symbol: a model name that was never defined -> eval error.
// ---------------------------------------------------------------------------

func TestE2EUndefinedModelReference(t *testing.T) {
	app := NewApp()

	source := `
(def stone (model "stone"))
(set-voxel (vec3 0 0 0) :type granite)
`
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval error for undefined symbol")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "granite") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected error mentioning 'granite', got: %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// 4. Degenerate solids.
// ---------------------------------------------------------------------------

func TestE2EZeroRadius(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(voxelize (sphere 0))`)
	if len(result.Errors) == 0 {
		t.Error("expected error for zero radius")
	}
}

func TestE2ENegativeBoxSize(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(voxelize (box 4 -1 4))`)
	if len(result.Errors) == 0 {
		t.Error("expected error for negative box size")
	}
}

// ---------------------------------------------------------------------------
// 5. Rapid evaluation: no panics, each evaluation starts from a fresh scene.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluationAlternating(t *testing.T) {
	// Alternates between valid and invalid sources rapidly.
	// Ensures the engine recovers cleanly between error and success states.
	app := NewApp()
	app.Meshing = false

	sources := []string{
		`(set-voxel (vec3 0 0 0) :type 1)`,
		`(set-voxel (vec3 0 0 0)`,
		``,
		`(model "a") (model "a")`,
		`(fill (vec3 0 0 0) (vec3 20 1 1) :color 3)`,
		`(+ 1 2)`,
		`;; just a comment`,
		`(undefined-func 1 2 3)`,
		`(voxelize (box 2 2 2))`,
	}
	wantErr := []bool{false, true, false, true, false, false, false, true, false}
	wantBlocks := []int{1, 0, 0, 0, 2, 0, 0, 0, 8}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked on source %q: %v", i, source, r)
				}
			}()
			result := app.Evaluate(source)
			if got := len(result.Errors) > 0; got != wantErr[i] {
				t.Errorf("iteration %d: errors = %v, expected error %v", i, result.Errors, wantErr[i])
			}
			if !wantErr[i] && result.Blocks != wantBlocks[i] {
				t.Errorf("iteration %d: expected %d blocks, got %d", i, wantBlocks[i], result.Blocks)
			}
		}()
	}
}

// ---------------------------------------------------------------------------
// 6. Comments and whitespace.
// ---------------------------------------------------------------------------

func TestE2ECommentsWithWhitespace(t *testing.T) {
	app := NewApp()
	source := `
;; header comment

   ; indented comment with :keyword inside

`
	result := app.Evaluate(source)
	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for comments, got %v", result.Errors)
	}
}

func TestE2EWhitespaceOnly(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("   \n\t\n  ")
	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for whitespace, got %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// 7. Arithmetic feeding builtins.
// ---------------------------------------------------------------------------

func TestE2ENestedArithmeticDef(t *testing.T) {
	app := NewApp()
	source := `
(def r (/ (+ 4 2) 2))
(def offset (* r 10))
(voxelize (translate (sphere r) (vec3 offset 0 0)))
(raycast (vec3 0 0 0) (vec3 1 0 0) :max-distance 50)
`
	result := app.Evaluate(source)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Casts) != 1 || !result.Casts[0].Hit {
		t.Fatalf("expected one hit, got %+v", result.Casts)
	}
	// Sphere of radius 3 centered at x = 30.
	if p := *result.Casts[0].Position; p[0] < 27 || p[0] > 28 {
		t.Errorf("expected a hit near the sphere surface at x = 27, got %v", p)
	}
}

// ---------------------------------------------------------------------------
// 8. Meshing.
// ---------------------------------------------------------------------------

func TestE2EMeshingDisabled(t *testing.T) {
	app := NewApp()
	app.Meshing = false
	result := app.Evaluate(`(voxelize (sphere 3))`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected no meshes with meshing disabled, got %d", len(result.Meshes))
	}
	if result.Blocks == 0 {
		t.Error("expected blocks to be written")
	}
}

func TestE2EColorPaletteWrapping(t *testing.T) {
	app := NewApp()

	// Span more blocks than the palette has colors to ensure wrapping works.
	source := `
(use-mesher :cubes)
(fill (vec3 0 0 0) (vec3 160 1 1) :color 1)
`
	result := app.Evaluate(source)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 10 {
		t.Fatalf("expected 10 meshes, got %d", len(result.Meshes))
	}
	for _, m := range result.Meshes {
		if m.Color == "" {
			t.Errorf("mesh %q should have a color assigned (palette wrapping)", m.Name)
		}
	}
	if result.Meshes[len(colorPalette)].Color != result.Meshes[0].Color {
		t.Error("expected the palette to wrap around")
	}
}

func TestE2EPreviewUsesConfiguredKernel(t *testing.T) {
	source := `(preview (sphere 4))`

	coarse := config.Default()
	coarse.Engine.MeshCells = 8
	app := NewAppWithConfig(coarse, nil)
	app.Meshing = false
	low := app.Evaluate(source)
	if len(low.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", low.Errors)
	}
	if low.Blocks != 0 {
		t.Errorf("preview should not write blocks, got %d", low.Blocks)
	}
	if len(low.Meshes) != 1 {
		t.Fatalf("expected the preview mesh even with meshing disabled, got %d meshes", len(low.Meshes))
	}
	if low.Meshes[0].Name != "sphere 4" || low.Meshes[0].Color == "" {
		t.Errorf("preview mesh name=%q color=%q", low.Meshes[0].Name, low.Meshes[0].Color)
	}

	high := NewApp().Evaluate(source)
	if len(high.Errors) > 0 || len(high.Meshes) != 1 {
		t.Fatalf("unexpected result: %d errors, %d meshes", len(high.Errors), len(high.Meshes))
	}
	if len(low.Meshes[0].Indices) >= len(high.Meshes[0].Indices) {
		t.Errorf("mesh_cells=8 gave %d indices, default gave %d; expected fewer",
			len(low.Meshes[0].Indices), len(high.Meshes[0].Indices))
	}
}

func TestAppMeshRegion(t *testing.T) {
	app := NewApp()
	if _, err := app.Mesh(voxel.Pos{}, voxel.Pos{X: 1, Y: 1, Z: 1}); err == nil {
		t.Fatal("expected error before any evaluation")
	}

	result := app.Evaluate(`(use-mesher :cubes) (fill (vec3 0 0 0) (vec3 2 1 1) :color 1)`)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	m, err := app.Mesh(voxel.Pos{}, voxel.Pos{X: 2, Y: 1, Z: 1})
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	// Two adjacent cubes share a hidden face: 10 visible faces.
	if got := len(m.Indices) / 3; got != 20 {
		t.Errorf("expected 20 triangles, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// 9. Persistence through the block database.
// ---------------------------------------------------------------------------

func TestE2EPersistentStore(t *testing.T) {
	db, err := kv.Open(kv.Options{InMemory: true})
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	defer db.Close()

	cfg := config.Default()
	cfg.Raycast.Mesher = "cubes"
	app := NewAppWithConfig(cfg, db)
	app.Meshing = false

	first := app.Evaluate(`(set-voxel (vec3 5 0 0) :color 3)`)
	if len(first.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", first.Errors)
	}
	if first.Flushed != 1 {
		t.Errorf("expected 1 flushed block, got %d", first.Flushed)
	}

	// A later script sees the saved voxel without writing it again.
	second := app.Evaluate(`(raycast (vec3 0.5 0.5 0.5) (vec3 1 0 0))`)
	if len(second.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", second.Errors)
	}
	if second.Blocks != 0 || second.Flushed != 0 {
		t.Errorf("reading must not make blocks resident, got %d blocks, %d flushed", second.Blocks, second.Flushed)
	}
	if len(second.Casts) != 1 || !second.Casts[0].Hit || *second.Casts[0].Position != [3]int{5, 0, 0} {
		t.Errorf("expected a hit on the saved voxel, got %+v", second.Casts)
	}
}
