package main

import (
	"math"
	"os"
	"testing"
)

// TestE2EHollowBall exercises the full pipeline: Lisp source -> engine ->
// scene -> raycasts -> block meshes.
func TestE2EHollowBall(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/hollow_ball.vox")
	if err != nil {
		t.Fatalf("failed to read hollow_ball.vox: %v", err)
	}

	result := app.Evaluate(string(source))

	// No errors expected.
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	if result.Mesher != "sdf" {
		t.Errorf("expected sdf mesher, got %q", result.Mesher)
	}
	// The shell spans one block in each octant.
	if result.Blocks != 8 {
		t.Errorf("expected 8 blocks, got %d", result.Blocks)
	}
	if len(result.Casts) != 3 {
		t.Fatalf("expected 3 casts, got %d", len(result.Casts))
	}

	outside := result.Casts[0]
	if !outside.Hit || math.Abs(outside.Distance-14) > 1e-2 {
		t.Errorf("expected the outside ray to hit the shell at ~14, got %+v", outside)
	}
	if outside.Position == nil || *outside.Position != [3]int{-5, 0, 0} {
		t.Errorf("expected the outside ray to stop in cell (-5, 0, 0), got %v", outside.Position)
	}

	center := result.Casts[1]
	if !center.Hit || math.Abs(center.Distance-4) > 1e-2 {
		t.Errorf("expected the center ray to hit the inner wall at ~4, got %+v", center)
	}

	away := result.Casts[2]
	if away.Hit || away.Position != nil {
		t.Errorf("expected the ray pointing away to miss, got %+v", away)
	}

	if len(result.Meshes) == 0 || len(result.Meshes) > result.Blocks {
		t.Fatalf("expected between 1 and %d meshes, got %d", result.Blocks, len(result.Meshes))
	}
	for _, m := range result.Meshes {
		// Each mesh must have non-empty geometry.
		if len(m.Vertices) == 0 || len(m.Normals) == 0 || len(m.Indices) == 0 {
			t.Errorf("block %q: empty geometry", m.Name)
		}
		// Must have a color assigned.
		if m.Color == "" {
			t.Errorf("block %q: no color assigned", m.Name)
		}
	}
}

// TestE2EStairs runs the blocky example.
func TestE2EStairs(t *testing.T) {
	app := NewApp()
	app.Meshing = false

	source, err := os.ReadFile("examples/stairs.vox")
	if err != nil {
		t.Fatalf("failed to read stairs.vox: %v", err)
	}
	result := app.Evaluate(string(source))
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Casts) != 2 {
		t.Fatalf("expected 2 casts, got %d", len(result.Casts))
	}

	low, high := result.Casts[0], result.Casts[1]
	if !low.Hit || *low.Position != [3]int{3, 0, 1} || low.Distance != 2.5 {
		t.Errorf("expected the low ray to stop on the slab at 2.5, got %+v", low)
	}
	if !high.Hit || *high.Position != [3]int{4, 0, 1} || high.Distance != 3.5 {
		t.Errorf("expected the high ray to pass over the slab, got %+v", high)
	}
	if *high.Previous != [3]int{3, 0, 1} {
		t.Errorf("expected previous cell (3, 0, 1), got %v", *high.Previous)
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("(set-voxel (vec3 0 0 0)")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Casts) != 0 || len(result.Meshes) != 0 {
		t.Errorf("expected no output on error, got %d casts and %d meshes", len(result.Casts), len(result.Meshes))
	}
}

// TestE2ESingleVoxel ensures a single cube voxel renders one mesh.
func TestE2ESingleVoxel(t *testing.T) {
	app := NewApp()
	source := `(use-mesher :cubes) (set-voxel (vec3 1 2 3) :color 7)`
	result := app.Evaluate(source)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if got := len(result.Meshes[0].Indices) / 3; got != 12 {
		t.Errorf("expected 12 triangles for one cube, got %d", got)
	}
	if result.Meshes[0].Name != "(0, 0, 0)" {
		t.Errorf("expected block name '(0, 0, 0)', got %q", result.Meshes[0].Name)
	}
}
