package raycast

import (
	"math"
	"testing"

	"github.com/chazu/voxcast/pkg/voxel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// plane is positive before x = at and negative after it.
func plane(at float64) Sampler {
	return SamplerFunc(func(p v3.Vec) float64 { return at - p.X })
}

var xAxis = v3.Vec{X: 1}

func TestRefineFindsPlane(t *testing.T) {
	d := Refine(plane(0.3), v3.Vec{}, xAxis, 1, 24)
	if math.Abs(d-0.3) > 1e-6 {
		t.Errorf("Refine = %f, expected ~0.3", d)
	}
}

func TestRefineBracketHalvesEachIteration(t *testing.T) {
	for n := 0; n <= 10; n++ {
		b := bisect(plane(0.3), v3.Vec{}, xAxis, 1, n)
		want := 1 / math.Pow(2, float64(n))
		if math.Abs(b.width()-want) > 1e-12 {
			t.Errorf("after %d iterations width = %g, expected %g", n, b.width(), want)
		}
		if b.sdf0 < 0 || b.sdf1 > 0 {
			t.Errorf("after %d iterations bracket lost its sign change: %+v", n, b)
		}
	}
}

func TestRefineIsFixedPoint(t *testing.T) {
	s := plane(0.37)
	pos0 := v3.Vec{X: -2, Y: 1}
	d := Refine(s, pos0, xAxis, 3, 30)

	again := d + Refine(s, pos0.Add(xAxis.MulScalar(d)), xAxis, 0, 30)
	if math.Abs(again-d) > 1e-6 {
		t.Errorf("refining the result moved it from %f to %f", d, again)
	}
}

func TestRefineNudgesEndpoints(t *testing.T) {
	// The surface at x=1.8 lies beyond the initial bracket [0, 1].
	b := bisect(plane(1.8), v3.Vec{}, xAxis, 1, 0)
	if b.d1 != 2 {
		t.Errorf("far end nudged to %f, expected 2", b.d1)
	}

	// The near end starts inside the surface at x=-0.7.
	b = bisect(plane(-0.7), v3.Vec{}, xAxis, 1, 0)
	if b.d0 != -1 {
		t.Errorf("near end nudged to %f, expected -1", b.d0)
	}
}

func TestRefineWithoutSignChange(t *testing.T) {
	// Entirely outside: nudging gives up after four attempts and no
	// bisection happens.
	calls := 0
	s := SamplerFunc(func(p v3.Vec) float64 {
		calls++
		return 1 + p.X
	})
	d := Refine(s, v3.Vec{}, xAxis, 1, 50)
	if d != 0 {
		t.Errorf("Refine = %f, expected the near endpoint 0", d)
	}
	// 1 near sample, 1 far sample, 4 far nudges.
	if calls != 6 {
		t.Errorf("sampled %d times, expected 6", calls)
	}
}

func TestRefineNegativeIterations(t *testing.T) {
	d := Refine(plane(0.3), v3.Vec{}, xAxis, 1, -3)
	if d != 0 {
		t.Errorf("Refine = %f, expected the unrefined near endpoint", d)
	}
}

func TestTrilinearInterpolatesCorners(t *testing.T) {
	cells := cellFunc(func(p voxel.Pos) float64 {
		return float64(p.X + 10*p.Y + 100*p.Z)
	})
	tri := Trilinear{Cells: cells}

	// A linear field is reproduced exactly.
	p := v3.Vec{X: 2.25, Y: -1.5, Z: 0.75}
	want := 2.25 + 10*(-1.5) + 100*0.75
	if got := tri.Sample(p); math.Abs(got-want) > 1e-9 {
		t.Errorf("Sample(%v) = %f, expected %f", p, got, want)
	}
	if got := tri.Sample(v3.Vec{X: 3, Y: 1, Z: 2}); got != 213 {
		t.Errorf("corner sample = %f, expected 213", got)
	}
}

type cellFunc func(p voxel.Pos) float64

func (f cellFunc) SampleCell(p voxel.Pos) float64 {
	return f(p)
}
