package raycast

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// nudgeStep is how far an endpoint moves when it sits on the wrong side
	// of the surface.
	nudgeStep = 0.5
	// nudgeAttempts bounds the endpoint adjustments.
	nudgeAttempts = 4
)

// bracket is the search interval of Refine with the field values at both ends.
type bracket struct {
	d0, d1     float64
	sdf0, sdf1 float64
}

func (b bracket) width() float64 {
	return math.Abs(b.d1 - b.d0)
}

// Refine approximates where the field sampled by s crosses zero along
// pos0 + dir*d, searching d in [0, d1], and returns that distance.
//
// The bracket endpoints are first nudged outwards (at most nudgeAttempts
// steps of nudgeStep each) so that the field is non-negative at the near end
// and non-positive at the far end. If a sign change is then established,
// iterations rounds of bisection narrow the bracket. Whichever endpoint has
// the smaller absolute field value is returned; when no sign change exists
// the result is a best effort that may lie off the surface.
//
// A negative iteration count behaves like zero.
func Refine(s Sampler, pos0, dir v3.Vec, d1 float64, iterations int) float64 {
	b := bisect(s, pos0, dir, d1, iterations)
	if math.Abs(b.sdf0) < math.Abs(b.sdf1) {
		return b.d0
	}
	return b.d1
}

func bisect(s Sampler, pos0, dir v3.Vec, d1 float64, iterations int) bracket {
	at := func(d float64) float64 {
		return s.Sample(pos0.Add(dir.MulScalar(d)))
	}

	b := bracket{d0: 0, d1: d1}

	// The coarse hit may already be slightly below the surface.
	b.sdf0 = at(b.d0)
	for i := 0; i < nudgeAttempts && b.sdf0 < 0; i++ {
		b.d0 -= nudgeStep
		b.sdf0 = at(b.d0)
	}

	b.sdf1 = at(b.d1)
	for i := 0; i < nudgeAttempts && b.sdf1 > 0; i++ {
		b.d1 += nudgeStep
		b.sdf1 = at(b.d1)
	}

	if (b.sdf0 > 0) == (b.sdf1 > 0) {
		return b
	}

	for i := 0; i < iterations; i++ {
		dm := 0.5 * (b.d0 + b.d1)
		sdfm := at(dm)
		if (sdfm > 0) != (b.sdf0 > 0) {
			b.d1, b.sdf1 = dm, sdfm
		} else {
			b.d0, b.sdf0 = dm, sdfm
		}
	}
	return b
}
