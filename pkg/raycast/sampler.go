package raycast

import (
	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sampler evaluates a scalar field at an arbitrary position.
type Sampler interface {
	Sample(p v3.Vec) float64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(p v3.Vec) float64

// Sample calls f.
func (f SamplerFunc) Sample(p v3.Vec) float64 {
	return f(p)
}

// CellSampler evaluates a scalar field at grid corners.
type CellSampler interface {
	SampleCell(p voxel.Pos) float64
}

// VolumeSDF reads the SDF channel of a volume, substituting
// voxel.SDFFarOutside where the volume has no data.
type VolumeSDF struct {
	Volume voxel.Volume
}

// SampleCell returns the SDF value stored at p.
func (s VolumeSDF) SampleCell(p voxel.Pos) float64 {
	return s.Volume.GetVoxel(p, voxel.ChannelSDF, voxel.Float(voxel.SDFFarOutside)).Float()
}

// Trilinear interpolates a CellSampler between the eight grid corners
// surrounding a position.
type Trilinear struct {
	Cells CellSampler
}

// Sample returns the interpolated field value at p.
func (t Trilinear) Sample(p v3.Vec) float64 {
	c := voxel.FloorPos(p)
	fx := p.X - float64(c.X)
	fy := p.Y - float64(c.Y)
	fz := p.Z - float64(c.Z)

	s000 := t.Cells.SampleCell(c)
	s100 := t.Cells.SampleCell(voxel.Pos{X: c.X + 1, Y: c.Y, Z: c.Z})
	s010 := t.Cells.SampleCell(voxel.Pos{X: c.X, Y: c.Y + 1, Z: c.Z})
	s110 := t.Cells.SampleCell(voxel.Pos{X: c.X + 1, Y: c.Y + 1, Z: c.Z})
	s001 := t.Cells.SampleCell(voxel.Pos{X: c.X, Y: c.Y, Z: c.Z + 1})
	s101 := t.Cells.SampleCell(voxel.Pos{X: c.X + 1, Y: c.Y, Z: c.Z + 1})
	s011 := t.Cells.SampleCell(voxel.Pos{X: c.X, Y: c.Y + 1, Z: c.Z + 1})
	s111 := t.Cells.SampleCell(voxel.Pos{X: c.X + 1, Y: c.Y + 1, Z: c.Z + 1})

	x00 := lerp(s000, s100, fx)
	x10 := lerp(s010, s110, fx)
	x01 := lerp(s001, s101, fx)
	x11 := lerp(s011, s111, fx)

	return lerp(lerp(x00, x10, fy), lerp(x01, x11, fy), fz)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Bounded exposes the interpolated field as an sdfx solid limited to box,
// so it can be handed to sdfx renderers.
func (t Trilinear) Bounded(box sdf.Box3) sdf.SDF3 {
	return &boundedField{field: t, box: box}
}

// Compile-time interface check.
var _ sdf.SDF3 = (*boundedField)(nil)

type boundedField struct {
	field Trilinear
	box   sdf.Box3
}

func (b *boundedField) Evaluate(p v3.Vec) float64 {
	return b.field.Sample(p)
}

func (b *boundedField) BoundingBox() sdf.Box3 {
	return b.box
}
