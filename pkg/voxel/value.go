package voxel

import (
	"fmt"
	"math"
)

type valueKind uint8

const (
	kindInt valueKind = iota
	kindFloat
)

// Value is a single voxel read: either a float (SDF channel) or an
// unsigned integer (type, color and data channels). The zero Value is
// the integer 0.
type Value struct {
	kind valueKind
	f    float64
	i    uint64
}

// Float returns a float Value.
func Float(f float64) Value {
	return Value{kind: kindFloat, f: f}
}

// Int returns an integer Value.
func Int(i uint64) Value {
	return Value{kind: kindInt, i: i}
}

// IsFloat reports whether v holds the float variant.
func (v Value) IsFloat() bool {
	return v.kind == kindFloat
}

// Float returns the value as a float. Integer values are converted.
func (v Value) Float() float64 {
	if v.kind == kindFloat {
		return v.f
	}
	return float64(v.i)
}

// Int returns the value as an integer. Float values are truncated toward
// zero; negative floats yield 0.
func (v Value) Int() uint64 {
	if v.kind == kindInt {
		return v.i
	}
	if v.f <= 0 || math.IsNaN(v.f) {
		return 0
	}
	return uint64(v.f)
}

// Bits returns the storage representation of v for a channel: IEEE bits for
// float channels, the integer itself otherwise.
func (v Value) Bits(ch Channel) uint64 {
	if ch.IsFloat() {
		return math.Float64bits(v.Float())
	}
	return v.Int()
}

// FromBits is the inverse of Value.Bits.
func FromBits(ch Channel, bits uint64) Value {
	if ch.IsFloat() {
		return Float(math.Float64frombits(bits))
	}
	return Int(bits)
}

func (v Value) String() string {
	if v.kind == kindFloat {
		return fmt.Sprintf("%g", v.f)
	}
	return fmt.Sprintf("%d", v.i)
}
