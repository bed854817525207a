// Package voxel defines the value types shared by the voxel store, the
// meshers and the raycast core: integer grid positions, channels, tagged
// voxel values and the Volume read interface.
package voxel

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SDFFarOutside is the SDF value assumed where a volume has no data.
// It represents empty space far from any surface.
const SDFFarOutside = 32767.0

// Pos is an integer coordinate in the voxel grid.
type Pos struct {
	X, Y, Z int
}

// Add returns p + q.
func (p Pos) Add(q Pos) Pos {
	return Pos{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub returns p - q.
func (p Pos) Sub(q Pos) Pos {
	return Pos{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Vec converts the position to a float vector at the cell's lower corner.
func (p Pos) Vec() v3.Vec {
	return v3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// FloorPos returns the cell containing v.
func FloorPos(v v3.Vec) Pos {
	return Pos{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Channel identifies a per-voxel attribute.
type Channel uint8

const (
	ChannelType    Channel = iota // blocky model id
	ChannelSDF                    // signed distance
	ChannelColor                  // packed color, used by cubes volumes
	ChannelIndices                // texture indices
	ChannelWeights                // texture weights
	ChannelData5
	ChannelData6
	ChannelData7
)

// ChannelCount is the number of channels a volume can carry.
const ChannelCount = 8

func (c Channel) String() string {
	switch c {
	case ChannelType:
		return "type"
	case ChannelSDF:
		return "sdf"
	case ChannelColor:
		return "color"
	case ChannelIndices:
		return "indices"
	case ChannelWeights:
		return "weights"
	case ChannelData5:
		return "data5"
	case ChannelData6:
		return "data6"
	case ChannelData7:
		return "data7"
	default:
		return "unknown"
	}
}

// IsFloat reports whether the channel holds floating point values.
func (c Channel) IsFloat() bool {
	return c == ChannelSDF
}

// ParseChannel converts a channel name as produced by Channel.String.
func ParseChannel(name string) (Channel, error) {
	for c := Channel(0); c < ChannelCount; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Volume is a read-only view of voxel data.
//
// GetVoxel must be defined for every coordinate, returning def where no data
// exists. Implementations used by concurrent raycasts must be safe for
// concurrent readers.
type Volume interface {
	GetVoxel(pos Pos, ch Channel, def Value) Value
}

// VolumeFunc adapts a function to the Volume interface.
type VolumeFunc func(pos Pos, ch Channel, def Value) Value

// GetVoxel calls f.
func (f VolumeFunc) GetVoxel(pos Pos, ch Channel, def Value) Value {
	return f(pos, ch, def)
}

// Empty is a Volume with no data anywhere.
var Empty Volume = VolumeFunc(func(_ Pos, _ Channel, def Value) Value {
	return def
})
