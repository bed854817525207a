// Package store is a chunked in-memory voxel volume. Voxels are grouped in
// cubic blocks that are allocated on first write, and blocks missing from
// memory can be loaded lazily from a Source such as the badger-backed kv.DB.
package store

import (
	"github.com/chazu/voxcast/pkg/voxel"
)

const (
	// BlockShift is log2 of the block edge length.
	BlockShift = 4
	// BlockSize is the block edge length in voxels.
	BlockSize = 1 << BlockShift
	// BlockVolume is the number of voxels in a block.
	BlockVolume = BlockSize * BlockSize * BlockSize

	blockMask = BlockSize - 1
)

// Block holds the voxels of one BlockSize³ region. Channels are allocated on
// first write; an unallocated channel reads as its default value.
// Float channels store IEEE bits.
type Block struct {
	channels [voxel.ChannelCount][]uint64
}

// NewBlock returns an empty block.
func NewBlock() *Block {
	return &Block{}
}

// BlockPos returns the position of the block containing p.
func BlockPos(p voxel.Pos) voxel.Pos {
	return voxel.Pos{X: p.X >> BlockShift, Y: p.Y >> BlockShift, Z: p.Z >> BlockShift}
}

// BlockOrigin returns the voxel position of a block's lower corner.
func BlockOrigin(bpos voxel.Pos) voxel.Pos {
	return voxel.Pos{X: bpos.X << BlockShift, Y: bpos.Y << BlockShift, Z: bpos.Z << BlockShift}
}

// index returns the offset of voxel p inside its block.
func index(p voxel.Pos) int {
	return (p.X & blockMask) | (p.Y&blockMask)<<BlockShift | (p.Z&blockMask)<<(2*BlockShift)
}

// Get returns the value at p, which may be any position inside the block,
// or def if the channel was never written or does not exist.
func (b *Block) Get(p voxel.Pos, ch voxel.Channel, def voxel.Value) voxel.Value {
	if ch >= voxel.ChannelCount {
		return def
	}
	data := b.channels[ch]
	if data == nil {
		return def
	}
	return voxel.FromBits(ch, data[index(p)])
}

// Set stores v at p. The first write to a channel fills it with the
// channel's zero value: SDFFarOutside for the SDF channel, 0 otherwise.
// Writes to a channel past ChannelCount are dropped.
func (b *Block) Set(p voxel.Pos, ch voxel.Channel, v voxel.Value) {
	if ch >= voxel.ChannelCount {
		return
	}
	if b.channels[ch] == nil {
		b.channels[ch] = newChannel(ch)
	}
	b.channels[ch][index(p)] = v.Bits(ch)
}

// HasChannel reports whether ch was written.
func (b *Block) HasChannel(ch voxel.Channel) bool {
	return ch < voxel.ChannelCount && b.channels[ch] != nil
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	c := &Block{}
	for ch, data := range b.channels {
		if data != nil {
			c.channels[ch] = append([]uint64(nil), data...)
		}
	}
	return c
}

func newChannel(ch voxel.Channel) []uint64 {
	data := make([]uint64, BlockVolume)
	if ch.IsFloat() {
		fill := voxel.Float(voxel.SDFFarOutside).Bits(ch)
		for i := range data {
			data[i] = fill
		}
	}
	return data
}
