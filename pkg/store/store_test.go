package store

import (
	"errors"
	"testing"

	"github.com/chazu/voxcast/pkg/voxel"
)

// memSource is a Source and Sink backed by a map.
type memSource struct {
	blocks map[voxel.Pos]*Block
	loads  int
	fail   error
}

func newMemSource() *memSource {
	return &memSource{blocks: make(map[voxel.Pos]*Block)}
}

func (m *memSource) LoadBlock(bpos voxel.Pos) (*Block, error) {
	m.loads++
	if m.fail != nil {
		return nil, m.fail
	}
	b, ok := m.blocks[bpos]
	if !ok {
		return nil, ErrNoBlock
	}
	return b.Clone(), nil
}

func (m *memSource) SaveBlock(bpos voxel.Pos, b *Block) error {
	if m.fail != nil {
		return m.fail
	}
	m.blocks[bpos] = b.Clone()
	return nil
}

func TestBlockPosFloorsNegatives(t *testing.T) {
	cases := []struct {
		p    voxel.Pos
		want voxel.Pos
	}{
		{voxel.Pos{0, 0, 0}, voxel.Pos{0, 0, 0}},
		{voxel.Pos{15, 16, 31}, voxel.Pos{0, 1, 1}},
		{voxel.Pos{-1, -16, -17}, voxel.Pos{-1, -1, -2}},
	}
	for _, c := range cases {
		if got := BlockPos(c.p); got != c.want {
			t.Errorf("BlockPos(%v) = %v, expected %v", c.p, got, c.want)
		}
	}
	if got := BlockOrigin(voxel.Pos{-1, 2, 0}); got != (voxel.Pos{-16, 32, 0}) {
		t.Errorf("BlockOrigin = %v, expected (-16, 32, 0)", got)
	}
}

func TestStoreReadsDefaultWhereUnwritten(t *testing.T) {
	s := New()
	v := s.GetVoxel(voxel.Pos{3, 4, 5}, voxel.ChannelType, voxel.Int(7))
	if v.Int() != 7 {
		t.Errorf("unwritten voxel = %v, expected the default 7", v)
	}
	if s.Len() != 0 {
		t.Errorf("reads must not allocate blocks, got %d", s.Len())
	}
}

func TestStoreSetAndGet(t *testing.T) {
	s := New()
	p := voxel.Pos{-3, 17, 40}
	if err := s.SetVoxel(p, voxel.ChannelType, voxel.Int(9)); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	if err := s.SetVoxel(p, voxel.ChannelSDF, voxel.Float(-0.25)); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}

	if got := s.GetVoxel(p, voxel.ChannelType, voxel.Int(0)).Int(); got != 9 {
		t.Errorf("type = %d, expected 9", got)
	}
	if got := s.GetVoxel(p, voxel.ChannelSDF, voxel.Float(0)).Float(); got != -0.25 {
		t.Errorf("sdf = %f, expected -0.25", got)
	}

	// Untouched voxels of an allocated SDF channel read as far outside.
	other := p.Add(voxel.Pos{X: 1})
	if got := s.GetVoxel(other, voxel.ChannelSDF, voxel.Float(0)).Float(); got != voxel.SDFFarOutside {
		t.Errorf("neighbour sdf = %f, expected %f", got, voxel.SDFFarOutside)
	}
	// Other channels of the block still read as the caller's default.
	if got := s.GetVoxel(p, voxel.ChannelColor, voxel.Int(3)).Int(); got != 3 {
		t.Errorf("unwritten channel = %d, expected default 3", got)
	}
}

func TestStoreRejectsUnknownChannel(t *testing.T) {
	s := New()
	bad := voxel.Channel(voxel.ChannelCount)
	if got := s.GetVoxel(voxel.Pos{}, bad, voxel.Int(4)).Int(); got != 4 {
		t.Errorf("read of channel %d = %d, expected the default 4", bad, got)
	}
	if err := s.SetVoxel(voxel.Pos{}, bad, voxel.Int(1)); !errors.Is(err, ErrBadChannel) {
		t.Errorf("SetVoxel: expected ErrBadChannel, got %v", err)
	}
	if err := s.Fill(voxel.Pos{}, voxel.Pos{X: 2, Y: 2, Z: 2}, bad, voxel.Int(1)); !errors.Is(err, ErrBadChannel) {
		t.Errorf("Fill: expected ErrBadChannel, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("rejected writes must not allocate blocks, got %d", s.Len())
	}

	// A resident block answers the same way.
	if err := s.SetVoxel(voxel.Pos{}, voxel.ChannelType, voxel.Int(2)); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	if got := s.GetVoxel(voxel.Pos{}, bad, voxel.Int(6)).Int(); got != 6 {
		t.Errorf("resident read of channel %d = %d, expected the default 6", bad, got)
	}
	b := NewBlock()
	b.Set(voxel.Pos{}, bad, voxel.Int(1))
	if b.HasChannel(bad) {
		t.Errorf("block should not report channel %d", bad)
	}
}

func TestStoreFillSpansBlocks(t *testing.T) {
	s := New()
	min, max := voxel.Pos{-2, 0, 0}, voxel.Pos{18, 2, 1}
	if err := s.Fill(min, max, voxel.ChannelType, voxel.Int(1)); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("fill touched %d blocks, expected 3", s.Len())
	}
	for _, p := range []voxel.Pos{{-2, 0, 0}, {0, 1, 0}, {17, 1, 0}} {
		if s.GetVoxel(p, voxel.ChannelType, voxel.Int(0)).Int() != 1 {
			t.Errorf("voxel %v was not filled", p)
		}
	}
	for _, p := range []voxel.Pos{{18, 0, 0}, {0, 2, 0}, {0, 0, 1}, {-3, 0, 0}} {
		if s.GetVoxel(p, voxel.ChannelType, voxel.Int(0)).Int() != 0 {
			t.Errorf("voxel %v outside the range was filled", p)
		}
	}

	if err := s.Fill(max, min, voxel.ChannelType, voxel.Int(5)); err != nil {
		t.Fatalf("empty Fill: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("an empty range must not allocate blocks")
	}
}

func TestStoreBlockPositionsSorted(t *testing.T) {
	s := New()
	for _, p := range []voxel.Pos{{40, 0, 0}, {0, 0, 20}, {-5, 0, 0}, {0, 20, 0}} {
		s.SetVoxel(p, voxel.ChannelType, voxel.Int(1))
	}
	expected := []voxel.Pos{{-1, 0, 0}, {2, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	got := s.BlockPositions()
	if len(got) != len(expected) {
		t.Fatalf("BlockPositions = %v, expected %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("position %d = %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestStoreBlockReturnsCopy(t *testing.T) {
	s := New()
	p := voxel.Pos{1, 1, 1}
	s.SetVoxel(p, voxel.ChannelType, voxel.Int(4))

	b, ok := s.Block(voxel.Pos{})
	if !ok {
		t.Fatal("expected block (0, 0, 0)")
	}
	b.Set(p, voxel.ChannelType, voxel.Int(8))
	if got := s.GetVoxel(p, voxel.ChannelType, voxel.Int(0)).Int(); got != 4 {
		t.Errorf("mutating a returned block changed the store: %d", got)
	}
	if _, ok := s.Block(voxel.Pos{X: 9}); ok {
		t.Error("expected no block at (9, 0, 0)")
	}
}

func TestStoreLoadsLazilyFromSource(t *testing.T) {
	src := newMemSource()
	stored := NewBlock()
	stored.Set(voxel.Pos{2, 3, 4}, voxel.ChannelType, voxel.Int(6))
	src.blocks[voxel.Pos{1, 0, 0}] = stored

	s := New(WithSource(src))
	p := voxel.Pos{18, 3, 4}
	for i := 0; i < 3; i++ {
		if got := s.GetVoxel(p, voxel.ChannelType, voxel.Int(0)).Int(); got != 6 {
			t.Fatalf("loaded voxel = %d, expected 6", got)
		}
	}
	if src.loads != 1 {
		t.Errorf("source loaded %d times, expected 1", src.loads)
	}
	if s.Len() != 0 || len(s.DirtyBlocks()) != 0 {
		t.Error("reading through the source must not make blocks resident")
	}

	// Missing blocks are cached too.
	s.GetVoxel(voxel.Pos{100, 0, 0}, voxel.ChannelType, voxel.Int(0))
	s.GetVoxel(voxel.Pos{100, 0, 0}, voxel.ChannelType, voxel.Int(0))
	if src.loads != 2 {
		t.Errorf("source loaded %d times, expected 2", src.loads)
	}
}

func TestStoreWriteCopiesLoadedBlock(t *testing.T) {
	src := newMemSource()
	stored := NewBlock()
	stored.Set(voxel.Pos{0, 0, 0}, voxel.ChannelType, voxel.Int(2))
	src.blocks[voxel.Pos{}] = stored

	s := New(WithSource(src))
	if err := s.SetVoxel(voxel.Pos{1, 0, 0}, voxel.ChannelType, voxel.Int(3)); err != nil {
		t.Fatalf("SetVoxel: %v", err)
	}
	if got := s.GetVoxel(voxel.Pos{}, voxel.ChannelType, voxel.Int(0)).Int(); got != 2 {
		t.Errorf("loaded voxel lost on write: %d", got)
	}
	if got := s.GetVoxel(voxel.Pos{1, 0, 0}, voxel.ChannelType, voxel.Int(0)).Int(); got != 3 {
		t.Errorf("written voxel = %d, expected 3", got)
	}
	if got := src.blocks[voxel.Pos{}].Get(voxel.Pos{1, 0, 0}, voxel.ChannelType, voxel.Int(0)).Int(); got != 0 {
		t.Errorf("write leaked into the source before flush: %d", got)
	}
}

func TestStoreSourceErrors(t *testing.T) {
	src := newMemSource()
	src.fail = errors.New("disk on fire")
	s := New(WithSource(src))

	if got := s.GetVoxel(voxel.Pos{}, voxel.ChannelType, voxel.Int(5)).Int(); got != 5 {
		t.Errorf("failed load should read as default, got %d", got)
	}
	err := s.SetVoxel(voxel.Pos{}, voxel.ChannelType, voxel.Int(1))
	if err == nil || !errors.Is(err, src.fail) {
		t.Errorf("expected load error from SetVoxel, got %v", err)
	}
}

func TestStoreFlush(t *testing.T) {
	s := New()
	s.SetVoxel(voxel.Pos{0, 0, 0}, voxel.ChannelType, voxel.Int(1))
	s.SetVoxel(voxel.Pos{16, 0, 0}, voxel.ChannelType, voxel.Int(1))
	if n := len(s.DirtyBlocks()); n != 2 {
		t.Fatalf("expected 2 dirty blocks, got %d", n)
	}

	sink := newMemSource()
	if err := s.Flush(sink); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(sink.blocks) != 2 {
		t.Errorf("sink received %d blocks, expected 2", len(sink.blocks))
	}
	if n := len(s.DirtyBlocks()); n != 0 {
		t.Errorf("expected no dirty blocks after flush, got %d", n)
	}
	if s.Len() != 2 {
		t.Errorf("flushed blocks should stay resident")
	}

	s.SetVoxel(voxel.Pos{0, 0, 0}, voxel.ChannelType, voxel.Int(2))
	sink.fail = errors.New("full")
	if err := s.Flush(sink); err == nil {
		t.Fatal("expected flush error")
	}
	if n := len(s.DirtyBlocks()); n != 1 {
		t.Errorf("failed flush should keep the block dirty, got %d dirty", n)
	}
}
