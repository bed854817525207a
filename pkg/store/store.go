package store

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/golang/groupcache/lru"
)

// ErrNoBlock is returned by a Source that has no data for a block.
var ErrNoBlock = errors.New("store: no such block")

// ErrBadChannel is returned when writing a channel past voxel.ChannelCount.
var ErrBadChannel = errors.New("store: no such channel")

// Source supplies blocks that are not resident in a Store.
type Source interface {
	LoadBlock(bpos voxel.Pos) (*Block, error)
}

// Sink receives blocks written back by Store.Flush.
type Sink interface {
	SaveBlock(bpos voxel.Pos, b *Block) error
}

// DefaultCacheBlocks is the number of loaded blocks kept by default.
const DefaultCacheBlocks = 256

// Option configures a Store.
type Option func(*Store)

// WithSource makes the store load missing blocks from src.
func WithSource(src Source) Option {
	return func(s *Store) { s.source = src }
}

// WithCacheBlocks bounds how many clean loaded blocks stay in memory.
func WithCacheBlocks(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cacheBlocks = n
		}
	}
}

// Store is a chunked voxel volume. It is safe for concurrent use; reads may
// run in parallel with each other but not with writes.
//
// Written blocks are resident until the store is discarded. Blocks read
// through a Source are cached in an LRU and copied into the resident set on
// their first write.
type Store struct {
	mu     sync.RWMutex
	blocks map[voxel.Pos]*Block
	dirty  map[voxel.Pos]bool

	cacheMu     sync.Mutex
	cache       *lru.Cache
	cacheBlocks int
	source      Source
}

var _ voxel.Volume = (*Store)(nil)

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		blocks:      make(map[voxel.Pos]*Block),
		dirty:       make(map[voxel.Pos]bool),
		cacheBlocks: DefaultCacheBlocks,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = lru.New(s.cacheBlocks)
	return s
}

// GetVoxel returns the value at p, or def where nothing was written.
// A block that fails to load is logged and reads as empty.
func (s *Store) GetVoxel(p voxel.Pos, ch voxel.Channel, def voxel.Value) voxel.Value {
	bpos := BlockPos(p)

	s.mu.RLock()
	if b := s.blocks[bpos]; b != nil {
		v := b.Get(p, ch, def)
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	b, err := s.cached(bpos)
	if err != nil {
		log.Printf("store: reading block %s: %v", bpos, err)
		return def
	}
	if b == nil {
		return def
	}
	return b.Get(p, ch, def)
}

// cached returns a clean block from the LRU, loading it from the source on
// a miss. A nil block with a nil error means the source has no such block.
func (s *Store) cached(bpos voxel.Pos) (*Block, error) {
	if s.source == nil {
		return nil, nil
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if v, ok := s.cache.Get(bpos); ok {
		return v.(*Block), nil
	}
	b, err := s.source.LoadBlock(bpos)
	if errors.Is(err, ErrNoBlock) {
		b, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.cache.Add(bpos, b)
	return b, nil
}

// SetVoxel stores v at p. It fails only when the block holding p has to be
// loaded from the source and loading fails.
func (s *Store) SetVoxel(p voxel.Pos, ch voxel.Channel, v voxel.Value) error {
	if ch >= voxel.ChannelCount {
		return fmt.Errorf("%w: %d", ErrBadChannel, ch)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.writable(BlockPos(p))
	if err != nil {
		return err
	}
	b.Set(p, ch, v)
	return nil
}

// writable returns the resident block at bpos, creating it if needed, and
// marks it dirty. The caller holds mu for writing.
func (s *Store) writable(bpos voxel.Pos) (*Block, error) {
	if b := s.blocks[bpos]; b != nil {
		s.dirty[bpos] = true
		return b, nil
	}

	loaded, err := s.cached(bpos)
	if err != nil {
		return nil, fmt.Errorf("load block %s for writing: %w", bpos, err)
	}
	var b *Block
	if loaded != nil {
		b = loaded.Clone()
		s.cacheMu.Lock()
		s.cache.Remove(bpos)
		s.cacheMu.Unlock()
	} else {
		b = NewBlock()
	}
	s.blocks[bpos] = b
	s.dirty[bpos] = true
	return b, nil
}

// Fill sets every voxel in [min, max) to v.
func (s *Store) Fill(min, max voxel.Pos, ch voxel.Channel, v voxel.Value) error {
	if ch >= voxel.ChannelCount {
		return fmt.Errorf("%w: %d", ErrBadChannel, ch)
	}
	if min.X >= max.X || min.Y >= max.Y || min.Z >= max.Z {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		b    *Block
		bcur voxel.Pos
	)
	for z := min.Z; z < max.Z; z++ {
		for y := min.Y; y < max.Y; y++ {
			for x := min.X; x < max.X; x++ {
				p := voxel.Pos{X: x, Y: y, Z: z}
				if bpos := BlockPos(p); b == nil || bpos != bcur {
					var err error
					if b, err = s.writable(bpos); err != nil {
						return err
					}
					bcur = bpos
				}
				b.Set(p, ch, v)
			}
		}
	}
	return nil
}

// BlockPositions returns the resident block positions in z, y, x order.
func (s *Store) BlockPositions() []voxel.Pos {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]voxel.Pos, 0, len(s.blocks))
	for bpos := range s.blocks {
		out = append(out, bpos)
	}
	sortPositions(out)
	return out
}

// Block returns a copy of the resident block at bpos.
func (s *Store) Block(bpos voxel.Pos) (*Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[bpos]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// DirtyBlocks returns the positions of blocks written since the last Flush.
func (s *Store) DirtyBlocks() []voxel.Pos {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]voxel.Pos, 0, len(s.dirty))
	for bpos := range s.dirty {
		out = append(out, bpos)
	}
	sortPositions(out)
	return out
}

// Len returns the number of resident blocks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// Flush saves every dirty block to sink and marks it clean. On error the
// failing block and those after it stay dirty.
func (s *Store) Flush(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make([]voxel.Pos, 0, len(s.dirty))
	for bpos := range s.dirty {
		positions = append(positions, bpos)
	}
	sortPositions(positions)

	for _, bpos := range positions {
		if err := sink.SaveBlock(bpos, s.blocks[bpos]); err != nil {
			return fmt.Errorf("flush block %s: %w", bpos, err)
		}
		delete(s.dirty, bpos)
	}
	if len(positions) > 0 {
		log.Printf("store: flushed %d blocks", len(positions))
	}
	return nil
}

func sortPositions(ps []voxel.Pos) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}
