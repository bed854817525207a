// Package kv persists voxel blocks in a badger key-value store. Encoded
// blocks are kept in a freecache so repeated loads skip the database.
package kv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/chazu/voxcast/pkg/store"
	"github.com/chazu/voxcast/pkg/voxel"
	"github.com/coocood/freecache"
	"github.com/dgraph-io/badger/v3"
	"github.com/dustin/go-humanize"
)

// DefaultCacheBytes is the encoded-block cache size used when Options
// leaves it unset.
const DefaultCacheBytes = 32 << 20

var blockPrefix = []byte("blk")

const keyLen = 3 + 3*4

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// CacheBytes sizes the encoded-block cache. Zero means DefaultCacheBytes,
	// negative disables the cache.
	CacheBytes  int
	Compression store.Compression
}

// DB stores serialized blocks keyed by block position.
type DB struct {
	bdp         *badger.DB
	cache       *freecache.Cache
	compression store.Compression
	path        string

	bytesWritten uint64
	bytesRead    uint64
}

var (
	_ store.Source = (*DB)(nil)
	_ store.Sink   = (*DB)(nil)
)

// Open opens or creates a block database.
func Open(opts Options) (*DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("kv: a path is required unless the store is in memory")
		}
		if err := os.MkdirAll(opts.Path, 0744); err != nil {
			return nil, fmt.Errorf("can't make directory at %s: %w", opts.Path, err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil).WithNumVersionsToKeep(1)

	bdp, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}

	db := &DB{bdp: bdp, compression: opts.Compression, path: opts.Path}
	cacheBytes := opts.CacheBytes
	if cacheBytes == 0 {
		cacheBytes = DefaultCacheBytes
	}
	if cacheBytes > 0 {
		db.cache = freecache.NewCache(cacheBytes)
	}
	where := opts.Path
	if opts.InMemory {
		where = "memory"
	}
	log.Printf("kv: opened block store in %s, %s cache, %s compression",
		where, humanize.Bytes(uint64(max(cacheBytes, 0))), opts.Compression)
	return db, nil
}

// Close releases the database.
func (db *DB) Close() error {
	if db.cache != nil {
		log.Printf("kv: closing, %s written, %s read, cache hit rate %.2f",
			humanize.Bytes(atomic.LoadUint64(&db.bytesWritten)),
			humanize.Bytes(atomic.LoadUint64(&db.bytesRead)),
			db.cache.HitRate())
	}
	return db.bdp.Close()
}

// blockKey encodes a block position so that keys sort by z, y, x.
func blockKey(bpos voxel.Pos) []byte {
	k := make([]byte, keyLen)
	copy(k, blockPrefix)
	for i, c := range [3]int{bpos.Z, bpos.Y, bpos.X} {
		binary.BigEndian.PutUint32(k[3+4*i:], uint32(int32(c))^0x80000000)
	}
	return k
}

func decodeKey(k []byte) (voxel.Pos, error) {
	if len(k) != keyLen || string(k[:3]) != string(blockPrefix) {
		return voxel.Pos{}, fmt.Errorf("kv: malformed block key %x", k)
	}
	var c [3]int
	for i := range c {
		c[i] = int(int32(binary.BigEndian.Uint32(k[3+4*i:]) ^ 0x80000000))
	}
	return voxel.Pos{X: c[2], Y: c[1], Z: c[0]}, nil
}

// SaveBlock serializes b and stores it under bpos.
func (db *DB) SaveBlock(bpos voxel.Pos, b *store.Block) error {
	data, err := store.Serialize(b, db.compression)
	if err != nil {
		return err
	}
	key := blockKey(bpos)
	err = db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("save block %s: %w", bpos, err)
	}
	atomic.AddUint64(&db.bytesWritten, uint64(len(data)))
	db.cacheSet(key, data)
	return nil
}

// LoadBlock returns the block at bpos or store.ErrNoBlock.
func (db *DB) LoadBlock(bpos voxel.Pos) (*store.Block, error) {
	key := blockKey(bpos)
	data, err := db.cacheGet(key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		err = db.bdp.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err == badger.ErrKeyNotFound {
				return store.ErrNoBlock
			}
			if err != nil {
				return err
			}
			data, err = item.ValueCopy(nil)
			return err
		})
		if errors.Is(err, store.ErrNoBlock) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("load block %s: %w", bpos, err)
		}
		atomic.AddUint64(&db.bytesRead, uint64(len(data)))
		db.cacheSet(key, data)
	}

	b, err := store.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("load block %s: %w", bpos, err)
	}
	return b, nil
}

// DeleteBlock removes the block at bpos. Deleting a missing block is not an
// error.
func (db *DB) DeleteBlock(bpos voxel.Pos) error {
	key := blockKey(bpos)
	if db.cache != nil {
		db.cache.Del(key)
	}
	err := db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete block %s: %w", bpos, err)
	}
	return nil
}

// BlockPositions returns every stored block position in z, y, x order.
func (db *DB) BlockPositions() ([]voxel.Pos, error) {
	var out []voxel.Pos
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(blockPrefix); it.ValidForPrefix(blockPrefix); it.Next() {
			bpos, err := decodeKey(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			out = append(out, bpos)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) cacheGet(key []byte) ([]byte, error) {
	if db.cache == nil {
		return nil, nil
	}
	data, err := db.cache.Get(key)
	if err != nil && err != freecache.ErrNotFound {
		return nil, err
	}
	return data, nil
}

// cacheSet ignores entries too large for the cache.
func (db *DB) cacheSet(key, data []byte) {
	if db.cache != nil {
		db.cache.Set(key, data, 0)
	}
}
