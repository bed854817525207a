// Package config loads voxcast settings from a TOML file.
//
//	[raycast]
//	collision_mask = 1
//	binary_search_iterations = 8
//	mesher = "sdf"
//
//	[store]
//	path = "./voxels"        # badger directory, relative to this file
//	compression = "snappy"
//
//	[engine]
//	timeout_ms = 5000
//	mesh_cells = 64          # preview tessellation resolution
//
//	[log]
//	logfile = "voxcast.log"
//	max_log_size = 100       # megabytes
//	max_log_age = 30         # days
package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/chazu/voxcast/pkg/kernel/sdfx"
	"github.com/chazu/voxcast/pkg/raycast"
	"github.com/chazu/voxcast/pkg/store"
	"github.com/chazu/voxcast/pkg/store/kv"
	"github.com/natefinch/lumberjack"
)

// Config is the top-level configuration.
type Config struct {
	Raycast RaycastConfig
	Store   StoreConfig
	Engine  EngineConfig
	Logging LogConfig `toml:"log"`
}

// RaycastConfig holds defaults for script raycasts.
type RaycastConfig struct {
	CollisionMask          uint32 `toml:"collision_mask"`
	BinarySearchIterations int    `toml:"binary_search_iterations"`
	Mesher                 string
}

// StoreConfig selects the persistent block store. With neither Path nor
// InMemory set, voxels live only in the process.
type StoreConfig struct {
	Path        string
	InMemory    bool   `toml:"in_memory"`
	Compression string `toml:"compression"`
	CacheBytes  int    `toml:"cache_bytes"`
	CacheBlocks int    `toml:"cache_blocks"`
}

// EngineConfig tunes script evaluation.
type EngineConfig struct {
	TimeoutMs int `toml:"timeout_ms"`
	MeshCells int `toml:"mesh_cells"`
}

// LogConfig sends log output to a rotating file.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Raycast: RaycastConfig{
			CollisionMask: math.MaxUint32,
			Mesher:        "sdf",
		},
		Store: StoreConfig{
			Compression: store.Snappy.String(),
			CacheBytes:  kv.DefaultCacheBytes,
			CacheBlocks: store.DefaultCacheBlocks,
		},
		Engine: EngineConfig{
			TimeoutMs: 5000,
			MeshCells: sdfx.DefaultMeshCells,
		},
	}
}

// Load reads a TOML file over the defaults. Relative paths in the file are
// resolved against the file's directory.
func Load(filename string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config %s: %w", filename, err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	return c, nil
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (*Config, error) {
	c := Default()
	if _, err := toml.Decode(text, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) convertPathsToAbsolute(configPath string) error {
	dir := filepath.Dir(configPath)
	for _, p := range []*string{&c.Store.Path, &c.Logging.Logfile} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, *p))
		if err != nil {
			return fmt.Errorf("error converting %q to absolute path: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.Raycast.BinarySearchIterations < 0 {
		return fmt.Errorf("raycast.binary_search_iterations must not be negative, got %d", c.Raycast.BinarySearchIterations)
	}
	if _, err := store.ParseCompression(c.Store.Compression); err != nil {
		return fmt.Errorf("store.compression: %w", err)
	}
	if c.Engine.TimeoutMs <= 0 {
		return fmt.Errorf("engine.timeout_ms must be positive, got %d", c.Engine.TimeoutMs)
	}
	if c.Engine.MeshCells < 0 {
		return fmt.Errorf("engine.mesh_cells must not be negative, got %d", c.Engine.MeshCells)
	}
	switch c.Raycast.Mesher {
	case "", "sdf", "cubes", "blocky":
	default:
		return fmt.Errorf("raycast.mesher: unknown mesher %q", c.Raycast.Mesher)
	}
	return nil
}

// RaycastOptions converts the raycast section.
func (c *Config) RaycastOptions() raycast.Options {
	return raycast.Options{
		CollisionMask:          c.Raycast.CollisionMask,
		BinarySearchIterations: c.Raycast.BinarySearchIterations,
	}
}

// Timeout returns the script evaluation timeout.
func (c EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Kernel returns the geometry kernel for script solids.
func (c EngineConfig) Kernel() *sdfx.SdfxKernel {
	return sdfx.New().WithMeshCells(c.MeshCells)
}

// Persistent reports whether a block database is configured.
func (c StoreConfig) Persistent() bool {
	return c.InMemory || c.Path != ""
}

// KVOptions converts the store section.
func (c StoreConfig) KVOptions() (kv.Options, error) {
	comp, err := store.ParseCompression(c.Compression)
	if err != nil {
		return kv.Options{}, err
	}
	return kv.Options{
		Path:        c.Path,
		InMemory:    c.InMemory,
		CacheBytes:  c.CacheBytes,
		Compression: comp,
	}, nil
}

// Writer returns the rotating log file, or nil when no file is configured.
func (c *LogConfig) Writer() *lumberjack.Logger {
	if c == nil || c.Logfile == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
}

// SetLogger directs the standard logger to the rotating log file, or to
// stderr when no file is configured.
func (c *LogConfig) SetLogger() {
	w := c.Writer()
	if w == nil {
		log.SetOutput(os.Stderr)
		return
	}
	fmt.Fprintf(os.Stderr, "Sending log messages to: %s\n", w.Filename)
	log.SetOutput(w)
}
