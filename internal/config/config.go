// Package config handles eventforge.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fortiblox/eventforge/internal/types"
)

// FileName is the configuration file looked up by default.
const FileName = "eventforge.toml"

// Store backends.
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is an eventforge.toml file.
type Config struct {
	ROM     ROM     `toml:"rom"`
	Store   Store   `toml:"store"`
	Journal Journal `toml:"journal"`
	Log     Log     `toml:"log"`
	Session Session `toml:"session"`

	// Dir is the directory holding the file. Relative paths resolve
	// against it.
	Dir string `toml:"-"`
}

// ROM names the input image and where the patched image goes.
type ROM struct {
	Path           string `toml:"path"`
	Output         string `toml:"output"`
	IgnoreChecksum bool   `toml:"ignore_checksum"`
}

// Store configures the script store used for checkpoints.
type Store struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Sync    bool   `toml:"sync"`
}

// Journal configures the flush journal. An empty path disables it.
type Journal struct {
	Path string `toml:"path"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Session lists locations decoded up front.
type Session struct {
	Preload []int `toml:"preload"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		ROM: ROM{
			Path:   "ct.sfc",
			Output: "ct-patched.sfc",
		},
		Store: Store{
			Backend: BackendBolt,
			Path:    "scripts.db",
			Sync:    true,
		},
		Log: Log{
			Verbosity: 1,
		},
		Dir: ".",
	}
}

// Load parses the file at path. Missing fields take their defaults and
// unknown keys are an error.
func Load(path string) (*Config, error) {
	c := DefaultConfig()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.ROM.Path == "" {
		return fmt.Errorf("%w: rom.path is empty", ErrInvalid)
	}
	switch c.Store.Backend {
	case BackendBolt, BackendBadger:
	default:
		return fmt.Errorf("%w: store.backend %q (want %q or %q)", ErrInvalid, c.Store.Backend, BackendBolt, BackendBadger)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is empty", ErrInvalid)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("%w: log.verbosity %d", ErrInvalid, c.Log.Verbosity)
	}
	if _, err := c.PreloadLocations(); err != nil {
		return fmt.Errorf("%w: session.preload: %v", ErrInvalid, err)
	}
	return nil
}

// PreloadLocations returns session.preload as location ids.
func (c *Config) PreloadLocations() ([]types.LocID, error) {
	locs := make([]types.LocID, 0, len(c.Session.Preload))
	for _, v := range c.Session.Preload {
		loc, err := types.ParseLocID(v)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

// Resolve returns p relative to the configuration directory. Absolute and
// empty paths are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
