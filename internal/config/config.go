// Package config loads playspace settings from defaults, an optional YAML
// file and PLAYSPACE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daviddao/playspace/pkg/camera"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "playspace.yaml"

// Config holds everything a ps invocation needs.
type Config struct {
	// DB is the path of the shared SQLite log.
	DB string `yaml:"db"`

	// Replica names this process in the registry; the store assigns it a
	// source id on first use.
	Replica string `yaml:"replica"`

	// Actor is stamped into every event this replica appends.
	Actor int64 `yaml:"actor"`

	Log      LogConfig      `yaml:"log"`
	Viewport ViewportConfig `yaml:"viewport"`
	Camera   camera.Camera  `yaml:"camera"`
	Watch    WatchConfig    `yaml:"watch"`
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ViewportConfig is the screen size gesture coordinates refer to.
type ViewportConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// WatchConfig tunes ps watch.
type WatchConfig struct {
	// Interval is the polling fallback for missed file events.
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "local"
	}
	return &Config{
		DB:      ".playspace/playspace.db",
		Replica: host,
		Log:     LogConfig{Level: "warn", Format: "console"},
		Viewport: ViewportConfig{
			Width:  800,
			Height: 600,
		},
		Camera: camera.New(),
		Watch: WatchConfig{
			Interval: 2 * time.Second,
			Debounce: 50 * time.Millisecond,
		},
	}
}

// Load builds the configuration. path may be empty: then PLAYSPACE_CONFIG
// is consulted, and failing that DefaultFile if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("PLAYSPACE_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("PLAYSPACE_DB"); v != "" {
		c.DB = v
	}
	if v := os.Getenv("PLAYSPACE_REPLICA"); v != "" {
		c.Replica = v
	}
	if v := os.Getenv("PLAYSPACE_ACTOR"); v != "" {
		actor, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PLAYSPACE_ACTOR: %w", err)
		}
		c.Actor = actor
	}
	if v := os.Getenv("PLAYSPACE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.DB == "":
		return errors.New("db is required")
	case c.Replica == "":
		return errors.New("replica name is required")
	case c.Actor < 0:
		return fmt.Errorf("actor must be >= 0, got %d", c.Actor)
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return fmt.Errorf("viewport must be positive, got %gx%g", c.Viewport.Width, c.Viewport.Height)
	case c.Camera.SquareSize <= 0:
		return fmt.Errorf("camera.square_size must be positive, got %g", c.Camera.SquareSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format: %s (must be json or console)", c.Log.Format)
	}
	return nil
}
