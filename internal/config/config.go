package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fedragon/go-gallery/internal/db"
	"github.com/fedragon/go-gallery/internal/platform"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

type StoreConfig struct {
	// Driver is "bolt" or "sqlite"; "none" disables persistence.
	Driver string `yaml:"driver" env:"DRIVER"`
	// Path defaults to a file in the data directory.
	Path string `yaml:"path" env:"PATH"`
}

type CameraConfig struct {
	Quality int `yaml:"quality" env:"QUALITY"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	// Origin is what native display paths are rooted at.
	Origin string `yaml:"origin" env:"ORIGIN"`
}

type Config struct {
	DataDir     string       `yaml:"data_dir" env:"DATA_DIR"`
	Runtime     string       `yaml:"runtime" env:"RUNTIME"`
	LoadWorkers int          `yaml:"load_workers" env:"LOAD_WORKERS"`
	Debug       bool         `yaml:"debug" env:"DEBUG"`
	Store       StoreConfig  `yaml:"store" envPrefix:"STORE_"`
	Camera      CameraConfig `yaml:"camera" envPrefix:"CAMERA_"`
	Server      ServerConfig `yaml:"server" envPrefix:"SERVER_"`
}

const (
	EnvPrefix   = "GALLERY_"
	StoreNone   = "none"
	defaultAddr = "127.0.0.1:8080"
)

// Load reads the YAML file at path (when not empty), overlays GALLERY_* environment
// variables, then overrides, and fills in defaults.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	var cfg Config

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.DataDir == "" {
		c.DataDir = "~/.go-gallery"
	}
	dataDir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return err
	}
	c.DataDir = dataDir

	if _, err := platform.Parse(c.Runtime); err != nil {
		return err
	}
	if c.Runtime == "" {
		c.Runtime = string(platform.Web)
	}

	if c.LoadWorkers <= 0 {
		c.LoadWorkers = runtime.NumCPU()
	}

	if c.Camera.Quality == 0 {
		c.Camera.Quality = 100
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		return fmt.Errorf("camera.quality must be between 1 and 100, got %d", c.Camera.Quality)
	}

	switch c.Store.Driver {
	case "":
		c.Store.Driver = db.DriverBolt
	case db.DriverBolt, db.DriverSQLite, StoreNone:
	default:
		return fmt.Errorf("store.driver must be one of %s, %s or %s, got %q", db.DriverBolt, db.DriverSQLite, StoreNone, c.Store.Driver)
	}
	if c.Store.Path == "" && c.Store.Driver != StoreNone {
		c.Store.Path = filepath.Join(c.DataDir, "gallery."+c.Store.Driver)
	}
	if c.Store.Path != "" {
		p, err := homedir.Expand(c.Store.Path)
		if err != nil {
			return err
		}
		c.Store.Path = p
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.Origin == "" {
		c.Server.Origin = "http://" + c.Server.Addr
	}

	return nil
}

// Persistent reports whether photos survive the session.
func (c *Config) Persistent() bool {
	return c.Store.Driver != StoreNone
}
