package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gallery.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/gallery
runtime: native
load_workers: 2
store:
  driver: sqlite
camera:
  quality: 80
server:
  addr: 0.0.0.0:9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		actual   interface{}
		expected interface{}
	}{
		{name: "data dir", actual: cfg.DataDir, expected: "/srv/gallery"},
		{name: "runtime", actual: cfg.Runtime, expected: "native"},
		{name: "load workers", actual: cfg.LoadWorkers, expected: 2},
		{name: "store driver", actual: cfg.Store.Driver, expected: "sqlite"},
		{name: "store path defaults inside the data dir", actual: cfg.Store.Path, expected: "/srv/gallery/gallery.sqlite"},
		{name: "camera quality", actual: cfg.Camera.Quality, expected: 80},
		{name: "server addr", actual: cfg.Server.Addr, expected: "0.0.0.0:9000"},
		{name: "origin defaults to the server addr", actual: cfg.Server.Origin, expected: "http://0.0.0.0:9000"},
		{name: "persistent", actual: cfg.Persistent(), expected: true},
	}

	for _, c := range cases {
		if c.actual != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, c.actual)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/doge")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Runtime != "web" || cfg.Store.Driver != "bolt" || cfg.Camera.Quality != 100 || cfg.LoadWorkers <= 0 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "runtime: native\nstore:\n  driver: bolt\n")
	t.Setenv("GALLERY_RUNTIME", "web")
	t.Setenv("GALLERY_STORE_DRIVER", "none")
	t.Setenv("GALLERY_DATA_DIR", "/tmp/gallery")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Runtime != "web" {
		t.Errorf("Expected web but got %v instead", cfg.Runtime)
	}
	if cfg.Persistent() || cfg.Store.Path != "" {
		t.Errorf("Expected persistence to be disabled but got %+v instead", cfg.Store)
	}
	if cfg.DataDir != "/tmp/gallery" {
		t.Errorf("Expected /tmp/gallery but got %v instead", cfg.DataDir)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "unknown runtime", content: "runtime: desktop\n"},
		{name: "quality out of range", content: "camera:\n  quality: 101\n"},
		{name: "unknown store driver", content: "store:\n  driver: redis\n"},
		{name: "malformed yaml", content: "runtime: [\n"},
	}

	for _, c := range cases {
		if _, err := Load(writeConfig(t, c.content)); err == nil {
			t.Errorf("%v\n\tExpected an error", c.name)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, "data_dir: /srv/gallery\nruntime: web\n")

	cfg, err := Load(path, func(c *Config) {
		c.DataDir = "/mnt/photos"
		c.Runtime = "native"
		c.Server.Addr = "localhost:9999"
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Store.Path != "/mnt/photos/gallery.bolt" {
		t.Errorf("Expected the store to follow the data dir but got %v instead", cfg.Store.Path)
	}
	if cfg.Runtime != "native" || cfg.Server.Origin != "http://localhost:9999" {
		t.Errorf("Unexpected config %+v", cfg)
	}
}
