package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderLoadAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[brush]\nradius = 0.1\n")

	loader := NewLoader(path)
	defer loader.Stop()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Brush.Radius != 0.1 {
		t.Errorf("expected radius 0.1, got %g", cfg.Brush.Radius)
	}

	if got := loader.Get(); got != cfg {
		t.Error("Get should return the loaded config")
	}
}

func TestLoaderGetBeforeLoad(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "config.toml"))
	defer loader.Stop()

	if loader.Get() != nil {
		t.Error("Get before Load should return nil")
	}
}

func TestLoaderRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[brush]\nradius = -1.0\n")

	loader := NewLoader(path)
	defer loader.Stop()

	if _, err := loader.Load(); err == nil {
		t.Error("expected validation error for negative radius")
	}
}

func TestLoaderToleratesWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[mirrors]\naxes = [\"x\", \"w\"]\n")

	loader := NewLoader(path)
	defer loader.Stop()

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("warnings should not block loading: %v", err)
	}
	if len(cfg.Mirrors.Axes) != 2 {
		t.Errorf("expected 2 axes, got %d", len(cfg.Mirrors.Axes))
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[brush]\nradius = 0.05\n")

	loader := NewLoader(path)
	defer loader.Stop()

	if _, err := loader.Load(); err != nil {
		t.Fatalf("initial Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeConfig(t, path, "[brush]\nradius = 0.2\n")

	select {
	case cfg := <-changed:
		if cfg.Brush.Radius != 0.2 {
			t.Errorf("expected reloaded radius 0.2, got %g", cfg.Brush.Radius)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if got := loader.Get(); got.Brush.Radius != 0.2 {
		t.Errorf("Get should see the reloaded config, got radius %g", got.Brush.Radius)
	}
}

func TestLoaderWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[brush]\nradius = 0.05\n")

	loader := NewLoader(path)
	defer loader.Stop()

	if _, err := loader.Load(); err != nil {
		t.Fatalf("initial Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeConfig(t, filepath.Join(dir, "other.txt"), "unrelated\n")

	select {
	case <-changed:
		t.Error("unrelated file should not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HPAINT_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected created=true for missing file")
	}
	if cfg == nil {
		t.Fatal("expected a config")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	// Second call loads the existing file
	cfg2, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected created=false for existing file")
	}
	if cfg2.Brush.Radius != cfg.Brush.Radius {
		t.Errorf("reloaded config differs: %g vs %g", cfg2.Brush.Radius, cfg.Brush.Radius)
	}
}
