package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
}

// NewLoader creates a new configuration loader.
// If path is empty, the default config path is used.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load reads and parses the config file.
// A missing file is not an error: defaults are used.
// Validation warnings do not block loading; hard errors do.
func (l *Loader) Load() (*Config, error) {
	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		var verrs ValidationErrors
		if !errors.As(err, &verrs) || verrs.HasErrors() {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		// warnings only: keep going
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()

	return cfg, nil
}

// Get returns the currently loaded config, or nil before the first Load.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers a callback invoked after each successful reload.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Errors returns a channel of watch and reload errors.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch starts watching the config file for changes and reloads on write.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory, not the file. Editors replace files on save,
	// which breaks a direct file watch.
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	base := filepath.Base(l.path)
	var debounceTimer *time.Timer

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce: editors fire multiple events per save.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			select {
			case l.errChan <- err:
			default:
			}
		}
	}
}

func (l *Loader) reload() {
	cfg, err := l.Load()
	if err != nil {
		select {
		case l.errChan <- fmt.Errorf("reload: %w", err):
		default:
		}
		return
	}

	l.mu.RLock()
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.RUnlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

// Stop stops watching and releases resources.
func (l *Loader) Stop() {
	l.cancel()
	l.mu.Lock()
	if l.watcher != nil {
		l.watcher.Close()
		l.watcher = nil
	}
	l.mu.Unlock()
}

// loadConfigFromFile reads a config file and parses it by extension.
// A missing file returns defaults without error.
func loadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// autoDetectAndParse tries each supported format in turn.
func autoDetectAndParse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return fmt.Errorf("unable to parse config: not valid TOML, JSON, or YAML")
}

// LoadFromEnv creates a config from defaults plus environment overrides.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	return cfg
}

// LoadOrCreate loads the config file, creating it with defaults if missing.
// Returns the config and whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Merge merges src into dst, with non-zero src values taking precedence.
func Merge(dst, src *Config) {
	if src == nil || dst == nil {
		return
	}

	if src.Version != 0 {
		dst.Version = src.Version
	}

	// Brush
	if src.Brush.Radius != 0 {
		dst.Brush.Radius = src.Brush.Radius
	}
	if src.Brush.Opacity != 0 {
		dst.Brush.Opacity = src.Brush.Opacity
	}
	if src.Brush.Tool != 0 {
		dst.Brush.Tool = src.Brush.Tool
	}
	if len(src.Brush.Color) > 0 {
		dst.Brush.Color = src.Brush.Color
	}
	// booleans are tricky - we can't distinguish "not set" from "false",
	// so boolean fields merge only when true
	if src.Brush.PressureEnabled {
		dst.Brush.PressureEnabled = true
	}

	// Projection
	if src.Projection.Mode != "" {
		dst.Projection.Mode = src.Projection.Mode
	}
	if len(src.Projection.Center) > 0 {
		dst.Projection.Center = src.Projection.Center
	}

	// Mirrors
	if len(src.Mirrors.Axes) > 0 {
		dst.Mirrors.Axes = src.Mirrors.Axes
	}
	if len(src.Mirrors.Transforms) > 0 {
		dst.Mirrors.Transforms = src.Mirrors.Transforms
	}

	// Interaction
	if src.Interaction.Masked {
		dst.Interaction.Masked = true
	}
	if src.Interaction.FullStrokeErase {
		dst.Interaction.FullStrokeErase = true
	}

	// Cache
	if src.Cache.Path != "" {
		dst.Cache.Path = src.Cache.Path
	}
	if src.Cache.AutoSave {
		dst.Cache.AutoSave = true
	}
	if src.Cache.Watch {
		dst.Cache.Watch = true
	}
	if src.Cache.DebounceMs != 0 {
		dst.Cache.DebounceMs = src.Cache.DebounceMs
	}

	// Journal
	if src.Journal.Enabled {
		dst.Journal.Enabled = true
	}
	if src.Journal.Path != "" {
		dst.Journal.Path = src.Journal.Path
	}

	// Archive
	if src.Archive.Enabled {
		dst.Archive.Enabled = true
	}
	if src.Archive.Path != "" {
		dst.Archive.Path = src.Archive.Path
	}

	// Logging
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}
	if src.Logging.Output != "" {
		dst.Logging.Output = src.Logging.Output
	}
	if src.Logging.FilePath != "" {
		dst.Logging.FilePath = src.Logging.FilePath
	}
	if src.Logging.MaxSizeMB != 0 {
		dst.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups != 0 {
		dst.Logging.MaxBackups = src.Logging.MaxBackups
	}
	if src.Logging.MaxAgeDays != 0 {
		dst.Logging.MaxAgeDays = src.Logging.MaxAgeDays
	}
	if src.Logging.Compress {
		dst.Logging.Compress = true
	}
}
