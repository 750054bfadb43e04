// Package config handles configuration loading, validation, and management for hpaint.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cogentcore.org/core/math32"

	"hpaint/internal/project"
)

// Version is the current configuration schema version.
const Version = 2

// Config holds the complete hpaint configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Brush configuration for the paint cursor.
	Brush BrushConfig `toml:"brush" json:"brush" yaml:"brush"`

	// Projection configuration for mapping pointer rays onto the canvas.
	Projection ProjectionConfig `toml:"projection" json:"projection" yaml:"projection"`

	// Mirrors configuration for symmetric painting.
	Mirrors MirrorConfig `toml:"mirrors" json:"mirrors" yaml:"mirrors"`

	// Interaction configuration for gesture behavior.
	Interaction InteractionConfig `toml:"interaction" json:"interaction" yaml:"interaction"`

	// Cache configuration for the on-disk stroke buffer.
	Cache CacheConfig `toml:"cache" json:"cache" yaml:"cache"`

	// Journal configuration for crash recovery.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Archive configuration for the session database.
	Archive ArchiveConfig `toml:"archive" json:"archive" yaml:"archive"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// BrushConfig holds the initial brush parameters.
type BrushConfig struct {
	// Radius is the brush radius in canvas units.
	Radius float64 `toml:"radius" json:"radius" yaml:"radius"`

	// Opacity is the stroke opacity, 0 to 1.
	Opacity float64 `toml:"opacity" json:"opacity" yaml:"opacity"`

	// Tool is the tool identifier written into each stroke slot.
	Tool int `toml:"tool" json:"tool" yaml:"tool"`

	// Color is the stroke color as [r, g, b, a], components 0 to 1.
	Color []float64 `toml:"color" json:"color" yaml:"color"`

	// PressureEnabled scales the brush radius by tablet pressure.
	PressureEnabled bool `toml:"pressure_enabled" json:"pressure_enabled" yaml:"pressure_enabled"`
}

// ProjectionConfig holds the pointer-ray projection settings.
type ProjectionConfig struct {
	// Mode is the projection target: "xy", "yz", "zx", "screen", or "surface".
	Mode string `toml:"mode" json:"mode" yaml:"mode"`

	// Center anchors plane projections as [x, y, z].
	Center []float64 `toml:"center" json:"center" yaml:"center"`
}

// MirrorConfig declares the mirror transform set. The identity
// transform is always implicit first; axes and explicit transforms
// append to it.
type MirrorConfig struct {
	// Axes lists reflection axes: "x", "y", or "z".
	Axes []string `toml:"axes" json:"axes" yaml:"axes"`

	// Transforms holds optional explicit mirror matrices, each a
	// row-major list of 16 numbers.
	Transforms [][]float64 `toml:"transforms" json:"transforms" yaml:"transforms"`
}

// InteractionConfig holds gesture behavior toggles.
type InteractionConfig struct {
	// Masked restricts drawing to strokes that begin on the surface.
	Masked bool `toml:"masked" json:"masked" yaml:"masked"`

	// FullStrokeErase makes the eraser remove whole strokes instead of
	// single segments.
	FullStrokeErase bool `toml:"full_stroke_erase" json:"full_stroke_erase" yaml:"full_stroke_erase"`
}

// CacheConfig holds the on-disk stroke buffer settings.
type CacheConfig struct {
	// Path is the cache file path. A printf-style %d verb substitutes
	// the current frame number.
	Path string `toml:"path" json:"path" yaml:"path"`

	// AutoSave writes the buffer to the cache file on exit.
	AutoSave bool `toml:"auto_save" json:"auto_save" yaml:"auto_save"`

	// Watch reloads the buffer when the cache file changes on disk.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`

	// DebounceMs is the watch debounce interval in milliseconds.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// JournalConfig holds the crash-recovery journal settings.
type JournalConfig struct {
	// Enabled determines whether stroke commits are journaled.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the journal file path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// ArchiveConfig holds the session archive settings.
type ArchiveConfig struct {
	// Enabled determines whether sessions are archived.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := HpaintDir()

	return &Config{
		Version: Version,
		Brush: BrushConfig{
			Radius:          0.05,
			Opacity:         1.0,
			Tool:            0,
			Color:           []float64{1, 1, 1, 1},
			PressureEnabled: true,
		},
		Projection: ProjectionConfig{
			Mode:   "screen",
			Center: []float64{0, 0, 0},
		},
		Mirrors: MirrorConfig{
			Axes:       []string{},
			Transforms: [][]float64{},
		},
		Interaction: InteractionConfig{
			Masked:          true,
			FullStrokeErase: false,
		},
		Cache: CacheConfig{
			Path:       filepath.Join(dir, "cache", "strokes.hpg"),
			AutoSave:   true,
			Watch:      true,
			DebounceMs: 100,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "hpaint.journal"),
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "sessions.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "hpaint.log"),
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// HpaintDir returns the base hpaint data directory.
// Uses platform-specific paths or HPAINT_DATA_DIR environment override.
func HpaintDir() string {
	if envDir := os.Getenv("HPAINT_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Cache.Path),
		filepath.Dir(c.Journal.Path),
		filepath.Dir(c.Archive.Path),
		filepath.Dir(c.Logging.FilePath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with HPAINT_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("HPAINT_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("HPAINT_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("HPAINT_ARCHIVE_PATH"); v != "" {
		c.Archive.Path = v
	}
	if v := os.Getenv("HPAINT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HPAINT_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("HPAINT_PROJECTION_MODE"); v != "" {
		c.Projection.Mode = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := Config{
		Version:     c.Version,
		Brush:       c.Brush,
		Projection:  c.Projection,
		Mirrors:     c.Mirrors,
		Interaction: c.Interaction,
		Cache:       c.Cache,
		Journal:     c.Journal,
		Archive:     c.Archive,
		Logging:     c.Logging,
	}

	// Deep copy slices
	clone.Brush.Color = append([]float64{}, c.Brush.Color...)
	clone.Projection.Center = append([]float64{}, c.Projection.Center...)
	clone.Mirrors.Axes = append([]string{}, c.Mirrors.Axes...)
	clone.Mirrors.Transforms = make([][]float64, len(c.Mirrors.Transforms))
	for i, row := range c.Mirrors.Transforms {
		clone.Mirrors.Transforms[i] = append([]float64{}, row...)
	}

	return &clone
}

// ParseMode maps a projection mode name to its engine value.
func ParseMode(s string) (project.Mode, error) {
	switch s {
	case "xy":
		return project.PlaneXY, nil
	case "yz":
		return project.PlaneYZ, nil
	case "zx":
		return project.PlaneZX, nil
	case "screen":
		return project.PlaneScreen, nil
	case "surface":
		return project.Surface, nil
	default:
		return 0, fmt.Errorf("unknown projection mode %q (valid: xy, yz, zx, screen, surface)", s)
	}
}

// ModeName returns the configuration name of an engine projection mode.
func ModeName(m project.Mode) string {
	switch m {
	case project.PlaneXY:
		return "xy"
	case project.PlaneYZ:
		return "yz"
	case project.PlaneZX:
		return "zx"
	case project.PlaneScreen:
		return "screen"
	case project.Surface:
		return "surface"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Params builds the engine projection parameters from the configuration.
func (p *ProjectionConfig) Params() (project.Params, error) {
	mode, err := ParseMode(p.Mode)
	if err != nil {
		return project.Params{}, err
	}

	var center math32.Vector3
	if len(p.Center) == 3 {
		center = math32.Vec3(float32(p.Center[0]), float32(p.Center[1]), float32(p.Center[2]))
	}

	return project.Params{Mode: mode, Center: center}, nil
}

// ExplicitMatrices converts the explicit transform rows to matrices.
// Rows that are not 16 numbers long are skipped; Validate flags them.
func (m *MirrorConfig) ExplicitMatrices() []math32.Matrix4 {
	var out []math32.Matrix4
	for _, row := range m.Transforms {
		if len(row) != 16 {
			continue
		}
		var mat math32.Matrix4
		// Rows are row-major in the file; math32 stores column-major.
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				mat[c*4+r] = float32(row[r*4+c])
			}
		}
		out = append(out, mat)
	}
	return out
}

// BrushColor returns the configured color as four float32 components.
// Short or missing color lists fall back to opaque white.
func (b *BrushConfig) BrushColor() [4]float32 {
	col := [4]float32{1, 1, 1, 1}
	if len(b.Color) == 4 {
		for i, v := range b.Color {
			col[i] = float32(v)
		}
	}
	return col
}
