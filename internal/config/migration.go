package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// MigrateConfig migrates a configuration from an older version to the current version.
// It automatically creates a backup before migration.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil // No migration needed
	}

	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   Version,
	}

	// Create backup before migration
	if configPath != "" {
		backup, err := backupConfig(configPath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not create backup: %v", err))
		} else {
			result.Backup = backup
		}
	}

	// Apply migrations in sequence
	for cfg.Version < Version {
		changes, warnings, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

// applyMigration applies a single version upgrade.
func applyMigration(cfg *Config) (changes []string, warnings []string, err error) {
	switch cfg.Version {
	case 1:
		changes, warnings = migrateV1ToV2(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown version %d", cfg.Version)
	}

	cfg.Version++
	return changes, warnings, nil
}

// migrateV1ToV2 migrates from version 1 to version 2.
// V1 predates the journal and archive sections.
func migrateV1ToV2(cfg *Config) (changes []string, warnings []string) {
	dir := HpaintDir()

	if cfg.Journal.Path == "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = filepath.Join(dir, "hpaint.journal")
		changes = append(changes, "enabled crash-recovery journal")
	}

	if cfg.Archive.Path == "" {
		cfg.Archive.Enabled = true
		cfg.Archive.Path = filepath.Join(dir, "sessions.db")
		changes = append(changes, "enabled session archive")
	}

	if cfg.Cache.DebounceMs == 0 {
		cfg.Cache.DebounceMs = 100
		changes = append(changes, "set cache watch debounce to 100ms")
	}

	return changes, warnings
}

// backupConfig creates a backup of the config file.
func backupConfig(configPath string) (string, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return "", nil // No file to backup
	}

	// Read original
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}

	// Create backup with timestamp
	timestamp := time.Now().Format("20060102-150405")
	backupPath := configPath + ".backup-" + timestamp

	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	return backupPath, nil
}

// MigrateLegacyConfig converts a legacy flat v1 configuration map to the
// current format. Early builds stored settings as a flat JSON map.
func MigrateLegacyConfig(data map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	// Extract version
	if v, ok := data["version"].(float64); ok {
		cfg.Version = int(v)
	} else {
		cfg.Version = 1 // Assume version 1 if not specified
	}

	// Extract legacy flat fields
	if radius, ok := data["brush_radius"].(float64); ok {
		cfg.Brush.Radius = radius
	}

	if opacity, ok := data["brush_opacity"].(float64); ok {
		cfg.Brush.Opacity = opacity
	}

	if mode, ok := data["projection_mode"].(string); ok {
		cfg.Projection.Mode = mode
	}

	if axes, ok := data["mirror_axes"].([]interface{}); ok {
		cfg.Mirrors.Axes = nil
		for _, a := range axes {
			if s, ok := a.(string); ok {
				cfg.Mirrors.Axes = append(cfg.Mirrors.Axes, s)
			}
		}
	}

	if cachePath, ok := data["cache_path"].(string); ok {
		cfg.Cache.Path = cachePath
	}

	if journalPath, ok := data["journal_path"].(string); ok {
		cfg.Journal.Path = journalPath
	}

	if archivePath, ok := data["archive_path"].(string); ok {
		cfg.Archive.Path = archivePath
	}

	if logPath, ok := data["log_path"].(string); ok {
		cfg.Logging.FilePath = logPath
	}

	// Extract nested sections from newer configs
	if brush, ok := data["brush"].(map[string]interface{}); ok {
		if r, ok := brush["radius"].(float64); ok {
			cfg.Brush.Radius = r
		}
		if o, ok := brush["opacity"].(float64); ok {
			cfg.Brush.Opacity = o
		}
		if p, ok := brush["pressure_enabled"].(bool); ok {
			cfg.Brush.PressureEnabled = p
		}
	}

	if cache, ok := data["cache"].(map[string]interface{}); ok {
		if p, ok := cache["path"].(string); ok {
			cfg.Cache.Path = p
		}
		if w, ok := cache["watch"].(bool); ok {
			cfg.Cache.Watch = w
		}
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a file.
func SaveConfig(cfg *Config, path string) error {
	// Determine format from extension
	ext := filepath.Ext(path)

	var data []byte
	var err error

	switch ext {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data = []byte(generateTOML(cfg))
	default:
		// Default to TOML
		data = []byte(generateTOML(cfg))
	}

	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Write with restrictive permissions
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// generateTOML generates a well-formatted TOML configuration file.
func generateTOML(cfg *Config) string {
	return fmt.Sprintf(`# hpaint configuration
# Version %d

version = %d

[brush]
radius = %s
opacity = %s
tool = %d
color = %s
pressure_enabled = %t

[projection]
mode = "%s"
center = %s

[mirrors]
axes = %s
transforms = %s

[interaction]
masked = %t
full_stroke_erase = %t

[cache]
path = "%s"
auto_save = %t
watch = %t
debounce_ms = %d

[journal]
enabled = %t
path = "%s"

[archive]
enabled = %t
path = "%s"

[logging]
level = "%s"
format = "%s"
output = "%s"
file_path = "%s"
max_size_mb = %d
max_backups = %d
max_age_days = %d
compress = %t
`,
		Version,
		cfg.Version,
		fmtFloat(cfg.Brush.Radius),
		fmtFloat(cfg.Brush.Opacity),
		cfg.Brush.Tool,
		toTOMLFloatArray(cfg.Brush.Color),
		cfg.Brush.PressureEnabled,
		cfg.Projection.Mode,
		toTOMLFloatArray(cfg.Projection.Center),
		toTOMLArray(cfg.Mirrors.Axes),
		toTOMLMatrixArray(cfg.Mirrors.Transforms),
		cfg.Interaction.Masked,
		cfg.Interaction.FullStrokeErase,
		cfg.Cache.Path,
		cfg.Cache.AutoSave,
		cfg.Cache.Watch,
		cfg.Cache.DebounceMs,
		cfg.Journal.Enabled,
		cfg.Journal.Path,
		cfg.Archive.Enabled,
		cfg.Archive.Path,
		cfg.Logging.Level,
		cfg.Logging.Format,
		cfg.Logging.Output,
		cfg.Logging.FilePath,
		cfg.Logging.MaxSizeMB,
		cfg.Logging.MaxBackups,
		cfg.Logging.MaxAgeDays,
		cfg.Logging.Compress,
	)
}

// fmtFloat formats a float as a valid TOML float literal.
// TOML requires a decimal point or exponent; %g alone can emit bare integers.
func fmtFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func toTOMLArray(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	result := "["
	for i, item := range items {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf(`"%s"`, item)
	}
	result += "]"
	return result
}

func toTOMLFloatArray(items []float64) string {
	if len(items) == 0 {
		return "[]"
	}
	result := "["
	for i, item := range items {
		if i > 0 {
			result += ", "
		}
		result += fmtFloat(item)
	}
	result += "]"
	return result
}

func toTOMLMatrixArray(rows [][]float64) string {
	if len(rows) == 0 {
		return "[]"
	}
	result := "["
	for i, row := range rows {
		if i > 0 {
			result += ", "
		}
		result += toTOMLFloatArray(row)
	}
	result += "]"
	return result
}

// GetMigrationHistory returns the migration history if stored in the data directory.
func GetMigrationHistory() ([]MigrationResult, error) {
	historyPath := filepath.Join(HpaintDir(), "migration_history.json")

	data, err := os.ReadFile(historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration history: %w", err)
	}

	var history []MigrationResult
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse migration history: %w", err)
	}

	return history, nil
}

// SaveMigrationHistory saves a migration result to the history file.
func SaveMigrationHistory(result *MigrationResult) error {
	historyPath := filepath.Join(HpaintDir(), "migration_history.json")

	// Load existing history
	history, err := GetMigrationHistory()
	if err != nil {
		history = nil // Start fresh if error
	}

	// Append new result
	history = append(history, *result)

	// Save
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode migration history: %w", err)
	}

	dir := filepath.Dir(historyPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(historyPath, data, 0600); err != nil {
		return fmt.Errorf("write migration history: %w", err)
	}

	return nil
}
