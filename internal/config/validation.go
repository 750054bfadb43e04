package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	// Validate version
	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if brushErrs := validateBrush(&c.Brush); len(brushErrs) > 0 {
		errs = append(errs, brushErrs...)
	}

	if projErrs := validateProjection(&c.Projection); len(projErrs) > 0 {
		errs = append(errs, projErrs...)
	}

	if mirrorErrs := validateMirrors(&c.Mirrors); len(mirrorErrs) > 0 {
		errs = append(errs, mirrorErrs...)
	}

	if cacheErrs := validateCache(&c.Cache); len(cacheErrs) > 0 {
		errs = append(errs, cacheErrs...)
	}

	if journalErrs := validateJournal(&c.Journal); len(journalErrs) > 0 {
		errs = append(errs, journalErrs...)
	}

	if archiveErrs := validateArchive(&c.Archive); len(archiveErrs) > 0 {
		errs = append(errs, archiveErrs...)
	}

	if loggingErrs := validateLogging(&c.Logging); len(loggingErrs) > 0 {
		errs = append(errs, loggingErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateBrush(b *BrushConfig) ValidationErrors {
	var errs ValidationErrors

	if b.Radius <= 0 {
		errs = append(errs, ValidationError{
			Field:   "brush.radius",
			Message: "radius must be positive",
		})
	}

	if b.Opacity < 0 || b.Opacity > 1 {
		errs = append(errs, ValidationError{
			Field:   "brush.opacity",
			Message: fmt.Sprintf("opacity must be between 0 and 1, got %g", b.Opacity),
		})
	}

	if len(b.Color) != 0 && len(b.Color) != 4 {
		errs = append(errs, ValidationError{
			Field:   "brush.color",
			Message: fmt.Sprintf("color must be [r, g, b, a], got %d components", len(b.Color)),
		})
	}
	for i, comp := range b.Color {
		if comp < 0 || comp > 1 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("brush.color[%d]", i),
				Message: fmt.Sprintf("component must be between 0 and 1, got %g", comp),
			})
		}
	}

	return errs
}

func validateProjection(p *ProjectionConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := ParseMode(p.Mode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "projection.mode",
			Message: fmt.Sprintf("unknown mode %q (valid: xy, yz, zx, screen, surface)", p.Mode),
		})
	}

	if len(p.Center) != 0 && len(p.Center) != 3 {
		errs = append(errs, ValidationError{
			Field:   "projection.center",
			Message: fmt.Sprintf("center must be [x, y, z], got %d components", len(p.Center)),
		})
	}

	return errs
}

func validateMirrors(m *MirrorConfig) ValidationErrors {
	var errs ValidationErrors

	// Unknown axes are skipped at runtime, so they warn rather than fail.
	for i, axis := range m.Axes {
		switch strings.ToLower(strings.TrimSpace(axis)) {
		case "x", "y", "z":
		default:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("mirrors.axes[%d]", i),
				Message: fmt.Sprintf("unknown axis %q (valid: x, y, z); ignored", axis),
			})
		}
	}

	for i, row := range m.Transforms {
		if len(row) != 16 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("mirrors.transforms[%d]", i),
				Message: fmt.Sprintf("transform must have 16 numbers (4x4 row-major), got %d", len(row)),
			})
		}
	}

	return errs
}

func validateCache(c *CacheConfig) ValidationErrors {
	var errs ValidationErrors

	if c.Path == "" && (c.AutoSave || c.Watch) {
		errs = append(errs, ValidationError{
			Field:   "cache.path",
			Message: "path is required when auto_save or watch is enabled",
		})
	}

	if c.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}
	if c.DebounceMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "cache.debounce_ms",
			Message: "debounce cannot exceed 60000ms (1 minute)",
		})
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if j.Enabled && j.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "journal.path",
			Message: "path is required when the journal is enabled",
		})
	}

	return errs
}

func validateArchive(a *ArchiveConfig) ValidationErrors {
	var errs ValidationErrors

	if a.Enabled && a.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.path",
			Message: "path is required when the archive is enabled",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "file", "both":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid output %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "file path is required when output is file or both",
		})
	}

	if l.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size cannot be negative",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	// Some fields are warnings, not errors
	warningFields := []string{
		"mirrors.axes", // Unknown axes are skipped, not fatal
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}
