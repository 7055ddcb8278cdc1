package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateLibrary(&cfg.Library)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateApproval(&cfg.Approval)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateLibrary(cfg *LibraryConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" && !cfg.Git.Enabled {
		errs = append(errs, FieldError{Field: "library.path", Message: "library path is required"})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "library.debounce_interval", Message: "must be non-negative"})
	}

	if !cfg.Git.Enabled {
		return errs
	}
	if cfg.Git.Repository == "" {
		errs = append(errs, FieldError{Field: "library.git.repository", Message: "repository URL is required when git is enabled"})
	}
	if cfg.Git.Clone.Depth < 0 {
		errs = append(errs, FieldError{Field: "library.git.clone.depth", Message: "must be non-negative"})
	}
	if cfg.Git.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "library.git.timeout", Message: "must be positive"})
	}
	if cfg.Git.SyncSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Git.SyncSchedule); err != nil {
			errs = append(errs, FieldError{Field: "library.git.sync_schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	switch cfg.Git.Auth.Type {
	case "none":
	case "token":
		if cfg.Git.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "library.git.auth.token", Message: "token auth requires a token"})
		}
	case "ssh":
		if cfg.Git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "library.git.auth.ssh_key_path", Message: "ssh auth requires a key path"})
		}
	default:
		errs = append(errs, FieldError{Field: "library.git.auth.type", Message: fmt.Sprintf("unknown auth type %q (want token, ssh or none)", cfg.Git.Auth.Type)})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	switch cfg.Backend {
	case "memory":
		return nil
	case "sqlite":
		return validateSQLite("storage.sqlite", &cfg.SQLite)
	default:
		return []FieldError{{Field: "storage.backend", Message: fmt.Sprintf("unknown backend %q (want memory or sqlite)", cfg.Backend)}}
	}
}

func validateEvidence(cfg *EvidenceConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		errs = append(errs, validateSQLite("evidence.sqlite", &cfg.SQLite)...)
	default:
		errs = append(errs, FieldError{Field: "evidence.backend", Message: fmt.Sprintf("unknown backend %q (want memory or sqlite)", cfg.Backend)})
	}

	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.async_buffer", Message: "must be non-negative"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.write_timeout", Message: "must be positive"})
	}
	if cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		errs = append(errs, FieldError{Field: "evidence.query.default_limit", Message: "must not exceed max_limit"})
	}
	return errs
}

func validateSQLite(prefix string, cfg *SQLiteConfig) []FieldError {
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: prefix + ".path", Message: "database path is required"})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, FieldError{Field: prefix + ".max_open_conns", Message: "must be at least 1"})
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{Field: prefix + ".max_idle_conns", Message: "must not exceed max_open_conns"})
	}
	return errs
}

func validateApproval(cfg *ApprovalConfig) []FieldError {
	var errs []FieldError
	if cfg.EscalationSchedule != "" {
		if _, err := cron.ParseStandard(cfg.EscalationSchedule); err != nil {
			errs = append(errs, FieldError{Field: "approval.escalation_schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	if cfg.DefaultReviewCycleMonths < 1 {
		errs = append(errs, FieldError{Field: "approval.default_review_cycle_months", Message: "must be at least 1"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		field := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{Field: field + ".pattern", Message: fmt.Sprintf("invalid regex: %v", err)})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("unknown sampler %q", cfg.Tracing.Sampler)})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}
	return errs
}
