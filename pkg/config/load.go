package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHARTER_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected so that
// typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefault()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named CHARTER_SECTION_FIELD (for example
// CHARTER_STORAGE_SQLITE_PATH). Environment variables take precedence over
// the file. An empty path skips the file and starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file over defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Values that do
// not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Library
	envString("LIBRARY_PATH", &cfg.Library.Path)
	envBool("LIBRARY_WATCH", &cfg.Library.Watch)
	envDuration("LIBRARY_DEBOUNCE_INTERVAL", &cfg.Library.DebounceInterval)
	envBool("LIBRARY_GIT_ENABLED", &cfg.Library.Git.Enabled)
	envString("LIBRARY_GIT_REPOSITORY", &cfg.Library.Git.Repository)
	envString("LIBRARY_GIT_BRANCH", &cfg.Library.Git.Branch)
	envString("LIBRARY_GIT_PATH", &cfg.Library.Git.Path)
	envString("LIBRARY_GIT_AUTH_TYPE", &cfg.Library.Git.Auth.Type)
	envString("LIBRARY_GIT_AUTH_TOKEN", &cfg.Library.Git.Auth.Token)
	envString("LIBRARY_GIT_AUTH_SSH_KEY_PATH", &cfg.Library.Git.Auth.SSHKeyPath)
	envString("LIBRARY_GIT_AUTH_SSH_KEY_PASSPHRASE", &cfg.Library.Git.Auth.SSHKeyPassphrase)
	envString("LIBRARY_GIT_CLONE_LOCAL_PATH", &cfg.Library.Git.Clone.LocalPath)
	if val, ok := os.LookupEnv(EnvPrefix + "LIBRARY_GIT_SYNC_SCHEDULE"); ok {
		cfg.Library.Git.SyncSchedule = val
	}

	// Catalog
	envBool("CATALOG_BUILTIN", &cfg.Catalog.Builtin)
	if val := os.Getenv(EnvPrefix + "CATALOG_PATHS"); val != "" {
		cfg.Catalog.Paths = splitList(val)
	}

	// Storage
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)

	// Evidence
	envBool("EVIDENCE_ENABLED", &cfg.Evidence.Enabled)
	envString("EVIDENCE_BACKEND", &cfg.Evidence.Backend)
	envString("EVIDENCE_SQLITE_PATH", &cfg.Evidence.SQLite.Path)

	// Approval
	if val, ok := os.LookupEnv(EnvPrefix + "APPROVAL_ESCALATION_SCHEDULE"); ok {
		cfg.Approval.EscalationSchedule = val
	}
	envInt("APPROVAL_DEFAULT_REVIEW_CYCLE_MONTHS", &cfg.Approval.DefaultReviewCycleMonths)

	// Telemetry
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
