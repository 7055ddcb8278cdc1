package config

import "time"

// Config is the root configuration structure for Mercator Charter.
type Config struct {
	// Library locates the clause library: templates, clauses and approval
	// workflow definitions.
	Library LibraryConfig `yaml:"library"`

	// Catalog locates the compliance control catalogs.
	Catalog CatalogConfig `yaml:"catalog"`

	// Storage configures the policy, approval and clause repositories.
	Storage StorageConfig `yaml:"storage"`

	// Evidence configures the audit evidence trail.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Approval configures escalation and review scheduling.
	Approval ApprovalConfig `yaml:"approval"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LibraryConfig locates the clause library.
type LibraryConfig struct {
	// Path is a YAML file or a directory of YAML files.
	// Default: "./library"
	Path string `yaml:"path"`

	// Watch reloads the library when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a reload.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Git sources the library from a repository. When enabled, Path is
	// resolved inside the clone.
	Git GitSourceConfig `yaml:"git"`
}

// GitSourceConfig configures a git-hosted clause library.
type GitSourceConfig struct {
	// Enabled determines if the library is cloned from Repository.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS or SSH).
	// Example: "https://github.com/district/ai-policy-library.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path within the repository that holds the library files.
	// Default: "" (repository root)
	Path string `yaml:"path"`

	// Auth configures git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`

	// Timeout bounds clone and pull operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// SyncSchedule is a cron expression for pulling the branch in
	// "charter run". Empty disables periodic pulls.
	// Default: "*/5 * * * *"
	SyncSchedule string `yaml:"sync_schedule"`
}

// GitAuthConfig configures git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local clone before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`
}

// CatalogConfig locates compliance control catalogs.
type CatalogConfig struct {
	// Builtin loads the catalogs compiled into the binary.
	// Default: true
	Builtin bool `yaml:"builtin"`

	// Paths lists additional catalog files or directories. A catalog with
	// the same framework ID as a builtin one replaces it.
	Paths []string `yaml:"paths"`
}

// StorageConfig configures the repositories.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// EvidenceConfig configures the audit evidence trail.
type EvidenceConfig struct {
	// Enabled controls whether evidence is recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Query contains query configuration.
	Query QueryConfig `yaml:"query"`
}

// RecorderConfig contains evidence recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single evidence write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxFieldLength truncates summary fields.
	// Default: 500
	MaxFieldLength int `yaml:"max_field_length"`
}

// QueryConfig contains evidence query configuration.
type QueryConfig struct {
	// DefaultLimit applies when a query sets none.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps any query.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`
}

// ApprovalConfig configures approval escalation.
type ApprovalConfig struct {
	// EscalationSchedule is a cron expression for the escalation sweep.
	// Empty disables the sweep.
	// Default: "0 * * * *"
	EscalationSchedule string `yaml:"escalation_schedule"`

	// DefaultReviewCycleMonths applies to templates that set none.
	// Default: 12
	DefaultReviewCycleMonths int `yaml:"default_review_cycle_months"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts emails, phone numbers and SSNs from log output.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress serves the metrics endpoint in "charter run".
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "charter"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "mercator-charter"
	ServiceName string `yaml:"service_name"`

	// OTLP contains exporter options.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
