package config

import "time"

// Default values for configuration fields.
const (
	// Library defaults
	DefaultLibraryPath             = "./library"
	DefaultLibraryDebounceInterval = 250 * time.Millisecond
	DefaultGitBranch               = "main"
	DefaultGitAuthType             = "none"
	DefaultGitCloneDepth           = 1
	DefaultGitTimeout              = 30 * time.Second
	DefaultGitSyncSchedule         = "*/5 * * * *"

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultStorageSQLitePath  = "data/charter.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Evidence defaults
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLitePath           = "data/evidence.db"
	DefaultEvidenceRecorderAsyncBuffer  = 1000
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRecorderMaxFieldLen  = 500
	DefaultEvidenceQueryDefaultLimit    = 100
	DefaultEvidenceQueryMaxLimit        = 10000

	// Approval defaults
	DefaultEscalationSchedule = "0 * * * *"
	DefaultReviewCycleMonths  = 12

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "mercator"
	DefaultMetricsSubsystem     = "charter"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 1.0
	DefaultTracingServiceName   = "mercator-charter"
	DefaultOTLPTimeout          = 10 * time.Second
)

// NewDefault returns a configuration with every default applied. Settings
// whose zero value is meaningful (booleans that default to true, an empty
// escalation schedule) are only set here; ApplyDefaults cannot tell an
// omitted value from an explicit one. LoadConfig decodes over NewDefault.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Approval.EscalationSchedule = DefaultEscalationSchedule
	cfg.Library.Git.SyncSchedule = DefaultGitSyncSchedule
	cfg.Catalog.Builtin = true
	cfg.Storage.SQLite.WALMode = true
	cfg.Evidence.Enabled = true
	cfg.Evidence.SQLite.WALMode = true
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.OTLP.Insecure = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults.
func ApplyDefaults(cfg *Config) {
	// Library
	if cfg.Library.Path == "" {
		cfg.Library.Path = DefaultLibraryPath
	}
	if cfg.Library.DebounceInterval == 0 {
		cfg.Library.DebounceInterval = DefaultLibraryDebounceInterval
	}
	if cfg.Library.Git.Branch == "" {
		cfg.Library.Git.Branch = DefaultGitBranch
	}
	if cfg.Library.Git.Auth.Type == "" {
		cfg.Library.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Library.Git.Clone.Depth == 0 {
		cfg.Library.Git.Clone.Depth = DefaultGitCloneDepth
	}
	if cfg.Library.Git.Timeout == 0 {
		cfg.Library.Git.Timeout = DefaultGitTimeout
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	applySQLiteDefaults(&cfg.Storage.SQLite, DefaultStorageSQLitePath)

	// Evidence
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = DefaultEvidenceBackend
	}
	applySQLiteDefaults(&cfg.Evidence.SQLite, DefaultEvidenceSQLitePath)
	if cfg.Evidence.Recorder.AsyncBuffer == 0 {
		cfg.Evidence.Recorder.AsyncBuffer = DefaultEvidenceRecorderAsyncBuffer
	}
	if cfg.Evidence.Recorder.WriteTimeout == 0 {
		cfg.Evidence.Recorder.WriteTimeout = DefaultEvidenceRecorderWriteTimeout
	}
	if cfg.Evidence.Recorder.MaxFieldLength == 0 {
		cfg.Evidence.Recorder.MaxFieldLength = DefaultEvidenceRecorderMaxFieldLen
	}
	if cfg.Evidence.Query.DefaultLimit == 0 {
		cfg.Evidence.Query.DefaultLimit = DefaultEvidenceQueryDefaultLimit
	}
	if cfg.Evidence.Query.MaxLimit == 0 {
		cfg.Evidence.Query.MaxLimit = DefaultEvidenceQueryMaxLimit
	}

	// Approval
	if cfg.Approval.DefaultReviewCycleMonths == 0 {
		cfg.Approval.DefaultReviewCycleMonths = DefaultReviewCycleMonths
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}

func applySQLiteDefaults(cfg *SQLiteConfig, path string) {
	if cfg.Path == "" {
		cfg.Path = path
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}
