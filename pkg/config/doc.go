// Package config provides configuration management for Mercator Charter.
//
// Configuration is YAML decoded over defaults, then environment overrides,
// then validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("charter.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CHARTER_SECTION_FIELD:
//
//   - CHARTER_LIBRARY_PATH overrides library.path
//   - CHARTER_STORAGE_SQLITE_PATH overrides storage.sqlite.path
//   - CHARTER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Singleton
//
// Commands call Initialize once and read the result with GetConfig. Library
// code takes an explicit *Config.
//
// # Validation
//
// Validate collects every problem instead of stopping at the first:
//
//	configuration validation failed with 2 errors:
//	  - storage.backend: unknown backend "postgres" (want memory or sqlite)
//	  - approval.escalation_schedule: invalid cron expression: ...
//
// # Example Configuration
//
//	library:
//	  path: ./library
//	  watch: true
//
//	catalog:
//	  builtin: true
//	  paths: [./catalogs/state.yaml]
//
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: data/charter.db
//
//	approval:
//	  escalation_schedule: "0 8 * * 1-5"
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
