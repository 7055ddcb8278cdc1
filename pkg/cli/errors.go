package cli

import (
	"errors"
	"fmt"

	"mercator-hq/charter/pkg/governance"
)

// Process exit codes. Scripts driving charter can branch on these instead of
// parsing messages.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUsage         = 2
	ExitValidation    = 3
	ExitNotFound      = 4
	ExitConflict      = 5
	ExitConfiguration = 6
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports bad flags or arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Message
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// Usagef creates a UsageError.
func Usagef(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		usage *UsageError
		cfg   *ConfigError
	)
	switch {
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &cfg):
		return ExitConfiguration
	}

	switch governance.KindOf(err) {
	case governance.KindValidation:
		return ExitValidation
	case governance.KindNotFound:
		return ExitNotFound
	case governance.KindConflict:
		return ExitConflict
	case governance.KindConfiguration:
		return ExitConfiguration
	}
	return ExitFailure
}
