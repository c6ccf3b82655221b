package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *PulseError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *PulseError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// PersistenceFailure creates an error for a code mapping that could not be
// durably recorded.
func PersistenceFailure(code string, err error) *PulseError {
	return Wrap(err, ErrCodePersistence, fmt.Sprintf("failed to persist code %s", code)).
		WithDetail("code", code)
}

// CodeNotFound creates an error for a code that was never minted.
func CodeNotFound(code string) *PulseError {
	return New(ErrCodeCodeNotFound, fmt.Sprintf("code '%s' not found", code)).
		WithDetail("code", code)
}

// InvalidCode creates an error for text that is not shaped like a code.
func InvalidCode(text string) *PulseError {
	return New(ErrCodeInvalidCode, fmt.Sprintf("'%s' is not a valid code", text)).
		WithDetail("code", text)
}

// ItemNotFound creates an error for a code whose item is no longer in the
// current snapshot.
func ItemNotFound(code, key string) *PulseError {
	return New(ErrCodeItemNotFound, fmt.Sprintf("item %s is not in the current snapshot", code)).
		WithDetail("code", code).
		WithDetail("key", key)
}

// InvalidSection creates an error for an unknown or read-only section name.
func InvalidSection(section string) *PulseError {
	return New(ErrCodeInvalidSection, fmt.Sprintf("section '%s' does not accept items", section)).
		WithDetail("section", section)
}

// DaemonNotRunning creates an error for commands that need the daemon.
func DaemonNotRunning(socket string) *PulseError {
	return New(ErrCodeDaemonNotRunning, "pulse daemon is not running").
		WithDetail("socket", socket)
}
