// Package errors provides standardized error handling for the ospfatlas
// system. It implements structured error types with proper wrapping and
// classification following Go 1.20+ error handling best practices.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Job-related errors
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotRunning   = errors.New("job is not running")
	ErrJobNotTerminal  = errors.New("job has not reached a terminal state")
	ErrInvalidJobSpec  = errors.New("invalid job specification")
	ErrNoDevices       = errors.New("job requires at least one device")
	ErrExecutorDrained = errors.New("executor is shutting down")

	// Inventory-related errors
	ErrDeviceNotFound = errors.New("device not found")

	// Topology-related errors
	ErrNoBaseline     = errors.New("no baseline topology snapshot")
	ErrDraftExists    = errors.New("a draft topology is already open")
	ErrDraftNotFound  = errors.New("no draft topology is open")
	ErrEdgeNotFound   = errors.New("edge not found in draft topology")
	ErrOutputNotFound = errors.New("command output not found")
)

// ConfigError represents a fatal configuration problem: bad or missing
// credentials, an unsupported device dialect, an unusable storage path.
// Configuration errors are surfaced immediately and never retried.
type ConfigError struct {
	Component string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s.%s: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Component, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConnectError represents a failure to establish a device session:
// unreachable host, rejected authentication, or connect timeout.
type ConnectError struct {
	Device   string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: after %d attempt(s): %v", e.Device, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// CommandErrorKind classifies how a command execution failed.
type CommandErrorKind string

const (
	CommandTimeout      CommandErrorKind = "timeout"
	CommandProtocol     CommandErrorKind = "protocol"
	CommandDisconnected CommandErrorKind = "disconnected"
)

// CommandError represents a failure while running a single command on an
// established session.
type CommandError struct {
	Device  string
	Command string
	Kind    CommandErrorKind
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q on %s: %s: %v", e.Command, e.Device, e.Kind, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ParseError represents an unparseable OSPF record for one device. The
// device is excluded from the topology snapshot with the reason recorded;
// a missing metric must never be replaced with a default cost.
type ParseError struct {
	DeviceID string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.DeviceID, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.DeviceID, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// AnalysisError represents a per-pair analysis problem, e.g. a disconnected
// graph pair. It is recorded and excluded from ratio denominators, never
// treated as a crash.
type AnalysisError struct {
	Source string
	Target string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis %s->%s: %v", e.Source, e.Target, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors

func NewConfigError(component, field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Component: component, Field: field, Err: err}
}

func NewConnectError(device string, attempts int, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectError{Device: device, Attempts: attempts, Err: err}
}

func NewCommandError(device, command string, kind CommandErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Device: device, Command: command, Kind: kind, Err: err}
}

func NewParseError(deviceID, reason string, err error) error {
	return &ParseError{DeviceID: deviceID, Reason: reason, Err: err}
}

func NewAnalysisError(source, target string, err error) error {
	if err == nil {
		return nil
	}
	return &AnalysisError{Source: source, Target: target, Err: err}
}

// Re-export standard library helpers so callers only import this package.

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func New(text string) error {
	return errors.New(text)
}
