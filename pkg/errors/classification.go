package errors

import "errors"

// Classification helpers. These drive retry decisions in the executor and
// status-code mapping in the API layer.

// IsConfiguration reports whether err is a fatal configuration error.
func IsConfiguration(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsConnect reports whether err is a connection-establishment failure.
func IsConnect(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// IsCommand reports whether err is a command-execution failure.
func IsCommand(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// IsCommandTimeout reports whether err is a command failure caused by the
// command's class timeout elapsing.
func IsCommandTimeout(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Kind == CommandTimeout
}

// IsDisconnected reports whether err is a command failure caused by the
// session dropping mid-command. Remaining commands for the device cannot run.
func IsDisconnected(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Kind == CommandDisconnected
}

// IsParse reports whether err is a topology parse failure.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsAnalysis reports whether err is a per-pair analysis error.
func IsAnalysis(err error) bool {
	var ae *AnalysisError
	return errors.As(err, &ae)
}

// IsRetryable reports whether the operation that produced err may be retried.
// Only connection establishment is retryable; configuration errors never are,
// and command execution is retried only when its command class opts in.
func IsRetryable(err error) bool {
	if IsConfiguration(err) {
		return false
	}
	return IsConnect(err)
}

// IsNotFound reports whether err indicates a missing entity of any store.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrDraftNotFound) ||
		errors.Is(err, ErrNoBaseline) ||
		errors.Is(err, ErrEdgeNotFound) ||
		errors.Is(err, ErrOutputNotFound)
}

// IsConflict reports whether err indicates a state conflict the caller can
// resolve (e.g. a draft already open, stopping a non-running job).
func IsConflict(err error) bool {
	return errors.Is(err, ErrDraftExists) ||
		errors.Is(err, ErrJobNotRunning) ||
		errors.Is(err, ErrJobNotTerminal)
}
