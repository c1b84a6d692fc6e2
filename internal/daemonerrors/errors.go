// Package daemonerrors defines the structured error taxonomy used across
// the daemon's sysfs, BLE, and RPC boundaries. No panic crosses a worker
// loop iteration, and no bare error crosses an RPC method return; every failure
// is classified into one of the kinds below so callers can decide whether
// to retry, self-heal, or just warn and move on.
package daemonerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way spec section 7 enumerates them.
type Kind string

const (
	// KindIONotPresent means a sysfs path or external tool is missing;
	// the feature is reported unavailable and nothing is logged.
	KindIONotPresent Kind = "IO_NOT_PRESENT"

	// KindIOTransient means a read or write failed but a retry on the
	// next tick is expected to succeed.
	KindIOTransient Kind = "IO_TRANSIENT"

	// KindParseInvalid means a JSON payload or fan table was malformed;
	// the caller (client) is the source of truth, nothing is mutated.
	KindParseInvalid Kind = "PARSE_INVALID"

	// KindStateInvalid means a referenced profile id does not exist;
	// callers self-heal to the first known profile.
	KindStateInvalid Kind = "STATE_INVALID"

	// KindBLETimeout means a GATT operation exceeded its budget; treated
	// as transient, the state machine advances regardless.
	KindBLETimeout Kind = "BLE_TIMEOUT"

	// KindHardwareRejection means the kernel rejected a sysfs write
	// (EINVAL or similar); the value is left as-is.
	KindHardwareRejection Kind = "HARDWARE_REJECTION"
)

// DaemonError is the structured error type returned by internal daemon
// operations. It never crosses an RPC method boundary as an error value —
// RPC methods translate it into a bool/JSON return per spec section 7.
type DaemonError struct {
	Kind    Kind
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *DaemonError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", e.Kind, e.Op, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

func (e *DaemonError) Unwrap() error { return e.Cause }

// Is matches on Kind so errors.Is(err, &DaemonError{Kind: KindIOTransient})
// works without comparing messages.
func (e *DaemonError) Is(target error) bool {
	var t *DaemonError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Retryable reports whether the operation that produced this error is
// expected to succeed if retried on the next tick.
func (e *DaemonError) Retryable() bool {
	return e.Kind == KindIOTransient || e.Kind == KindBLETimeout
}

// New constructs a DaemonError of the given kind.
func New(kind Kind, op, message string) *DaemonError {
	return &DaemonError{Kind: kind, Op: op, Message: message}
}

// NewPath constructs a DaemonError bound to a sysfs or device path.
func NewPath(kind Kind, op, path, message string) *DaemonError {
	return &DaemonError{Kind: kind, Op: op, Path: path, Message: message}
}

// Wrap promotes a bare error into a DaemonError of the given kind,
// preserving it as Cause, or returns it unchanged if already one.
func Wrap(err error, kind Kind, op string) *DaemonError {
	if err == nil {
		return nil
	}
	var existing *DaemonError
	if errors.As(err, &existing) {
		return existing
	}
	return &DaemonError{Kind: kind, Op: op, Message: err.Error(), Cause: err}
}

// IsKind reports whether err is a DaemonError of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *DaemonError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
