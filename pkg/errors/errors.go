// Package errors provides structured error handling for the motion engine.
//
// Registration failures are returned to the caller as [ValidationError] or
// [CollisionError]. Everything else the engine recovers from internally
// (backend fallback, failing property setters, panics in observers) is
// reported to the global [ErrorHandler] and never interrupts the tick loop.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindValidation indicates a malformed animation spec.
	KindValidation
	// KindCollision indicates a caller-supplied id that is already registered.
	KindCollision
	// KindBackend indicates an effect backend failure.
	KindBackend
	// KindCallback indicates a failing property setter or observer.
	KindCallback
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindConfig indicates an invalid engine configuration.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCollision:
		return "collision"
	case KindBackend:
		return "backend"
	case KindCallback:
		return "callback"
	case KindPanic:
		return "panic"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against the typed errors below.
var (
	ErrValidation         = errors.New("invalid animation spec")
	ErrCollision          = errors.New("animation id already registered")
	ErrBackendUnavailable = errors.New("effect backend unavailable")
	ErrUnknownHandle      = errors.New("unknown animation handle")
	// ErrDeviceLost is wrapped by GPU errors after the device went away. The
	// effect selector answers it by re-detecting the device instead of
	// falling back per kind.
	ErrDeviceLost         = errors.New("gpu device lost")
	// ErrClosed is returned by Register after the scheduler is closed.
	ErrClosed             = errors.New("scheduler closed")
)

// MotionError represents a structured error reported by the engine.
type MotionError struct {
	// Op is the operation that failed (e.g., "engine.apply").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Handle is the animation handle involved, zero if none.
	Handle uint64
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *MotionError) Error() string {
	if e.Handle != 0 {
		return fmt.Sprintf("%s [%s] handle=%d: %v", e.Op, e.Kind, e.Handle, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *MotionError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "engine.notify").
	Op string
	// Handle is the animation whose callback panicked, or zero.
	Handle uint64
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	switch {
	case e.Op != "" && e.Handle != 0:
		return fmt.Sprintf("panic in %s handle=%d: %v", e.Op, e.Handle, e.Value)
	case e.Op != "":
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ValidationError reports a spec that violates the entry constraints.
// The entry is never created.
type ValidationError struct {
	// Field names the offending spec field (e.g., "Duration").
	Field string
	// Reason describes the violated constraint.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid animation spec: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// CollisionError reports a caller-supplied id that is already live.
type CollisionError struct {
	ID string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("animation id %q already registered", e.ID)
}

func (e *CollisionError) Is(target error) bool { return target == ErrCollision }

// BackendUnavailableError reports that a backend cannot render an effect kind.
// It never reaches callers of the scheduler; the effect selector falls back
// to the CPU path when it sees one.
type BackendUnavailableError struct {
	// Kind is the effect kind name.
	Kind string
	// Backend is the backend name (e.g., "gpu").
	Backend string
	// Err is the underlying cause, such as a shader compile error.
	Err error
}

func (e *BackendUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s backend unavailable for %s: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s backend unavailable for %s", e.Backend, e.Kind)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

// UnknownHandleError describes a control request for a handle that is not
// live. The scheduler treats it as a no-op and only logs it at debug level.
type UnknownHandleError struct {
	Handle uint64
}

func (e *UnknownHandleError) Error() string {
	return fmt.Sprintf("unknown animation handle %d", e.Handle)
}

func (e *UnknownHandleError) Is(target error) bool { return target == ErrUnknownHandle }

// ErrorHandler receives errors reported by the engine.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *MotionError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
