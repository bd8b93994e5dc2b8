package domain

import "errors"

// Pre-flight guards. Checked before any engine interaction; no state change.
var (
	ErrNoSourceSelected = errors.New("no source selected")
	ErrEngineNotReady   = errors.New("engine not ready")
	ErrInvalidAngle     = errors.New("invalid rotation angle")
	ErrBusy             = errors.New("rotation already in progress")
)

// ErrEngineExecution wraps any failure while staging, executing or reading back.
var ErrEngineExecution = errors.New("engine execution failure")

// ErrMetadataUnavailable is non-fatal: progress degrades to unknown.
var ErrMetadataUnavailable = errors.New("metadata unavailable")

// ErrAlreadyInitialized second Initialize call on the engine lifecycle.
var ErrAlreadyInitialized = errors.New("engine already initialized")
