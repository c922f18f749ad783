package session

import "errors"

var (
	ErrInvalidState       = errors.New("operation not valid in current session state")
	ErrAlreadyFinished    = errors.New("session already finished")
	ErrStorageUnavailable = errors.New("session storage unavailable")
	ErrSessionActive      = errors.New("user already has an active session")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoCheckpoints      = errors.New("session has no checkpoints")
	ErrInvalidSeverity    = errors.New("invalid error severity")
	ErrInvalidType        = errors.New("invalid session type")
	ErrInvalidEvent       = errors.New("invalid telemetry event kind")
)
