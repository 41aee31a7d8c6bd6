package tracking

import "errors"

var (
	ErrInvalidMessage      = errors.New("invalid JSON format")
	ErrUnknownMessageType  = errors.New("unknown message type")
	ErrServerAtCapacity    = errors.New("server at capacity")
	ErrCameraUnavailable   = errors.New("could not open camera - no camera available")
	ErrFrameReadFailed     = errors.New("failed to read frame from camera")
	ErrSessionClosed       = errors.New("session is closed")
	ErrClassifierNotLoaded = errors.New("cascade classifiers are not loaded")
)
