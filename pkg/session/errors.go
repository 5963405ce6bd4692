package session

import (
	"errors"

	"github.com/teslashibe/go-signlens/pkg/camera"
	"github.com/teslashibe/go-signlens/pkg/interpret"
)

// Sentinel errors for invalid transitions.
var (
	// ErrBusy is returned by Start while a batch is being interpreted.
	ErrBusy = errors.New("session: interpretation in progress")

	// ErrAlreadyRecording is returned by Start while recording.
	ErrAlreadyRecording = errors.New("session: already recording")

	// ErrNotRecording is returned by Stop outside a recording.
	ErrNotRecording = errors.New("session: not recording")
)

// Re-exported so callers can match the whole taxonomy from one package.
var (
	ErrDeviceAccess = camera.ErrDeviceAccess
	ErrEmptyBatch   = interpret.ErrEmptyBatch
)

// IsTransition reports whether err is a rejected state transition.
func IsTransition(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrAlreadyRecording) || errors.Is(err, ErrNotRecording)
}
