// Package session owns the capture lifecycle: it drives the camera and
// the sampler, submits each batch once and exposes the result as a
// single tagged State.
package session

import (
	"time"

	"github.com/teslashibe/go-signlens/pkg/interpret"
)

// Phase is the presentation state tag.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRecording  Phase = "recording"
	PhaseProcessing Phase = "processing"
	PhaseError      Phase = "error"
	PhaseResult     Phase = "result"
)

// KindDeviceAccess marks a failure to acquire the camera. The other
// kinds come from interpret.Classify.
const KindDeviceAccess interpret.ErrorKind = "device_access"

// State is a snapshot of the session. Message holds the error text in
// PhaseError and the interpretation in PhaseResult; it is empty
// otherwise. Kind is set only in PhaseError.
type State struct {
	Phase     Phase               `json:"phase"`
	Message   string              `json:"message,omitempty"`
	Kind      interpret.ErrorKind `json:"kind,omitempty"`
	Frames    int                 `json:"frames"`
	SessionID string              `json:"session_id,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Idle is the state before the first recording.
func Idle() State {
	return State{Phase: PhaseIdle, UpdatedAt: time.Now()}
}

// Recording is the state while frames are being sampled.
func Recording(id string, frames int) State {
	return State{Phase: PhaseRecording, SessionID: id, Frames: frames, UpdatedAt: time.Now()}
}

// Processing is the state while a batch is being interpreted.
func Processing(id string, frames int) State {
	return State{Phase: PhaseProcessing, SessionID: id, Frames: frames, UpdatedAt: time.Now()}
}

// Failed is a terminal error state.
func Failed(kind interpret.ErrorKind, msg string) State {
	return State{Phase: PhaseError, Kind: kind, Message: msg, UpdatedAt: time.Now()}
}

// Done is a terminal result state.
func Done(id, text string) State {
	return State{Phase: PhaseResult, SessionID: id, Message: text, UpdatedAt: time.Now()}
}

// Busy reports whether a new recording cannot start.
func (s State) Busy() bool {
	return s.Phase == PhaseRecording || s.Phase == PhaseProcessing
}
