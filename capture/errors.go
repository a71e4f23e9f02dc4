package capture

import (
	"errors"
	"fmt"
)

var (
	ErrRecordingActive  = errors.New("a recording is already in progress")
	ErrNoSpeechDetected = errors.New("no speech detected")
)

// PermissionError means the microphone could not be acquired: the platform
// refused access, no backend is running, or no input device exists.
type PermissionError struct {
	Reason string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("microphone access denied or unavailable: %v", e.Err)
	}
	if e.Reason != "" {
		return "microphone access denied or unavailable: " + e.Reason
	}
	return "microphone access denied or unavailable"
}

func (e *PermissionError) Unwrap() error { return e.Err }
