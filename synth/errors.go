package synth

import (
	"errors"
	"fmt"
)

// ErrAuthRequired is returned before any request when no token is held.
var ErrAuthRequired = errors.New("you need to be logged in to use TTS")

// SynthesisError is a rejected synthesis request or a reply without an
// audio locator.
type SynthesisError struct {
	Status  int
	Message string
}

func (e *SynthesisError) Error() string {
	if e.Status == 0 {
		return "synthesis: " + e.Message
	}
	return fmt.Sprintf("synthesis: status %d: %s", e.Status, e.Message)
}

// PlaybackValidationError means the synthesized audio could not be loaded
// or decoded. The reference is never handed out in that case.
type PlaybackValidationError struct {
	URL string
	Err error
}

func (e *PlaybackValidationError) Error() string {
	return fmt.Sprintf("audio at %s failed validation: %v", e.URL, e.Err)
}

func (e *PlaybackValidationError) Unwrap() error { return e.Err }
