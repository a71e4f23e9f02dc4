package session

import (
	"context"
	"errors"

	"ragyverse/backend"
	"ragyverse/capture"
	"ragyverse/synth"
)

var (
	// ErrConcurrentOperation rejects a request while another pipeline is
	// in flight. It is returned to the caller but never recorded, so the
	// running pipeline's outcome is left untouched.
	ErrConcurrentOperation = errors.New("another operation is already in progress")
	// ErrDiscarded is returned by a pipeline whose session was reset
	// while it ran.
	ErrDiscarded = errors.New("result discarded after session reset")
	ErrClosed    = errors.New("session closed")
)

// InvalidInputError is bad user input, rejected before any request.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Message }

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindPermission
	KindNoSpeech
	KindNetwork
	KindBackend
	KindAuthRequired
	KindSynthesis
	KindPlaybackValidation
	KindConcurrentOperation
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidInput:
		return "invalid_input"
	case KindPermission:
		return "permission"
	case KindNoSpeech:
		return "no_speech"
	case KindNetwork:
		return "network"
	case KindBackend:
		return "backend"
	case KindAuthRequired:
		return "auth_required"
	case KindSynthesis:
		return "synthesis"
	case KindPlaybackValidation:
		return "playback_validation"
	case KindConcurrentOperation:
		return "concurrent_operation"
	default:
		return "internal"
	}
}

// ErrorRecord is the one active error of a session.
type ErrorRecord struct {
	Kind ErrorKind
	// Message is what the user is shown.
	Message string
	Err     error
}

// Classify maps an error from any layer onto the session taxonomy.
func Classify(err error) ErrorKind {
	var (
		invalid    *InvalidInputError
		permission *capture.PermissionError
		playback   *synth.PlaybackValidationError
		synthErr   *synth.SynthesisError
		backendErr *backend.BackendError
		netErr     *backend.NetworkError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConcurrentOperation), errors.Is(err, capture.ErrRecordingActive):
		return KindConcurrentOperation
	case errors.As(err, &invalid), errors.Is(err, backend.ErrUnsupportedDocument):
		return KindInvalidInput
	case errors.As(err, &permission):
		return KindPermission
	case errors.Is(err, capture.ErrNoSpeechDetected):
		return KindNoSpeech
	case errors.Is(err, synth.ErrAuthRequired):
		return KindAuthRequired
	case errors.As(err, &playback):
		return KindPlaybackValidation
	case errors.As(err, &synthErr):
		return KindSynthesis
	case errors.As(err, &backendErr):
		return KindBackend
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	default:
		return KindInternal
	}
}

type operation int

const (
	opUpload operation = iota
	opText
	opVoice
	opSynthesize
	opReset
)

func (o operation) String() string {
	switch o {
	case opUpload:
		return "upload"
	case opText:
		return "ask_text"
	case opVoice:
		return "ask_audio"
	case opSynthesize:
		return "synthesize"
	default:
		return "reset"
	}
}

const (
	msgInvalidDocument = "Please upload a valid PDF file."
	msgEmptyQuestion   = "Please enter a question."
	msgMicUnavailable  = "Microphone access denied or unavailable."
	msgNoSpeech        = "No speech detected. Try speaking louder."
	msgUploadNetwork   = "Network error. Please check your connection and try again."
	msgNetwork         = "Network error. Please try again."
	msgAuthRequired    = "You need to be logged in to use TTS"
	msgLoadAudio       = "Failed to load audio"
	msgServerTTS       = "TTS server error"
	ttsPrefix          = "TTS Error: "
)

func fallbackMessage(op operation) string {
	switch op {
	case opUpload:
		return "Failed to process PDF."
	case opText:
		return "Failed to process question."
	case opVoice:
		return "Failed to process audio question."
	case opSynthesize:
		return ttsPrefix + msgServerTTS
	default:
		return "Failed to reset session."
	}
}

// describe builds the user facing record for a failure of op.
func describe(op operation, err error) *ErrorRecord {
	kind := Classify(err)
	rec := &ErrorRecord{Kind: kind, Err: err}

	switch kind {
	case KindInvalidInput:
		var invalid *InvalidInputError
		if errors.As(err, &invalid) {
			rec.Message = invalid.Message
		} else {
			rec.Message = msgInvalidDocument
		}
	case KindPermission:
		rec.Message = msgMicUnavailable
	case KindNoSpeech:
		rec.Message = msgNoSpeech
	case KindAuthRequired:
		rec.Message = msgAuthRequired
	case KindPlaybackValidation:
		rec.Message = ttsPrefix + msgLoadAudio
	case KindSynthesis:
		var se *synth.SynthesisError
		errors.As(err, &se)
		rec.Message = ttsPrefix + se.Message
	case KindBackend:
		var be *backend.BackendError
		errors.As(err, &be)
		if be.Message != "" {
			rec.Message = be.Message
		} else {
			rec.Message = fallbackMessage(op)
		}
	case KindNetwork:
		switch op {
		case opUpload:
			rec.Message = msgUploadNetwork
		case opSynthesize:
			rec.Message = ttsPrefix + msgNetwork
		default:
			rec.Message = msgNetwork
		}
	default:
		rec.Message = fallbackMessage(op)
	}
	return rec
}
