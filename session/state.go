package session

// Phase is the controller's position in the question cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseTranscribing
	PhaseAwaitingAnswer
	PhaseSynthesizing
	PhaseAnswerReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseAnswerReady:
		return "answer_ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Resting reports whether a new cycle may begin from p.
func (p Phase) Resting() bool {
	return p == PhaseIdle || p == PhaseAnswerReady || p == PhaseError
}

type RecordingState int

const (
	RecordingIdle RecordingState = iota
	// RecordingStarting covers the time the microphone takes to open.
	RecordingStarting
	RecordingActive
)

const recordingPrompt = "Recording… Speak clearly and press stop when done."

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	DocumentText string
	Question     string
	Answer       string
	// AudioRef is only set after the synthesized audio passed the probe.
	AudioRef  string
	Phase     Phase
	Recording RecordingState
	// Prompt is shown while recording.
	Prompt    string
	Err       *ErrorRecord
	AuthToken string
	// Busy is true while a pipeline, recording or upload is in flight.
	Busy    bool
	Version uint64
}

func (s Snapshot) HasToken() bool { return s.AuthToken != "" }

// Observer receives every published snapshot, in order, on a single
// goroutine. It must not block for long.
type Observer func(Snapshot)
