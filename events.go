package main

import "ragyverse/session"

// EventSink abstracts the display layer so both the Bubble Tea TUI and the
// headless test mode receive the same session and recording events.
type EventSink interface {
	Snapshot(s session.Snapshot)
	RecordingTick(elapsed float64)
	AudioLevel(level float64)
	NoVoiceWarning()
	VoiceResumed()
	Notice(text string)
}
