package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ragyverse/capture"
	"ragyverse/clipboard"
	"ragyverse/log"
	"ragyverse/playback"
	"ragyverse/session"
)

const resetTimeout = 10 * time.Second

// app glues the session controller to whatever display is running. All
// actions are safe to call from any goroutine.
type app struct {
	ctrl   *session.Controller
	player *playback.Player
	cues   *playback.Cues
	sink   EventSink

	mu       sync.Mutex
	prev     session.Snapshot
	answered int
}

func newApp(ctrl *session.Controller, player *playback.Player, cues *playback.Cues, sink EventSink) *app {
	a := &app{ctrl: ctrl, player: player, cues: cues, sink: sink}
	ctrl.Subscribe(a.observe)
	return a
}

// captureEvents forwards recording progress to the sink.
func (a *app) captureEvents(ev capture.Event) {
	switch ev.Kind {
	case capture.EventLevel:
		a.sink.AudioLevel(ev.Level)
	case capture.EventTick:
		a.sink.RecordingTick(ev.Elapsed.Seconds())
	case capture.EventNoVoice:
		log.Info("no_voice_warning")
		a.sink.NoVoiceWarning()
		a.cues.PlayError()
	case capture.EventVoiceResumed:
		a.sink.VoiceResumed()
	}
}

func (a *app) observe(s session.Snapshot) {
	a.mu.Lock()
	prev := a.prev
	a.prev = s
	if s.Phase == session.PhaseAnswerReady && prev.Phase != session.PhaseAnswerReady {
		a.answered++
	}
	a.mu.Unlock()

	switch {
	case s.Recording == session.RecordingActive && prev.Recording != session.RecordingActive:
		a.cues.PlayStart()
	case s.Recording != session.RecordingActive && prev.Recording == session.RecordingActive:
		a.cues.PlayEnd()
	}
	if s.Err != nil && prev.Err == nil {
		a.cues.PlayError()
	}
	a.sink.Snapshot(s)
}

// Answered is the number of answers that reached AnswerReady.
func (a *app) Answered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answered
}

func (a *app) ask(ctx context.Context, text string) {
	if err := a.ctrl.SubmitTextQuestion(ctx, text); err != nil {
		a.rejected(err)
	}
}

func (a *app) upload(ctx context.Context, path string) {
	path = strings.TrimSpace(path)
	data, err := os.ReadFile(path)
	if err != nil {
		// An unreadable file is rejected by the controller like any
		// other non-PDF.
		log.Warnf("read document: %v", err)
	}
	if err := a.ctrl.UploadDocument(ctx, filepath.Base(path), data); err != nil {
		a.rejected(err)
	}
}

// toggleVoice starts a voice question, or stops the recording that is
// running or still opening the microphone.
func (a *app) toggleVoice() {
	if a.ctrl.Snapshot().Recording != session.RecordingIdle {
		a.ctrl.StopVoiceQuestion()
		return
	}
	a.startVoice()
}

func (a *app) startVoice() {
	if err := a.ctrl.StartVoiceQuestion(); err != nil {
		a.rejected(err)
	}
}

func (a *app) stopVoice() { a.ctrl.StopVoiceQuestion() }

func (a *app) reset() {
	a.player.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	if err := a.ctrl.ResetSession(ctx); err != nil {
		a.sink.Notice("Failed to reset session.")
	}
}

func (a *app) logout() {
	a.player.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	_ = a.ctrl.Logout(ctx)
	a.sink.Notice("Logged out")
}

func (a *app) setToken(token string) {
	a.ctrl.SetAuthToken(strings.TrimSpace(token))
}

func (a *app) copyAnswer() {
	s := a.ctrl.Snapshot()
	if err := clipboard.CopyAnswer(s.Question, s.Answer); err != nil {
		if errors.Is(err, clipboard.ErrNothingToCopy) {
			a.sink.Notice("Nothing to copy yet")
			return
		}
		log.Warnf("clipboard: %v", err)
		a.sink.Notice("Clipboard unavailable")
		return
	}
	a.sink.Notice("Answer copied")
}

func (a *app) playAnswer(ctx context.Context) {
	s := a.ctrl.Snapshot()
	if s.AudioRef == "" {
		a.sink.Notice("No answer audio yet")
		return
	}
	if _, err := a.player.Play(ctx, s.AudioRef); err != nil {
		log.Errorf("play answer: %v", err)
		a.sink.Notice(fmt.Sprintf("Playback failed: %v", err))
	}
}

// rejected reports errors the controller did not record, such as a second
// operation while one is running.
func (a *app) rejected(err error) {
	if errors.Is(err, session.ErrConcurrentOperation) {
		a.sink.Notice("Busy, wait for the current question to finish")
	}
}
