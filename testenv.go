package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ragyverse/log"
	"ragyverse/session"
)

// headlessSink prints one line per snapshot so scripts can follow the
// session on stdout.
type headlessSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (h *headlessSink) printf(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, format, args...)
}

func (h *headlessSink) Snapshot(s session.Snapshot) {
	line := fmt.Sprintf("STATE phase=%s busy=%t recording=%t", s.Phase, s.Busy, s.Recording == session.RecordingActive)
	if s.Question != "" {
		line += fmt.Sprintf(" question=%q", s.Question)
	}
	if s.Answer != "" {
		line += fmt.Sprintf(" answer=%q", s.Answer)
	}
	if s.AudioRef != "" {
		line += " audio=" + s.AudioRef
	}
	if s.Err != nil {
		line += fmt.Sprintf(" error=%s message=%q", s.Err.Kind, s.Err.Message)
	}
	h.printf("%s\n", line)
}

func (h *headlessSink) RecordingTick(float64) {}
func (h *headlessSink) AudioLevel(float64)    {}
func (h *headlessSink) NoVoiceWarning()       { h.printf("NO_VOICE\n") }
func (h *headlessSink) VoiceResumed()         {}
func (h *headlessSink) Notice(text string)    { h.printf("NOTICE %s\n", text) }

// runScript drives a through stdin-style commands until QUIT or EOF.
//
//	UPLOAD <path>   DOCTEXT <text>   ASK <text>   VOICE   STOP   WAIT
//	RESET   TOKEN <token>   LOGOUT   SLEEP <ms>   QUIT
func runScript(a *app, in io.Reader, timeout time.Duration) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "UPLOAD":
			a.upload(context.Background(), arg)
		case "DOCTEXT":
			if err := a.ctrl.SetDocumentText(arg); err != nil {
				a.rejected(err)
			}
		case "ASK":
			a.ask(context.Background(), arg)
		case "VOICE":
			a.startVoice()
		case "STOP":
			a.stopVoice()
		case "WAIT":
			if err := waitSettled(a.ctrl, timeout); err != nil {
				return err
			}
		case "RESET":
			a.reset()
		case "TOKEN":
			a.setToken(arg)
		case "LOGOUT":
			a.logout()
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return nil
		default:
			log.Warnf("test mode: unknown command %q", line)
		}
	}
	return scanner.Err()
}

// waitSettled blocks until nothing is in flight and the phase is resting.
func waitSettled(ctrl *session.Controller, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s := ctrl.Snapshot()
		if !s.Busy && s.Phase.Resting() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting in phase %s", s.Phase)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func runTestMode(a *app) {
	if err := runScript(a, os.Stdin, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Errorf("test mode: %v", err)
		a.ctrl.Close()
		log.SessionEnd(a.Answered())
		log.Close()
		os.Exit(1)
	}
}
