package hotkey

import (
	"sync"
	"time"
)

// Mode says how a recording was ended.
type Mode string

const (
	ModeHold Mode = "hold"
	ModeTap  Mode = "tap"
)

type Action int

const (
	Begin Action = iota
	End
)

// Event is one edge of a voice question. Mode is set on End only.
type Event struct {
	Action Action
	Mode   Mode
}

// Hybrid turns one key combination into push-to-talk and tap-to-toggle.
// A press always begins a recording. Releasing after longPress ends it
// (hold); releasing sooner leaves it running until the next full press
// (tap).
type Hybrid struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

// Events is closed after Close.
func (h *Hybrid) Events() <-chan Event { return h.events }

func (h *Hybrid) Close() { h.once.Do(func() { close(h.done) }) }

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	defer close(h.events)
	for {
		if !h.recv(hk.Keydown()) || !h.send(Event{Action: Begin}) {
			return
		}
		mode, ok := h.gesture(hk, longPress)
		if !ok || !h.send(Event{Action: End, Mode: mode}) {
			return
		}
	}
}

// gesture waits for the key sequence that ends the current recording.
func (h *Hybrid) gesture(hk Hotkey, longPress time.Duration) (Mode, bool) {
	timer := time.NewTimer(longPress)
	defer timer.Stop()
	select {
	case <-timer.C:
		return ModeHold, h.recv(hk.Keyup())
	case <-hk.Keyup():
		return ModeTap, h.recv(hk.Keydown()) && h.recv(hk.Keyup())
	case <-h.done:
		return "", false
	}
}

func (h *Hybrid) recv(ch <-chan struct{}) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case <-ch:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hybrid) send(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}
