package hotkey

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Linux input event layout on 64-bit kernels: a 16-byte timeval followed
// by type, code and value.
const (
	inputEventSize = 24
	evKey          = 1
)

const (
	keyUp   = 0
	keyDown = 1
)

const (
	codeLCtrl  = 29
	codeRCtrl  = 97
	codeLShift = 42
	codeRShift = 54
)

var evdevCodes = map[string]uint16{
	"space": 57,
	"a":     30,
	"q":     16,
	"v":     47,
	"f8":    66,
	"f9":    67,
	"f10":   68,
}

type keyEvent struct {
	code  uint16
	value int32
}

// decodeKeyEvents pulls EV_KEY records out of a raw read. A trailing
// partial record is ignored.
func decodeKeyEvents(buf []byte) []keyEvent {
	var out []keyEvent
	for ; len(buf) >= inputEventSize; buf = buf[inputEventSize:] {
		if binary.LittleEndian.Uint16(buf[16:]) != evKey {
			continue
		}
		out = append(out, keyEvent{
			code:  binary.LittleEndian.Uint16(buf[18:]),
			value: int32(binary.LittleEndian.Uint32(buf[20:])),
		})
	}
	return out
}

type edge int

const (
	edgeNone edge = iota
	edgePress
	edgeRelease
)

// comboState tracks modifiers for one keyboard. Autorepeat (value 2)
// leaves the state alone.
type comboState struct {
	combo        Combo
	code         uint16
	ctrl, shift  bool
	comboPressed bool
}

func newComboState(c Combo) *comboState {
	return &comboState{combo: c, code: evdevCodes[c.Key]}
}

func (s *comboState) feed(ev keyEvent) edge {
	if ev.value != keyDown && ev.value != keyUp {
		return edgeNone
	}
	down := ev.value == keyDown
	switch ev.code {
	case codeLCtrl, codeRCtrl:
		s.ctrl = down
	case codeLShift, codeRShift:
		s.shift = down
	case s.code:
		switch {
		case down && !s.comboPressed && s.modifiers():
			s.comboPressed = true
			return edgePress
		case !down && s.comboPressed:
			s.comboPressed = false
			return edgeRelease
		}
	}
	return edgeNone
}

func (s *comboState) modifiers() bool {
	return (!s.combo.Ctrl || s.ctrl) && (!s.combo.Shift || s.shift)
}

// capsHasKey reports whether a sysfs key capability bitmap contains code.
// The bitmap is hex words, most significant first.
func capsHasKey(caps string, code uint16) bool {
	words := strings.Fields(caps)
	idx := len(words) - 1 - int(code/64)
	if idx < 0 {
		return false
	}
	w, err := strconv.ParseUint(words[idx], 16, 64)
	if err != nil {
		return false
	}
	return w&(1<<(code%64)) != 0
}
