//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

var keyCodes = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"a":     hotkey.KeyA,
	"q":     hotkey.KeyQ,
	"v":     hotkey.KeyV,
	"f8":    hotkey.KeyF8,
	"f9":    hotkey.KeyF9,
	"f10":   hotkey.KeyF10,
}

type xHotkey struct {
	combo   Combo
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
}

func New(combo Combo) Hotkey {
	var mods []hotkey.Modifier
	if combo.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if combo.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	h := &xHotkey{
		combo:   combo,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	if key, ok := keyCodes[combo.Key]; ok {
		h.hk = hotkey.New(mods, key)
	}
	return h
}

func (h *xHotkey) Register() error {
	if h.hk == nil {
		return fmt.Errorf("unsupported key %q", h.combo.Key)
	}
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.forward(h.hk.Keydown(), h.keydown)
	go h.forward(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) forward(in <-chan hotkey.Event, out chan struct{}) {
	for {
		select {
		case <-in:
		case <-h.stop:
			return
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}
}

func (h *xHotkey) Unregister() {
	select {
	case <-h.stop:
		return
	default:
		close(h.stop)
	}
	if h.hk != nil {
		h.hk.Unregister()
	}
}

func (h *xHotkey) Keydown() <-chan struct{} { return h.keydown }

func (h *xHotkey) Keyup() <-chan struct{} { return h.keyup }

func Diagnose(combo Combo) (string, error) {
	if _, ok := keyCodes[combo.Key]; !ok {
		return "", fmt.Errorf("unsupported key %q", combo.Key)
	}
	return fmt.Sprintf("hotkey support available (%s)", combo), nil
}
