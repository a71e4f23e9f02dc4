//go:build linux

package hotkey

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const inputGroupHint = "run: sudo usermod -aG input $USER, then log in again"

var errNoKeyboards = errors.New("no keyboard devices found (is the user in the input group?)")

type evdevHotkey struct {
	combo   Combo
	keydown chan struct{}
	keyup   chan struct{}
	devices []*os.File
	done    chan struct{}
	once    sync.Once
}

// New listens on evdev keyboards, which needs membership of the input
// group but works under both X11 and Wayland.
func New(combo Combo) Hotkey {
	return &evdevHotkey{
		combo:   combo,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (h *evdevHotkey) Register() error {
	if _, ok := evdevCodes[h.combo.Key]; !ok {
		return fmt.Errorf("unsupported key %q", h.combo.Key)
	}
	paths, err := keyboards(h.combo)
	if err != nil {
		return err
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		h.devices = append(h.devices, f)
		go h.watch(f)
	}
	if len(h.devices) == 0 {
		return fmt.Errorf("cannot open any of %d keyboard(s) (%s)", len(paths), inputGroupHint)
	}
	return nil
}

// watch runs until the device is closed by Unregister.
func (h *evdevHotkey) watch(f *os.File) {
	state := newComboState(h.combo)
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range decodeKeyEvents(buf[:n]) {
			switch state.feed(ev) {
			case edgePress:
				h.signal(h.keydown)
			case edgeRelease:
				h.signal(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) signal(ch chan struct{}) {
	select {
	case <-h.done:
	case ch <- struct{}{}:
	default:
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		close(h.done)
		for _, f := range h.devices {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

// keyboards lists event devices whose capabilities include the combo key.
func keyboards(c Combo) ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, fmt.Errorf("scanning input devices: %w", err)
	}
	code := evdevCodes[c.Key]
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join("/sys/class/input", name, "device", "capabilities", "key"))
		if err != nil || !capsHasKey(string(caps), code) {
			continue
		}
		out = append(out, filepath.Join("/dev/input", name))
	}
	if len(out) == 0 {
		return nil, errNoKeyboards
	}
	return out, nil
}

func Diagnose(combo Combo) (string, error) {
	if _, ok := evdevCodes[combo.Key]; !ok {
		return "", fmt.Errorf("unsupported key %q", combo.Key)
	}
	paths, err := keyboards(combo)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if f, err := os.Open(p); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s), opened %s, listening for %s", len(paths), p, combo), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (%s)", len(paths), inputGroupHint)
}
