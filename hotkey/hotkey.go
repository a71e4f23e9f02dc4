package hotkey

import (
	"fmt"
	"strings"
)

// Hotkey is a global key combination that reports press and release.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a modifier set plus one key, e.g. ctrl+shift+space.
type Combo struct {
	Ctrl  bool
	Shift bool
	Key   string
}

var DefaultCombo = Combo{Ctrl: true, Shift: true, Key: "space"}

// supportedKeys must have an entry in both platform key tables.
var supportedKeys = []string{"space", "a", "q", "v", "f8", "f9", "f10"}

// ParseCombo reads strings like "ctrl+shift+space". At least one modifier
// is required so the combo cannot swallow normal typing.
func ParseCombo(s string) (Combo, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultCombo, nil
	}
	var c Combo
	for _, part := range strings.Split(strings.ToLower(s), "+") {
		switch p := strings.TrimSpace(part); p {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		default:
			if c.Key != "" {
				return Combo{}, fmt.Errorf("hotkey %q: more than one key", s)
			}
			if !isSupported(p) {
				return Combo{}, fmt.Errorf("hotkey %q: unsupported key %q (use one of %s)", s, p, strings.Join(supportedKeys, ", "))
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	if !c.Ctrl && !c.Shift {
		return Combo{}, fmt.Errorf("hotkey %q: needs ctrl or shift", s)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	key := c.Key
	if len(key) <= 1 || strings.HasPrefix(key, "f") {
		key = strings.ToUpper(key)
	} else {
		key = strings.ToUpper(key[:1]) + key[1:]
	}
	return strings.Join(append(parts, key), "+")
}

func isSupported(key string) bool {
	for _, k := range supportedKeys {
		if k == key {
			return true
		}
	}
	return false
}
