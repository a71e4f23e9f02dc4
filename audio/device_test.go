package audio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// keyReader returns one key sequence per Read, like a raw terminal.
type keyReader struct{ keys []string }

func (k *keyReader) Read(p []byte) (int, error) {
	if len(k.keys) == 0 {
		return 0, io.EOF
	}
	n := copy(p, k.keys[0])
	k.keys = k.keys[1:]
	return n, nil
}

var testDevices = []DeviceInfo{
	{ID: "1", Name: "Built-in Microphone"},
	{ID: "2", Name: "USB Audio"},
	{ID: "3", Name: "AirPods Pro"},
}

func TestPickMovesCursor(t *testing.T) {
	var out bytes.Buffer
	in := &keyReader{keys: []string{"\x1b[B", "\x1b[B", "\x1b[B", "k", "\r"}}
	dev, err := pick(testDevices, "", in, &out)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if dev.Name != "USB Audio" {
		t.Errorf("picked %q, want USB Audio", dev.Name)
	}
	if !strings.Contains(out.String(), "headset mic") {
		t.Error("bluetooth device not flagged")
	}
}

func TestPickStartsOnPreferred(t *testing.T) {
	in := &keyReader{keys: []string{"\r"}}
	dev, err := pick(testDevices, "AirPods Pro", in, io.Discard)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if dev.ID != "3" {
		t.Errorf("picked %q, want the preferred device", dev.Name)
	}
}

func TestPickCancelled(t *testing.T) {
	in := &keyReader{keys: []string{"x", "\x03"}}
	if _, err := pick(testDevices, "", in, io.Discard); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("err = %v, want ErrSelectionCancelled", err)
	}
}

func TestPickInputClosed(t *testing.T) {
	if _, err := pick(testDevices, "", &keyReader{}, io.Discard); err == nil {
		t.Error("expected error on closed input")
	}
}
