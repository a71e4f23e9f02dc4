package audio

import (
	"errors"
	"testing"
)

type stubContext struct {
	devices []DeviceInfo
	err     error
	closed  bool
}

func (s *stubContext) Devices() ([]DeviceInfo, error) { return s.devices, s.err }
func (s *stubContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, errors.New("unused")
}
func (s *stubContext) Close() { s.closed = true }

func TestProbeAvailable(t *testing.T) {
	stub := &stubContext{devices: []DeviceInfo{{ID: "1", Name: "mic"}}}
	got := probeWith(func() (Context, error) { return stub, nil })
	av, ok := got.(Available)
	if !ok {
		t.Fatalf("got %T, want Available", got)
	}
	if av.Open == nil {
		t.Error("Available.Open is nil")
	}
	if !stub.closed {
		t.Error("probe context was not closed")
	}
}

func TestProbeUnavailable(t *testing.T) {
	for _, tt := range []struct {
		name string
		open func() (Context, error)
		want string
	}{
		{"open fails", func() (Context, error) { return nil, errors.New("no server") }, "no server"},
		{"list fails", func() (Context, error) { return &stubContext{err: errors.New("denied")}, nil }, "denied"},
		{"no devices", func() (Context, error) { return &stubContext{}, nil }, ErrNoDevices.Error()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := probeWith(tt.open)
			un, ok := got.(Unavailable)
			if !ok {
				t.Fatalf("got %T, want Unavailable", got)
			}
			if un.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", un.Reason, tt.want)
			}
		})
	}
}

func TestFakeCaptureCountsCloses(t *testing.T) {
	fc := NewFakeContextPCM(make([]byte, 4096), false)
	dev, err := fc.NewCapture(nil, CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	var got int
	dev.SetCallback(func(data []byte, _ uint32) { got += len(data) })
	if err := dev.Start(); err != nil {
		t.Fatal(err)
	}
	dev.Stop()
	dev.Close()
	if got != 4096 {
		t.Errorf("fed %d bytes, want 4096", got)
	}
	if fc.Opened() != 1 || fc.Closed() != 1 {
		t.Errorf("opened=%d closed=%d, want 1/1", fc.Opened(), fc.Closed())
	}
}

func TestIsBluetooth(t *testing.T) {
	for _, tt := range []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Built-in Microphone", false},
		{"JBL Flip 5", true},
	} {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAmplifyClips(t *testing.T) {
	samples := []int16{100, -100, 20000, -20000}
	dst := make([]byte, len(samples)*2)
	amplify(dst, samples, 4)
	want := []int16{400, -400, 32767, -32768}
	for i, w := range want {
		got := int16(uint16(dst[i*2]) | uint16(dst[i*2+1])<<8)
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestCaptureGainDefault(t *testing.T) {
	if got := (CaptureConfig{}).gain(); got != platformGain {
		t.Errorf("gain() = %v, want platform default %v", got, platformGain)
	}
	if got := (CaptureConfig{Gain: 2}).gain(); got != 2 {
		t.Errorf("gain() = %v, want 2", got)
	}
}
