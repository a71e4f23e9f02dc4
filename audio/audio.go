package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain scales captured samples. Zero means the platform default.
	Gain float64
}

func (c CaptureConfig) gain() float64 {
	if c.Gain <= 0 {
		return platformGain
	}
	return c.Gain
}

// amplify writes samples scaled by gain into dst as little-endian PCM,
// clipping at the int16 range. dst must hold 2*len(samples) bytes.
func amplify(dst []byte, samples []int16, gain float64) {
	for i, s := range samples {
		v := math.Round(float64(s) * gain)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(v)))
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Output plays interleaved 16-bit PCM on the default sink.
type Output interface {
	Start(pcm []int16, sampleRate, channels int) (Playback, error)
}

// Playback is a running output stream.
type Playback interface {
	// Wait blocks until all samples were played or Stop was called.
	Wait()
	// Stop halts the stream and releases it. Safe to call more than once.
	Stop()
}

var ErrNoDevices = errors.New("no capture devices found")

// Capability is the result of Probe: either Available or Unavailable.
type Capability interface {
	capability()
}

// Available carries the factory that opens a fresh capture context.
type Available struct {
	Open func() (Context, error)
}

// Unavailable explains why audio capture cannot be used on this host.
type Unavailable struct {
	Reason string
}

func (Available) capability()   {}
func (Unavailable) capability() {}

// Probe checks that a capture backend can be opened and lists at least one
// input device. The probe context is closed before returning.
func Probe() Capability {
	return probeWith(NewContext)
}

func probeWith(open func() (Context, error)) Capability {
	ctx, err := open()
	if err != nil {
		return Unavailable{Reason: err.Error()}
	}
	devices, err := ctx.Devices()
	ctx.Close()
	if err != nil {
		return Unavailable{Reason: err.Error()}
	}
	if len(devices) == 0 {
		return Unavailable{Reason: ErrNoDevices.Error()}
	}
	return Available{Open: open}
}
