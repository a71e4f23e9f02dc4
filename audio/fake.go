package audio

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"ragyverse/encoder"
)

// fakeChunkFrames matches a typical device period at 16 kHz.
const fakeChunkFrames = 1024

// FakeContext replays a fixed PCM buffer as if it came from a microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// StartErr, when set, is returned by every capture's Start.
	StartErr error

	opened atomic.Int32
	closed atomic.Int32
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	return NewFakeContextPCM(encoder.PCMFromWAV(data), realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.opened.Add(1)
	c := &FakeCapture{pcm: f.pcm, startErr: f.StartErr, onClose: func() { f.closed.Add(1) }}
	if f.realtime {
		c.pace = time.Duration(fakeChunkFrames) * time.Second / encoder.SampleRate
	}
	return c, nil
}

// Opened is the number of captures handed out.
func (f *FakeContext) Opened() int { return int(f.opened.Load()) }

// Closed is the number of Close calls across all captures.
func (f *FakeContext) Closed() int { return int(f.closed.Load()) }

// Capability wraps the fake as an Available probe result.
func (f *FakeContext) Capability() Capability {
	return Available{Open: func() (Context, error) { return f, nil }}
}

// FakeCapture delivers its buffer in fixed chunks. With a zero pace the
// whole buffer is delivered inside Start; otherwise one chunk per pace
// interval, then silence until Stop.
type FakeCapture struct {
	pcm      []byte
	pace     time.Duration
	startErr error
	onClose  func()

	mu   sync.Mutex
	cb   DataCallback
	quit chan struct{}
	done chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() { f.SetCallback(nil) }

// deliver hands chunk to the current callback, if any.
func (f *FakeCapture) deliver(chunk []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(chunk, uint32(len(chunk)/2))
	}
}

// chunk returns a copy of the n-th chunk, or silence past the end.
func (f *FakeCapture) chunk(n int) []byte {
	const size = fakeChunkFrames * 2
	out := make([]byte, size)
	off := n * size
	if off >= len(f.pcm) {
		return out
	}
	return out[:copy(out, f.pcm[off:])]
}

func (f *FakeCapture) chunks() int {
	const size = fakeChunkFrames * 2
	return (len(f.pcm) + size - 1) / size
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.quit = make(chan struct{})
	f.done = make(chan struct{})
	if f.pace == 0 {
		for i := range f.chunks() {
			f.deliver(f.chunk(i))
		}
		close(f.done)
		return nil
	}
	go f.stream()
	return nil
}

func (f *FakeCapture) stream() {
	defer close(f.done)
	t := time.NewTicker(f.pace)
	defer t.Stop()
	for i := 0; ; i++ {
		f.deliver(f.chunk(i))
		select {
		case <-f.quit:
			return
		case <-t.C:
		}
	}
}

func (f *FakeCapture) Stop() {
	if f.quit == nil {
		return
	}
	select {
	case <-f.quit:
	default:
		close(f.quit)
	}
	<-f.done
}

func (f *FakeCapture) Close() {
	f.Stop()
	if f.onClose != nil {
		f.onClose()
	}
}

// FakeOutput records playback requests without touching a sound card.
type FakeOutput struct {
	StartErr error

	mu      sync.Mutex
	started int
	stopped int
}

func (o *FakeOutput) Start(_ []int16, _, _ int) (Playback, error) {
	if o.StartErr != nil {
		return nil, o.StartErr
	}
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
	return &fakePlayback{out: o, done: make(chan struct{})}, nil
}

func (o *FakeOutput) Counts() (started, stopped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started, o.stopped
}

type fakePlayback struct {
	out  *FakeOutput
	once sync.Once
	done chan struct{}
}

func (p *fakePlayback) Wait() { <-p.done }

func (p *fakePlayback) Stop() {
	p.once.Do(func() {
		p.out.mu.Lock()
		p.out.stopped++
		p.out.mu.Unlock()
		close(p.done)
	})
}
