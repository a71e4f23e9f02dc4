package capture

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragyverse/audio"
)

type StopReason int

const (
	StopManual StopReason = iota
	StopTimeout
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopManual:
		return "manual"
	case StopTimeout:
		return "timeout"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Payload is the encoded recording handed to the submission client.
type Payload struct {
	Data        []byte
	Ext         string
	ContentType string
	Frames      uint64
}

func (p Payload) Empty() bool { return len(p.Data) == 0 }

// Duration of the captured audio.
func (p Payload) Duration() time.Duration {
	return time.Duration(p.Frames) * time.Second / time.Duration(sampleRate)
}

// Completion describes how a recording ended.
type Completion struct {
	ID            uuid.UUID
	Payload       Payload
	Reason        StopReason
	Elapsed       time.Duration
	VoiceDetected bool
	// Err is ErrNoSpeechDetected when nothing usable was captured, or an
	// encoding failure.
	Err error
}

// RecordingSession is one microphone acquisition. It is created by
// Manager.Start and ends exactly once, by Stop, by the duration ceiling or
// by Cancel.
type RecordingSession struct {
	ID  uuid.UUID
	gen uint64
	mgr *Manager

	ctx      audio.Context
	dev      audio.CaptureDevice
	detector SpeechDetector

	mu      sync.Mutex
	chunks  [][]byte
	stopped bool
	timer   Timer
	started time.Time

	stopOnce    sync.Once
	releaseOnce sync.Once
	stopCh      chan struct{}
	done        chan struct{}
	result      Completion
}

// Done is closed once the recording has been finalized.
func (r *RecordingSession) Done() <-chan struct{} { return r.done }

// Completion is valid after Done is closed.
func (r *RecordingSession) Completion() Completion {
	<-r.done
	return r.result
}

// Wait blocks until the recording ends and returns its completion.
func (r *RecordingSession) Wait() Completion { return r.Completion() }

func (r *RecordingSession) onData(data []byte, _ uint32) {
	if len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.chunks = append(r.chunks, chunk)
	r.mu.Unlock()

	if r.detector != nil {
		r.detector.Process(chunk)
	}
	r.mgr.emit(Event{Kind: EventLevel, Level: rms(chunk)})
}

// takeChunks stops buffering and returns everything captured so far.
func (r *RecordingSession) takeChunks() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	pcm := bytes.Join(r.chunks, nil)
	r.chunks = nil
	return pcm
}

// release hands the microphone back. Every exit path funnels through here.
func (r *RecordingSession) release() {
	r.releaseOnce.Do(func() {
		if r.dev != nil {
			r.dev.Stop()
			r.dev.ClearCallback()
			r.dev.Close()
		}
		if r.ctx != nil {
			r.ctx.Close()
		}
	})
}
