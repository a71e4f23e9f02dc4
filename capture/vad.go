package capture

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"ragyverse/encoder"
)

const (
	// webrtc aggressiveness, 0 (lenient) to 3 (strict).
	vadMode       = 3
	vadFrameBytes = encoder.SampleRate / 50 * 2 // 20 ms
	// voice is confirmed after this many consecutive speech frames
	vadConfirmFrames = 3
	// a monitor tick counts as speech when this share of its frames is
	tickSpeechShare = 0.10
)

// SpeechDetector classifies 16 kHz mono PCM as it streams in.
type SpeechDetector interface {
	Process(pcm []byte)
	VoiceDetected() bool
	// HasSpeechTick reports whether the frames since the previous call
	// were mostly speech.
	HasSpeechTick() bool
}

type frameCounts struct{ frames, speech int }

type vadProcessor struct {
	classify func(frame []byte) (bool, error)

	mu      sync.Mutex
	pending []byte
	run     int
	voiced  bool
	tick    frameCounts
}

// NewVAD returns a webrtc based SpeechDetector.
func NewVAD() (SpeechDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: %w", err)
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, fmt.Errorf("webrtc vad mode %d: %w", vadMode, err)
	}
	return newVADProcessor(func(frame []byte) (bool, error) {
		return v.Process(encoder.SampleRate, frame)
	}), nil
}

func newVADProcessor(classify func([]byte) (bool, error)) *vadProcessor {
	return &vadProcessor{classify: classify}
}

// Process buffers pcm and classifies every complete frame. Frames the
// classifier rejects are skipped.
func (p *vadProcessor) Process(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = append(p.pending, pcm...)
	n := 0
	for ; n+vadFrameBytes <= len(p.pending); n += vadFrameBytes {
		speech, err := p.classify(p.pending[n : n+vadFrameBytes])
		if err != nil {
			continue
		}
		p.tick.frames++
		if !speech {
			p.run = 0
			continue
		}
		p.tick.speech++
		if p.run++; p.run >= vadConfirmFrames {
			p.voiced = true
		}
	}
	p.pending = append(p.pending[:0], p.pending[n:]...)
}

func (p *vadProcessor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiced
}

func (p *vadProcessor) HasSpeechTick() bool {
	p.mu.Lock()
	c := p.tick
	p.tick = frameCounts{}
	p.mu.Unlock()
	return c.frames > 0 && float64(c.speech) >= tickSpeechShare*float64(c.frames)
}
