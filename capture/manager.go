package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragyverse/audio"
	"ragyverse/encoder"
	"ragyverse/log"
)

const (
	sampleRate = encoder.SampleRate

	DefaultMaxDuration = 10 * time.Second
)

var ErrCancelled = errors.New("recording cancelled")

type EventKind int

const (
	EventLevel EventKind = iota
	EventTick
	EventNoVoice
	EventVoiceResumed
)

// Event is a progress notification while a recording is running.
type Event struct {
	Kind    EventKind
	Level   float64       // EventLevel: RMS of the latest chunk, 0..1
	Elapsed time.Duration // EventTick
}

type Config struct {
	// MaxDuration is the recording ceiling; zero means DefaultMaxDuration.
	MaxDuration time.Duration
	// Format is the payload container, see encoder.New.
	Format string
	Device *audio.DeviceInfo
	// Gain scales the microphone signal; zero is the platform default.
	Gain float64
	// MinFrames below which a recording counts as empty. Zero means 100ms.
	MinFrames uint64
	// NewDetector enables voice activity detection when set.
	NewDetector func() (SpeechDetector, error)
	OnEvent     func(Event)
	Clock       Clock
}

// Manager owns the microphone. At most one RecordingSession is alive at a
// time.
type Manager struct {
	capability audio.Capability
	cfg        Config
	clock      Clock

	mu     sync.Mutex
	active *RecordingSession
	gen    uint64
}

func NewManager(capability audio.Capability, cfg Config) *Manager {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.MinFrames == 0 {
		cfg.MinFrames = sampleRate / 10
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatFLAC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Manager{capability: capability, cfg: cfg, clock: clock}
}

// Active returns the running recording, if any.
func (m *Manager) Active() *RecordingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// MaxDuration is the effective recording ceiling.
func (m *Manager) MaxDuration() time.Duration { return m.cfg.MaxDuration }

// Start acquires the microphone and begins buffering. The ceiling timer is
// armed once the device is running.
func (m *Manager) Start() (*RecordingSession, error) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrRecordingActive
	}
	var open func() (audio.Context, error)
	switch c := m.capability.(type) {
	case audio.Available:
		open = c.Open
	case audio.Unavailable:
		m.mu.Unlock()
		return nil, &PermissionError{Reason: c.Reason}
	default:
		m.mu.Unlock()
		return nil, &PermissionError{Reason: "audio capture not available"}
	}
	m.gen++
	rec := &RecordingSession{
		ID:     uuid.New(),
		gen:    m.gen,
		mgr:    m,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	m.active = rec
	m.mu.Unlock()

	if err := m.acquire(rec, open); err != nil {
		rec.release()
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
		log.Warnf("mic acquisition failed: %v", err)
		return nil, &PermissionError{Err: err}
	}

	gen := rec.gen
	rec.mu.Lock()
	rec.started = m.clock.Now()
	rec.timer = m.clock.AfterFunc(m.cfg.MaxDuration, func() { m.expire(gen) })
	rec.mu.Unlock()

	go m.monitor(rec)
	log.Recording("recording_start", rec.ID.String(), 0)
	return rec, nil
}

func (m *Manager) acquire(rec *RecordingSession, open func() (audio.Context, error)) error {
	ctx, err := open()
	if err != nil {
		return err
	}
	rec.ctx = ctx

	if m.cfg.NewDetector != nil {
		// Without a detector every recording counts as voiced.
		if det, err := m.cfg.NewDetector(); err != nil {
			log.Warnf("speech detection disabled: %v", err)
		} else {
			rec.detector = det
		}
	}

	dev, err := ctx.NewCapture(m.cfg.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		Gain:       m.cfg.Gain,
	})
	if err != nil {
		return err
	}
	rec.dev = dev
	dev.SetCallback(rec.onData)
	return dev.Start()
}

// Stop ends the recording early. Stopping an already finished recording is
// a no-op.
func (m *Manager) Stop(rec *RecordingSession) {
	if rec != nil {
		m.finish(rec, StopManual)
	}
}

// Cancel ends the recording and discards what was captured.
func (m *Manager) Cancel(rec *RecordingSession) {
	if rec != nil {
		m.finish(rec, StopCancelled)
	}
}

// expire is the ceiling timer callback. The generation check makes a late
// fire from a previous recording harmless.
func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	rec := m.active
	m.mu.Unlock()
	if rec == nil || rec.gen != gen {
		return
	}
	log.Info("recording_ceiling_reached")
	m.finish(rec, StopTimeout)
}

func (m *Manager) finish(rec *RecordingSession, reason StopReason) {
	rec.stopOnce.Do(func() {
		rec.mu.Lock()
		if rec.timer != nil {
			rec.timer.Stop()
		}
		started := rec.started
		rec.mu.Unlock()
		close(rec.stopCh)

		rec.release()
		pcm := rec.takeChunks()

		c := Completion{
			ID:      rec.ID,
			Reason:  reason,
			Elapsed: m.clock.Now().Sub(started),
		}
		if rec.detector != nil {
			c.VoiceDetected = rec.detector.VoiceDetected()
		}
		m.finalize(&c, pcm, rec.detector != nil)
		rec.result = c

		m.mu.Lock()
		if m.active == rec {
			m.active = nil
		}
		m.mu.Unlock()

		log.Recording("recording_stop_"+reason.String(), rec.ID.String(), c.Payload.Duration().Seconds())
		close(rec.done)
	})
}

func (m *Manager) finalize(c *Completion, pcm []byte, vad bool) {
	if c.Reason == StopCancelled {
		c.Err = ErrCancelled
		return
	}
	frames := uint64(len(pcm) / 2)
	if frames < m.cfg.MinFrames {
		c.Err = ErrNoSpeechDetected
		return
	}
	if c.Reason == StopTimeout && vad && !c.VoiceDetected {
		c.Err = ErrNoSpeechDetected
		return
	}
	if !vad {
		c.VoiceDetected = true
	}

	enc, err := encoder.New(m.cfg.Format, encoder.Tag{Key: "RECORDING_ID", Value: c.ID.String()})
	if err != nil {
		c.Err = err
		return
	}
	if err := encoder.EncodeAll(enc, pcm); err != nil {
		c.Err = fmt.Errorf("encoding %s: %w", enc.Ext(), err)
		return
	}
	c.Payload = Payload{
		Data:        enc.Bytes(),
		Ext:         enc.Ext(),
		ContentType: enc.ContentType(),
		Frames:      enc.TotalFrames(),
	}
}

// monitor reports elapsed time and voice warnings until the recording ends.
func (m *Manager) monitor(rec *RecordingSession) {
	if m.cfg.OnEvent == nil {
		return
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	var mon *silenceMonitor
	if rec.detector != nil {
		mon = newSilenceMonitor()
	}
	start := time.Now()
	for {
		select {
		case <-rec.stopCh:
			return
		case <-ticker.C:
		}
		m.emit(Event{Kind: EventTick, Elapsed: time.Since(start)})
		if mon == nil {
			continue
		}
		switch mon.Tick(rec.detector.HasSpeechTick()) {
		case SilenceWarn, SilenceRepeat:
			log.Info("no_voice_warning")
			m.emit(Event{Kind: EventNoVoice})
		case SilenceWarnClear:
			m.emit(Event{Kind: EventVoiceResumed})
		}
	}
}

func (m *Manager) emit(ev Event) {
	if m.cfg.OnEvent != nil {
		m.cfg.OnEvent(ev)
	}
}

func rms(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(n))
}
