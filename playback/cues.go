package playback

import (
	"math"
	"sync"

	"ragyverse/audio"
	"ragyverse/log"
)

const (
	cueRate = 44100

	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Cues plays the short recording start/stop/error ticks.
type Cues struct {
	out      audio.Output
	disabled bool

	once  sync.Once
	start []int16
	end   []int16
	fail  []int16
}

// NewCues returns cues on out. A nil out or disabled yields silent cues.
func NewCues(out audio.Output, disabled bool) *Cues {
	return &Cues{out: out, disabled: disabled || out == nil}
}

func (c *Cues) init() {
	// 200ms tails so the server buffer fills before drain
	c.start = generateTick(cueRate, startFreq, 0.2, startVolume, startDecay)
	c.end = generateTick(cueRate, endFreq, 0.2, endVolume, endDecay)
	c.fail = generateDoubleBeep(cueRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

func (c *Cues) PlayStart() { c.play(func() []int16 { return c.start }) }
func (c *Cues) PlayEnd()   { c.play(func() []int16 { return c.end }) }
func (c *Cues) PlayError() { c.play(func() []int16 { return c.fail }) }

func (c *Cues) play(pick func() []int16) {
	if c == nil || c.disabled {
		return
	}
	c.once.Do(c.init)
	samples := pick()
	go func() {
		if _, err := c.out.Start(samples, cueRate, 1); err != nil {
			log.Warnf("cue playback: %v", err)
		}
	}()
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
