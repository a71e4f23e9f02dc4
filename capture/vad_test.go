package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genTone(freq float64, durationMs int) []byte {
	n := 16000 * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, 16000*durationMs/1000*2)
}

// loudFrames marks a frame as speech when its first sample is non-zero.
func loudFrames(frame []byte) (bool, error) {
	return frame[0] != 0 || frame[1] != 0, nil
}

// frames builds PCM from a pattern of speech (true) and silence frames.
func frames(pattern ...bool) []byte {
	var out []byte
	for _, speech := range pattern {
		f := make([]byte, vadFrameBytes)
		if speech {
			f[0] = 1
		}
		out = append(out, f...)
	}
	return out
}

func TestVADNeedsConsecutiveSpeech(t *testing.T) {
	vp := newVADProcessor(loudFrames)
	vp.Process(frames(true, true, false, true, true, false))
	assert.False(t, vp.VoiceDetected(), "two-frame bursts are clicks")

	vp.Process(frames(true, true, true))
	assert.True(t, vp.VoiceDetected())

	vp.Process(frames(false, false))
	assert.True(t, vp.VoiceDetected(), "detection latches")
}

func TestVADUnalignedChunks(t *testing.T) {
	vp := newVADProcessor(loudFrames)
	pcm := frames(true, true, true)
	for i := 0; i < len(pcm); i += 100 {
		vp.Process(pcm[i:min(i+100, len(pcm))])
	}
	assert.True(t, vp.VoiceDetected())
	assert.Empty(t, vp.pending)
}

func TestVADClassifierErrorsSkipFrames(t *testing.T) {
	calls := 0
	vp := newVADProcessor(func(f []byte) (bool, error) {
		calls++
		if calls == 2 {
			return false, errors.New("bad frame")
		}
		return true, nil
	})
	vp.Process(frames(true, true, true, true))
	assert.True(t, vp.VoiceDetected(), "a rejected frame does not break the run")
	assert.True(t, vp.HasSpeechTick())
}

func TestVADSpeechTick(t *testing.T) {
	vp := newVADProcessor(loudFrames)
	assert.False(t, vp.HasSpeechTick(), "empty tick")

	// 1 of 20 frames is below the share.
	pattern := make([]bool, 20)
	pattern[0] = true
	vp.Process(frames(pattern...))
	assert.False(t, vp.HasSpeechTick())

	pattern[1] = true
	vp.Process(frames(pattern...))
	assert.True(t, vp.HasSpeechTick())
	assert.False(t, vp.HasSpeechTick(), "counts reset every tick")
}

func TestWebrtcVADSilence(t *testing.T) {
	d, err := NewVAD()
	require.NoError(t, err)
	d.Process(genSilence(300))
	assert.False(t, d.VoiceDetected())
	assert.False(t, d.HasSpeechTick())
}

func TestWebrtcVADTone(t *testing.T) {
	d, err := NewVAD()
	require.NoError(t, err)
	d.Process(genTone(440, 300))
	if !d.VoiceDetected() {
		t.Skip("pure tone not classified as speech by this webrtc build")
	}
}
