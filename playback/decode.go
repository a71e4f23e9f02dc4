package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"ragyverse/encoder"
)

var ErrEmptyAudio = errors.New("audio resource is empty")

// Clip is decoded 16-bit PCM ready for an audio.Output.
type Clip struct {
	PCM        []int16
	SampleRate int
	Channels   int
}

func (c Clip) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.PCM)) / float64(c.SampleRate*c.Channels)
}

// Decode turns an MP3 or WAV resource into PCM. When limit is positive at
// most limit bytes of PCM are decoded, which is all a probe needs.
func Decode(data []byte, limit int) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, ErrEmptyAudio
	}
	if isWAV(data) {
		return decodeWAV(data, limit)
	}
	return decodeMP3(data, limit)
}

func isWAV(data []byte) bool {
	return len(data) > encoder.WAVHeaderSize && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeWAV(data []byte, limit int) (Clip, error) {
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	rate := int(binary.LittleEndian.Uint32(data[24:28]))
	bits := int(binary.LittleEndian.Uint16(data[34:36]))
	if bits != 16 || channels < 1 || channels > 2 || rate == 0 {
		return Clip{}, fmt.Errorf("wav: unsupported format (%d ch, %d Hz, %d bit)", channels, rate, bits)
	}
	pcm := encoder.PCMFromWAV(data)
	if limit > 0 && len(pcm) > limit {
		pcm = pcm[:limit]
	}
	if len(pcm) < 2 {
		return Clip{}, ErrEmptyAudio
	}
	return Clip{PCM: encoder.Samples(pcm), SampleRate: rate, Channels: channels}, nil
}

// go-mp3 always yields interleaved stereo 16-bit little endian.
func decodeMP3(data []byte, limit int) (Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("mp3: %w", err)
	}

	var out []byte
	var rd io.Reader = dec
	if limit > 0 {
		rd = io.LimitReader(dec, int64(limit))
	}
	out, err = io.ReadAll(rd)
	if err != nil && len(out) == 0 {
		return Clip{}, fmt.Errorf("mp3: %w", err)
	}
	if len(out) < 4 {
		return Clip{}, ErrEmptyAudio
	}
	return Clip{PCM: encoder.Samples(out), SampleRate: dec.SampleRate(), Channels: 2}, nil
}
