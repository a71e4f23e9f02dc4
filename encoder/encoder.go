package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
	// Ext is the file extension used when the payload is uploaded.
	Ext() string
	ContentType() string
}

// New returns an encoder for one of the supported container formats.
// Tags are written where the container has room for them.
func New(format string, tags ...Tag) (Encoder, error) {
	switch format {
	case FormatFLAC, "":
		return NewFlac(tags...)
	case FormatWAV:
		return NewWav(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (use flac or wav)", format)
	}
}

// Samples decodes little-endian 16-bit PCM. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// EncodeAll feeds pcm through enc in BlockSize chunks and closes it.
func EncodeAll(enc Encoder, pcm []byte) error {
	samples := Samples(pcm)
	start := time.Now()
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return err
		}
	}
	enc.AddEncodeTime(time.Since(start))
	return enc.Close()
}
