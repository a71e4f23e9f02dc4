package encoder

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacVendor = "ragyverse"

// Tag is a Vorbis comment field stored in the FLAC header, e.g.
// RECORDING_ID. Containers without metadata ignore tags.
type Tag struct {
	Key   string
	Value string
}

// FlacEncoder writes mono 16 kHz FLAC into memory. It is driven from a
// single goroutine by EncodeAll.
type FlacEncoder struct {
	buf     bytes.Buffer
	enc     *flac.Encoder
	scratch []int32
	frames  uint64
	elapsed time.Duration
}

func NewFlac(tags ...Tag) (*FlacEncoder, error) {
	e := &FlacEncoder{scratch: make([]int32, 0, BlockSize)}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	var blocks []*meta.Block
	if len(tags) > 0 {
		blocks = append(blocks, vorbisComment(tags))
	}
	enc, err := flac.NewEncoder(&e.buf, info, blocks...)
	if err != nil {
		return nil, fmt.Errorf("flac header: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

func vorbisComment(tags []Tag) *meta.Block {
	vc := &meta.VorbisComment{Vendor: flacVendor}
	for _, t := range tags {
		vc.Tags = append(vc.Tags, [2]string{t.Key, t.Value})
	}
	return &meta.Block{
		Header: meta.Header{Type: meta.TypeVorbisComment},
		Body:   vc,
	}
}

// EncodeBlock writes one frame. Blocks of digital silence become a
// constant subframe so muted stretches cost a few bytes.
func (e *FlacEncoder) EncodeBlock(block []int16) error {
	n := len(block)
	if n == 0 {
		return nil
	}
	e.scratch = e.scratch[:0]
	flat := true
	for _, s := range block {
		if s != block[0] {
			flat = false
		}
		e.scratch = append(e.scratch, int32(s))
	}
	pred := frame.PredVerbatim
	if flat {
		pred = frame.PredConstant
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: pred},
			Samples:   e.scratch,
			NSamples:  n,
		}},
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("flac frame at sample %d: %w", e.frames, err)
	}
	e.frames += uint64(n)
	return nil
}

// Close flushes the last frame. The stream info keeps NSamples at zero
// (unknown) because the buffer cannot be rewound.
func (e *FlacEncoder) Close() error { return e.enc.Close() }

func (e *FlacEncoder) Bytes() []byte                 { return e.buf.Bytes() }
func (e *FlacEncoder) TotalFrames() uint64           { return e.frames }
func (e *FlacEncoder) AddEncodeTime(d time.Duration) { e.elapsed += d }
func (e *FlacEncoder) EncodeTime() time.Duration     { return e.elapsed }
func (e *FlacEncoder) Ext() string                   { return FormatFLAC }
func (e *FlacEncoder) ContentType() string           { return "audio/flac" }
