package encoder

import (
	"bytes"
	"io"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineish(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((i*37)%2000 - 1000)
	}
	return out
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// decode parses a whole stream and returns its samples plus metadata.
func decode(t *testing.T, data []byte) ([]int16, *flac.Stream) {
	t.Helper()
	stream, err := flac.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	var got []int16
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, s := range f.Subframes[0].Samples {
			got = append(got, int16(s))
		}
	}
	return got, stream
}

func TestFlacRoundTrip(t *testing.T) {
	samples := sineish(BlockSize*2 + 123)
	enc, err := NewFlac()
	require.NoError(t, err)
	require.NoError(t, EncodeAll(enc, pcmBytes(samples)))

	assert.Equal(t, uint64(len(samples)), enc.TotalFrames())
	assert.Equal(t, "fLaC", string(enc.Bytes()[:4]))

	got, stream := decode(t, enc.Bytes())
	assert.Equal(t, samples, got)
	assert.Equal(t, uint32(SampleRate), stream.Info.SampleRate)
	assert.Equal(t, uint8(Channels), stream.Info.NChannels)
}

func TestFlacSilenceIsCompact(t *testing.T) {
	enc, err := NewFlac()
	require.NoError(t, err)
	silence := make([]byte, BlockSize*4*2)
	require.NoError(t, EncodeAll(enc, silence))

	assert.Less(t, len(enc.Bytes()), len(silence)/20)
	got, _ := decode(t, enc.Bytes())
	assert.Len(t, got, BlockSize*4)
	for _, s := range got {
		if s != 0 {
			t.Fatalf("decoded non-zero sample %d from silence", s)
		}
	}
}

func TestFlacRecordingTag(t *testing.T) {
	enc, err := New(FormatFLAC, Tag{Key: "RECORDING_ID", Value: "abc-123"})
	require.NoError(t, err)
	require.NoError(t, EncodeAll(enc, pcmBytes(sineish(500))))

	_, stream := decode(t, enc.Bytes())
	var found *meta.VorbisComment
	for _, b := range stream.Blocks {
		if vc, ok := b.Body.(*meta.VorbisComment); ok {
			found = vc
		}
	}
	require.NotNil(t, found, "vorbis comment block missing")
	assert.Equal(t, flacVendor, found.Vendor)
	assert.Equal(t, [][2]string{{"RECORDING_ID", "abc-123"}}, found.Tags)
}

func TestFlacEmpty(t *testing.T) {
	enc, err := NewFlac()
	require.NoError(t, err)
	require.NoError(t, enc.EncodeBlock(nil))
	require.NoError(t, enc.Close())
	assert.Zero(t, enc.TotalFrames())
	assert.NotEmpty(t, enc.Bytes(), "header is always written")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("ogg")
	assert.ErrorContains(t, err, `unknown format "ogg"`)

	enc, err := New(FormatWAV, Tag{Key: "X", Value: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", enc.ContentType())
}
