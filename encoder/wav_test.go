package encoder

import (
	"encoding/binary"
	"testing"
)

func TestWavEncoderHeader(t *testing.T) {
	enc := NewWav()
	block := make([]int16, 1000)
	for i := range block {
		block[i] = int16(i)
	}
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := enc.Bytes()
	if len(out) != WAVHeaderSize+2000 {
		t.Fatalf("len = %d, want %d", len(out), WAVHeaderSize+2000)
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Fatalf("bad header: %q", out[:44])
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != 2000 {
		t.Errorf("data size = %d, want 2000", got)
	}
	if enc.TotalFrames() != 1000 {
		t.Errorf("TotalFrames = %d, want 1000", enc.TotalFrames())
	}
}

func TestWavRoundTripPCM(t *testing.T) {
	pcm := make([]byte, 64)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	enc := NewWav()
	if err := EncodeAll(enc, pcm); err != nil {
		t.Fatal(err)
	}
	got := PCMFromWAV(enc.Bytes())
	if string(got) != string(pcm) {
		t.Error("PCM did not survive header round trip")
	}
}

func TestNewFormats(t *testing.T) {
	for _, tt := range []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"flac", "flac", false},
		{"", "flac", false},
		{"wav", "wav", false},
		{"ogg", "", true},
	} {
		t.Run(tt.format, func(t *testing.T) {
			enc, err := New(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if enc.Ext() != tt.wantExt {
				t.Errorf("Ext = %q, want %q", enc.Ext(), tt.wantExt)
			}
		})
	}
}

func TestSamplesOddLength(t *testing.T) {
	got := Samples([]byte{0x01, 0x00, 0xff})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Samples = %v, want [1]", got)
	}
}
