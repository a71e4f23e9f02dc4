package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"
)

const WAVHeaderSize = 44

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WavEncoder buffers raw PCM and writes the RIFF header on Close, once the
// data size is known.
type WavEncoder struct {
	pcm         bytes.Buffer
	out         []byte
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewWav() *WavEncoder {
	return &WavEncoder{}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := binary.Write(&e.pcm, binary.LittleEndian, block); err != nil {
		return err
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out != nil {
		return nil
	}
	dataSize := uint32(e.pcm.Len())
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * Channels * BitsPerSample / 8,
		BlockAlign:    Channels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+int(dataSize)))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return err
	}
	buf.Write(e.pcm.Bytes())
	e.out = buf.Bytes()
	return nil
}

// Bytes returns the finished file; nil until Close.
func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}

func (e *WavEncoder) Ext() string { return FormatWAV }

func (e *WavEncoder) ContentType() string { return "audio/wav" }

// PCMFromWAV strips a canonical 44-byte header. Anything shorter is returned
// unchanged.
func PCMFromWAV(data []byte) []byte {
	if len(data) > WAVHeaderSize && string(data[0:4]) == "RIFF" {
		return data[WAVHeaderSize:]
	}
	return data
}
