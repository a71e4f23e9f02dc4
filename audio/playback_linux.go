//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseOutput struct{}

func NewOutput() Output { return pulseOutput{} }

type pulsePlayback struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
	done   chan struct{}
	once   sync.Once
}

func (pulseOutput) Start(pcm []int16, sampleRate, channels int) (Playback, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(pcm) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, pcm[pos:])
		pos += n
		return n, nil
	})

	layout := pulse.PlaybackMono
	volumes := proto.ChannelVolumes{uint32(proto.VolumeNorm)}
	if channels == 2 {
		layout = pulse.PlaybackStereo
		volumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
	}
	stream, err := c.NewPlayback(reader,
		layout,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = volumes
		}),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("pulse playback: %w", err)
	}

	p := &pulsePlayback{client: c, stream: stream, done: make(chan struct{})}
	stream.Start()
	go func() {
		stream.Drain()
		p.Stop()
	}()
	return p, nil
}

func (p *pulsePlayback) Wait() { <-p.done }

func (p *pulsePlayback) Stop() {
	p.once.Do(func() {
		p.stream.Stop()
		p.stream.Close()
		p.client.Close()
		close(p.done)
	})
}
