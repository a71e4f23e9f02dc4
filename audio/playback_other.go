//go:build !linux

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoOutput struct{}

func NewOutput() Output { return malgoOutput{} }

type malgoPlayback struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	done   chan struct{}
	once   sync.Once
}

func (malgoOutput) Start(pcm []int16, sampleRate, channels int) (Playback, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: %w", err)
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(sampleRate)

	p := &malgoPlayback{ctx: ctx, done: make(chan struct{})}

	var mu sync.Mutex
	pos := 0
	finished := false
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			mu.Lock()
			defer mu.Unlock()
			want := int(frameCount) * channels
			n := 0
			for ; n < want && pos < len(pcm); n++ {
				binary.LittleEndian.PutUint16(out[n*2:], uint16(pcm[pos]))
				pos++
			}
			for i := n * 2; i < len(out); i++ {
				out[i] = 0
			}
			if pos >= len(pcm) && !finished {
				finished = true
				go p.Stop()
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("malgo playback: %w", err)
	}
	p.device = dev
	if err := dev.Start(); err != nil {
		p.Stop()
		return nil, fmt.Errorf("malgo playback start: %w", err)
	}
	return p, nil
}

func (p *malgoPlayback) Wait() { <-p.done }

func (p *malgoPlayback) Stop() {
	p.once.Do(func() {
		p.device.Uninit()
		p.ctx.Uninit()
		p.ctx.Free()
		close(p.done)
	})
}
