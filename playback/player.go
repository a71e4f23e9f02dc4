package playback

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"ragyverse/audio"
)

// Player plays a whole answer. Starting a new clip stops the previous one.
type Player struct {
	http *http.Client
	out  audio.Output

	mu      sync.Mutex
	current audio.Playback
}

func NewPlayer(hc *http.Client, out audio.Output) *Player {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Player{http: hc, out: out}
}

func (p *Player) Play(ctx context.Context, url string) (audio.Playback, error) {
	data, err := Fetch(ctx, p.http, url)
	if err != nil {
		return nil, err
	}
	clip, err := Decode(data, 0)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
	pb, err := p.out.Start(clip.PCM, clip.SampleRate, clip.Channels)
	if err != nil {
		return nil, fmt.Errorf("play: %w", err)
	}
	p.current = pb
	return pb, nil
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
}
