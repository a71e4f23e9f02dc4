package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragyverse/audio"
	"ragyverse/log"
	"ragyverse/metrics"
)

// Mode selects how a Prober validates a resource.
type Mode int

const (
	// Silent fetches and decodes the first frames without touching a sink.
	Silent Mode = iota
	// Audible additionally opens the default sink, starts the decoded
	// frames and stops them straight away.
	Audible
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "silent":
		return Silent, nil
	case "audible":
		return Audible, nil
	}
	return Silent, fmt.Errorf("unknown probe mode %q (use silent or audible)", s)
}

func (m Mode) String() string {
	if m == Audible {
		return "audible"
	}
	return "silent"
}

const (
	probePCMBytes   = 16 * 1024
	maxDownloadSize = 32 << 20
)

type ProbeConfig struct {
	HTTP    *http.Client
	Output  audio.Output // required for Audible
	Mode    Mode
	Metrics *metrics.Metrics
}

// Prober checks that a synthesized audio reference can be loaded and
// decoded before it is shown to the user.
type Prober struct {
	http    *http.Client
	out     audio.Output
	mode    Mode
	metrics *metrics.Metrics
}

func NewProber(cfg ProbeConfig) *Prober {
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Prober{http: hc, out: cfg.Output, mode: cfg.Mode, metrics: cfg.Metrics}
}

func (p *Prober) Probe(ctx context.Context, url string) error {
	start := time.Now()
	defer func() { p.metrics.ObserveProbe(time.Since(start)) }()

	data, err := Fetch(ctx, p.http, url)
	if err != nil {
		return err
	}
	clip, err := Decode(data, probePCMBytes)
	if err != nil {
		return err
	}
	if p.mode == Audible {
		if p.out == nil {
			return fmt.Errorf("audible probe: no output device")
		}
		pb, err := p.out.Start(clip.PCM, clip.SampleRate, clip.Channels)
		if err != nil {
			return fmt.Errorf("audible probe: %w", err)
		}
		pb.Stop()
	}
	log.Info(fmt.Sprintf("probe ok mode=%s bytes=%d rate=%d ms=%d", p.mode, len(data), clip.SampleRate, time.Since(start).Milliseconds()))
	return nil
}

// Fetch downloads an audio resource. Non-2xx responses are errors.
func Fetch(ctx context.Context, hc *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	return data, nil
}
