package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragyverse/backend"
	"ragyverse/log"
	"ragyverse/metrics"
	"ragyverse/playback"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultPath    = "/convert_to_speech"

	missingURLMessage  = "Server didn't return an audio URL"
	serverErrorMessage = "TTS server error"
)

// Prober validates that an audio reference is playable.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
	// Prober defaults to a silent playback.Prober sharing the client's
	// transport.
	Prober  Prober
	Metrics *metrics.Metrics
}

// Client turns an answer into a validated audio reference on the speech
// server.
type Client struct {
	base    *url.URL
	path    string
	http    *backend.TracedClient
	prober  Prober
	metrics *metrics.Metrics
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("tts url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("tts url %q: scheme must be http or https", cfg.BaseURL)
	}
	hc := backend.NewTracedClient(cfg.Timeout)
	prober := cfg.Prober
	if prober == nil {
		prober = playback.NewProber(playback.ProbeConfig{HTTP: hc.HTTP(), Metrics: cfg.Metrics})
	}
	return &Client{base: base, path: cfg.Path, http: hc, prober: prober, metrics: cfg.Metrics}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

// Synthesize requests speech for answer and returns the absolute URL of
// the audio once it passed the playback probe.
func (c *Client) Synthesize(ctx context.Context, answer, question, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrAuthRequired
	}

	payload, err := json.Marshal(struct {
		Text     string `json:"text"`
		Question string `json:"question"`
	}{answer, question})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(c.path).String(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.NetworkError("synthesize")
		log.Warnf("synthesize request %s failed: %v", reqID, err)
		return "", &backend.NetworkError{Op: "synthesize", Err: err}
	}
	backend.RecordRequest(c.metrics, "synthesize", reqID, len(payload), resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		be := backend.ResponseError("synthesize", resp.StatusCode, resp.Body)
		msg := be.Message
		if msg == "" {
			msg = serverErrorMessage
		}
		return "", &SynthesisError{Status: be.Status, Message: msg}
	}

	var out struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil || strings.TrimSpace(out.AudioURL) == "" {
		return "", &SynthesisError{Message: missingURLMessage}
	}

	ref, err := c.resolve(out.AudioURL)
	if err != nil {
		return "", &SynthesisError{Message: fmt.Sprintf("bad audio url %q: %v", out.AudioURL, err)}
	}
	if err := c.prober.Probe(ctx, ref); err != nil {
		log.Warnf("probe failed for %s: %v", ref, err)
		return "", &PlaybackValidationError{URL: ref, Err: err}
	}
	return ref, nil
}

// resolve appends a server relative locator to the base URL. Absolute
// locators are used as given.
func (c *Client) resolve(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base := strings.TrimRight(c.base.String(), "/")
	return base + "/" + strings.TrimLeft(u.String(), "/"), nil
}
