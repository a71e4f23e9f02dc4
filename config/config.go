package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ragyverse/backend"
	"ragyverse/capture"
	"ragyverse/encoder"
	"ragyverse/hotkey"
	"ragyverse/log"
	"ragyverse/playback"
	"ragyverse/synth"
)

const (
	EnvBackendURL  = "RAGYVERSE_BACKEND_URL"
	EnvTTSURL      = "RAGYVERSE_TTS_URL"
	EnvToken       = "RAGYVERSE_TOKEN"
	EnvMetricsAddr = "RAGYVERSE_METRICS_ADDR"
	EnvLogLevel    = "RAGYVERSE_LOG_LEVEL"
)

// Config is the client configuration
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	TTS     TTSConfig     `yaml:"tts"`
	Audio   AudioConfig   `yaml:"audio"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
	// Hotkey toggles voice recording, e.g. "ctrl+shift+space".
	Hotkey string `yaml:"hotkey"`
	// Token authorizes synthesis. Prefer the environment over the file.
	Token string `yaml:"token"`
}

// BackendConfig is the question answering service
type BackendConfig struct {
	URL       string            `yaml:"url"`
	Timeout   time.Duration     `yaml:"timeout"`
	Endpoints backend.Endpoints `yaml:"endpoints"`
}

// TTSConfig is the speech synthesis service
type TTSConfig struct {
	URL     string        `yaml:"url"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
	// Probe is "silent" (decode only) or "audible".
	Probe string `yaml:"probe"`
}

// AudioConfig covers capture and cues
type AudioConfig struct {
	Format      string        `yaml:"format"`
	MaxDuration time.Duration `yaml:"max_duration"`
	Device      string        `yaml:"device"`
	// Gain scales the microphone signal, 0 keeps the platform default.
	Gain float64 `yaml:"gain"`
	VAD  bool    `yaml:"vad"`
	Cues bool    `yaml:"cues"`
}

type MetricsConfig struct {
	// Addr for the /metrics listener, empty disables it.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Path string `yaml:"path"`
	// Level is a zerolog level name: debug, info, warn or error.
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:       backend.DefaultBaseURL,
			Endpoints: backend.DefaultEndpoints,
		},
		TTS: TTSConfig{
			URL:   synth.DefaultBaseURL,
			Path:  synth.DefaultPath,
			Probe: playback.Silent.String(),
		},
		Audio: AudioConfig{
			Format:      encoder.FormatFLAC,
			MaxDuration: capture.DefaultMaxDuration,
			VAD:         true,
			Cues:        true,
		},
		Log:    LogConfig{Level: "info"},
		Hotkey: hotkey.DefaultCombo.String(),
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped and variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := getenv(EnvTTSURL); v != "" {
		c.TTS.URL = v
	}
	if v := getenv(EnvToken); v != "" {
		c.Token = v
	}
	if v := getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Resolve builds the effective configuration: defaults, then the file at
// path when given, then the environment.
func Resolve(path string, getenv func(string) string) (*Config, error) {
	c := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	c.ApplyEnv(getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if err := validateURL(c.Backend.URL); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend config: timeout must not be negative, got %s", c.Backend.Timeout)
	}
	if err := validateURL(c.TTS.URL); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	if c.TTS.Timeout < 0 {
		return fmt.Errorf("tts config: timeout must not be negative, got %s", c.TTS.Timeout)
	}
	if _, err := playback.ParseMode(c.TTS.Probe); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if _, err := hotkey.ParseCombo(c.Hotkey); err != nil {
		return fmt.Errorf("hotkey: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if _, err := encoder.New(a.Format); err != nil {
		return err
	}
	if a.Gain < 0 || a.Gain > 16 {
		return fmt.Errorf("gain must be between 0 and 16, got %g", a.Gain)
	}
	if a.MaxDuration < time.Second || a.MaxDuration > time.Minute {
		return fmt.Errorf("max_duration must be between 1s and 1m, got %s", a.MaxDuration)
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
