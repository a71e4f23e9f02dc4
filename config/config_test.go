package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func noEnv(string) string { return "" }

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "http://localhost:5001", c.TTS.URL)
	assert.Equal(t, "/ask_audio1", c.Backend.Endpoints.AskAudio)
	assert.Equal(t, 10*time.Second, c.Audio.MaxDuration)
	assert.Equal(t, "silent", c.TTS.Probe)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, "ragyverse.yaml", `
backend:
  url: https://qa.example.com
  timeout: 45s
  endpoints:
    ask_text: /v2/ask
tts:
  url: https://tts.example.com
  probe: audible
audio:
  format: wav
  max_duration: 15s
metrics:
  addr: 127.0.0.1:9090
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://qa.example.com", c.Backend.URL)
	assert.Equal(t, 45*time.Second, c.Backend.Timeout)
	assert.Equal(t, "/v2/ask", c.Backend.Endpoints.AskText)
	assert.Equal(t, "/upload_pdf", c.Backend.Endpoints.Upload, "unset endpoints keep defaults")
	assert.Equal(t, "audible", c.TTS.Probe)
	assert.Equal(t, "/convert_to_speech", c.TTS.Path)
	assert.Equal(t, "wav", c.Audio.Format)
	assert.Equal(t, 15*time.Second, c.Audio.MaxDuration)
	assert.True(t, c.Audio.VAD)
	assert.Equal(t, "127.0.0.1:9090", c.Metrics.Addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "bad.yaml", "backend: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(writeFile(t, "invalid.yaml", "audio:\n  format: ogg\n"))
	assert.ErrorContains(t, err, "config validation failed")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"backend scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "backend config"},
		{"backend empty", func(c *Config) { c.Backend.URL = "" }, "url cannot be empty"},
		{"tts host", func(c *Config) { c.TTS.URL = "http://" }, "has no host"},
		{"negative timeout", func(c *Config) { c.Backend.Timeout = -time.Second }, "timeout must not be negative"},
		{"probe mode", func(c *Config) { c.TTS.Probe = "loud" }, "unknown probe mode"},
		{"format", func(c *Config) { c.Audio.Format = "mp3" }, "unknown format"},
		{"duration too short", func(c *Config) { c.Audio.MaxDuration = 500 * time.Millisecond }, "max_duration"},
		{"duration too long", func(c *Config) { c.Audio.MaxDuration = 2 * time.Minute }, "max_duration"},
		{"gain", func(c *Config) { c.Audio.Gain = 20 }, "gain must be between"},
		{"hotkey without modifier", func(c *Config) { c.Hotkey = "space" }, "needs ctrl or shift"},
		{"hotkey unknown key", func(c *Config) { c.Hotkey = "ctrl+z" }, "unsupported key"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestResolveEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvBackendURL:  "http://10.0.0.2:5000",
		EnvTTSURL:      "http://10.0.0.3:5001",
		EnvToken:       "jwt-token",
		EnvMetricsAddr: ":9100",
		EnvLogLevel:    "debug",
	}
	c, err := Resolve("", func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:5000", c.Backend.URL)
	assert.Equal(t, "http://10.0.0.3:5001", c.TTS.URL)
	assert.Equal(t, "jwt-token", c.Token)
	assert.Equal(t, ":9100", c.Metrics.Addr)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestResolveFileThenEnv(t *testing.T) {
	path := writeFile(t, "c.yaml", "backend:\n  url: http://file:5000\ntoken: from-file\n")
	c, err := Resolve(path, func(k string) string {
		if k == EnvBackendURL {
			return "http://env:5000"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "http://env:5000", c.Backend.URL)
	assert.Equal(t, "from-file", c.Token)

	_, err = Resolve("", func(k string) string {
		if k == EnvTTSURL {
			return "not a url"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "RAGYVERSE_TEST_DOTENV=hello\n")
	t.Cleanup(func() { os.Unsetenv("RAGYVERSE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "hello", os.Getenv("RAGYVERSE_TEST_DOTENV"))

	c, err := Resolve("", noEnv)
	require.NoError(t, err)
	assert.Empty(t, c.Token)
}
