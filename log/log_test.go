package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initIn(t *testing.T, level string) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	require.NoError(t, Init(level))
	return tmp
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"absolute flag", "/tmp/mylog", "/tmp/ignored", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"env", "", "/tmp/ragyverse-env-log", "/tmp/ragyverse-env-log"},
		{"relative env", "", "envlogs", filepath.Join(wd, "envlogs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvPath, tt.env)
			got, err := ResolveDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv(EnvPath, "")
	got, err := ResolveDir("")
	require.NoError(t, err)
	assert.Contains(t, got, "ragyverse")
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "INFO", "warn", "error"} {
		_, err := ParseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, `unknown log level "loud"`)
}

func TestInitRejectsBadLevel(t *testing.T) {
	SetDir(t.TempDir())
	t.Cleanup(func() { SetDir("") })
	assert.Error(t, Init("loud"))
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := initIn(t, "info")
	for _, name := range []string{diagName, qaName} {
		_, err := os.Stat(filepath.Join(tmp, name))
		assert.NoError(t, err, name)
	}
}

func TestQAWritesOneLine(t *testing.T) {
	tmp := initIn(t, "error")
	QA("what is\nchapter two about?", "Rivers.")

	line := readLog(t, tmp, qaName)
	assert.Contains(t, line, "Q: what is chapter two about?")
	assert.Contains(t, line, "A: Rivers.")
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestDiagnosticsFields(t *testing.T) {
	tmp := initIn(t, "debug")
	Transition("idle", "awaiting_answer", "submit_text")
	Request(RequestMetrics{Op: "ask_text", Status: 200, TotalMs: 12, ConnReused: true})
	Recording("recording_stop_timeout", "rec-1", 10)

	diag := readLog(t, tmp, diagName)
	for _, want := range []string{
		"transition", "to=awaiting_answer",
		"op=ask_text", "status=200", "conn=reused",
		"recording=rec-1", "audio_s=10",
	} {
		assert.Contains(t, diag, want)
	}
}

func TestLevelFiltersDiagnostics(t *testing.T) {
	tmp := initIn(t, "warn")
	Transition("idle", "recording", "start_recording")
	Info("hidden")
	Warnf("mic level %d", 3)

	diag := readLog(t, tmp, diagName)
	assert.NotContains(t, diag, "transition")
	assert.NotContains(t, diag, "hidden")
	assert.Contains(t, diag, "mic level 3")
}

func TestCallsBeforeInitAreNoops(t *testing.T) {
	Close()
	QA("q", "a")
	Transition("a", "b", "c")
	Request(RequestMetrics{Op: "x"})
	Info("ignored")
	Errorf("ignored %d", 1)
}

func TestCloseIdempotent(t *testing.T) {
	initIn(t, "")
	Close()
	Close()
}
