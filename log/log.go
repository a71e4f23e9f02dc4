// Package log writes the diagnostics and Q&A transcript files. Every
// function is a no-op until Init succeeds, so packages can log freely from
// tests and from code paths that run before the log directory exists.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvPath       = "RAGYVERSE_LOG_PATH"
	diagName      = "diagnostics_log.txt"
	qaName        = "qa_log.txt"
	stampLayout   = "2006-01-02 15:04:05"
	fileOpenFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
)

var (
	mu     sync.Mutex
	ready  atomic.Bool
	diag   zerolog.Logger
	files  []*os.File
	qaFile *os.File
	dir    string
)

// RequestMetrics is the per-call timing breakdown of a backend request.
type RequestMetrics struct {
	Op          string
	Status      int
	RequestID   string
	BytesSent   int
	BytesRecv   int
	DNSMs       float64
	TLSMs       float64
	TTFBMs      float64
	TotalMs     float64
	ConnReused  bool
	TLSProtocol string
}

// ResolveDir picks the log directory: the explicit path, then
// RAGYVERSE_LOG_PATH, then the platform default. Relative paths are
// taken from the working directory.
func ResolveDir(path string) (string, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return defaultDir()
	}
	return filepath.Abs(path)
}

func SetDir(d string) { dir = d }
func Dir() string     { return dir }

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	return nil
}

// ParseLevel accepts zerolog level names. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// Init opens both files under Dir. level filters the diagnostics file
// only; the transcript always records every answer.
func Init(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	closeLocked()

	if err := EnsureDir(); err != nil {
		return err
	}
	df, err := os.OpenFile(filepath.Join(dir, diagName), fileOpenFlags, 0644)
	if err != nil {
		return err
	}
	qf, err := os.OpenFile(filepath.Join(dir, qaName), fileOpenFlags, 0644)
	if err != nil {
		df.Close()
		return err
	}
	files = []*os.File{df, qf}
	qaFile = qf

	out := zerolog.ConsoleWriter{Out: df, TimeFormat: stampLayout, NoColor: true}
	diag = zerolog.New(out).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
	ready.Store(true)
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	ready.Store(false)
	for _, f := range files {
		f.Close()
	}
	files, qaFile = nil, nil
}

// at returns a nil event before Init, which zerolog treats as disabled.
func at(lvl zerolog.Level) *zerolog.Event {
	if !ready.Load() {
		return nil
	}
	return diag.WithLevel(lvl)
}

func Info(msg string) { at(zerolog.InfoLevel).Msg(msg) }

func Warnf(format string, args ...any)  { at(zerolog.WarnLevel).Msgf(format, args...) }
func Errorf(format string, args ...any) { at(zerolog.ErrorLevel).Msgf(format, args...) }

func Request(m RequestMetrics) {
	conn := "new"
	if m.ConnReused {
		conn = "reused"
	}
	ev := at(zerolog.InfoLevel).
		Str("op", m.Op).
		Int("status", m.Status).
		Str("request_id", m.RequestID).
		Str("conn", conn)
	if m.TLSProtocol != "" {
		ev = ev.Str("tls_proto", m.TLSProtocol)
	}
	ev.Int("sent_bytes", m.BytesSent).
		Int("recv_bytes", m.BytesRecv).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("request")
}

// Transition records a session state change.
func Transition(from, to, op string) {
	at(zerolog.DebugLevel).Str("from", from).Str("to", to).Str("op", op).Msg("transition")
}

func Recording(event, id string, audioS float64) {
	ev := at(zerolog.InfoLevel).Str("recording", id)
	if audioS > 0 {
		ev = ev.Float64("audio_s", audioS)
	}
	ev.Msg(event)
}

// QA appends one answered question to the transcript file.
func QA(question, answer string) {
	mu.Lock()
	defer mu.Unlock()
	if qaFile == nil {
		return
	}
	fmt.Fprintf(qaFile, "%s\t[%d]\tQ: %s\tA: %s\n", time.Now().Format(stampLayout),
		os.Getpid(), oneLine(question), oneLine(answer))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func SessionStart(backendURL, ttsURL, format string) {
	at(zerolog.InfoLevel).
		Str("backend", backendURL).
		Str("tts", ttsURL).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(count int) {
	at(zerolog.InfoLevel).Int("answered", count).Msg("session_end")
}
