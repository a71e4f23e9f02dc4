package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ragyverse/audio"
	"ragyverse/capture"
	"ragyverse/clipboard"
	"ragyverse/hotkey"
)

// Check is one diagnostic step. Run returns a short detail line on
// success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

var errSkipped = errors.New("skipped")

// Run executes checks in order and returns an exit code (0=all pass,
// 1=any fail). Skipped checks do not fail the run.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "ragyverse doctor - system diagnostics")
	fmt.Fprintln(w, "=====================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.Name)
		detail, err := c.Run(ctx)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", detail)
		case err != nil:
			failed++
			fmt.Fprintf(w, "  FAIL: %v\n", err)
		default:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

// Pinger reaches the question answering backend.
type Pinger interface {
	Ping(ctx context.Context) error
	BaseURL() string
}

// Synthesizer is the speech service.
type Synthesizer interface {
	Synthesize(ctx context.Context, answer, question, token string) (string, error)
}

type Deps struct {
	Combo      hotkey.Combo
	Capability audio.Capability
	Capture    capture.Config
	// Record is how long the microphone check listens.
	Record    time.Duration
	Backend   Pinger
	Synth     Synthesizer
	Token     string
	Clipboard bool
}

// Checks builds the standard check list.
func Checks(d Deps) []Check {
	checks := []Check{
		{Name: "Hotkey", Run: func(context.Context) (string, error) {
			return hotkey.Diagnose(d.Combo)
		}},
		{Name: "Microphone", Run: func(ctx context.Context) (string, error) {
			return checkMicrophone(ctx, d)
		}},
		{Name: "Backend", Run: func(ctx context.Context) (string, error) {
			if err := d.Backend.Ping(ctx); err != nil {
				return "", err
			}
			return d.Backend.BaseURL() + " reachable", nil
		}},
		{Name: "Speech synthesis", Run: func(ctx context.Context) (string, error) {
			if d.Token == "" {
				return "no auth token configured", errSkipped
			}
			ref, err := d.Synth.Synthesize(ctx, "This is a ragyverse test.", "doctor", d.Token)
			if err != nil {
				return "", err
			}
			return "audio validated at " + ref, nil
		}},
	}
	if d.Clipboard {
		checks = append(checks, Check{Name: "Clipboard", Run: checkClipboard})
	}
	return checks
}

func checkMicrophone(ctx context.Context, d Deps) (string, error) {
	if u, ok := d.Capability.(audio.Unavailable); ok {
		return "", fmt.Errorf("audio capture unavailable: %s", u.Reason)
	}
	record := d.Record
	if record <= 0 {
		record = 2 * time.Second
	}
	cfg := d.Capture
	cfg.MaxDuration = record + time.Second
	cfg.OnEvent = nil
	mgr := capture.NewManager(d.Capability, cfg)

	rec, err := mgr.Start()
	if err != nil {
		return "", err
	}
	select {
	case <-time.After(record):
	case <-ctx.Done():
	case <-rec.Done():
	}
	mgr.Stop(rec)
	c := rec.Completion()
	if c.Err != nil {
		return "", c.Err
	}
	voice := "no voice detected"
	if c.VoiceDetected {
		voice = "voice detected"
	}
	return fmt.Sprintf("captured %.1fs of audio (%.1f KB %s), %s",
		c.Payload.Duration().Seconds(), float64(len(c.Payload.Data))/1024, c.Payload.Ext, voice), nil
}

func checkClipboard(context.Context) (string, error) {
	if !clipboard.Supported() {
		return "", errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")
	}
	probe := fmt.Sprintf("ragyverse-doctor-%d", time.Now().UnixNano())
	if err := clipboard.Copy(probe); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	got, err := clipboard.Read()
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if got != probe {
		return "", fmt.Errorf("read back %q, want %q", got, probe)
	}
	return "copy and read back verified", nil
}
