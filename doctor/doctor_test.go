package doctor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"ragyverse/audio"
	"ragyverse/capture"
	"ragyverse/encoder"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
func (p fakePinger) BaseURL() string            { return "http://qa.test" }

type fakeSynth struct {
	calls int
	err   error
}

func (s *fakeSynth) Synthesize(context.Context, string, string, string) (string, error) {
	s.calls++
	return "http://tts.test/a.mp3", s.err
}

func tone(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(6000 * math.Sin(2*math.Pi*300*float64(i)/float64(encoder.SampleRate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestRunReportsFailures(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), &out, []Check{
		{Name: "ok", Run: func(context.Context) (string, error) { return "fine", nil }},
		{Name: "bad", Run: func(context.Context) (string, error) { return "", errors.New("broken") }},
		{Name: "skip", Run: func(context.Context) (string, error) { return "not configured", errSkipped }},
	})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"[1/3] ok", "PASS: fine", "FAIL: broken", "SKIP: not configured", "1 check(s) failed"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), &out, []Check{
		{Name: "skip", Run: func(context.Context) (string, error) { return "n/a", errSkipped }},
	})
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestMicrophoneCheck(t *testing.T) {
	fake := audio.NewFakeContextPCM(tone(8000), false)
	detail, err := checkMicrophone(context.Background(), Deps{
		Capability: fake.Capability(),
		Capture:    capture.Config{Format: encoder.FormatWAV},
		Record:     20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("checkMicrophone: %v", err)
	}
	if !strings.Contains(detail, "0.5s") || !strings.Contains(detail, "wav") {
		t.Errorf("detail = %q", detail)
	}
	if fake.Closed() != 1 {
		t.Errorf("device closed %d times, want 1", fake.Closed())
	}
}

func TestMicrophoneUnavailable(t *testing.T) {
	_, err := checkMicrophone(context.Background(), Deps{Capability: audio.Unavailable{Reason: "no devices"}})
	if err == nil || !strings.Contains(err.Error(), "no devices") {
		t.Errorf("err = %v", err)
	}
}

func TestChecksSkipSynthesisWithoutToken(t *testing.T) {
	s := &fakeSynth{}
	checks := Checks(Deps{Backend: fakePinger{}, Synth: s})
	var synthCheck *Check
	for i := range checks {
		if checks[i].Name == "Speech synthesis" {
			synthCheck = &checks[i]
		}
	}
	if synthCheck == nil {
		t.Fatal("no synthesis check")
	}
	if _, err := synthCheck.Run(context.Background()); !errors.Is(err, errSkipped) {
		t.Errorf("err = %v, want skipped", err)
	}
	if s.calls != 0 {
		t.Errorf("synthesize called %d times without token", s.calls)
	}
}

func TestBackendCheck(t *testing.T) {
	checks := Checks(Deps{Backend: fakePinger{err: errors.New("connection refused")}, Synth: &fakeSynth{}, Token: "t"})
	for _, c := range checks {
		if c.Name != "Backend" {
			continue
		}
		if _, err := c.Run(context.Background()); err == nil {
			t.Error("expected backend failure")
		}
	}
}
