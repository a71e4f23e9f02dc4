package capture

import "time"

const (
	tickInterval     = 100 * time.Millisecond
	silenceWarnAfter = 2 * time.Second
	silenceWarnEvery = 3 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // still silent, remind again
)

// silenceMonitor watches per-tick speech flags over a sliding window.
// Recordings are short, so it never closes a recording on its own; the
// duration ceiling does that.
type silenceMonitor struct {
	warnAt   int
	repeatAt int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func newSilenceMonitor() *silenceMonitor {
	warnAt := int(silenceWarnAfter / tickInterval)
	return &silenceMonitor{
		warnAt:   warnAt,
		repeatAt: int(silenceWarnEvery / tickInterval),
		window:   make([]bool, warnAt),
	}
}

func (m *silenceMonitor) ratio() float64 {
	n := min(m.ticks, m.warnAt)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.warnAt)%m.warnAt] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%m.warnAt] = hasSpeech
	m.ticks++

	r := m.ratio()

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastWarn >= m.repeatAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}
