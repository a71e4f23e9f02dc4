package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragyverse/session"
)

// TUI message types
type SnapshotMsg struct{ S session.Snapshot }
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type NoticeMsg struct{ Text string }
type tickMsg time.Time

type inputMode int

const (
	inputQuestion inputMode = iota
	inputDocument
	inputToken
)

func (m inputMode) label() string {
	switch m {
	case inputDocument:
		return "PDF path"
	case inputToken:
		return "Token"
	}
	return "Ask"
}

type tuiModel struct {
	app    *app
	hotkey string

	snap          session.Snapshot
	mode          inputMode
	input         []rune
	notice        string
	noticeAt      time.Time
	elapsed       float64
	audioLevel    float64
	noVoice       bool
	frame         int
	width, height int
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

// tuiSend delivers msg to the running program. It drops messages when no
// TUI is running.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink routes events into the Bubble Tea program.
type tuiSink struct{}

func (tuiSink) Snapshot(s session.Snapshot)   { tuiSend(SnapshotMsg{S: s}) }
func (tuiSink) RecordingTick(elapsed float64) { tuiSend(RecordingTickMsg{Duration: elapsed}) }
func (tuiSink) AudioLevel(level float64)      { tuiSend(AudioLevelMsg{Level: level}) }
func (tuiSink) NoVoiceWarning()               { tuiSend(NoVoiceWarningMsg{}) }
func (tuiSink) VoiceResumed()                 { tuiSend(VoiceClearedMsg{}) }
func (tuiSink) Notice(text string)            { tuiSend(NoticeMsg{Text: text}) }

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	questionSty = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
)

var phaseColors = map[session.Phase]string{
	session.PhaseIdle:           "241",
	session.PhaseRecording:      "196",
	session.PhaseTranscribing:   "214",
	session.PhaseAwaitingAnswer: "214",
	session.PhaseSynthesizing:   "220",
	session.PhaseAnswerReady:    "42",
	session.PhaseError:          "196",
}

func NewTUIProgram(a *app, hotkeyLabel string) *tea.Program {
	m := tuiModel{app: a, hotkey: hotkeyLabel}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// do runs f off the UI goroutine. The controller reports progress through
// snapshots, so there is no result message.
func do(f func()) tea.Cmd {
	return func() tea.Msg {
		f()
		return nil
	}
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		if m.notice != "" && time.Since(m.noticeAt) > 4*time.Second {
			m.notice = ""
		}
		return m, tuiTick()

	case SnapshotMsg:
		if msg.S.Recording == session.RecordingActive && m.snap.Recording != session.RecordingActive {
			m.elapsed = 0
			m.audioLevel = 0
			m.noVoice = false
		}
		m.snap = msg.S

	case RecordingTickMsg:
		m.elapsed = msg.Duration

	case AudioLevelMsg:
		if m.snap.Recording == session.RecordingActive {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case NoVoiceWarningMsg:
		m.noVoice = true

	case VoiceClearedMsg:
		m.noVoice = false

	case NoticeMsg:
		m.notice = msg.Text
		m.noticeAt = time.Now()
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.app
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = inputQuestion
		m.input = nil
	case "enter":
		text := strings.TrimSpace(string(m.input))
		mode := m.mode
		m.input = nil
		m.mode = inputQuestion
		switch mode {
		case inputDocument:
			return m, do(func() { a.upload(context.Background(), text) })
		case inputToken:
			return m, do(func() { a.setToken(text) })
		}
		return m, do(func() { a.ask(context.Background(), text) })
	case "ctrl+o":
		m.mode = inputDocument
		m.input = nil
	case "ctrl+k":
		m.mode = inputToken
		m.input = nil
	case "ctrl+t":
		return m, do(a.toggleVoice)
	case "ctrl+r":
		return m, do(a.reset)
	case "ctrl+x":
		return m, do(a.logout)
	case "ctrl+y":
		return m, do(a.copyAnswer)
	case "ctrl+p":
		return m, do(func() { a.playAnswer(context.Background()) })
	case "ctrl+s":
		a.player.Stop()
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.input = append(m.input, msg.Runes...)
			if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
				m.input = append(m.input, ' ')
			}
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	s := m.snap

	var lines []string
	phase := lipgloss.NewStyle().Foreground(lipgloss.Color(phaseColors[s.Phase])).Bold(true).Render(strings.ToUpper(s.Phase.String()))
	status := titleStyle.Render("ragyverse") + "  " + phase
	if s.Busy && s.Phase != session.PhaseRecording {
		status += " " + dimStyle.Render(spinner(m.frame))
	}
	lines = append(lines, status)

	doc := "no document loaded (ctrl+o)"
	if s.DocumentText != "" {
		doc = fmt.Sprintf("document: %d characters", len([]rune(s.DocumentText)))
	}
	auth := "not logged in (ctrl+k)"
	if s.HasToken() {
		auth = "logged in"
	}
	lines = append(lines, dimStyle.Render(doc+" | "+auth), "")

	if s.Recording == session.RecordingActive {
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs ", m.elapsed))+levelBar(m.audioLevel, 20))
		if s.Prompt != "" {
			lines = append(lines, dimStyle.Render(s.Prompt))
		}
		if m.noVoice {
			lines = append(lines, warnStyle.Render("⚠ no voice detected"))
		}
		lines = append(lines, "")
	}

	if s.Question != "" {
		for _, l := range wrapText("Q: "+s.Question, width) {
			lines = append(lines, questionSty.Render(l))
		}
	}
	if s.Answer != "" {
		for _, l := range wrapText("A: "+s.Answer, width) {
			lines = append(lines, answerStyle.Render(l))
		}
	}
	if s.AudioRef != "" {
		lines = append(lines, okStyle.Render("♪ answer audio ready (ctrl+p to play)"))
	}
	if s.Err != nil {
		for _, l := range wrapText(s.Err.Message, width) {
			lines = append(lines, errorStyle.Render(l))
		}
	}
	if m.notice != "" {
		lines = append(lines, warnStyle.Render(m.notice))
	}

	body := strings.Join(lines, "\n")
	footer := []string{
		inputStyle.Render(m.mode.label()+"> "+string(m.input)) + dimStyle.Render("▏"),
		"",
		keyStyle.Render(m.hotkey) + helpStyle.Render(" or ") + keyStyle.Render("ctrl+t") + helpStyle.Render(" voice  ") +
			keyStyle.Render("enter") + helpStyle.Render(" ask  ") +
			keyStyle.Render("ctrl+o") + helpStyle.Render(" upload  ") +
			keyStyle.Render("ctrl+r") + helpStyle.Render(" reset"),
		keyStyle.Render("ctrl+y") + helpStyle.Render(" copy  ") +
			keyStyle.Render("ctrl+p/s") + helpStyle.Render(" play/stop  ") +
			keyStyle.Render("ctrl+x") + helpStyle.Render(" logout  ") +
			helpStyle.Render("ragyverse "+version),
	}

	bodyHeight := m.height - len(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	top := lipgloss.NewStyle().Width(width).Height(bodyHeight).PaddingLeft(1).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, top, lipgloss.NewStyle().PaddingLeft(1).Render(strings.Join(footer, "\n")))
}

func spinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[frame%len(frames)]
}

// levelBar renders an RMS level; speech sits around 0.05-0.2.
func levelBar(level float64, width int) string {
	n := int(level * 5 * float64(width))
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return okStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", width-n))
}

func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			// Find last space within width
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}
