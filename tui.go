package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"recap/controller"
)

// TUI message types
type StageMsg struct{ Stage controller.Stage }
type SpanMsg struct{ Span time.Duration }
type TranscriptMsg struct{ Text string }
type AnswerMsg struct{ Text string }
type WarningMsg struct{ Text string }
type FailureMsg struct{ Err error }
type StatusLineMsg struct{ Text string }

type tuiModel struct {
	stage         controller.Stage
	span          time.Duration
	transcript    string
	answer        string
	warning       string
	failure       string
	statusLine    string
	answerCount   int
	width, height int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
	tuiReady   = make(chan struct{})
	tuiReadyOnce sync.Once
)

var (
	stageStyleIdle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stageStyleRecording = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	stageStylePipeline  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	dimStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	transcriptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	answerStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

func NewTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{}, tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case StageMsg:
		m.stage = msg.Stage

	case SpanMsg:
		m.span = msg.Span

	case TranscriptMsg:
		m.transcript = msg.Text
		m.warning = ""
		m.failure = ""

	case AnswerMsg:
		m.answer = msg.Text
		m.answerCount++
		m.warning = ""
		m.failure = ""

	case WarningMsg:
		m.warning = msg.Text

	case FailureMsg:
		if msg.Err != nil {
			m.failure = msg.Err.Error()
		}

	case StatusLineMsg:
		m.statusLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) stageLine() string {
	switch m.stage {
	case controller.StageIdle:
		return stageStyleIdle.Render("○ IDLE")
	case controller.StageRecording:
		return stageStyleRecording.Render(fmt.Sprintf("● REC  buffer %s", formatSpan(m.span)))
	case controller.StageExtracting:
		return stageStylePipeline.Render("◆ EXTRACTING")
	case controller.StageTranscribing:
		return stageStylePipeline.Render("◆ TRANSCRIBING")
	case controller.StageThinking:
		return stageStylePipeline.Render("◆ THINKING")
	}
	return ""
}

func formatSpan(d time.Duration) string {
	d = d.Round(time.Second)
	min := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", min, sec)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString("\n  " + m.stageLine() + "\n")
	if m.statusLine != "" {
		b.WriteString("  " + dimStyle.Render(m.statusLine) + "\n")
	}
	b.WriteString("\n")

	wrapWidth := m.width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	if m.warning != "" {
		b.WriteString("  " + warnStyle.Render("⚠ "+m.warning) + "\n\n")
	}
	if m.failure != "" {
		for _, line := range wrapText(m.failure, wrapWidth) {
			b.WriteString("  " + errStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.transcript != "" {
		b.WriteString("  " + dimStyle.Render("Transcript") + "\n")
		for _, line := range wrapText(m.transcript, wrapWidth) {
			b.WriteString("  " + transcriptStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.answer != "" {
		b.WriteString("  " + dimStyle.Render(fmt.Sprintf("Answer (#%d)", m.answerCount)) + "\n")
		for _, line := range wrapText(m.answer, wrapWidth) {
			b.WriteString("  " + answerStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.transcript == "" && m.answer == "" && m.warning == "" && m.failure == "" {
		b.WriteString("  " + dimStyle.Render("Nothing sent yet") + "\n\n")
	}

	b.WriteString("  " + helpStyle.Render("tap the hotkey to recall, hold to talk, q to quit") + "\n")
	b.WriteString("  " + helpStyle.Render("recap "+version) + "\n")
	return b.String()
}

// tuiSink feeds the bubbletea program from the controller event pump.
type tuiSink struct{}

func (tuiSink) StageChanged(s controller.Stage) { tuiSend(StageMsg{Stage: s}) }
func (tuiSink) BufferSpan(d time.Duration)      { tuiSend(SpanMsg{Span: d}) }
func (tuiSink) Transcript(text string)          { tuiSend(TranscriptMsg{Text: text}) }
func (tuiSink) Answer(text string)              { tuiSend(AnswerMsg{Text: text}) }
func (tuiSink) Warning(text string)             { tuiSend(WarningMsg{Text: text}) }
func (tuiSink) Failure(err error)               { tuiSend(FailureMsg{Err: err}) }

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
