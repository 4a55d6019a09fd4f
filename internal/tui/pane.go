// Package tui implements the optional live step-event pane for
// cmd/chromedir-debug: a glyph/palette vocabulary plus a Bubble Tea
// Model/Update/View shape, trimmed down to one scrolling list of step
// events plus a glamour-rendered summary on completion.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/chromedir/internal/events"
	"github.com/ormasoftchile/chromedir/internal/model"
)

const (
	glyphPending = "○"
	glyphPassed  = "✓"
	glyphFailed  = "✗"
	glyphSkipped = "⏭"
)

var (
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("196")
	colorDim   = lipgloss.Color("240")
	colorCyan  = lipgloss.Color("51")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	passedStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// line is one rendered row of the pane.
type line struct {
	glyph string
	text  string
	style lipgloss.Style
}

// Model is a Bubble Tea model rendering a live feed of step/suite events.
// EventCh delivers events from the engine; DoneCh, when sent a result,
// ends the program with a glamour-rendered summary.
type Model struct {
	title   string
	lines   []line
	result  *model.TestResult
	eventCh <-chan events.Event
	doneCh  <-chan *model.TestResult
	width   int

	vp      viewport.Model
	spin    spinner.Model
	started bool
}

// NewModel returns a pane titled title, fed by eventCh and terminated when
// doneCh delivers the final TestResult.
func NewModel(title string, eventCh <-chan events.Event, doneCh <-chan *model.TestResult) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = dimStyle
	return Model{
		title:   title,
		eventCh: eventCh,
		doneCh:  doneCh,
		width:   80,
		vp:      viewport.New(80, 20),
		spin:    s,
	}
}

type eventMsg events.Event
type doneMsg struct{ result *model.TestResult }

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

func waitForDone(ch <-chan *model.TestResult) tea.Cmd {
	return func() tea.Msg {
		result, ok := <-ch
		if !ok {
			return nil
		}
		return doneMsg{result}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventCh), waitForDone(m.doneCh), m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 4
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	case eventMsg:
		m.started = true
		m.lines = append(m.lines, renderEvent(events.Event(msg)))
		m.vp.SetContent(renderLines(m.lines))
		m.vp.GotoBottom()
		return m, waitForEvent(m.eventCh)
	case doneMsg:
		m.result = msg.result
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func renderEvent(evt events.Event) line {
	switch evt.Type {
	case events.StepStart:
		return line{glyphPending, fmt.Sprintf("[%d] %s", evt.StepIndex, evt.Label), dimStyle}
	case events.StepPass:
		if evt.Skipped {
			return line{glyphSkipped, fmt.Sprintf("[%d] %s (skipped)", evt.StepIndex, evt.Label), dimStyle}
		}
		return line{glyphPassed, fmt.Sprintf("[%d] %s (%dms)", evt.StepIndex, evt.Label, evt.DurationMS), passedStyle}
	case events.StepFail:
		return line{glyphFailed, fmt.Sprintf("[%d] %s: %s", evt.StepIndex, evt.Label, evt.Error), failedStyle}
	default:
		return line{glyphPending, string(evt.Type), dimStyle}
	}
}

func renderLines(lines []line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.style.Render(fmt.Sprintf("%s %s", l.glyph, l.text)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	if !m.started && m.result == nil {
		b.WriteString(" " + m.spin.View())
	}
	b.WriteString("\n\n")
	b.WriteString(m.vp.View())
	if m.result != nil {
		b.WriteString("\n")
		b.WriteString(renderSummary(m.result))
	}
	return b.String()
}

// renderSummary turns the final TestResult into a short Markdown report
// rendered through glamour, piping structured output through a Markdown
// renderer for terminal display.
func renderSummary(r *model.TestResult) string {
	var md strings.Builder
	fmt.Fprintf(&md, "# Result: %s\n\n", r.Status)
	fmt.Fprintf(&md, "- duration: %dms\n", r.DurationMS)
	if r.Status == model.StatusFailed {
		fmt.Fprintf(&md, "- failed step: %d (%s)\n", r.FailedStep, r.FailedLabel)
		fmt.Fprintf(&md, "- error: %s\n", r.Error)
	} else {
		fmt.Fprintf(&md, "- steps completed: %d\n", r.StepsCompleted)
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return md.String()
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return out
}
