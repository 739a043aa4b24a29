// Package tui shows a running simulation as a terminal progress panel.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/simrun/internal/driver"
)

const barWidth = 40

// ProgressMsg carries one output point into the program.
type ProgressMsg driver.Progress

// DoneMsg ends the program with the run's result.
type DoneMsg struct {
	Result *driver.Result
	Err    error
}

type model struct {
	title   string
	outdir  string
	started time.Time

	last     driver.Progress
	seen     bool
	recent   []string
	done     bool
	result   *driver.Result
	err      error
	canceled bool

	cancel func()
	width  int
}

func newModel(title, outdir string, cancel func()) model {
	return model{title: title, outdir: outdir, cancel: cancel, started: time.Now(), width: 80}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.cancel != nil {
				m.canceled = true
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case ProgressMsg:
		m.last = driver.Progress(msg)
		m.seen = true
		m.recent = append(m.recent, fmt.Sprintf("frame %04d  t=%f", msg.Frame, msg.T))
		if len(m.recent) > 5 {
			m.recent = m.recent[1:]
		}
	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) fraction() float64 {
	if !m.seen || m.last.Total == 0 {
		return 0
	}
	return float64(m.last.Index+1) / float64(m.last.Total)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(header.Render(m.title))
	b.WriteString("\n\n")

	filled := int(m.fraction() * barWidth)
	bar := green.Render(strings.Repeat("█", filled)) + dim.Render(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(&b, "%s %s\n", bar, white.Render(fmt.Sprintf("%3.0f%%", 100*m.fraction())))

	if m.seen {
		fmt.Fprintf(&b, "%s %s   %s %s   %s %d/%d\n",
			dim.Render("frame"), cyan.Render(fmt.Sprintf("%04d", m.last.Frame)),
			dim.Render("t"), cyan.Render(fmt.Sprintf("%.6g", m.last.T)),
			dim.Render("point"), m.last.Index+1, m.last.Total)
	}
	for _, line := range m.recent {
		b.WriteString(dim.Render(line))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		dim.Render("outdir"), white.Render(m.outdir),
		dim.Render("elapsed"), white.Render(time.Since(m.started).Truncate(time.Millisecond).String()))

	switch {
	case m.err != nil:
		b.WriteString(red.Render("failed: " + m.err.Error()))
	case m.done && m.result != nil:
		b.WriteString(green.Render(fmt.Sprintf("%s, next frame %d", m.result.Outcome, m.result.NextFrame)))
	case m.canceled:
		b.WriteString(yellow.Render("canceling..."))
	default:
		b.WriteString(dim.Render("q to cancel"))
	}
	b.WriteString("\n")
	return panel.Render(b.String())
}
