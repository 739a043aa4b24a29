package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/san-kum/simrun/internal/driver"
)

// DefaultRefresh caps how often progress reaches the screen.
const DefaultRefresh = 30

// Monitor runs a driver behind a progress panel.
type Monitor struct {
	title   string
	outdir  string
	limiter *rate.Limiter
	opts    []tea.ProgramOption

	send func(tea.Msg)
}

func New(title, outdir string, opts ...tea.ProgramOption) *Monitor {
	return &Monitor{
		title:   title,
		outdir:  outdir,
		limiter: rate.NewLimiter(rate.Limit(DefaultRefresh), 1),
		opts:    opts,
	}
}

// SetRefresh changes the refresh cap in updates per second.
func (m *Monitor) SetRefresh(perSecond float64) {
	m.limiter.SetLimit(rate.Limit(perSecond))
}

// Observe is a driver progress callback. Points beyond the refresh rate are
// dropped, except the last one of the schedule.
func (m *Monitor) Observe(p driver.Progress) {
	if m.send == nil {
		return
	}
	if p.Index == p.Total-1 || m.limiter.Allow() {
		m.send(ProgressMsg(p))
	}
}

// Run starts the panel and calls run with a context the user can cancel
// from the keyboard. The driver passed to run should report through Observe.
func (m *Monitor) Run(ctx context.Context, run func(context.Context) (*driver.Result, error)) (*driver.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newModel(m.title, m.outdir, cancel), m.opts...)
	m.send = prog.Send
	defer func() { m.send = nil }()

	type outcome struct {
		res *driver.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := run(ctx)
		ch <- outcome{res, err}
		prog.Send(DoneMsg{Result: res, Err: err})
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-ch
		return nil, fmt.Errorf("tui: %w", err)
	}
	select {
	case out := <-ch:
		return out.res, out.err
	case <-time.After(5 * time.Second):
		cancel()
		out := <-ch
		return out.res, out.err
	}
}
