package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAbandoned is returned when the user stops waiting. The remote run keeps
// going.
var ErrAbandoned = errors.New("stopped waiting; the run continues on the portal")

// WaitFunc blocks until the awaited work is done or ctx is cancelled.
type WaitFunc func(ctx context.Context) error

// waitDoneMsg carries the result of the WaitFunc.
type waitDoneMsg struct {
	err error
}

// WaitModel shows a spinner while a WaitFunc runs in a command.
type WaitModel struct {
	title   string
	wait    WaitFunc
	ctx     context.Context
	cancel  context.CancelFunc
	spinner spinner.Model
	started time.Time

	done      bool
	abandoned bool
	err       error

	titleStyle lipgloss.Style
	faintStyle lipgloss.Style
}

// NewWaitModel creates a wait model. Cancelling ctx, or quitting the model,
// stops the WaitFunc through its context. With a nil wait the model only
// shows the spinner and expects the result to be sent to its program.
func NewWaitModel(ctx context.Context, title string, wait WaitFunc) WaitModel {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return WaitModel{
		title:      title,
		wait:       wait,
		ctx:        ctx,
		cancel:     cancel,
		spinner:    s,
		started:    time.Now(),
		titleStyle: lipgloss.NewStyle().Bold(true),
		faintStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Init implements tea.Model.
func (m WaitModel) Init() tea.Cmd {
	if m.wait == nil {
		return m.spinner.Tick
	}
	return tea.Batch(m.spinner.Tick, m.runCmd())
}

func (m WaitModel) runCmd() tea.Cmd {
	wait, ctx := m.wait, m.ctx
	return func() tea.Msg {
		return waitDoneMsg{err: wait(ctx)}
	}
}

// Update implements tea.Model.
func (m WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.abandoned = true
			m.cancel()
			return m, tea.Quit
		}

	case waitDoneMsg:
		m.done = true
		m.err = msg.err
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m WaitModel) View() string {
	if m.done || m.abandoned {
		return ""
	}
	elapsed := time.Since(m.started).Round(time.Second)
	return fmt.Sprintf("%s %s %s\n%s\n",
		m.spinner.View(),
		m.titleStyle.Render(m.title),
		m.faintStyle.Render(elapsed.String()),
		m.faintStyle.Render("q: stop waiting"),
	)
}

// Err returns the WaitFunc result, or ErrAbandoned when the user quit first.
func (m WaitModel) Err() error {
	if m.abandoned {
		return ErrAbandoned
	}
	return m.err
}

// RunWait runs wait behind a spinner until it returns or the user quits.
// It returns only after wait has returned, so whatever wait writes is safe
// to read afterwards.
func RunWait(ctx context.Context, title string, wait WaitFunc, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewWaitModel(ctx, title, nil), opts...)

	result := make(chan error, 1)
	go func() {
		err := wait(ctx)
		result <- err
		p.Send(waitDoneMsg{err: err})
	}()

	final, runErr := p.Run()
	cancel()
	waitErr := <-result

	if runErr != nil {
		return fmt.Errorf("running wait view: %w", runErr)
	}
	if final.(WaitModel).abandoned {
		return ErrAbandoned
	}
	return waitErr
}
