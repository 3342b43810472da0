// Package monitor implements a bubbletea status display that subscribes
// to the Sequencer Engine's public Event Bus and renders transport state.
// It never reaches into engine internals — only OnStateChange/GetState
// and the transport commands (Start/Stop/Pause/Resume/SetBPM) the public
// contract exposes (spec.md §2: "UI reads from the Event Bus").
//
// Grounded on the teacher's tui/model.go: the same UpdateChan-driven
// bubbletea loop (a buffered channel fed by a callback, drained by a
// blocking tea.Cmd that requeues itself), simplified down from the
// teacher's full Launchpad/device editor to a passive transport monitor
// since waveform/pattern-grid rendering is explicitly out of scope
// (spec.md §1 Non-goals).
package monitor

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-drumseq/drumseq/internal/engine"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// StateMsg carries an engine.SequencerState snapshot into the bubbletea
// update loop.
type StateMsg engine.SequencerState

// Model is the bubbletea model for the status monitor.
type Model struct {
	eng      *engine.Engine
	ch       chan engine.SequencerState
	state    engine.SequencerState
	quitting bool
	statusMsg string
}

// NewModel subscribes to eng's state-change events and returns a ready
// bubbletea model.
func NewModel(eng *engine.Engine) Model {
	ch := make(chan engine.SequencerState, 1)
	eng.OnStateChange(func(s engine.SequencerState) {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	})
	return Model{eng: eng, ch: ch, state: eng.GetState()}
}

// listenForUpdates blocks for the next state snapshot and requeues itself.
func listenForUpdates(ch chan engine.SequencerState) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg(s)
	}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.ch)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			_ = m.eng.Stop()
			return m, tea.Quit

		case "p":
			switch {
			case m.state.IsPlaying:
				_ = m.eng.Pause()
			case m.state.IsPaused:
				_ = m.eng.Resume()
			default:
				_ = m.eng.Start()
			}

		case "s":
			_ = m.eng.Stop()

		case "+", "=":
			if err := m.eng.SetBPM(m.state.BPM + 5); err != nil {
				m.statusMsg = err.Error()
			}

		case "-", "_":
			if err := m.eng.SetBPM(m.state.BPM - 5); err != nil {
				m.statusMsg = err.Error()
			}
		}

	case StateMsg:
		m.state = engine.SequencerState(msg)
		return m, listenForUpdates(m.ch)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	play := "STOP"
	switch {
	case m.state.IsPlaying:
		play = "PLAY"
	case m.state.IsPaused:
		play = "PAUSE"
	}

	header := headerStyle.Render(fmt.Sprintf(
		"drumseq  %s  %3dbpm  swing:%3.0f  res:%02d  step:%02d",
		play, m.state.BPM, m.state.Swing, m.state.StepResolution, m.state.CurrentStep,
	))

	perf := dimStyle.Render(fmt.Sprintf(
		"steps:%d  avg:%s  max:%s  drift:%.4fs",
		m.state.PerfStats.TotalSteps, m.state.PerfStats.AvgLatency, m.state.PerfStats.MaxLatency, m.state.PerfStats.TimingDrift,
	))

	help := dimStyle.Render("p:play/pause  s:stop  +/-:bpm  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(perf)
	out.WriteString("\n\n")
	out.WriteString(help)
	if m.statusMsg != "" {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render(m.statusMsg))
	}
	return out.String()
}
