package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/rime-bridge/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	preeditStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("#87CEEB"))

	candStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	commentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	commitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// shownNotifications is how many recent notifications the console lists.
const shownNotifications = 5

type modelState int

const (
	stateCompose modelState = iota
	stateCommand
)

type interactiveModel struct {
	ctx     context.Context
	s       *session
	err     error
	snap    snapshot
	text    strings.Builder
	message string
	input   textinput.Model
	state   modelState
}

func newInteractiveModel(ctx context.Context, s *session) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = "schema <id> | toggle <option> | deploy | schemas | quit"
	ti.Width = 60
	return &interactiveModel{ctx: ctx, s: s, input: ti, state: stateCompose}
}

type snapshotMsg struct {
	err  error
	snap snapshot
}

func (m *interactiveModel) Init() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.s.Snapshot()
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = msg.snap
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.state == stateCommand {
			return m.updateCommand(msg)
		}
		return m.updateCompose(msg)
	}
	return m, nil
}

func (m *interactiveModel) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.snap.Status.IsComposing && msg.String() == ":" {
		m.state = stateCommand
		m.input.SetValue("")
		return m, m.input.Focus()
	}

	ev, ok := keyEvent(msg)
	if !ok {
		return m, nil
	}
	// keys are processed in Update so they reach the engine in order
	snap, err := m.s.Key(m.ctx, ev)
	m.err = err
	if err == nil {
		m.snap = snap
		m.text.WriteString(snap.Commit)
		if !snap.Handled && ev.Mask == 0 && ev.Keycode >= 0x20 && ev.Keycode <= 0x7e {
			m.text.WriteByte(byte(ev.Keycode))
		}
	}
	return m, nil
}

func (m *interactiveModel) updateCommand(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = stateCompose
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		m.state = stateCompose
		m.input.Blur()
		quit := m.exec(m.input.Value())
		if quit {
			return m, tea.Quit
		}
		snap, err := m.s.Snapshot()
		if err == nil {
			m.snap = snap
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// exec runs a console command and reports whether the console should quit.
func (m *interactiveModel) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	m.err = nil
	m.message = ""

	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "quit", "q":
		return true

	case "schema":
		ok, err := m.s.SelectSchema(arg)
		switch {
		case err != nil:
			m.err = err
		case !ok:
			m.message = fmt.Sprintf("no schema %q", arg)
		default:
			m.message = "schema " + arg
		}

	case "schemas":
		items, current, err := m.s.Schemas()
		if err != nil {
			m.err = err
			break
		}
		names := make([]string, 0, len(items))
		for _, it := range items {
			name := it.ID
			if it.ID == current {
				name = "*" + name
			}
			names = append(names, name)
		}
		m.message = strings.Join(names, " ")

	case "toggle":
		if arg == "" {
			m.message = "toggle needs an option name"
			break
		}
		v, err := m.s.ToggleOption(arg)
		if err != nil {
			m.err = err
			break
		}
		m.message = engine.OptionValue(arg, v)

	case "deploy":
		if err := m.s.Deploy(); err != nil {
			m.err = err
			break
		}
		m.message = "deploy requested"

	default:
		m.message = fmt.Sprintf("unknown command %q", fields[0])
	}
	return false
}

// keyEvent converts a terminal key into a keysym event.
func keyEvent(msg tea.KeyMsg) (engine.KeyEvent, bool) {
	var ev engine.KeyEvent
	if msg.Alt {
		ev.Mask |= engine.AltMask
	}

	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) != 1 || msg.Runes[0] < 0x20 || msg.Runes[0] > 0x7e {
			return ev, false
		}
		ev.Keycode = int(msg.Runes[0])
	case tea.KeySpace:
		ev.Keycode = engine.KeySpace
	case tea.KeyBackspace:
		ev.Keycode = engine.KeyBackSpace
	case tea.KeyEnter:
		ev.Keycode = engine.KeyReturn
	case tea.KeyEsc:
		ev.Keycode = engine.KeyEscape
	case tea.KeyTab:
		ev.Keycode = engine.KeyTab
	case tea.KeyPgUp:
		ev.Keycode = engine.KeyPageUp
	case tea.KeyPgDown:
		ev.Keycode = engine.KeyPageDown
	case tea.KeyLeft:
		ev.Keycode = engine.KeyLeft
	case tea.KeyRight:
		ev.Keycode = engine.KeyRight
	case tea.KeyUp:
		ev.Keycode = engine.KeyUp
	case tea.KeyDown:
		ev.Keycode = engine.KeyDown
	case tea.KeyHome:
		ev.Keycode = engine.KeyHome
	case tea.KeyEnd:
		ev.Keycode = engine.KeyEnd
	case tea.KeyDelete:
		ev.Keycode = engine.KeyDelete
	default:
		return ev, false
	}
	return ev, true
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	st := m.snap.Status
	b.WriteString(titleStyle.Render("Rime Console"))
	b.WriteString(" ")
	b.WriteString(st.SchemaName)
	for _, flag := range []struct {
		on   bool
		name string
	}{
		{st.IsASCIIMode, "ascii"},
		{st.IsFullShape, "full"},
		{st.IsDisabled, "deploying"},
	} {
		if flag.on {
			b.WriteString(" [" + flag.name + "]")
		}
	}
	b.WriteString("\n\n")

	b.WriteString(commitStyle.Render(m.text.String()))
	b.WriteString("\n")

	ctx := m.snap.Context
	if st.IsComposing {
		b.WriteString(preeditStyle.Render(ctx.Composition.Preedit))
		b.WriteString("\n")
		for i, c := range ctx.Menu.Candidates {
			label := fmt.Sprint(i + 1)
			if i < len(ctx.SelectLabels) {
				label = ctx.SelectLabels[i]
			}
			item := label + ". " + c.Text
			if i == int(ctx.Menu.HighlightedCandidateIndex) {
				item = selectedStyle.Render(item)
			} else {
				item = candStyle.Render(item)
			}
			b.WriteString(item)
			if c.Comment != "" {
				b.WriteString(" " + commentStyle.Render(c.Comment))
			}
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else if m.message != "" {
		b.WriteString(m.message)
		b.WriteString("\n")
	}

	notes := m.s.Notifications()
	if len(notes) > shownNotifications {
		notes = notes[len(notes)-shownNotifications:]
	}
	for _, n := range notes {
		b.WriteString(helpStyle.Render(n.Type + ": " + n.Value))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.state == stateCommand {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))
	} else {
		b.WriteString(helpStyle.Render("type to compose • space/digits select • : command • ctrl+c quit"))
	}
	return b.String()
}

func runInteractive(ctx context.Context, s *session) error {
	p := tea.NewProgram(newInteractiveModel(ctx, s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
