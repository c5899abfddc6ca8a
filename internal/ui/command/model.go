package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/attachdl/internal/theme"
	"github.com/nhle/attachdl/internal/ui"
)

// CommandMsg carries a submitted palette command, lowercased and
// trimmed.
type CommandMsg string

// Commands lists what the palette understands.
var Commands = []string{"start", "stop", "all", "reload", "logout", "quit"}

// Model is a one-line prompt for typed commands.
type Model struct {
	input textinput.Model
	width int
}

// New creates an unfocused palette.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = strings.Join(Commands, " | ")

	m := Model{input: ti}
	m.SetSize(width, height)
	return m
}

// Update edits the prompt. Enter submits a non-empty line as a
// CommandMsg and clears the prompt.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEnter {
		line := strings.ToLower(strings.TrimSpace(m.input.Value()))
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		return m, func() tea.Msg { return CommandMsg(line) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the prompt with the list of known commands below it.
func (m Model) View() string {
	hint := theme.DimmedStyle.Render(strings.Join(Commands, " · "))
	return ui.RenderPanel("Comando", m.input.View()+"\n\n"+hint, m.width, 0)
}

// SetSize resizes the palette. Its height follows its content.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.input.Width = max(1, width-6)
}

// Focus gives the prompt keyboard focus.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Blur drops focus and clears the prompt.
func (m *Model) Blur() {
	m.input.Reset()
	m.input.Blur()
}
