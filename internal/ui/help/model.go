package help

import (
	"github.com/charmbracelet/bubbles/help"

	"github.com/nhle/attachdl/internal/keys"
	"github.com/nhle/attachdl/internal/ui"
)

// Model lists every key binding, grouped the way keys.KeyMap.FullHelp
// groups them.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates the help overlay for k.
func New(k *keys.KeyMap, width, height int) Model {
	m := Model{keys: k, help: help.New()}
	m.help.ShowAll = true
	m.SetSize(width, height)
	return m
}

// View renders the overlay.
func (m Model) View() string {
	return ui.RenderPanel("Atajos de teclado", m.help.View(m.keys), m.width, m.height)
}

// SetSize resizes the overlay. The key columns get the inner width.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(0, width-4)
}
