package labels

import (
	"context"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/attachdl/internal/keys"
	"github.com/nhle/attachdl/internal/model"
	"github.com/nhle/attachdl/internal/theme"
	"github.com/nhle/attachdl/internal/ui"
)

// LabelSelectedMsg is emitted when the user picks a label.
type LabelSelectedMsg struct {
	Label model.Label
}

// SelectionClearedMsg is emitted when the user goes back to all mail.
type SelectionClearedMsg struct{}

// Loader fetches the label collection.
type Loader func(ctx context.Context) ([]model.Label, error)

type labelsLoadedMsg struct {
	seq    int
	labels []model.Label
	err    error
}

// Model is the label picker. It keeps the cursor row and the single
// active row; noActive means no label is active.
type Model struct {
	keys    *keys.KeyMap
	load    Loader
	labels  []model.Label
	cursor  int
	active  int
	loading bool
	seq     int
	spinner spinner.Model
	width   int
	height  int
}

const noActive = -1

// New creates a label picker that fetches labels with load.
func New(load Loader, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		keys:    k,
		load:    load,
		active:  noActive,
		loading: true,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init starts the first load. A new picker is already in the loading
// state.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// Reload clears the list and fetches the labels again. Results of an
// earlier, still running load are discarded.
func (m *Model) Reload() tea.Cmd {
	m.seq++
	m.labels = nil
	m.cursor = 0
	m.active = noActive
	m.loading = true
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	seq := m.seq
	load := m.load
	return func() tea.Msg {
		labels, err := load(context.Background())
		return labelsLoadedMsg{seq: seq, labels: labels, err: err}
	}
}

// Update handles messages for the label picker.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case labelsLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			log.Printf("error loading labels: %v", msg.err)
			m.labels = nil
			return m, nil
		}
		m.labels = msg.labels
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.labels) > 0 {
			m.cursor = (m.cursor + 1) % len(m.labels)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.labels) > 0 {
			m.cursor--
			if m.cursor < 0 {
				m.cursor = len(m.labels) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if len(m.labels) == 0 {
			return m, nil
		}
		m.active = m.cursor
		l := m.labels[m.cursor]
		return m, func() tea.Msg { return LabelSelectedMsg{Label: l} }

	case key.Matches(msg, m.keys.ClearFilter):
		m.ClearActive()
		return m, func() tea.Msg { return SelectionClearedMsg{} }
	}
	return m, nil
}

// ClearActive deactivates every row.
func (m *Model) ClearActive() {
	m.active = noActive
}

// Labels returns the loaded labels.
func (m Model) Labels() []model.Label {
	return m.labels
}

// Loading reports whether a fetch is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// Active returns the active label, if any.
func (m Model) Active() (model.Label, bool) {
	if m.active < 0 || m.active >= len(m.labels) {
		return model.Label{}, false
	}
	return m.labels[m.active], true
}

// ActiveCount returns how many rows are marked active (0 or 1).
func (m Model) ActiveCount() int {
	n := 0
	for i := range m.labels {
		if m.isActive(i) {
			n++
		}
	}
	return n
}

func (m Model) isActive(i int) bool {
	return i == m.active
}

// View renders the label panel.
func (m Model) View() string {
	var b strings.Builder

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Cargando etiquetas...")
	case len(m.labels) == 0:
		b.WriteString(theme.DimmedStyle.Italic(true).Render("Sin etiquetas"))
	default:
		rows := max(1, m.height-4)
		start := 0
		if m.cursor >= rows {
			start = m.cursor - rows + 1
		}
		end := min(len(m.labels), start+rows)
		for i := start; i < end; i++ {
			mark := "  "
			if m.isActive(i) {
				mark = theme.ActiveMarkStyle.Render("● ")
			}
			row := mark + m.labels[i].Name
			if i == m.cursor {
				b.WriteString(theme.SelectedItemStyle.Render(row))
			} else {
				b.WriteString(theme.ListItemStyle.Render(row))
			}
			b.WriteString("\n")
		}
	}

	return ui.RenderPanel("Etiquetas", b.String(), m.width, m.height)
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
