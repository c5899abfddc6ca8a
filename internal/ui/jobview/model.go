package jobview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/attachdl/internal/job"
	"github.com/nhle/attachdl/internal/model"
	"github.com/nhle/attachdl/internal/theme"
	"github.com/nhle/attachdl/internal/ui"
)

// placeholder is shown until the first job starts.
const placeholder = "Sin actividad reciente. Elige una etiqueta y pulsa 's' para empezar."

// Model renders the state of a job.Controller: controls, progress bar,
// status line and the saved file list.
type Model struct {
	ctrl   *job.Controller
	bar    progress.Model
	files  viewport.Model
	width  int
	height int
}

// New creates a job panel for ctrl.
func New(ctrl *job.Controller, width, height int) Model {
	m := Model{
		ctrl: ctrl,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
		),
		files: viewport.New(width, height),
	}
	m.SetSize(width, height)
	return m
}

// Update scrolls the file list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.files, cmd = m.files.Update(msg)
	return m, cmd
}

// Refresh re-renders the file list from the controller and keeps the
// newest entry in view.
func (m *Model) Refresh() {
	m.files.SetContent(m.renderFiles())
	m.files.GotoTop()
}

// View renders the job panel.
func (m Model) View() string {
	c := m.ctrl
	var b strings.Builder

	b.WriteString(m.renderControls())
	b.WriteString("\n\n")

	if c.ProgressVisible() {
		pct := c.Percent()
		b.WriteString(m.bar.ViewAs(float64(pct) / 100))
		b.WriteString(fmt.Sprintf(" %3d%%", pct))
		b.WriteString("\n")
	}
	if status := c.Status(); status != "" {
		b.WriteString(theme.StatusStyle(outcomeName(c.Outcome())).Render(status))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if c.PlaceholderVisible() {
		b.WriteString(theme.DimmedStyle.Italic(true).Render(placeholder))
	} else {
		b.WriteString(m.files.View())
	}

	return ui.RenderPanel("Descarga", b.String(), m.width, m.height)
}

func (m Model) renderControls() string {
	c := m.ctrl
	var parts []string
	if c.StartVisible() {
		style := theme.ButtonStyle
		if !c.StartEnabled() {
			style = theme.DisabledButtonStyle
		}
		parts = append(parts, style.Render("s Iniciar descarga"))
	}
	if c.StopVisible() {
		style := theme.ButtonStyle.Background(theme.ColorRed)
		if !c.StopEnabled() {
			style = theme.DisabledButtonStyle
		}
		parts = append(parts, style.Render("x Detener"))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderFiles() string {
	var b strings.Builder
	for _, f := range m.ctrl.Files() {
		b.WriteString(theme.SavedStyle.Render("✔ "))
		b.WriteString(model.DecodeFilename(f))
		b.WriteString(" ")
		b.WriteString(theme.DimmedStyle.Render("Guardado correctamente"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func outcomeName(o job.Outcome) string {
	switch o {
	case job.OutcomeComplete:
		return "complete"
	case job.OutcomeEmpty:
		return "empty"
	case job.OutcomeStopped:
		return "stopped"
	case job.OutcomeError:
		return "error"
	default:
		return "running"
	}
}

// SetSize updates the panel dimensions. The file list gets whatever is
// left below the controls, bar and status line.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.bar.Width = max(10, width-12)
	m.files.Width = max(0, width-4)
	m.files.Height = max(1, height-10)
}
