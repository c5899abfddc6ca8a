package app

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/attachdl/internal/model"
	appsync "github.com/nhle/attachdl/internal/sync"
)

// convergeMsg forces the progress bar to 100% once a job completed.
type convergeMsg struct {
	jobID string
}

// stopSentMsg reports the outcome of a stop request.
type stopSentMsg struct {
	err error
}

// logoutDoneMsg reports the outcome of a logout request.
type logoutDoneMsg struct {
	err error
}

// startJob moves the controller to Running and subscribes to the new
// job's progress stream.
func (m *Model) startJob() tea.Cmd {
	jobID, labelID, err := m.ctrl.Start()
	if err != nil {
		log.Printf("start ignored: %v", err)
		return nil
	}

	m.jobView.Refresh()
	m.sub = appsync.Subscribe(m.open, jobID, labelID)
	return m.sub.WaitForNext()
}

// stopJob disables the stop control and asks the server to stop. The
// job ends when the stream reports it.
func (m *Model) stopJob() tea.Cmd {
	if !m.ctrl.RequestStop() {
		return nil
	}
	c := m.client
	return func() tea.Msg {
		return stopSentMsg{err: c.Stop(context.Background())}
	}
}

// closeSubscription releases the open progress stream, if any.
func (m *Model) closeSubscription() {
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
}

// reload brings the client back to its start-up state: no job, no
// selection, labels fetched again.
func (m *Model) reload() tea.Cmd {
	m.closeSubscription()
	m.ctrl.Reset()
	m.jobView.Refresh()
	return m.labels.Reload()
}

// reloadLabels fetches the labels again. The selection falls back to
// all mail because the active row is cleared.
func (m *Model) reloadLabels() tea.Cmd {
	m.ctrl.Select(model.AllLabelsID)
	return m.labels.Reload()
}

// openLogoutConfirm shows the account switch confirmation.
func (m *Model) openLogoutConfirm() tea.Cmd {
	m.fb.confirmLogout = false
	m.confirmForm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("¿Quieres cambiar de cuenta?").
				Description("Se cerrará la sesión actual.").
				Affirmative("Sí, cerrar sesión").
				Negative("Cancelar").
				Value(&m.fb.confirmLogout),
		),
	).WithWidth(formWidth(m.layout.Width))
	m.previousView = m.currentView
	m.currentView = ViewConfirmLogout
	return m.confirmForm.Init()
}

// updateConfirm drives the logout confirmation form.
func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		m.currentView = ViewMain
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}

	switch m.confirmForm.State {
	case huh.StateCompleted:
		return m.closeConfirm(m.fb.confirmLogout)
	case huh.StateAborted:
		return m.closeConfirm(false)
	}
	return m, cmd
}

// closeConfirm leaves the logout confirmation. Only an accepted
// confirmation logs out.
func (m Model) closeConfirm(accepted bool) (Model, tea.Cmd) {
	m.confirmForm = nil
	m.currentView = m.previousView
	if accepted {
		return m, m.logout()
	}
	return m, nil
}

// logout sends the logout request. The reload that follows happens
// whatever the request returns.
func (m Model) logout() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		return logoutDoneMsg{err: c.Logout(context.Background())}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "start":
		return m.startJob()
	case "stop":
		return m.stopJob()
	case "all":
		m.ctrl.Select(model.AllLabelsID)
		m.labels.ClearActive()
		return nil
	case "reload":
		return m.reloadLabels()
	case "logout":
		return m.openLogoutConfirm()
	case "quit", "q":
		m.closeSubscription()
		return tea.Quit
	default:
		log.Printf("unknown command %q", cmd)
		return nil
	}
}

func formWidth(width int) int {
	w := width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}
