package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/attachdl/internal/api"
	"github.com/nhle/attachdl/internal/job"
	"github.com/nhle/attachdl/internal/keys"
	"github.com/nhle/attachdl/internal/model"
	appsync "github.com/nhle/attachdl/internal/sync"
	"github.com/nhle/attachdl/internal/ui"
	"github.com/nhle/attachdl/internal/ui/command"
	helpview "github.com/nhle/attachdl/internal/ui/help"
	"github.com/nhle/attachdl/internal/ui/jobview"
	"github.com/nhle/attachdl/internal/ui/labels"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewMain ViewState = iota
	ViewHelp
	ViewCommand
	ViewConfirmLogout
)

// Model is the root Bubble Tea model. It owns the download controller,
// the open progress subscription and the view routing.
type Model struct {
	currentView   ViewState
	previousView  ViewState
	layout        ui.Layout
	keys          *keys.KeyMap
	client        *api.Client
	open          appsync.OpenFunc
	ctrl          *job.Controller
	sub           *appsync.Subscription
	labels        labels.Model
	jobView       jobview.Model
	helpView      helpview.Model
	commandView   command.Model
	confirmForm   *huh.Form
	fb            *formBindings
	convergeDelay time.Duration
	ready         bool
}

// formBindings holds the values huh forms write into.
type formBindings struct {
	confirmLogout bool
}

// New creates the root model for the given server client.
func New(client *api.Client, cfg *model.AppConfig) Model {
	k := keys.DefaultKeyMap()
	ctrl := job.New()

	return Model{
		currentView:   ViewMain,
		keys:          k,
		client:        client,
		open:          streamOpener(client),
		ctrl:          ctrl,
		labels:        labels.New(client.Labels, k, 30, 22),
		jobView:       jobview.New(ctrl, 50, 22),
		helpView:      helpview.New(k, 80, 22),
		commandView:   command.New(80, 22),
		fb:            &formBindings{},
		convergeDelay: cfg.Display.ConvergeDelay(),
	}
}

// streamOpener adapts the client's progress endpoint to the
// subscription's OpenFunc.
func streamOpener(client *api.Client) appsync.OpenFunc {
	return func(ctx context.Context, labelID string) (appsync.Source, error) {
		s, err := client.OpenProgress(ctx, labelID)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Init starts loading the labels.
func (m Model) Init() tea.Cmd {
	return m.labels.Init()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentHeight := m.layout.ContentHeight()
		m.labels.SetSize(m.layout.SidebarWidth(), contentHeight)
		m.jobView.SetSize(m.layout.MainWidth(), contentHeight)
		m.helpView.SetSize(m.layout.ContentWidth(), contentHeight)
		m.commandView.SetSize(m.layout.ContentWidth(), contentHeight)
		m.jobView.Refresh()
		if m.confirmForm != nil {
			m.confirmForm = m.confirmForm.WithWidth(formWidth(msg.Width))
		}
		return m, nil

	case labels.LabelSelectedMsg:
		m.ctrl.Select(msg.Label.ID)
		return m, nil

	case labels.SelectionClearedMsg:
		m.ctrl.Select(model.AllLabelsID)
		return m, nil

	case appsync.EventMsg:
		return m.handleEvent(msg)

	case appsync.StreamErrorMsg:
		if m.sub == nil || msg.JobID != m.sub.JobID() {
			return m, nil
		}
		log.Printf("download job %s: %v", msg.JobID, msg.Err)
		m.ctrl.Fail()
		m.closeSubscription()
		return m, nil

	case convergeMsg:
		m.ctrl.Converge(msg.jobID)
		return m, nil

	case stopSentMsg:
		if msg.err != nil {
			log.Printf("stop request failed: %v", msg.err)
		}
		return m, nil

	case logoutDoneMsg:
		if msg.err != nil {
			log.Printf("logout request failed: %v", msg.err)
		}
		cmd := m.reload()
		return m, cmd

	case command.CommandMsg:
		m.commandView.Blur()
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.closeSubscription()
			return m, tea.Quit
		}

		switch m.currentView {
		case ViewConfirmLogout:
			if msg.Type == tea.KeyEsc {
				return m.closeConfirm(false)
			}
			return m.updateConfirm(msg)
		case ViewCommand:
			if msg.Type == tea.KeyEsc {
				m.commandView.Blur()
				m.currentView = m.previousView
				return m, nil
			}
			var cmd tea.Cmd
			m.commandView, cmd = m.commandView.Update(msg)
			return m, cmd
		case ViewHelp:
			if key.Matches(msg, m.keys.Help) || msg.Type == tea.KeyEsc {
				m.currentView = m.previousView
			}
			return m, nil
		}

		return m.handleMainKey(msg)
	}

	var labelsCmd, cmd tea.Cmd
	m.labels, labelsCmd = m.labels.Update(msg)
	switch m.currentView {
	case ViewConfirmLogout:
		m, cmd = m.updateConfirm(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}
	return m, tea.Batch(labelsCmd, cmd)
}

// handleMainKey handles key presses on the main two-panel view.
func (m Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeSubscription()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Start):
		if !m.ctrl.StartVisible() || !m.ctrl.StartEnabled() {
			return m, nil
		}
		cmd := m.startJob()
		return m, cmd

	case key.Matches(msg, m.keys.Stop):
		if !m.ctrl.StopVisible() {
			return m, nil
		}
		cmd := m.stopJob()
		return m, cmd

	case key.Matches(msg, m.keys.Logout):
		cmd := m.openLogoutConfirm()
		return m, cmd

	case key.Matches(msg, m.keys.Reload):
		cmd := m.reloadLabels()
		return m, cmd

	case msg.Type == tea.KeyPgUp, msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.jobView, cmd = m.jobView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.labels, cmd = m.labels.Update(msg)
	return m, cmd
}

// handleEvent applies one progress event of the current job.
func (m Model) handleEvent(msg appsync.EventMsg) (tea.Model, tea.Cmd) {
	if m.sub == nil || msg.JobID != m.sub.JobID() || !m.ctrl.Running() {
		return m, nil
	}

	done := m.ctrl.Apply(msg.Event)
	if _, ok := msg.Event.(model.ProgressEvent); ok {
		m.jobView.Refresh()
	}
	if !done {
		return m, m.sub.WaitForNext()
	}

	m.closeSubscription()
	if m.ctrl.Outcome() == job.OutcomeComplete {
		jobID := msg.JobID
		return m, tea.Tick(m.convergeDelay, func(time.Time) tea.Msg {
			return convergeMsg{jobID: jobID}
		})
	}
	return m, nil
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Gmail Attachment Downloader", m.headerStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirmLogout:
		if m.confirmForm != nil {
			return m.confirmForm.View()
		}
	}
	return m.layout.RenderColumns(m.labels.View(), m.jobView.View())
}

// headerStatus shows the selected label and the job state.
func (m Model) headerStatus() string {
	name := model.LabelName(m.labels.Labels(), m.ctrl.Selection())
	return fmt.Sprintf("%s · %s", name, m.ctrl.State())
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewConfirmLogout:
		return "←/→ choose | enter confirm | esc cancel"
	}
	if m.ctrl.Running() {
		return "x stop | pgup/pgdn scroll | ? help | q quit"
	}
	return "j/k move | enter select | s start | r reload | L switch account | ? help | q quit"
}

// Controller exposes the download controller for inspection.
func (m Model) Controller() *job.Controller {
	return m.ctrl
}

// Close releases the open progress stream, if any.
func (m Model) Close() {
	m.closeSubscription()
}
