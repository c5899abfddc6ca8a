package app

import (
	"reflect"
	"strings"
	"testing"

	"github.com/nhle/attachdl/internal/job"
	"github.com/nhle/attachdl/internal/model"
	appsync "github.com/nhle/attachdl/internal/sync"
	"github.com/nhle/attachdl/internal/testutil"
)

func TestInitLoadsLabels(t *testing.T) {
	h := newHarness(t)

	got := h.m.labels.Labels()
	want := []model.Label{{ID: "1", Name: "Work"}, {ID: "Label_2", Name: "Facturas"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	if !strings.Contains(h.m.View(), "Facturas") {
		t.Error("view should list the labels")
	}
	if !strings.Contains(h.m.View(), "All mail") {
		t.Error("header should show the all mail selection")
	}
}

func TestLabelLoadFailureKeepsRunning(t *testing.T) {
	h := newHarness(t)
	h.backend.SetLabels(200, `{"error":"No autenticado"}`)

	h.press("r")
	h.waitUntil("reload", func(m Model) bool { return !m.labels.Loading() })

	if n := len(h.m.labels.Labels()); n != 0 {
		t.Errorf("got %d labels, want none", n)
	}
	if h.quit {
		t.Error("a label failure must not quit")
	}
}

func TestDownloadScenario(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(false,
		testutil.Frame(map[string]any{"type": "start", "total": 2}),
		testutil.Frame(map[string]any{"type": "progress", "current": 1, "total": 2, "files": []string{"a.pdf"}}),
		testutil.Frame(map[string]any{"type": "progress", "current": 2, "total": 2, "files": []string{"b.pdf"}}),
		testutil.Frame(map[string]any{"type": "complete"}),
	)

	h.press("enter")
	if sel := h.m.ctrl.Selection(); sel != "1" {
		t.Fatalf("Selection = %q, want 1", sel)
	}
	if h.m.labels.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", h.m.labels.ActiveCount())
	}
	if !strings.Contains(h.m.View(), "Work · idle") {
		t.Error("header should show the selected label")
	}

	h.press("s")
	h.waitUntil("job end", idle)
	h.waitUntil("bar convergence", func(m Model) bool { return m.ctrl.Percent() == 100 })

	c := h.m.ctrl
	if got := c.Files(); !reflect.DeepEqual(got, []string{"b.pdf", "a.pdf"}) {
		t.Errorf("Files = %v, want [b.pdf a.pdf]", got)
	}
	if !strings.Contains(c.Status(), "completada") {
		t.Errorf("Status = %q", c.Status())
	}
	if !c.StartVisible() || !c.StartEnabled() || c.StopVisible() {
		t.Error("controls were not restored")
	}
	if h.m.sub != nil {
		t.Error("subscription should be closed after the terminal event")
	}
	if ids := h.backend.LabelIDs(); !reflect.DeepEqual(ids, []string{"1"}) {
		t.Errorf("stream label ids = %v, want [1]", ids)
	}

	view := h.m.View()
	for _, want := range []string{"b.pdf", "a.pdf", "Guardado correctamente", "completada"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}

func TestStartWithoutSelectionUsesAllLabels(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(false, testutil.Frame(map[string]any{"type": "start", "total": 0}))

	h.press("s")
	h.waitUntil("job end", idle)

	if ids := h.backend.LabelIDs(); !reflect.DeepEqual(ids, []string{model.AllLabelsID}) {
		t.Errorf("stream label ids = %v", ids)
	}
	if h.m.ctrl.Status() != job.MsgEmpty {
		t.Errorf("Status = %q, want %q", h.m.ctrl.Status(), job.MsgEmpty)
	}
	if h.m.ctrl.Percent() != 0 {
		t.Errorf("Percent = %d, want 0", h.m.ctrl.Percent())
	}
}

func TestStopFlow(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(true,
		testutil.Frame(map[string]any{"type": "start", "total": 3}),
		testutil.Frame(map[string]any{"type": "progress", "current": 1, "total": 3, "files": []string{"a.pdf"}}),
	)

	h.press("s")
	h.waitUntil("first progress", func(m Model) bool { return m.ctrl.Percent() == 33 })

	h.press("x")
	h.waitUntil("stopped", idle)

	c := h.m.ctrl
	if c.Outcome() != job.OutcomeStopped {
		t.Errorf("Outcome = %v, want stopped", c.Outcome())
	}
	if c.Status() != job.MsgStopped {
		t.Errorf("Status = %q", c.Status())
	}
	if got := c.Files(); !reflect.DeepEqual(got, []string{"a.pdf"}) {
		t.Errorf("Files = %v", got)
	}
	if !c.StopEnabled() || c.StopVisible() {
		t.Error("stop should be hidden and enabled again")
	}
	if n := h.backend.StopCalls(); n != 1 {
		t.Errorf("stop calls = %d, want 1", n)
	}
}

func TestStopDisablesControl(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(true, testutil.Frame(map[string]any{"type": "start", "total": 3}))

	h.press("s")
	h.waitUntil("start event", func(m Model) bool { return m.ctrl.Total() == 3 })

	// Apply the stop locally without delivering its request, so the
	// job is still running.
	if cmd := h.m.stopJob(); cmd == nil {
		t.Fatal("stopJob returned no request")
	}
	if h.m.ctrl.StopEnabled() || h.m.ctrl.Status() != job.MsgStopping {
		t.Errorf("stop enabled=%v status=%q", h.m.ctrl.StopEnabled(), h.m.ctrl.Status())
	}
	if cmd := h.m.stopJob(); cmd != nil {
		t.Error("a second stop should not send another request")
	}
	if !h.m.ctrl.Running() {
		t.Error("stop is advisory: the job keeps running until the server says so")
	}
}

func TestStreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		frames []string
	}{
		{
			name:   "ends before a terminal event",
			frames: []string{testutil.Frame(map[string]any{"type": "start", "total": 2})},
		},
		{
			name:   "ends after progress",
			frames: []string{
				testutil.Frame(map[string]any{"type": "start", "total": 2}),
				testutil.Frame(map[string]any{"type": "progress", "current": 1, "total": 2, "files": []string{"a.pdf"}}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.SetStream(false, tt.frames...)

			h.press("s")
			h.waitUntil("job end", idle)

			c := h.m.ctrl
			if c.Outcome() != job.OutcomeError || c.Status() != job.MsgError {
				t.Errorf("outcome=%v status=%q", c.Outcome(), c.Status())
			}
			if !c.StartVisible() || !c.StartEnabled() || c.StopVisible() {
				t.Error("controls were not restored")
			}
			if h.m.sub != nil {
				t.Error("subscription should be closed")
			}
		})
	}
}

func TestUnknownMessagesDoNotEndJob(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(false,
		testutil.Frame(map[string]any{"type": "start", "total": 2}),
		testutil.Frame(map[string]any{"type": "heartbeat"}),
		testutil.Frame(map[string]any{"type": "progress", "current": 1, "total": 2, "files": []string{"a.pdf"}}),
		"data: not-json\n\n",
		testutil.Frame(map[string]any{"type": "progress", "current": 2, "total": 2, "files": []string{"b.pdf"}}),
		testutil.Frame(map[string]any{"type": "complete"}),
	)

	h.press("s")
	h.waitUntil("job end", idle)

	c := h.m.ctrl
	if c.Outcome() != job.OutcomeComplete {
		t.Errorf("Outcome = %v, want complete (status %q)", c.Outcome(), c.Status())
	}
	if got := c.Files(); !reflect.DeepEqual(got, []string{"b.pdf", "a.pdf"}) {
		t.Errorf("Files = %v, want [b.pdf a.pdf]", got)
	}
}

func TestSecondStartRejected(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(true, testutil.Frame(map[string]any{"type": "start", "total": 5}))

	h.press("s")
	h.waitUntil("start event", func(m Model) bool { return m.ctrl.Total() == 5 })
	jobID := h.m.ctrl.JobID()

	// The start key is hidden while running; the palette goes
	// through the controller and is rejected there.
	h.press("s")
	h.press(":")
	h.typeText("start")
	h.press("enter")

	if h.m.ctrl.JobID() != jobID {
		t.Error("a second start replaced the running job")
	}
	if n := len(h.backend.LabelIDs()); n != 1 {
		t.Errorf("opened %d streams, want 1", n)
	}
	if h.m.currentView != ViewMain {
		t.Errorf("view = %v, want main", h.m.currentView)
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(false,
		testutil.Frame(map[string]any{"type": "start", "total": 1}),
		testutil.Frame(map[string]any{"type": "complete"}),
	)

	h.press("s")
	h.waitUntil("job end", idle)
	files := h.m.ctrl.Files()

	h.send(appsync.EventMsg{
		JobID: "old-job",
		Event: model.ProgressEvent{Current: 1, Total: 1, Files: []string{"ghost.pdf"}},
	})
	if got := h.m.ctrl.Files(); !reflect.DeepEqual(got, files) {
		t.Errorf("stale event changed files: %v", got)
	}
}

func TestLogoutConfirmCancel(t *testing.T) {
	h := newHarness(t)

	h.press("L")
	if h.m.currentView != ViewConfirmLogout {
		t.Fatalf("view = %v, want logout confirmation", h.m.currentView)
	}
	if !strings.Contains(h.m.View(), "cambiar de cuenta") {
		t.Error("confirmation should ask to switch account")
	}

	h.press("esc")
	if h.m.currentView != ViewMain {
		t.Errorf("view = %v, want main", h.m.currentView)
	}
	if n := h.backend.LogoutCalls(); n != 0 {
		t.Errorf("logout calls = %d, want 0", n)
	}
}

func TestLogoutReloads(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(false,
		testutil.Frame(map[string]any{"type": "start", "total": 1}),
		testutil.Frame(map[string]any{"type": "progress", "current": 1, "total": 1, "files": []string{"a.pdf"}}),
		testutil.Frame(map[string]any{"type": "complete"}),
	)
	h.press("j")
	h.press("enter")
	h.press("s")
	h.waitUntil("job end", idle)

	h.backend.SetLabels(200, `[{"id":"9","name":"Other account"}]`)
	h.press("L")

	if h.m.currentView != ViewConfirmLogout {
		t.Fatalf("view = %v, want logout confirmation", h.m.currentView)
	}
	m, cmd := h.m.closeConfirm(true)
	h.m = m
	h.exec(cmd)

	h.waitUntil("labels of the new session", func(m Model) bool {
		l := m.labels.Labels()
		return len(l) == 1 && l[0].ID == "9"
	})

	if n := h.backend.LogoutCalls(); n != 1 {
		t.Errorf("logout calls = %d, want 1", n)
	}
	c := h.m.ctrl
	if c.Selection() != model.AllLabelsID {
		t.Errorf("Selection = %q after reload", c.Selection())
	}
	if len(c.Files()) != 0 || !c.PlaceholderVisible() {
		t.Error("reload should reset the job panel")
	}
	if h.m.currentView != ViewMain {
		t.Errorf("view = %v, want main", h.m.currentView)
	}
}

func TestCommandAll(t *testing.T) {
	h := newHarness(t)
	h.press("enter")

	h.press(":")
	h.typeText("ALL")
	h.press("enter")

	if sel := h.m.ctrl.Selection(); sel != model.AllLabelsID {
		t.Errorf("Selection = %q, want %q", sel, model.AllLabelsID)
	}
	if h.m.labels.ActiveCount() != 0 {
		t.Error("all should clear the active row")
	}
}

func TestEscClearsSelection(t *testing.T) {
	h := newHarness(t)
	h.press("j")
	h.press("enter")
	if h.m.ctrl.Selection() != "Label_2" {
		t.Fatalf("Selection = %q", h.m.ctrl.Selection())
	}

	h.press("esc")
	if h.m.ctrl.Selection() != model.AllLabelsID {
		t.Errorf("Selection = %q after esc", h.m.ctrl.Selection())
	}
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t)

	h.press("?")
	if h.m.currentView != ViewHelp {
		t.Fatalf("view = %v, want help", h.m.currentView)
	}
	h.press("?")
	if h.m.currentView != ViewMain {
		t.Errorf("view = %v, want main", h.m.currentView)
	}
}

func TestQuitClosesStream(t *testing.T) {
	h := newHarness(t)
	h.backend.SetStream(true, testutil.Frame(map[string]any{"type": "start", "total": 4}))

	h.press("s")
	h.waitUntil("start event", func(m Model) bool { return m.ctrl.Total() == 4 })

	h.press("q")
	if !h.quit {
		t.Error("q should quit")
	}
	if h.m.sub != nil {
		t.Error("quit should close the stream")
	}
}
