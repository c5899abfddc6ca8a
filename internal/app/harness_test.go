package app

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/attachdl/internal/api"
	"github.com/nhle/attachdl/internal/model"
	"github.com/nhle/attachdl/internal/testutil"
)

const waitDuration = 3 * time.Second

// harness drives a Model the way the Bubble Tea runtime does: every
// command runs on its own goroutine and its message is fed back into
// Update. Commands that block (an open stream waiting for the next
// event) stay in flight across calls.
type harness struct {
	t       *testing.T
	m       Model
	backend *testutil.Backend
	results chan tea.Msg
	queue   []tea.Msg
	quit    bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := testutil.NewBackend(t)
	b.SetLabels(200, `[{"id":1,"name":"Work"},{"id":"Label_2","name":"Facturas"}]`)

	cfg := model.DefaultAppConfig()
	cfg.Display.ConvergeDelayMs = 0
	client := api.NewClient(b.URL, "", waitDuration)

	h := &harness{
		t:       t,
		m:       New(client, cfg),
		backend: b,
		results: make(chan tea.Msg, 64),
	}
	// Runs before the backend shuts down, which waits for open streams.
	t.Cleanup(func() { h.m.Close() })

	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.exec(h.m.Init())
	h.waitUntil("labels loaded", func(m Model) bool {
		return !m.labels.Loading()
	})
	return h
}

func (h *harness) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() { h.results <- cmd() }()
}

// process applies queued messages until the queue is empty.
func (h *harness) process() {
	h.t.Helper()
	for steps := 0; len(h.queue) > 0; steps++ {
		if steps > 500 {
			h.t.Fatal("message loop did not settle")
		}
		msg := h.queue[0]
		h.queue = h.queue[1:]

		switch msg := msg.(type) {
		case nil, spinner.TickMsg:
			continue
		case tea.BatchMsg:
			for _, c := range msg {
				h.exec(c)
			}
			continue
		case tea.QuitMsg:
			h.quit = true
			continue
		}

		mdl, cmd := h.m.Update(msg)
		h.m = mdl.(Model)
		h.exec(cmd)
	}
}

// send delivers msg and every message that follows from it right away.
func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	h.queue = append(h.queue, msg)
	h.process()
	h.drain(50 * time.Millisecond)
}

// drain feeds command results back until none arrive for quiet.
func (h *harness) drain(quiet time.Duration) {
	h.t.Helper()
	for {
		select {
		case msg := <-h.results:
			h.queue = append(h.queue, msg)
			h.process()
		case <-time.After(quiet):
			return
		}
	}
}

// waitUntil feeds command results back until cond holds.
func (h *harness) waitUntil(what string, cond func(Model) bool) {
	h.t.Helper()
	deadline := time.After(waitDuration)
	for !cond(h.m) {
		select {
		case msg := <-h.results:
			h.queue = append(h.queue, msg)
			h.process()
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (h *harness) press(k string) {
	h.t.Helper()
	switch k {
	case "enter":
		h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		h.send(tea.KeyMsg{Type: tea.KeyEsc})
	default:
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
}

func (h *harness) typeText(s string) {
	h.t.Helper()
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func idle(m Model) bool {
	return !m.ctrl.Running()
}
