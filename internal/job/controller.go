package job

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/nhle/attachdl/internal/model"
)

// State is the top-level state of the download controller.
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome records how the last job ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeEmpty
	OutcomeComplete
	OutcomeStopped
	OutcomeError
)

// User-facing status messages.
const (
	MsgEmpty    = "No se encontraron adjuntos."
	MsgComplete = "¡Descarga completada!"
	MsgStopped  = "Descarga detenida por el usuario."
	MsgError    = "Ocurrió un error inesperado."
	MsgStopping = "Deteniendo descarga..."
)

// ErrJobRunning is returned by Start while a job is already running.
var ErrJobRunning = errors.New("a download job is already running")

// Controller owns the label selection and the UI state of one download
// job at a time. It is not safe for concurrent use; the Bubble Tea
// update loop is its only caller.
type Controller struct {
	selection string
	state     State
	jobID     string
	outcome   Outcome

	total        int
	percent      int
	files        []string
	status       string
	showProgress bool
	showIdleHint bool

	startVisible bool
	startEnabled bool
	stopVisible  bool
	stopEnabled  bool
}

// New returns an idle controller with the "all labels" selection.
func New() *Controller {
	return &Controller{
		selection:    model.AllLabelsID,
		state:        StateIdle,
		showIdleHint: true,
		startVisible: true,
		startEnabled: true,
		stopEnabled:  true,
	}
}

// Reset drops every job and selection field back to the initial state.
func (c *Controller) Reset() {
	*c = *New()
}

// Select stores the chosen label id. An empty id selects every label.
func (c *Controller) Select(labelID string) {
	if labelID == "" {
		labelID = model.AllLabelsID
	}
	c.selection = labelID
}

// Selection returns the label id the next job will use.
func (c *Controller) Selection() string { return c.selection }

// State returns the current top-level state.
func (c *Controller) State() State { return c.state }

// Running reports whether a job is in progress.
func (c *Controller) Running() bool { return c.state == StateRunning }

// JobID identifies the current or most recent job.
func (c *Controller) JobID() string { return c.jobID }

// Outcome returns how the most recent job ended.
func (c *Controller) Outcome() Outcome { return c.outcome }

// Total returns the message count announced by the start event.
func (c *Controller) Total() int { return c.total }

// Percent returns the progress bar value in [0,100].
func (c *Controller) Percent() int { return c.percent }

// Status returns the status line text.
func (c *Controller) Status() string { return c.status }

// ProgressVisible reports whether the progress bar is shown.
func (c *Controller) ProgressVisible() bool { return c.showProgress }

// PlaceholderVisible reports whether the "no activity" hint is shown.
func (c *Controller) PlaceholderVisible() bool { return c.showIdleHint }

// StartVisible reports whether the start control is shown.
func (c *Controller) StartVisible() bool { return c.startVisible }

// StartEnabled reports whether the start control accepts input.
func (c *Controller) StartEnabled() bool { return c.startEnabled }

// StopVisible reports whether the stop control is shown.
func (c *Controller) StopVisible() bool { return c.stopVisible }

// StopEnabled reports whether the stop control accepts input.
func (c *Controller) StopEnabled() bool { return c.stopEnabled }

// Files returns the saved file names, most recent first.
func (c *Controller) Files() []string {
	out := make([]string, len(c.files))
	copy(out, c.files)
	return out
}

// Start moves Idle to Running. It returns the id of the new job and the
// label id to stream. While a job is running it returns ErrJobRunning
// and changes nothing.
func (c *Controller) Start() (jobID string, labelID string, err error) {
	if c.state == StateRunning {
		return "", "", ErrJobRunning
	}

	c.state = StateRunning
	c.jobID = uuid.NewString()
	c.outcome = OutcomeNone
	c.total = 0
	c.percent = 0
	c.files = nil
	c.status = ""
	c.showIdleHint = false
	c.showProgress = true
	c.startVisible = false
	c.stopVisible = true
	c.stopEnabled = true

	return c.jobID, c.selection, nil
}

// Apply feeds one stream event into the state machine. It returns true
// when the event ended the job and the stream must be closed. Events
// that arrive while Idle are ignored.
func (c *Controller) Apply(ev model.Event) (done bool) {
	if c.state != StateRunning {
		return false
	}

	switch e := ev.(type) {
	case model.StartEvent:
		c.total = e.Total
		c.status = fmt.Sprintf("Encontrados %d correos...", e.Total)
		if e.Total == 0 {
			c.finish(OutcomeEmpty, MsgEmpty)
			return true
		}

	case model.ProgressEvent:
		c.percent = Percent(e.Current, e.Total)
		c.status = fmt.Sprintf("Procesando correo %d de %d...", e.Current, e.Total)
		for _, f := range e.Files {
			c.files = append([]string{f}, c.files...)
		}
		if len(e.Files) > 0 {
			c.showIdleHint = false
		}

	case model.CompleteEvent:
		c.finish(OutcomeComplete, MsgComplete)
		return true

	case model.StoppedEvent:
		c.finish(OutcomeStopped, MsgStopped)
		return true
	}

	return false
}

// Fail ends a running job after a stream error. It returns false when
// no job was running.
func (c *Controller) Fail() bool {
	if c.state != StateRunning {
		return false
	}
	c.finish(OutcomeError, MsgError)
	return true
}

// RequestStop disables the stop control and shows the stopping message.
// The job keeps running until the stream reports stopped or fails. It
// returns false when there is nothing to stop.
func (c *Controller) RequestStop() bool {
	if c.state != StateRunning || !c.stopEnabled {
		return false
	}
	c.stopEnabled = false
	c.status = MsgStopping
	return true
}

// Converge forces the bar to 100% after a completed job. It only acts
// when jobID is still the latest job and that job completed.
func (c *Controller) Converge(jobID string) bool {
	if c.state != StateIdle || jobID != c.jobID || c.outcome != OutcomeComplete {
		return false
	}
	c.percent = 100
	return true
}

// finish restores the idle controls and records the outcome.
func (c *Controller) finish(outcome Outcome, msg string) {
	c.state = StateIdle
	c.outcome = outcome
	c.status = msg
	c.startVisible = true
	c.startEnabled = true
	c.stopVisible = false
	c.stopEnabled = true
}

// Percent returns round(current/total*100) clamped to [0,100]. A
// non-positive total yields 0.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(current) / float64(total) * 100))
	return max(0, min(100, p))
}
