package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/attachdl/internal/model"
)

// EventMsg is a tea.Msg carrying one event of a job's progress stream.
type EventMsg struct {
	JobID string
	Event model.Event
}

// StreamErrorMsg is a tea.Msg sent when a job's stream could not be
// opened or broke before a terminal event.
type StreamErrorMsg struct {
	JobID string
	Err   error
}

// Source yields the events of one open progress stream.
type Source interface {
	Next() (model.Event, error)
	Close() error
}

// OpenFunc opens the progress stream of a new job for labelID. The
// stream must end when ctx is cancelled.
type OpenFunc func(ctx context.Context, labelID string) (Source, error)

// resultBuffer is how many events may queue before the reader blocks.
const resultBuffer = 16

// Subscription pumps one job's progress stream into the Bubble Tea
// runtime. A goroutine reads the stream and queues messages; the update
// loop pulls them one at a time through WaitForNext. Events are never
// dropped: the reader blocks until they are taken or the subscription
// is closed.
type Subscription struct {
	jobID    string
	resultCh chan tea.Msg
	cancel   context.CancelFunc

	mu     gosync.Mutex
	source Source
	closed bool
}

// Subscribe opens the stream for labelID in the background and returns
// immediately. Open failures arrive as a StreamErrorMsg.
func Subscribe(open OpenFunc, jobID, labelID string) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		jobID:    jobID,
		resultCh: make(chan tea.Msg, resultBuffer),
		cancel:   cancel,
	}
	go s.run(ctx, open, labelID)
	return s
}

// JobID returns the id of the job this subscription follows.
func (s *Subscription) JobID() string {
	return s.jobID
}

// run reads the stream until a terminal event, an error, or Close.
func (s *Subscription) run(ctx context.Context, open OpenFunc, labelID string) {
	defer close(s.resultCh)

	src, err := open(ctx, labelID)
	if err != nil {
		if ctx.Err() == nil {
			s.send(ctx, StreamErrorMsg{JobID: s.jobID, Err: err})
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = src.Close()
		return
	}
	s.source = src
	s.mu.Unlock()
	defer src.Close()

	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("progress stream ended before the job finished: %w", io.ErrUnexpectedEOF)
			}
			s.send(ctx, StreamErrorMsg{JobID: s.jobID, Err: err})
			return
		}

		if !s.send(ctx, EventMsg{JobID: s.jobID, Event: ev}) {
			return
		}
		if model.IsTerminal(ev) {
			return
		}
	}
}

// send queues msg unless the subscription is closed first.
func (s *Subscription) send(ctx context.Context, msg tea.Msg) bool {
	select {
	case s.resultCh <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// WaitForNext returns a tea.Cmd that waits for the next message of the
// stream. It should be called again after each non-terminal EventMsg to
// keep listening. Once the stream is finished it yields nil.
func (s *Subscription) WaitForNext() tea.Cmd {
	ch := s.resultCh
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// Close stops reading and releases the stream. It is safe to call more
// than once and from any goroutine.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	if s.source != nil {
		_ = s.source.Close()
	}
}
