package api

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/nhle/attachdl/internal/model"
)

// Stream reads progress events from a text/event-stream response body.
// Only the data field matters to this protocol; comments and the
// event, id and retry fields are skipped. Lines may end in "\n", "\r\n"
// or a bare "\r".
type Stream struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	skipLF    bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next blocks until the next event arrives. It returns io.EOF when the
// server ends the stream cleanly between messages. Messages that do not
// decode or carry an unknown type are logged and skipped; they do not
// end the job.
func (s *Stream) Next() (model.Event, error) {
	for {
		data, err := s.nextData()
		if err != nil {
			return nil, err
		}
		ev, err := model.ParseEvent([]byte(data))
		if err != nil {
			log.Printf("skipping progress message: %v", err)
			continue
		}
		return ev, nil
	}
}

// nextData returns the joined data lines of the next dispatched message.
// Messages without data lines are skipped. A message cut off by the end
// of the body is discarded.
func (s *Stream) nextData() (string, error) {
	var data []string
	hasData := false

	for {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("reading progress stream: %w", err)
		}

		if line == "" {
			if hasData {
				return strings.Join(data, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		if field == "data" {
			data = append(data, value)
			hasData = true
		}
	}
}

// readLine returns the next line without its terminator. A "\r" ends
// the line at once; a "\n" right after it is dropped on the next call,
// so a lone "\r" never waits for more input. A final line without a
// terminator is returned before io.EOF.
func (s *Stream) readLine() (string, error) {
	var line []byte
	for {
		c, err := s.reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
		if s.skipLF {
			s.skipLF = false
			if c == '\n' {
				continue
			}
		}
		switch c {
		case '\n':
			return string(line), nil
		case '\r':
			s.skipLF = true
			return string(line), nil
		}
		line = append(line, c)
	}
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
