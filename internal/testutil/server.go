package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Backend is a fake download server for tests. It serves the four
// endpoints the client uses and records how they were called.
type Backend struct {
	URL string

	mu          sync.Mutex
	labelsBody  string
	labelsCode  int
	frames      []string
	holdOpen    bool
	stopCh      chan struct{}
	stopCalls   int
	logoutCalls int
	labelIDs    []string
	headers     []http.Header
}

// NewBackend starts a fake server. It is closed when the test completes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		labelsBody: "[]",
		labelsCode: http.StatusOK,
		stopCh:     make(chan struct{}, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/labels", b.handleLabels)
	mux.HandleFunc("/api/download-progress", b.handleProgress)
	mux.HandleFunc("/api/stop", b.handleStop)
	mux.HandleFunc("/api/logout", b.handleLogout)

	srv := httptest.NewServer(mux)
	b.URL = srv.URL
	t.Cleanup(srv.Close)

	return b
}

// Frame builds one SSE message whose data line is v encoded as JSON.
func Frame(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil.Frame: %v", err))
	}
	return "data: " + string(data) + "\n\n"
}

// SetLabels sets the raw /api/labels response body and status code.
func (b *Backend) SetLabels(code int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labelsCode = code
	b.labelsBody = body
}

// SetStream sets the raw frames the progress endpoint writes. With
// holdOpen the stream stays open afterwards until a stop request
// arrives, which is answered with a stopped event.
func (b *Backend) SetStream(holdOpen bool, frames ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = frames
	b.holdOpen = holdOpen
}

// StopCalls returns how many stop requests arrived.
func (b *Backend) StopCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopCalls
}

// LogoutCalls returns how many logout requests arrived.
func (b *Backend) LogoutCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutCalls
}

// LabelIDs returns the label_id query values of every stream request.
func (b *Backend) LabelIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.labelIDs...)
}

// Headers returns the request headers of every request, in order.
func (b *Backend) Headers() []http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]http.Header(nil), b.headers...)
}

func (b *Backend) record(r *http.Request) {
	b.headers = append(b.headers, r.Header.Clone())
}

func (b *Backend) handleLabels(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.record(r)
	code, body := b.labelsCode, b.labelsBody
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprint(w, body)
}

func (b *Backend) handleProgress(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.record(r)
	b.labelIDs = append(b.labelIDs, r.URL.Query().Get("label_id"))
	frames, hold := b.frames, b.holdOpen
	b.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	for _, f := range frames {
		fmt.Fprint(w, f)
		flusher.Flush()
	}
	if !hold {
		return
	}

	select {
	case <-r.Context().Done():
	case <-b.stopCh:
		fmt.Fprint(w, Frame(map[string]string{"type": "stopped"}))
		flusher.Flush()
	}
}

func (b *Backend) handleStop(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.record(r)
	b.stopCalls++
	b.mu.Unlock()

	select {
	case b.stopCh <- struct{}{}:
	default:
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"stopping"}`)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.record(r)
	b.logoutCalls++
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"logged_out"}`)
}
