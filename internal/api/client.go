package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/attachdl/internal/model"
)

// Endpoint paths exposed by the download server.
const (
	PathLabels   = "/api/labels"
	PathProgress = "/api/download-progress"
	PathStop     = "/api/stop"
	PathLogout   = "/api/logout"
)

// Client is a thin HTTP client for the attachment download server.
// It handles optional Bearer token authentication, request ids, and
// JSON decoding. It never retries: every failure goes back to the caller.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a new download server client. The baseURL should be
// the root URL of the server (e.g., http://localhost:8000). token may be
// empty when the server needs no authentication. timeout bounds every
// request except the progress stream, which lives until it is closed.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
	}
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Labels fetches the label collection. The server answers with a JSON
// array, or with an {"error": "..."} object when it could not list them;
// the latter is returned as a *ServerError.
func (c *Client) Labels(ctx context.Context) ([]model.Label, error) {
	body, err := c.get(ctx, PathLabels)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var errResp ErrorResponse
		if err := json.Unmarshal(trimmed, &errResp); err != nil {
			return nil, fmt.Errorf("unmarshaling response from GET %s: %w", PathLabels, err)
		}
		msg := errResp.Error
		if msg == "" {
			msg = "unexpected object response"
		}
		return nil, &ServerError{Path: PathLabels, Message: msg}
	}

	return decodeLabels(trimmed)
}

// wireLabel accepts label ids sent either as JSON strings or numbers.
type wireLabel struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

func decodeLabels(data []byte) ([]model.Label, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []wireLabel
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshaling response from GET %s: %w", PathLabels, err)
	}

	labels := make([]model.Label, 0, len(raw))
	for i, w := range raw {
		var id string
		switch v := w.ID.(type) {
		case string:
			id = v
		case json.Number:
			id = v.String()
		default:
			return nil, fmt.Errorf("label %d (%q): unsupported id %v", i, w.Name, w.ID)
		}
		labels = append(labels, model.Label{ID: id, Name: w.Name})
	}
	return labels, nil
}

// Stop asks the server to stop the running download job. The effect is
// observed later on the progress stream.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.get(ctx, PathStop)
	return err
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.get(ctx, PathLogout)
	return err
}

// OpenProgress starts a download job for labelID and returns its event
// stream. The caller must Close the stream. Cancelling ctx also ends it.
func (c *Client) OpenProgress(ctx context.Context, labelID string) (*Stream, error) {
	if labelID == "" {
		labelID = model.AllLabelsID
	}
	path := PathProgress + "?" + url.Values{"label_id": {labelID}}.Encode()

	req, err := c.newRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request GET %s: %w", PathProgress, err)
	}

	if err := checkStatus(resp, PathProgress); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return newStream(resp.Body), nil
}

// newRequest builds a GET request with the common headers.
func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// get performs a GET request and returns the response body of a 2xx reply.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, path); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// checkStatus turns non-2xx responses into errors. It reads the body on
// failure only.
func checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp ErrorResponse
	msg := strings.TrimSpace(string(respBody))
	if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Path: path, Message: msg}
	}
	if errResp.Error != "" {
		return &ServerError{Path: path, Message: msg}
	}
	return fmt.Errorf("unexpected status %d on GET %s: %s", resp.StatusCode, path, msg)
}
